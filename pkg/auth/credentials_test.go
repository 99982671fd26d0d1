package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testSite() *Site {
	return &Site{
		Host: "www.imagefap.com",
		Cookies: []Cookie{
			{Name: "PHPSESSID", Value: "phpsession_value_12345"},
			{Name: "cf_clearance", Value: "clearance_token_67890", Domain: ".imagefap.com"},
		},
		UserAgent: "TestAgent/1.0",
	}
}

func TestCredentialManager(t *testing.T) {
	manager, mockStore := NewMockManager()

	site := testSite()
	site.Host = "HTTPS://WWW.ImageFap.com/gallery/1"
	if err := manager.Store(site); err != nil {
		t.Fatalf("Failed to store site: %v", err)
	}

	retrieved, err := manager.Retrieve("www.imagefap.com")
	if err != nil {
		t.Fatalf("Failed to retrieve site: %v", err)
	}
	if retrieved.Host != "www.imagefap.com" {
		t.Errorf("Host not normalized: got %s", retrieved.Host)
	}
	if len(retrieved.Cookies) != 2 || retrieved.Cookies[0].Value != "phpsession_value_12345" {
		t.Errorf("Cookies mismatch: %+v", retrieved.Cookies)
	}
	if retrieved.LastModified.IsZero() {
		t.Error("LastModified should be set on store")
	}

	sites, err := manager.List()
	if err != nil {
		t.Fatalf("Failed to list sites: %v", err)
	}
	if len(sites) != 1 {
		t.Errorf("Expected 1 site in list, got %d", len(sites))
	}

	if err := manager.Delete("www.imagefap.com"); err != nil {
		t.Errorf("Failed to delete site: %v", err)
	}
	if _, err := manager.Retrieve("www.imagefap.com"); !errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected ErrCredentialsNotFound after delete, got %v", err)
	}
	if mockStore.Count() != 0 {
		t.Errorf("Expected 0 sites after deletion, got %d", mockStore.Count())
	}
}

func TestManagerStoreValidation(t *testing.T) {
	manager, _ := NewMockManager()

	tests := []struct {
		name string
		site *Site
	}{
		{"nil site", nil},
		{"missing host", &Site{Cookies: []Cookie{{Name: "a", Value: "b"}}}},
		{"no cookies", &Site{Host: "example.com"}},
		{"unnamed cookie", &Site{Host: "example.com", Cookies: []Cookie{{Value: "b"}}}},
	}
	for _, tt := range tests {
		if err := manager.Store(tt.site); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestManagerFallsBackToNextStore(t *testing.T) {
	broken := NewMockStore()
	broken.StoreError = errors.New("keychain locked")
	working := NewMockStore()

	manager := NewManagerWithStores(broken, working)
	if err := manager.Store(testSite()); err != nil {
		t.Fatalf("Store should fall back: %v", err)
	}
	if working.Count() != 1 {
		t.Errorf("Expected fallback store to hold the site, got %d", working.Count())
	}
	if broken.Count() != 0 {
		t.Errorf("Broken store should be empty, got %d", broken.Count())
	}
}

func TestNormalizeHost(t *testing.T) {
	tests := map[string]string{
		"www.example.com":               "www.example.com",
		"  WWW.Example.COM ":            "www.example.com",
		"https://www.example.com/a?b=c": "www.example.com",
		"http://localhost:8080/gallery": "localhost",
		"[::1]:9000":                    "[::1]",
		"":                              "",
	}
	for in, want := range tests {
		if got := NormalizeHost(in); got != want {
			t.Errorf("NormalizeHost(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseCookieHeader(t *testing.T) {
	cookies, err := ParseCookieHeader(`Cookie: a=1; b="two";  c=x=y ;`)
	if err != nil {
		t.Fatalf("ParseCookieHeader failed: %v", err)
	}
	want := []Cookie{{Name: "a", Value: "1"}, {Name: "b", Value: "two"}, {Name: "c", Value: "x=y"}}
	if len(cookies) != len(want) {
		t.Fatalf("got %d cookies, want %d", len(cookies), len(want))
	}
	for i := range want {
		if cookies[i] != want[i] {
			t.Errorf("cookie %d = %+v, want %+v", i, cookies[i], want[i])
		}
	}

	for _, bad := range []string{"", "   ", "novalue", "=value"} {
		if _, err := ParseCookieHeader(bad); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("ParseCookieHeader(%q) error = %v, want ErrInvalidCredentials", bad, err)
		}
	}
}

func TestHTTPCookies(t *testing.T) {
	cookies := testSite().HTTPCookies()
	if len(cookies) != 2 {
		t.Fatalf("expected 2 cookies, got %d", len(cookies))
	}
	if cookies[0].Domain != "www.imagefap.com" || cookies[0].Path != "/" {
		t.Errorf("default scope wrong: domain=%s path=%s", cookies[0].Domain, cookies[0].Path)
	}
	if cookies[1].Domain != ".imagefap.com" {
		t.Errorf("explicit domain lost: %s", cookies[1].Domain)
	}
}

func TestSanitizeSite(t *testing.T) {
	site := testSite()
	sanitized := SanitizeSite(site)

	if sanitized.Cookies[0].Value == site.Cookies[0].Value {
		t.Error("Cookie value should be masked")
	}
	if !strings.HasPrefix(sanitized.Cookies[0].Value, "phps") {
		t.Errorf("Masked value should keep the prefix, got %s", sanitized.Cookies[0].Value)
	}
	if sanitized.Cookies[0].Name != "PHPSESSID" || sanitized.Host != site.Host {
		t.Error("Names and host should not be masked")
	}
	if site.Cookies[0].Value != "phpsession_value_12345" {
		t.Error("SanitizeSite must not modify its input")
	}
	if SanitizeSite(nil) != nil {
		t.Error("SanitizeSite(nil) should be nil")
	}
}

func TestEncryptedFileStore(t *testing.T) {
	t.Setenv("IMGSCRAPER_PASSPHRASE", "test_passphrase_123")
	path := filepath.Join(t.TempDir(), "cookies.enc")

	store, err := NewEncryptedFileStore(path)
	if err != nil {
		t.Fatalf("Failed to create encrypted store: %v", err)
	}

	site := testSite()
	if err := store.Store(site); err != nil {
		t.Fatalf("Failed to store in encrypted file: %v", err)
	}

	retrieved, err := store.Retrieve(site.Host)
	if err != nil {
		t.Fatalf("Failed to retrieve from encrypted file: %v", err)
	}
	if retrieved.Cookies[1].Value != "clearance_token_67890" {
		t.Errorf("Cookie mismatch after encryption/decryption: %+v", retrieved.Cookies)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(content, []byte("phpsession_value_12345")) {
		t.Error("File contains a plaintext cookie value")
	}

	if !store.Exists(site.Host) || store.Exists("other.example.com") {
		t.Error("Exists reported the wrong hosts")
	}

	if err := store.Delete(site.Host); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Data file should be removed once empty")
	}
}

func TestEncryptedFileStoreWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.enc")

	t.Setenv("IMGSCRAPER_PASSPHRASE", "right")
	store, err := NewEncryptedFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Store(testSite()); err != nil {
		t.Fatal(err)
	}

	t.Setenv("IMGSCRAPER_PASSPHRASE", "wrong")
	other, err := NewEncryptedFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := other.Retrieve("www.imagefap.com"); err == nil || errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected a decryption error, got %v", err)
	}
}

func TestEncryptedFileStoreMetadata(t *testing.T) {
	t.Setenv("IMGSCRAPER_PASSPHRASE", "test_passphrase_123")
	path := filepath.Join(t.TempDir(), "cookies.enc")
	store, err := NewEncryptedFileStore(path)
	if err != nil {
		t.Fatal(err)
	}

	soon := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	site := testSite()
	site.Cookies[0].Expires = soon.Add(time.Hour)
	site.Cookies[1].Expires = soon
	if err := store.Store(site); err != nil {
		t.Fatal(err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var v vaultFile
	if err := json.Unmarshal(content, &v); err != nil {
		t.Fatalf("vault is not readable JSON: %v", err)
	}
	entry, ok := v.Sites[site.Host]
	if !ok {
		t.Fatalf("no entry for %s in %v", site.Host, v.Sites)
	}
	if entry.Cookies != 2 {
		t.Errorf("Expected cookie count 2, got %d", entry.Cookies)
	}
	if entry.Expires == nil || !entry.Expires.Equal(soon) {
		t.Errorf("Expected earliest expiry %v, got %v", soon, entry.Expires)
	}
	if bytes.Contains(content, []byte("TestAgent/1.0")) {
		t.Error("User agent should be sealed")
	}

	got, err := store.Retrieve(site.Host)
	if err != nil {
		t.Fatal(err)
	}
	if got.UserAgent != "TestAgent/1.0" || !got.Cookies[1].Expires.Equal(soon) {
		t.Errorf("Round trip lost data: %+v", got)
	}
}

func TestEncryptedFileStoreEntryBoundToHost(t *testing.T) {
	t.Setenv("IMGSCRAPER_PASSPHRASE", "test_passphrase_123")
	path := filepath.Join(t.TempDir(), "cookies.enc")
	store, err := NewEncryptedFileStore(path)
	if err != nil {
		t.Fatal(err)
	}

	a := testSite()
	b := testSite()
	b.Host = "xx.knit.bid"
	b.Cookies = []Cookie{{Name: "sid", Value: "knit_session"}}
	if err := store.Store(a); err != nil {
		t.Fatal(err)
	}
	if err := store.Store(b); err != nil {
		t.Fatal(err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var v vaultFile
	if err := json.Unmarshal(content, &v); err != nil {
		t.Fatal(err)
	}
	ea, eb := v.Sites[a.Host], v.Sites[b.Host]
	ea.Sealed, eb.Sealed = eb.Sealed, ea.Sealed
	v.Sites[a.Host], v.Sites[b.Host] = ea, eb
	swapped, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, swapped, 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := store.Retrieve(b.Host); err == nil || errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected a decryption error for a moved entry, got %v", err)
	}
	if !store.Exists(b.Host) {
		t.Error("Exists should only consult metadata")
	}
}

func TestSiteExpiry(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	site := &Site{Host: "www.imagefap.com", Cookies: []Cookie{
		{Name: "session", Value: "s"},
		{Name: "old", Value: "o", Expires: now.Add(-time.Minute)},
		{Name: "new", Value: "n", Expires: now.Add(time.Hour)},
	}}

	if got := site.Expiry(); !got.Equal(now.Add(-time.Minute)) {
		t.Errorf("Expiry() = %v", got)
	}

	fresh := site.Unexpired(now)
	if len(fresh.Cookies) != 2 || fresh.Cookies[0].Name != "session" || fresh.Cookies[1].Name != "new" {
		t.Errorf("Unexpired() = %+v", fresh.Cookies)
	}
	if len(site.Cookies) != 3 {
		t.Error("Unexpired should not modify the receiver")
	}

	if !(&Site{Cookies: []Cookie{{Name: "a"}}}).Expiry().IsZero() {
		t.Error("Session cookies should have no expiry")
	}
}

func TestManagerSkipsExpiredCookies(t *testing.T) {
	stale := NewMockStore()
	current := NewMockStore()
	manager := NewManagerWithStores(stale, current)

	expired := testSite()
	for i := range expired.Cookies {
		expired.Cookies[i].Expires = time.Now().Add(-time.Hour)
	}
	if err := stale.Store(expired); err != nil {
		t.Fatal(err)
	}

	if _, err := manager.Retrieve(expired.Host); !errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected fully expired cookies to be ignored, got %v", err)
	}

	if err := current.Store(testSite()); err != nil {
		t.Fatal(err)
	}
	got, err := manager.Retrieve(expired.Host)
	if err != nil {
		t.Fatalf("Expected the next store to answer: %v", err)
	}
	if len(got.Cookies) != 2 || !got.Cookies[0].Expires.IsZero() {
		t.Errorf("Unexpected cookies %+v", got.Cookies)
	}
}

func TestEnvironmentStore(t *testing.T) {
	t.Setenv(EnvCookies, "session=env_session; token=env_token")
	t.Setenv(EnvUserAgent, "EnvAgent/2.0")
	t.Setenv(EnvCookieHost, "")

	store := NewEnvironmentStore()

	site, err := store.Retrieve("xx.knit.bid")
	if err != nil {
		t.Fatalf("Failed to retrieve from environment: %v", err)
	}
	if site.Host != "xx.knit.bid" || len(site.Cookies) != 2 || site.UserAgent != "EnvAgent/2.0" {
		t.Errorf("Unexpected site: %+v", site)
	}

	if err := store.Store(testSite()); err != ErrStoreUnavailable {
		t.Error("Expected ErrStoreUnavailable for environment store")
	}

	// Unscoped cookies are not listed.
	if sites, _ := store.List(); len(sites) != 0 {
		t.Errorf("Expected no listed sites without a host scope, got %d", len(sites))
	}

	t.Setenv(EnvCookieHost, "https://www.imagefap.com")
	if store.Exists("xx.knit.bid") {
		t.Error("Scoped cookies must not apply to other hosts")
	}
	sites, _ := store.List()
	if len(sites) != 1 || sites[0].Host != "www.imagefap.com" {
		t.Errorf("Expected the scoped host to be listed, got %+v", sites)
	}
}

func TestMockStore(t *testing.T) {
	store := NewMockStore()

	sites, err := store.List()
	if err != nil {
		t.Errorf("Failed to list empty store: %v", err)
	}
	if len(sites) != 0 {
		t.Errorf("Expected 0 sites, got %d", len(sites))
	}

	site := testSite()
	if err := store.Store(site); err != nil {
		t.Errorf("Failed to store site: %v", err)
	}
	site.Cookies[0].Value = "mutated"
	got, _ := store.Retrieve(site.Host)
	if got.Cookies[0].Value == "mutated" {
		t.Error("Store should keep its own copy of cookies")
	}

	store.ListError = fmt.Errorf("injected error")
	if _, err := store.List(); err == nil || err.Error() != "injected error" {
		t.Error("Expected injected error")
	}
}

func TestCookieGuide(t *testing.T) {
	var buf bytes.Buffer
	ShowCookieExtractionGuide(&buf, "www.imagefap.com")
	ShowQuickExtractGuide(&buf)

	if !strings.Contains(buf.String(), "www.imagefap.com") {
		t.Error("guide should name the host")
	}
	if !strings.Contains(buf.String(), "name1=value1; name2=value2") {
		t.Error("guide should show the expected paste format")
	}
}
