package auth

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"
)

// Cookie is one stored browser cookie. A zero Expires marks a session
// cookie.
type Cookie struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Domain  string    `json:"domain,omitempty"`
	Path    string    `json:"path,omitempty"`
	Expires time.Time `json:"expires,omitempty"`
}

// Site holds the session cookies captured for one host
type Site struct {
	Host         string    `json:"host"`
	Cookies      []Cookie  `json:"cookies"`
	UserAgent    string    `json:"user_agent,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// HTTPCookies converts the stored cookies for use with net/http. Cookies
// without a domain are scoped to the site host.
func (s *Site) HTTPCookies() []*http.Cookie {
	out := make([]*http.Cookie, 0, len(s.Cookies))
	for _, c := range s.Cookies {
		domain := c.Domain
		if domain == "" {
			domain = s.Host
		}
		path := c.Path
		if path == "" {
			path = "/"
		}
		out = append(out, &http.Cookie{Name: c.Name, Value: c.Value, Domain: domain, Path: path, Expires: c.Expires})
	}
	return out
}

// Expiry returns the earliest cookie expiry, or zero when every cookie is
// a session cookie.
func (s *Site) Expiry() time.Time {
	var earliest time.Time
	for _, c := range s.Cookies {
		if c.Expires.IsZero() {
			continue
		}
		if earliest.IsZero() || c.Expires.Before(earliest) {
			earliest = c.Expires
		}
	}
	return earliest
}

// Unexpired returns a copy of s without the cookies that expired by now.
func (s *Site) Unexpired(now time.Time) *Site {
	fresh := *s
	fresh.Cookies = make([]Cookie, 0, len(s.Cookies))
	for _, c := range s.Cookies {
		if c.Expires.IsZero() || c.Expires.After(now) {
			fresh.Cookies = append(fresh.Cookies, c)
		}
	}
	return &fresh
}

// CredentialStore is the interface for storing and retrieving site cookies
type CredentialStore interface {
	// Store saves cookies for a site
	Store(site *Site) error

	// Retrieve gets cookies for a specific host
	Retrieve(host string) (*Site, error)

	// List returns all stored sites
	List() ([]*Site, error)

	// Delete removes cookies for a specific host
	Delete(host string) error

	// Exists checks if cookies exist for a host
	Exists(host string) bool
}

// Manager handles credential storage with fallback mechanisms
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a new credential manager with appropriate storage backends
func NewManager() (*Manager, error) {
	var stores []CredentialStore

	// Try keyring first (system keychain)
	keyringStore, err := NewKeyringStore()
	if err == nil {
		stores = append(stores, keyringStore)
	}

	// Always add encrypted file store as fallback
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "cookies.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	// Environment store as last resort
	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NormalizeHost lowercases host and strips any scheme, port or path so
// that "https://WWW.Example.com:443/a" and "www.example.com" share a key.
func NormalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	if i := strings.LastIndex(host, ":"); i >= 0 && !strings.Contains(host[i:], "]") {
		host = host[:i]
	}
	return host
}

// Store saves cookies using the first available store
func (m *Manager) Store(site *Site) error {
	if site == nil || NormalizeHost(site.Host) == "" {
		return errors.New("host is required")
	}
	if len(site.Cookies) == 0 {
		return errors.New("at least one cookie is required")
	}
	for _, c := range site.Cookies {
		if c.Name == "" {
			return errors.New("cookie name is required")
		}
	}

	site.Host = NormalizeHost(site.Host)
	site.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		if err := store.Store(site); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store cookies: %w", lastErr)
	}
	return errors.New("no available credential stores")
}

// Retrieve gets unexpired cookies from the first store that has any.
func (m *Manager) Retrieve(host string) (*Site, error) {
	host = NormalizeHost(host)
	now := time.Now()
	for _, store := range m.stores {
		site, err := store.Retrieve(host)
		if err != nil || site == nil {
			continue
		}
		if fresh := site.Unexpired(now); len(fresh.Cookies) > 0 {
			return fresh, nil
		}
	}
	return nil, fmt.Errorf("%w for host: %s", ErrCredentialsNotFound, host)
}

// List returns all stored sites from all stores, sorted by host
func (m *Manager) List() ([]*Site, error) {
	siteMap := make(map[string]*Site)

	for _, store := range m.stores {
		sites, err := store.List()
		if err != nil {
			continue
		}
		for _, site := range sites {
			// Use the most recently modified version
			if existing, ok := siteMap[site.Host]; !ok || site.LastModified.After(existing.LastModified) {
				siteMap[site.Host] = site
			}
		}
	}

	result := make([]*Site, 0, len(siteMap))
	for _, site := range siteMap {
		result = append(result, site)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Host < result[j].Host })

	return result, nil
}

// Delete removes cookies from all stores
func (m *Manager) Delete(host string) error {
	host = NormalizeHost(host)
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(host); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}

	if !deleted && lastErr != nil {
		return fmt.Errorf("failed to delete cookies: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("%w for host: %s", ErrCredentialsNotFound, host)
	}

	return nil
}

// DeleteAll removes all stored cookies
func (m *Manager) DeleteAll() error {
	sites, err := m.List()
	if err != nil {
		return err
	}

	for _, site := range sites {
		_ = m.Delete(site.Host) // Ignore individual errors
	}

	return nil
}

// ParseCookieHeader parses a "name=value; name2=value2" Cookie header as
// copied from browser developer tools.
func ParseCookieHeader(header string) ([]Cookie, error) {
	header = strings.TrimSpace(header)
	header = strings.TrimPrefix(header, "Cookie:")
	header = strings.TrimPrefix(header, "cookie:")

	var cookies []Cookie
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: malformed cookie %q", ErrInvalidCredentials, part)
		}
		cookies = append(cookies, Cookie{Name: name, Value: strings.Trim(strings.TrimSpace(value), `"`)})
	}
	if len(cookies) == 0 {
		return nil, fmt.Errorf("%w: no cookies found", ErrInvalidCredentials)
	}
	return cookies, nil
}

// getConfigDir returns the configuration directory path
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "imgscraper")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "imgscraper")
	default: // Linux and others
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "imgscraper")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "imgscraper")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// SanitizeSite creates a copy of the site with cookie values masked
func SanitizeSite(site *Site) *Site {
	if site == nil {
		return nil
	}

	masked := make([]Cookie, len(site.Cookies))
	for i, c := range site.Cookies {
		c.Value = maskString(c.Value)
		masked[i] = c
	}
	return &Site{
		Host:         site.Host,
		Cookies:      masked,
		UserAgent:    site.UserAgent,
		LastModified: site.LastModified,
	}
}

// maskString masks all but the first 4 and last 4 characters of a string
func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Errors
var (
	ErrCredentialsNotFound = errors.New("cookies not found")
	ErrInvalidCredentials  = errors.New("invalid cookies")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)
