package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize     = 32
	keySize      = 32
	iterations   = 100000
	vaultVersion = 2
)

// EncryptedFileStore keeps site cookies in a vault file. Each site is
// sealed on its own with AES-GCM under a PBKDF2 key, using the host as
// additional data, so an entry only opens under the host it was stored
// for. Cookie count, earliest expiry and update time stay readable
// without the passphrase.
type EncryptedFileStore struct {
	path string
	key  func(salt []byte) []byte
	now  func() time.Time
	mu   sync.RWMutex
}

type vaultFile struct {
	Version  int                   `json:"version"`
	Salt     string                `json:"salt"`
	Modified time.Time             `json:"modified"`
	Sites    map[string]vaultEntry `json:"sites"`
}

type vaultEntry struct {
	Sealed  string     `json:"sealed"`
	Cookies int        `json:"cookies"`
	Expires *time.Time `json:"expires,omitempty"`
	Updated time.Time  `json:"updated"`
}

// sealedSite is the encrypted part of an entry.
type sealedSite struct {
	Cookies   []Cookie `json:"cookies"`
	UserAgent string   `json:"user_agent,omitempty"`
}

// NewEncryptedFileStore opens the vault at path, creating its directory
// and passphrase on first use.
func NewEncryptedFileStore(path string) (*EncryptedFileStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	passphrase, err := vaultPassphrase(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("failed to get passphrase: %w", err)
	}

	return &EncryptedFileStore{
		path: path,
		key: func(salt []byte) []byte {
			return pbkdf2.Key([]byte(passphrase), salt, iterations, keySize, sha256.New)
		},
		now: time.Now,
	}, nil
}

// Store seals the site and replaces any previous entry for its host.
func (e *EncryptedFileStore) Store(site *Site) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if site == nil || site.Host == "" {
		return ErrInvalidCredentials
	}

	v, err := e.load()
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load vault: %w", err)
	}
	if v == nil {
		v = &vaultFile{Sites: make(map[string]vaultEntry)}
	}

	entry, err := e.seal(v, site)
	if err != nil {
		return err
	}
	v.Sites[site.Host] = entry
	return e.save(v)
}

// Retrieve opens the entry for host.
func (e *EncryptedFileStore) Retrieve(host string) (*Site, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if host == "" {
		return nil, ErrInvalidCredentials
	}

	v, err := e.load()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCredentialsNotFound
		}
		return nil, fmt.Errorf("failed to load vault: %w", err)
	}

	entry, ok := v.Sites[host]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return e.open(v, host, entry)
}

// List opens every entry. Entries that fail to open are skipped.
func (e *EncryptedFileStore) List() ([]*Site, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	v, err := e.load()
	if err != nil {
		if os.IsNotExist(err) {
			return []*Site{}, nil
		}
		return nil, fmt.Errorf("failed to load vault: %w", err)
	}

	sites := make([]*Site, 0, len(v.Sites))
	for host, entry := range v.Sites {
		site, err := e.open(v, host, entry)
		if err != nil {
			continue
		}
		sites = append(sites, site)
	}
	return sites, nil
}

// Delete removes the entry for host. The vault file goes away with its
// last entry.
func (e *EncryptedFileStore) Delete(host string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if host == "" {
		return ErrInvalidCredentials
	}

	v, err := e.load()
	if err != nil {
		if os.IsNotExist(err) {
			return ErrCredentialsNotFound
		}
		return fmt.Errorf("failed to load vault: %w", err)
	}
	if _, ok := v.Sites[host]; !ok {
		return ErrCredentialsNotFound
	}

	delete(v.Sites, host)
	if len(v.Sites) == 0 {
		return os.Remove(e.path)
	}
	return e.save(v)
}

// Exists reports whether host has an entry, without decrypting it.
func (e *EncryptedFileStore) Exists(host string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	v, err := e.load()
	if err != nil {
		return false
	}
	_, ok := v.Sites[host]
	return ok
}

func (e *EncryptedFileStore) seal(v *vaultFile, site *Site) (vaultEntry, error) {
	salt, err := v.salt()
	if err != nil {
		return vaultEntry{}, err
	}

	plain, err := json.Marshal(sealedSite{Cookies: site.Cookies, UserAgent: site.UserAgent})
	if err != nil {
		return vaultEntry{}, fmt.Errorf("failed to marshal site: %w", err)
	}
	sealed, err := encrypt(plain, e.key(salt), []byte(site.Host))
	if err != nil {
		return vaultEntry{}, fmt.Errorf("failed to encrypt site: %w", err)
	}

	updated := site.LastModified
	if updated.IsZero() {
		updated = e.now()
	}
	entry := vaultEntry{
		Sealed:  base64.StdEncoding.EncodeToString(sealed),
		Cookies: len(site.Cookies),
		Updated: updated.UTC(),
	}
	if exp := site.Expiry(); !exp.IsZero() {
		exp = exp.UTC()
		entry.Expires = &exp
	}
	return entry, nil
}

func (e *EncryptedFileStore) open(v *vaultFile, host string, entry vaultEntry) (*Site, error) {
	salt, err := base64.StdEncoding.DecodeString(v.Salt)
	if err != nil {
		return nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	sealed, err := base64.StdEncoding.DecodeString(entry.Sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to decode entry for %s: %w", host, err)
	}
	plain, err := decrypt(sealed, e.key(salt), []byte(host))
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt entry for %s: %w", host, err)
	}

	var s sealedSite
	if err := json.Unmarshal(plain, &s); err != nil {
		return nil, fmt.Errorf("failed to parse entry for %s: %w", host, err)
	}
	return &Site{
		Host:         host,
		Cookies:      s.Cookies,
		UserAgent:    s.UserAgent,
		LastModified: entry.Updated,
	}, nil
}

func (e *EncryptedFileStore) load() (*vaultFile, error) {
	content, err := os.ReadFile(e.path)
	if err != nil {
		return nil, err
	}

	var v vaultFile
	if err := json.Unmarshal(content, &v); err != nil {
		return nil, fmt.Errorf("failed to parse vault: %w", err)
	}
	if v.Version != vaultVersion {
		return nil, fmt.Errorf("unsupported vault version %d", v.Version)
	}
	if v.Sites == nil {
		v.Sites = make(map[string]vaultEntry)
	}
	return &v, nil
}

func (e *EncryptedFileStore) save(v *vaultFile) error {
	v.Version = vaultVersion
	v.Modified = e.now().UTC()

	content, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal vault: %w", err)
	}

	tmp := e.path + ".tmp"
	if err := os.WriteFile(tmp, content, 0600); err != nil {
		return fmt.Errorf("failed to write vault: %w", err)
	}
	return os.Rename(tmp, e.path)
}

// salt returns the vault salt, generating one for a new vault.
func (v *vaultFile) salt() ([]byte, error) {
	if v.Salt != "" {
		salt, err := base64.StdEncoding.DecodeString(v.Salt)
		if err != nil {
			return nil, fmt.Errorf("failed to decode salt: %w", err)
		}
		return salt, nil
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	v.Salt = base64.StdEncoding.EncodeToString(salt)
	return salt, nil
}

// vaultPassphrase reads IMGSCRAPER_PASSPHRASE, or a generated passphrase
// kept next to the vault.
func vaultPassphrase(dir string) (string, error) {
	if pass := os.Getenv("IMGSCRAPER_PASSPHRASE"); pass != "" {
		return pass, nil
	}

	file := filepath.Join(dir, ".passphrase")
	if content, err := os.ReadFile(file); err == nil && len(content) > 0 {
		return string(content), nil
	}

	b := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", fmt.Errorf("failed to generate passphrase: %w", err)
	}
	passphrase := base64.URLEncoding.EncodeToString(b)
	if err := os.WriteFile(file, []byte(passphrase), 0600); err != nil {
		return "", fmt.Errorf("failed to save passphrase: %w", err)
	}
	return passphrase, nil
}

func encrypt(plaintext, key, aad []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, aad), nil
}

func decrypt(ciphertext, key, aad []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, aad)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
