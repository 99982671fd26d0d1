package auth

import (
	"os"
	"time"
)

// Environment variables read by EnvironmentStore.
const (
	EnvCookies    = "IMGSCRAPER_COOKIES"
	EnvCookieHost = "IMGSCRAPER_COOKIE_HOST"
	EnvUserAgent  = "IMGSCRAPER_USER_AGENT"
)

// EnvironmentStore implements CredentialStore using environment variables.
// IMGSCRAPER_COOKIES holds a Cookie header; when IMGSCRAPER_COOKIE_HOST is
// set the cookies only apply to that host.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(site *Site) error {
	return ErrStoreUnavailable
}

// Retrieve builds a site from the environment
func (e *EnvironmentStore) Retrieve(host string) (*Site, error) {
	header := os.Getenv(EnvCookies)
	if header == "" {
		return nil, ErrCredentialsNotFound
	}

	scope := NormalizeHost(os.Getenv(EnvCookieHost))
	if scope != "" && host != "" && scope != host {
		return nil, ErrCredentialsNotFound
	}
	if host == "" {
		host = scope
	}

	cookies, err := ParseCookieHeader(header)
	if err != nil {
		return nil, err
	}

	return &Site{
		Host:         host,
		Cookies:      cookies,
		UserAgent:    os.Getenv(EnvUserAgent),
		LastModified: time.Now(),
	}, nil
}

// List returns the scoped site when both variables are set
func (e *EnvironmentStore) List() ([]*Site, error) {
	site, err := e.Retrieve("")
	if err != nil || site.Host == "" {
		return []*Site{}, nil
	}
	return []*Site{site}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(host string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment cookies apply to host
func (e *EnvironmentStore) Exists(host string) bool {
	_, err := e.Retrieve(host)
	return err == nil
}
