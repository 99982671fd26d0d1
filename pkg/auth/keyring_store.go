package auth

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "imgscraper"
	keyringPrefix  = "site_"
)

// KeyringStore implements CredentialStore using the system keychain
type KeyringStore struct{}

// NewKeyringStore creates a new keyring-based credential store
func NewKeyringStore() (*KeyringStore, error) {
	testKey := "test_availability"
	err := keyring.Set(keyringService, testKey, "test")
	if err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, testKey)

	return &KeyringStore{}, nil
}

// Store saves cookies to the system keychain
func (k *KeyringStore) Store(site *Site) error {
	if site == nil || site.Host == "" {
		return ErrInvalidCredentials
	}

	data, err := json.Marshal(site)
	if err != nil {
		return fmt.Errorf("failed to marshal site: %w", err)
	}

	if err := keyring.Set(keyringService, keyringPrefix+site.Host, string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}

	return nil
}

// Retrieve gets cookies from the system keychain
func (k *KeyringStore) Retrieve(host string) (*Site, error) {
	if host == "" {
		return nil, ErrInvalidCredentials
	}

	data, err := keyring.Get(keyringService, keyringPrefix+host)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrCredentialsNotFound
		}
		return nil, fmt.Errorf("failed to retrieve from keyring: %w", err)
	}

	var site Site
	if err := json.Unmarshal([]byte(data), &site); err != nil {
		return nil, fmt.Errorf("failed to unmarshal site: %w", err)
	}

	return &site, nil
}

// List returns nothing: go-keyring cannot enumerate entries.
func (k *KeyringStore) List() ([]*Site, error) {
	return []*Site{}, nil
}

// Delete removes cookies from the system keychain
func (k *KeyringStore) Delete(host string) error {
	if host == "" {
		return ErrInvalidCredentials
	}

	err := keyring.Delete(keyringService, keyringPrefix+host)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrCredentialsNotFound
		}
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}

	return nil
}

// Exists checks if cookies exist in the keychain
func (k *KeyringStore) Exists(host string) bool {
	if host == "" {
		return false
	}
	_, err := keyring.Get(keyringService, keyringPrefix+host)
	return err == nil
}
