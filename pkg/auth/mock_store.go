package auth

import (
	"sync"
)

// MockStore implements CredentialStore for testing purposes
type MockStore struct {
	sites map[string]*Site
	mu    sync.RWMutex

	// Error injection for testing
	StoreError    error
	RetrieveError error
	ListError     error
	DeleteError   error
}

// NewMockStore creates a new mock credential store
func NewMockStore() *MockStore {
	return &MockStore{
		sites: make(map[string]*Site),
	}
}

func copySite(s *Site) *Site {
	c := *s
	c.Cookies = append([]Cookie(nil), s.Cookies...)
	return &c
}

func (m *MockStore) Store(site *Site) error {
	if m.StoreError != nil {
		return m.StoreError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if site == nil || site.Host == "" {
		return ErrInvalidCredentials
	}
	m.sites[site.Host] = copySite(site)
	return nil
}

func (m *MockStore) Retrieve(host string) (*Site, error) {
	if m.RetrieveError != nil {
		return nil, m.RetrieveError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if host == "" {
		return nil, ErrInvalidCredentials
	}
	site, exists := m.sites[host]
	if !exists {
		return nil, ErrCredentialsNotFound
	}
	return copySite(site), nil
}

func (m *MockStore) List() ([]*Site, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	sites := make([]*Site, 0, len(m.sites))
	for _, site := range m.sites {
		sites = append(sites, copySite(site))
	}
	return sites, nil
}

func (m *MockStore) Delete(host string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if host == "" {
		return ErrInvalidCredentials
	}
	if _, exists := m.sites[host]; !exists {
		return ErrCredentialsNotFound
	}
	delete(m.sites, host)
	return nil
}

func (m *MockStore) Exists(host string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.sites[host]
	return exists
}

// Count returns the number of stored sites
func (m *MockStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.sites)
}

// NewMockManager creates a Manager backed by a single mock store
func NewMockManager() (*Manager, *MockStore) {
	mockStore := NewMockStore()
	return &Manager{stores: []CredentialStore{mockStore}}, mockStore
}

// NewManagerWithStores creates a Manager over the given stores, tried in order
func NewManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores}
}
