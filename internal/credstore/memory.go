package credstore

import (
	"sync"

	"gv-go/internal/gv"
)

// MemoryStore is an in-memory implementation of gv.CredentialStore.
// Credentials live only as long as the process, which makes it useful for
// testing and for `session.type = "memory"`.
// This implementation is safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	creds *gv.Credentials
}

// NewMemoryStore creates an empty in-memory credential store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns a copy of the stored credentials, or nil if none are stored.
func (m *MemoryStore) Load() (*gv.Credentials, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.creds == nil {
		return nil, nil
	}
	c := *m.creds
	return &c, nil
}

// Save replaces the stored credentials.
func (m *MemoryStore) Save(c *gv.Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *c
	m.creds = &cp
	return nil
}

// Clear removes the stored credentials.
func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.creds = nil
	return nil
}

// Compile-time check that MemoryStore implements gv.CredentialStore interface
var _ gv.CredentialStore = (*MemoryStore)(nil)
