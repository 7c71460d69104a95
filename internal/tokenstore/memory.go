package tokenstore

import (
	"sync"
	"time"

	"github.com/linkhub/linkhub/internal/models"
)

// MemoryStore is an in-memory credential store for tests.
type MemoryStore struct {
	mu    sync.RWMutex
	creds map[string]models.Credential
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{creds: make(map[string]models.Credential)}
}

func key(userID, provider string) string {
	return userID + "\x00" + provider
}

// Get retrieves the credential for (userID, provider).
func (m *MemoryStore) Get(userID, provider string) (*models.Credential, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cred, ok := m.creds[key(userID, provider)]
	if !ok {
		return nil, false, nil
	}
	copied := cred
	return &copied, true, nil
}

// Set stores or replaces the credential for (userID, provider).
func (m *MemoryStore) Set(userID, provider string, cred *models.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cred.UpdatedAt = time.Now()
	m.creds[key(userID, provider)] = *cred
	return nil
}

// Delete removes the credential for (userID, provider).
func (m *MemoryStore) Delete(userID, provider string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.creds, key(userID, provider))
	return nil
}

// Close is a no-op for the memory store.
func (m *MemoryStore) Close() error {
	return nil
}

var _ Store = (*MemoryStore)(nil)
