// internal/secrets/store.go
package secrets

import (
	"context"
	"sync"
)

// Store persists each identity's rotating secret. Save must be crash-safe:
// the protocol acknowledges a rotation only after Save returns, so a secret
// the store reports as saved must survive a restart.
type Store interface {
	// Load returns the identity's secret and whether one has been stored.
	Load(ctx context.Context, externalID string) (string, bool, error)
	// Save stores (or replaces) the identity's secret.
	Save(ctx context.Context, externalID, secret string) error
}

// MemoryStore is an in-process Store for tests and single-binary runs
// without Postgres. Secrets do not survive a restart, which also revokes
// every outstanding token on startup.
type MemoryStore struct {
	mu      sync.Mutex
	secrets map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{secrets: make(map[string]string)}
}

func (s *MemoryStore) Load(ctx context.Context, externalID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	secret, ok := s.secrets[externalID]
	return secret, ok, nil
}

func (s *MemoryStore) Save(ctx context.Context, externalID, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[externalID] = secret
	return nil
}
