package session

import (
	"context"
	"sync"
)

// MemoryStore keeps credentials in process memory. Suitable for tests and
// single-instance demo deployments; sessions do not survive a restart.
type MemoryStore struct {
	mu    sync.RWMutex
	creds map[string]Credentials
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{creds: make(map[string]Credentials)}
}

func (s *MemoryStore) Save(_ context.Context, userID string, creds Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.creds[userID] = creds
	return nil
}

func (s *MemoryStore) Get(_ context.Context, userID string) (*Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	creds, ok := s.creds[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &creds, nil
}

func (s *MemoryStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.creds, userID)
	return nil
}
