package store

import (
	"context"
	"sync"

	"atlas/internal/ratelimit"
)

// InMemoryStore holds limiter state for the lifetime of the process,
// matching the non-durable, per-session scope the limiter expects.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]ratelimit.State
}

// NewMemory creates an empty in-memory limiter store.
func NewMemory() *InMemoryStore {
	return &InMemoryStore{
		records: make(map[string]ratelimit.State),
	}
}

// Load returns a copy of the stored state, or nil when none exists.
func (s *InMemoryStore) Load(_ context.Context, key string) (*ratelimit.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if record, exists := s.records[key]; exists {
		return &record, nil
	}
	return nil, nil
}

// Save stores a copy of state under key.
func (s *InMemoryStore) Save(_ context.Context, key string, state *ratelimit.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[key] = *state
	return nil
}

// Clear removes the record for key; clearing a missing key is a no-op.
func (s *InMemoryStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, key)
	return nil
}
