package store

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"atlas/internal/ratelimit"
)

// FileStore persists limiter state as a JSON document so lockouts
// survive process restarts. All keys share one file; writes replace
// the whole document.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFile creates a limiter store backed by path. The file is created
// on first save.
func NewFile(path string) *FileStore {
	return &FileStore{path: path}
}

// Load returns the stored state for key, or nil when none exists.
func (s *FileStore) Load(_ context.Context, key string) (*ratelimit.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return nil, err
	}
	if record, exists := records[key]; exists {
		return &record, nil
	}
	return nil, nil
}

// Save stores state under key.
func (s *FileStore) Save(_ context.Context, key string, state *ratelimit.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return err
	}
	records[key] = *state
	return s.write(records)
}

// Clear removes the record for key; clearing a missing key is a no-op.
func (s *FileStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return err
	}
	if _, exists := records[key]; !exists {
		return nil
	}
	delete(records, key)
	if len(records) == 0 {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	}
	return s.write(records)
}

func (s *FileStore) read() (map[string]ratelimit.State, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]ratelimit.State), nil
	}
	if err != nil {
		return nil, err
	}

	records := make(map[string]ratelimit.State)
	if err := json.Unmarshal(data, &records); err != nil {
		// A corrupt file must not lock the user out forever.
		return make(map[string]ratelimit.State), nil
	}
	return records, nil
}

func (s *FileStore) write(records map[string]ratelimit.State) error {
	data, err := json.Marshal(records)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}
