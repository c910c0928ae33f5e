// Package token holds the current access token and its lifecycle
// helpers. The token lives in process memory by default; "remember me"
// optionally persists it to a file so a new process can resume the
// session, mirroring the split between session-scoped and durable
// browser storage.
package token

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store is the process-wide access token holder. All reads and writes
// go through it; nothing else touches the persisted file.
type Store struct {
	mu       sync.RWMutex
	token    string
	remember bool
	file     string
}

// StoreOption configures the Store.
type StoreOption func(*Store)

// WithFile enables durable persistence at path for remembered tokens.
func WithFile(path string) StoreOption {
	return func(s *Store) {
		s.file = path
	}
}

// NewStore creates a token store. When a persistence file is configured
// and exists, the remembered token is loaded from it.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{}
	for _, opt := range opts {
		opt(s)
	}
	if s.file != "" {
		if data, err := os.ReadFile(s.file); err == nil && len(data) > 0 {
			s.token = string(data)
			s.remember = true
		}
	}
	return s
}

// Token returns the current access token, or empty when signed out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Set stores the access token. With remember set and a file configured,
// the token is also written to disk; otherwise any previously persisted
// token is removed so memory and disk cannot disagree.
func (s *Store) Set(token string, remember bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token
	s.remember = remember

	if s.file == "" {
		return nil
	}
	if remember {
		if err := os.MkdirAll(filepath.Dir(s.file), 0o700); err != nil {
			return fmt.Errorf("create token dir: %w", err)
		}
		if err := os.WriteFile(s.file, []byte(token), 0o600); err != nil {
			return fmt.Errorf("persist token: %w", err)
		}
		return nil
	}
	return s.removeFile()
}

// Clear removes the token from memory and disk. Safe to call when
// already cleared.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = ""
	s.remember = false
	if s.file == "" {
		return nil
	}
	return s.removeFile()
}

// Remembered reports whether the current token was stored durably.
func (s *Store) Remembered() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.remember
}

func (s *Store) removeFile() error {
	if err := os.Remove(s.file); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove persisted token: %w", err)
	}
	return nil
}
