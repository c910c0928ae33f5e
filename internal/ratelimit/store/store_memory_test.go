package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"atlas/internal/ratelimit"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewMemory()
}

func (s *InMemoryStoreSuite) TestLoad() {
	ctx := context.Background()

	s.Run("missing key returns nil without error", func() {
		state, err := s.store.Load(ctx, "unknown")
		s.NoError(err)
		s.Nil(state)
	})

	s.Run("stored state is returned by value", func() {
		until := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
		saved := &ratelimit.State{Attempts: 3, LockoutUntil: &until, LastAttempt: until.Add(-time.Minute)}
		s.Require().NoError(s.store.Save(ctx, "k", saved))

		loaded, err := s.store.Load(ctx, "k")
		s.Require().NoError(err)
		s.Require().NotNil(loaded)
		s.Equal(3, loaded.Attempts)

		// Mutating the loaded copy must not leak back into the store.
		loaded.Attempts = 99
		again, err := s.store.Load(ctx, "k")
		s.Require().NoError(err)
		s.Equal(3, again.Attempts)
	})
}

func (s *InMemoryStoreSuite) TestClear() {
	ctx := context.Background()

	s.Run("clearing existing record removes it", func() {
		s.Require().NoError(s.store.Save(ctx, "k", &ratelimit.State{Attempts: 1}))
		s.Require().NoError(s.store.Clear(ctx, "k"))

		state, err := s.store.Load(ctx, "k")
		s.NoError(err)
		s.Nil(state)
	})

	s.Run("clearing missing record is no-op", func() {
		s.NoError(s.store.Clear(ctx, "never-existed"))
	})
}
