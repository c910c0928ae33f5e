package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"atlas/pkg/platform/requesttime"
)

// memStore is a minimal in-process Store for limiter tests. The real
// memory store lives in the store subpackage; duplicating a few lines
// here avoids an import cycle in tests.
type memStore struct {
	mu      sync.Mutex
	records map[string]State
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]State)}
}

func (s *memStore) Load(_ context.Context, key string) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.records[key]; ok {
		return &st, nil
	}
	return nil, nil
}

func (s *memStore) Save(_ context.Context, key string, state *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = *state
	return nil
}

func (s *memStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

type LimiterSuite struct {
	suite.Suite
	limiter *Limiter
	base    time.Time
}

func TestLimiterSuite(t *testing.T) {
	suite.Run(t, new(LimiterSuite))
}

func (s *LimiterSuite) SetupTest() {
	limiter, err := New(newMemStore())
	s.Require().NoError(err)
	s.limiter = limiter
	s.base = time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
}

func (s *LimiterSuite) at(offset time.Duration) context.Context {
	return requesttime.WithTime(context.Background(), s.base.Add(offset))
}

func (s *LimiterSuite) failTimes(n int, ctx context.Context) {
	for i := 0; i < n; i++ {
		s.Require().NoError(s.limiter.RecordFailedAttempt(ctx))
	}
}

func (s *LimiterSuite) TestNew() {
	s.Run("nil store fails", func() {
		_, err := New(nil)
		s.Error(err)
	})

	s.Run("config overrides apply, zero values keep defaults", func() {
		l, err := New(newMemStore(), WithConfig(Config{MaxAttempts: 3}))
		s.Require().NoError(err)
		s.Equal(3, l.config.MaxAttempts)
		s.Equal(defaultLockoutDuration, l.config.LockoutDuration)
		s.Equal(defaultStorageKey, l.config.StorageKey)
	})
}

func (s *LimiterSuite) TestLockoutActivatesAtMaxAttempts() {
	ctx := s.at(0)

	s.failTimes(4, ctx)
	locked, err := s.limiter.IsLockedOut(ctx)
	s.Require().NoError(err)
	s.False(locked, "four failures must not lock")

	remaining, err := s.limiter.RemainingAttempts(ctx)
	s.Require().NoError(err)
	s.Equal(1, remaining)

	s.failTimes(1, ctx)
	locked, err = s.limiter.IsLockedOut(ctx)
	s.Require().NoError(err)
	s.True(locked, "fifth failure locks")

	remaining, err = s.limiter.RemainingAttempts(ctx)
	s.Require().NoError(err)
	s.Equal(0, remaining)
}

func (s *LimiterSuite) TestLockoutExpiresExactlyAtDeadline() {
	s.failTimes(5, s.at(0))

	locked, err := s.limiter.IsLockedOut(s.at(15*time.Minute - time.Second))
	s.Require().NoError(err)
	s.True(locked)

	// At the deadline the lockout lifts and state resets.
	locked, err = s.limiter.IsLockedOut(s.at(15 * time.Minute))
	s.Require().NoError(err)
	s.False(locked)

	count, err := s.limiter.AttemptCount(s.at(15 * time.Minute))
	s.Require().NoError(err)
	s.Equal(0, count)
}

func (s *LimiterSuite) TestFailureWhileLockedDoesNotExtendLockout() {
	s.failTimes(5, s.at(0))

	before, err := s.limiter.RemainingLockout(s.at(time.Minute))
	s.Require().NoError(err)

	// A sixth failure during the lockout counts but keeps the deadline.
	s.failTimes(1, s.at(time.Minute))

	after, err := s.limiter.RemainingLockout(s.at(time.Minute))
	s.Require().NoError(err)
	s.Equal(before, after)

	count, err := s.limiter.AttemptCount(s.at(time.Minute))
	s.Require().NoError(err)
	s.Equal(6, count)
}

func (s *LimiterSuite) TestStaleAttemptsResetBeforeCounting() {
	s.failTimes(4, s.at(0))

	// More than a lockout duration later, the stale attempts are
	// discarded and the failure counts as the first of a new window.
	s.failTimes(1, s.at(16*time.Minute))

	count, err := s.limiter.AttemptCount(s.at(16 * time.Minute))
	s.Require().NoError(err)
	s.Equal(1, count)

	locked, err := s.limiter.IsLockedOut(s.at(16 * time.Minute))
	s.Require().NoError(err)
	s.False(locked)
}

func (s *LimiterSuite) TestRecordSuccessResetsUnconditionally() {
	s.Run("after a few failures", func() {
		s.failTimes(3, s.at(0))
		s.Require().NoError(s.limiter.RecordSuccess(s.at(0)))

		count, err := s.limiter.AttemptCount(s.at(0))
		s.Require().NoError(err)
		s.Equal(0, count)
	})

	s.Run("even while locked out", func() {
		s.failTimes(5, s.at(0))
		s.Require().NoError(s.limiter.RecordSuccess(s.at(0)))

		locked, err := s.limiter.IsLockedOut(s.at(0))
		s.Require().NoError(err)
		s.False(locked)
	})
}

func (s *LimiterSuite) TestRemainingLockoutRoundsUp() {
	s.failTimes(5, s.at(0))

	// 14m59.5s remaining rounds up to a full 900 seconds window minus 0.
	secs, err := s.limiter.RemainingLockout(s.at(500 * time.Millisecond))
	s.Require().NoError(err)
	s.Equal(900, secs)

	secs, err = s.limiter.RemainingLockout(s.at(14*time.Minute + 59*time.Second))
	s.Require().NoError(err)
	s.Equal(1, secs)

	secs, err = s.limiter.RemainingLockout(s.at(20 * time.Minute))
	s.Require().NoError(err)
	s.Equal(0, secs)
}
