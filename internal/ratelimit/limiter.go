// Package ratelimit tracks failed login attempts and enforces a
// client-side lockout window. This is a deterrent against rapid retry
// loops in the UI, not a security boundary: the state is local and
// trivially discarded, so the backend must enforce its own limits
// independently.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"atlas/internal/platform/metrics"
	dErrors "atlas/pkg/domain-errors"
	"atlas/pkg/platform/requesttime"
)

const (
	defaultMaxAttempts     = 5
	defaultLockoutDuration = 15 * time.Minute
	defaultStorageKey      = "auth_rate_limit"
)

// State is the persisted attempt record. LockoutUntil is set only once
// Attempts has reached the configured maximum, and expires on read.
type State struct {
	Attempts     int
	LockoutUntil *time.Time
	LastAttempt  time.Time
}

// Store persists limiter state under a fixed key. A nil State from
// Load means no record exists yet.
type Store interface {
	Load(ctx context.Context, key string) (*State, error)
	Save(ctx context.Context, key string, state *State) error
	Clear(ctx context.Context, key string) error
}

// Config controls the lockout policy.
type Config struct {
	MaxAttempts     int
	LockoutDuration time.Duration
	StorageKey      string
}

// Limiter applies the lockout policy over a Store.
type Limiter struct {
	store   Store
	config  Config
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures the Limiter.
type Option func(*Limiter)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

// WithMetrics enables lockout metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Limiter) {
		l.metrics = m
	}
}

// WithConfig overrides the default policy. Zero-valued fields keep
// their defaults.
func WithConfig(cfg Config) Option {
	return func(l *Limiter) {
		if cfg.MaxAttempts > 0 {
			l.config.MaxAttempts = cfg.MaxAttempts
		}
		if cfg.LockoutDuration > 0 {
			l.config.LockoutDuration = cfg.LockoutDuration
		}
		if cfg.StorageKey != "" {
			l.config.StorageKey = cfg.StorageKey
		}
	}
}

// New creates a Limiter over the given store.
func New(store Store, opts ...Option) (*Limiter, error) {
	if store == nil {
		return nil, fmt.Errorf("rate limit store is required")
	}
	l := &Limiter{
		store: store,
		config: Config{
			MaxAttempts:     defaultMaxAttempts,
			LockoutDuration: defaultLockoutDuration,
			StorageKey:      defaultStorageKey,
		},
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	return l, nil
}

// IsLockedOut reports whether a lockout is currently in force. A
// stored lockout that has expired resets the state before returning
// false, so the next attempt starts a fresh window.
func (l *Limiter) IsLockedOut(ctx context.Context) (bool, error) {
	state, err := l.load(ctx)
	if err != nil {
		return false, err
	}
	if state.LockoutUntil == nil {
		return false, nil
	}

	now := requesttime.Now(ctx)
	if now.Before(*state.LockoutUntil) {
		return true, nil
	}

	// Lockout expired, reset state
	if err := l.Reset(ctx); err != nil {
		return false, err
	}
	return false, nil
}

// RecordFailedAttempt accounts one failed login. Attempts older than
// the lockout duration are discarded first. Reaching MaxAttempts sets
// LockoutUntil; further failures while a lockout is unexpired keep
// counting but do not push LockoutUntil out.
func (l *Limiter) RecordFailedAttempt(ctx context.Context) error {
	state, err := l.load(ctx)
	if err != nil {
		return err
	}

	now := requesttime.Now(ctx)
	locked := state.LockoutUntil != nil && now.Before(*state.LockoutUntil)

	// Reset if the last attempt was more than a lockout duration ago
	if !locked && now.Sub(state.LastAttempt) > l.config.LockoutDuration {
		state.Attempts = 0
		state.LockoutUntil = nil
	}

	state.Attempts++
	state.LastAttempt = now

	if state.Attempts >= l.config.MaxAttempts && !locked {
		until := now.Add(l.config.LockoutDuration)
		state.LockoutUntil = &until
		l.logger.WarnContext(ctx, "login lockout triggered",
			"attempts", state.Attempts,
			"locked_until", until,
		)
		l.metrics.IncrementLockout()
	}

	return l.save(ctx, state)
}

// RecordSuccess resets the limiter unconditionally.
func (l *Limiter) RecordSuccess(ctx context.Context) error {
	return l.Reset(ctx)
}

// Reset clears all stored attempt state.
func (l *Limiter) Reset(ctx context.Context) error {
	if err := l.store.Clear(ctx, l.config.StorageKey); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to reset rate limit state")
	}
	return nil
}

// AttemptCount returns the current failed attempt count.
func (l *Limiter) AttemptCount(ctx context.Context) (int, error) {
	state, err := l.load(ctx)
	if err != nil {
		return 0, err
	}
	return state.Attempts, nil
}

// RemainingAttempts returns how many failures are left before lockout,
// clamped at zero.
func (l *Limiter) RemainingAttempts(ctx context.Context) (int, error) {
	state, err := l.load(ctx)
	if err != nil {
		return 0, err
	}
	remaining := l.config.MaxAttempts - state.Attempts
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// RemainingLockout returns the seconds until the lockout lifts,
// rounded up and clamped at zero.
func (l *Limiter) RemainingLockout(ctx context.Context) (int, error) {
	state, err := l.load(ctx)
	if err != nil {
		return 0, err
	}
	if state.LockoutUntil == nil {
		return 0, nil
	}
	remaining := state.LockoutUntil.Sub(requesttime.Now(ctx))
	if remaining <= 0 {
		return 0, nil
	}
	secs := int((remaining + time.Second - 1) / time.Second)
	return secs, nil
}

func (l *Limiter) load(ctx context.Context) (*State, error) {
	state, err := l.store.Load(ctx, l.config.StorageKey)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load rate limit state")
	}
	if state == nil {
		return &State{}, nil
	}
	return state, nil
}

func (l *Limiter) save(ctx context.Context, state *State) error {
	if err := l.store.Save(ctx, l.config.StorageKey, state); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save rate limit state")
	}
	return nil
}
