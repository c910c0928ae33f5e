// Package session owns the process-wide authenticated session: who is
// signed in, what they may do, and where in the auth lifecycle the
// client currently is. All mutation funnels through the Manager; every
// other component only reads snapshots.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"atlas/internal/auth/api"
	"atlas/internal/auth/models"
	"atlas/internal/auth/token"
	"atlas/internal/platform/metrics"
	dErrors "atlas/pkg/domain-errors"
	platformstrings "atlas/pkg/platform/strings"
)

// State names the session lifecycle phase.
type State string

const (
	// StateUnchecked means the process just started and no token check
	// has run yet.
	StateUnchecked State = "unchecked"
	// StateChecking means an existing token is being verified.
	StateChecking State = "checking"
	// StateAuthenticated means a user snapshot is loaded.
	StateAuthenticated State = "authenticated"
	// StateUnauthenticated means there is no valid session.
	StateUnauthenticated State = "unauthenticated"
)

// API is the slice of the backend client the session manager needs.
type API interface {
	Login(ctx context.Context, email, password string) (*api.LoginResult, error)
	Profile(ctx context.Context) (models.Profile, error)
	Logout(ctx context.Context) error
}

// Status is a point-in-time view of the session for rendering layers.
type Status struct {
	State         State
	IsLoading     bool
	IsAuthChecked bool
	User          *models.User
}

// Manager is the single owner of session state. Writes happen under
// one mutex; overlapping async completions are last-write-wins by
// design, matching the event-loop semantics of the original surface.
type Manager struct {
	api     API
	tokens  *token.Store
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu          sync.RWMutex
	state       State
	user        *models.User
	permissions map[string]struct{}
	ordered     []string

	subMu       sync.Mutex
	subscribers map[int]func()
	nextSubID   int
}

// Option configures the Manager.
type Option func(*Manager)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithMetrics enables session metrics.
func WithMetrics(mm *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mm
	}
}

// New creates a Manager in the unchecked state.
func New(backend API, tokens *token.Store, opts ...Option) (*Manager, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend API is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token store is required")
	}
	m := &Manager{
		api:         backend,
		tokens:      tokens,
		state:       StateUnchecked,
		permissions: make(map[string]struct{}),
		subscribers: make(map[int]func()),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m, nil
}

// Snapshot returns the current session view.
func (m *Manager) Snapshot() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := Status{
		State:         m.state,
		IsLoading:     m.state == StateChecking,
		IsAuthChecked: m.state == StateAuthenticated || m.state == StateUnauthenticated,
	}
	if m.user != nil {
		u := *m.user
		status.User = &u
	}
	return status
}

// Bootstrap resolves the session on startup. Without a stored token it
// settles on unauthenticated immediately; with one it verifies by
// fetching the profile. An invalid token is discarded; other failures
// leave the token in place so a later retry can succeed.
func (m *Manager) Bootstrap(ctx context.Context) error {
	if m.tokens.Token() == "" {
		m.setUnauthenticated()
		return nil
	}

	m.setState(StateChecking)
	profile, err := m.api.Profile(ctx)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeUnauthorized) || dErrors.HasCode(err, dErrors.CodeSessionExpired) {
			if clearErr := m.tokens.Clear(); clearErr != nil {
				m.logger.WarnContext(ctx, "failed to discard invalid token", "error", clearErr)
			}
		} else {
			m.logger.ErrorContext(ctx, "profile check failed", "error", err)
		}
		m.setUnauthenticated()
		return err
	}

	m.applyProfile(profile)
	return nil
}

// Login performs the password phase. A second-factor requirement is
// reported as a CodeOTPRequired domain error with the session left
// unauthenticated; the caller drives the OTP flow and then calls
// CompleteLogin. Rate limiter accounting stays with the caller.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	m.metrics.IncrementLoginAttempt()

	result, err := m.api.Login(ctx, email, password)
	if err != nil {
		m.metrics.IncrementLoginFailure()
		return err
	}
	if result.OTPRequired() {
		return dErrors.New(dErrors.CodeOTPRequired, "a one-time code is required to finish signing in")
	}
	return m.CompleteLogin(ctx)
}

// CompleteLogin loads the profile after a verification has stored an
// access token, transitioning to authenticated on success.
func (m *Manager) CompleteLogin(ctx context.Context) error {
	m.setState(StateChecking)
	profile, err := m.api.Profile(ctx)
	if err != nil {
		m.setUnauthenticated()
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load profile after verification")
	}
	m.applyProfile(profile)
	return nil
}

// Logout clears the session. The server call is best-effort; local
// state is cleared synchronously regardless. Calling it while already
// signed out is a no-op on user data.
func (m *Manager) Logout(ctx context.Context) {
	if err := m.api.Logout(ctx); err != nil {
		m.logger.WarnContext(ctx, "backend logout failed", "error", err)
	}
	if err := m.tokens.Clear(); err != nil {
		m.logger.WarnContext(ctx, "failed to clear token on logout", "error", err)
	}
	m.setUnauthenticated()
}

// RefreshProfile re-fetches user and permission data. The stale
// snapshot stays visible until the fetch resolves; a rejected token
// ends the session, any other failure keeps the old data.
func (m *Manager) RefreshProfile(ctx context.Context) error {
	profile, err := m.api.Profile(ctx)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeUnauthorized) || dErrors.HasCode(err, dErrors.CodeSessionExpired) {
			if clearErr := m.tokens.Clear(); clearErr != nil {
				m.logger.WarnContext(ctx, "failed to discard invalid token", "error", clearErr)
			}
			m.setUnauthenticated()
			return err
		}
		m.logger.ErrorContext(ctx, "profile refresh failed", "error", err)
		return err
	}
	m.applyProfile(profile)
	return nil
}

// HasPermission reports exact membership of permission in the session
// set. Wildcard and scope conventions are resolved by the permissions
// package, not here.
func (m *Manager) HasPermission(permission string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.permissions[permission]
	return ok
}

// Permissions returns the permission set in first-seen order.
func (m *Manager) Permissions() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.ordered))
	copy(out, m.ordered)
	return out
}

// User returns a copy of the current user snapshot.
func (m *Manager) User() (models.User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return models.User{}, false
	}
	return *m.user, true
}

// Roles merges the v2, legacy, and single-role fields into one list,
// deduplicated with first-seen order: v2 first, then legacy, then the
// single assignment.
func (m *Manager) Roles() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil
	}

	v2 := make([]string, 0, len(m.user.RolesV2))
	for _, role := range m.user.RolesV2 {
		v2 = append(v2, role.Name)
	}
	legacy := make([]string, 0, len(m.user.Roles))
	for _, role := range m.user.Roles {
		legacy = append(legacy, role.Name)
	}
	var single []string
	if m.user.Role != nil {
		single = []string{m.user.Role.Name}
	}
	return platformstrings.MergeUnique(v2, legacy, single)
}

// Subscribe registers fn to run after every session state change and
// returns an unsubscribe function.
func (m *Manager) Subscribe(fn func()) func() {
	m.subMu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = fn
	m.subMu.Unlock()

	return func() {
		m.subMu.Lock()
		delete(m.subscribers, id)
		m.subMu.Unlock()
	}
}

func (m *Manager) applyProfile(profile models.Profile) {
	m.mu.Lock()
	user := profile.User
	m.user = &user
	m.permissions = make(map[string]struct{}, len(profile.Permissions))
	m.ordered = m.ordered[:0]
	for _, perm := range profile.Permissions {
		if _, ok := m.permissions[perm]; ok {
			continue
		}
		m.permissions[perm] = struct{}{}
		m.ordered = append(m.ordered, perm)
	}
	m.state = StateAuthenticated
	m.mu.Unlock()
	m.notify()
}

func (m *Manager) setUnauthenticated() {
	m.mu.Lock()
	m.user = nil
	m.permissions = make(map[string]struct{})
	m.ordered = nil
	m.state = StateUnauthenticated
	m.mu.Unlock()
	m.notify()
}

func (m *Manager) setState(state State) {
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()
	m.notify()
}

func (m *Manager) notify() {
	m.subMu.Lock()
	callbacks := make([]func(), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		callbacks = append(callbacks, fn)
	}
	m.subMu.Unlock()
	for _, fn := range callbacks {
		fn()
	}
}
