// Package magiclink drives verification of emailed one-time login
// links as an explicit state machine, independent of any rendering
// layer.
package magiclink

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"atlas/internal/auth/models"
	"atlas/internal/platform/metrics"
	dErrors "atlas/pkg/domain-errors"
)

// State names a phase of the verification flow.
type State string

const (
	StateVerifying State = "verifying"
	StateSuccess   State = "success"
	StateError     State = "error"
)

const (
	// SuccessRedirect is where a verified user lands.
	SuccessRedirect = "/"
	// SuccessDelay is how long the success screen shows first.
	SuccessDelay = 2 * time.Second
	// FailureRedirect is where a failed verification sends the user.
	FailureRedirect = "/login"
	// FailureDelay is how long the error stays visible first.
	FailureDelay = 3 * time.Second

	fallbackMessage = "The login link is invalid or has expired."
)

// API is the verification call the flow needs from the backend client.
type API interface {
	VerifyMagicLink(ctx context.Context, linkToken string) (models.TokenPair, error)
}

// Session finishes the sign-in after the token is stored.
type Session interface {
	CompleteLogin(ctx context.Context) error
}

// Result tells the caller what to render and where to navigate next.
type Result struct {
	State         State
	Message       string
	Redirect      string
	RedirectAfter time.Duration
}

// Flow verifies one magic link. Verify may be called again on a
// remount; whether re-submitting the same token succeeds is up to the
// server.
type Flow struct {
	api     API
	session Session
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu    sync.Mutex
	state State
}

// Option configures the Flow.
type Option func(*Flow)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Flow) {
		f.logger = logger
	}
}

// WithMetrics enables verification metrics.
func WithMetrics(mm *metrics.Metrics) Option {
	return func(f *Flow) {
		f.metrics = mm
	}
}

// New creates a Flow in the verifying state.
func New(backend API, session Session, opts ...Option) (*Flow, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend API is required")
	}
	if session == nil {
		return nil, fmt.Errorf("session is required")
	}
	f := &Flow{
		api:     backend,
		session: session,
		state:   StateVerifying,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	return f, nil
}

// State returns the current flow state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Verify redeems linkToken. An empty token fails immediately with no
// network call. On success the session is completed and the result
// points at the dashboard; on failure the server's message (or a
// generic fallback) is surfaced and the result points back at login.
func (f *Flow) Verify(ctx context.Context, linkToken string) Result {
	if linkToken == "" {
		return f.fail(ctx, nil, "missing token in login link")
	}

	if _, err := f.api.VerifyMagicLink(ctx, linkToken); err != nil {
		return f.fail(ctx, err, "magic link verification rejected")
	}
	if err := f.session.CompleteLogin(ctx); err != nil {
		return f.fail(ctx, err, "failed to establish session after verification")
	}

	f.setState(StateSuccess)
	f.metrics.IncrementVerification("magic_link", "success")
	return Result{
		State:         StateSuccess,
		Message:       "Successfully logged in.",
		Redirect:      SuccessRedirect,
		RedirectAfter: SuccessDelay,
	}
}

func (f *Flow) fail(ctx context.Context, err error, reason string) Result {
	f.setState(StateError)
	f.metrics.IncrementVerification("magic_link", "failure")
	f.logger.WarnContext(ctx, reason, "error", err)
	return Result{
		State:         StateError,
		Message:       dErrors.Message(err, fallbackMessage),
		Redirect:      FailureRedirect,
		RedirectAfter: FailureDelay,
	}
}

func (f *Flow) setState(state State) {
	f.mu.Lock()
	f.state = state
	f.mu.Unlock()
}
