// Package otp drives six-digit code verification for registration,
// passwordless login, and password reset as an explicit state machine.
// The three kinds share code entry and resend; they differ in which
// endpoint verifies the code and where a success leads.
package otp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"atlas/internal/auth/models"
	"atlas/internal/platform/metrics"
	dErrors "atlas/pkg/domain-errors"
	"atlas/pkg/platform/requesttime"
)

// State names a phase of the verification flow.
type State string

const (
	StateCollecting State = "collecting"
	StateSubmitting State = "submitting"
	StateSuccess    State = "success"
)

const (
	// CodeLength is the exact number of digits a code must have.
	CodeLength = 6
	// ResendCooldown gates how often a new code may be requested.
	ResendCooldown = 60 * time.Second

	// LoginRedirect is where the flow sends a user it cannot serve.
	LoginRedirect = "/login"
	// PasswordResetRedirect receives the validated email and code.
	PasswordResetRedirect = "/reset-password"

	registrationDelay = 2 * time.Second
	passwordlessDelay = 1500 * time.Millisecond

	invalidCodeMessage   = "Invalid or expired code. Please try again."
	incompleteMessage    = "Please enter the complete 6-digit code"
	resendFailureMessage = "Failed to resend code. Please try again."
)

// API is the slice of the backend client the flow needs.
type API interface {
	VerifyRegistrationOTP(ctx context.Context, email, otp string) (models.TokenPair, error)
	VerifyPasswordlessOTP(ctx context.Context, email, otp string) (models.TokenPair, error)
	RequestRegistrationOTP(ctx context.Context, email string) error
	RequestPasswordless(ctx context.Context, email string) error
	RequestPasswordReset(ctx context.Context, email string) error
}

// Session finishes a passwordless sign-in after the token is stored.
type Session interface {
	CompleteLogin(ctx context.Context) error
}

// Handoff carries the validated inputs forward to the password-reset
// screen. The server sees the code only when the new password is set.
type Handoff struct {
	Email string
	OTP   string
}

// Result tells the caller what to render and where to navigate next.
type Result struct {
	State         State
	Message       string
	Redirect      string
	RedirectAfter time.Duration
	Handoff       *Handoff
}

// Flow verifies one emailed code for one user.
type Flow struct {
	api     API
	session Session
	email   string
	kind    models.OTPKind
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu         sync.Mutex
	state      State
	lastResend time.Time
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

// New creates a Flow in the collecting state. An empty email is
// accepted here; the flow then redirects to login instead of ever
// touching the network.
func New(backend API, session Session, email string, kind models.OTPKind, opts ...Option) (*Flow, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend API is required")
	}
	if session == nil {
		return nil, fmt.Errorf("session is required")
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown verification kind %q", kind)
	}
	f := &Flow{
		api:     backend,
		session: session,
		email:   email,
		kind:    kind,
		state:   StateCollecting,
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

// CanSubmit reports whether code passes the client-side gate: exactly
// six digits.
func CanSubmit(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// Submit verifies code. An incomplete code or a server rejection
// leaves the flow collecting with the message to show; a concurrent
// submit is refused while one is in flight. Success routes by kind:
// registration back to login, passwordless into the session and to
// the dashboard, password reset forward with a handoff and no server
// call.
func (f *Flow) Submit(ctx context.Context, code string) Result {
	if f.email == "" {
		return Result{State: StateCollecting, Redirect: LoginRedirect}
	}
	if !CanSubmit(code) {
		return Result{State: StateCollecting, Message: incompleteMessage}
	}

	f.mu.Lock()
	switch f.state {
	case StateSubmitting:
		f.mu.Unlock()
		return Result{State: StateSubmitting, Message: "Verification already in progress."}
	case StateSuccess:
		f.mu.Unlock()
		return Result{State: StateSuccess}
	}
	f.state = StateSubmitting
	f.mu.Unlock()

	switch f.kind {
	case models.OTPRegistration:
		if _, err := f.api.VerifyRegistrationOTP(ctx, f.email, code); err != nil {
			return f.reject(ctx, err)
		}
		return f.succeed(Result{
			State:         StateSuccess,
			Message:       "Account verified! You can now login.",
			Redirect:      LoginRedirect,
			RedirectAfter: registrationDelay,
		})

	case models.OTPPasswordless:
		if _, err := f.api.VerifyPasswordlessOTP(ctx, f.email, code); err != nil {
			return f.reject(ctx, err)
		}
		if err := f.session.CompleteLogin(ctx); err != nil {
			return f.reject(ctx, err)
		}
		return f.succeed(Result{
			State:         StateSuccess,
			Message:       "Login successful.",
			Redirect:      "/",
			RedirectAfter: passwordlessDelay,
		})

	default:
		// Password reset: the code is checked by the server only when
		// the new password is submitted.
		return f.succeed(Result{
			State:    StateSuccess,
			Redirect: PasswordResetRedirect,
			Handoff:  &Handoff{Email: f.email, OTP: code},
		})
	}
}

// Resend requests a fresh code. While the cooldown is running it
// refuses with a rate-limited error and no network call; a failed
// request surfaces inline and does not start the cooldown.
func (f *Flow) Resend(ctx context.Context) error {
	if f.email == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "no email on file for this verification")
	}
	if remaining := f.CooldownRemaining(ctx); remaining > 0 {
		return dErrors.New(dErrors.CodeRateLimited,
			fmt.Sprintf("Resend in %ds", int((remaining+time.Second-1)/time.Second)))
	}

	var err error
	switch f.kind {
	case models.OTPRegistration:
		err = f.api.RequestRegistrationOTP(ctx, f.email)
	case models.OTPPasswordless:
		err = f.api.RequestPasswordless(ctx, f.email)
	default:
		err = f.api.RequestPasswordReset(ctx, f.email)
	}
	if err != nil {
		f.logger.WarnContext(ctx, "failed to resend verification code",
			"kind", string(f.kind), "error", err)
		return dErrors.Wrap(err, dErrors.CodeInternal, dErrors.Message(err, resendFailureMessage))
	}

	f.mu.Lock()
	f.lastResend = requesttime.Now(ctx)
	f.mu.Unlock()
	return nil
}

// CooldownRemaining reports how long until Resend is allowed again.
func (f *Flow) CooldownRemaining(ctx context.Context) time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lastResend.IsZero() {
		return 0
	}
	remaining := ResendCooldown - requesttime.Now(ctx).Sub(f.lastResend)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (f *Flow) succeed(result Result) Result {
	f.mu.Lock()
	f.state = StateSuccess
	f.mu.Unlock()
	f.metrics.IncrementVerification(string(f.kind), "success")
	return result
}

func (f *Flow) reject(ctx context.Context, err error) Result {
	f.mu.Lock()
	f.state = StateCollecting
	f.mu.Unlock()
	f.metrics.IncrementVerification(string(f.kind), "failure")
	f.logger.WarnContext(ctx, "verification code rejected",
		"kind", string(f.kind), "error", err)
	return Result{
		State:   StateCollecting,
		Message: dErrors.Message(err, invalidCodeMessage),
	}
}
