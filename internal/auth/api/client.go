// Package api is the HTTP client for the ERP backend's auth surface.
// It owns wire-shape normalization and error translation; everything
// above it works with domain types and domain errors only.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"atlas/internal/auth/models"
	"atlas/internal/auth/token"
	"atlas/internal/platform/metrics"
	dErrors "atlas/pkg/domain-errors"
)

const defaultTimeout = 30 * time.Second

// Client calls the backend auth endpoints. It reads and writes the
// shared token store: successful verifications store the issued token,
// and a failed refresh clears it.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     *token.Store
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer

	refreshGroup singleflight.Group
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client (for testing).
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics enables request metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithTracer allows injecting a custom OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) {
		c.tracer = t
	}
}

// New creates a Client against baseURL using the given token store.
func New(baseURL string, tokens *token.Store, opts ...Option) (*Client, error) {
	if tokens == nil {
		return nil, fmt.Errorf("token store is required")
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer("atlas/authapi")
	}
	return c, nil
}

// LoginResult is the outcome of the password phase. When the account
// requires a second factor the backend returns a status instead of a
// token; Token is nil in that case.
type LoginResult struct {
	Status string
	Token  *models.TokenPair
}

// OTPRequired reports whether the caller must continue with an OTP.
func (r *LoginResult) OTPRequired() bool {
	return r.Token == nil
}

type loginOut struct {
	Status      string `json:"status"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Login verifies the password (phase 1). The form encoding and the
// "username" field name are the backend's contract.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)

	var out loginOut
	err := c.do(ctx, request{
		name:   "login",
		method: http.MethodPost,
		path:   "/api/v1/auth/login",
		form:   form,
	}, &out)
	if err != nil {
		return nil, err
	}

	result := &LoginResult{Status: out.Status}
	if out.AccessToken != "" {
		pair := models.TokenPair{AccessToken: out.AccessToken, TokenType: out.TokenType}
		result.Token = &pair
		if err := c.tokens.Set(pair.AccessToken, false); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store access token")
		}
	}
	return result, nil
}

// RequestLoginOTP asks the backend to send the phase-2 login code.
func (c *Client) RequestLoginOTP(ctx context.Context, email string) error {
	form := url.Values{}
	form.Set("email", email)
	return c.do(ctx, request{
		name:          "request_login_otp",
		method:        http.MethodPost,
		path:          "/api/v1/auth/otp/request",
		form:          form,
		authenticated: true,
	}, nil)
}

// VerifyLoginOTP completes the two-phase login and stores the token.
// remember controls durable persistence of the issued token.
func (c *Client) VerifyLoginOTP(ctx context.Context, email, otp string, remember bool) (models.TokenPair, error) {
	path := fmt.Sprintf("/api/v1/auth/otp/login?email=%s&otp=%s",
		url.QueryEscape(email), url.QueryEscape(otp))
	return c.verifyForToken(ctx, "verify_login_otp", path, remember)
}

// Register submits a self-service sign-up.
func (c *Client) Register(ctx context.Context, reg models.Registration) (models.User, error) {
	body := map[string]string{
		"email":     reg.Email,
		"password":  reg.Password,
		"full_name": reg.FullName,
	}
	if reg.Phone != "" {
		body["phone_number"] = reg.Phone
	}

	var out models.UserOut
	err := c.do(ctx, request{
		name:   "register",
		method: http.MethodPost,
		path:   "/api/v1/auth/register",
		body:   body,
	}, &out)
	if err != nil {
		return models.User{}, err
	}
	return out.ToUser(), nil
}

// RequestRegistrationOTP asks for a fresh account verification code.
func (c *Client) RequestRegistrationOTP(ctx context.Context, email string) error {
	return c.do(ctx, request{
		name:   "request_registration_otp",
		method: http.MethodPost,
		path:   "/api/v1/auth/register/otp",
		body:   map[string]string{"email": email},
	}, nil)
}

// VerifyRegistrationOTP confirms a new account with the emailed code.
func (c *Client) VerifyRegistrationOTP(ctx context.Context, email, otp string) (models.TokenPair, error) {
	path := fmt.Sprintf("/api/v1/auth/register/verify?email=%s&otp=%s",
		url.QueryEscape(email), url.QueryEscape(otp))
	return c.verifyForToken(ctx, "verify_registration_otp", path, false)
}

// RequestPasswordless asks for a login code or magic link by email.
func (c *Client) RequestPasswordless(ctx context.Context, email string) error {
	return c.do(ctx, request{
		name:   "request_passwordless",
		method: http.MethodPost,
		path:   "/api/v1/auth/passwordless/request?email=" + url.QueryEscape(email),
	}, nil)
}

// VerifyPasswordlessOTP signs in with an emailed code and stores the token.
func (c *Client) VerifyPasswordlessOTP(ctx context.Context, email, otp string) (models.TokenPair, error) {
	path := fmt.Sprintf("/api/v1/auth/passwordless/verify-otp?email=%s&otp=%s",
		url.QueryEscape(email), url.QueryEscape(otp))
	return c.verifyForToken(ctx, "verify_passwordless_otp", path, false)
}

// VerifyMagicLink redeems a one-time login token and stores the
// resulting access token. The token is single-use server-side.
func (c *Client) VerifyMagicLink(ctx context.Context, linkToken string) (models.TokenPair, error) {
	path := "/api/v1/auth/passwordless/verify?token=" + url.QueryEscape(linkToken)
	var out models.TokenOut
	err := c.do(ctx, request{
		name:   "verify_magic_link",
		method: http.MethodGet,
		path:   path,
	}, &out)
	if err != nil {
		return models.TokenPair{}, err
	}
	pair := out.ToTokenPair()
	if err := c.tokens.Set(pair.AccessToken, false); err != nil {
		return models.TokenPair{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store access token")
	}
	return pair, nil
}

// RequestPasswordReset reuses the passwordless request endpoint to
// deliver a reset code.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	return c.RequestPasswordless(ctx, email)
}

// SetPassword sets a new password, proving identity with the reset OTP.
func (c *Client) SetPassword(ctx context.Context, email, otp, newPassword string) error {
	return c.do(ctx, request{
		name:   "set_password",
		method: http.MethodPost,
		path:   "/api/v1/auth/set-password",
		body: map[string]string{
			"email":        email,
			"otp":          otp,
			"new_password": newPassword,
		},
	}, nil)
}

// ChangePassword rotates the password of the signed-in user.
func (c *Client) ChangePassword(ctx context.Context, current, replacement string) error {
	return c.do(ctx, request{
		name:   "change_password",
		method: http.MethodPost,
		path:   "/api/v1/auth/change-password",
		body: map[string]string{
			"current_password": current,
			"new_password":     replacement,
		},
		authenticated: true,
		retryOn401:    true,
	}, nil)
}

// Me fetches the signed-in user snapshot.
func (c *Client) Me(ctx context.Context) (models.User, error) {
	var out models.UserOut
	err := c.do(ctx, request{
		name:          "me",
		method:        http.MethodGet,
		path:          "/api/v1/users/me/",
		authenticated: true,
		retryOn401:    true,
	}, &out)
	if err != nil {
		return models.User{}, err
	}
	return out.ToUser(), nil
}

// Profile fetches the user together with the flattened permission set.
func (c *Client) Profile(ctx context.Context) (models.Profile, error) {
	var out models.ProfileOut
	err := c.do(ctx, request{
		name:          "profile",
		method:        http.MethodGet,
		path:          "/api/v1/users/me/profile",
		authenticated: true,
		retryOn401:    true,
	}, &out)
	if err != nil {
		return models.Profile{}, err
	}
	return out.ToProfile(), nil
}

// Refresh exchanges the current token for a fresh one. Concurrent
// callers share one backend call. On failure the stored token is
// cleared and the session must be re-established.
func (c *Client) Refresh(ctx context.Context) error {
	_, err, _ := c.refreshGroup.Do("refresh", func() (any, error) {
		return nil, c.refreshLocked(ctx)
	})
	return err
}

func (c *Client) refreshLocked(ctx context.Context) error {
	var out models.TokenOut
	err := c.do(ctx, request{
		name:          "refresh",
		method:        http.MethodPost,
		path:          "/api/v1/auth/refresh/",
		authenticated: true,
	}, &out)
	if err != nil {
		c.metrics.IncrementTokenRefresh("failure")
		if clearErr := c.tokens.Clear(); clearErr != nil {
			c.logger.WarnContext(ctx, "failed to clear token after refresh failure", "error", clearErr)
		}
		// A rejected refresh ends the whole session, whatever the
		// underlying code was.
		return &dErrors.Error{
			Code:    dErrors.CodeSessionExpired,
			Message: "session expired, please log in again",
			Err:     err,
		}
	}
	c.metrics.IncrementTokenRefresh("success")
	if err := c.tokens.Set(out.AccessToken, c.tokens.Remembered()); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store refreshed token")
	}
	return nil
}

// Logout invalidates the session server-side. The caller clears local
// state regardless of the outcome.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, request{
		name:          "logout",
		method:        http.MethodPost,
		path:          "/api/v1/auth/logout",
		authenticated: true,
	}, nil)
}

// verifyForToken runs a verification endpoint that issues a token and
// stores the result.
func (c *Client) verifyForToken(ctx context.Context, name, path string, remember bool) (models.TokenPair, error) {
	var out models.TokenOut
	err := c.do(ctx, request{
		name:   name,
		method: http.MethodPost,
		path:   path,
	}, &out)
	if err != nil {
		return models.TokenPair{}, err
	}
	pair := out.ToTokenPair()
	if err := c.tokens.Set(pair.AccessToken, remember); err != nil {
		return models.TokenPair{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store access token")
	}
	return pair, nil
}

type request struct {
	name          string
	method        string
	path          string
	body          any        // JSON-encoded when set
	form          url.Values // form-encoded when set
	authenticated bool       // attach the bearer token
	retryOn401    bool       // refresh once and retry on 401
}

// do executes one backend request, translating failures into domain
// errors and decoding a 2xx body into out when out is non-nil.
func (c *Client) do(ctx context.Context, req request, out any) error {
	ctx, span := c.tracer.Start(ctx, "authapi."+req.name,
		trace.WithAttributes(attribute.String("endpoint", req.name)))
	var spanErr error
	defer func() {
		if spanErr != nil {
			span.RecordError(spanErr)
			span.SetStatus(codes.Error, spanErr.Error())
		}
		span.End()
	}()

	start := time.Now()
	status, body, err := c.execute(ctx, req, c.tokens.Token())
	c.metrics.ObserveRequestLatency(req.name, time.Since(start).Seconds())
	if err != nil {
		spanErr = err
		return err
	}

	if status == http.StatusUnauthorized && req.retryOn401 && c.tokens.Token() != "" {
		c.logger.DebugContext(ctx, "retrying after token refresh", "endpoint", req.name)
		if err := c.Refresh(ctx); err != nil {
			spanErr = err
			return err
		}
		status, body, err = c.execute(ctx, req, c.tokens.Token())
		if err != nil {
			spanErr = err
			return err
		}
	}

	if status < 200 || status > 299 {
		spanErr = decodeAPIError(status, body)
		c.logger.WarnContext(ctx, "backend request rejected",
			"endpoint", req.name,
			"status", status,
		)
		return spanErr
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		spanErr = dErrors.Wrap(err, dErrors.CodeInternal, "failed to parse backend response")
		return spanErr
	}
	return nil
}

func (c *Client) execute(ctx context.Context, req request, bearer string) (int, []byte, error) {
	var reader io.Reader
	contentType := ""
	switch {
	case req.form != nil:
		reader = strings.NewReader(req.form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case req.body != nil:
		encoded, err := json.Marshal(req.body)
		if err != nil {
			return 0, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode request")
		}
		reader = bytes.NewReader(encoded)
		contentType = "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, reader)
	if err != nil {
		return 0, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create request")
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("X-Request-ID", uuid.NewString())
	if req.authenticated && bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return 0, nil, dErrors.Wrap(err, dErrors.CodeTimeout, "request timed out")
		}
		return 0, nil, dErrors.Wrap(err, dErrors.CodeInternal, "request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read response body")
	}
	return resp.StatusCode, body, nil
}
