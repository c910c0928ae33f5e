// Mock ERP authentication backend for local development and e2e runs.
// It implements the slice of the real API the client core talks to:
// password and two-phase login, OTP flows, magic links, profile,
// refresh, and logout. State lives in memory; codes are deterministic
// so tests can drive every path.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultPort     = "8000"
	defaultTokenTTL = "15m"

	// Every emailed code is this value; real delivery is out of scope.
	fixedOTP = "123456"
)

var (
	signingKey = []byte(getEnv("JWT_SECRET", "erp-mock-secret"))
	tokenTTL   = getEnvDuration("TOKEN_TTL", defaultTokenTTL)
)

type account struct {
	Password    string
	OTPEnabled  bool
	FullName    string
	IsActive    bool
	IsSuperuser bool
	Roles       []roleOut
	Permissions []string
}

type roleOut struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions,omitempty"`
}

type userOut struct {
	ID          int64     `json:"id"`
	Email       string    `json:"email"`
	FullName    string    `json:"full_name"`
	IsActive    bool      `json:"is_active"`
	IsSuperuser bool      `json:"is_superuser"`
	RolesV2     []roleOut `json:"roles_v2,omitempty"`
	Menus       []menuOut `json:"menus,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type menuOut struct {
	Key        string    `json:"key"`
	Label      string    `json:"label"`
	Path       string    `json:"path"`
	Permission string    `json:"permission,omitempty"`
	Children   []menuOut `json:"children,omitempty"`
}

type tokenOut struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Status      string `json:"status,omitempty"`
}

// state guards the mutable test data: registered accounts, issued
// magic links, and which emails currently have a pending code.
type state struct {
	mu         sync.Mutex
	accounts   map[string]*account
	magicLinks map[string]string
	pendingOTP map[string]bool
	nextUserID int64
}

func newState() *state {
	return &state{
		accounts: map[string]*account{
			"admin@example.com": {
				Password:    "admin123",
				FullName:    "Alex Admin",
				IsActive:    true,
				IsSuperuser: true,
			},
			"finance@example.com": {
				Password:   "finance123",
				OTPEnabled: true,
				FullName:   "Fola Finance",
				IsActive:   true,
				Roles: []roleOut{{
					Name:        "finance_admin",
					Permissions: []string{"finance:manage:all", "invoices:read:all"},
				}},
				Permissions: []string{"project:read:all"},
			},
			"viewer@example.com": {
				Password: "viewer123",
				FullName: "Vera Viewer",
				IsActive: true,
				Roles: []roleOut{{
					Name:        "viewer",
					Permissions: []string{"invoices:read:own"},
				}},
			},
		},
		magicLinks: make(map[string]string),
		pendingOTP: make(map[string]bool),
		nextUserID: 100,
	}
}

func main() {
	port := getEnv("PORT", defaultPort)
	s := newState()

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "erp-backend"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/otp/request", s.handleOTPRequest)
		r.Post("/auth/otp/login", s.handleOTPLogin)
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/register/otp", s.handleRegisterOTP)
		r.Post("/auth/register/verify", s.handleRegisterVerify)
		r.Post("/auth/passwordless/request", s.handlePasswordlessRequest)
		r.Post("/auth/passwordless/verify-otp", s.handlePasswordlessVerifyOTP)
		r.Get("/auth/passwordless/verify", s.handleMagicLinkVerify)
		r.Post("/auth/set-password", s.handleSetPassword)

		r.Group(func(r chi.Router) {
			r.Use(s.requireToken)
			r.Post("/auth/refresh/", s.handleRefresh)
			r.Post("/auth/logout", s.handleLogout)
			r.Post("/auth/change-password", s.handleChangePassword)
			r.Get("/users/me/", s.handleMe)
			r.Get("/users/me/profile", s.handleProfile)
		})
	})

	log.Printf("Mock ERP backend listening on :%s", port)
	log.Printf("Accounts: admin@example.com/admin123, finance@example.com/finance123 (OTP), viewer@example.com/viewer123")
	log.Printf("Every OTP is %s", fixedOTP)

	if err := http.ListenAndServe(":"+port, r); err != nil {
		log.Fatal(err)
	}
}

func (s *state) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeDetail(w, http.StatusBadRequest, "malformed form body")
		return
	}
	email := r.PostFormValue("username")
	password := r.PostFormValue("password")

	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[email]
	if !ok || acct.Password != password {
		writeDetail(w, http.StatusUnauthorized, "Incorrect email or password")
		return
	}
	if !acct.IsActive {
		writeDetail(w, http.StatusForbidden, "Inactive user")
		return
	}
	if acct.OTPEnabled {
		s.pendingOTP[email] = true
		log.Printf("OTP for %s: %s", email, fixedOTP)
		writeJSON(w, http.StatusOK, tokenOut{Status: "otp_required"})
		return
	}
	s.issueToken(w, email)
}

func (s *state) handleOTPRequest(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeDetail(w, http.StatusBadRequest, "malformed form body")
		return
	}
	s.sendCode(w, r.PostFormValue("email"))
}

func (s *state) handleOTPLogin(w http.ResponseWriter, r *http.Request) {
	s.verifyPendingCode(w, r)
}

func (s *state) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		FullName string `json:"full_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Email == "" || in.Password == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "email and password are required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[in.Email]; exists {
		writeDetail(w, http.StatusConflict, "The user with this email already exists in the system")
		return
	}
	s.accounts[in.Email] = &account{
		Password: in.Password,
		FullName: in.FullName,
	}
	s.pendingOTP[in.Email] = true
	log.Printf("Registration OTP for %s: %s", in.Email, fixedOTP)

	writeJSON(w, http.StatusOK, s.userPayload(in.Email))
}

func (s *state) handleRegisterOTP(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeDetail(w, http.StatusBadRequest, "malformed JSON body")
		return
	}
	s.sendCode(w, in.Email)
}

func (s *state) handleRegisterVerify(w http.ResponseWriter, r *http.Request) {
	s.verifyPendingCode(w, r)
}

func (s *state) handlePasswordlessRequest(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[email]; !ok {
		// Do not reveal which accounts exist.
		writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
		return
	}
	s.pendingOTP[email] = true
	link := uuid.NewString()
	s.magicLinks[link] = email
	log.Printf("Passwordless for %s: otp=%s magic=%s", email, fixedOTP, link)
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

func (s *state) handlePasswordlessVerifyOTP(w http.ResponseWriter, r *http.Request) {
	s.verifyPendingCode(w, r)
}

func (s *state) handleMagicLinkVerify(w http.ResponseWriter, r *http.Request) {
	link := r.URL.Query().Get("token")

	s.mu.Lock()
	defer s.mu.Unlock()

	email, ok := s.magicLinks[link]
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Invalid or expired login link")
		return
	}
	// Single use.
	delete(s.magicLinks, link)
	s.issueToken(w, email)
}

func (s *state) handleSetPassword(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email       string `json:"email"`
		OTP         string `json:"otp"`
		NewPassword string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeDetail(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[in.Email]
	if !ok || !s.pendingOTP[in.Email] || in.OTP != fixedOTP {
		writeDetail(w, http.StatusUnauthorized, "Invalid or expired code")
		return
	}
	delete(s.pendingOTP, in.Email)
	acct.Password = in.NewPassword
	writeJSON(w, http.StatusOK, map[string]string{"status": "password_updated"})
}

func (s *state) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issueToken(w, emailFrom(r))
}

func (s *state) handleLogout(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (s *state) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var in struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeDetail(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[emailFrom(r)]
	if !ok || acct.Password != in.CurrentPassword {
		writeDetail(w, http.StatusBadRequest, "Incorrect password")
		return
	}
	acct.Password = in.NewPassword
	writeJSON(w, http.StatusOK, map[string]string{"status": "password_updated"})
}

func (s *state) handleMe(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.userPayload(emailFrom(r)))
}

func (s *state) handleProfile(w http.ResponseWriter, r *http.Request) {
	email := emailFrom(r)

	s.mu.Lock()
	defer s.mu.Unlock()

	acct := s.accounts[email]
	writeJSON(w, http.StatusOK, map[string]any{
		"user":        s.userPayload(email),
		"permissions": acct.Permissions,
	})
}

// sendCode marks a pending code for email. Unknown emails get the same
// response as known ones.
func (s *state) sendCode(w http.ResponseWriter, email string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[email]; ok {
		s.pendingOTP[email] = true
		log.Printf("OTP for %s: %s", email, fixedOTP)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

// verifyPendingCode checks email+otp query parameters, consumes the
// pending code, activates the account, and issues a token.
func (s *state) verifyPendingCode(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	otp := r.URL.Query().Get("otp")

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[email]; !ok || !s.pendingOTP[email] || otp != fixedOTP {
		writeDetail(w, http.StatusUnauthorized, "Invalid or expired code")
		return
	}
	delete(s.pendingOTP, email)
	s.accounts[email].IsActive = true
	s.issueToken(w, email)
}

// issueToken mints a signed JWT for email. Callers hold s.mu.
func (s *state) issueToken(w http.ResponseWriter, email string) {
	claims := jwt.MapClaims{
		"sub": email,
		"exp": time.Now().Add(tokenTTL).Unix(),
		"iat": time.Now().Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "failed to sign token")
		return
	}
	writeJSON(w, http.StatusOK, tokenOut{AccessToken: signed, TokenType: "bearer"})
}

func (s *state) userPayload(email string) userOut {
	acct := s.accounts[email]
	out := userOut{
		ID:          s.idFor(email),
		Email:       email,
		FullName:    acct.FullName,
		IsActive:    acct.IsActive,
		IsSuperuser: acct.IsSuperuser,
		RolesV2:     acct.Roles,
		CreatedAt:   time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Menus: []menuOut{
			{Key: "home", Label: "Home", Path: "/"},
			{
				Key:   "finance",
				Label: "Finance",
				Path:  "/finance",
				Children: []menuOut{
					{Key: "invoices", Label: "Invoices", Path: "/finance/invoices", Permission: "invoices:read:all"},
					{Key: "approvals", Label: "Approvals", Path: "/finance/approvals", Permission: "finance:approve:all"},
				},
			},
			{Key: "admin", Label: "Administration", Path: "/admin", Permission: "users:manage:all"},
		},
	}
	return out
}

// idFor assigns stable IDs in registration order.
func (s *state) idFor(email string) int64 {
	switch email {
	case "admin@example.com":
		return 1
	case "finance@example.com":
		return 2
	case "viewer@example.com":
		return 3
	default:
		s.nextUserID++
		return s.nextUserID
	}
}

type contextKey string

const emailKey contextKey = "email"

func withEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, emailKey, email)
}

// emailFrom reads the subject stashed by requireToken.
func emailFrom(r *http.Request) string {
	email, _ := r.Context().Value(emailKey).(string)
	return email
}

// requireToken validates the bearer token and stashes the subject.
func (s *state) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if raw == "" || raw == r.Header.Get("Authorization") {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}

		parsed, err := jwt.Parse(raw, func(*jwt.Token) (any, error) {
			return signingKey, nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !parsed.Valid {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		sub, err := parsed.Claims.GetSubject()
		if err != nil || sub == "" {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}

		s.mu.Lock()
		_, known := s.accounts[sub]
		s.mu.Unlock()
		if !known {
			writeDetail(w, http.StatusUnauthorized, "User not found")
			return
		}

		next.ServeHTTP(w, r.WithContext(withEmail(r.Context(), sub)))
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeDetail mirrors the backend's FastAPI-style error envelope.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key, fallback string) time.Duration {
	v := getEnv(key, fallback)
	d, err := time.ParseDuration(v)
	if err != nil {
		panic(fmt.Sprintf("invalid duration %q for %s", v, key))
	}
	return d
}
