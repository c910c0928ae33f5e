package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"atlas/internal/auth/models"
	"atlas/internal/auth/token"
	dErrors "atlas/pkg/domain-errors"
)

// ClientSuite exercises the HTTP client against a chi-routed stand-in
// for the ERP backend.
type ClientSuite struct {
	suite.Suite
	tokens *token.Store
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) SetupTest() {
	s.tokens = token.NewStore()
}

func (s *ClientSuite) SetupSubTest() {
	s.tokens = token.NewStore()
}

func (s *ClientSuite) newClient(handler http.Handler) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	s.T().Cleanup(server.Close)
	client, err := New(server.URL, s.tokens)
	s.Require().NoError(err)
	return client, server
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *ClientSuite) TestLogin() {
	s.Run("otp required leaves token store empty", func() {
		r := chi.NewRouter()
		r.Post("/api/v1/auth/login", func(w http.ResponseWriter, req *http.Request) {
			s.Require().NoError(req.ParseForm())
			s.Equal("jo@example.com", req.PostFormValue("username"))
			s.Equal("hunter2", req.PostFormValue("password"))
			writeJSON(w, http.StatusOK, map[string]string{"status": "otp_required"})
		})
		client, _ := s.newClient(r)

		result, err := client.Login(context.Background(), "jo@example.com", "hunter2")
		s.Require().NoError(err)
		s.True(result.OTPRequired())
		s.Empty(s.tokens.Token())
	})

	s.Run("direct token issuance stores the token", func() {
		r := chi.NewRouter()
		r.Post("/api/v1/auth/login", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"access_token": "tok-1", "token_type": "bearer"})
		})
		client, _ := s.newClient(r)

		result, err := client.Login(context.Background(), "jo@example.com", "hunter2")
		s.Require().NoError(err)
		s.False(result.OTPRequired())
		s.Equal("tok-1", s.tokens.Token())
	})

	s.Run("rejection surfaces the server detail", func() {
		r := chi.NewRouter()
		r.Post("/api/v1/auth/login", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Incorrect email or password"})
		})
		client, _ := s.newClient(r)

		_, err := client.Login(context.Background(), "jo@example.com", "wrong")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		s.Equal("Incorrect email or password", dErrors.Message(err, "fallback"))
		s.Empty(s.tokens.Token())
	})

	s.Run("validation list detail uses the first message", func() {
		r := chi.NewRouter()
		r.Post("/api/v1/auth/login", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"detail": []map[string]string{{"msg": "username is required"}},
			})
		})
		client, _ := s.newClient(r)

		_, err := client.Login(context.Background(), "", "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Equal("username is required", dErrors.Message(err, "fallback"))
	})
}

func (s *ClientSuite) TestVerifyMagicLink() {
	s.Run("stores the issued token", func() {
		r := chi.NewRouter()
		r.Get("/api/v1/auth/passwordless/verify", func(w http.ResponseWriter, req *http.Request) {
			s.Equal("link-token", req.URL.Query().Get("token"))
			writeJSON(w, http.StatusOK, map[string]string{"access_token": "tok-magic", "token_type": "bearer"})
		})
		client, _ := s.newClient(r)

		pair, err := client.VerifyMagicLink(context.Background(), "link-token")
		s.Require().NoError(err)
		s.Equal("tok-magic", pair.AccessToken)
		s.Equal("tok-magic", s.tokens.Token())
	})

	s.Run("expired link is unauthorized", func() {
		r := chi.NewRouter()
		r.Get("/api/v1/auth/passwordless/verify", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid or expired token"})
		})
		client, _ := s.newClient(r)

		_, err := client.VerifyMagicLink(context.Background(), "stale")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		s.Empty(s.tokens.Token())
	})
}

func (s *ClientSuite) TestProfileRefreshRetry() {
	s.Require().NoError(s.tokens.Set("tok-stale", false))

	var refreshes atomic.Int32
	r := chi.NewRouter()
	r.Post("/api/v1/auth/refresh/", func(w http.ResponseWriter, req *http.Request) {
		refreshes.Add(1)
		s.Equal("Bearer tok-stale", req.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]string{"access_token": "tok-fresh", "token_type": "bearer"})
	})
	r.Get("/api/v1/users/me/profile", func(w http.ResponseWriter, req *http.Request) {
		if req.Header.Get("Authorization") != "Bearer tok-fresh" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "token expired"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"user": map[string]any{
				"id": 7, "email": "jo@example.com", "full_name": "Jo Mwangi",
				"is_active": true, "is_superuser": false,
				"created_at": "2025-03-01T10:00:00Z",
			},
			"permissions": []string{"project:read:all"},
		})
	})
	client, _ := s.newClient(r)

	profile, err := client.Profile(context.Background())
	s.Require().NoError(err)
	s.Equal("jo@example.com", profile.User.Email)
	s.Equal([]string{"project:read:all"}, profile.Permissions)
	s.Equal(int32(1), refreshes.Load())
	s.Equal("tok-fresh", s.tokens.Token())
}

func (s *ClientSuite) TestRefreshFailureClearsToken() {
	s.Require().NoError(s.tokens.Set("tok-stale", false))

	r := chi.NewRouter()
	r.Post("/api/v1/auth/refresh/", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "refresh token expired"})
	})
	r.Get("/api/v1/users/me/profile", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "token expired"})
	})
	client, _ := s.newClient(r)

	_, err := client.Profile(context.Background())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeSessionExpired))
	s.Empty(s.tokens.Token())
}

func (s *ClientSuite) TestRequestPasswordlessEncodesEmail() {
	r := chi.NewRouter()
	var got string
	r.Post("/api/v1/auth/passwordless/request", func(w http.ResponseWriter, req *http.Request) {
		got = req.URL.Query().Get("email")
		w.WriteHeader(http.StatusOK)
	})
	client, _ := s.newClient(r)

	s.Require().NoError(client.RequestPasswordless(context.Background(), "jo+finance@example.com"))
	s.Equal("jo+finance@example.com", got)
}

func (s *ClientSuite) TestMe() {
	s.Require().NoError(s.tokens.Set("tok", false))

	r := chi.NewRouter()
	r.Get("/api/v1/users/me/", func(w http.ResponseWriter, req *http.Request) {
		s.Equal("Bearer tok", req.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]any{
			"id":        7,
			"email":     "jo@example.com",
			"full_name": "Jo Ibe",
			"is_active": true,
		})
	})
	client, _ := s.newClient(r)

	user, err := client.Me(context.Background())
	s.Require().NoError(err)
	s.Equal(int64(7), user.ID)
	s.Equal("jo@example.com", user.Email)
	s.True(user.IsActive)
}

func (s *ClientSuite) TestRegister() {
	r := chi.NewRouter()
	r.Post("/api/v1/auth/register", func(w http.ResponseWriter, req *http.Request) {
		var in map[string]string
		s.Require().NoError(json.NewDecoder(req.Body).Decode(&in))
		s.Equal("jo@example.com", in["email"])
		s.Equal("Jo Ibe", in["full_name"])
		s.Equal("+2348000000000", in["phone_number"])
		writeJSON(w, http.StatusOK, map[string]any{
			"id":    42,
			"email": in["email"],
		})
	})
	client, _ := s.newClient(r)

	user, err := client.Register(context.Background(), models.Registration{
		Email:    "jo@example.com",
		Password: "hunter2",
		FullName: "Jo Ibe",
		Phone:    "+2348000000000",
	})
	s.Require().NoError(err)
	s.Equal(int64(42), user.ID)
}
