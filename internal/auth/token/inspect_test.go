package token

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"

	"atlas/pkg/platform/requesttime"
)

type InspectSuite struct {
	suite.Suite
	now time.Time
	ctx context.Context
}

func TestInspectSuite(t *testing.T) {
	suite.Run(t, new(InspectSuite))
}

func (s *InspectSuite) SetupTest() {
	s.now = time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	s.ctx = requesttime.WithTime(context.Background(), s.now)
}

func (s *InspectSuite) signed(claims jwt.MapClaims) string {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	raw, err := tok.SignedString([]byte("test-key"))
	s.Require().NoError(err)
	return raw
}

func (s *InspectSuite) TestDecodeClaims() {
	s.Run("reads subject and expiry without verification", func() {
		raw := s.signed(jwt.MapClaims{"sub": "42", "exp": s.now.Add(time.Hour).Unix()})
		claims, err := DecodeClaims(raw)
		s.Require().NoError(err)
		s.Equal("42", claims.Subject)
		s.Require().NotNil(claims.ExpiresAt)
		s.Equal(s.now.Add(time.Hour).Unix(), claims.ExpiresAt.Unix())
	})

	s.Run("malformed token fails", func() {
		_, err := DecodeClaims("not-a-jwt")
		s.Error(err)
	})
}

func (s *InspectSuite) TestIsExpired() {
	s.Run("future expiry is not expired", func() {
		raw := s.signed(jwt.MapClaims{"exp": s.now.Add(time.Hour).Unix()})
		s.False(IsExpired(s.ctx, raw))
	})

	s.Run("past expiry is expired", func() {
		raw := s.signed(jwt.MapClaims{"exp": s.now.Add(-time.Second).Unix()})
		s.True(IsExpired(s.ctx, raw))
	})

	s.Run("missing expiry counts as expired", func() {
		raw := s.signed(jwt.MapClaims{"sub": "42"})
		s.True(IsExpired(s.ctx, raw))
	})

	s.Run("undecodable token counts as expired", func() {
		s.True(IsExpired(s.ctx, "garbage"))
	})
}

func (s *InspectSuite) TestExpiresIn() {
	raw := s.signed(jwt.MapClaims{"exp": s.now.Add(30 * time.Minute).Unix()})
	s.Equal(30*time.Minute, ExpiresIn(s.ctx, raw))

	expired := s.signed(jwt.MapClaims{"exp": s.now.Add(-time.Minute).Unix()})
	s.Equal(time.Duration(0), ExpiresIn(s.ctx, expired))
}

func (s *InspectSuite) TestExpiresSoon() {
	s.Run("inside threshold", func() {
		raw := s.signed(jwt.MapClaims{"exp": s.now.Add(2 * time.Minute).Unix()})
		s.True(ExpiresSoon(s.ctx, raw, 0))
	})

	s.Run("outside threshold", func() {
		raw := s.signed(jwt.MapClaims{"exp": s.now.Add(time.Hour).Unix()})
		s.False(ExpiresSoon(s.ctx, raw, 0))
	})

	s.Run("already expired is not soon", func() {
		raw := s.signed(jwt.MapClaims{"exp": s.now.Add(-time.Minute).Unix()})
		s.False(ExpiresSoon(s.ctx, raw, 0))
	})
}
