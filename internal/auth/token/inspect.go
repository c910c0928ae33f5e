package token

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"atlas/pkg/platform/requesttime"
)

// DefaultExpirySoonThreshold is how close to expiry a token must be
// for ExpiresSoon to flag it.
const DefaultExpirySoonThreshold = 5 * time.Minute

// Claims is the subset of JWT claims the client inspects. The token is
// never verified here: signature validation is the server's job, the
// client only reads expiry and subject for scheduling.
type Claims struct {
	Subject   string
	ExpiresAt *time.Time
}

// DecodeClaims parses the token payload without verifying the
// signature. Malformed tokens return an error.
func DecodeClaims(raw string) (*Claims, error) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return nil, err
	}

	out := &Claims{}
	if sub, err := claims.GetSubject(); err == nil {
		out.Subject = sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		t := exp.Time
		out.ExpiresAt = &t
	}
	return out, nil
}

// IsExpired reports whether the token has expired. Tokens that cannot
// be decoded or carry no expiry are treated as expired.
func IsExpired(ctx context.Context, raw string) bool {
	claims, err := DecodeClaims(raw)
	if err != nil || claims.ExpiresAt == nil {
		return true
	}
	return !requesttime.Now(ctx).Before(*claims.ExpiresAt)
}

// ExpiresIn returns the time until expiry, clamped at zero.
func ExpiresIn(ctx context.Context, raw string) time.Duration {
	claims, err := DecodeClaims(raw)
	if err != nil || claims.ExpiresAt == nil {
		return 0
	}
	remaining := claims.ExpiresAt.Sub(requesttime.Now(ctx))
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ExpirationTime returns the token's expiry timestamp, or nil when the
// token is undecodable or carries none.
func ExpirationTime(raw string) *time.Time {
	claims, err := DecodeClaims(raw)
	if err != nil {
		return nil
	}
	return claims.ExpiresAt
}

// ExpiresSoon reports whether the token is still valid but within
// threshold of expiring. A zero threshold uses the default.
func ExpiresSoon(ctx context.Context, raw string, threshold time.Duration) bool {
	if threshold <= 0 {
		threshold = DefaultExpirySoonThreshold
	}
	remaining := ExpiresIn(ctx, raw)
	return remaining > 0 && remaining <= threshold
}
