// Package requesttime provides context-scoped time.
// All operations within one logical flow step use the same "now" timestamp,
// ensuring consistency in lockout math, cooldowns, and expiry checks, and
// letting tests pin the clock without sleeping.
package requesttime

import (
	"context"
	"time"
)

type contextKeyRequestTime struct{}

// Now retrieves the scoped time from context.
// Falls back to time.Now() if not set (CLI commands, background timers).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(contextKeyRequestTime{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
// Useful for unit tests and for batch operations that need one consistent timestamp.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, contextKeyRequestTime{}, t)
}
