package logger

import (
	"log/slog"
	"os"
)

// New returns a structured JSON logger using slog.
func New() *slog.Logger {
	return NewWithLevel(slog.LevelInfo)
}

// NewWithLevel returns a structured JSON logger at the given level.
func NewWithLevel(level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: level,
	}
	handler := slog.NewJSONHandler(os.Stderr, opts)
	return slog.New(handler)
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
