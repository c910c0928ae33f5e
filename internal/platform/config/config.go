package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything the client core needs: where the backend
// lives, how aggressively to lock out failed logins, and where tokens
// may be persisted when the user opts into "remember me".
type Config struct {
	API       API       `yaml:"api"`
	RateLimit RateLimit `yaml:"rate_limit"`
	Token     Token     `yaml:"token"`
	Log       Log       `yaml:"log"`
}

// API captures backend connection settings.
type API struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// RateLimit configures the client-side login attempt limiter.
// This is a deterrent only; the server enforces its own limits.
type RateLimit struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	LockoutDuration time.Duration `yaml:"lockout_duration"`
	StorageKey      string        `yaml:"storage_key"`
	// File persists limiter state across runs. Empty keeps it in
	// memory only.
	File string `yaml:"file"`
}

// Token configures token persistence and the expiry monitor leeways.
type Token struct {
	File          string        `yaml:"file"`
	RefreshLeeway time.Duration `yaml:"refresh_leeway"`
	WarningLeeway time.Duration `yaml:"warning_leeway"`
}

// Log configures logging output.
type Log struct {
	Level string `yaml:"level"`
}

// Default returns a config with all defaults applied.
func Default() Config {
	return Config{
		API: API{
			BaseURL: "http://localhost:8000",
			Timeout: 30 * time.Second,
		},
		RateLimit: RateLimit{
			MaxAttempts:     5,
			LockoutDuration: 15 * time.Minute,
			StorageKey:      "auth_rate_limit",
		},
		Token: Token{
			RefreshLeeway: time.Minute,
			WarningLeeway: 5 * time.Minute,
		},
		Log: Log{Level: "info"},
	}
}

// Load builds a Config from defaults, an optional YAML file, and
// environment overrides, in that order. An empty path means "env only"
// unless ATLAS_CONFIG points at a file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("ATLAS_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("ATLAS_API_BASE_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("ATLAS_API_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.API.Timeout = d
		}
	}
	if v := os.Getenv("ATLAS_LOCKOUT_DURATION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RateLimit.LockoutDuration = d
		}
	}
	if v := os.Getenv("ATLAS_RATE_LIMIT_FILE"); v != "" {
		cfg.RateLimit.File = v
	}
	if v := os.Getenv("ATLAS_TOKEN_FILE"); v != "" {
		cfg.Token.File = v
	}
	if v := os.Getenv("ATLAS_TOKEN_WARNING_LEEWAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Token.WarningLeeway = d
		}
	}
	if v := os.Getenv("ATLAS_TOKEN_REFRESH_LEEWAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Token.RefreshLeeway = d
		}
	}
	if v := os.Getenv("ATLAS_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}
