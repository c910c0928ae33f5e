package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("defaults without file or env", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		require.Equal(t, "http://localhost:8000", cfg.API.BaseURL)
		require.Equal(t, 5, cfg.RateLimit.MaxAttempts)
		require.Equal(t, 15*time.Minute, cfg.RateLimit.LockoutDuration)
		require.Equal(t, "auth_rate_limit", cfg.RateLimit.StorageKey)
	})

	t.Run("yaml file overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "atlas.yaml")
		require.NoError(t, os.WriteFile(path, []byte(
			"api:\n  base_url: https://erp.example.com\nrate_limit:\n  max_attempts: 3\n"), 0o600))

		cfg, err := Load(path)
		require.NoError(t, err)
		require.Equal(t, "https://erp.example.com", cfg.API.BaseURL)
		require.Equal(t, 3, cfg.RateLimit.MaxAttempts)
		// untouched values keep defaults
		require.Equal(t, 15*time.Minute, cfg.RateLimit.LockoutDuration)
	})

	t.Run("env overrides file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "atlas.yaml")
		require.NoError(t, os.WriteFile(path, []byte("api:\n  base_url: https://file.example.com\n"), 0o600))
		t.Setenv("ATLAS_API_BASE_URL", "https://env.example.com")
		t.Setenv("ATLAS_API_TIMEOUT", "5s")

		cfg, err := Load(path)
		require.NoError(t, err)
		require.Equal(t, "https://env.example.com", cfg.API.BaseURL)
		require.Equal(t, 5*time.Second, cfg.API.Timeout)
	})

	t.Run("env overrides monitor leeways", func(t *testing.T) {
		t.Setenv("ATLAS_TOKEN_WARNING_LEEWAY", "10m")
		t.Setenv("ATLAS_TOKEN_REFRESH_LEEWAY", "30s")

		cfg, err := Load("")
		require.NoError(t, err)
		require.Equal(t, 10*time.Minute, cfg.Token.WarningLeeway)
		require.Equal(t, 30*time.Second, cfg.Token.RefreshLeeway)
	})

	t.Run("missing file fails", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})
}
