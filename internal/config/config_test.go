package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noEnvFile points Load at a file that does not exist, so a developer's .env
// in the package directory can't leak into the tests.
func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

// unset clears keys for the duration of the test. t.Setenv records the old
// value and restores it on cleanup; the Unsetenv makes the key truly absent.
func unset(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

var allKeys = []string{
	"PRIVY_APP_ID", "PRIVY_APP_SECRET", "PRIVY_VERIFICATION_KEY", "PRIVY_API_URL",
	"TWITTER_API_URL", "PORT", "STATIC_DIR", "STORE_DRIVER", "DB_PATH", "REDIS_ADDR",
	"REDIS_DB", "REDIS_PREFIX", "UPSTREAM_TIMEOUT", "TWEET_RATE_PER_MINUTE",
	"TWEET_BURST", "LOG_LEVEL", "LOG_FORMAT", "OTEL_ENDPOINT",
}

func TestLoad_Defaults(t *testing.T) {
	unset(t, allKeys...)
	t.Setenv("PRIVY_APP_ID", "app-id")
	t.Setenv("PRIVY_APP_SECRET", "app-secret")

	cfg, err := Load(noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, "app-id", cfg.PrivyAppID)
	assert.Equal(t, "https://auth.privy.io", cfg.PrivyAPIURL)
	assert.Equal(t, "https://api.twitter.com", cfg.TwitterAPIURL)
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "public", cfg.StaticDir)
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, "data/x-oauth.db", cfg.DBPath)
	assert.Equal(t, "xoauth:", cfg.RedisPrefix)
	assert.Equal(t, 30*time.Second, cfg.UpstreamTimeout)
	assert.Equal(t, 30, cfg.TweetRatePerMinute)
	assert.Equal(t, 5, cfg.TweetBurst)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
	assert.False(t, cfg.JSONLogs())
	assert.Empty(t, cfg.OTELEndpoint)
}

func TestLoad_Overrides(t *testing.T) {
	unset(t, allKeys...)
	t.Setenv("PRIVY_APP_ID", "app-id")
	t.Setenv("PRIVY_APP_SECRET", "app-secret")
	t.Setenv("PORT", "8081")
	t.Setenv("STORE_DRIVER", "redis")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("UPSTREAM_TIMEOUT", "5s")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load(noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Port)
	assert.Equal(t, DriverRedis, cfg.StoreDriver)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, 5*time.Second, cfg.UpstreamTimeout)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	assert.True(t, cfg.JSONLogs())
}

func TestLoad_MissingCredentials(t *testing.T) {
	unset(t, allKeys...)

	_, err := Load(noEnvFile(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PRIVY_APP_ID")
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name, key, value, want string
	}{
		{"bad driver", "STORE_DRIVER", "postgres", "STORE_DRIVER"},
		{"bad port", "PORT", "70000", "PORT"},
		{"bad level", "LOG_LEVEL", "loud", "LOG_LEVEL"},
		{"bad format", "LOG_FORMAT", "xml", "LOG_FORMAT"},
		{"zero burst", "TWEET_BURST", "0", "TWEET_BURST"},
		{"unparseable timeout", "UPSTREAM_TIMEOUT", "soon", "UpstreamTimeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unset(t, allKeys...)
			t.Setenv("PRIVY_APP_ID", "app-id")
			t.Setenv("PRIVY_APP_SECRET", "app-secret")
			t.Setenv(tt.key, tt.value)

			_, err := Load(noEnvFile(t))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_DotEnvFile(t *testing.T) {
	unset(t, allKeys...)
	t.Setenv("PORT", "9000") // the process environment wins over the file

	path := filepath.Join(t.TempDir(), ".env")
	content := "PRIVY_APP_ID=from-file\nPRIVY_APP_SECRET=file-secret\nPORT=1234\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.PrivyAppID)
	assert.Equal(t, "file-secret", cfg.PrivyAppSecret)
	assert.Equal(t, 9000, cfg.Port)
}
