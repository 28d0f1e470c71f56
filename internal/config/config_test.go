package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mauv0809/crispy-broccoli/internal/ingest"
)

// clearEnv blanks the overrides a developer shell may carry.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"DATABASE_URL", "PORT", "SCREENER_SERVER_PORT", "SCREENER_CONCURRENCY", "SCREENER_DATABASE_URL"} {
		t.Setenv(key, "")
	}
}

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 3000, cfg.Discovery.TargetCount)
	assert.Equal(t, 250, cfg.Discovery.PageSize)
	assert.Equal(t, "US", cfg.Discovery.Region)
	assert.Equal(t, 16, cfg.Screen.Concurrency)
	assert.Equal(t, 2e9, cfg.Screen.MinMarketCap)
	assert.True(t, cfg.Screen.ExcludeOTC)
	assert.False(t, cfg.Screen.ExcludeChina)
	assert.Empty(t, cfg.Database.URL)
	require.NoError(t, cfg.Validate())
}

func TestDefaultRetryPolicyMatchesIngest(t *testing.T) {
	assert.Equal(t, ingest.DefaultRetryPolicy(), NewDefaultConfig().RetryPolicy())
}

func TestLoadFromFiles_NoFiles(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadFromFiles()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadFromFiles_ValidTOML(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	tomlPath := filepath.Join(dir, "screener.toml")

	content := `
[server]
port = 9090

[retry]
max_attempts = 3
base_delay_ms = 100
max_delay_ms = 1000

[discovery]
target_count = 500
region = "GB"
use_cache = true

[screen]
min_market_cap = 5e9
exclude_china = true
concurrency = 4

[logging]
level = "debug"
format = "json"
`
	require.NoError(t, os.WriteFile(tomlPath, []byte(content), 0644))

	cfg, err := LoadFromFiles(tomlPath)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 500, cfg.Discovery.TargetCount)
	assert.Equal(t, "GB", cfg.Discovery.Region)
	assert.True(t, cfg.Discovery.UseCache)
	assert.Equal(t, 5e9, cfg.Screen.MinMarketCap)
	assert.True(t, cfg.Screen.ExcludeChina)
	assert.Equal(t, 4, cfg.Screen.Concurrency)
	assert.Equal(t, "json", cfg.Logging.Format)

	// Untouched keys keep their defaults.
	assert.Equal(t, 250, cfg.Discovery.PageSize)
	assert.Equal(t, 250, cfg.Retry.MaxJitterMS)

	policy := cfg.RetryPolicy()
	assert.Equal(t, 3, policy.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, policy.BaseDelay)
	assert.Equal(t, time.Second, policy.MaxDelay)
}

func TestLoadFromFiles_LaterFileWins(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	base := filepath.Join(dir, "base.toml")
	local := filepath.Join(dir, "local.toml")

	require.NoError(t, os.WriteFile(base, []byte("[screen]\nconcurrency = 4\n[discovery]\nregion = \"DE\"\n"), 0644))
	require.NoError(t, os.WriteFile(local, []byte("[screen]\nconcurrency = 8\n"), 0644))

	cfg, err := LoadFromFiles(base, local)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Screen.Concurrency)
	assert.Equal(t, "DE", cfg.Discovery.Region)
}

func TestLoadFromFiles_MissingFile(t *testing.T) {
	_, err := LoadFromFiles(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoadFromFiles_InvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[screen\nconcurrency = "), 0644))

	_, err := LoadFromFiles(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/screener")
	t.Setenv("PORT", "7000")
	t.Setenv("SCREENER_CONCURRENCY", "32")
	t.Setenv("SCREENER_TARGET_COUNT", "100")
	t.Setenv("SCREENER_USE_CACHE", "true")
	t.Setenv("SCREENER_EXCLUDE_CHINA", "1")
	t.Setenv("SCREENER_EXCLUDE_OTC", "false")
	t.Setenv("SCREENER_MIN_MARKET_CAP", "10000000000")
	t.Setenv("SCREENER_LOG_LEVEL", "warn")

	cfg, err := LoadFromFiles()
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/screener", cfg.Database.URL)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, 32, cfg.Screen.Concurrency)
	assert.Equal(t, 100, cfg.Discovery.TargetCount)
	assert.True(t, cfg.Discovery.UseCache)
	assert.True(t, cfg.Screen.ExcludeChina)
	assert.False(t, cfg.Screen.ExcludeOTC)
	assert.Equal(t, 1e10, cfg.Screen.MinMarketCap)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestEnvOverrides_PrefixedWinsOverConventional(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "7000")
	t.Setenv("SCREENER_SERVER_PORT", "7100")

	cfg, err := LoadFromFiles()
	require.NoError(t, err)
	assert.Equal(t, 7100, cfg.Server.Port)
}

func TestEnvOverrides_InvalidValuesIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv("SCREENER_CONCURRENCY", "lots")
	t.Setenv("SCREENER_EXCLUDE_OTC", "maybe")

	cfg, err := LoadFromFiles()
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Screen.Concurrency)
	assert.True(t, cfg.Screen.ExcludeOTC)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }},
		{"max delay below base", func(c *Config) { c.Retry.MaxDelayMS = 10 }},
		{"negative jitter", func(c *Config) { c.Retry.MaxJitterMS = -1 }},
		{"page too large", func(c *Config) { c.Discovery.PageSize = 1000 }},
		{"zero concurrency", func(c *Config) { c.Screen.Concurrency = 0 }},
		{"negative market cap", func(c *Config) { c.Screen.MinMarketCap = -1 }},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConversions(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Screen.ExcludeChina = true

	opts := cfg.DiscoverOptions()
	assert.Equal(t, 3000, opts.TargetCount)
	assert.Equal(t, "equity", opts.QuoteType)

	sc := cfg.ScoringConfig()
	assert.True(t, sc.ExcludeChina)
	assert.True(t, sc.ExcludeOTC)

	assert.Equal(t, 30*time.Second, cfg.Timeout())
	assert.Equal(t, ":8080", cfg.Addr())
}

func TestProviderOptions(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.Len(t, cfg.SessionOptions(nil), 5)
	assert.Len(t, cfg.ClientOptions(nil), 5)

	session, err := ingest.NewSession(cfg.SessionOptions(nil)...)
	require.NoError(t, err)
	assert.Empty(t, session.Crumb())

	client := ingest.NewClient(session, cfg.ClientOptions(nil)...)
	assert.Same(t, session, client.Session())
}
