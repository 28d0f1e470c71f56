// Package config loads screener settings from defaults, TOML files, a .env
// file and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/phuslu/log"

	"github.com/mauv0809/crispy-broccoli/internal/ingest"
	"github.com/mauv0809/crispy-broccoli/internal/scoring"
)

// Config represents the application configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	Provider  ProviderConfig  `toml:"provider"`
	Retry     RetryConfig     `toml:"retry"`
	Discovery DiscoveryConfig `toml:"discovery"`
	Screen    ScreenConfig    `toml:"screen"`
	Logging   LoggingConfig   `toml:"logging"`
}

// ServerConfig contains admin HTTP server settings.
type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

// DatabaseConfig contains universe cache settings. An empty URL disables the
// cache.
type DatabaseConfig struct {
	URL           string `toml:"url"`
	RunMigrations bool   `toml:"run_migrations"`
}

// ProviderConfig contains endpoint and transport settings.
type ProviderConfig struct {
	BootstrapURL      string  `toml:"bootstrap_url"`
	CrumbURL          string  `toml:"crumb_url"`
	QuoteSummaryURL   string  `toml:"quote_summary_url"`
	ScreenerURL       string  `toml:"screener_url"`
	UserAgent         string  `toml:"user_agent"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// RetryConfig bounds retries of 429 and 5xx responses. Durations are in
// milliseconds.
type RetryConfig struct {
	MaxAttempts int `toml:"max_attempts"`
	BaseDelayMS int `toml:"base_delay_ms"`
	MaxDelayMS  int `toml:"max_delay_ms"`
	MaxJitterMS int `toml:"max_jitter_ms"`
}

// DiscoveryConfig configures the screener crawl.
type DiscoveryConfig struct {
	TargetCount int    `toml:"target_count"`
	PageSize    int    `toml:"page_size"`
	Region      string `toml:"region"`
	QuoteType   string `toml:"quote_type"`
	UseCache    bool   `toml:"use_cache"`
}

// ScreenConfig configures the scoring engine and worker pool.
type ScreenConfig struct {
	MinMarketCap float64 `toml:"min_market_cap"`
	ExcludeOTC   bool    `toml:"exclude_otc"`
	ExcludeChina bool    `toml:"exclude_china"`
	Concurrency  int     `toml:"concurrency"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// LoadFromFiles loads configuration with priority:
// defaults -> file1 -> file2 -> ... -> .env -> env.
// Later files override earlier files. A missing .env is not an error.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		err = toml.Unmarshal(data, config)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	// Existing environment variables win over .env entries.
	_ = godotenv.Load()

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies SCREENER_* environment variable overrides, plus
// the conventional DATABASE_URL and PORT.
func applyEnvOverrides(config *Config) {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		config.Database.URL = dsn
	}
	if dsn := os.Getenv("SCREENER_DATABASE_URL"); dsn != "" {
		config.Database.URL = dsn
	}
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if port := os.Getenv("SCREENER_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("SCREENER_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if ua := os.Getenv("SCREENER_USER_AGENT"); ua != "" {
		config.Provider.UserAgent = ua
	}
	if rps := os.Getenv("SCREENER_REQUESTS_PER_SECOND"); rps != "" {
		if f, err := strconv.ParseFloat(rps, 64); err == nil {
			config.Provider.RequestsPerSecond = f
		}
	}
	if n := os.Getenv("SCREENER_TARGET_COUNT"); n != "" {
		if v, err := strconv.Atoi(n); err == nil {
			config.Discovery.TargetCount = v
		}
	}
	if region := os.Getenv("SCREENER_REGION"); region != "" {
		config.Discovery.Region = region
	}
	if useCache := os.Getenv("SCREENER_USE_CACHE"); useCache != "" {
		if b, err := strconv.ParseBool(useCache); err == nil {
			config.Discovery.UseCache = b
		}
	}
	if n := os.Getenv("SCREENER_CONCURRENCY"); n != "" {
		if v, err := strconv.Atoi(n); err == nil {
			config.Screen.Concurrency = v
		}
	}
	if mcap := os.Getenv("SCREENER_MIN_MARKET_CAP"); mcap != "" {
		if f, err := strconv.ParseFloat(mcap, 64); err == nil {
			config.Screen.MinMarketCap = f
		}
	}
	if v := os.Getenv("SCREENER_EXCLUDE_CHINA"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.Screen.ExcludeChina = b
		}
	}
	if v := os.Getenv("SCREENER_EXCLUDE_OTC"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.Screen.ExcludeOTC = b
		}
	}
	if level := os.Getenv("SCREENER_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("SCREENER_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
}

// Validate rejects settings the screener cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry.max_attempts must be at least 1"))
	}
	if c.Retry.BaseDelayMS < 0 || c.Retry.MaxDelayMS < 0 || c.Retry.MaxJitterMS < 0 {
		errs = append(errs, errors.New("retry delays must not be negative"))
	}
	if c.Retry.MaxDelayMS < c.Retry.BaseDelayMS {
		errs = append(errs, errors.New("retry.max_delay_ms must not be below retry.base_delay_ms"))
	}
	if c.Discovery.TargetCount < 0 {
		errs = append(errs, errors.New("discovery.target_count must not be negative"))
	}
	if c.Discovery.PageSize < 1 || c.Discovery.PageSize > ingest.MaxPageSize {
		errs = append(errs, fmt.Errorf("discovery.page_size must be between 1 and %d", ingest.MaxPageSize))
	}
	if c.Screen.Concurrency < 1 {
		errs = append(errs, errors.New("screen.concurrency must be at least 1"))
	}
	if c.Screen.MinMarketCap < 0 {
		errs = append(errs, errors.New("screen.min_market_cap must not be negative"))
	}
	if c.Provider.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("provider.requests_per_second must not be negative"))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "console", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q not supported", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// RetryPolicy converts the retry section.
func (c *Config) RetryPolicy() ingest.RetryPolicy {
	return ingest.RetryPolicy{
		MaxAttempts: c.Retry.MaxAttempts,
		BaseDelay:   time.Duration(c.Retry.BaseDelayMS) * time.Millisecond,
		MaxDelay:    time.Duration(c.Retry.MaxDelayMS) * time.Millisecond,
		MaxJitter:   time.Duration(c.Retry.MaxJitterMS) * time.Millisecond,
	}
}

// SessionOptions converts the provider section for ingest.NewSession.
func (c *Config) SessionOptions(logger *log.Logger) []ingest.SessionOption {
	return []ingest.SessionOption{
		ingest.WithBootstrapURL(c.Provider.BootstrapURL),
		ingest.WithCrumbURL(c.Provider.CrumbURL),
		ingest.WithUserAgent(c.Provider.UserAgent),
		ingest.WithTimeout(c.Timeout()),
		ingest.WithSessionLogger(logger),
	}
}

// ClientOptions converts the provider and retry sections for
// ingest.NewClient.
func (c *Config) ClientOptions(logger *log.Logger) []ingest.ClientOption {
	return []ingest.ClientOption{
		ingest.WithQuoteSummaryURL(c.Provider.QuoteSummaryURL),
		ingest.WithScreenerURL(c.Provider.ScreenerURL),
		ingest.WithRetryPolicy(c.RetryPolicy()),
		ingest.WithRateLimit(c.Provider.RequestsPerSecond),
		ingest.WithLogger(logger),
	}
}

// DiscoverOptions converts the discovery section.
func (c *Config) DiscoverOptions() ingest.DiscoverOptions {
	return ingest.DiscoverOptions{
		TargetCount: c.Discovery.TargetCount,
		PageSize:    c.Discovery.PageSize,
		Region:      c.Discovery.Region,
		QuoteType:   c.Discovery.QuoteType,
	}
}

// ScoringConfig converts the screen section.
func (c *Config) ScoringConfig() scoring.Config {
	return scoring.Config{
		MinMarketCap: c.Screen.MinMarketCap,
		ExcludeOTC:   c.Screen.ExcludeOTC,
		ExcludeChina: c.Screen.ExcludeChina,
	}
}

// Timeout returns the per-request provider timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Provider.TimeoutSeconds) * time.Second
}

// Addr returns the admin server listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
