package config

import (
	"github.com/mauv0809/crispy-broccoli/internal/ingest"
	"github.com/mauv0809/crispy-broccoli/internal/scanner"
	"github.com/mauv0809/crispy-broccoli/internal/scoring"
)

// NewDefaultConfig creates a configuration with default values.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
			Host: "",
		},
		Database: DatabaseConfig{
			RunMigrations: true,
		},
		Provider: ProviderConfig{
			BootstrapURL:    ingest.DefaultBootstrapURL,
			CrumbURL:        ingest.DefaultCrumbURL,
			QuoteSummaryURL: ingest.DefaultQuoteSummaryURL,
			ScreenerURL:     ingest.DefaultScreenerURL,
			UserAgent:       ingest.DefaultUserAgent,
			TimeoutSeconds:  30,
		},
		Retry: RetryConfig{
			MaxAttempts: 7,
			BaseDelayMS: 400,
			MaxDelayMS:  30000,
			MaxJitterMS: 250,
		},
		Discovery: DiscoveryConfig{
			TargetCount: 3000,
			PageSize:    ingest.MaxPageSize,
			Region:      "US",
			QuoteType:   "equity",
		},
		Screen: ScreenConfig{
			MinMarketCap: scoring.DefaultMinMarketCap,
			ExcludeOTC:   true,
			Concurrency:  scanner.DefaultConcurrency,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
