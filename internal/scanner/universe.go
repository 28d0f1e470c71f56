package scanner

import (
	"context"
	"fmt"

	"github.com/phuslu/log"

	"github.com/mauv0809/crispy-broccoli/internal/ingest"
	"github.com/mauv0809/crispy-broccoli/internal/logging"
)

// Discoverer finds symbols through the provider screener.
type Discoverer interface {
	DiscoverQuotes(ctx context.Context, opts ingest.DiscoverOptions) ([]ingest.ScreenerQuote, error)
}

// UniverseStore caches the discovered universe between runs.
type UniverseStore interface {
	UpsertCompanies(ctx context.Context, quotes []ingest.ScreenerQuote) (int, error)
	GetAllTickers(ctx context.Context) ([]string, error)
}

// Universe resolves the symbol list for a scan, from the cache when allowed
// and populated, otherwise from a fresh crawl.
type Universe struct {
	discoverer Discoverer
	store      UniverseStore
	opts       ingest.DiscoverOptions
	useCache   bool
	logger     *log.Logger
}

// NewUniverse creates a universe resolver. store may be nil.
func NewUniverse(discoverer Discoverer, store UniverseStore, opts ingest.DiscoverOptions, useCache bool, logger *log.Logger) *Universe {
	return &Universe{
		discoverer: discoverer,
		store:      store,
		opts:       opts,
		useCache:   useCache,
		logger:     logging.OrDefault(logger),
	}
}

// Options returns the discovery options.
func (u *Universe) Options() ingest.DiscoverOptions {
	return u.opts
}

// Symbols returns at most TargetCount symbols, largest first.
func (u *Universe) Symbols(ctx context.Context) ([]string, error) {
	if u.useCache && u.store != nil {
		tickers, err := u.store.GetAllTickers(ctx)
		if err != nil {
			u.logger.Warn().Err(err).Msg("Reading cached universe failed, crawling instead")
		} else if len(tickers) > 0 {
			if u.opts.TargetCount > 0 && len(tickers) > u.opts.TargetCount {
				tickers = tickers[:u.opts.TargetCount]
			}
			u.logger.Info().Int("symbols", len(tickers)).Msg("Using cached universe")
			return tickers, nil
		}
	}

	quotes, err := u.Refresh(ctx)
	if err != nil {
		return nil, err
	}

	symbols := make([]string, 0, len(quotes))
	for _, q := range quotes {
		symbols = append(symbols, q.Symbol)
	}
	return symbols, nil
}

// Refresh crawls the screener and, when a store is configured, upserts the
// result. A failing store is logged; the crawl result is still returned.
func (u *Universe) Refresh(ctx context.Context) ([]ingest.ScreenerQuote, error) {
	quotes, err := u.discoverer.DiscoverQuotes(ctx, u.opts)
	if err != nil {
		return nil, fmt.Errorf("discovering universe: %w", err)
	}

	if u.store != nil && len(quotes) > 0 {
		count, err := u.store.UpsertCompanies(ctx, quotes)
		if err != nil {
			u.logger.Warn().Err(err).Msg("Caching universe failed")
		} else {
			u.logger.Info().Int("companies", count).Msg("Universe cached")
		}
	}

	return quotes, nil
}
