// Command scan runs one screening pass over the universe and prints the
// investable candidates.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/phuslu/log"

	"github.com/mauv0809/crispy-broccoli/internal/config"
	"github.com/mauv0809/crispy-broccoli/internal/db"
	"github.com/mauv0809/crispy-broccoli/internal/ingest"
	"github.com/mauv0809/crispy-broccoli/internal/logging"
	"github.com/mauv0809/crispy-broccoli/internal/models"
	"github.com/mauv0809/crispy-broccoli/internal/scanner"
	"github.com/mauv0809/crispy-broccoli/internal/scoring"
)

func main() {
	var (
		configPath      = flag.String("config", "", "path to a TOML config file")
		tickers         = flag.String("tickers", "", "comma-separated tickers to scan instead of the universe")
		limit           = flag.Int("limit", 0, "scan at most this many symbols")
		includeRejected = flag.Bool("all", false, "list rejected symbols too")
		asJSON          = flag.Bool("json", false, "print results as JSON")
	)
	flag.Parse()

	cfg, err := config.LoadFromFiles(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Loading config failed")
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("Invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := ingest.NewSession(cfg.SessionOptions(logger)...)
	if err != nil {
		logger.Fatal().Err(err).Msg("Creating provider session failed")
	}
	if err := session.Initialize(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Provider authentication failed")
	}

	client := ingest.NewClient(session, cfg.ClientOptions(logger)...)
	engine := scoring.NewEngine(cfg.ScoringConfig())
	sc := scanner.New(client, engine, cfg.Screen.Concurrency, logger)

	symbols := splitTickers(*tickers)
	if len(symbols) == 0 {
		var store scanner.UniverseStore
		if cfg.Database.URL != "" {
			pool, err := db.Connect(ctx, cfg.Database.URL)
			if err != nil {
				logger.Warn().Err(err).Msg("Could not connect to database, crawling without cache")
			} else {
				defer pool.Close()
				store = db.NewRepository(pool)
			}
		}

		universe := scanner.NewUniverse(ingest.NewCrawler(client, logger), store, cfg.DiscoverOptions(), cfg.Discovery.UseCache, logger)
		symbols, err = universe.Symbols(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("Resolving universe failed")
		}
	}
	if *limit > 0 && len(symbols) > *limit {
		symbols = symbols[:*limit]
	}
	if len(symbols) == 0 {
		logger.Fatal().Msg("No symbols to scan")
	}

	report, err := sc.Run(ctx, symbols)
	if err != nil {
		logger.Warn().Err(err).Msg("Scan interrupted, printing partial results")
	}

	results := report.Candidates()
	if *includeRejected {
		results = report.Results
	}

	logger.Info().Int("candidates", len(report.Candidates())).Msg("Investable candidates found")

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(jsonRows(results)); err != nil {
			logger.Fatal().Err(err).Msg("Encoding results failed")
		}
		return
	}

	if err := writeTable(os.Stdout, results); err != nil {
		logger.Fatal().Err(err).Msg("Writing results failed")
	}
}

func splitTickers(param string) []string {
	var out []string
	for _, p := range strings.Split(param, ",") {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// jsonRow is the JSON output of one result. Leverage is left out because it
// is infinite whenever EBITDA is not positive.
type jsonRow struct {
	Symbol         string   `json:"symbol"`
	Name           string   `json:"name"`
	Score          int      `json:"score"`
	Recommendation string   `json:"recommendation"`
	RejectedBy     string   `json:"rejected_by,omitempty"`
	Reasons        []string `json:"reasons,omitempty"`
	PEGRatio       float64  `json:"peg_ratio"`
	EPSGrowth5Y    float64  `json:"eps_growth_5y"`
	ReturnOnEquity float64  `json:"return_on_equity"`
	ForwardPE      float64  `json:"forward_pe"`
}

func jsonRows(results []models.AnalysisResult) []jsonRow {
	rows := make([]jsonRow, 0, len(results))
	for _, r := range results {
		q := r.Quote
		rows = append(rows, jsonRow{
			Symbol:         q.Symbol,
			Name:           q.ShortName,
			Score:          r.Score,
			Recommendation: string(r.Recommendation),
			RejectedBy:     r.RejectedBy,
			Reasons:        r.Reasons,
			PEGRatio:       finiteOrZero(q.PEGRatio),
			EPSGrowth5Y:    finiteOrZero(q.EPSGrowth5Y),
			ReturnOnEquity: finiteOrZero(q.ReturnOnEquity),
			ForwardPE:      finiteOrZero(q.ForwardPE),
		})
	}
	return rows
}
