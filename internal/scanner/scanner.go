// Package scanner fans a symbol list out over a bounded worker pool, running
// fetch, extract and score for each symbol independently.
package scanner

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/phuslu/log"
	"golang.org/x/sync/errgroup"

	"github.com/mauv0809/crispy-broccoli/internal/ingest"
	"github.com/mauv0809/crispy-broccoli/internal/logging"
	"github.com/mauv0809/crispy-broccoli/internal/models"
	"github.com/mauv0809/crispy-broccoli/internal/observability"
)

// DefaultConcurrency balances throughput against provider rate limiting.
const DefaultConcurrency = 16

const progressEvery = 25

// QuoteSource fetches the raw fundamentals document for a symbol. ok is
// false for a soft miss.
type QuoteSource interface {
	FetchQuoteSummary(ctx context.Context, symbol string) (body []byte, ok bool, err error)
}

// Analyzer scores a normalized quote.
type Analyzer interface {
	Analyze(q *models.Quote) models.AnalysisResult
}

// Scanner runs the per-symbol pipeline with bounded concurrency.
type Scanner struct {
	source      QuoteSource
	analyzer    Analyzer
	concurrency int
	logger      *log.Logger
}

// New creates a scanner. A concurrency below 1 uses DefaultConcurrency.
func New(source QuoteSource, analyzer Analyzer, concurrency int, logger *log.Logger) *Scanner {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Scanner{
		source:      source,
		analyzer:    analyzer,
		concurrency: concurrency,
		logger:      logging.OrDefault(logger),
	}
}

// Report is the outcome of one scan.
type Report struct {
	ScanID    string                  `json:"scan_id"`
	StartedAt time.Time               `json:"started_at"`
	Elapsed   time.Duration           `json:"elapsed"`
	Total     int                     `json:"total"`
	Processed int                     `json:"processed"`
	Skipped   int                     `json:"skipped"`
	Results   []models.AnalysisResult `json:"results"`
}

// Candidates returns the non-rejected results, best score first.
func (r *Report) Candidates() []models.AnalysisResult {
	out := make([]models.AnalysisResult, 0, len(r.Results))
	for _, res := range r.Results {
		if !res.Rejected {
			out = append(out, res)
		}
	}
	return out
}

// Run scans every symbol. A failing symbol is logged and skipped; it never
// stops its siblings. Run returns an error only when ctx ends before every
// symbol was dispatched, alongside the partial report.
func (s *Scanner) Run(ctx context.Context, symbols []string) (*Report, error) {
	report := &Report{
		ScanID:    uuid.NewString(),
		StartedAt: time.Now(),
		Total:     len(symbols),
	}
	logger := s.logger

	logger.Info().
		Str("scan_id", report.ScanID).
		Int("symbols", len(symbols)).
		Int("concurrency", s.concurrency).
		Msg("Starting scan")

	var (
		mu        sync.Mutex
		results   = make([]models.AnalysisResult, 0, len(symbols))
		processed atomic.Int64
		skipped   atomic.Int64
	)

	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)

	for _, symbol := range symbols {
		if ctx.Err() != nil {
			break
		}

		symbol := symbol
		g.Go(func() error {
			result, ok := s.scanSymbol(ctx, report.ScanID, symbol)

			n := processed.Add(1)
			if n%progressEvery == 0 {
				logger.Info().
					Str("scan_id", report.ScanID).
					Int64("processed", n).
					Int("total", len(symbols)).
					Msg("Scan progress")
			}

			if !ok {
				skipped.Add(1)
				return nil
			}

			mu.Lock()
			results = append(results, result)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	SortResults(results)

	report.Results = results
	report.Processed = int(processed.Load())
	report.Skipped = int(skipped.Load())
	report.Elapsed = time.Since(report.StartedAt)

	status := "ok"
	err := ctx.Err()
	if err != nil {
		status = "cancelled"
	}
	observability.RecordScan(status, report.Elapsed.Seconds(), time.Now().Unix())

	logger.Info().
		Str("scan_id", report.ScanID).
		Dur("elapsed", report.Elapsed).
		Int("processed", report.Processed).
		Int("total", report.Total).
		Int("skipped", report.Skipped).
		Int("candidates", len(report.Candidates())).
		Msg("Scan complete")

	if err != nil {
		return report, fmt.Errorf("scan %s interrupted: %w", report.ScanID, err)
	}
	return report, nil
}

// Analyze runs the pipeline for a single symbol and reports why it was
// skipped, if it was.
func (s *Scanner) Analyze(ctx context.Context, symbol string) (models.AnalysisResult, error) {
	body, ok, err := s.source.FetchQuoteSummary(ctx, symbol)
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("fetching %s: %w", symbol, err)
	}
	if !ok {
		return models.AnalysisResult{}, ErrUnavailable
	}

	quote, err := ingest.Extract(symbol, body)
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("extracting %s: %w", symbol, err)
	}
	observability.RecordQuoteExtracted()

	return s.analyzer.Analyze(quote), nil
}

// ErrUnavailable means the provider had no usable document for the symbol.
var ErrUnavailable = errors.New("symbol unavailable from provider")

func (s *Scanner) scanSymbol(ctx context.Context, scanID, symbol string) (result models.AnalysisResult, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			observability.RecordSkip("panic")
			s.logger.Error().
				Str("scan_id", scanID).
				Str("symbol", symbol).
				Interface("panic", r).
				Msg("Symbol pipeline panicked, skipping")
			ok = false
		}
	}()

	result, err := s.Analyze(ctx, symbol)
	switch {
	case err == nil:
		return result, true
	case errors.Is(err, ErrUnavailable):
		observability.RecordSkip("unavailable")
		s.logger.Debug().Str("scan_id", scanID).Str("symbol", symbol).Msg("No document, skipping")
	case errors.Is(err, ingest.ErrNoResult):
		observability.RecordSkip("no_result")
		s.logger.Debug().Str("scan_id", scanID).Str("symbol", symbol).Msg("Empty quoteSummary, skipping")
	default:
		observability.RecordSkip("error")
		s.logger.Warn().Err(err).Str("scan_id", scanID).Str("symbol", symbol).Msg("Symbol failed, skipping")
	}
	return models.AnalysisResult{}, false
}

// SortResults orders results by score descending, then symbol ascending.
func SortResults(results []models.AnalysisResult) {
	slices.SortStableFunc(results, func(a, b models.AnalysisResult) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(symbolOf(a), symbolOf(b))
	})
}

func symbolOf(r models.AnalysisResult) string {
	if r.Quote == nil {
		return ""
	}
	return r.Quote.Symbol
}
