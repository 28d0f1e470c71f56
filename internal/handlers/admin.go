package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/phuslu/log"

	"github.com/mauv0809/crispy-broccoli/internal/ingest"
	"github.com/mauv0809/crispy-broccoli/internal/logging"
	"github.com/mauv0809/crispy-broccoli/internal/models"
	"github.com/mauv0809/crispy-broccoli/internal/scanner"
)

// Scanner runs the screening pipeline.
type Scanner interface {
	Run(ctx context.Context, symbols []string) (*scanner.Report, error)
	Analyze(ctx context.Context, symbol string) (models.AnalysisResult, error)
}

// Universe resolves and refreshes the symbol universe.
type Universe interface {
	Symbols(ctx context.Context) ([]string, error)
	Refresh(ctx context.Context) ([]ingest.ScreenerQuote, error)
}

// UniverseStore reads the cached universe.
type UniverseStore interface {
	Status(ctx context.Context, top int) (models.UniverseStatus, error)
	CompanyExists(ctx context.Context, ticker string) (bool, error)
}

// AdminHandler serves the scan and universe endpoints.
type AdminHandler struct {
	scanner  Scanner
	universe Universe
	store    UniverseStore
	logger   *log.Logger

	scanning atomic.Bool
}

// NewAdminHandler creates an admin handler. store may be nil when no
// database is configured.
func NewAdminHandler(s Scanner, u Universe, store UniverseStore, logger *log.Logger) *AdminHandler {
	return &AdminHandler{
		scanner:  s,
		universe: u,
		store:    store,
		logger:   logging.OrDefault(logger),
	}
}

// AdminResponse is the JSON response for admin actions.
type AdminResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Count   int    `json:"count,omitempty"`
	Elapsed string `json:"elapsed,omitempty"`
}

// ScanResponse is the JSON response for POST /admin/scan.
type ScanResponse struct {
	Success    bool         `json:"success"`
	ScanID     string       `json:"scan_id"`
	Elapsed    string       `json:"elapsed"`
	Total      int          `json:"total"`
	Processed  int          `json:"processed"`
	Skipped    int          `json:"skipped"`
	Rejected   int          `json:"rejected"`
	Candidates []ResultView `json:"candidates"`
}

// Scan handles POST /admin/scan
// Runs a full scan and returns the non-rejected candidates, best first.
// Query params:
// - ticker: comma-separated tickers (optional, defaults to the universe)
// - limit: maximum number of symbols to scan (optional)
// - include_rejected: if "true", rejected symbols are listed too
func (h *AdminHandler) Scan(c echo.Context) error {
	ctx := c.Request().Context()

	limit, err := parseLimit(c.QueryParam("limit"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, AdminResponse{
			Success: false,
			Message: err.Error(),
		})
	}

	if !h.scanning.CompareAndSwap(false, true) {
		return c.JSON(http.StatusConflict, AdminResponse{
			Success: false,
			Message: "A scan is already running",
		})
	}
	defer h.scanning.Store(false)

	symbols := splitTickers(c.QueryParam("ticker"))
	if len(symbols) == 0 {
		symbols, err = h.universe.Symbols(ctx)
		if err != nil {
			h.logger.Error().Err(err).Msg("Resolving universe failed")
			return c.JSON(http.StatusBadGateway, AdminResponse{
				Success: false,
				Message: fmt.Sprintf("Failed to resolve universe: %v", err),
			})
		}
	}
	if limit > 0 && len(symbols) > limit {
		symbols = symbols[:limit]
	}

	if len(symbols) == 0 {
		return c.JSON(http.StatusServiceUnavailable, AdminResponse{
			Success: false,
			Message: "No symbols to scan. The screener returned nothing.",
		})
	}

	report, err := h.scanner.Run(ctx, symbols)
	if err != nil && report == nil {
		return c.JSON(http.StatusInternalServerError, AdminResponse{
			Success: false,
			Message: fmt.Sprintf("Scan failed: %v", err),
		})
	}

	includeRejected := c.QueryParam("include_rejected") == "true"

	resp := ScanResponse{
		Success:    err == nil,
		ScanID:     report.ScanID,
		Elapsed:    report.Elapsed.Round(time.Millisecond).String(),
		Total:      report.Total,
		Processed:  report.Processed,
		Skipped:    report.Skipped,
		Candidates: make([]ResultView, 0, len(report.Results)),
	}
	for _, r := range report.Results {
		if r.Rejected {
			resp.Rejected++
			if !includeRejected {
				continue
			}
		}
		resp.Candidates = append(resp.Candidates, NewResultView(r))
	}

	return c.JSON(http.StatusOK, resp)
}

// Analyze handles GET /admin/analyze/:symbol
// Evaluates one symbol, including the rejection reason if any.
func (h *AdminHandler) Analyze(c echo.Context) error {
	ctx := c.Request().Context()
	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	if symbol == "" {
		return c.JSON(http.StatusBadRequest, AdminResponse{
			Success: false,
			Message: "symbol is required",
		})
	}

	result, err := h.scanner.Analyze(ctx, symbol)
	switch {
	case errors.Is(err, scanner.ErrUnavailable), errors.Is(err, ingest.ErrNoResult):
		return c.JSON(http.StatusNotFound, AdminResponse{
			Success: false,
			Message: fmt.Sprintf("No data for %s", symbol),
		})
	case err != nil:
		h.logger.Warn().Err(err).Str("symbol", symbol).Msg("Analyze failed")
		return c.JSON(http.StatusBadGateway, AdminResponse{
			Success: false,
			Message: fmt.Sprintf("Failed to analyze %s: %v", symbol, err),
		})
	}

	view := NewResultView(result)
	if h.store != nil {
		if exists, err := h.store.CompanyExists(ctx, symbol); err == nil {
			view.Cached = &exists
		}
	}

	return c.JSON(http.StatusOK, view)
}

// RefreshUniverse handles POST /admin/universe/refresh
// Crawls the screener and, with a database, caches the result.
func (h *AdminHandler) RefreshUniverse(c echo.Context) error {
	ctx := c.Request().Context()
	start := time.Now()

	quotes, err := h.universe.Refresh(ctx)
	if err != nil {
		h.logger.Error().Err(err).Msg("Universe refresh failed")
		return c.JSON(http.StatusBadGateway, AdminResponse{
			Success: false,
			Message: fmt.Sprintf("Failed to refresh universe: %v", err),
		})
	}

	elapsed := time.Since(start)
	h.logger.Info().Int("symbols", len(quotes)).Dur("elapsed", elapsed).Msg("Universe refreshed")

	return c.JSON(http.StatusOK, AdminResponse{
		Success: true,
		Message: fmt.Sprintf("Discovered %d symbols", len(quotes)),
		Count:   len(quotes),
		Elapsed: elapsed.Round(time.Millisecond).String(),
	})
}

// UniverseStatus handles GET /admin/universe/status
// Returns the cached universe size, last update and its largest members.
// Query params:
// - top: number of companies to list (default 10)
func (h *AdminHandler) UniverseStatus(c echo.Context) error {
	if h.store == nil {
		return c.JSON(http.StatusServiceUnavailable, AdminResponse{
			Success: false,
			Message: "No database configured",
		})
	}

	top := 10
	if raw := c.QueryParam("top"); raw != "" {
		n, err := parseLimit(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, AdminResponse{
				Success: false,
				Message: err.Error(),
			})
		}
		top = n
	}

	status, err := h.store.Status(c.Request().Context(), top)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, AdminResponse{
			Success: false,
			Message: fmt.Sprintf("Failed to read universe: %v", err),
		})
	}

	return c.JSON(http.StatusOK, status)
}

// splitTickers parses a comma-separated ticker list, dropping blanks.
func splitTickers(param string) []string {
	if param == "" {
		return nil
	}
	parts := strings.Split(param, ",")
	tickers := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			tickers = append(tickers, p)
		}
	}
	return tickers
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	return n, nil
}
