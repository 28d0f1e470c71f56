package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mauv0809/crispy-broccoli/internal/ingest"
	"github.com/mauv0809/crispy-broccoli/internal/models"
)

// Repository handles database operations for the cached universe.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// UpsertCompanies inserts or updates companies from screener rows and marks
// them active. Returns the number of rows written.
func (r *Repository) UpsertCompanies(ctx context.Context, quotes []ingest.ScreenerQuote) (int, error) {
	if len(quotes) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, q := range quotes {
		batch.Queue(`
			INSERT INTO companies (ticker, name, exchange, market_cap, active, updated_at)
			VALUES ($1, $2, $3, $4, TRUE, NOW())
			ON CONFLICT (ticker) DO UPDATE SET
				name = EXCLUDED.name,
				exchange = EXCLUDED.exchange,
				market_cap = EXCLUDED.market_cap,
				active = TRUE,
				updated_at = NOW()
		`, strings.ToUpper(q.Symbol), q.ShortName, q.Exchange, marketCapDecimal(q.MarketCap))
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	count := 0
	for range quotes {
		_, err := br.Exec()
		if err != nil {
			return count, fmt.Errorf("upserting company: %w", err)
		}
		count++
	}

	return count, nil
}

// GetAllTickers returns active tickers, largest market cap first.
func (r *Repository) GetAllTickers(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT ticker FROM companies WHERE active = true ORDER BY market_cap DESC, ticker")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var ticker string
		if err := rows.Scan(&ticker); err != nil {
			return nil, err
		}
		tickers = append(tickers, ticker)
	}

	return tickers, rows.Err()
}

// GetTopCompanies returns up to limit active companies, largest first.
func (r *Repository) GetTopCompanies(ctx context.Context, limit int) ([]models.Company, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ticker, name, exchange, market_cap, active, created_at, updated_at
		FROM companies
		WHERE active = true
		ORDER BY market_cap DESC, ticker
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying companies: %w", err)
	}
	defer rows.Close()

	var companies []models.Company
	for rows.Next() {
		var c models.Company
		if err := rows.Scan(&c.Ticker, &c.Name, &c.Exchange, &c.MarketCap, &c.Active, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning company: %w", err)
		}
		companies = append(companies, c)
	}

	return companies, rows.Err()
}

// GetLastUniverseUpdate returns the most recent company update, or the zero
// time for an empty table.
func (r *Repository) GetLastUniverseUpdate(ctx context.Context) (time.Time, error) {
	var lastUpdate *time.Time
	err := r.pool.QueryRow(ctx, "SELECT MAX(updated_at) FROM companies").Scan(&lastUpdate)
	if err != nil {
		return time.Time{}, fmt.Errorf("querying last update: %w", err)
	}
	if lastUpdate == nil {
		return time.Time{}, nil
	}
	return *lastUpdate, nil
}

// GetCompanyCount returns the number of active companies in the database.
func (r *Repository) GetCompanyCount(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM companies WHERE active = true").Scan(&count)
	return count, err
}

// CompanyExists checks if a company exists in the database.
func (r *Repository) CompanyExists(ctx context.Context, ticker string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM companies WHERE ticker = $1)", strings.ToUpper(ticker)).Scan(&exists)
	return exists, err
}

// Status summarizes the cached universe with its top entries.
func (r *Repository) Status(ctx context.Context, top int) (models.UniverseStatus, error) {
	var status models.UniverseStatus

	count, err := r.GetCompanyCount(ctx)
	if err != nil {
		return status, fmt.Errorf("counting companies: %w", err)
	}
	status.Companies = count

	last, err := r.GetLastUniverseUpdate(ctx)
	if err != nil {
		return status, err
	}
	if !last.IsZero() {
		status.LastUpdated = &last
	}

	if top > 0 {
		status.Top, err = r.GetTopCompanies(ctx, top)
		if err != nil {
			return status, err
		}
	}

	return status, nil
}

// marketCapDecimal rounds a screener market cap to cents. Non-positive and
// non-finite values store as zero.
func marketCapDecimal(v float64) decimal.Decimal {
	if !(v > 0) || v > 1e22 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v).Round(2)
}
