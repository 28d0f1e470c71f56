package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/phuslu/log"
	"github.com/tidwall/gjson"

	"github.com/mauv0809/crispy-broccoli/internal/logging"
	"github.com/mauv0809/crispy-broccoli/internal/observability"
)

// Crawler discovers the largest symbols by market cap through the paginated
// screener endpoint.
type Crawler struct {
	client *Client
	logger *log.Logger
}

// NewCrawler creates a crawler that pages through client.
func NewCrawler(client *Client, logger *log.Logger) *Crawler {
	return &Crawler{
		client: client,
		logger: logging.OrDefault(logger),
	}
}

// Discover returns up to opts.TargetCount unique symbols, largest market cap
// first.
func (c *Crawler) Discover(ctx context.Context, opts DiscoverOptions) ([]string, error) {
	quotes, err := c.DiscoverQuotes(ctx, opts)
	if err != nil {
		return nil, err
	}

	symbols := make([]string, 0, len(quotes))
	for _, q := range quotes {
		symbols = append(symbols, q.Symbol)
	}
	return symbols, nil
}

// DiscoverQuotes pages through the screener until TargetCount unique symbols
// are collected, a page comes back empty, or a page fails. A failed page keeps
// what earlier pages found; only cancellation returns an error. Pages are
// fetched strictly in order. Symbols are de-duplicated case-insensitively,
// keeping the first occurrence. A missing crumb yields an empty result.
func (c *Crawler) DiscoverQuotes(ctx context.Context, opts DiscoverOptions) ([]ScreenerQuote, error) {
	crumb := c.client.Session().Crumb()
	if strings.TrimSpace(crumb) == "" || opts.TargetCount <= 0 {
		return []ScreenerQuote{}, nil
	}

	pageSize := opts.PageSize
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	region := opts.Region
	if region == "" {
		region = "US"
	}
	quoteType := opts.QuoteType
	if quoteType == "" {
		quoteType = "equity"
	}

	urlStr := screenerURL(c.client.screenerURL, crumb, region)

	seen := make(map[string]struct{}, opts.TargetCount)
	quotes := make([]ScreenerQuote, 0, opts.TargetCount)

	for offset := 0; len(quotes) < opts.TargetCount; offset += pageSize {
		payload, err := json.Marshal(buildScreenerPayload(quoteType, region, pageSize, offset))
		if err != nil {
			return nil, fmt.Errorf("encoding screener payload: %w", err)
		}

		body, ok, err := c.client.PostWithRetry(ctx, urlStr, payload)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			c.logger.Warn().Err(err).Int("offset", offset).Int("unique", len(quotes)).Msg("Screener page failed, stopping discovery")
			break
		}
		if !ok {
			c.logger.Warn().Int("offset", offset).Msg("Screener page unavailable, stopping discovery")
			break
		}

		page, err := parseScreenerPage(body)
		if err != nil {
			c.logger.Warn().Err(err).Int("offset", offset).Msg("Malformed screener page, stopping discovery")
			break
		}
		if len(page) == 0 {
			break
		}

		added := 0
		for _, q := range page {
			key := strings.ToUpper(q.Symbol)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			quotes = append(quotes, q)
			added++
		}
		observability.RecordScreenerPage(added)

		c.logger.Debug().
			Int("offset", offset).
			Int("page_quotes", len(page)).
			Int("added", added).
			Int("unique", len(quotes)).
			Msg("Screener page fetched")
	}

	if len(quotes) > opts.TargetCount {
		quotes = quotes[:opts.TargetCount]
	}

	c.logger.Info().Int("symbols", len(quotes)).Str("region", region).Msg("Discovery complete")

	return quotes, nil
}

func screenerURL(base, crumb, region string) string {
	q := url.Values{}
	q.Set("crumb", crumb)
	q.Set("lang", "en-US")
	q.Set("region", region)
	q.Set("formatted", "false")
	q.Set("corsDomain", "finance.yahoo.com")
	return base + "?" + q.Encode()
}

// buildScreenerPayload builds a market-cap-descending query filtered to one
// region.
func buildScreenerPayload(quoteType, region string, size, offset int) screenerPayload {
	return screenerPayload{
		Size:        size,
		Offset:      offset,
		SortField:   "intradaymarketcap",
		SortType:    "desc",
		QuoteType:   quoteType,
		TopOperator: "and",
		Query: screenerQuery{
			Operator: "and",
			Operands: []interface{}{
				screenerQuery{
					Operator: "or",
					Operands: []interface{}{
						screenerQuery{
							Operator: "eq",
							Operands: []interface{}{"region", strings.ToLower(region)},
						},
					},
				},
			},
		},
	}
}

// parseScreenerPage reads finance.result[0].quotes. Rows without a symbol are
// dropped.
func parseScreenerPage(body []byte) ([]ScreenerQuote, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid screener JSON")
	}

	rows := gjson.GetBytes(body, "finance.result.0.quotes")
	if !rows.IsArray() {
		return nil, nil
	}

	quotes := make([]ScreenerQuote, 0, len(rows.Array()))
	for _, row := range rows.Array() {
		symbol := strings.TrimSpace(QuantityOf(row.Get("symbol")).Text())
		if symbol == "" {
			continue
		}
		m := module{row}
		quotes = append(quotes, ScreenerQuote{
			Symbol:    symbol,
			ShortName: m.firstString("shortName", "longName"),
			Exchange:  m.firstString("fullExchangeName", "exchange"),
			MarketCap: m.getFloat("marketCap"),
		})
	}
	return quotes, nil
}
