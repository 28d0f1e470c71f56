package ingest

import (
	"errors"
	"fmt"
	"net/http"
)

// Provider endpoints.
const (
	DefaultBootstrapURL    = "https://fc.yahoo.com"
	DefaultCrumbURL        = "https://query2.finance.yahoo.com/v1/test/getcrumb"
	DefaultQuoteSummaryURL = "https://query2.finance.yahoo.com/v10/finance/quoteSummary"
	DefaultScreenerURL     = "https://query2.finance.yahoo.com/v1/finance/screener"

	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// quoteSummaryModules lists the modules requested for every symbol.
const quoteSummaryModules = "price,summaryDetail,financialData,defaultKeyStatistics,incomeStatementHistory,earningsTrend,summaryProfile"

// MaxPageSize is the largest page the screener accepts.
const MaxPageSize = 250

// ErrNoResult is returned by Extract when the document has no
// quoteSummary.result[0] envelope.
var ErrNoResult = errors.New("quoteSummary document has no result")

// ErrNoCrumb is returned when a request is attempted before the session
// holds a crumb.
var ErrNoCrumb = errors.New("session has no crumb")

// AuthError means the crumb handshake failed. Nothing can be fetched without
// a crumb, so callers treat it as fatal.
type AuthError struct {
	StatusCode int
	Err        error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("crumb handshake failed: %v", e.Err)
	}
	return fmt.Sprintf("crumb handshake failed: status %d", e.StatusCode)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// isTransientStatus reports whether a response is worth retrying: 429 or
// any 5xx.
func isTransientStatus(code int) bool {
	return code == http.StatusTooManyRequests || (code >= 500 && code <= 599)
}

// DiscoverOptions configures a screener crawl.
type DiscoverOptions struct {
	TargetCount int
	PageSize    int
	Region      string
	QuoteType   string
}

// ScreenerQuote is one row of a screener page.
type ScreenerQuote struct {
	Symbol    string
	ShortName string
	Exchange  string
	MarketCap float64
}

// screenerPayload is the JSON body posted to the screener endpoint.
type screenerPayload struct {
	Size        int           `json:"size"`
	Offset      int           `json:"offset"`
	SortField   string        `json:"sortField"`
	SortType    string        `json:"sortType"`
	QuoteType   string        `json:"quoteType"`
	TopOperator string        `json:"topOperator"`
	Query       screenerQuery `json:"query"`
}

// screenerQuery is one node of the screener operator tree. Operands are
// either nested nodes or plain values.
type screenerQuery struct {
	Operator string        `json:"operator"`
	Operands []interface{} `json:"operands"`
}
