// Package scoring decides whether a normalized quote is an investable
// quality/growth candidate and how strongly it is recommended.
package scoring

import (
	"fmt"
	"math"

	"github.com/mauv0809/crispy-broccoli/internal/models"
	"github.com/mauv0809/crispy-broccoli/internal/observability"
)

// Thresholds used by the reject pipeline and the score bands.
const (
	DefaultMinMarketCap = 2_000_000_000

	maxPEG       = 1.2
	minEPSGrowth = 0.08
	maxEPSGrowth = 1.0
	maxScore     = 100
	baseScore    = 40
)

// Config selects which optional filters the engine applies.
type Config struct {
	MinMarketCap float64
	ExcludeOTC   bool
	ExcludeChina bool
}

// DefaultConfig returns a $2B floor with OTC venues excluded.
func DefaultConfig() Config {
	return Config{
		MinMarketCap: DefaultMinMarketCap,
		ExcludeOTC:   true,
	}
}

// rule is one hard reject check. reject returns true when the quote fails.
type rule struct {
	name   string
	reject func(q *models.Quote) bool
	reason func(q *models.Quote) string
}

func fixed(reason string) func(*models.Quote) string {
	return func(*models.Quote) string { return reason }
}

// Engine scores quotes. It is stateless after construction and safe for
// concurrent use.
type Engine struct {
	cfg   Config
	rules []rule
}

// NewEngine builds the ordered reject pipeline for cfg.
func NewEngine(cfg Config) *Engine {
	e := &Engine{cfg: cfg}
	e.rules = e.buildRules()
	return e
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

func (e *Engine) buildRules() []rule {
	return []rule{
		{
			name:   "market_cap",
			reject: func(q *models.Quote) bool { return q.MarketCap < e.cfg.MinMarketCap },
			reason: fixed(fmt.Sprintf("Market cap < %s", formatAmount(e.cfg.MinMarketCap))),
		},
		{
			name:   "exchange",
			reject: func(q *models.Quote) bool { return !ExchangeAllowed(q.Exchange, e.cfg.ExcludeOTC) },
			reason: func(q *models.Quote) string { return fmt.Sprintf("Exchange not allowed (%q)", q.Exchange) },
		},
		{
			name:   "jurisdiction",
			reject: func(q *models.Quote) bool { return e.cfg.ExcludeChina && excludedJurisdiction(q.Country) },
			reason: func(q *models.Quote) string { return fmt.Sprintf("Excluded jurisdiction (%s)", q.Country) },
		},
		{
			name:   "forward_pe",
			reject: func(q *models.Quote) bool { return !finitePositive(q.ForwardPE) },
			reason: fixed("Invalid forward P/E"),
		},
		{
			name:   "ebitda",
			reject: func(q *models.Quote) bool { return !(q.EBITDA > 0) },
			reason: fixed("Negative / missing EBITDA"),
		},
		{
			name:   "peg",
			reject: func(q *models.Quote) bool { return !finitePositive(q.PEGRatio) },
			reason: fixed("Invalid PEG"),
		},
		{
			name:   "peg_ceiling",
			reject: func(q *models.Quote) bool { return q.PEGRatio > maxPEG },
			reason: fixed("PEG > 1.2 (overvalued vs growth)"),
		},
		{
			name:   "eps_growth",
			reject: func(q *models.Quote) bool { return !finite(q.EPSGrowth5Y) || q.EPSGrowth5Y < minEPSGrowth },
			reason: fixed("Low EPS growth outlook (< 8%)"),
		},
		{
			name:   "eps_growth_outlier",
			reject: func(q *models.Quote) bool { return q.EPSGrowth5Y > maxEPSGrowth },
			reason: fixed("EPS growth outlook > 100% (outlier)"),
		},
		{
			name:   "revenue_growth",
			reject: func(q *models.Quote) bool { return !q.RevenueGrowing3Y() },
			reason: fixed("Revenue not growing 3 years running"),
		},
		{
			name:   "net_income_growth",
			reject: func(q *models.Quote) bool { return !q.NetIncomeGrowing3Y() },
			reason: fixed("Net income not growing 3 years running"),
		},
		{
			name:   "roe",
			reject: func(q *models.Quote) bool { return !finite(q.ReturnOnEquity) || q.ReturnOnEquity <= 0 },
			reason: fixed("Non-positive / missing ROE"),
		},
		{
			name:   "ev_ebitda",
			reject: func(q *models.Quote) bool { return !finite(q.EVToEBITDA) || q.EVToEBITDA < 0 },
			reason: fixed("Invalid EV/EBITDA"),
		},
	}
}

// Analyze runs the reject pipeline and, if every check passes, the additive
// score. The first failing check ends evaluation and is the only reason
// recorded.
func (e *Engine) Analyze(q *models.Quote) models.AnalysisResult {
	for _, r := range e.rules {
		if r.reject(q) {
			observability.RecordAnalysis(string(models.RecommendationReject), r.name)
			return models.AnalysisResult{
				Quote:          q,
				Score:          0,
				Recommendation: models.RecommendationReject,
				Rejected:       true,
				RejectedBy:     r.name,
				Reasons:        []string{r.reason(q)},
			}
		}
	}

	score := Score(q)
	rec := Recommend(score)
	observability.RecordAnalysis(string(rec), "")

	return models.AnalysisResult{
		Quote:          q,
		Score:          score,
		Recommendation: rec,
	}
}

// Score computes the additive soft-rule score, capped at 100. It assumes the
// quote already passed the reject pipeline.
func Score(q *models.Quote) int {
	score := baseScore

	// Growth and valuation
	if q.EPSGrowth5Y >= 0.10 {
		score += 15
	}
	if q.PEGRatio < 1.0 {
		score += 15
	}

	// Valuation anchors; the two EV/EBITDA bands stack.
	if q.EVToEBITDA > 0 && q.EVToEBITDA <= 12 {
		score += 5
	}
	if q.EVToEBITDA > 0 && q.EVToEBITDA <= 10 {
		score += 5
	}
	if q.ForwardPE > 0 && q.ForwardPE <= 20 {
		score += 5
	}

	// Quality
	switch {
	case q.ReturnOnEquity >= 0.20:
		score += 10
	case q.ReturnOnEquity >= 0.15:
		score += 5
	}

	// Debt safety
	leverage := q.NetDebtToEBITDA()
	switch {
	case leverage < 2.0:
		score += 10
	case leverage < 3.0:
		score += 5
	}

	// Cash safety, free cash flow preferred
	switch {
	case q.FreeCashFlow > 0:
		score += 10
	case q.CurrentRatio >= 1.2:
		score += 5
	}

	return min(score, maxScore)
}

// Recommend maps a score to a tier.
func Recommend(score int) models.Recommendation {
	switch {
	case score >= 70:
		return models.RecommendationStrongBuy
	case score >= 60:
		return models.RecommendationBuy
	case score >= 50:
		return models.RecommendationWatchlist
	default:
		return models.RecommendationHold
	}
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

func finitePositive(x float64) bool {
	return finite(x) && x > 0
}

// formatAmount renders 2e9 as "2B", 1.5e9 as "1.5B".
func formatAmount(v float64) string {
	switch {
	case v >= 1e12:
		return fmt.Sprintf("%gT", v/1e12)
	case v >= 1e9:
		return fmt.Sprintf("%gB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%gM", v/1e6)
	default:
		return fmt.Sprintf("%g", v)
	}
}
