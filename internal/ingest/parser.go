package ingest

import (
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/mauv0809/crispy-broccoli/internal/models"
)

// module is one named sub-object of a quoteSummary result.
type module struct {
	gjson.Result
}

// get safely reads a leaf from the module.
func (m module) get(field string) Quantity {
	if !m.Exists() {
		return Quantity{}
	}
	return QuantityOf(m.Get(field))
}

// getFloat safely extracts a float from the module.
func (m module) getFloat(field string) float64 {
	return m.get(field).Float()
}

// getString safely extracts a string from the module.
func (m module) getString(field string) string {
	return m.get(field).Text()
}

// firstString returns the first non-empty text among the fields.
func (m module) firstString(fields ...string) string {
	for _, f := range fields {
		if s := m.getString(f); s != "" {
			return s
		}
	}
	return ""
}

// Extract parses a quoteSummary document into a normalized quote. Missing
// leaves resolve to zero values; only a missing result envelope or
// malformed JSON fails the record.
func Extract(symbol string, document []byte) (*models.Quote, error) {
	if !gjson.ValidBytes(document) {
		return nil, fmt.Errorf("parsing quoteSummary for %s: invalid JSON", symbol)
	}

	result := gjson.GetBytes(document, "quoteSummary.result.0")
	if !result.Exists() || !result.IsObject() {
		return nil, ErrNoResult
	}

	price := module{result.Get("price")}
	summary := module{result.Get("summaryDetail")}
	financial := module{result.Get("financialData")}
	keyStats := module{result.Get("defaultKeyStatistics")}
	profile := module{result.Get("summaryProfile")}

	q := &models.Quote{
		Symbol:    symbol,
		ShortName: price.getString("shortName"),
		Exchange:  price.firstString("exchangeName", "fullExchangeName", "exchange"),
		QuoteType: price.getString("quoteType"),
		Currency:  price.getString("currency"),
		Country:   profile.getString("country"),

		MarketCap: price.getFloat("marketCap"),
		Price:     financial.getFloat("currentPrice"),

		PEGRatio:   keyStats.getFloat("pegRatio"),
		ForwardPE:  keyStats.getFloat("forwardPE"),
		EVToEBITDA: keyStats.getFloat("enterpriseToEbitda"),

		ReturnOnEquity: financial.getFloat("returnOnEquity"),
		TotalCash:      financial.getFloat("totalCash"),
		TotalDebt:      financial.getFloat("totalDebt"),
		EBITDA:         financial.getFloat("ebitda"),
		CurrentRatio:   financial.getFloat("currentRatio"),
		FreeCashFlow:   financial.getFloat("freeCashflow"),
	}

	if q.ShortName == "" {
		q.ShortName = symbol
	}
	if q.Currency == "" {
		q.Currency = financial.getString("financialCurrency")
	}
	if q.ForwardPE <= 0 {
		q.ForwardPE = summary.getFloat("forwardPE")
	}

	q.EPSGrowth5Y = selectEarningsGrowth(result.Get("earningsTrend.trend"))

	if q.PEGRatio <= 0 && q.ForwardPE > 0 && q.EPSGrowth5Y > 0 {
		q.PEGRatio = q.ForwardPE / (q.EPSGrowth5Y * 100.0)
	}

	applyIncomeHistory(q, result.Get("incomeStatementHistory.incomeStatementHistory"))

	return q, nil
}

// selectEarningsGrowth picks the long-term growth estimate. A "+5y" or "5y"
// entry wins and ends the scan; otherwise the first "+1y" entry is used.
func selectEarningsGrowth(trend gjson.Result) float64 {
	if !trend.IsArray() {
		return 0
	}

	growth := 0.0
	oneYearSeen := false
	for _, t := range trend.Array() {
		period := QuantityOf(t.Get("period")).Text()
		g := QuantityOf(t.Get("growth")).Float()

		if period == "+5y" || period == "5y" {
			return g
		}
		if period == "+1y" && !oneYearSeen {
			growth = g
			oneYearSeen = true
		}
	}
	return growth
}

// applyIncomeHistory copies the three most recent income statements. With
// fewer than three statements the series stay zero.
func applyIncomeHistory(q *models.Quote, hist gjson.Result) {
	if !hist.IsArray() {
		return
	}
	rows := hist.Array()
	if len(rows) < 3 {
		return
	}

	revenue := func(i int) int64 { return QuantityOf(rows[i].Get("totalRevenue")).Int() }
	netIncome := func(i int) int64 { return QuantityOf(rows[i].Get("netIncome")).Int() }

	q.RevenueY0, q.RevenueY1, q.RevenueY2 = revenue(0), revenue(1), revenue(2)
	q.NetIncomeY0, q.NetIncomeY1, q.NetIncomeY2 = netIncome(0), netIncome(1), netIncome(2)
}
