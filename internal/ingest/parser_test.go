package ingest

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// raw wraps a value the way the provider does for most leaves.
func raw(v interface{}) map[string]interface{} {
	return map[string]interface{}{"raw": v, "fmt": "x"}
}

// bare leaves the value unwrapped.
func bare(v interface{}) interface{} {
	return v
}

// summaryDoc builds a full quoteSummary document with every numeric leaf
// encoded by wrap.
func summaryDoc(t *testing.T, wrap func(interface{}) interface{}) []byte {
	t.Helper()

	doc := map[string]interface{}{
		"quoteSummary": map[string]interface{}{
			"result": []interface{}{
				map[string]interface{}{
					"price": map[string]interface{}{
						"shortName":    "Example Corp",
						"exchangeName": "NasdaqGS",
						"quoteType":    "EQUITY",
						"currency":     "USD",
						"marketCap":    wrap(3.5e12),
					},
					"summaryDetail": map[string]interface{}{
						"forwardPE": wrap(31.0),
					},
					"financialData": map[string]interface{}{
						"currentPrice":      wrap(230.5),
						"returnOnEquity":    wrap(1.47),
						"totalCash":         wrap(65e9),
						"totalDebt":         wrap(101e9),
						"ebitda":            wrap(134e9),
						"currentRatio":      wrap(0.87),
						"freeCashflow":      wrap(110e9),
						"financialCurrency": "USD",
					},
					"defaultKeyStatistics": map[string]interface{}{
						"forwardPE":          wrap(28.2),
						"pegRatio":           wrap(2.1),
						"enterpriseToEbitda": wrap(26.3),
					},
					"summaryProfile": map[string]interface{}{
						"country": "United States",
					},
					"earningsTrend": map[string]interface{}{
						"trend": []interface{}{
							map[string]interface{}{"period": "0q", "growth": wrap(0.05)},
							map[string]interface{}{"period": "+1y", "growth": wrap(0.09)},
							map[string]interface{}{"period": "+5y", "growth": wrap(0.11)},
						},
					},
					"incomeStatementHistory": map[string]interface{}{
						"incomeStatementHistory": []interface{}{
							map[string]interface{}{"totalRevenue": wrap(391e9), "netIncome": wrap(94e9)},
							map[string]interface{}{"totalRevenue": wrap(383e9), "netIncome": wrap(97e9)},
							map[string]interface{}{"totalRevenue": wrap(394e9), "netIncome": wrap(99e9)},
						},
					},
				},
			},
		},
	}

	b, err := json.Marshal(doc)
	require.NoError(t, err)
	return b
}

func TestExtract_FullDocument(t *testing.T) {
	q, err := Extract("AAPL", summaryDoc(t, func(v interface{}) interface{} { return raw(v) }))
	require.NoError(t, err)

	assert.Equal(t, "AAPL", q.Symbol)
	assert.Equal(t, "Example Corp", q.ShortName)
	assert.Equal(t, "NasdaqGS", q.Exchange)
	assert.Equal(t, "EQUITY", q.QuoteType)
	assert.Equal(t, "USD", q.Currency)
	assert.Equal(t, "United States", q.Country)
	assert.Equal(t, 3.5e12, q.MarketCap)
	assert.Equal(t, 230.5, q.Price)
	assert.Equal(t, 28.2, q.ForwardPE)
	assert.Equal(t, 2.1, q.PEGRatio)
	assert.Equal(t, 26.3, q.EVToEBITDA)
	assert.Equal(t, 0.11, q.EPSGrowth5Y)
	assert.Equal(t, int64(391e9), q.RevenueY0)
	assert.Equal(t, int64(394e9), q.RevenueY2)
	assert.Equal(t, int64(94e9), q.NetIncomeY0)
	assert.Equal(t, 1.47, q.ReturnOnEquity)
	assert.Equal(t, 134e9, q.EBITDA)
	assert.Equal(t, 110e9, q.FreeCashFlow)
	assert.False(t, q.RevenueGrowing3Y())
}

func TestExtract_EncodingsAgree(t *testing.T) {
	wrapped, err := Extract("AAPL", summaryDoc(t, func(v interface{}) interface{} { return raw(v) }))
	require.NoError(t, err)
	plain, err := Extract("AAPL", summaryDoc(t, bare))
	require.NoError(t, err)

	assert.Equal(t, wrapped, plain)
}

func TestExtract_NoResultEnvelope(t *testing.T) {
	for _, doc := range []string{
		`{}`,
		`{"quoteSummary": {"result": []}}`,
		`{"quoteSummary": {"result": null, "error": {"code": "Not Found"}}}`,
	} {
		q, err := Extract("NOPE", []byte(doc))
		assert.Nil(t, q)
		assert.ErrorIs(t, err, ErrNoResult, doc)
	}
}

func TestExtract_MalformedJSON(t *testing.T) {
	_, err := Extract("BAD", []byte(`{"quoteSummary":`))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoResult)
}

func TestExtract_MissingFieldsDefaultToZero(t *testing.T) {
	q, err := Extract("XYZ", []byte(`{"quoteSummary": {"result": [{"price": {"marketCap": {}}}]}}`))
	require.NoError(t, err)

	assert.Equal(t, "XYZ", q.ShortName, "short name falls back to the symbol")
	assert.Empty(t, q.Exchange)
	assert.Empty(t, q.Currency)
	assert.Zero(t, q.MarketCap)
	assert.Zero(t, q.ForwardPE)
	assert.Zero(t, q.PEGRatio)
	assert.Zero(t, q.EPSGrowth5Y)
	assert.Zero(t, q.RevenueY0)
	assert.True(t, math.IsInf(q.NetDebtToEBITDA(), 1))
}

func TestExtract_ExchangeFallback(t *testing.T) {
	tests := []struct {
		price string
		want  string
	}{
		{`{"exchangeName": "NYSE", "fullExchangeName": "New York", "exchange": "NYQ"}`, "NYSE"},
		{`{"fullExchangeName": "New York", "exchange": "NYQ"}`, "New York"},
		{`{"exchangeName": "", "exchange": "NYQ"}`, "NYQ"},
		{`{}`, ""},
	}
	for _, tt := range tests {
		q, err := Extract("X", []byte(`{"quoteSummary": {"result": [{"price": `+tt.price+`}]}}`))
		require.NoError(t, err)
		assert.Equal(t, tt.want, q.Exchange, tt.price)
	}
}

func TestExtract_CurrencyFallback(t *testing.T) {
	q, err := Extract("X", []byte(`{"quoteSummary": {"result": [{
		"price": {},
		"financialData": {"financialCurrency": "EUR"}
	}]}}`))
	require.NoError(t, err)
	assert.Equal(t, "EUR", q.Currency)
}

func TestExtract_ForwardPEFallback(t *testing.T) {
	q, err := Extract("X", []byte(`{"quoteSummary": {"result": [{
		"defaultKeyStatistics": {"forwardPE": {"raw": -3.2}},
		"summaryDetail": {"forwardPE": {"raw": 14.5}}
	}]}}`))
	require.NoError(t, err)
	assert.Equal(t, 14.5, q.ForwardPE)
}

func TestExtract_EarningsTrendSelection(t *testing.T) {
	tests := []struct {
		name  string
		trend string
		want  float64
	}{
		{"five year wins after one year", `[{"period": "+1y", "growth": {"raw": 0.05}}, {"period": "+5y", "growth": {"raw": 0.12}}]`, 0.12},
		{"one year only", `[{"period": "+1y", "growth": {"raw": 0.05}}]`, 0.05},
		{"unsigned 5y label", `[{"period": "5y", "growth": 0.2}]`, 0.2},
		{"five year stops the scan", `[{"period": "+5y", "growth": {"raw": 0.12}}, {"period": "+1y", "growth": {"raw": 0.4}}]`, 0.12},
		{"first one year kept", `[{"period": "+1y", "growth": {"raw": 0.05}}, {"period": "+1y", "growth": {"raw": 0.3}}]`, 0.05},
		{"other periods ignored", `[{"period": "0q", "growth": {"raw": 0.5}}, {"period": "-5y", "growth": {"raw": 0.5}}]`, 0},
		{"empty", `[]`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Extract("X", []byte(`{"quoteSummary": {"result": [{"earningsTrend": {"trend": `+tt.trend+`}}]}}`))
			require.NoError(t, err)
			assert.Equal(t, tt.want, q.EPSGrowth5Y)
		})
	}
}

func TestExtract_PEGBackfill(t *testing.T) {
	q, err := Extract("X", []byte(`{"quoteSummary": {"result": [{
		"defaultKeyStatistics": {"forwardPE": {"raw": 15}, "pegRatio": {"raw": 0}},
		"earningsTrend": {"trend": [{"period": "+5y", "growth": {"raw": 0.10}}]}
	}]}}`))
	require.NoError(t, err)
	assert.InDelta(t, 1.5, q.PEGRatio, 1e-9)
}

func TestExtract_PEGNotBackfilledWithoutGrowth(t *testing.T) {
	q, err := Extract("X", []byte(`{"quoteSummary": {"result": [{
		"defaultKeyStatistics": {"forwardPE": {"raw": 15}, "pegRatio": {"raw": -1}}
	}]}}`))
	require.NoError(t, err)
	assert.Equal(t, -1.0, q.PEGRatio)
}

func TestExtract_ShortIncomeHistory(t *testing.T) {
	q, err := Extract("X", []byte(`{"quoteSummary": {"result": [{
		"incomeStatementHistory": {"incomeStatementHistory": [
			{"totalRevenue": {"raw": 300}, "netIncome": {"raw": 30}},
			{"totalRevenue": {"raw": 200}, "netIncome": {"raw": 20}}
		]}
	}]}}`))
	require.NoError(t, err)

	assert.Zero(t, q.RevenueY0)
	assert.Zero(t, q.RevenueY1)
	assert.Zero(t, q.NetIncomeY0)
	assert.False(t, q.RevenueGrowing3Y())
}
