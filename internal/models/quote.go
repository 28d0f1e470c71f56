package models

import "math"

// Quote is the normalized fundamentals record for one symbol.
// Numeric fields are zero when the provider omitted them.
type Quote struct {
	Symbol    string `json:"symbol"`
	ShortName string `json:"short_name"`
	Exchange  string `json:"exchange"`
	QuoteType string `json:"quote_type"`
	Currency  string `json:"currency"`
	Country   string `json:"country"`

	MarketCap  float64 `json:"market_cap"`
	Price      float64 `json:"price"`
	ForwardPE  float64 `json:"forward_pe"`
	PEGRatio   float64 `json:"peg_ratio"`
	EVToEBITDA float64 `json:"ev_to_ebitda"`

	// Index 0 is the most recent fiscal year.
	RevenueY0   int64 `json:"revenue_y0"`
	RevenueY1   int64 `json:"revenue_y1"`
	RevenueY2   int64 `json:"revenue_y2"`
	NetIncomeY0 int64 `json:"net_income_y0"`
	NetIncomeY1 int64 `json:"net_income_y1"`
	NetIncomeY2 int64 `json:"net_income_y2"`

	EPSGrowth5Y float64 `json:"eps_growth_5y"`

	ReturnOnEquity float64 `json:"return_on_equity"`
	TotalCash      float64 `json:"total_cash"`
	TotalDebt      float64 `json:"total_debt"`
	EBITDA         float64 `json:"ebitda"`
	CurrentRatio   float64 `json:"current_ratio"`
	FreeCashFlow   float64 `json:"free_cash_flow"`
}

// NetDebt returns total debt minus total cash.
func (q *Quote) NetDebt() float64 {
	return q.TotalDebt - q.TotalCash
}

// NetDebtToEBITDA returns the leverage ratio. It is +Inf when EBITDA is not
// positive: unknown leverage must never read as zero.
func (q *Quote) NetDebtToEBITDA() float64 {
	if q.EBITDA > 0 {
		return q.NetDebt() / q.EBITDA
	}
	return math.Inf(1)
}

// RevenueGrowing3Y reports whether revenue is positive and strictly rising
// over the last three fiscal years.
func (q *Quote) RevenueGrowing3Y() bool {
	return growing3Y(q.RevenueY0, q.RevenueY1, q.RevenueY2)
}

// NetIncomeGrowing3Y reports whether net income is positive and strictly
// rising over the last three fiscal years.
func (q *Quote) NetIncomeGrowing3Y() bool {
	return growing3Y(q.NetIncomeY0, q.NetIncomeY1, q.NetIncomeY2)
}

func growing3Y(y0, y1, y2 int64) bool {
	return y0 > 0 && y1 > 0 && y2 > 0 && y0 > y1 && y1 > y2
}
