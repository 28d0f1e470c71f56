package handlers

import (
	"math"

	"github.com/mauv0809/crispy-broccoli/internal/models"
)

// ResultView is the JSON shape of one analyzed symbol. Metrics that are not
// finite are omitted.
type ResultView struct {
	Symbol          string   `json:"symbol"`
	Name            string   `json:"name"`
	Exchange        string   `json:"exchange"`
	Country         string   `json:"country,omitempty"`
	Score           int      `json:"score"`
	Recommendation  string   `json:"recommendation"`
	Rejected        bool     `json:"rejected"`
	RejectedBy      string   `json:"rejected_by,omitempty"`
	Reasons         []string `json:"reasons,omitempty"`
	MarketCap       *float64 `json:"market_cap,omitempty"`
	Price           *float64 `json:"price,omitempty"`
	ForwardPE       *float64 `json:"forward_pe,omitempty"`
	PEGRatio        *float64 `json:"peg_ratio,omitempty"`
	EPSGrowth5Y     *float64 `json:"eps_growth_5y,omitempty"`
	ReturnOnEquity  *float64 `json:"return_on_equity,omitempty"`
	EVToEBITDA      *float64 `json:"ev_to_ebitda,omitempty"`
	NetDebtToEBITDA *float64 `json:"net_debt_to_ebitda,omitempty"`
	FreeCashFlow    *float64 `json:"free_cash_flow,omitempty"`
	Cached          *bool    `json:"cached,omitempty"`
}

// NewResultView flattens an analysis result.
func NewResultView(r models.AnalysisResult) ResultView {
	v := ResultView{
		Score:          r.Score,
		Recommendation: string(r.Recommendation),
		Rejected:       r.Rejected,
		RejectedBy:     r.RejectedBy,
		Reasons:        r.Reasons,
	}

	q := r.Quote
	if q == nil {
		return v
	}

	v.Symbol = q.Symbol
	v.Name = q.ShortName
	v.Exchange = q.Exchange
	v.Country = q.Country
	v.MarketCap = finiteOrNil(q.MarketCap)
	v.Price = finiteOrNil(q.Price)
	v.ForwardPE = finiteOrNil(q.ForwardPE)
	v.PEGRatio = finiteOrNil(q.PEGRatio)
	v.EPSGrowth5Y = finiteOrNil(q.EPSGrowth5Y)
	v.ReturnOnEquity = finiteOrNil(q.ReturnOnEquity)
	v.EVToEBITDA = finiteOrNil(q.EVToEBITDA)
	v.NetDebtToEBITDA = finiteOrNil(q.NetDebtToEBITDA())
	v.FreeCashFlow = finiteOrNil(q.FreeCashFlow)

	return v
}

func finiteOrNil(x float64) *float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return nil
	}
	return &x
}
