package models

// Recommendation is the tier assigned to an analyzed quote.
type Recommendation string

const (
	RecommendationReject    Recommendation = "REJECT"
	RecommendationHold      Recommendation = "HOLD"
	RecommendationWatchlist Recommendation = "WATCHLIST"
	RecommendationBuy       Recommendation = "BUY"
	RecommendationStrongBuy Recommendation = "STRONG BUY"
)

// AnalysisResult is the outcome of scoring one quote. Rejected results carry
// exactly one reason: the first rule that failed.
type AnalysisResult struct {
	Quote          *Quote         `json:"quote"`
	Score          int            `json:"score"`
	Recommendation Recommendation `json:"recommendation"`
	Rejected       bool           `json:"rejected"`
	RejectedBy     string         `json:"rejected_by,omitempty"`
	Reasons        []string       `json:"reasons,omitempty"`
}
