package main

import (
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"github.com/mauv0809/crispy-broccoli/internal/models"
)

// writeTable prints results as an aligned plain-text table. Percentages are
// rendered without decimals, PEG with two and forward P/E with one.
func writeTable(w io.Writer, results []models.AnalysisResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)

	fmt.Fprintln(tw, "Symbol\t| Score\t| Rec\t| PEG\t| EPS 5Y\t| ROE\t| Fwd PE")
	fmt.Fprintln(tw, "------\t| -----\t| ---\t| ---\t| ------\t| ---\t| ------")

	for _, r := range results {
		q := r.Quote
		fmt.Fprintf(tw, "%s\t| %d\t| %s\t| %.2f\t| %s\t| %s\t| %.1f\n",
			q.Symbol,
			r.Score,
			r.Recommendation,
			finiteOrZero(q.PEGRatio),
			percent(q.EPSGrowth5Y),
			percent(q.ReturnOnEquity),
			finiteOrZero(q.ForwardPE),
		)
	}

	return tw.Flush()
}

func percent(x float64) string {
	return fmt.Sprintf("%.0f%%", finiteOrZero(x)*100)
}

func finiteOrZero(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return x
}
