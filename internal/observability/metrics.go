// Package observability provides Prometheus metrics for the screener.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Provider metrics
	FetchAttempts *prometheus.CounterVec
	FetchRetries  prometheus.Counter
	FetchLatency  *prometheus.HistogramVec

	// Discovery metrics
	ScreenerPages     prometheus.Counter
	SymbolsDiscovered prometheus.Counter

	// Analysis metrics
	QuotesExtracted prometheus.Counter
	SymbolsSkipped  *prometheus.CounterVec
	Recommendations *prometheus.CounterVec
	Rejections      *prometheus.CounterVec

	// Scan metrics
	ScanRunsTotal *prometheus.CounterVec
	ScanDuration  prometheus.Histogram
	LastScan      prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "screener"
	}

	return &Metrics{
		FetchAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "fetch_attempts_total",
			Help:      "Total number of provider HTTP attempts by method and outcome",
		}, []string{"method", "outcome"}),
		FetchRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "fetch_retries_total",
			Help:      "Total number of delayed retries after 429 or 5xx responses",
		}),
		FetchLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "fetch_latency_seconds",
			Help:      "Provider request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		ScreenerPages: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "screener_pages_total",
			Help:      "Total number of screener pages fetched",
		}),
		SymbolsDiscovered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "symbols_discovered_total",
			Help:      "Total number of unique symbols returned by discovery",
		}),

		QuotesExtracted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "quotes_extracted_total",
			Help:      "Total number of quoteSummary documents normalized",
		}),
		SymbolsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "symbols_skipped_total",
			Help:      "Total number of symbols skipped before scoring, by cause",
		}, []string{"cause"}),
		Recommendations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "recommendations_total",
			Help:      "Total number of analysis results by recommendation",
		}, []string{"recommendation"}),
		Rejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "rejections_total",
			Help:      "Total number of rejections by rule",
		}, []string{"rule"}),

		ScanRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "runs_total",
			Help:      "Total number of scans by status",
		}, []string{"status"}),
		ScanDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "duration_seconds",
			Help:      "Scan duration in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}),
		LastScan: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "last_completed_timestamp",
			Help:      "Unix timestamp of the last completed scan",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordFetchAttempt records one provider request and its latency.
func RecordFetchAttempt(method, outcome string, seconds float64) {
	DefaultMetrics.FetchAttempts.WithLabelValues(method, outcome).Inc()
	DefaultMetrics.FetchLatency.WithLabelValues(method).Observe(seconds)
}

// RecordFetchRetry increments the delayed retry counter.
func RecordFetchRetry() {
	DefaultMetrics.FetchRetries.Inc()
}

// RecordScreenerPage records one screener page and the unique symbols it added.
func RecordScreenerPage(added int) {
	DefaultMetrics.ScreenerPages.Inc()
	DefaultMetrics.SymbolsDiscovered.Add(float64(added))
}

// RecordQuoteExtracted increments the extracted quotes counter.
func RecordQuoteExtracted() {
	DefaultMetrics.QuotesExtracted.Inc()
}

// RecordSkip records a symbol that never reached scoring.
func RecordSkip(cause string) {
	DefaultMetrics.SymbolsSkipped.WithLabelValues(cause).Inc()
}

// RecordAnalysis records the recommendation and, for rejections, the rule.
func RecordAnalysis(recommendation, rule string) {
	DefaultMetrics.Recommendations.WithLabelValues(recommendation).Inc()
	if rule != "" {
		DefaultMetrics.Rejections.WithLabelValues(rule).Inc()
	}
}

// RecordScan records a finished scan.
func RecordScan(status string, durationSeconds float64, completedUnix int64) {
	DefaultMetrics.ScanRunsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.ScanDuration.Observe(durationSeconds)
	if status == "ok" {
		DefaultMetrics.LastScan.Set(float64(completedUnix))
	}
}
