// Package metrics registers the pricing service's Prometheus instruments.
// Grounded on the teacher's PricingController ControllerMetrics struct
// (promauto-registered counters/histograms/gauges wired into the request
// handler), generalized from a single controller's metrics to a
// service-wide registry injected into every component that needs it.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every instrument the pricing service emits.
type Metrics struct {
	QuotesTotal          *prometheus.CounterVec
	QuoteLatency         prometheus.Histogram
	DegradedQuotesTotal  *prometheus.CounterVec
	CompetitorFetchTotal *prometheus.CounterVec
	ModelLoadTotal       *prometheus.CounterVec
	CircuitBreakerState  *prometheus.GaugeVec
	OutcomesStoredTotal  prometheus.Counter
	DriftChecksTotal     *prometheus.CounterVec
	RetrainsTotal        *prometheus.CounterVec
	BanditSelectionsTotal *prometheus.CounterVec
}

// New constructs and registers all metrics against reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		QuotesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pricing_quotes_total",
			Help: "Total price quotes issued, labeled by pricing method.",
		}, []string{"pricing_method"}),
		QuoteLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pricing_quote_latency_seconds",
			Help:    "End-to-end latency of a scoring request.",
			Buckets: prometheus.DefBuckets,
		}),
		DegradedQuotesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pricing_degraded_quotes_total",
			Help: "Quotes that fell back to the safe-default path, labeled by reason.",
		}, []string{"reason"}),
		CompetitorFetchTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pricing_competitor_fetch_total",
			Help: "Competitor gateway fetch attempts, labeled by outcome.",
		}, []string{"outcome"}),
		ModelLoadTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pricing_model_load_total",
			Help: "Model registry load attempts, labeled by outcome.",
		}, []string{"outcome"}),
		CircuitBreakerState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pricing_circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open).",
		}, []string{"breaker"}),
		OutcomesStoredTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "pricing_outcomes_stored_total",
			Help: "Total outcomes successfully stored.",
		}),
		DriftChecksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pricing_drift_checks_total",
			Help: "Drift detection runs, labeled by verdict.",
		}, []string{"verdict"}),
		RetrainsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pricing_retrains_total",
			Help: "Retrain attempts, labeled by action.",
		}, []string{"action"}),
		BanditSelectionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pricing_bandit_selections_total",
			Help: "Bandit arm selections, labeled by policy.",
		}, []string{"policy"}),
	}
}

// ObserveLatency records a quote's end-to-end latency.
func (m *Metrics) ObserveLatency(d time.Duration) {
	m.QuoteLatency.Observe(d.Seconds())
}
