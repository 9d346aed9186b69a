// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sells-group/realty-ai/internal/model"
)

// Completion outcomes.
const (
	OutcomeOK            = "ok"
	OutcomeFallback      = "fallback"
	OutcomeUpstreamError = "upstream_error"
	OutcomeConfigError   = "config_error"
	OutcomeInvalid       = "invalid_request"
)

var (
	Completions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realty_completions_total",
			Help: "Valuation and lead scoring calls by outcome",
		},
		[]string{"kind", "provider", "outcome"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "realty_upstream_duration_seconds",
			Help:    "Latency of model provider calls",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 9),
		},
		[]string{"kind", "provider"},
	)

	EstimatedCost = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realty_estimated_cost_usd_total",
			Help: "Estimated model spend in USD",
		},
		[]string{"provider", "model"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realty_cache_lookups_total",
			Help: "Result cache lookups by result (hit, miss, error)",
		},
		[]string{"kind", "result"},
	)

	CircuitState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "realty_circuit_state",
			Help: "Circuit breaker state per provider (0 closed, 1 open, 2 half-open)",
		},
		[]string{"provider"},
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realty_rate_limited_total",
			Help: "Requests rejected by the per-tenant rate limiter",
		},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realty_http_requests_total",
			Help: "HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "realty_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// ObserveUpstream records the latency of one provider call.
func ObserveUpstream(kind, provider string, d time.Duration) {
	UpstreamDuration.WithLabelValues(kind, provider).Observe(d.Seconds())
}

// RecordCompletion counts one service call outcome.
func RecordCompletion(kind, provider, outcome string) {
	Completions.WithLabelValues(kind, provider, outcome).Inc()
}

// AddCost adds usd to the spend counter for provider and modelName.
// Non-positive amounts are dropped; an empty model is labelled "default".
func AddCost(provider, modelName string, usd float64) {
	if usd <= 0 {
		return
	}
	if modelName == "" {
		modelName = "default"
	}
	EstimatedCost.WithLabelValues(provider, modelName).Add(usd)
}

// ProviderLabel bounds the provider label to the known kinds.
func ProviderLabel(kind model.ProviderKind) string {
	if !kind.Valid() {
		return "unknown"
	}
	return string(kind)
}
