package metrics

import (
	"mercator-hq/minerva/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// ProviderMetrics tracks metrics related to provider health and performance.
//
// Metrics:
//   - mercator_minerva_provider_health: Provider health status (1=healthy, 0=unhealthy)
//   - mercator_minerva_provider_latency_seconds: Provider API call latency
//   - mercator_minerva_provider_errors_total: Provider error count by type
//   - mercator_minerva_provider_requests_total: Total calls to each provider
type ProviderMetrics struct {
	// Provider health status (gauge: 1=healthy, 0=unhealthy)
	health *prometheus.GaugeVec

	// Provider API latency histogram
	latency *prometheus.HistogramVec

	// Provider error counter
	errors *prometheus.CounterVec

	// Total calls to provider
	requests *prometheus.CounterVec
}

// NewProviderMetrics creates and registers provider metrics with the provided registry.
func NewProviderMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *ProviderMetrics {
	pm := &ProviderMetrics{
		health: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "provider_health",
				Help:      "Provider health status (1=healthy, 0=unhealthy)",
			},
			[]string{"provider"},
		),

		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "provider_latency_seconds",
				Help:      "Provider API call latency in seconds",
				Buckets:   cfg.RequestDurationBuckets, // Reuse request duration buckets
			},
			[]string{"provider", "model"},
		),

		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "provider_errors_total",
				Help:      "Total number of provider errors by type",
			},
			[]string{"provider", "error_type"},
		),

		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "provider_requests_total",
				Help:      "Total number of API calls to each provider",
			},
			[]string{"provider", "model"},
		),
	}

	// Register all metrics
	registry.MustRegister(
		pm.health,
		pm.latency,
		pm.errors,
		pm.requests,
	)

	return pm
}

// UpdateHealth updates the health status of a provider.
//
// Parameters:
//   - provider: provider name (e.g., "openai", "anthropic")
//   - healthy: true if provider is healthy, false otherwise
//
// The health metric is a gauge where 1=healthy, 0=unhealthy.
func (pm *ProviderMetrics) UpdateHealth(provider string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	pm.health.WithLabelValues(provider).Set(value)
}

// RecordCall records one provider API call and its latency.
//
// Parameters:
//   - provider: provider name
//   - model: backend model name
//   - latencySeconds: round-trip time in seconds
//
// Engines issue many calls per request, so this counts calls rather than
// requests.
func (pm *ProviderMetrics) RecordCall(provider, model string, latencySeconds float64) {
	pm.requests.WithLabelValues(provider, model).Inc()
	pm.latency.WithLabelValues(provider, model).Observe(latencySeconds)
}

// RecordError records an error from a provider.
//
// Parameters:
//   - provider: provider name
//   - errorType: error kind, matching the provider error taxonomy
//
// Common error types:
//   - "rate_limit": provider rate limit exceeded
//   - "timeout": request timeout
//   - "auth": authentication/authorization error
//   - "invalid_request": request rejected as malformed
//   - "not_found": unknown model or endpoint
//   - "server": provider server error (5xx)
//   - "provider": unclassified provider failure
func (pm *ProviderMetrics) RecordError(provider, errorType string) {
	pm.errors.WithLabelValues(provider, errorType).Inc()
}
