package metrics

import (
	"time"

	"mercator-hq/minerva/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// RequestMetrics tracks metrics related to API request processing.
//
// Metrics:
//   - mercator_minerva_requests_total: Total request count by provider, model, status
//   - mercator_minerva_request_duration_seconds: Request duration histogram
//   - mercator_minerva_request_tokens_total: Total tokens processed by class
//   - mercator_minerva_tokens_per_request: Token count distribution per request
type RequestMetrics struct {
	// Total request count
	requestsTotal *prometheus.CounterVec

	// Request duration histogram
	requestDuration *prometheus.HistogramVec

	// Token counts by class (input, cached, output, reasoning)
	tokensTotal *prometheus.CounterVec

	// Tokens consumed per request
	tokensPerRequest *prometheus.HistogramVec
}

// NewRequestMetrics creates and registers request metrics with the provided registry.
func NewRequestMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RequestMetrics {
	rm := &RequestMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "requests_total",
				Help:      "Total number of reasoning requests processed",
			},
			[]string{"provider", "model", "status"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "request_duration_seconds",
				Help:      "Duration of reasoning requests in seconds",
				Buckets:   cfg.RequestDurationBuckets,
			},
			[]string{"provider", "model"},
		),

		tokensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "request_tokens_total",
				Help:      "Total number of tokens processed by token class",
			},
			[]string{"provider", "model", "type"},
		),

		tokensPerRequest: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "tokens_per_request",
				Help:      "Distribution of total tokens consumed per request",
				Buckets:   cfg.TokenCountBuckets,
			},
			[]string{"provider", "model"},
		),
	}

	// Register all metrics
	registry.MustRegister(
		rm.requestsTotal,
		rm.requestDuration,
		rm.tokensTotal,
		rm.tokensPerRequest,
	)

	return rm
}

// RecordRequest records the counter and duration for a completed request.
//
// Parameters:
//   - provider: provider that served the request
//   - model: logical model name
//   - status: HTTP status code as a string
//   - duration: request duration
func (rm *RequestMetrics) RecordRequest(provider, model, status string, duration time.Duration) {
	rm.requestsTotal.WithLabelValues(provider, model, status).Inc()
	rm.requestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
}

// RecordTokens records token counts split by class. Cached tokens are a
// subset of input tokens and reasoning tokens a subset of output tokens, so
// the classes must not be summed across the type label.
//
// Parameters:
//   - provider: provider name
//   - model: backend model name
//   - input, cached, output, reasoning: token counts per class
func (rm *RequestMetrics) RecordTokens(provider, model string, input, cached, output, reasoning int64) {
	if input > 0 {
		rm.tokensTotal.WithLabelValues(provider, model, "input").Add(float64(input))
	}
	if cached > 0 {
		rm.tokensTotal.WithLabelValues(provider, model, "cached").Add(float64(cached))
	}
	if output > 0 {
		rm.tokensTotal.WithLabelValues(provider, model, "output").Add(float64(output))
	}
	if reasoning > 0 {
		rm.tokensTotal.WithLabelValues(provider, model, "reasoning").Add(float64(reasoning))
	}
	if total := input + output; total > 0 {
		rm.tokensPerRequest.WithLabelValues(provider, model).Observe(float64(total))
	}
}
