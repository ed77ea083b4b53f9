package metrics

import (
	"mercator-hq/minerva/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// LimiterMetrics tracks rate limiter behavior.
//
// Metrics:
//   - mercator_minerva_limiter_wait_seconds: Time spent waiting for capacity
//   - mercator_minerva_limiter_throttled_total: Requests rejected by the limiter
type LimiterMetrics struct {
	// Wait time before a permit was granted. Every successful acquisition
	// is observed, so the histogram count doubles as an acquisition total.
	waitSeconds *prometheus.HistogramVec

	// Rejected acquisitions by reason
	throttledTotal *prometheus.CounterVec
}

// NewLimiterMetrics creates and registers limiter metrics with the provided registry.
func NewLimiterMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *LimiterMetrics {
	lm := &LimiterMetrics{
		waitSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "limiter_wait_seconds",
				Help:      "Time spent waiting for rate limit capacity in seconds",
				// Most acquisitions are instant; waits under backpressure
				// stretch to the per-request acquire timeout (up to 60s)
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"key"},
		),

		throttledTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "limiter_throttled_total",
				Help:      "Total number of requests rejected by the rate limiter",
			},
			[]string{"key", "reason"},
		),
	}

	// Register all metrics
	registry.MustRegister(
		lm.waitSeconds,
		lm.throttledTotal,
	)

	return lm
}

// RecordWait records the time a request spent waiting for capacity.
//
// Parameters:
//   - key: limiter bucket key (e.g., "openai:o3")
//   - waitSeconds: wait duration in seconds, zero when capacity was free
func (lm *LimiterMetrics) RecordWait(key string, waitSeconds float64) {
	if waitSeconds < 0 {
		waitSeconds = 0
	}
	lm.waitSeconds.WithLabelValues(key).Observe(waitSeconds)
}

// RecordThrottle records a rejected acquisition.
//
// Parameters:
//   - key: limiter bucket key
//   - reason: "exceeded" when the fail strategy rejected immediately,
//     "timeout" when a waiting request exhausted its acquire timeout
func (lm *LimiterMetrics) RecordThrottle(key, reason string) {
	lm.throttledTotal.WithLabelValues(key, reason).Inc()
}
