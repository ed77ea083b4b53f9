package metrics

import (
	"mercator-hq/minerva/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// CostMetrics tracks estimated spend per provider and model.
//
// Metrics:
//   - mercator_minerva_cost_total: Total cost in USD by provider and model
//   - mercator_minerva_cost_per_request: Cost distribution per request (histogram)
type CostMetrics struct {
	// Total cost counter (in USD)
	costTotal *prometheus.CounterVec

	// Cost per request histogram (in USD)
	costPerRequest *prometheus.HistogramVec
}

// NewCostMetrics creates and registers cost metrics with the provided registry.
func NewCostMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *CostMetrics {
	cm := &CostMetrics{
		costTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "cost_total",
				Help:      "Total estimated cost in USD by provider and model",
			},
			[]string{"provider", "model"},
		),

		costPerRequest: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "cost_per_request",
				Help:      "Estimated cost distribution per request in USD",
				// Iterative reasoning runs cost more than single calls:
				// $0.001 up to $50 per request
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0, 50.0},
			},
			[]string{"provider", "model"},
		),
	}

	// Register all metrics
	registry.MustRegister(
		cm.costTotal,
		cm.costPerRequest,
	)

	return cm
}

// RecordRequestCost records the cost a request accrued against one
// provider/model pair.
//
// Parameters:
//   - provider: provider name
//   - model: backend model name
//   - costUSD: estimated cost in USD
//
// This updates both the total cost counter and the cost-per-request histogram.
//
// Example:
//
//	cm.RecordRequestCost("openai", "o3", 0.42)
func (cm *CostMetrics) RecordRequestCost(provider, model string, costUSD float64) {
	if costUSD <= 0 {
		return
	}

	cm.costTotal.WithLabelValues(provider, model).Add(costUSD)
	cm.costPerRequest.WithLabelValues(provider, model).Observe(costUSD)
}
