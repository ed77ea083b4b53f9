// Package metrics provides Prometheus metrics collection for Mercator Minerva.
//
// # Overview
//
// The metrics package implements Prometheus metrics for monitoring reasoning
// request processing, engine execution, provider health, token usage, costs,
// rate limiting, and the prefix cache. All families register on a private
// registry owned by the Collector, keeping the exposition surface under the
// service's control.
//
// # Metrics Categories
//
//   - Request Metrics: Request count, duration, and token usage by class
//   - Engine Metrics: Runs, iterations, verifications, stage calls, agents
//   - Provider Metrics: Provider health, call latency, and error rates
//   - Cost Metrics: Total cost and cost per request by provider/model
//   - Limiter Metrics: Wait time histograms and throttle counters
//   - Cache Metrics: Prefix cache hits, misses, sizes, and evictions
//
// # Usage
//
//	// Create collector
//	collector := metrics.NewCollector(cfg, nil)
//
//	// Record request metrics
//	collector.RecordRequest("openai", "solver", "200", 42*time.Second)
//	collector.RecordTokens("openai", "o3", 1200, 800, 3500, 2100)
//
//	// Record engine metrics
//	collector.RecordEngineRun("deepthink", "solved")
//	collector.RecordEngineIterations("deepthink", 4)
//	collector.RecordVerification("deepthink", "pass")
//
//	// Expose the endpoint
//	http.Handle("/metrics", collector.Handler())
//
// # Custom Histogram Buckets
//
// Bucket boundaries are tuned for iterative reasoning workloads, which run
// far longer than single provider round trips:
//
//	Request Duration: 0.5s, 1s, 2.5s, 5s, 10s, 30s, 60s, 120s, 300s, 600s
//	Token Counts: 100, 500, 1K, 5K, 10K, 50K, 100K, 500K
//
// Both lists are overridable through MetricsConfig.
//
// # Cardinality Management
//
// The collector implements cardinality limits to prevent memory issues:
//
//   - Maximum 10,000 unique label combinations across tracked families
//   - Overflow label values aggregated into "other"
//
// Model and limiter-key labels come from request input, so the limiter is
// what keeps a hostile client from growing the label space without bound.
package metrics
