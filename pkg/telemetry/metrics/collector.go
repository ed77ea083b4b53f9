package metrics

import (
	"fmt"
	"sync"
	"time"

	"mercator-hq/minerva/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector is the main orchestrator for all Prometheus metrics in Mercator
// Minerva. It manages metric registration and provides a unified interface
// for recording metrics across all components.
//
// The collector is designed for minimal overhead on the request path:
//   - Pre-allocated metric instances
//   - Cardinality limits to prevent memory issues
//   - Histogram buckets sized for reasoning workloads, where a single
//     request can span many provider calls and several minutes
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	// Request metrics
	requestMetrics *RequestMetrics

	// Engine metrics
	engineMetrics *EngineMetrics

	// Provider metrics
	providerMetrics *ProviderMetrics

	// Cost metrics
	costMetrics *CostMetrics

	// Cache metrics
	cacheMetrics *CacheMetrics

	// Rate limiter metrics
	limiterMetrics *LimiterMetrics

	// Cardinality tracking
	cardinalityLimiter *CardinalityLimiter
}

// NewCollector creates a new metrics collector with the specified configuration
// and Prometheus registry. If registry is nil, a fresh registry is created.
//
// Example:
//
//	cfg := &config.MetricsConfig{
//		Enabled:   true,
//		Namespace: "mercator",
//		Subsystem: "minerva",
//	}
//	collector := metrics.NewCollector(cfg, nil)
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	// Set defaults if not specified
	if cfg.Namespace == "" {
		cfg.Namespace = "mercator"
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = "minerva"
	}
	if len(cfg.RequestDurationBuckets) == 0 {
		// Reasoning requests run iterative solve/verify loops, so latencies
		// span 500ms to 10 minutes rather than a single provider round trip
		cfg.RequestDurationBuckets = []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600}
	}
	if len(cfg.TokenCountBuckets) == 0 {
		// Per-request token totals (100 - 500K tokens across all calls)
		cfg.TokenCountBuckets = []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000}
	}

	c := &Collector{
		config:             cfg,
		registry:           registry,
		cardinalityLimiter: NewCardinalityLimiter(10000), // Max 10K unique label sets
	}

	// Initialize metric subsystems
	c.requestMetrics = NewRequestMetrics(cfg, registry)
	c.engineMetrics = NewEngineMetrics(cfg, registry)
	c.providerMetrics = NewProviderMetrics(cfg, registry)
	c.costMetrics = NewCostMetrics(cfg, registry)
	c.cacheMetrics = NewCacheMetrics(cfg, registry)
	c.limiterMetrics = NewLimiterMetrics(cfg, registry)

	return c
}

// RecordRequest records metrics for a completed API request.
//
// Parameters:
//   - provider: provider that served the request ("openai", "anthropic"),
//     or "unknown" when the model never resolved
//   - model: logical model name from the request
//   - status: HTTP status code as a string ("200", "404", "502")
//   - duration: total request duration
//
// Token and cost totals are recorded separately through RecordTokens and
// RecordRequestCost because a multi-agent request can spread its usage over
// several providers.
func (c *Collector) RecordRequest(provider, model, status string, duration time.Duration) {
	if !c.config.Enabled {
		return
	}

	// Check cardinality limit
	labelSet := fmt.Sprintf("request:%s:%s:%s", provider, model, status)
	if !c.cardinalityLimiter.Allow(labelSet) {
		// Aggregate into "other" to prevent cardinality explosion
		model = "other"
	}

	c.requestMetrics.RecordRequest(provider, model, status, duration)
}

// RecordTokens records the token usage a request accumulated against one
// provider/model pair, split by token class.
//
// Parameters:
//   - provider: provider name
//   - model: backend model name
//   - input: prompt tokens, including the cached subset
//   - cached: cached subset of the input tokens
//   - output: completion tokens, including the reasoning subset
//   - reasoning: reasoning subset of the output tokens
func (c *Collector) RecordTokens(provider, model string, input, cached, output, reasoning int64) {
	if !c.config.Enabled {
		return
	}

	c.requestMetrics.RecordTokens(provider, model, input, cached, output, reasoning)
}

// RecordProviderCall records a single provider API call: one request counted
// against the provider/model pair plus its observed latency.
func (c *Collector) RecordProviderCall(provider, model string, duration time.Duration) {
	if !c.config.Enabled {
		return
	}

	c.providerMetrics.RecordCall(provider, model, duration.Seconds())
}

// UpdateProviderHealth updates the health status of a provider.
//
// The health metric is a gauge where 1=healthy, 0=unhealthy.
func (c *Collector) UpdateProviderHealth(provider string, healthy bool) {
	if !c.config.Enabled {
		return
	}

	c.providerMetrics.UpdateHealth(provider, healthy)
}

// RecordProviderError records an error from a provider.
//
// Parameters:
//   - provider: provider name
//   - errorType: error kind ("rate_limit", "timeout", "auth", "server", ...)
func (c *Collector) RecordProviderError(provider, errorType string) {
	if !c.config.Enabled {
		return
	}

	c.providerMetrics.RecordError(provider, errorType)
}

// RecordEngineRun records a completed engine run.
//
// Parameters:
//   - engine: "deepthink" or "ultrathink"
//   - status: run outcome ("solved", "unsolved", "error")
func (c *Collector) RecordEngineRun(engine, status string) {
	if !c.config.Enabled {
		return
	}

	c.engineMetrics.RecordRun(engine, status)
}

// RecordEngineIterations adds the solve iterations consumed by a finished
// run to the per-engine iteration counter.
func (c *Collector) RecordEngineIterations(engine string, iterations int) {
	if !c.config.Enabled {
		return
	}

	c.engineMetrics.AddIterations(engine, iterations)
}

// RecordVerification records one verification round and its verdict.
//
// Parameters:
//   - engine: "deepthink" or "ultrathink"
//   - verdict: "pass" or "fail"
func (c *Collector) RecordVerification(engine, verdict string) {
	if !c.config.Enabled {
		return
	}

	c.engineMetrics.RecordVerification(engine, verdict)
}

// RecordStageCall records a provider call made on behalf of an engine stage
// ("initial", "verification", "correction", "synthesis", ...).
func (c *Collector) RecordStageCall(engine, stage string) {
	if !c.config.Enabled {
		return
	}

	labelSet := fmt.Sprintf("stage:%s:%s", engine, stage)
	if !c.cardinalityLimiter.Allow(labelSet) {
		stage = "other"
	}

	c.engineMetrics.RecordStageCall(engine, stage)
}

// RecordAgentOutcome records the outcome of one agent within a multi-agent
// run ("solved", "unsolved", "error").
func (c *Collector) RecordAgentOutcome(engine, outcome string) {
	if !c.config.Enabled {
		return
	}

	c.engineMetrics.RecordAgentOutcome(engine, outcome)
}

// RecordCacheHit records a cache hit.
//
// Parameters:
//   - cacheName: name of the cache (e.g., "response_id")
func (c *Collector) RecordCacheHit(cacheName string) {
	if !c.config.Enabled {
		return
	}

	c.cacheMetrics.RecordHit(cacheName)
}

// RecordCacheMiss records a cache miss.
func (c *Collector) RecordCacheMiss(cacheName string) {
	if !c.config.Enabled {
		return
	}

	c.cacheMetrics.RecordMiss(cacheName)
}

// UpdateCacheSize updates the current entry count of a cache.
func (c *Collector) UpdateCacheSize(cacheName string, size int) {
	if !c.config.Enabled {
		return
	}

	c.cacheMetrics.UpdateSize(cacheName, size)
}

// RecordCacheEvictions adds evicted entries to the eviction counter. Sweeps
// remove entries in batches, so the count is a delta rather than one event.
func (c *Collector) RecordCacheEvictions(cacheName string, count int) {
	if !c.config.Enabled || count <= 0 {
		return
	}

	c.cacheMetrics.AddEvictions(cacheName, count)
}

// RecordLimiterWait records how long a request waited for rate limit
// capacity before proceeding. Zero waits are recorded too; the histogram
// then doubles as an acquisition counter.
func (c *Collector) RecordLimiterWait(key string, waited time.Duration) {
	if !c.config.Enabled {
		return
	}

	labelSet := fmt.Sprintf("limiter:%s", key)
	if !c.cardinalityLimiter.Allow(labelSet) {
		key = "other"
	}

	c.limiterMetrics.RecordWait(key, waited.Seconds())
}

// RecordThrottle records a request rejected by the rate limiter.
//
// Parameters:
//   - key: the limiter bucket key
//   - reason: "exceeded" for fail-fast rejections, "timeout" when a waiting
//     request ran out of time
func (c *Collector) RecordThrottle(key, reason string) {
	if !c.config.Enabled {
		return
	}

	labelSet := fmt.Sprintf("limiter:%s", key)
	if !c.cardinalityLimiter.Allow(labelSet) {
		key = "other"
	}

	c.limiterMetrics.RecordThrottle(key, reason)
}

// RecordRequestCost records the cost a request accrued against one
// provider/model pair.
func (c *Collector) RecordRequestCost(provider, model string, costUSD float64) {
	if !c.config.Enabled {
		return
	}

	c.costMetrics.RecordRequestCost(provider, model, costUSD)
}

// Registry returns the Prometheus registry used by this collector.
// This can be used to create an HTTP handler for the /metrics endpoint:
//
//	http.Handle("/metrics", promhttp.HandlerFor(
//		collector.Registry(),
//		promhttp.HandlerOpts{},
//	))
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label combinations per metric.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow checks if a label set is allowed. Returns true if the label set
// already exists or if we haven't reached the cardinality limit yet.
// Returns false if adding this label set would exceed the limit.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	// Double-check after acquiring write lock
	if _, exists := cl.current[labelSet]; exists {
		return true
	}

	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
