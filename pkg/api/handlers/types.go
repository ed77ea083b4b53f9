package handlers

import (
	"log/slog"

	"mercator-hq/minerva/pkg/cache"
	"mercator-hq/minerva/pkg/config"
	"mercator-hq/minerva/pkg/ledger"
	"mercator-hq/minerva/pkg/limits/ratelimit"
	"mercator-hq/minerva/pkg/meter"
	"mercator-hq/minerva/pkg/providers"
	"mercator-hq/minerva/pkg/providers/registry"
	"mercator-hq/minerva/pkg/telemetry/metrics"
)

// ModelResolver is the slice of the provider registry the handlers
// depend on. Declared here so tests can substitute a stub without
// constructing a full registry.
type ModelResolver interface {
	// Resolve maps a logical model id to a live provider, the provider
	// name, the backend model identifier and the model's engine defaults.
	Resolve(modelID string) (providers.Provider, string, string, *registry.ModelDefaults, error)

	// Models lists the configured logical model ids in sorted order.
	Models() []string

	// RouteFor returns the static route for a logical model id without
	// instantiating its provider.
	RouteFor(modelID string) (registry.Route, bool)

	// Healthy lists the names of providers currently passing health checks.
	Healthy() []string

	// HealthSummary reports per-provider health for instantiated providers.
	HealthSummary() map[string]providers.ProviderHealth
}

// Deps bundles the process-wide dependencies shared by all handlers.
// Registry and Config are required; the rest degrade gracefully when nil:
// no recorder means no ledger writes, no collector means no metrics, no
// cache store means prefix caching stays off, no limiter means requests
// run ungated.
type Deps struct {
	// Registry resolves logical model ids to providers.
	Registry ModelResolver

	// Config is the loaded service configuration.
	Config *config.Config

	// Pricing is the cost table built from Config.Pricing at startup,
	// shared read-only across requests.
	Pricing meter.Pricing

	// CacheStore is the shared prefix-cache backend. Each reasoning
	// request wraps it in a request-scoped Cache.
	CacheStore cache.Store

	// Limiter is the shared rate limiter for provider admission.
	Limiter *ratelimit.Limiter

	// Recorder receives usage ledger records.
	Recorder *ledger.Recorder

	// Metrics is the Prometheus collector.
	Metrics *metrics.Collector

	// Logger is the base handler logger.
	Logger *slog.Logger
}

// disabledCollector backs collector() when no collector was wired; with
// metrics disabled in its config every record call is a no-op.
var disabledCollector = metrics.NewCollector(&config.MetricsConfig{}, nil)

func (d *Deps) collector() *metrics.Collector {
	if d.Metrics != nil {
		return d.Metrics
	}
	return disabledCollector
}

func (d *Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}
