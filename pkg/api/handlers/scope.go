package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"mercator-hq/minerva/pkg/api/middleware"
	"mercator-hq/minerva/pkg/api/types"
	"mercator-hq/minerva/pkg/cache"
	"mercator-hq/minerva/pkg/limits/ratelimit"
	"mercator-hq/minerva/pkg/meter"
)

// runScope bundles the per-request instances a reasoning run needs: a
// fresh token meter (usage is reported per request), a request-scoped
// cache over the shared store, and the effective admission settings for
// the shared limiter.
type runScope struct {
	meter *meter.TokenMeter
	cache *cache.Cache

	limiter       *ratelimit.Limiter
	limitKey      string
	limitTimeout  time.Duration
	limitStrategy ratelimit.Strategy
}

// newRunScope builds the scope for one reasoning request.
//
// The limiter keeps shared state per key across requests; this only
// (re)applies the effective settings for this request's key. Applying the
// same settings twice is a no-op, so concurrent requests for the same
// model do not fight.
func (d *Deps) newRunScope(requestID, endpoint, engineName, providerName, backendModel string, rpm int, overrides *types.RateLimitOverrides, logger *slog.Logger) *runScope {
	col := d.collector()

	m := meter.New(d.Pricing, meter.Options{
		StrictValidation: d.Config.Engine.StrictUsageValidation,
		Logger:           logger,
	})
	if d.Recorder != nil && d.Recorder.Enabled() {
		m.OnRecord(d.Recorder.MeterHook(requestID, endpoint, engineName))
	}
	m.OnRecord(func(ev meter.RecordEvent) {
		if ev.Stage != "" {
			col.RecordStageCall(engineName, ev.Stage)
		}
		col.RecordProviderCall(ev.Provider, ev.Model, ev.Duration)
		col.RecordTokens(ev.Provider, ev.Model,
			ev.Stats.InputTokens, ev.Stats.CachedTokens,
			ev.Stats.OutputTokens, ev.Stats.ReasoningTokens)
	})

	c := cache.New(cache.Options{
		Store:   d.CacheStore,
		TTL:     d.Config.Cache.TTL,
		Enabled: d.Config.Cache.Enabled && d.CacheStore != nil,
		Logger:  logger,
		OnLookup: func(hit bool) {
			if hit {
				col.RecordCacheHit("prefix")
			} else {
				col.RecordCacheMiss("prefix")
			}
		},
	})

	scope := &runScope{meter: m, cache: c}
	scope.applyLimits(d, providerName, backendModel, rpm, overrides)
	return scope
}

// applyLimits merges the configured defaults, the model's rpm hint and
// the request overrides into the limiter. Precedence per field: request
// override, then model config, then system default.
func (s *runScope) applyLimits(d *Deps, providerName, backendModel string, rpm int, overrides *types.RateLimitOverrides) {
	cfg := d.Config.RateLimit

	qps := cfg.QPS
	qpsSet := cfg.QPS > 0
	burst := cfg.Burst
	windowLimit := cfg.WindowLimit
	windowSeconds := cfg.WindowSeconds
	timeout := cfg.Timeout
	strategy := ratelimit.Strategy(cfg.Strategy)

	// A model rpm becomes a fixed window of (rpm, 60s) unless something
	// more specific configured a window already.
	if windowLimit == 0 && rpm > 0 {
		windowLimit = rpm
		windowSeconds = 60
	}

	key := expandBucketKey(cfg.BucketTemplate, providerName, backendModel)

	if o := overrides; o != nil {
		if o.QPS != nil {
			// An explicit qps configures the bucket even at zero:
			// zero refills nothing, so the burst is all there is.
			qps = *o.QPS
			qpsSet = true
		}
		if o.Burst != nil {
			burst = *o.Burst
		}
		if o.WindowLimit != nil {
			windowLimit = *o.WindowLimit
		}
		if o.WindowSeconds != nil {
			windowSeconds = *o.WindowSeconds
		}
		if o.Timeout != nil {
			timeout = time.Duration(*o.Timeout * float64(time.Second))
		}
		if o.Strategy != nil {
			strategy = ratelimit.Strategy(*o.Strategy)
		}
		if o.BucketKey != nil && *o.BucketKey != "" {
			key = *o.BucketKey
		}
	}

	if strategy != ratelimit.StrategyFail {
		strategy = ratelimit.StrategyWait
	}

	if d.Limiter == nil || (!qpsSet && windowLimit <= 0) {
		return
	}

	if qpsSet {
		d.Limiter.ConfigureBucket(key, qps, burst)
	}
	if windowLimit > 0 && windowSeconds > 0 {
		d.Limiter.ConfigureWindow(key, windowLimit, time.Duration(windowSeconds*float64(time.Second)))
	}

	s.limiter = d.Limiter
	s.limitKey = key
	s.limitTimeout = timeout
	s.limitStrategy = strategy
}

// recordPassthroughUsage meters and ledgers a single passthrough call.
// The ledger row carries no engine or stage; the endpoint comes from the
// request path.
func (d *Deps) recordPassthroughUsage(r *http.Request, providerName, backendModel string, duration time.Duration, rawUsage map[string]interface{}, logger *slog.Logger) {
	if rawUsage == nil {
		return
	}

	m := meter.New(d.Pricing, meter.Options{Logger: logger})
	if d.Recorder != nil && d.Recorder.Enabled() {
		m.OnRecord(d.Recorder.MeterHook(middleware.GetRequestID(r.Context()), r.URL.Path, ""))
	}
	col := d.collector()
	m.OnRecord(func(ev meter.RecordEvent) {
		col.RecordTokens(ev.Provider, ev.Model,
			ev.Stats.InputTokens, ev.Stats.CachedTokens,
			ev.Stats.OutputTokens, ev.Stats.ReasoningTokens)
		col.RecordRequestCost(ev.Provider, ev.Model, ev.CostUSD)
	})
	if err := m.RecordCall("", providerName, backendModel, duration, rawUsage); err != nil {
		logger.Warn("usage accounting rejected provider usage", "error", err)
	}
}

// expandBucketKey substitutes the {provider} and {model} placeholders of
// the configured bucket template.
func expandBucketKey(template, providerName, backendModel string) string {
	if template == "" {
		template = "{provider}:{model}"
	}
	key := strings.ReplaceAll(template, "{provider}", providerName)
	return strings.ReplaceAll(key, "{model}", backendModel)
}
