package meter

import (
	"log/slog"
	"sync"
	"time"
)

// RecordEvent describes a single metered provider call. Events are delivered
// to OnRecord hooks after the meter state has been updated.
type RecordEvent struct {
	// Time is when the call was recorded.
	Time time.Time

	// Stage is the engine stage that made the call ("initial",
	// "verification", ...). Empty for calls recorded outside an engine run.
	Stage string

	// Provider is the provider that served the call.
	Provider string

	// Model is the backend model that served the call.
	Model string

	// Duration is the provider round-trip time, when the caller measured it.
	Duration time.Duration

	// Stats holds the token counts of this call only.
	Stats UsageStats

	// CostUSD is the estimated cost of this call only.
	CostUSD float64
}

// Options configures a TokenMeter.
type Options struct {
	// StrictValidation promotes token accounting violations from logged
	// warnings to errors returned by Record.
	StrictValidation bool

	// Logger receives accounting warnings. Defaults to slog.Default().
	Logger *slog.Logger
}

// TokenMeter accumulates token usage and estimates cost across the provider
// calls of one request. All methods are safe for concurrent use; parallel
// agents share a single meter.
type TokenMeter struct {
	mu         sync.Mutex
	pricing    Pricing
	totals     UsageStats
	byProvider map[string]map[string]*UsageStats
	hooks      []func(RecordEvent)

	strict bool
	logger *slog.Logger
}

// New creates a meter with the given pricing table. A nil table meters
// tokens but reports zero cost.
func New(pricing Pricing, opts Options) *TokenMeter {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenMeter{
		pricing:    pricing,
		byProvider: make(map[string]map[string]*UsageStats),
		strict:     opts.StrictValidation,
		logger:     logger.With("component", "meter"),
	}
}

// OnRecord registers a hook invoked after every recorded call, outside the
// meter lock. Hooks must not block; blocking a hook blocks the request path.
func (m *TokenMeter) OnRecord(fn func(RecordEvent)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, fn)
}

// Record extracts token counts from a raw provider usage payload and adds
// them to the running totals. The counts are recorded even when they violate
// the subset assumptions; in strict mode the violation is also returned as
// an error.
func (m *TokenMeter) Record(provider, model string, usage map[string]interface{}) error {
	return m.RecordCall("", provider, model, 0, usage)
}

// RecordCall is Record with the engine stage and call duration attached to
// the emitted event.
func (m *TokenMeter) RecordCall(stage, provider, model string, duration time.Duration, usage map[string]interface{}) error {
	return m.RecordStats(stage, provider, model, duration, ExtractUsage(usage))
}

// RecordStats records already-extracted token counts.
func (m *TokenMeter) RecordStats(stage, provider, model string, duration time.Duration, stats UsageStats) error {
	m.mu.Lock()

	models, ok := m.byProvider[provider]
	if !ok {
		models = make(map[string]*UsageStats)
		m.byProvider[provider] = models
	}
	current, ok := models[model]
	if !ok {
		current = &UsageStats{}
		models[model] = current
	}
	current.Add(stats)
	m.totals.Add(stats)

	var callCost float64
	if rates, ok := m.pricing.For(provider, model); ok {
		callCost = rates.Cost(stats)
	}
	event := RecordEvent{
		Time:     time.Now(),
		Stage:    stage,
		Provider: provider,
		Model:    model,
		Duration: duration,
		Stats:    stats,
		CostUSD:  callCost,
	}
	hooks := m.hooks
	m.mu.Unlock()

	for _, fn := range hooks {
		fn(event)
	}

	if err := stats.Validate(); err != nil {
		if m.strict {
			return err
		}
		m.logger.Warn("token accounting violation",
			"provider", provider,
			"model", model,
			"error", err)
	}
	return nil
}

// Usage returns accumulated counts. An empty provider selects the grand
// total; an empty model selects the provider total.
func (m *TokenMeter) Usage(provider, model string) UsageStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usageLocked(provider, model)
}

func (m *TokenMeter) usageLocked(provider, model string) UsageStats {
	if provider == "" {
		return m.totals
	}
	models, ok := m.byProvider[provider]
	if !ok {
		return UsageStats{}
	}
	if model == "" {
		var total UsageStats
		for _, stats := range models {
			total.Add(*stats)
		}
		return total
	}
	if stats, ok := models[model]; ok {
		return *stats
	}
	return UsageStats{}
}

// EstimateCost prices the accumulated usage. An empty provider sums every
// provider; an empty model sums every model of the provider. Pairs without
// a pricing entry cost zero.
func (m *TokenMeter) EstimateCost(provider, model string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.costLocked(provider, model)
}

func (m *TokenMeter) costLocked(provider, model string) float64 {
	if provider == "" {
		total := 0.0
		for p := range m.byProvider {
			total += m.costLocked(p, "")
		}
		return total
	}
	if model == "" {
		total := 0.0
		for mdl := range m.byProvider[provider] {
			total += m.costLocked(provider, mdl)
		}
		return total
	}
	rates, ok := m.pricing.For(provider, model)
	if !ok {
		return 0
	}
	return rates.Cost(m.usageLocked(provider, model))
}

// ModelSummary is the usage and cost of one provider/model pair.
type ModelSummary struct {
	Usage   UsageStats `json:"usage"`
	CostUSD float64    `json:"cost_usd"`
}

// ProviderSummary aggregates the models of one provider.
type ProviderSummary struct {
	Usage   UsageStats              `json:"usage"`
	CostUSD float64                 `json:"cost_usd"`
	ByModel map[string]ModelSummary `json:"by_model"`
}

// Summary is a complete usage and cost report for one request.
type Summary struct {
	TotalUsage   UsageStats                 `json:"total_usage"`
	TotalCostUSD float64                    `json:"total_cost_usd"`
	ByProvider   map[string]ProviderSummary `json:"by_provider"`
}

// Summary reports the accumulated usage and estimated costs, broken down by
// provider and model.
func (m *TokenMeter) Summary() *Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	summary := &Summary{
		TotalUsage:   m.totals,
		TotalCostUSD: m.costLocked("", ""),
		ByProvider:   make(map[string]ProviderSummary, len(m.byProvider)),
	}
	for provider, models := range m.byProvider {
		ps := ProviderSummary{
			Usage:   m.usageLocked(provider, ""),
			CostUSD: m.costLocked(provider, ""),
			ByModel: make(map[string]ModelSummary, len(models)),
		}
		for model, stats := range models {
			ps.ByModel[model] = ModelSummary{
				Usage:   *stats,
				CostUSD: m.costLocked(provider, model),
			}
		}
		summary.ByProvider[provider] = ps
	}
	return summary
}

// Reset clears all accumulated usage. Registered hooks stay in place.
func (m *TokenMeter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totals = UsageStats{}
	m.byProvider = make(map[string]map[string]*UsageStats)
}
