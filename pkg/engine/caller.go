package engine

import (
	"context"
	"time"

	"mercator-hq/minerva/pkg/limits/ratelimit"
	"mercator-hq/minerva/pkg/meter"
	"mercator-hq/minerva/pkg/providers"
)

// llmCaller is the shared call path of both engines: it resolves the
// stage model, acquires rate-limit admission, branches between the Chat
// and Responses entry points, and records usage to the request meter.
type llmCaller struct {
	provider providers.Provider
	model    string
	stages   map[string]string
	params   map[string]interface{}

	meter *meter.TokenMeter

	limiter       *ratelimit.Limiter
	limitTimeout  time.Duration
	limitStrategy ratelimit.Strategy

	// limitKey, when set, is the admission key for every call; empty
	// falls back to a per-stage provider:model key
	limitKey string

	// throttle is the per-agent minimum spacing applied when no limiter
	// is injected
	throttle time.Duration
}

// callSpec describes one provider call.
type callSpec struct {
	// stage tags the call for model routing and metering
	stage string

	// messages is the conversation to send
	messages []providers.Message

	// store asks the provider to retain the response for continuation
	store bool

	// previousResponseID chains from a stored response (Responses only)
	previousResponseID string

	// responseFormat requests structured output (Responses only)
	responseFormat map[string]interface{}

	// preferResponses selects the Responses entry point when the
	// provider supports it; planning and synthesis always use Chat
	preferResponses bool
}

// stageModel resolves the backend model for a stage, falling back to the
// base model.
func (c *llmCaller) stageModel(stage string) string {
	if m, ok := c.stages[stage]; ok && m != "" {
		return m
	}
	return c.model
}

// admit waits for rate-limit admission before a call. The global limiter
// wins over the per-agent throttle; with neither configured the call
// proceeds immediately.
func (c *llmCaller) admit(ctx context.Context, stage string) error {
	if c.limiter != nil {
		key := c.limitKey
		if key == "" {
			key = ratelimit.MakeKey(c.provider.GetName(), c.stageModel(stage))
		}
		strategy := c.limitStrategy
		if strategy == "" {
			strategy = ratelimit.StrategyWait
		}
		return c.limiter.Acquire(ctx, key, 1, c.limitTimeout, strategy)
	}
	if c.throttle > 0 {
		return sleepCtx(ctx, c.throttle)
	}
	return nil
}

// do performs the provider call described by spec, metering its usage
// under the stage model. Provider errors propagate verbatim.
func (c *llmCaller) do(ctx context.Context, spec callSpec) (*providers.CallResult, error) {
	if err := c.admit(ctx, spec.stage); err != nil {
		return nil, err
	}

	model := c.stageModel(spec.stage)
	temperature, maxTokens, extra := splitLLMParams(c.params)

	start := time.Now()
	var (
		result *providers.CallResult
		err    error
	)
	if spec.preferResponses && c.provider.GetCapabilities().SupportsResponses {
		result, err = c.provider.Response(ctx, &providers.ResponseRequest{
			Model:              model,
			Input:              spec.messages,
			Temperature:        temperature,
			MaxOutputTokens:    maxTokens,
			PreviousResponseID: spec.previousResponseID,
			Store:              spec.store,
			ResponseFormat:     spec.responseFormat,
			Extra:              extra,
		})
	} else {
		result, err = c.provider.Chat(ctx, &providers.ChatRequest{
			Model:       model,
			Messages:    spec.messages,
			Temperature: temperature,
			MaxTokens:   maxTokens,
			Extra:       extra,
		})
	}
	if err != nil {
		return nil, err
	}

	if err := c.meter.RecordCall(spec.stage, c.provider.GetName(), model, time.Since(start), result.Usage); err != nil {
		return nil, err
	}

	return result, nil
}

// splitLLMParams partitions caller-supplied sampling parameters into the
// typed request fields and the loss-free Extra passthrough. Temperature
// and the max-token aliases are lifted; everything else flows through.
func splitLLMParams(params map[string]interface{}) (*float64, *int, map[string]interface{}) {
	if len(params) == 0 {
		return nil, nil, nil
	}

	var (
		temperature *float64
		maxTokens   *int
	)
	extra := make(map[string]interface{})

	for key, value := range params {
		switch key {
		case "temperature":
			if f, ok := toFloat(value); ok {
				temperature = &f
				continue
			}
		case "max_tokens", "max_output_tokens":
			if f, ok := toFloat(value); ok {
				n := int(f)
				maxTokens = &n
				continue
			}
		}
		extra[key] = value
	}

	if len(extra) == 0 {
		extra = nil
	}
	return temperature, maxTokens, extra
}

// toFloat coerces the numeric types that appear in decoded JSON.
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// sleepCtx sleeps for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
