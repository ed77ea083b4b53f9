package tracing

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys under the minerva.* namespace. Standard HTTP
// attributes follow OpenTelemetry semantic conventions and are set by
// the middleware; these cover the reasoning domain.
const (
	AttrRequestID = "minerva.request_id"
	AttrProvider  = "minerva.provider"
	AttrModel     = "minerva.model"
	AttrEngine    = "minerva.engine"
	AttrStage     = "minerva.stage"
	AttrAgentID   = "minerva.agent_id"

	AttrTokensInput     = "minerva.tokens.input"
	AttrTokensCached    = "minerva.tokens.cached"
	AttrTokensOutput    = "minerva.tokens.output"
	AttrTokensReasoning = "minerva.tokens.reasoning"

	AttrCostUSD = "minerva.cost.usd"

	AttrIterations    = "minerva.engine.iterations"
	AttrVerifications = "minerva.engine.verifications"
	AttrNumAgents     = "minerva.engine.num_agents"

	AttrCacheHit   = "minerva.cache.hit"
	AttrLimiterKey = "minerva.limiter.key"
)

// SetRoute records the resolved model route on a span.
func SetRoute(span trace.Span, provider, model string) {
	span.SetAttributes(
		attribute.String(AttrProvider, provider),
		attribute.String(AttrModel, model),
	)
}

// SetEngine records the engine mode on a span.
func SetEngine(span trace.Span, engine string) {
	span.SetAttributes(attribute.String(AttrEngine, engine))
}

// SetUsage records token totals and cost on a span.
func SetUsage(span trace.Span, input, cached, output, reasoning int64, costUSD float64) {
	span.SetAttributes(
		attribute.Int64(AttrTokensInput, input),
		attribute.Int64(AttrTokensCached, cached),
		attribute.Int64(AttrTokensOutput, output),
		attribute.Int64(AttrTokensReasoning, reasoning),
		attribute.Float64(AttrCostUSD, costUSD),
	)
}

// SetRunShape records iteration and verification counts on a span.
func SetRunShape(span trace.Span, iterations, verifications int) {
	span.SetAttributes(
		attribute.Int(AttrIterations, iterations),
		attribute.Int(AttrVerifications, verifications),
	)
}

// StageEvent adds an engine progress event to the span. The payload is
// flattened into string attributes; events come from the engine sink
// and carry small scalar values.
func StageEvent(span trace.Span, event string, payload map[string]interface{}) {
	attrs := make([]attribute.KeyValue, 0, len(payload))
	for k, v := range payload {
		attrs = append(attrs, anyAttribute("minerva."+k, v))
	}
	span.AddEvent(event, trace.WithAttributes(attrs...))
}

func anyAttribute(key string, v interface{}) attribute.KeyValue {
	switch val := v.(type) {
	case string:
		return attribute.String(key, val)
	case bool:
		return attribute.Bool(key, val)
	case int:
		return attribute.Int(key, val)
	case int64:
		return attribute.Int64(key, val)
	case float64:
		return attribute.Float64(key, val)
	default:
		return attribute.String(key, fmt.Sprintf("%v", val))
	}
}
