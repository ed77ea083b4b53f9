package logging

import (
	"context"
)

type contextKey string

// Context keys for the fields a reasoning request carries through its
// call tree. Handlers set them once; ...Context log methods and
// WithContext pick them up automatically.
const (
	RequestIDKey contextKey = "request_id"
	APIKeyKey    contextKey = "api_key"
	ProviderKey  contextKey = "provider"
	ModelKey     contextKey = "model"
	EngineKey    contextKey = "engine"
	StageKey     contextKey = "stage"
	TraceIDKey   contextKey = "trace_id"
)

// WithRequestID adds a request id to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request id, or "".
func GetRequestID(ctx context.Context) string {
	return stringValue(ctx, RequestIDKey)
}

// WithAPIKey adds a client API key to the context. The value is masked
// when logged through a redacting Logger.
func WithAPIKey(ctx context.Context, apiKey string) context.Context {
	return context.WithValue(ctx, APIKeyKey, apiKey)
}

// GetAPIKey retrieves the client API key, or "".
func GetAPIKey(ctx context.Context) string {
	return stringValue(ctx, APIKeyKey)
}

// WithProvider adds the resolved provider name to the context.
func WithProvider(ctx context.Context, provider string) context.Context {
	return context.WithValue(ctx, ProviderKey, provider)
}

// GetProvider retrieves the provider name, or "".
func GetProvider(ctx context.Context) string {
	return stringValue(ctx, ProviderKey)
}

// WithModel adds the backend model name to the context.
func WithModel(ctx context.Context, model string) context.Context {
	return context.WithValue(ctx, ModelKey, model)
}

// GetModel retrieves the backend model name, or "".
func GetModel(ctx context.Context) string {
	return stringValue(ctx, ModelKey)
}

// WithEngine adds the engine mode ("deep-think", "ultra-think") to the context.
func WithEngine(ctx context.Context, engine string) context.Context {
	return context.WithValue(ctx, EngineKey, engine)
}

// GetEngine retrieves the engine mode, or "".
func GetEngine(ctx context.Context) string {
	return stringValue(ctx, EngineKey)
}

// WithStage adds the current engine stage to the context.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, StageKey, stage)
}

// GetStage retrieves the engine stage, or "".
func GetStage(ctx context.Context) string {
	return stringValue(ctx, StageKey)
}

// WithTraceID adds a trace id to the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID retrieves the trace id, or "".
func GetTraceID(ctx context.Context) string {
	return stringValue(ctx, TraceIDKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// extractContextFields collects the known context fields as
// alternating key/value log arguments, in a fixed order.
func extractContextFields(ctx context.Context) []any {
	var fields []any
	for _, key := range []contextKey{
		RequestIDKey, APIKeyKey, ProviderKey, ModelKey, EngineKey, StageKey, TraceIDKey,
	} {
		if v := stringValue(ctx, key); v != "" {
			fields = append(fields, string(key), v)
		}
	}
	return fields
}
