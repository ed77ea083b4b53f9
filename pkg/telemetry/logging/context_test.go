package logging

import (
	"context"
	"testing"
)

func TestContextKeys(t *testing.T) {
	ctx := context.Background()
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithAPIKey(ctx, "sk-test")
	ctx = WithProvider(ctx, "openai")
	ctx = WithModel(ctx, "gpt-test")
	ctx = WithEngine(ctx, "ultra-think")
	ctx = WithStage(ctx, "synthesis")
	ctx = WithTraceID(ctx, "trace-1")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"request id", GetRequestID(ctx), "req-1"},
		{"api key", GetAPIKey(ctx), "sk-test"},
		{"provider", GetProvider(ctx), "openai"},
		{"model", GetModel(ctx), "gpt-test"},
		{"engine", GetEngine(ctx), "ultra-think"},
		{"stage", GetStage(ctx), "synthesis"},
		{"trace id", GetTraceID(ctx), "trace-1"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestContextKeys_Empty(t *testing.T) {
	ctx := context.Background()
	if GetRequestID(ctx) != "" || GetProvider(ctx) != "" || GetStage(ctx) != "" {
		t.Error("empty context returned non-empty values")
	}
}

func TestExtractContextFields(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-2")
	ctx = WithModel(ctx, "m")

	fields := extractContextFields(ctx)
	if len(fields) != 4 {
		t.Fatalf("got %d fields, want 4: %v", len(fields), fields)
	}
	// Order is fixed: request_id before model.
	if fields[0] != "request_id" || fields[1] != "req-2" {
		t.Errorf("first pair = %v %v", fields[0], fields[1])
	}
	if fields[2] != "model" || fields[3] != "m" {
		t.Errorf("second pair = %v %v", fields[2], fields[3])
	}
}

func TestExtractContextFields_Empty(t *testing.T) {
	if fields := extractContextFields(context.Background()); len(fields) != 0 {
		t.Errorf("expected no fields, got %v", fields)
	}
}

func TestContextOverwrite(t *testing.T) {
	ctx := WithStage(context.Background(), "initial")
	ctx = WithStage(ctx, "correction")
	if got := GetStage(ctx); got != "correction" {
		t.Errorf("stage = %q, want correction", got)
	}
}
