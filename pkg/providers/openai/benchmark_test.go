package openai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"mercator-hq/minerva/pkg/providers"
)

func BenchmarkChat(b *testing.B) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-bench", "object": "chat.completion", "created": 1700000000,
			"model": "gpt-4o",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "Hello, world!"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 4, "total_tokens": 14}
		}`))
	}))
	defer server.Close()

	provider, err := NewProvider(testConfig(server.URL))
	if err != nil {
		b.Fatalf("failed to create provider: %v", err)
	}
	defer provider.Close()

	req := &providers.ChatRequest{
		Model:    "gpt-4o",
		Messages: []providers.Message{{Role: providers.RoleUser, Content: "Hello"}},
	}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := provider.Chat(ctx, req); err != nil {
			b.Fatalf("chat failed: %v", err)
		}
	}
}

func BenchmarkBuildChatPayload(b *testing.B) {
	temp := 0.7
	req := &providers.ChatRequest{
		Model: "gpt-4o",
		Messages: []providers.Message{
			{Role: providers.RoleSystem, Content: "You are a careful mathematician."},
			{Role: providers.RoleUser, Content: "Prove that sqrt(2) is irrational."},
		},
		Temperature: &temp,
		Extra:       map[string]interface{}{"reasoning_effort": "high"},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = buildChatPayload(req, false)
	}
}

func BenchmarkTransformStreamChunk(b *testing.B) {
	chunk := &ChatCompletionChunk{
		ID:    "chatcmpl-1",
		Model: "gpt-4o",
		Choices: []ChunkChoice{
			{Index: 0, Delta: ChunkDelta{Content: "token"}},
		},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = transformStreamChunk(chunk)
	}
}
