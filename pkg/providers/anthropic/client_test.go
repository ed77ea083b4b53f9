package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mercator-hq/minerva/pkg/providers"
)

func testConfig(url string) providers.ProviderConfig {
	return providers.ProviderConfig{
		Name:       "anthropic-test",
		Type:       "anthropic",
		BaseURL:    url,
		APIKey:     "test-api-key",
		Timeout:    5 * time.Second,
		MaxRetries: 0,
	}
}

func TestNewProvider_Validation(t *testing.T) {
	t.Run("missing api key", func(t *testing.T) {
		_, err := NewProvider(providers.ProviderConfig{Name: "anthropic"})
		var cfgErr *providers.ConfigError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("expected ConfigError, got %T: %v", err, err)
		}
		if cfgErr.Field != "api_key" {
			t.Errorf("expected field %q, got %q", "api_key", cfgErr.Field)
		}
	})

	t.Run("responses capability off by default", func(t *testing.T) {
		p, err := NewProvider(providers.ProviderConfig{Name: "anthropic", APIKey: "key"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer p.Close()

		caps := p.GetCapabilities()
		if caps.SupportsResponses {
			t.Error("anthropic must not claim Responses support")
		}
		if !caps.SupportsStreaming || !caps.SupportsVision {
			t.Errorf("expected streaming and vision support, got %+v", caps)
		}
	})
}

func TestChat(t *testing.T) {
	var captured map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("expected path /v1/messages, got %s", r.URL.Path)
		}
		if key := r.Header.Get("x-api-key"); key != "test-api-key" {
			t.Errorf("expected x-api-key header, got %q", key)
		}
		if v := r.Header.Get("anthropic-version"); v != DefaultAnthropicVersion {
			t.Errorf("expected anthropic-version %q, got %q", DefaultAnthropicVersion, v)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_01", "type": "message", "role": "assistant",
			"content": [
				{"type": "text", "text": "Let x = "},
				{"type": "text", "text": "2."}
			],
			"model": "claude-sonnet-4", "stop_reason": "end_turn",
			"usage": {"input_tokens": 20, "output_tokens": 6, "cache_read_input_tokens": 5}
		}`))
	}))
	defer server.Close()

	provider, err := NewProvider(testConfig(server.URL))
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	defer provider.Close()

	result, err := provider.Chat(context.Background(), &providers.ChatRequest{
		Model: "claude-sonnet-4",
		Messages: []providers.Message{
			{Role: providers.RoleSystem, Content: "Be rigorous."},
			{Role: providers.RoleUser, Content: "Solve for x."},
		},
	})
	if err != nil {
		t.Fatalf("chat failed: %v", err)
	}

	// Text blocks concatenate
	if result.Content != "Let x = 2." {
		t.Errorf("unexpected content: %q", result.Content)
	}
	if result.FinishReason != providers.FinishReasonStop {
		t.Errorf("expected stop, got %q", result.FinishReason)
	}

	// Usage stays raw, provider-specific keys included
	if result.Usage["cache_read_input_tokens"] != float64(5) {
		t.Errorf("expected raw usage preserved, got %v", result.Usage)
	}

	// System message extracted into the top-level field
	if captured["system"] != "Be rigorous." {
		t.Errorf("expected system field, got %v", captured["system"])
	}
	messages, ok := captured["messages"].([]interface{})
	if !ok || len(messages) != 1 {
		t.Fatalf("expected 1 wire message, got %v", captured["messages"])
	}

	// max_tokens is mandatory and defaulted
	if captured["max_tokens"] != float64(defaultMaxTokens) {
		t.Errorf("expected default max_tokens, got %v", captured["max_tokens"])
	}
}

func TestChat_MergesConsecutiveRoles(t *testing.T) {
	var captured map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_02", "type": "message", "role": "assistant",
			"content": [{"type": "text", "text": "ok"}],
			"model": "claude-sonnet-4", "stop_reason": "end_turn",
			"usage": {"input_tokens": 1, "output_tokens": 1}
		}`))
	}))
	defer server.Close()

	provider, err := NewProvider(testConfig(server.URL))
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	defer provider.Close()

	_, err = provider.Chat(context.Background(), &providers.ChatRequest{
		Model: "claude-sonnet-4",
		Messages: []providers.Message{
			{Role: providers.RoleUser, Content: "Problem statement."},
			{Role: providers.RoleUser, Content: "Extra constraint."},
			{Role: providers.RoleAssistant, Content: "Draft."},
		},
	})
	if err != nil {
		t.Fatalf("chat failed: %v", err)
	}

	messages := captured["messages"].([]interface{})
	if len(messages) != 2 {
		t.Fatalf("expected consecutive user turns merged into 2 messages, got %d", len(messages))
	}
	first := messages[0].(map[string]interface{})
	content, _ := first["content"].(string)
	if content != "Problem statement.\n\nExtra constraint." {
		t.Errorf("expected merged content, got %q", content)
	}
}

func TestChat_ImageConversion(t *testing.T) {
	var captured map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_03", "type": "message", "role": "assistant",
			"content": [{"type": "text", "text": "a triangle"}],
			"model": "claude-sonnet-4", "stop_reason": "end_turn",
			"usage": {"input_tokens": 1, "output_tokens": 1}
		}`))
	}))
	defer server.Close()

	provider, err := NewProvider(testConfig(server.URL))
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	defer provider.Close()

	_, err = provider.Chat(context.Background(), &providers.ChatRequest{
		Model: "claude-sonnet-4",
		Messages: []providers.Message{
			{Role: providers.RoleUser, Content: []interface{}{
				map[string]interface{}{"type": "text", "text": "What shape is this?"},
				map[string]interface{}{"type": "image_url", "image_url": map[string]interface{}{
					"url": "data:image/png;base64,iVBORw0KGgo=",
				}},
			}},
		},
	})
	if err != nil {
		t.Fatalf("chat failed: %v", err)
	}

	messages := captured["messages"].([]interface{})
	blocks := messages[0].(map[string]interface{})["content"].([]interface{})
	if len(blocks) != 2 {
		t.Fatalf("expected 2 content blocks, got %d", len(blocks))
	}

	image := blocks[1].(map[string]interface{})
	if image["type"] != "image" {
		t.Fatalf("expected image block, got %v", image["type"])
	}
	source := image["source"].(map[string]interface{})
	if source["type"] != "base64" {
		t.Errorf("expected base64 source for data URL, got %v", source["type"])
	}
	if source["media_type"] != "image/png" {
		t.Errorf("expected media type from data URL, got %v", source["media_type"])
	}
	if source["data"] != "iVBORw0KGgo=" {
		t.Errorf("expected payload from data URL, got %v", source["data"])
	}
}

func TestResponse_Unsupported(t *testing.T) {
	provider, err := NewProvider(testConfig("http://localhost:0"))
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	defer provider.Close()

	_, err = provider.Response(context.Background(), &providers.ResponseRequest{
		Model: "claude-sonnet-4",
		Input: []providers.Message{{Role: "user", Content: "x"}},
	})

	var invalidErr *providers.InvalidRequestError
	if !errors.As(err, &invalidErr) {
		t.Errorf("expected InvalidRequestError, got %T: %v", err, err)
	}
}

func TestChatStream(t *testing.T) {
	events := []string{
		"event: message_start\ndata: {\"type\":\"message_start\",\"message\":{\"id\":\"msg_1\",\"type\":\"message\",\"role\":\"assistant\",\"content\":[],\"model\":\"claude-sonnet-4\",\"usage\":{\"input_tokens\":25,\"output_tokens\":1}}}",
		"event: content_block_start\ndata: {\"type\":\"content_block_start\",\"index\":0,\"content_block\":{\"type\":\"text\",\"text\":\"\"}}",
		"event: ping\ndata: {\"type\":\"ping\"}",
		"event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\"Hello\"}}",
		"event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\" there\"}}",
		"event: content_block_stop\ndata: {\"type\":\"content_block_stop\",\"index\":0}",
		"event: message_delta\ndata: {\"type\":\"message_delta\",\"delta\":{\"stop_reason\":\"end_turn\"},\"usage\":{\"output_tokens\":12}}",
		"event: message_stop\ndata: {\"type\":\"message_stop\"}",
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		if payload["stream"] != true {
			t.Error("expected stream true in payload")
		}

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, event := range events {
			fmt.Fprintf(w, "%s\n\n", event)
			flusher.Flush()
			time.Sleep(5 * time.Millisecond)
		}
	}))
	defer server.Close()

	provider, err := NewProvider(testConfig(server.URL))
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	defer provider.Close()

	stream, err := provider.ChatStream(context.Background(), &providers.ChatRequest{
		Model:    "claude-sonnet-4",
		Messages: []providers.Message{{Role: "user", Content: "Say hello"}},
	})
	if err != nil {
		t.Fatalf("failed to start stream: %v", err)
	}

	var content string
	var finishReason string
	var usage map[string]interface{}

	for chunk := range stream {
		if chunk.Error != nil {
			t.Fatalf("unexpected stream error: %v", chunk.Error)
		}
		content += chunk.Delta
		if chunk.FinishReason != "" {
			finishReason = chunk.FinishReason
		}
		if chunk.Usage != nil {
			usage = chunk.Usage
		}
	}

	if content != "Hello there" {
		t.Errorf("expected %q, got %q", "Hello there", content)
	}
	if finishReason != providers.FinishReasonStop {
		t.Errorf("expected stop, got %q", finishReason)
	}

	// Usage combines input tokens from message_start with the final counts
	if usage == nil {
		t.Fatal("expected usage on the final chunk")
	}
	if usage["input_tokens"] != float64(25) {
		t.Errorf("expected input_tokens 25, got %v", usage["input_tokens"])
	}
	if usage["output_tokens"] != float64(12) {
		t.Errorf("expected output_tokens 12, got %v", usage["output_tokens"])
	}
}

func TestChatStream_ErrorEvent(t *testing.T) {
	events := []string{
		"event: message_start\ndata: {\"type\":\"message_start\",\"message\":{\"id\":\"msg_1\",\"type\":\"message\",\"role\":\"assistant\",\"content\":[],\"model\":\"claude-sonnet-4\",\"usage\":{\"input_tokens\":5,\"output_tokens\":0}}}",
		"event: error\ndata: {\"type\":\"error\",\"error\":{\"type\":\"overloaded_error\",\"message\":\"Overloaded\"}}",
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, event := range events {
			fmt.Fprintf(w, "%s\n\n", event)
			flusher.Flush()
		}
	}))
	defer server.Close()

	provider, err := NewProvider(testConfig(server.URL))
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	defer provider.Close()

	stream, err := provider.ChatStream(context.Background(), &providers.ChatRequest{
		Model:    "claude-sonnet-4",
		Messages: []providers.Message{{Role: "user", Content: "x"}},
	})
	if err != nil {
		t.Fatalf("failed to start stream: %v", err)
	}

	var streamErr error
	for chunk := range stream {
		if chunk.Error != nil {
			streamErr = chunk.Error
		}
	}

	if streamErr == nil {
		t.Fatal("expected error chunk from error event")
	}
	var se *providers.StreamError
	if !errors.As(streamErr, &se) {
		t.Fatalf("expected StreamError, got %T: %v", streamErr, streamErr)
	}
	if se.Message != "Overloaded" {
		t.Errorf("expected upstream message, got %q", se.Message)
	}
}

func TestParseDataURL(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		wantMedia string
		wantData  string
		wantOK    bool
	}{
		{"png data url", "data:image/png;base64,AAAA", "image/png", "AAAA", true},
		{"jpeg data url", "data:image/jpeg;base64,BBBB", "image/jpeg", "BBBB", true},
		{"plain http url", "https://example.com/a.png", "", "", false},
		{"malformed", "data:image/png", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			media, data, ok := parseDataURL(tt.url)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if media != tt.wantMedia || data != tt.wantData {
				t.Errorf("got (%q, %q), want (%q, %q)", media, data, tt.wantMedia, tt.wantData)
			}
		})
	}
}
