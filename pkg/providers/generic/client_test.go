package generic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"mercator-hq/minerva/pkg/providers"
)

func TestNewProvider_Validation(t *testing.T) {
	t.Run("missing name", func(t *testing.T) {
		_, err := NewProvider(providers.ProviderConfig{BaseURL: "http://localhost:11434/v1"})
		var cfgErr *providers.ConfigError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("expected ConfigError, got %T: %v", err, err)
		}
		if cfgErr.Field != "name" {
			t.Errorf("expected field %q, got %q", "name", cfgErr.Field)
		}
	})

	t.Run("missing base url", func(t *testing.T) {
		_, err := NewProvider(providers.ProviderConfig{Name: "ollama"})
		var cfgErr *providers.ConfigError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("expected ConfigError, got %T: %v", err, err)
		}
		if cfgErr.Field != "base_url" {
			t.Errorf("expected field %q, got %q", "base_url", cfgErr.Field)
		}
	})

	t.Run("api key optional", func(t *testing.T) {
		p, err := NewProvider(providers.ProviderConfig{
			Name:    "ollama",
			BaseURL: "http://localhost:11434/v1",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer p.Close()

		if p.GetType() != "generic" {
			t.Errorf("expected type generic, got %q", p.GetType())
		}
	})

	t.Run("conservative default capabilities", func(t *testing.T) {
		p, err := NewProvider(providers.ProviderConfig{
			Name:    "lmstudio",
			BaseURL: "http://localhost:1234/v1",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer p.Close()

		caps := p.GetCapabilities()
		if caps.SupportsResponses {
			t.Error("generic backends must not claim Responses support by default")
		}
		if !caps.SupportsStreaming {
			t.Error("expected streaming support by default")
		}
		if caps.SupportsVision || caps.SupportsThinking || caps.SupportsCaching {
			t.Errorf("expected vision/thinking/caching off by default, got %+v", caps)
		}
	})

	t.Run("capabilities override", func(t *testing.T) {
		p, err := NewProvider(providers.ProviderConfig{
			Name:    "vllm",
			BaseURL: "http://localhost:8000/v1",
			Capabilities: &providers.Capabilities{
				SupportsStreaming: true,
				SupportsVision:    true,
			},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer p.Close()

		if !p.GetCapabilities().SupportsVision {
			t.Error("expected vision support from config override")
		}
	})
}

func TestChat(t *testing.T) {
	var captured map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("expected path /v1/chat/completions, got %s", r.URL.Path)
		}
		// The placeholder key still rides the Authorization header
		if auth := r.Header.Get("Authorization"); auth != "Bearer not-required" {
			t.Errorf("expected placeholder bearer token, got %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-local", "object": "chat.completion", "created": 1700000000,
			"model": "llama3",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "Hello from Ollama!"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 9, "completion_tokens": 5, "total_tokens": 14}
		}`))
	}))
	defer server.Close()

	provider, err := NewProvider(providers.ProviderConfig{
		Name:    "ollama",
		BaseURL: server.URL + "/v1",
	})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	defer provider.Close()

	result, err := provider.Chat(context.Background(), &providers.ChatRequest{
		Model:    "llama3",
		Messages: []providers.Message{{Role: providers.RoleUser, Content: "Hello"}},
		Extra:    map[string]interface{}{"num_ctx": 8192},
	})
	if err != nil {
		t.Fatalf("chat failed: %v", err)
	}

	if result.Content != "Hello from Ollama!" {
		t.Errorf("unexpected content: %q", result.Content)
	}
	if result.Usage["total_tokens"] != float64(14) {
		t.Errorf("expected raw usage passthrough, got %v", result.Usage)
	}

	// Backend-specific params pass through untouched
	if captured["num_ctx"] != float64(8192) {
		t.Errorf("expected num_ctx forwarded, got %v", captured["num_ctx"])
	}
}

func TestResponse_UnsupportedByDefault(t *testing.T) {
	provider, err := NewProvider(providers.ProviderConfig{
		Name:    "ollama",
		BaseURL: "http://localhost:11434/v1",
	})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	defer provider.Close()

	_, err = provider.Response(context.Background(), &providers.ResponseRequest{
		Model: "llama3",
		Input: []providers.Message{{Role: "user", Content: "x"}},
	})

	var invalidErr *providers.InvalidRequestError
	if !errors.As(err, &invalidErr) {
		t.Errorf("expected InvalidRequestError, got %T: %v", err, err)
	}
}
