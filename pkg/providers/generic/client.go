package generic

import (
	"log/slog"

	"mercator-hq/minerva/pkg/providers"
	"mercator-hq/minerva/pkg/providers/openai"
)

// DefaultCapabilities is the feature set assumed for OpenAI-compatible
// backends when the config does not declare one. Local servers speak the
// chat completions dialect; almost none implement /responses, so that
// flag is off and the engines fall back to full-history chat.
var DefaultCapabilities = providers.Capabilities{
	SupportsResponses: false,
	SupportsStreaming: true,
	SupportsVision:    false,
	SupportsThinking:  false,
	SupportsCaching:   false,
}

// Provider is a generic OpenAI-compatible provider adapter.
// It supports any backend that implements the OpenAI API format,
// such as Ollama, LM Studio, vLLM and FastChat.
//
// This adapter reuses the OpenAI request/response handling but allows
// custom base URLs and optional API keys.
type Provider struct {
	*openai.Provider
}

// NewProvider creates a new generic OpenAI-compatible provider instance.
func NewProvider(config providers.ProviderConfig) (*Provider, error) {
	if config.Name == "" {
		return nil, &providers.ConfigError{
			Provider: "generic",
			Field:    "name",
			Message:  "provider name is required",
		}
	}

	if config.BaseURL == "" {
		return nil, &providers.ConfigError{
			Provider: config.Name,
			Field:    "base_url",
			Message:  "base URL is required for generic provider",
		}
	}

	// API key is optional for generic providers (local models don't need it).
	// Set a placeholder if not provided so the OpenAI adapter's validation passes.
	if config.APIKey == "" {
		config.APIKey = "not-required"
	}

	if config.MaxRetries == 0 {
		config.MaxRetries = 1 // Local providers typically don't need retries
	}
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = 10
	}
	if config.MaxIdleConnsPerHost == 0 {
		config.MaxIdleConnsPerHost = 5
	}

	if config.Capabilities == nil {
		caps := DefaultCapabilities
		config.Capabilities = &caps
	}

	openaiProvider, err := openai.NewProvider(config)
	if err != nil {
		return nil, err
	}

	p := &Provider{
		Provider: openaiProvider,
	}

	slog.Info("Generic OpenAI-compatible provider initialized",
		"provider", config.Name,
		"base_url", config.BaseURL,
		"type", "generic",
	)

	return p, nil
}

// GetType returns "generic" as the provider type.
func (p *Provider) GetType() string {
	return "generic"
}
