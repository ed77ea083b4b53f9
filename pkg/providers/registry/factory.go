package registry

import (
	"context"
	"fmt"
	"log/slog"

	"mercator-hq/minerva/pkg/providers"
	"mercator-hq/minerva/pkg/providers/anthropic"
	"mercator-hq/minerva/pkg/providers/generic"
	"mercator-hq/minerva/pkg/providers/openai"
)

// NewProvider creates a provider instance from the configuration.
// It selects the adapter by config.Type.
//
// Supported provider types:
//   - "openai": OpenAI API (chat completions + Responses)
//   - "anthropic": Anthropic Messages API
//   - "generic": OpenAI-compatible APIs (Ollama, LM Studio, vLLM, etc.)
//
// If config.Type is empty it is inferred from the provider name:
// "openai" and "anthropic" map to their adapters; everything else is generic.
func NewProvider(config providers.ProviderConfig) (providers.Provider, error) {
	providerType := config.Type
	if providerType == "" {
		providerType = inferProviderType(config.Name)
		config.Type = providerType
	}

	slog.Debug("creating provider",
		"name", config.Name,
		"type", providerType,
		"base_url", config.BaseURL,
	)

	var provider providers.Provider
	var err error

	switch providerType {
	case "openai":
		provider, err = openai.NewProvider(config)

	case "anthropic":
		provider, err = anthropic.NewProvider(config)

	case "generic":
		provider, err = generic.NewProvider(config)

	default:
		return nil, &providers.ConfigError{
			Provider: config.Name,
			Field:    "type",
			Message:  fmt.Sprintf("unsupported provider type: %q (supported: openai, anthropic, generic)", providerType),
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create provider %q: %w", config.Name, err)
	}

	slog.Info("provider created",
		"name", config.Name,
		"type", providerType,
	)

	return provider, nil
}

// NewProviderWithHealthCheck creates a provider and starts its background
// health checker. The context stops the checker.
func NewProviderWithHealthCheck(ctx context.Context, config providers.ProviderConfig) (providers.Provider, error) {
	provider, err := NewProvider(config)
	if err != nil {
		return nil, err
	}

	type healthCheckStarter interface {
		StartHealthChecker(context.Context)
	}

	if hcs, ok := provider.(healthCheckStarter); ok {
		hcs.StartHealthChecker(ctx)
		slog.Debug("health checker started", "provider", config.Name)
	}

	return provider, nil
}

// inferProviderType infers the provider type from the provider name.
func inferProviderType(name string) string {
	switch name {
	case "openai":
		return "openai"
	case "anthropic":
		return "anthropic"
	default:
		// Local and self-hosted backends speak the OpenAI dialect
		return "generic"
	}
}
