package config

import "time"

// ConfigBuilder provides a fluent API for building Config instances in tests.
// It starts with default values and allows selective overrides.
type ConfigBuilder struct {
	cfg Config
}

// NewTestConfig creates a new ConfigBuilder with sensible defaults for testing.
// The resulting configuration is valid and can be used immediately.
func NewTestConfig() *ConfigBuilder {
	cfg := *DefaultConfig()

	cfg.Providers = map[string]ProviderConfig{
		"openai": {
			Type:       "openai",
			BaseURL:    "https://api.openai.com/v1",
			APIKey:     "test-key",
			Timeout:    DefaultProviderTimeout,
			MaxRetries: DefaultProviderMaxRetries,
		},
	}
	cfg.Models = map[string]ModelConfig{
		"solver": {
			Provider: "openai",
			Model:    "gpt-4o",
		},
	}

	return &ConfigBuilder{cfg: cfg}
}

// Build fills remaining entry-level defaults and returns the built Config.
func (b *ConfigBuilder) Build() *Config {
	ApplyDefaults(&b.cfg)
	return &b.cfg
}

// WithListenAddress sets the server listen address.
func (b *ConfigBuilder) WithListenAddress(addr string) *ConfigBuilder {
	b.cfg.Server.ListenAddress = addr
	return b
}

// WithReadTimeout sets the server read timeout.
func (b *ConfigBuilder) WithReadTimeout(d time.Duration) *ConfigBuilder {
	b.cfg.Server.ReadTimeout = d
	return b
}

// WithProvider adds or updates a provider configuration.
func (b *ConfigBuilder) WithProvider(name string, provider ProviderConfig) *ConfigBuilder {
	if b.cfg.Providers == nil {
		b.cfg.Providers = make(map[string]ProviderConfig)
	}
	b.cfg.Providers[name] = provider
	return b
}

// WithModel adds or updates a logical model configuration.
func (b *ConfigBuilder) WithModel(id string, model ModelConfig) *ConfigBuilder {
	if b.cfg.Models == nil {
		b.cfg.Models = make(map[string]ModelConfig)
	}
	b.cfg.Models[id] = model
	return b
}

// WithPricing sets the token rates for a provider/model pair.
func (b *ConfigBuilder) WithPricing(provider, model string, rates ModelPricingConfig) *ConfigBuilder {
	if b.cfg.Pricing == nil {
		b.cfg.Pricing = make(map[string]map[string]ModelPricingConfig)
	}
	if b.cfg.Pricing[provider] == nil {
		b.cfg.Pricing[provider] = make(map[string]ModelPricingConfig)
	}
	b.cfg.Pricing[provider][model] = rates
	return b
}

// WithAuth enables authentication with the given keys and the default
// bearer and X-API-Key sources.
func (b *ConfigBuilder) WithAuth(keys ...APIKeyConfig) *ConfigBuilder {
	b.cfg.Auth.Enabled = true
	b.cfg.Auth.Keys = keys
	if len(b.cfg.Auth.Sources) == 0 {
		b.cfg.Auth.Sources = []KeySourceConfig{
			{Type: "bearer"},
			{Type: "header", Name: "X-API-Key"},
		}
	}
	return b
}

// WithRateLimit sets the token bucket defaults.
func (b *ConfigBuilder) WithRateLimit(qps float64, burst int) *ConfigBuilder {
	b.cfg.RateLimit.QPS = qps
	b.cfg.RateLimit.Burst = burst
	return b
}

// WithWindowLimit sets the fixed window defaults.
func (b *ConfigBuilder) WithWindowLimit(limit int, seconds float64) *ConfigBuilder {
	b.cfg.RateLimit.WindowLimit = limit
	b.cfg.RateLimit.WindowSeconds = seconds
	return b
}

// WithCacheBackend sets the prefix cache backend.
func (b *ConfigBuilder) WithCacheBackend(backend string) *ConfigBuilder {
	b.cfg.Cache.Backend = backend
	return b
}

// WithCacheEnabled sets whether the prefix cache is enabled.
func (b *ConfigBuilder) WithCacheEnabled(enabled bool) *ConfigBuilder {
	b.cfg.Cache.Enabled = enabled
	return b
}

// WithLedgerPath sets the ledger database path and selects the sqlite backend.
func (b *ConfigBuilder) WithLedgerPath(path string) *ConfigBuilder {
	b.cfg.Ledger.Backend = "sqlite"
	b.cfg.Ledger.Path = path
	return b
}

// WithLedgerEnabled sets whether the usage ledger is enabled.
func (b *ConfigBuilder) WithLedgerEnabled(enabled bool) *ConfigBuilder {
	b.cfg.Ledger.Enabled = enabled
	return b
}

// WithLoggingLevel sets the logging level.
func (b *ConfigBuilder) WithLoggingLevel(level string) *ConfigBuilder {
	b.cfg.Logging.Level = level
	return b
}

// WithLoggingFormat sets the logging format.
func (b *ConfigBuilder) WithLoggingFormat(format string) *ConfigBuilder {
	b.cfg.Logging.Format = format
	return b
}

// WithMetricsEnabled sets whether metrics are enabled.
func (b *ConfigBuilder) WithMetricsEnabled(enabled bool) *ConfigBuilder {
	b.cfg.Metrics.Enabled = enabled
	return b
}

// WithTLS sets TLS configuration.
func (b *ConfigBuilder) WithTLS(certFile, keyFile string) *ConfigBuilder {
	b.cfg.Server.TLS.Enabled = true
	b.cfg.Server.TLS.CertFile = certFile
	b.cfg.Server.TLS.KeyFile = keyFile
	return b
}

// MinimalConfig returns a minimal valid configuration for testing.
// This is useful for tests that don't care about most configuration values.
func MinimalConfig() *Config {
	return NewTestConfig().Build()
}
