package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateAuth(&cfg.Auth)...)
	errs = append(errs, validateProviders(cfg.Providers)...)
	errs = append(errs, validateModels(cfg.Models, cfg.Providers)...)
	errs = append(errs, validatePricing(cfg.Pricing)...)
	errs = append(errs, validateRateLimit(&cfg.RateLimit)...)
	errs = append(errs, validateCache(&cfg.Cache)...)
	errs = append(errs, validateLedger(&cfg.Ledger)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)
	errs = append(errs, validateMetrics(&cfg.Metrics)...)
	errs = append(errs, validateTracing(&cfg.Tracing)...)
	errs = append(errs, validateEngine(&cfg.Engine)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

// validateServer validates server configuration.
func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	}

	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.read_timeout",
			Message: "read timeout must be positive",
		})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.write_timeout",
			Message: "write timeout must be positive",
		})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.idle_timeout",
			Message: "idle timeout must be positive",
		})
	}
	if cfg.RequestTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.request_timeout",
			Message: "request timeout must be positive",
		})
	}

	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_header_bytes",
			Message: "max header bytes must be non-negative",
		})
	}
	if cfg.MaxHeaderBytes > 10*1024*1024 {
		errs = append(errs, FieldError{
			Field:   "server.max_header_bytes",
			Message: "max header bytes exceeds reasonable limit (10MB)",
		})
	}

	if cfg.TLS.Enabled {
		if cfg.TLS.CertFile == "" {
			errs = append(errs, FieldError{
				Field:   "server.tls.cert_file",
				Message: "TLS certificate file is required when TLS is enabled",
			})
		}
		if cfg.TLS.KeyFile == "" {
			errs = append(errs, FieldError{
				Field:   "server.tls.key_file",
				Message: "TLS key file is required when TLS is enabled",
			})
		}
	}
	if cfg.TLS.MinVersion != "" && cfg.TLS.MinVersion != "1.2" && cfg.TLS.MinVersion != "1.3" {
		errs = append(errs, FieldError{
			Field:   "server.tls.min_version",
			Message: fmt.Sprintf("invalid TLS version %q: must be '1.2' or '1.3'", cfg.TLS.MinVersion),
		})
	}

	return errs
}

// validateAuth validates authentication configuration.
func validateAuth(cfg *AuthConfig) []FieldError {
	var errs []FieldError

	if !cfg.Enabled {
		return errs
	}

	if len(cfg.Sources) == 0 {
		errs = append(errs, FieldError{
			Field:   "auth.sources",
			Message: "at least one key source is required when auth is enabled",
		})
	}
	for i, source := range cfg.Sources {
		prefix := fmt.Sprintf("auth.sources[%d]", i)
		switch source.Type {
		case "bearer":
			// Authorization: Bearer <key>, nothing else to check
		case "header":
			if source.Name == "" {
				errs = append(errs, FieldError{
					Field:   prefix + ".name",
					Message: "header name is required for source type 'header'",
				})
			}
		default:
			errs = append(errs, FieldError{
				Field:   prefix + ".type",
				Message: fmt.Sprintf("invalid source type %q: must be 'header' or 'bearer'", source.Type),
			})
		}
	}

	if len(cfg.Keys) == 0 {
		errs = append(errs, FieldError{
			Field:   "auth.keys",
			Message: "at least one API key is required when auth is enabled",
		})
	}
	usable := 0
	for i, key := range cfg.Keys {
		prefix := fmt.Sprintf("auth.keys[%d]", i)
		if key.Key == "" && key.Env == "" {
			errs = append(errs, FieldError{
				Field:   prefix,
				Message: "either key or env is required",
			})
			continue
		}
		if key.Key != "" {
			usable++
		}
	}
	if len(cfg.Keys) > 0 && usable == 0 {
		errs = append(errs, FieldError{
			Field:   "auth.keys",
			Message: "no usable API keys: every entry resolved to an empty value",
		})
	}

	return errs
}

// validateProviders validates provider configurations.
func validateProviders(providers map[string]ProviderConfig) []FieldError {
	var errs []FieldError

	if len(providers) == 0 {
		errs = append(errs, FieldError{
			Field:   "providers",
			Message: "at least one provider must be configured",
		})
		return errs
	}

	validTypes := map[string]bool{"openai": true, "anthropic": true, "generic": true}

	for name, provider := range providers {
		prefix := fmt.Sprintf("providers.%s", name)

		if provider.Type != "" && !validTypes[provider.Type] {
			errs = append(errs, FieldError{
				Field:   prefix + ".type",
				Message: fmt.Sprintf("invalid type %q: must be 'openai', 'anthropic', or 'generic'", provider.Type),
			})
		}

		if provider.BaseURL == "" {
			errs = append(errs, FieldError{
				Field:   prefix + ".base_url",
				Message: "base URL is required",
			})
		} else if !strings.HasPrefix(provider.BaseURL, "http://") && !strings.HasPrefix(provider.BaseURL, "https://") {
			errs = append(errs, FieldError{
				Field:   prefix + ".base_url",
				Message: "base URL must start with http:// or https://",
			})
		} else if _, err := url.Parse(provider.BaseURL); err != nil {
			errs = append(errs, FieldError{
				Field:   prefix + ".base_url",
				Message: fmt.Sprintf("invalid URL format: %v", err),
			})
		}

		// An unreplaced placeholder means the operator intended to inject a
		// secret and the environment does not have it. Empty keys are left
		// to the adapter, which may have a placeholder of its own (local
		// OpenAI-compatible backends run keyless).
		if HasEnvPlaceholder(provider.APIKey) {
			errs = append(errs, FieldError{
				Field:   prefix + ".api_key",
				Message: fmt.Sprintf("api_key contains unreplaced environment variable %q; set the variable or provide the key directly", provider.APIKey),
			})
		}

		if provider.Timeout < 0 {
			errs = append(errs, FieldError{
				Field:   prefix + ".timeout",
				Message: "timeout must be positive",
			})
		}
		if provider.MaxRetries < 0 {
			errs = append(errs, FieldError{
				Field:   prefix + ".max_retries",
				Message: "max retries must be non-negative",
			})
		}
		if provider.MaxRetries > 10 {
			errs = append(errs, FieldError{
				Field:   prefix + ".max_retries",
				Message: "max retries exceeds reasonable limit (10)",
			})
		}
	}

	return errs
}

// validStages mirrors the engine stage names; model_stages keys outside
// this set would silently never apply.
var validStages = map[string]bool{
	"planning":     true,
	"initial":      true,
	"verification": true,
	"correction":   true,
	"synthesis":    true,
	"summary":      true,
}

// validateModels validates the logical model registry.
func validateModels(models map[string]ModelConfig, providers map[string]ProviderConfig) []FieldError {
	var errs []FieldError

	if len(models) == 0 {
		errs = append(errs, FieldError{
			Field:   "models",
			Message: "at least one model must be configured",
		})
		return errs
	}

	for id, model := range models {
		prefix := fmt.Sprintf("models.%s", id)

		if model.Provider == "" {
			errs = append(errs, FieldError{
				Field:   prefix + ".provider",
				Message: "provider is required",
			})
		} else if _, ok := providers[model.Provider]; !ok {
			available := "none"
			if len(providers) > 0 {
				names := make([]string, 0, len(providers))
				for name := range providers {
					names = append(names, name)
				}
				available = strings.Join(names, ", ")
			}
			errs = append(errs, FieldError{
				Field:   prefix + ".provider",
				Message: fmt.Sprintf("provider %q not found; available providers: %s", model.Provider, available),
			})
		}

		if model.Model == "" {
			errs = append(errs, FieldError{
				Field:   prefix + ".model",
				Message: "backend model name is required",
			})
		}

		if model.Level != "deepthink" && model.Level != "ultrathink" {
			errs = append(errs, FieldError{
				Field:   prefix + ".level",
				Message: fmt.Sprintf("invalid level %q: must be 'deepthink' or 'ultrathink'", model.Level),
			})
		}

		if model.MaxIterations <= 0 {
			errs = append(errs, FieldError{
				Field:   prefix + ".max_iterations",
				Message: fmt.Sprintf("max_iterations must be positive (got %d)", model.MaxIterations),
			})
		}
		if model.RequiredVerifications <= 0 {
			errs = append(errs, FieldError{
				Field:   prefix + ".required_verifications",
				Message: fmt.Sprintf("required_verifications must be positive (got %d)", model.RequiredVerifications),
			})
		}
		if model.MaxErrors <= 0 {
			errs = append(errs, FieldError{
				Field:   prefix + ".max_errors",
				Message: fmt.Sprintf("max_errors must be positive (got %d)", model.MaxErrors),
			})
		}
		if model.ParallelAgents <= 0 {
			errs = append(errs, FieldError{
				Field:   prefix + ".parallel_run_agents",
				Message: fmt.Sprintf("parallel_run_agents must be positive (got %d)", model.ParallelAgents),
			})
		}
		if model.NumAgents < 0 {
			errs = append(errs, FieldError{
				Field:   prefix + ".num_agents",
				Message: fmt.Sprintf("num_agents must be positive when set (got %d)", model.NumAgents),
			})
		}
		if model.RPM < 0 {
			errs = append(errs, FieldError{
				Field:   prefix + ".rpm",
				Message: fmt.Sprintf("rpm must be positive when set (got %d)", model.RPM),
			})
		}

		for stage := range model.ModelStages {
			if !validStages[stage] {
				errs = append(errs, FieldError{
					Field:   prefix + ".model_stages." + stage,
					Message: "unknown stage name; valid stages are planning, initial, verification, correction, synthesis, summary",
				})
			}
		}
	}

	return errs
}

// validatePricing validates token rates.
func validatePricing(pricing map[string]map[string]ModelPricingConfig) []FieldError {
	var errs []FieldError

	for provider, models := range pricing {
		for model, rates := range models {
			prefix := fmt.Sprintf("pricing.%s.%s", provider, model)
			if rates.Prompt < 0 || rates.CachedPrompt < 0 || rates.Completion < 0 || rates.Reasoning < 0 {
				errs = append(errs, FieldError{
					Field:   prefix,
					Message: "rates must be non-negative",
				})
			}
		}
	}

	return errs
}

// validateRateLimit validates the admission control defaults.
func validateRateLimit(cfg *RateLimitConfig) []FieldError {
	var errs []FieldError

	if cfg.QPS < 0 {
		errs = append(errs, FieldError{
			Field:   "rate_limit.qps",
			Message: "qps must be non-negative",
		})
	}
	if cfg.Burst < 0 {
		errs = append(errs, FieldError{
			Field:   "rate_limit.burst",
			Message: "burst must be non-negative",
		})
	}
	if cfg.WindowLimit < 0 {
		errs = append(errs, FieldError{
			Field:   "rate_limit.window_limit",
			Message: "window_limit must be non-negative",
		})
	}
	if cfg.WindowSeconds < 0 {
		errs = append(errs, FieldError{
			Field:   "rate_limit.window_seconds",
			Message: "window_seconds must be non-negative",
		})
	}
	if cfg.WindowLimit > 0 && cfg.WindowSeconds <= 0 {
		errs = append(errs, FieldError{
			Field:   "rate_limit.window_seconds",
			Message: "window_seconds is required when window_limit is set",
		})
	}
	if cfg.Timeout < 0 {
		errs = append(errs, FieldError{
			Field:   "rate_limit.timeout",
			Message: "timeout must be positive",
		})
	}
	if cfg.Strategy != "" && cfg.Strategy != "wait" && cfg.Strategy != "fail" {
		errs = append(errs, FieldError{
			Field:   "rate_limit.strategy",
			Message: fmt.Sprintf("invalid strategy %q: must be 'wait' or 'fail'", cfg.Strategy),
		})
	}

	return errs
}

// validateCache validates the prefix cache configuration.
func validateCache(cfg *CacheConfig) []FieldError {
	var errs []FieldError

	if !cfg.Enabled {
		return errs
	}

	switch cfg.Backend {
	case "memory":
	case "sqlite":
		if cfg.Path == "" {
			errs = append(errs, FieldError{
				Field:   "cache.path",
				Message: "path is required for the sqlite backend",
			})
		}
	case "redis":
		if cfg.Redis.Addr == "" {
			errs = append(errs, FieldError{
				Field:   "cache.redis.addr",
				Message: "redis address is required for the redis backend",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "cache.backend",
			Message: fmt.Sprintf("invalid backend %q: must be 'memory', 'sqlite', or 'redis'", cfg.Backend),
		})
	}

	if cfg.TTL < 0 {
		errs = append(errs, FieldError{
			Field:   "cache.ttl",
			Message: "ttl must be non-negative",
		})
	}

	return errs
}

// validateLedger validates ledger configuration.
func validateLedger(cfg *LedgerConfig) []FieldError {
	var errs []FieldError

	if !cfg.Enabled {
		return errs
	}

	switch cfg.Backend {
	case "memory":
	case "sqlite":
		if cfg.Path == "" {
			errs = append(errs, FieldError{
				Field:   "ledger.path",
				Message: "path is required for the sqlite backend",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "ledger.backend",
			Message: fmt.Sprintf("invalid backend %q: must be 'sqlite' or 'memory'", cfg.Backend),
		})
	}

	if cfg.RetentionDays < 0 {
		errs = append(errs, FieldError{
			Field:   "ledger.retention_days",
			Message: "retention days must be non-negative",
		})
	}
	if cfg.RetentionDays > 3650 {
		errs = append(errs, FieldError{
			Field:   "ledger.retention_days",
			Message: "retention days exceeds reasonable limit (3650 days / 10 years)",
		})
	}
	if cfg.BufferSize < 0 {
		errs = append(errs, FieldError{
			Field:   "ledger.buffer_size",
			Message: "buffer size must be non-negative",
		})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "ledger.write_timeout",
			Message: "write timeout must be positive",
		})
	}

	return errs
}

// validateLogging validates logging configuration.
func validateLogging(cfg *LoggingConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Level] {
		errs = append(errs, FieldError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Level),
		})
	}

	if cfg.Format != "json" && cfg.Format != "text" {
		errs = append(errs, FieldError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json' or 'text'", cfg.Format),
		})
	}

	if cfg.BufferSize < 0 {
		errs = append(errs, FieldError{
			Field:   "logging.buffer_size",
			Message: "buffer size must be non-negative",
		})
	}

	for i, pattern := range cfg.RedactPatterns {
		prefix := fmt.Sprintf("logging.redact_patterns[%d]", i)
		if pattern.Pattern == "" {
			errs = append(errs, FieldError{
				Field:   prefix + ".pattern",
				Message: "pattern is required",
			})
			continue
		}
		if _, err := regexp.Compile(pattern.Pattern); err != nil {
			errs = append(errs, FieldError{
				Field:   prefix + ".pattern",
				Message: fmt.Sprintf("invalid regular expression: %v", err),
			})
		}
	}

	return errs
}

// validateMetrics validates metrics configuration.
func validateMetrics(cfg *MetricsConfig) []FieldError {
	var errs []FieldError

	if !cfg.Enabled {
		return errs
	}

	if cfg.Path == "" {
		errs = append(errs, FieldError{
			Field:   "metrics.path",
			Message: "metrics path is required when metrics are enabled",
		})
	} else if cfg.Path[0] != '/' {
		errs = append(errs, FieldError{
			Field:   "metrics.path",
			Message: "metrics path must start with /",
		})
	}

	// Prometheus rejects unsorted histogram buckets at registration time;
	// catch it here with a usable field name.
	errs = append(errs, validateBuckets("metrics.request_duration_buckets", cfg.RequestDurationBuckets)...)
	errs = append(errs, validateBuckets("metrics.token_count_buckets", cfg.TokenCountBuckets)...)

	return errs
}

// validateBuckets checks that histogram buckets are strictly increasing.
func validateBuckets(field string, buckets []float64) []FieldError {
	for i := 1; i < len(buckets); i++ {
		if buckets[i] <= buckets[i-1] {
			return []FieldError{{
				Field:   field,
				Message: fmt.Sprintf("buckets must be strictly increasing (bucket %d: %v <= %v)", i, buckets[i], buckets[i-1]),
			}}
		}
	}
	return nil
}

// validateTracing validates tracing configuration.
func validateTracing(cfg *TracingConfig) []FieldError {
	var errs []FieldError

	if !cfg.Enabled {
		return errs
	}

	switch cfg.Sampler {
	case "always", "never", "ratio":
	default:
		errs = append(errs, FieldError{
			Field:   "tracing.sampler",
			Message: fmt.Sprintf("unknown sampler %q (must be always, never or ratio)", cfg.Sampler),
		})
	}

	if cfg.Sampler == "ratio" && (cfg.SampleRatio < 0 || cfg.SampleRatio > 1) {
		errs = append(errs, FieldError{
			Field:   "tracing.sample_ratio",
			Message: "sample ratio must be in [0, 1]",
		})
	}

	if cfg.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "tracing.endpoint",
			Message: "endpoint is required when tracing is enabled",
		})
	}

	return errs
}

// validateEngine validates engine defaults.
func validateEngine(cfg *EngineConfig) []FieldError {
	var errs []FieldError

	if cfg.MaxErrorsBeforeGiveUp < 0 {
		errs = append(errs, FieldError{
			Field:   "engine.max_errors_before_give_up",
			Message: "max errors must be non-negative",
		})
	}

	return errs
}
