package config

import "time"

// Config is the root configuration structure for Minerva.
// It contains all configuration sections for the HTTP server, providers,
// logical models, pricing, rate limiting, caching, the usage ledger,
// telemetry, and engine defaults.
type Config struct {
	// Server contains HTTP server configuration including listen address,
	// timeouts, and connection limits.
	Server ServerConfig `yaml:"server"`

	// Auth contains API key authentication configuration for the service
	// surface (not the upstream provider keys).
	Auth AuthConfig `yaml:"auth"`

	// Providers contains configuration for all LLM provider backends.
	// Keys are provider names (e.g., "openai", "anthropic").
	Providers map[string]ProviderConfig `yaml:"providers"`

	// Models is the logical model registry. Keys are the model ids clients
	// send (e.g., "minerva-deep"); each entry routes to a provider, names
	// the backend model, and carries the engine defaults for that model.
	Models map[string]ModelConfig `yaml:"models"`

	// Pricing contains per-provider, per-model token rates used for cost
	// estimation. Rates are USD per million tokens.
	Pricing map[string]map[string]ModelPricingConfig `yaml:"pricing"`

	// RateLimit contains the system-wide admission control defaults.
	// Per-model rpm and per-request rate_limit fields refine these.
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Cache contains prefix cache configuration (response-id reuse).
	Cache CacheConfig `yaml:"cache"`

	// Ledger contains usage ledger configuration.
	Ledger LedgerConfig `yaml:"ledger"`

	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`

	// Engine contains global engine behavior switches that are not
	// per-model (those live in Models).
	Engine EngineConfig `yaml:"engine"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8080", "0.0.0.0:8080").
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body. A zero or negative value means no timeout.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. Engine runs are long; this must cover a full reasoning
	// request. A zero or negative value means no timeout.
	// Default: 30m
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled. If IdleTimeout is zero, ReadTimeout is used.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// If requests are still in-flight after this timeout, the server will
	// force shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes controls the maximum number of bytes the server will
	// read parsing the request header's keys and values, including the
	// request line. It does not limit the size of the request body.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// RequestTimeout bounds the handling of a single request end to end.
	// Engine runs that exceed it are cancelled and reported as a timeout.
	// Zero means no per-request deadline.
	// Default: 0
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// CORS contains Cross-Origin Resource Sharing configuration.
	CORS CORSConfig `yaml:"cors"`

	// TLS contains TLS configuration for the listener.
	TLS TLSConfig `yaml:"tls"`
}

// CORSConfig contains CORS (Cross-Origin Resource Sharing) configuration.
type CORSConfig struct {
	// Enabled controls whether CORS is enabled.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// AllowedOrigins is a list of allowed origins for CORS requests.
	// Use ["*"] to allow all origins (not recommended for production).
	// Default: ["*"]
	AllowedOrigins []string `yaml:"allowed_origins"`

	// AllowedMethods is a list of allowed HTTP methods for CORS requests.
	// Default: ["GET", "POST", "OPTIONS"]
	AllowedMethods []string `yaml:"allowed_methods"`

	// AllowedHeaders is a list of allowed HTTP headers for CORS requests.
	// Default: ["Authorization", "Content-Type", "X-API-Key", "X-Request-ID"]
	AllowedHeaders []string `yaml:"allowed_headers"`

	// ExposedHeaders is a list of headers that are exposed to the client.
	// Default: ["X-Request-ID"]
	ExposedHeaders []string `yaml:"exposed_headers"`

	// MaxAge is the maximum age (in seconds) for preflight request cache.
	// Default: 3600 (1 hour)
	MaxAge int `yaml:"max_age"`

	// AllowCredentials controls whether credentials (cookies, auth headers)
	// are allowed in CORS requests.
	// Default: false
	AllowCredentials bool `yaml:"allow_credentials"`
}

// TLSConfig contains TLS configuration for the server listener.
type TLSConfig struct {
	// Enabled controls whether TLS is enabled.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// CertFile is the path to the TLS certificate file.
	// Required when Enabled is true.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the TLS private key file.
	// Required when Enabled is true.
	KeyFile string `yaml:"key_file"`

	// MinVersion is the minimum TLS version to accept.
	// Options: "1.2", "1.3"
	// Default: "1.3"
	MinVersion string `yaml:"min_version"`
}

// AuthConfig contains API key authentication for the service surface.
type AuthConfig struct {
	// Enabled controls whether requests must present a valid API key.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sources defines where to extract API keys from. Sources are tried
	// in order; the first one that yields a value wins.
	Sources []KeySourceConfig `yaml:"sources"`

	// Keys is the list of accepted API keys.
	Keys []APIKeyConfig `yaml:"keys"`
}

// KeySourceConfig defines one place to extract an API key from.
type KeySourceConfig struct {
	// Type is the source type.
	// Options: "header" (named header, optional scheme prefix),
	// "bearer" (Authorization: Bearer <key>)
	Type string `yaml:"type"`

	// Name is the header name for type "header" (e.g., "X-API-Key").
	Name string `yaml:"name,omitempty"`

	// Scheme is an optional scheme prefix stripped from the header value
	// for type "header" (e.g., "ApiKey" for "ApiKey <key>").
	Scheme string `yaml:"scheme,omitempty"`
}

// APIKeyConfig describes a single accepted API key. Exactly one of Key
// and Env should be set.
type APIKeyConfig struct {
	// Key is the literal key value.
	Key string `yaml:"key,omitempty"`

	// Env names an environment variable holding the key value. The
	// variable is resolved at load time; an unset variable leaves the
	// entry unusable and logs a warning.
	Env string `yaml:"env,omitempty"`

	// Name labels the key in logs and usage records. Never log the key
	// itself.
	Name string `yaml:"name,omitempty"`
}

// ProviderConfig contains configuration for a single LLM provider backend.
type ProviderConfig struct {
	// Type is the adapter type.
	// Options: "openai", "anthropic", "generic"
	// Default: the provider name when it names a known type, else "generic"
	Type string `yaml:"type"`

	// BaseURL is the base URL for the provider's API endpoint.
	// Example: "https://api.openai.com/v1"
	BaseURL string `yaml:"base_url"`

	// APIKey is the authentication key for the provider. Supports ${VAR}
	// substitution from the environment; unresolved placeholders fail
	// validation.
	APIKey string `yaml:"api_key"`

	// Timeout is the maximum duration for requests to this provider.
	// Reasoning backends run long; keep this generous.
	// Default: 300s
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is the maximum number of retry attempts for failed requests.
	// Default: 3
	MaxRetries int `yaml:"max_retries"`

	// Capabilities, when present, replaces the adapter's default feature
	// set wholesale. List every capability the backend supports.
	Capabilities *CapabilitiesConfig `yaml:"capabilities,omitempty"`
}

// CapabilitiesConfig overrides a provider's declared feature set.
type CapabilitiesConfig struct {
	// SupportsResponses indicates the backend offers a Responses-style API
	// (structured output, previous_response_id continuation, server-side
	// store).
	SupportsResponses bool `yaml:"supports_responses"`

	// SupportsStreaming indicates chat streaming is available.
	SupportsStreaming bool `yaml:"supports_streaming"`

	// SupportsVision indicates image content parts are accepted.
	SupportsVision bool `yaml:"supports_vision"`

	// SupportsThinking indicates the backend reports reasoning tokens.
	SupportsThinking bool `yaml:"supports_thinking"`

	// SupportsCaching indicates provider-side prompt caching is available.
	SupportsCaching bool `yaml:"supports_caching"`
}

// ModelConfig defines one logical model: its provider route and the engine
// defaults applied when a request leaves the corresponding field unset.
type ModelConfig struct {
	// Name is a display name surfaced by model listings.
	// Default: the model id
	Name string `yaml:"name"`

	// Provider is the provider name; must reference an entry in the
	// providers section.
	Provider string `yaml:"provider"`

	// Model is the backend model identifier sent upstream
	// (e.g., "gpt-4o", "o3").
	Model string `yaml:"model"`

	// Level selects the engine for OpenAI-compatible requests.
	// Options: "deepthink", "ultrathink"
	// Default: "deepthink"
	Level string `yaml:"level"`

	// MaxIterations caps solving iterations (the initial attempt
	// included); per agent for ultrathink models.
	// Default: 20 (deepthink), 10 (ultrathink)
	MaxIterations int `yaml:"max_iterations"`

	// RequiredVerifications is the number of passing verifications needed
	// before the solution is accepted; per agent for ultrathink models.
	// Default: 3 (deepthink), 2 (ultrathink)
	RequiredVerifications int `yaml:"required_verifications"`

	// MaxErrors caps accumulated failed verifications before the engine
	// gives up. Resets on every success.
	// Default: 10
	MaxErrors int `yaml:"max_errors"`

	// EnablePlanning turns on the planning stage before the initial attempt.
	// Default: false
	EnablePlanning bool `yaml:"enable_planning"`

	// EnableParallelCheck turns on the arithmetic side-check that runs
	// alongside verification.
	// Default: false
	EnableParallelCheck bool `yaml:"enable_parallel_check"`

	// NumAgents is the agent count for ultrathink models.
	// Default: 4
	NumAgents int `yaml:"num_agents,omitempty"`

	// ParallelAgents caps concurrently running agents for ultrathink
	// models.
	// Default: 2
	ParallelAgents int `yaml:"parallel_run_agents"`

	// ModelStages overrides the backend model per engine stage. Keys are
	// stage names (planning, initial, verification, correction, synthesis,
	// summary); values are backend model identifiers.
	ModelStages map[string]string `yaml:"model_stages,omitempty"`

	// RPM is a per-model requests-per-minute limit. When set, requests for
	// this model get a fixed window of (rpm, 60s) unless the request
	// configures a window itself. Zero means no model-level window.
	RPM int `yaml:"rpm,omitempty"`
}

// ModelPricingConfig contains token rates for a specific model, in USD per
// million tokens. A zero rate means that token class is unpriced.
type ModelPricingConfig struct {
	// Prompt is the rate for uncached input tokens.
	Prompt float64 `yaml:"prompt"`

	// CachedPrompt is the discounted rate for cached input tokens.
	CachedPrompt float64 `yaml:"cached_prompt"`

	// Completion is the rate for regular output tokens.
	Completion float64 `yaml:"completion"`

	// Reasoning is the rate for reasoning output tokens.
	Reasoning float64 `yaml:"reasoning"`
}

// RateLimitConfig contains system-wide admission control defaults. A zero
// value for qps or window_limit leaves that mechanism off; per-model rpm
// and per-request settings layer on top.
type RateLimitConfig struct {
	// QPS is the token bucket refill rate in requests per second.
	// Zero disables the bucket.
	QPS float64 `yaml:"qps"`

	// Burst is the token bucket capacity. Zero with a positive QPS
	// defaults to 1.
	Burst int `yaml:"burst"`

	// WindowLimit is the maximum number of requests per fixed window.
	// Zero disables the window.
	WindowLimit int `yaml:"window_limit"`

	// WindowSeconds is the fixed window length in seconds. Fractional
	// values are allowed.
	WindowSeconds float64 `yaml:"window_seconds"`

	// Timeout bounds how long an admission may wait under the "wait"
	// strategy before failing with a timeout.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// Strategy selects the behavior when a limit is hit.
	// Options: "wait" (block until admitted or timeout), "fail" (reject
	// immediately)
	// Default: "wait"
	Strategy string `yaml:"strategy"`

	// BucketTemplate shapes the limiter key. Placeholders {provider} and
	// {model} are substituted per call.
	// Default: "{provider}:{model}"
	BucketTemplate string `yaml:"bucket_template"`
}

// CacheConfig contains prefix cache configuration. The cache stores
// provider response ids keyed by a hash of the static prompt prefix so
// repeated runs reuse server-side context.
type CacheConfig struct {
	// Enabled controls whether the prefix cache is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Backend selects the store.
	// Options: "memory", "sqlite", "redis"
	// Default: "memory"
	Backend string `yaml:"backend"`

	// Path is the database file path for the sqlite backend.
	// Default: "data/cache.db"
	Path string `yaml:"path"`

	// Redis contains connection settings for the redis backend.
	Redis RedisConfig `yaml:"redis"`

	// TTL is how long an entry stays valid. Zero means no expiry.
	// Default: 24h
	TTL time.Duration `yaml:"ttl"`

	// SweepSchedule is a 5-field cron expression for expired-entry sweeps.
	// Default: "0 * * * *" (hourly)
	SweepSchedule string `yaml:"sweep_schedule"`
}

// RedisConfig contains redis connection settings.
type RedisConfig struct {
	// Addr is the redis server address ("host:port").
	Addr string `yaml:"addr"`

	// Password is the redis password. Supports ${VAR} substitution.
	Password string `yaml:"password"`

	// DB is the redis database number.
	// Default: 0
	DB int `yaml:"db"`
}

// LedgerConfig contains usage ledger configuration. The ledger records one
// row per engine request with token and cost breakdowns.
type LedgerConfig struct {
	// Enabled controls whether usage records are written.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Backend selects the store.
	// Options: "sqlite", "memory"
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// Path is the database file path for the sqlite backend.
	// Default: "data/ledger.db"
	Path string `yaml:"path"`

	// RetentionDays is how many days of records to keep. Zero keeps
	// records forever.
	// Default: 90
	RetentionDays int `yaml:"retention_days"`

	// PruneSchedule is a 5-field cron expression for retention pruning.
	// Default: "0 3 * * *" (daily at 3 AM)
	PruneSchedule string `yaml:"prune_schedule"`

	// BufferSize is the size of the async write channel buffer.
	// Default: 1024
	BufferSize int `yaml:"buffer_size"`

	// WriteTimeout bounds a single storage write.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactPII enables automatic redaction of API keys and bearer tokens
	// in log output.
	// Default: true
	RedactPII bool `yaml:"redact_pii"`

	// BufferSize is the size of the async log buffer. Zero writes
	// synchronously.
	// Default: 10000
	BufferSize int `yaml:"buffer_size"`

	// RedactPatterns contains custom redaction patterns applied in
	// addition to the built-ins.
	RedactPatterns []RedactPattern `yaml:"redact_patterns,omitempty"`
}

// RedactPattern defines a custom redaction pattern.
type RedactPattern struct {
	// Name is a descriptive name for the pattern.
	Name string `yaml:"name"`

	// Pattern is the regular expression to match.
	Pattern string `yaml:"pattern"`

	// Replacement is the string to replace matches with.
	Replacement string `yaml:"replacement"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Namespace is the metric name prefix.
	// Default: "mercator"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: "minerva"
	Subsystem string `yaml:"subsystem"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// RequestDurationBuckets defines histogram buckets for request duration
	// in seconds. Engine requests run far longer than proxy requests.
	// Default: [0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600]
	RequestDurationBuckets []float64 `yaml:"request_duration_buckets"`

	// TokenCountBuckets defines histogram buckets for token counts.
	// Default: [100, 500, 1000, 5000, 10000, 50000, 100000, 500000]
	TokenCountBuckets []float64 `yaml:"token_count_buckets"`
}

// TracingConfig contains distributed tracing configuration. Spans are
// exported over OTLP gRPC; any collector speaking OTLP (Jaeger, Tempo,
// an OpenTelemetry Collector) can receive them.
type TracingConfig struct {
	// Enabled controls whether tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler selects the sampling strategy: "always", "never", "ratio".
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces sampled in [0,1]. Only used
	// with the "ratio" sampler.
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS on the exporter connection.
	// Default: true (collectors are typically local sidecars)
	Insecure bool `yaml:"insecure"`

	// Timeout bounds each export batch.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`

	// ServiceName is the service.name resource attribute.
	// Default: "minerva"
	ServiceName string `yaml:"service_name"`
}

// EngineConfig contains global engine behavior switches.
type EngineConfig struct {
	// MaxErrorsBeforeGiveUp is the fallback error budget applied when a
	// model entry does not set max_errors.
	// Default: 10
	MaxErrorsBeforeGiveUp int `yaml:"max_errors_before_give_up"`

	// StrictAgentConfigs makes unparseable agent-configuration output a
	// hard error instead of falling back to synthesized agent configs.
	// Default: false
	StrictAgentConfigs bool `yaml:"strict_agent_configs"`

	// StrictUsageValidation promotes usage accounting inconsistencies from
	// warnings to errors.
	// Default: false
	StrictUsageValidation bool `yaml:"strict_usage_validation"`
}
