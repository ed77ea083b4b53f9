package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Minute
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB

	// CORS defaults
	DefaultCORSEnabled = true
	DefaultCORSMaxAge  = 3600 // 1 hour

	// TLS defaults
	DefaultTLSMinVersion = "1.3"

	// Provider defaults
	DefaultProviderTimeout    = 300 * time.Second
	DefaultProviderMaxRetries = 3

	// Model defaults. Iteration and verification defaults are per level:
	// a deepthink model runs one deep loop, an ultrathink model runs
	// shorter loops per agent across a wider fan-out.
	DefaultModelLevel              = "deepthink"
	DefaultDeepThinkMaxIterations  = 20
	DefaultDeepThinkVerifications  = 3
	DefaultUltraThinkMaxIterations = 10
	DefaultUltraThinkVerifications = 2
	DefaultNumAgents               = 4
	DefaultParallelAgents          = 2
	DefaultMaxErrors               = 10

	// Rate limit defaults
	DefaultRateLimitTimeout  = 30 * time.Second
	DefaultRateLimitStrategy = "wait"
	DefaultBucketTemplate    = "{provider}:{model}"

	// Cache defaults
	DefaultCacheEnabled       = true
	DefaultCacheBackend       = "memory"
	DefaultCachePath          = "data/cache.db"
	DefaultCacheTTL           = 24 * time.Hour
	DefaultCacheSweepSchedule = "0 * * * *"

	// Ledger defaults
	DefaultLedgerEnabled       = true
	DefaultLedgerBackend       = "sqlite"
	DefaultLedgerPath          = "data/ledger.db"
	DefaultLedgerRetentionDays = 90
	DefaultLedgerPruneSchedule = "0 3 * * *"
	DefaultLedgerBufferSize    = 1024
	DefaultLedgerWriteTimeout  = 5 * time.Second

	// Logging defaults
	DefaultLoggingLevel      = "info"
	DefaultLoggingFormat     = "json"
	DefaultLoggingRedactPII  = true
	DefaultLoggingBufferSize = 10000

	// Metrics defaults
	DefaultMetricsEnabled   = true
	DefaultMetricsNamespace = "mercator"
	DefaultMetricsSubsystem = "minerva"
	DefaultMetricsPath      = "/metrics"

	// Tracing defaults
	DefaultTracingSampler     = "ratio"
	DefaultTracingSampleRatio = 0.1
	DefaultTracingEndpoint    = "localhost:4317"
	DefaultTracingInsecure    = true
	DefaultTracingTimeout     = 10 * time.Second
	DefaultTracingServiceName = "minerva"

	// Engine defaults
	DefaultMaxErrorsBeforeGiveUp = 10
)

// DefaultConfig returns a Config populated with every default value.
// Loading decodes YAML over this seed so booleans that default to true
// (cache.enabled, logging.redact_pii, ...) survive being absent from the
// file while an explicit false still wins.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddress:   DefaultListenAddress,
			ReadTimeout:     DefaultReadTimeout,
			WriteTimeout:    DefaultWriteTimeout,
			IdleTimeout:     DefaultIdleTimeout,
			ShutdownTimeout: DefaultShutdownTimeout,
			MaxHeaderBytes:  DefaultMaxHeaderBytes,
			CORS: CORSConfig{
				Enabled:        DefaultCORSEnabled,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "OPTIONS"},
				AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key", "X-Request-ID"},
				ExposedHeaders: []string{"X-Request-ID"},
				MaxAge:         DefaultCORSMaxAge,
			},
			TLS: TLSConfig{
				MinVersion: DefaultTLSMinVersion,
			},
		},
		RateLimit: RateLimitConfig{
			Timeout:        DefaultRateLimitTimeout,
			Strategy:       DefaultRateLimitStrategy,
			BucketTemplate: DefaultBucketTemplate,
		},
		Cache: CacheConfig{
			Enabled:       DefaultCacheEnabled,
			Backend:       DefaultCacheBackend,
			Path:          DefaultCachePath,
			TTL:           DefaultCacheTTL,
			SweepSchedule: DefaultCacheSweepSchedule,
		},
		Ledger: LedgerConfig{
			Enabled:       DefaultLedgerEnabled,
			Backend:       DefaultLedgerBackend,
			Path:          DefaultLedgerPath,
			RetentionDays: DefaultLedgerRetentionDays,
			PruneSchedule: DefaultLedgerPruneSchedule,
			BufferSize:    DefaultLedgerBufferSize,
			WriteTimeout:  DefaultLedgerWriteTimeout,
		},
		Logging: LoggingConfig{
			Level:      DefaultLoggingLevel,
			Format:     DefaultLoggingFormat,
			RedactPII:  DefaultLoggingRedactPII,
			BufferSize: DefaultLoggingBufferSize,
		},
		Metrics: MetricsConfig{
			Enabled:                DefaultMetricsEnabled,
			Namespace:              DefaultMetricsNamespace,
			Subsystem:              DefaultMetricsSubsystem,
			Path:                   DefaultMetricsPath,
			RequestDurationBuckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
			TokenCountBuckets:      []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000},
		},
		Tracing: TracingConfig{
			Sampler:     DefaultTracingSampler,
			SampleRatio: DefaultTracingSampleRatio,
			Endpoint:    DefaultTracingEndpoint,
			Insecure:    DefaultTracingInsecure,
			Timeout:     DefaultTracingTimeout,
			ServiceName: DefaultTracingServiceName,
		},
		Engine: EngineConfig{
			MaxErrorsBeforeGiveUp: DefaultMaxErrorsBeforeGiveUp,
		},
	}
}

// ApplyDefaults fills remaining zero values in a decoded Config. It covers
// the parts DefaultConfig cannot seed: per-entry fields of the providers
// and models maps, and scalar fields zeroed out by an explicit empty value
// in the file. This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Server
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if cfg.Server.TLS.MinVersion == "" {
		cfg.Server.TLS.MinVersion = DefaultTLSMinVersion
	}
	applyCORSDefaults(&cfg.Server.CORS)

	// Providers
	for name, provider := range cfg.Providers {
		if provider.Type == "" {
			provider.Type = inferProviderType(name)
		}
		if provider.Timeout == 0 {
			provider.Timeout = DefaultProviderTimeout
		}
		if provider.MaxRetries == 0 {
			provider.MaxRetries = DefaultProviderMaxRetries
		}
		cfg.Providers[name] = provider
	}

	// Models
	for id, model := range cfg.Models {
		if model.Name == "" {
			model.Name = id
		}
		if model.Level == "" {
			model.Level = DefaultModelLevel
		}
		if model.Level == "ultrathink" {
			if model.MaxIterations == 0 {
				model.MaxIterations = DefaultUltraThinkMaxIterations
			}
			if model.RequiredVerifications == 0 {
				model.RequiredVerifications = DefaultUltraThinkVerifications
			}
			if model.NumAgents == 0 {
				model.NumAgents = DefaultNumAgents
			}
			if model.ParallelAgents == 0 {
				model.ParallelAgents = DefaultParallelAgents
			}
		} else {
			if model.MaxIterations == 0 {
				model.MaxIterations = DefaultDeepThinkMaxIterations
			}
			if model.RequiredVerifications == 0 {
				model.RequiredVerifications = DefaultDeepThinkVerifications
			}
		}
		if model.MaxErrors == 0 {
			model.MaxErrors = cfg.Engine.MaxErrorsBeforeGiveUp
			if model.MaxErrors == 0 {
				model.MaxErrors = DefaultMaxErrors
			}
		}
		cfg.Models[id] = model
	}

	// Rate limit
	if cfg.RateLimit.Timeout == 0 {
		cfg.RateLimit.Timeout = DefaultRateLimitTimeout
	}
	if cfg.RateLimit.Strategy == "" {
		cfg.RateLimit.Strategy = DefaultRateLimitStrategy
	}
	if cfg.RateLimit.BucketTemplate == "" {
		cfg.RateLimit.BucketTemplate = DefaultBucketTemplate
	}

	// Cache
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = DefaultCacheBackend
	}
	if cfg.Cache.Path == "" {
		cfg.Cache.Path = DefaultCachePath
	}
	if cfg.Cache.SweepSchedule == "" {
		cfg.Cache.SweepSchedule = DefaultCacheSweepSchedule
	}

	// Ledger
	if cfg.Ledger.Backend == "" {
		cfg.Ledger.Backend = DefaultLedgerBackend
	}
	if cfg.Ledger.Path == "" {
		cfg.Ledger.Path = DefaultLedgerPath
	}
	if cfg.Ledger.PruneSchedule == "" {
		cfg.Ledger.PruneSchedule = DefaultLedgerPruneSchedule
	}
	if cfg.Ledger.BufferSize == 0 {
		cfg.Ledger.BufferSize = DefaultLedgerBufferSize
	}
	if cfg.Ledger.WriteTimeout == 0 {
		cfg.Ledger.WriteTimeout = DefaultLedgerWriteTimeout
	}

	// Logging
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Logging.BufferSize == 0 {
		cfg.Logging.BufferSize = DefaultLoggingBufferSize
	}

	// Metrics
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.Subsystem == "" {
		cfg.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if len(cfg.Metrics.RequestDurationBuckets) == 0 {
		cfg.Metrics.RequestDurationBuckets = []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600}
	}
	if len(cfg.Metrics.TokenCountBuckets) == 0 {
		cfg.Metrics.TokenCountBuckets = []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000}
	}

	// Tracing
	if cfg.Tracing.Sampler == "" {
		cfg.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Tracing.SampleRatio == 0 {
		cfg.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Tracing.Endpoint == "" {
		cfg.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Tracing.Timeout == 0 {
		cfg.Tracing.Timeout = DefaultTracingTimeout
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = DefaultTracingServiceName
	}

	// Engine
	if cfg.Engine.MaxErrorsBeforeGiveUp == 0 {
		cfg.Engine.MaxErrorsBeforeGiveUp = DefaultMaxErrorsBeforeGiveUp
	}
}

// applyCORSDefaults fills zero values in the CORS section.
func applyCORSDefaults(cors *CORSConfig) {
	if len(cors.AllowedOrigins) == 0 {
		cors.AllowedOrigins = []string{"*"}
	}
	if len(cors.AllowedMethods) == 0 {
		cors.AllowedMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(cors.AllowedHeaders) == 0 {
		cors.AllowedHeaders = []string{"Authorization", "Content-Type", "X-API-Key", "X-Request-ID"}
	}
	if len(cors.ExposedHeaders) == 0 {
		cors.ExposedHeaders = []string{"X-Request-ID"}
	}
	if cors.MaxAge == 0 {
		cors.MaxAge = DefaultCORSMaxAge
	}
}

// inferProviderType maps well-known provider names to their adapter type.
// Unknown names fall back to the OpenAI-compatible generic adapter.
func inferProviderType(name string) string {
	switch name {
	case "openai", "anthropic":
		return name
	default:
		return "generic"
	}
}
