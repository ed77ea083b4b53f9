package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// Unknown fields in the file are rejected. The loading sequence is:
// decode over defaults, substitute ${VAR} secrets, apply remaining
// defaults, validate. Environment variable overrides are not applied; use
// LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	cfg, err := decodeFile(path)
	if err != nil {
		return nil, err
	}

	expandSecrets(cfg)
	resolveAuthKeys(cfg)
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and
// applies environment variable overrides. Environment variables follow the
// naming convention MINERVA_SECTION_FIELD (e.g., MINERVA_SERVER_LISTEN_ADDRESS)
// and always take precedence over file-based configuration.
//
// The loading sequence is:
// 1. Decode YAML over defaults
// 2. Apply environment variable overrides
// 3. Substitute ${VAR} secrets
// 4. Apply remaining defaults
// 5. Validate the final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := decodeFile(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	expandSecrets(cfg)
	resolveAuthKeys(cfg)
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// decodeFile reads and strictly decodes a YAML file over the default
// configuration, so absent fields keep their defaults and unknown fields
// are an error.
func decodeFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("configuration file %q is empty", path)
		}
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR_NAME} placeholders in string values.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandEnv substitutes ${VAR_NAME} placeholders with environment variable
// values. Placeholders whose variable is unset are kept as-is so validation
// can report them instead of silently injecting an empty secret.
func ExpandEnv(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := match[2 : len(match)-1]
		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		return match
	})
}

// HasEnvPlaceholder reports whether a string still contains an unreplaced
// ${VAR_NAME} placeholder.
func HasEnvPlaceholder(s string) bool {
	return envVarPattern.MatchString(s)
}

// expandSecrets applies ${VAR} substitution to the fields that carry
// secrets: provider API keys and the redis password.
func expandSecrets(cfg *Config) {
	for name, provider := range cfg.Providers {
		provider.APIKey = ExpandEnv(provider.APIKey)
		cfg.Providers[name] = provider
	}
	cfg.Cache.Redis.Password = ExpandEnv(cfg.Cache.Redis.Password)
}

// resolveAuthKeys fills in API key values declared via an environment
// variable name. An unset variable leaves the key empty; validation decides
// whether that matters.
func resolveAuthKeys(cfg *Config) {
	for i, key := range cfg.Auth.Keys {
		if key.Key == "" && key.Env != "" {
			cfg.Auth.Keys[i].Key = os.Getenv(key.Env)
		}
	}
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Variables use the format MINERVA_SECTION_FIELD.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	setString("MINERVA_SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	setDuration("MINERVA_SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	setDuration("MINERVA_SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	setDuration("MINERVA_SERVER_IDLE_TIMEOUT", &cfg.Server.IdleTimeout)
	setDuration("MINERVA_SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	setDuration("MINERVA_SERVER_REQUEST_TIMEOUT", &cfg.Server.RequestTimeout)
	setInt("MINERVA_SERVER_MAX_HEADER_BYTES", &cfg.Server.MaxHeaderBytes)
	setBool("MINERVA_SERVER_TLS_ENABLED", &cfg.Server.TLS.Enabled)
	setString("MINERVA_SERVER_TLS_CERT_FILE", &cfg.Server.TLS.CertFile)
	setString("MINERVA_SERVER_TLS_KEY_FILE", &cfg.Server.TLS.KeyFile)

	// Auth overrides
	setBool("MINERVA_AUTH_ENABLED", &cfg.Auth.Enabled)

	// Provider overrides. Configured providers are overridden in place;
	// variables naming a provider absent from the file add it, so a
	// deployment can inject a provider entirely from the environment.
	for name := range cfg.Providers {
		applyProviderEnvOverrides(cfg, name)
	}
	for _, name := range providerNamesFromEnv() {
		if _, ok := cfg.Providers[name]; !ok {
			applyProviderEnvOverrides(cfg, name)
		}
	}

	// Rate limit overrides
	setFloat("MINERVA_RATE_LIMIT_QPS", &cfg.RateLimit.QPS)
	setInt("MINERVA_RATE_LIMIT_BURST", &cfg.RateLimit.Burst)
	setInt("MINERVA_RATE_LIMIT_WINDOW_LIMIT", &cfg.RateLimit.WindowLimit)
	setFloat("MINERVA_RATE_LIMIT_WINDOW_SECONDS", &cfg.RateLimit.WindowSeconds)
	setDuration("MINERVA_RATE_LIMIT_TIMEOUT", &cfg.RateLimit.Timeout)
	setString("MINERVA_RATE_LIMIT_STRATEGY", &cfg.RateLimit.Strategy)

	// Cache overrides
	setBool("MINERVA_CACHE_ENABLED", &cfg.Cache.Enabled)
	setString("MINERVA_CACHE_BACKEND", &cfg.Cache.Backend)
	setString("MINERVA_CACHE_PATH", &cfg.Cache.Path)
	setDuration("MINERVA_CACHE_TTL", &cfg.Cache.TTL)
	setString("MINERVA_CACHE_REDIS_ADDR", &cfg.Cache.Redis.Addr)
	setString("MINERVA_CACHE_REDIS_PASSWORD", &cfg.Cache.Redis.Password)

	// Ledger overrides
	setBool("MINERVA_LEDGER_ENABLED", &cfg.Ledger.Enabled)
	setString("MINERVA_LEDGER_BACKEND", &cfg.Ledger.Backend)
	setString("MINERVA_LEDGER_PATH", &cfg.Ledger.Path)
	setInt("MINERVA_LEDGER_RETENTION_DAYS", &cfg.Ledger.RetentionDays)

	// Logging overrides
	setString("MINERVA_LOGGING_LEVEL", &cfg.Logging.Level)
	setString("MINERVA_LOGGING_FORMAT", &cfg.Logging.Format)

	// Metrics overrides
	setBool("MINERVA_METRICS_ENABLED", &cfg.Metrics.Enabled)
	setString("MINERVA_METRICS_PATH", &cfg.Metrics.Path)

	// Engine overrides
	setBool("MINERVA_ENGINE_STRICT_AGENT_CONFIGS", &cfg.Engine.StrictAgentConfigs)
	setBool("MINERVA_ENGINE_STRICT_USAGE_VALIDATION", &cfg.Engine.StrictUsageValidation)
}

// providerFieldSuffixes are the per-provider override fields, used both to
// apply overrides and to recognize provider names in the environment.
var providerFieldSuffixes = []string{"_BASE_URL", "_API_KEY", "_TIMEOUT", "_MAX_RETRIES"}

// applyProviderEnvOverrides applies overrides for a specific provider.
// Provider variables follow the format MINERVA_PROVIDERS_<NAME>_<FIELD>
// where NAME is the uppercase provider name. A provider that does not
// exist yet is added only when at least one of its variables is set.
func applyProviderEnvOverrides(cfg *Config, providerName string) {
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}

	provider, exists := cfg.Providers[providerName]
	prefix := fmt.Sprintf("MINERVA_PROVIDERS_%s_", strings.ToUpper(providerName))

	modified := false
	if setString(prefix+"BASE_URL", &provider.BaseURL) {
		modified = true
	}
	if setString(prefix+"API_KEY", &provider.APIKey) {
		modified = true
	}
	if setDuration(prefix+"TIMEOUT", &provider.Timeout) {
		modified = true
	}
	if setInt(prefix+"MAX_RETRIES", &provider.MaxRetries) {
		modified = true
	}

	if exists || modified {
		cfg.Providers[providerName] = provider
	}
}

// providerNamesFromEnv derives provider names from MINERVA_PROVIDERS_*
// variables. Names may themselves contain underscores, so the known field
// suffix is stripped first and whatever remains is the name.
func providerNamesFromEnv() []string {
	seen := make(map[string]bool)
	var names []string

	for _, kv := range os.Environ() {
		key, _, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, "MINERVA_PROVIDERS_") {
			continue
		}
		rest := strings.TrimPrefix(key, "MINERVA_PROVIDERS_")
		for _, suffix := range providerFieldSuffixes {
			if strings.HasSuffix(rest, suffix) {
				name := strings.ToLower(strings.TrimSuffix(rest, suffix))
				if name != "" && !seen[name] {
					seen[name] = true
					names = append(names, name)
				}
				break
			}
		}
	}

	sort.Strings(names)
	return names
}

func setString(env string, dst *string) bool {
	if val := os.Getenv(env); val != "" {
		*dst = val
		return true
	}
	return false
}

func setInt(env string, dst *int) bool {
	if val := os.Getenv(env); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
			return true
		}
	}
	return false
}

func setFloat(env string, dst *float64) bool {
	if val := os.Getenv(env); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			*dst = f
			return true
		}
	}
	return false
}

func setBool(env string, dst *bool) bool {
	if val := os.Getenv(env); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
			return true
		}
	}
	return false
}

func setDuration(env string, dst *time.Duration) bool {
	if val := os.Getenv(env); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
			return true
		}
	}
	return false
}
