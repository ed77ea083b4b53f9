// Package config provides configuration management for Mercator Minerva.
//
// This package handles loading, validating, and managing configuration from
// YAML files with environment variable overrides. It provides a type-safe
// configuration system with comprehensive validation and sensible defaults.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("config.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//
// Unknown fields in the file are rejected, so a typo like "max_iteration"
// fails loudly instead of silently running with a default.
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention MINERVA_SECTION_FIELD.
// For example:
//
//   - MINERVA_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - MINERVA_PROVIDERS_OPENAI_API_KEY overrides providers.openai.api_key
//   - MINERVA_LOGGING_LEVEL overrides logging.level
//
// Environment variables always take precedence over file-based configuration.
//
// # Secret Substitution
//
// String fields that carry secrets (provider API keys, the Redis password)
// support ${VAR} placeholders that are substituted from the environment at
// load time. A placeholder whose variable is not set is left as written and
// reported by validation, so a missing secret never turns into an empty
// string silently:
//
//	providers:
//	  openai:
//	    api_key: "${OPENAI_API_KEY}"
//
// # Configuration Precedence
//
// Configuration values are applied in the following order (later overrides earlier):
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. ${VAR} secret substitution
//  5. Validation (fails fast if invalid)
//
// # Singleton Pattern
//
// For application-wide configuration access, use the singleton pattern:
//
//	// At application startup
//	if err := config.Initialize("config.yaml"); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Anywhere in the application
//	cfg := config.GetConfig()
//	fmt.Println(cfg.Server.ListenAddress)
//
// For testing, prefer dependency injection with explicit Config instances
// rather than the global singleton.
//
// # Hot Reload
//
// The Watcher observes the configuration file with fsnotify and reloads on
// change. Only the sections a running service can honor without restarting
// are swapped live (models, pricing, rate limit defaults, logging level);
// changes to listeners, providers, or storage backends are reported as
// deferred and logged as requiring a restart.
//
// # Validation
//
// All configuration is validated automatically during loading. Validation includes:
//
//   - Required field checks (e.g., provider base URLs, backend model names)
//   - Range validation (e.g., max_iterations must be positive)
//   - Format validation (e.g., valid URL format, compilable redact patterns)
//   - Reference validation (e.g., each model's provider must exist)
//
// Validation errors include field paths and helpful messages, and all
// problems are reported at once:
//
//	configuration validation failed with 2 errors:
//	  - providers.openai.base_url: base URL is required
//	  - models.prover.provider: provider "anthropc" not found; available providers: openai
//
// # Example Configuration
//
// Here is a minimal configuration file:
//
//	server:
//	  listen_address: "127.0.0.1:8080"
//
//	providers:
//	  openai:
//	    base_url: "https://api.openai.com/v1"
//	    api_key: "${OPENAI_API_KEY}"
//
//	models:
//	  minerva-pro:
//	    provider: "openai"
//	    model: "gpt-4o"
//	    level: "deepthink"
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Thread Safety
//
// All configuration access is thread-safe. The singleton pattern uses read-write
// locks to allow concurrent reads while protecting against concurrent writes during
// reload operations.
package config
