package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"mercator-hq/minerva/pkg/api/handlers"
	"mercator-hq/minerva/pkg/cache"
	"mercator-hq/minerva/pkg/cli"
	"mercator-hq/minerva/pkg/config"
	"mercator-hq/minerva/pkg/ledger"
	"mercator-hq/minerva/pkg/limits/ratelimit"
	"mercator-hq/minerva/pkg/meter"
	"mercator-hq/minerva/pkg/providers"
	"mercator-hq/minerva/pkg/providers/registry"
	"mercator-hq/minerva/pkg/server"
	"mercator-hq/minerva/pkg/telemetry/health"
	"mercator-hq/minerva/pkg/telemetry/logging"
	"mercator-hq/minerva/pkg/telemetry/metrics"
	"mercator-hq/minerva/pkg/telemetry/tracing"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
	watchConfig   bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the reasoning service",
	Long: `Start the reasoning service with the specified configuration.

The server listens on the configured address and serves the reasoning
endpoints, the OpenAI-compatible surface, and the operational probes.

Examples:
  # Start with the default config file
  minerva run

  # Start with a custom config
  minerva run --config /etc/minerva/minerva.yaml

  # Override the listen address
  minerva run --listen 0.0.0.0:8080

  # Validate config and wiring without starting the listener
  minerva run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the server")
	runCmd.Flags().BoolVar(&runFlags.watchConfig, "watch-config", true, "hot-reload swappable config sections on file change")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	// Flag overrides beat both file and environment.
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	logger, err := logging.FromConfig(&cfg.Logging, os.Stdout)
	if err != nil {
		return cli.NewConfigError("logging", err.Error())
	}
	defer logger.Shutdown()
	log := logger.Slog()

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	printBanner()

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	// Tracing.
	tracer, err := tracing.New(&cfg.Tracing)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			log.Warn("Tracer shutdown failed", "error", err)
		}
	}()

	// Metrics.
	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector(&cfg.Metrics, prometheus.NewRegistry())
	}

	// Provider registry.
	reg := registry.New(providerConfigs(cfg), modelRoutes(cfg))
	defer reg.Close()
	fmt.Printf("✓ Providers configured (%d providers, %d models)\n", len(cfg.Providers), len(cfg.Models))

	// Prefix cache.
	store, err := buildCacheStore(cfg)
	if err != nil {
		return cli.NewCommandError("run", fmt.Errorf("cache store: %w", err))
	}
	if store != nil {
		defer store.Close() //nolint:errcheck

		sweeper := cache.NewSweeper(cache.New(cache.Options{
			Store:   store,
			TTL:     cfg.Cache.TTL,
			Enabled: true,
			Logger:  log,
		}), cfg.Cache.SweepSchedule)
		if err := sweeper.Start(ctx); err != nil {
			log.Warn("Cache sweeper failed to start", "error", err)
		} else {
			defer sweeper.Stop()
		}
		fmt.Printf("✓ Prefix cache initialized (%s)\n", cfg.Cache.Backend)
	}

	// Usage ledger.
	var recorder *ledger.Recorder
	if cfg.Ledger.Enabled {
		ledgerStore, err := buildLedgerStore(cfg)
		if err != nil {
			return cli.NewCommandError("run", fmt.Errorf("ledger store: %w", err))
		}
		defer ledgerStore.Close() //nolint:errcheck

		recorder = ledger.NewRecorder(ledgerStore, &ledger.Config{
			Enabled:      true,
			BufferSize:   cfg.Ledger.BufferSize,
			WriteTimeout: cfg.Ledger.WriteTimeout,
			Logger:       log,
		})
		defer recorder.Close() //nolint:errcheck

		pruner := ledger.NewPruner(ledgerStore, &ledger.RetentionConfig{
			RetentionDays: cfg.Ledger.RetentionDays,
			PruneSchedule: cfg.Ledger.PruneSchedule,
		})
		if err := pruner.Start(ctx); err != nil {
			log.Warn("Ledger retention scheduler failed to start", "error", err)
		} else {
			defer pruner.Stop()
		}
		fmt.Printf("✓ Usage ledger initialized (%s)\n", cfg.Ledger.Backend)
	}

	deps := &handlers.Deps{
		Registry:   reg,
		Config:     cfg,
		Pricing:    pricingFromConfig(cfg),
		CacheStore: store,
		Limiter:    ratelimit.NewLimiter(),
		Recorder:   recorder,
		Metrics:    collector,
		Logger:     log,
	}

	// Readiness checks.
	checker := health.New(0)
	checker.Register("providers", func(ctx context.Context) error {
		if len(cfg.Providers) == 0 {
			return fmt.Errorf("no providers configured")
		}
		summary := reg.HealthSummary()
		if len(summary) == 0 {
			// Providers are instantiated lazily; nothing to report yet.
			return nil
		}
		for _, h := range summary {
			if h.IsHealthy {
				return nil
			}
		}
		return fmt.Errorf("no healthy providers")
	})
	if store != nil {
		checker.Register("cache", func(ctx context.Context) error {
			_, _, err := store.Get(ctx, "readiness-probe")
			return err
		})
	}

	// Config hot-reload.
	if runFlags.watchConfig {
		watcher, err := config.NewWatcher(&config.WatcherConfig{Path: cfgFile}, cfg, log)
		if err != nil {
			log.Warn("Config watcher unavailable", "error", err)
		} else {
			go func() {
				err := watcher.Watch(ctx, func(result config.ReloadResult) {
					// Swap the snapshot; in-flight requests keep the
					// config they started with. Deferred sections need
					// a restart and are logged by the watcher.
					deps.Config = result.Config
				})
				if err != nil {
					log.Error("Config watcher stopped", "error", err)
				}
			}()
		}
	}

	srv := server.New(cfg, deps, server.Options{
		Tracer: tracer,
		Health: checker,
		Logger: log,
		Build: server.BuildInfo{
			Version:   Version,
			Commit:    GitCommit,
			BuildTime: BuildDate,
		},
	})

	fmt.Println()
	fmt.Printf("✓ Server listening on %s\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Health endpoint: http://%s/health\n", cfg.Server.ListenAddress)
	if cfg.Metrics.Enabled {
		fmt.Printf("✓ Metrics endpoint: http://%s%s\n", cfg.Server.ListenAddress, cfg.Metrics.Path)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	fmt.Println("✓ Server stopped")
	return nil
}

// providerConfigs converts the providers section to registry inputs.
func providerConfigs(cfg *config.Config) map[string]providers.ProviderConfig {
	configs := make(map[string]providers.ProviderConfig, len(cfg.Providers))
	for name, pc := range cfg.Providers {
		entry := providers.ProviderConfig{
			Name:       name,
			Type:       pc.Type,
			BaseURL:    pc.BaseURL,
			APIKey:     pc.APIKey,
			Timeout:    pc.Timeout,
			MaxRetries: pc.MaxRetries,
		}
		if pc.Capabilities != nil {
			entry.Capabilities = &providers.Capabilities{
				SupportsResponses: pc.Capabilities.SupportsResponses,
				SupportsStreaming: pc.Capabilities.SupportsStreaming,
				SupportsVision:    pc.Capabilities.SupportsVision,
				SupportsThinking:  pc.Capabilities.SupportsThinking,
				SupportsCaching:   pc.Capabilities.SupportsCaching,
			}
		}
		configs[name] = entry
	}
	return configs
}

// modelRoutes converts the models section to registry routes.
func modelRoutes(cfg *config.Config) map[string]registry.Route {
	routes := make(map[string]registry.Route, len(cfg.Models))
	for id, mc := range cfg.Models {
		routes[id] = registry.Route{
			Provider: mc.Provider,
			Model:    mc.Model,
			Defaults: registry.ModelDefaults{
				Name:                  mc.Name,
				Level:                 mc.Level,
				MaxIterations:         mc.MaxIterations,
				RequiredVerifications: mc.RequiredVerifications,
				MaxErrors:             mc.MaxErrors,
				EnablePlanning:        mc.EnablePlanning,
				EnableParallelCheck:   mc.EnableParallelCheck,
				ModelStages:           mc.ModelStages,
				NumAgents:             mc.NumAgents,
				ParallelAgents:        mc.ParallelAgents,
				RPM:                   mc.RPM,
			},
		}
	}
	return routes
}

// pricingFromConfig converts the pricing section to the meter's table.
func pricingFromConfig(cfg *config.Config) meter.Pricing {
	pricing := make(meter.Pricing, len(cfg.Pricing))
	for provider, models := range cfg.Pricing {
		table := make(map[string]meter.ModelPricing, len(models))
		for model, rates := range models {
			table[model] = meter.ModelPricing{
				Prompt:       rates.Prompt,
				CachedPrompt: rates.CachedPrompt,
				Completion:   rates.Completion,
				Reasoning:    rates.Reasoning,
			}
		}
		pricing[provider] = table
	}
	return pricing
}

// buildCacheStore creates the configured prefix-cache backend. Returns
// nil when caching is disabled.
func buildCacheStore(cfg *config.Config) (cache.Store, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}
	switch cfg.Cache.Backend {
	case "memory":
		return cache.NewMemoryStore(), nil
	case "sqlite":
		return cache.NewSQLiteStore(cfg.Cache.Path)
	case "redis":
		return cache.NewRedisStore(cache.RedisStoreConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", cfg.Cache.Backend)
	}
}

// buildLedgerStore creates the configured ledger backend.
func buildLedgerStore(cfg *config.Config) (ledger.Store, error) {
	switch cfg.Ledger.Backend {
	case "memory":
		return ledger.NewMemoryStore(), nil
	case "sqlite":
		return ledger.NewSQLiteStore(&ledger.SQLiteConfig{Path: cfg.Ledger.Path})
	default:
		return nil, fmt.Errorf("unsupported ledger backend: %s", cfg.Ledger.Backend)
	}
}

func printBanner() {
	fmt.Printf("Minerva v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")
}
