// Package telemetry groups Minerva's observability layers. The package
// itself holds no code; each concern lives in its own subpackage:
//
//   - logging: structured slog-based logging with optional secret redaction
//   - metrics: Prometheus collectors for requests, engines, providers,
//     cache and cost
//   - tracing: OpenTelemetry tracing with OTLP export and sampling
//   - health: liveness and readiness endpoints
//
// The server wires these from the corresponding config sections:
//
//	logger, err := logging.New(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
//
//	collector := metrics.NewCollector(&cfg.Metrics, prometheus.NewRegistry())
//	collector.RecordRequest("openai", "gpt-4o", "success", elapsed)
//	collector.RecordRequestCost("openai", "gpt-4o", costUSD)
//
//	tracer, err := tracing.New(&cfg.Tracing)
//	ctx, span := tracer.Start(ctx, "engine.solve")
//	defer span.End()
//
// Reasoning runs fan out into many provider calls, so every layer is
// built to stay cheap on the hot path: logging is a thin slog wrapper,
// metric label cardinality is capped, and tracing defaults to ratio
// sampling.
package telemetry
