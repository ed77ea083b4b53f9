// Package server provides the HTTP server for the reasoning service.
//
// This package ties together the API handlers, middleware and operational
// endpoints and manages the listener lifecycle: start, TLS, graceful
// shutdown and OS signals (SIGTERM, SIGINT).
//
// # Basic Usage
//
//	cfg, err := config.LoadConfigWithEnvOverrides(path)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	deps := &handlers.Deps{Registry: reg, Config: cfg, Pricing: pricing}
//	srv := server.New(cfg, deps, server.Options{Health: checker, Logger: logger})
//	if err := srv.Start(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
//
// # Routes
//
//   - POST /reasoning/deepthink - single-agent reasoning run
//   - POST /reasoning/ultrathink - multi-agent reasoning run
//   - POST /v1/chat/completions - OpenAI-compatible chat (streaming and non-streaming)
//   - POST /v1/responses - OpenAI-compatible responses
//   - GET /v1/models - configured logical models
//   - GET /health - liveness probe
//   - GET /ready - readiness probe (component checks)
//   - GET /version - build information
//   - GET /metrics - Prometheus metrics (when enabled)
//
// # Middleware Chain
//
// Requests pass through, outermost first: Recovery, Logging, RequestID,
// Tracing (when enabled), CORS, Auth (when enabled, probes exempt),
// Timeout (when a request timeout is configured).
//
// # Graceful Shutdown
//
// Shutdown stops accepting connections and waits up to the configured
// shutdown timeout for in-flight requests before forcing closure. It is
// triggered by context cancellation, SIGINT/SIGTERM, or Stop.
package server
