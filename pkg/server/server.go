package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"mercator-hq/minerva/pkg/api/handlers"
	"mercator-hq/minerva/pkg/api/middleware"
	"mercator-hq/minerva/pkg/config"
	"mercator-hq/minerva/pkg/security/auth"
	tlspkg "mercator-hq/minerva/pkg/security/tls"
	"mercator-hq/minerva/pkg/telemetry/health"
	"mercator-hq/minerva/pkg/telemetry/tracing"
)

// BuildInfo identifies the running binary on the /version endpoint.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// Options carries the optional collaborators of a Server. Zero values
// degrade gracefully: no tracer means no spans, no checker means probe
// endpoints report only process liveness.
type Options struct {
	// Tracer propagates and opens request spans when tracing is enabled.
	Tracer *tracing.Tracer

	// Health runs the registered component checks behind /health and /ready.
	Health *health.Checker

	// Build is served on /version.
	Build BuildInfo

	// Logger is the server lifecycle logger.
	Logger *slog.Logger
}

// Server is the HTTP front of the reasoning service. It owns the listener
// lifecycle: route setup, TLS, signal handling and graceful shutdown.
type Server struct {
	cfg    *config.Config
	deps   *handlers.Deps
	opts   Options
	logger *slog.Logger

	httpServer   *http.Server
	reloaderStop context.CancelFunc
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// New creates a server over the shared handler dependencies.
func New(cfg *config.Config, deps *handlers.Deps, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:          cfg,
		deps:         deps,
		opts:         opts,
		logger:       logger,
		shutdownChan: make(chan struct{}),
	}
}

// Start starts the HTTP server and blocks until shutdown. Shutdown is
// triggered by context cancellation, SIGINT/SIGTERM, or Shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	srvCfg := &s.cfg.Server

	s.httpServer = &http.Server{
		Addr:           srvCfg.ListenAddress,
		Handler:        s.Handler(),
		ReadTimeout:    srvCfg.ReadTimeout,
		WriteTimeout:   srvCfg.WriteTimeout,
		IdleTimeout:    srvCfg.IdleTimeout,
		MaxHeaderBytes: srvCfg.MaxHeaderBytes,
	}

	if srvCfg.TLS.Enabled {
		tlsConfig, err := tlspkg.Build(&srvCfg.TLS)
		if err != nil {
			return fmt.Errorf("failed to configure TLS: %w", err)
		}

		// Rotated certificates are picked up without a restart.
		reloader, err := tlspkg.NewReloader(srvCfg.TLS.CertFile, srvCfg.TLS.KeyFile, s.logger)
		if err != nil {
			return fmt.Errorf("failed to start certificate reloader: %w", err)
		}
		tlsConfig.GetCertificate = reloader.GetCertificateFunc()
		tlsConfig.Certificates = nil

		reloadCtx, cancel := context.WithCancel(context.Background())
		s.reloaderStop = cancel
		go reloader.Watch(reloadCtx)

		s.httpServer.TLSConfig = tlsConfig
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("Server starting",
			"address", srvCfg.ListenAddress,
			"tls_enabled", srvCfg.TLS.Enabled,
			"auth_enabled", s.cfg.Auth.Enabled,
		)

		var err error
		if srvCfg.TLS.Enabled {
			// Cert and key come from the reloader via GetCertificate.
			err = s.httpServer.ListenAndServeTLS("", "")
		} else {
			err = s.httpServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		s.logger.Info("Context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		s.logger.Info("Received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	case <-s.shutdownChan:
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the server, waiting up to the configured
// shutdown timeout for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		s.logger.Info("Initiating graceful shutdown",
			"timeout", s.cfg.Server.ShutdownTimeout.String(),
		)

		shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.Server.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("Error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		if s.reloaderStop != nil {
			s.reloaderStop()
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("Server stopped")
	})

	return shutdownErr
}

// Stop requests shutdown from another goroutine. Safe to call more than
// once.
func (s *Server) Stop() {
	select {
	case <-s.shutdownChan:
	default:
		close(s.shutdownChan)
	}
}

// IsRunning reports whether the server is accepting requests.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler builds the full route table with the middleware chain applied.
// Exposed so tests can drive the server through httptest without a
// listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Reasoning endpoints.
	mux.Handle("POST /reasoning/deepthink", s.deps.DeepThink())
	mux.Handle("POST /reasoning/ultrathink", s.deps.UltraThink())

	// OpenAI-compatible endpoints.
	mux.Handle("POST /v1/chat/completions", s.deps.ChatCompletions())
	mux.Handle("POST /v1/responses", s.deps.Responses())
	mux.Handle("GET /v1/models", s.deps.Models())

	// Operational endpoints bypass auth; orchestrators probe them
	// without credentials.
	checker := s.opts.Health
	if checker == nil {
		checker = health.New(0)
	}
	mux.Handle("/health", health.RateLimited(checker.LivenessHandler(), 10))
	mux.Handle("/ready", health.RateLimited(checker.ReadinessHandler(), 10))
	mux.Handle("/version", health.VersionHandler(s.opts.Build.Version, s.opts.Build.Commit, s.opts.Build.BuildTime))

	if s.cfg.Metrics.Enabled && s.deps.Metrics != nil {
		path := s.cfg.Metrics.Path
		if path == "" {
			path = config.DefaultMetricsPath
		}
		mux.Handle(path, s.deps.Metrics.Handler())
	}

	var handler http.Handler = mux

	// Innermost first; requests traverse the chain in reverse order.
	if s.cfg.Server.RequestTimeout > 0 {
		handler = middleware.Timeout(s.cfg.Server.RequestTimeout)(handler)
	}
	if s.cfg.Auth.Enabled {
		validator := auth.FromConfig(&s.cfg.Auth, s.logger)
		sources := auth.SourcesFromConfig(s.cfg.Auth.Sources)
		handler = s.withAuthExemptions(auth.NewMiddleware(validator, sources, s.logger).Handle(handler), mux)
	}
	handler = middleware.CORS(&s.cfg.Server.CORS)(handler)
	if s.opts.Tracer != nil && s.opts.Tracer.Enabled() {
		handler = tracing.Middleware(s.opts.Tracer)(handler)
	}
	handler = middleware.RequestID(handler)
	handler = middleware.Logging(s.logger)(handler)
	handler = middleware.Recovery(handler)

	return handler
}

// withAuthExemptions routes probe and version requests around the auth
// middleware; everything else goes through authed.
func (s *Server) withAuthExemptions(authed, mux http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health", "/ready", "/version":
			mux.ServeHTTP(w, r)
			return
		}
		authed.ServeHTTP(w, r)
	})
}
