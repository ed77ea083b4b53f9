package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"mercator-hq/minerva/pkg/providers"
)

// ModelDefaults carries the per-model engine defaults declared in
// configuration. Handlers use them to fill request fields the caller
// left unset.
type ModelDefaults struct {
	// Name is the display name surfaced in model listings. Defaults to
	// the logical model id.
	Name string

	// Level is the engine tier label ("deepthink" or "ultrathink")
	// surfaced in model listings
	Level string

	// MaxIterations caps the refine loop for this model
	MaxIterations int

	// RequiredVerifications is the consecutive-pass target
	RequiredVerifications int

	// MaxErrors caps consecutive failed verifications before giving up
	MaxErrors int

	// EnablePlanning turns on the planning stage
	EnablePlanning bool

	// EnableParallelCheck turns on the arithmetic side-check during verification
	EnableParallelCheck bool

	// ModelStages overrides the backend model per engine stage
	ModelStages map[string]string

	// NumAgents is the multi-agent fan-out width for ultrathink models
	NumAgents int

	// ParallelAgents caps how many agents run concurrently
	ParallelAgents int

	// RPM is the per-model requests-per-minute hint for the rate limiter
	RPM int
}

// Route maps a logical model id to a provider and the model name the
// backend expects.
type Route struct {
	// Provider is the provider name, a key into the registry's configs
	Provider string

	// Model is the backend model identifier sent upstream
	Model string

	// Defaults holds the engine defaults for this model
	Defaults ModelDefaults
}

// Registry resolves logical model ids to live provider instances.
//
// Providers are instantiated lazily on first resolution and reused after
// that; instantiation is serialized behind a mutex so concurrent requests
// for the same provider share one instance. Registry is safe for
// concurrent use.
type Registry struct {
	mu        sync.Mutex
	configs   map[string]providers.ProviderConfig
	routes    map[string]Route
	instances map[string]providers.Provider
	ctx       context.Context
	cancel    context.CancelFunc
	closed    bool
}

// New creates a registry from provider configurations and model routes.
// Routes referencing a provider name absent from configs fail at Resolve
// time, not construction time, so a partially valid config still serves
// its working models.
func New(configs map[string]providers.ProviderConfig, routes map[string]Route) *Registry {
	ctx, cancel := context.WithCancel(context.Background())

	r := &Registry{
		configs:   make(map[string]providers.ProviderConfig, len(configs)),
		routes:    make(map[string]Route, len(routes)),
		instances: make(map[string]providers.Provider),
		ctx:       ctx,
		cancel:    cancel,
	}
	for name, cfg := range configs {
		if cfg.Name == "" {
			cfg.Name = name
		}
		r.configs[name] = cfg
	}
	for id, route := range routes {
		r.routes[id] = route
	}

	return r
}

// Resolve maps a logical model id to a provider instance, the provider
// name, the backend model name, and the model's engine defaults.
// Unknown model ids return a NotFoundError.
func (r *Registry) Resolve(modelID string) (providers.Provider, string, string, *ModelDefaults, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, "", "", nil, fmt.Errorf("registry is closed")
	}

	route, ok := r.routes[modelID]
	if !ok {
		return nil, "", "", nil, &providers.NotFoundError{
			Resource: modelID,
			Message:  fmt.Sprintf("model %q is not configured", modelID),
		}
	}

	provider, err := r.providerLocked(route.Provider)
	if err != nil {
		return nil, "", "", nil, err
	}

	defaults := route.Defaults
	return provider, route.Provider, route.Model, &defaults, nil
}

// Provider returns the instance for a provider name, instantiating it if
// needed. Used by health endpoints that enumerate providers directly.
func (r *Registry) Provider(name string) (providers.Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, fmt.Errorf("registry is closed")
	}

	return r.providerLocked(name)
}

// providerLocked instantiates or returns the cached provider for name.
// Callers must hold r.mu.
func (r *Registry) providerLocked(name string) (providers.Provider, error) {
	if instance, ok := r.instances[name]; ok {
		return instance, nil
	}

	config, ok := r.configs[name]
	if !ok {
		return nil, &providers.ConfigError{
			Provider: name,
			Field:    "provider",
			Message:  fmt.Sprintf("provider %q is referenced by a model but not configured", name),
		}
	}

	provider, err := NewProviderWithHealthCheck(r.ctx, config)
	if err != nil {
		return nil, err
	}

	r.instances[name] = provider

	slog.Info("provider instantiated",
		"provider", name,
		"type", provider.GetType(),
		"active_providers", len(r.instances),
	)

	return provider, nil
}

// Models returns the configured logical model ids, sorted.
func (r *Registry) Models() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.routes))
	for id := range r.routes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids
}

// RouteFor returns the route for a logical model id without instantiating
// the provider.
func (r *Registry) RouteFor(modelID string) (Route, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	route, ok := r.routes[modelID]
	return route, ok
}

// Healthy returns the names of instantiated providers that currently
// report healthy. Providers never resolved yet are not listed; readiness
// checks treat an empty registry as healthy.
func (r *Registry) Healthy() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.instances))
	for name, provider := range r.instances {
		if provider.IsHealthy() {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	return names
}

// HealthSummary reports per-provider health for every instantiated provider.
func (r *Registry) HealthSummary() map[string]providers.ProviderHealth {
	r.mu.Lock()
	defer r.mu.Unlock()

	summary := make(map[string]providers.ProviderHealth, len(r.instances))
	for name, provider := range r.instances {
		summary[name] = provider.GetHealth()
	}

	return summary
}

// Close stops health checkers and closes every instantiated provider.
// The registry cannot be used afterwards.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	r.cancel()

	var errs []error
	for name, provider := range r.instances {
		if err := provider.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close provider %q: %w", name, err))
		}
	}
	r.instances = make(map[string]providers.Provider)

	if len(errs) > 0 {
		return fmt.Errorf("errors closing providers: %v", errs)
	}

	slog.Info("provider registry closed")
	return nil
}
