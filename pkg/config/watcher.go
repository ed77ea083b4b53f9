package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadResult describes the outcome of a configuration reload.
type ReloadResult struct {
	// Config is the merged snapshot: the previous configuration with the
	// hot-swappable sections of the new file applied.
	Config *Config

	// Swapped lists the sections that were applied live.
	Swapped []string

	// Deferred lists the sections that changed in the file but require a
	// process restart to take effect.
	Deferred []string
}

// MergeReload applies the hot-swappable sections of next onto prev and
// reports which sections changed. Models, pricing, rate limit defaults, and
// the logging level can be swapped on a running service; everything else
// (listeners, provider credentials, storage backends) is wired at startup
// and is only reported as deferred.
func MergeReload(prev, next *Config) ReloadResult {
	merged := *prev
	var swapped, deferred []string

	if !reflect.DeepEqual(prev.Models, next.Models) {
		merged.Models = next.Models
		swapped = append(swapped, "models")
	}
	if !reflect.DeepEqual(prev.Pricing, next.Pricing) {
		merged.Pricing = next.Pricing
		swapped = append(swapped, "pricing")
	}
	if !reflect.DeepEqual(prev.RateLimit, next.RateLimit) {
		merged.RateLimit = next.RateLimit
		swapped = append(swapped, "rate_limit")
	}
	if prev.Logging.Level != next.Logging.Level {
		merged.Logging.Level = next.Logging.Level
		swapped = append(swapped, "logging.level")
	}

	if !reflect.DeepEqual(prev.Server, next.Server) {
		deferred = append(deferred, "server")
	}
	if !reflect.DeepEqual(prev.Auth, next.Auth) {
		deferred = append(deferred, "auth")
	}
	if !reflect.DeepEqual(prev.Providers, next.Providers) {
		deferred = append(deferred, "providers")
	}
	if !reflect.DeepEqual(prev.Cache, next.Cache) {
		deferred = append(deferred, "cache")
	}
	if !reflect.DeepEqual(prev.Ledger, next.Ledger) {
		deferred = append(deferred, "ledger")
	}
	logRest := prev.Logging
	logRest.Level = next.Logging.Level
	if !reflect.DeepEqual(logRest, next.Logging) {
		deferred = append(deferred, "logging")
	}
	if !reflect.DeepEqual(prev.Metrics, next.Metrics) {
		deferred = append(deferred, "metrics")
	}
	if !reflect.DeepEqual(prev.Engine, next.Engine) {
		deferred = append(deferred, "engine")
	}

	return ReloadResult{Config: &merged, Swapped: swapped, Deferred: deferred}
}

// WatcherConfig contains configuration for the file watcher.
type WatcherConfig struct {
	// Path is the configuration file to watch.
	Path string

	// DebounceInterval is the time to wait before triggering a reload
	// after detecting file changes (default: 200ms).
	DebounceInterval time.Duration
}

// DefaultWatcherConfig returns the default watcher configuration.
func DefaultWatcherConfig() *WatcherConfig {
	return &WatcherConfig{
		DebounceInterval: 200 * time.Millisecond,
	}
}

// Watcher watches the configuration file for changes and reloads it.
// It implements debouncing to prevent reload storms from editors that
// write in several bursts.
type Watcher struct {
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	config   *WatcherConfig
	debounce *Debouncer

	// State
	mu       sync.RWMutex
	current  *Config
	onReload func(ReloadResult)
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewWatcher creates a watcher for the configuration file named in wcfg.
// current is the configuration the process is running with; reloads are
// diffed and merged against it.
func NewWatcher(wcfg *WatcherConfig, current *Config, logger *slog.Logger) (*Watcher, error) {
	if wcfg == nil {
		wcfg = DefaultWatcherConfig()
	}
	if wcfg.DebounceInterval <= 0 {
		wcfg.DebounceInterval = DefaultWatcherConfig().DebounceInterval
	}
	if wcfg.Path == "" {
		return nil, fmt.Errorf("watcher path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		watcher:  watcher,
		logger:   logger,
		config:   wcfg,
		debounce: NewDebouncer(wcfg.DebounceInterval),
		current:  current,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}

	return w, nil
}

// Current returns the latest merged configuration snapshot.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Watch starts watching for file changes and invokes onReload with each
// merged snapshot. This is a blocking operation that runs until the context
// is cancelled or Stop is called.
func (w *Watcher) Watch(ctx context.Context, onReload func(ReloadResult)) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.onReload = onReload
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		close(w.doneCh)
	}()

	// The parent directory is watched rather than the file itself so that
	// atomic replaces (write to temp file, rename over) keep producing
	// events after the original inode is gone.
	dir := filepath.Dir(w.config.Path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %q: %w", dir, err)
	}

	w.logger.Info("Config watcher started",
		"path", w.config.Path,
		"debounce_ms", w.config.DebounceInterval.Milliseconds(),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Config watcher stopped (context cancelled)")
			return nil

		case <-w.stopCh:
			w.logger.Info("Config watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}

			if !w.shouldProcessEvent(event) {
				continue
			}

			w.logger.Debug("Config file event detected",
				"path", event.Name,
				"op", event.Op.String(),
			)

			w.debounce.Trigger(func() {
				w.reload()
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}

			w.logger.Error("Config watcher error", "error", err)
			// Continue watching despite errors
		}
	}
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.debounce.Stop()

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	return nil
}

// reload re-reads the configuration file and merges the hot-swappable
// sections over the running snapshot. A file that fails to load or validate
// leaves the previous configuration in place.
func (w *Watcher) reload() {
	next, err := LoadConfigWithEnvOverrides(w.config.Path)
	if err != nil {
		w.logger.Error("Config reload failed, keeping previous configuration",
			"path", w.config.Path,
			"error", err,
		)
		return
	}

	w.mu.Lock()
	result := MergeReload(w.current, next)
	w.current = result.Config
	onReload := w.onReload
	w.mu.Unlock()

	if len(result.Swapped) == 0 && len(result.Deferred) == 0 {
		w.logger.Debug("Config file rewritten without changes", "path", w.config.Path)
		return
	}

	if len(result.Swapped) > 0 {
		w.logger.Info("Config reloaded",
			"path", w.config.Path,
			"swapped", result.Swapped,
		)
	}
	if len(result.Deferred) > 0 {
		w.logger.Warn("Config sections changed that require a restart",
			"path", w.config.Path,
			"deferred", result.Deferred,
		)
	}

	if onReload != nil {
		onReload(result)
	}
}

// shouldProcessEvent determines if an event should trigger a reload.
func (w *Watcher) shouldProcessEvent(event fsnotify.Event) bool {
	// Skip events we don't care about
	if event.Op&fsnotify.Chmod == fsnotify.Chmod {
		return false
	}

	// The directory watch reports every file in it; only our file matters.
	return filepath.Base(event.Name) == filepath.Base(w.config.Path)
}

// Debouncer collects rapid events and triggers the callback only after a
// quiet period.
type Debouncer struct {
	interval time.Duration
	timer    *time.Timer
	mu       sync.Mutex
	callback func()
	stopCh   chan struct{}
}

// NewDebouncer creates a new debouncer.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Trigger triggers the debouncer with a new event.
// The callback will be called after the debounce interval if no new events occur.
func (d *Debouncer) Trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.callback = callback

	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.interval, func() {
		select {
		case <-d.stopCh:
			return
		default:
			d.mu.Lock()
			cb := d.callback
			d.mu.Unlock()

			if cb != nil {
				cb()
			}
		}
	})
}

// Stop stops the debouncer and cancels any pending callbacks.
func (d *Debouncer) Stop() {
	close(d.stopCh)

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.callback = nil
}
