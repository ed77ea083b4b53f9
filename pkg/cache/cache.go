package cache

import (
	"context"
	"log/slog"
	"time"
)

const (
	// DefaultTTL is how long cache entries live without explicit override.
	DefaultTTL = 24 * time.Hour

	// responseIDPrefix namespaces response id entries away from other
	// cached values sharing the store.
	responseIDPrefix = "response_id:"
)

// Cache stores provider response ids keyed by prompt prefix so repeated
// requests with the same prefix can chain server-side conversation state
// instead of resending the full history.
//
// A disabled cache no-ops both reads and writes; callers never branch on
// Enabled themselves. Cache is safe for concurrent use when its Store is.
type Cache struct {
	store    Store
	ttl      time.Duration
	enabled  bool
	logger   *slog.Logger
	onLookup func(hit bool)
}

// Options configures a Cache.
type Options struct {
	// Store is the persistence backend. Required when Enabled.
	Store Store

	// TTL is the per-entry lifetime. Default: DefaultTTL.
	TTL time.Duration

	// Enabled turns the cache on. A disabled cache needs no store.
	Enabled bool

	// Logger overrides the default logger.
	Logger *slog.Logger

	// OnLookup, when set, observes every read on an enabled cache: true
	// for a hit, false for a miss. Lets callers feed metrics without the
	// cache knowing about a collector.
	OnLookup func(hit bool)
}

// New creates a cache over the given store.
func New(opts Options) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Store == nil {
		opts.Enabled = false
	}

	return &Cache{
		store:    opts.Store,
		ttl:      opts.TTL,
		enabled:  opts.Enabled,
		logger:   opts.Logger.With("component", "cache"),
		onLookup: opts.OnLookup,
	}
}

// Disabled returns a cache that no-ops everything. Useful as a default
// dependency so callers never nil-check.
func Disabled() *Cache {
	return New(Options{Enabled: false})
}

// Enabled reports whether the cache is active.
func (c *Cache) Enabled() bool {
	return c.enabled
}

// GetResponseID returns the stored response id for a prefix key, or ""
// when absent, expired, or the cache is disabled. Store failures degrade
// to a miss: a broken cache must not fail the request.
func (c *Cache) GetResponseID(ctx context.Context, key string) string {
	if !c.enabled {
		return ""
	}

	value, ok, err := c.store.Get(ctx, responseIDPrefix+key)
	if err != nil {
		c.logger.Warn("cache read failed, treating as miss", "error", err)
		c.observe(false)
		return ""
	}
	if !ok {
		c.observe(false)
		return ""
	}

	c.observe(true)
	return value
}

func (c *Cache) observe(hit bool) {
	if c.onLookup != nil {
		c.onLookup(hit)
	}
}

// SetResponseID stores a response id under a prefix key with the
// configured TTL. Write failures are logged and swallowed.
func (c *Cache) SetResponseID(ctx context.Context, key, responseID string) {
	if !c.enabled || responseID == "" {
		return
	}

	if err := c.store.Set(ctx, responseIDPrefix+key, responseID, c.ttl); err != nil {
		c.logger.Warn("cache write failed", "error", err)
	}
}

// Delete evicts the response id for a prefix key. Engines call this when
// a stored id turns out stale upstream.
func (c *Cache) Delete(ctx context.Context, key string) {
	if !c.enabled {
		return
	}

	if err := c.store.Delete(ctx, responseIDPrefix+key); err != nil {
		c.logger.Warn("cache delete failed", "error", err)
	}
}

// Clear removes all cached entries.
func (c *Cache) Clear(ctx context.Context) error {
	if !c.enabled {
		return nil
	}

	return c.store.Clear(ctx)
}

// Sweep removes expired entries from the store.
func (c *Cache) Sweep(ctx context.Context) (int, error) {
	if !c.enabled {
		return 0, nil
	}

	return c.store.Sweep(ctx)
}

// Close releases the underlying store.
func (c *Cache) Close() error {
	if c.store == nil {
		return nil
	}

	return c.store.Close()
}
