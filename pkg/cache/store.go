package cache

import (
	"context"
	"time"
)

// Store defines the interface for cache entry persistence.
// Implementations must be thread-safe and support concurrent access.
type Store interface {
	// Get retrieves the value for a key. The second return is false when
	// the key is absent or expired. Returns error on system failure.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores a value with a per-entry TTL. A non-positive TTL means
	// the entry never expires.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes a key. No-op if the key doesn't exist.
	Delete(ctx context.Context, key string) error

	// Clear removes all entries.
	Clear(ctx context.Context) error

	// Sweep removes expired entries and returns the number deleted.
	// Backends with server-side expiry may implement this as a no-op.
	Sweep(ctx context.Context) (int, error)

	// Close releases any resources held by the store.
	// The store should not be used after calling Close.
	Close() error
}
