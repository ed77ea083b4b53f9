package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store using Redis.
// Suitable for multi-instance deployments where response ids must be
// shared: the instance that stored a conversation handle is not
// necessarily the one that resolves the follow-up request.
//
// Entries use native Redis TTLs, so Sweep is a no-op.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// RedisStoreConfig configures the Redis store.
type RedisStoreConfig struct {
	// Addr is the Redis server address (host:port).
	Addr string

	// Password is the Redis password, empty for none.
	Password string

	// DB is the Redis database number.
	DB int

	// KeyPrefix namespaces all keys. Default: "minerva:cache:"
	KeyPrefix string

	// DialTimeout bounds the initial connection check.
	// Default: 5 seconds
	DialTimeout time.Duration
}

// NewRedisStore creates a Redis-backed store and verifies connectivity.
func NewRedisStore(cfg RedisStoreConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "minerva:cache:"
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
	}, nil
}

// Get retrieves the value for a key.
func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, r.keyPrefix+key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to load entry: %w", err)
	}

	return value, true, nil
}

// Set stores a value with a TTL. Redis expires the entry server-side.
func (r *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}

	if err := r.client.Set(ctx, r.keyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save entry: %w", err)
	}

	return nil
}

// Delete removes a key.
func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}

	return nil
}

// Clear removes all entries under the store's prefix.
func (r *RedisStore) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, r.keyPrefix+"*", 100).Result()
		if err != nil {
			return fmt.Errorf("failed to scan keys: %w", err)
		}

		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to delete keys: %w", err)
			}
		}

		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Sweep is a no-op: Redis expires entries server-side.
func (r *RedisStore) Sweep(ctx context.Context) (int, error) {
	return 0, nil
}

// Close releases the Redis client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

// Ping checks connectivity, for health endpoints.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
