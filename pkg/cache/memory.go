package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store using an in-process map.
// This is the default backend: fast, no persistence, all entries lost on
// restart. Expired entries are served as misses immediately and reclaimed
// by Sweep.
//
// MemoryStore is thread-safe using sync.RWMutex.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
	}
}

// Get retrieves the value for a key.
func (m *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return "", false, nil
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		return "", false, nil
	}

	return entry.value, true, nil
}

// Set stores a value with a TTL.
func (m *MemoryStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}

	m.mu.Lock()
	m.entries[key] = entry
	m.mu.Unlock()

	return nil
}

// Delete removes a key.
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()

	return nil
}

// Clear removes all entries.
func (m *MemoryStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.entries = make(map[string]memoryEntry)
	m.mu.Unlock()

	return nil
}

// Sweep removes expired entries and returns the number deleted.
func (m *MemoryStore) Sweep(ctx context.Context) (int, error) {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	deleted := 0
	for key, entry := range m.entries {
		if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
			delete(m.entries, key)
			deleted++
		}
	}

	return deleted, nil
}

// Close releases the store.
func (m *MemoryStore) Close() error {
	return nil
}

// Size returns the current number of stored entries, expired included.
// Useful for monitoring and testing.
func (m *MemoryStore) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
