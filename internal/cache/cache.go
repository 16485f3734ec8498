// Package cache provides a generic TTL cache with single-flight
// recomputation, used by the inventory engine to avoid recalculating
// availability for the same key from multiple concurrent callers
// (spec.md §5: "at most one concurrent recomputation per key").
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultTTL is the inventory availability cache lifetime (spec.md §5).
const DefaultTTL = 1800 * time.Second

type entry struct {
	value   any
	expires time.Time
}

// Cache is a thread-safe TTL cache keyed by string, with single-flight
// request coalescing for Load's miss path.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	group   singleflight.Group

	hits   uint64
	misses uint64
}

// New returns an empty Cache with the given TTL. ttl <= 0 means
// DefaultTTL.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
	}
}

// Get returns the cached value for key, if present and unexpired.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(e.expires) {
		return nil, false
	}
	return e.value, true
}

// Set stores value for key with the cache's configured TTL.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, expires: time.Now().Add(c.ttl)}
}

// Invalidate removes key from the cache.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// InvalidatePrefix removes every key with the given prefix, used when a
// reference-data change (e.g. a security's temperature) invalidates a
// whole family of per-client/per-AU availability entries at once.
func (c *Cache) InvalidatePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k := range c.entries {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// EvictExpired removes every entry whose TTL has elapsed, bounding memory
// for keys no longer queried.
func (c *Cache) EvictExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	n := 0
	for k, e := range c.entries {
		if now.After(e.expires) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Load returns the cached value for key if present and fresh; otherwise it
// calls compute exactly once across all concurrent callers for that key
// (golang.org/x/sync/singleflight), caches the result on success, and
// returns it to every waiter.
func (c *Cache) Load(ctx context.Context, key string, compute func(ctx context.Context) (any, error)) (any, error) {
	if v, ok := c.Get(key); ok {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
		return v, nil
	}

	c.mu.Lock()
	c.misses++
	c.mu.Unlock()

	v, err, _ := c.group.Do(key, func() (any, error) {
		if cached, ok := c.Get(key); ok {
			return cached, nil
		}
		result, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(key, result)
		return result, nil
	})
	return v, err
}

// Stats returns cumulative hit/miss counters since creation.
func (c *Cache) Stats() (hits, misses uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
