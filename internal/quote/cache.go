package quote

import (
	"sync"
	"time"
)

// Cache is an in-process TTL cache. Entries expire a fixed duration after
// insertion; there is no invalidation on writes elsewhere in the system —
// staleness up to the TTL window is an accepted tradeoff.
//
// The clock is injected so expiry is deterministically testable.
type Cache[V any] struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]cacheEntry[V]
}

type cacheEntry[V any] struct {
	value   V
	expires time.Time
}

// NewCache creates a TTL cache. Pass nil for now to use time.Now.
func NewCache[V any](ttl time.Duration, now func() time.Time) *Cache[V] {
	if now == nil {
		now = time.Now
	}
	return &Cache[V]{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]cacheEntry[V]),
	}
}

// Get returns the cached value for key if present and not expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || c.now().After(e.expires) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key with the cache's TTL.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry[V]{
		value:   value,
		expires: c.now().Add(c.ttl),
	}
}
