// Package cache provides the bounded TTL caches shared by the geocode
// resolver and the weather client.
package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Cache is a thread-safe map with per-entry expiry and a capacity bound.
//
// On every write, entries at or past expiry are dropped first; if the cache is
// still over capacity, entries are evicted soonest-to-expire first.
type Cache[V any] struct {
	mu         sync.Mutex
	clock      clockwork.Clock
	ttl        time.Duration
	maxEntries int
	entries    map[string]entry[V]
}

type entry[V any] struct {
	value   V
	expires time.Time
}

// New creates a cache with the given default TTL and capacity. A nil clock
// means the real clock.
func New[V any](ttl time.Duration, maxEntries int, clock clockwork.Clock) *Cache[V] {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if maxEntries <= 0 {
		maxEntries = 1
	}
	return &Cache[V]{
		clock:      clock,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]entry[V]),
	}
}

// TTL returns the default entry lifetime.
func (c *Cache[V]) TTL() time.Duration {
	return c.ttl
}

// Get returns the value for key if present and not expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !c.clock.Now().Before(e.expires) {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key with the default TTL.
func (c *Cache[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores value under key with an explicit TTL.
func (c *Cache[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	c.entries[key] = entry[V]{value: value, expires: now.Add(ttl)}
	c.purge(now)
}

// Delete removes key.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len returns the number of stored entries, including expired ones not yet purged.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// purge drops expired entries, then evicts soonest-to-expire until under capacity.
// Callers must hold c.mu.
func (c *Cache[V]) purge(now time.Time) {
	for k, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, k)
		}
	}
	if len(c.entries) <= c.maxEntries {
		return
	}

	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ei, ej := c.entries[keys[i]].expires, c.entries[keys[j]].expires
		if ei.Equal(ej) {
			return keys[i] < keys[j]
		}
		return ei.Before(ej)
	})
	for _, k := range keys {
		if len(c.entries) <= c.maxEntries {
			return
		}
		delete(c.entries, k)
	}
}
