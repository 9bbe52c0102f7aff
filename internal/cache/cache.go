// Package cache implements the cache core (spec.md §4.2) and the
// adaptive cache built on top of it (spec.md §4.3).
package cache

import (
	"strings"
	"sync"
	"time"

	"dispatch-and-delivery/internal/models"
)

// Cache is a process-local key->value store with lazy, per-entry TTL
// expiration. No eviction policy beyond TTL — spec.md §4.2.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]models.CacheEntry
	now     func() time.Time
}

// New constructs an empty Cache.
func New() *Cache {
	return &Cache{entries: make(map[string]models.CacheEntry), now: time.Now}
}

// Get returns the value at key, or (nil, false) if absent or expired.
// Expiration is lazy: a hit on an expired entry removes it.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if entry.Expired(c.now()) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return entry.Value, true
}

// Set stores value at key with a TTL of ttlMinutes, converted to ms
// per spec.md §4.2.
func (c *Cache) Set(key string, value any, ttlMinutes float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = models.CacheEntry{
		Value:    value,
		Inserted: c.now(),
		TTL:      time.Duration(ttlMinutes * float64(time.Minute)),
	}
}

// Invalidate removes every key containing substring, unanchored, per
// the Open Question decision in SPEC_FULL.md §10(a).
func (c *Cache) Invalidate(substring string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k := range c.entries {
		if strings.Contains(k, substring) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Len reports the number of entries currently stored, expired or not
// (expiration is lazy — this is a raw count for operator stats).
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear empties the cache. Used by admission's emergency cleanup.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]models.CacheEntry)
}
