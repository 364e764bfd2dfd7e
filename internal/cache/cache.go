// Package cache keeps the most recent item set per cached provider and
// refreshes stale entries in the background.
package cache

import (
	"sync"
	"time"

	"github.com/runger/heats/internal/item"
)

type entry struct {
	items   []item.LoadedItem
	updated time.Time
}

// Cache is a per-provider store of loaded items. Entries are replaced
// wholesale so readers never observe a partial update, and they are never
// evicted, only refreshed.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// New creates an empty Cache.
func New() *Cache {
	return &Cache{entries: make(map[string]entry)}
}

// Get returns the cached items for a provider, or ok=false when the
// provider has never been loaded.
func (c *Cache) Get(name string) ([]item.LoadedItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[name]
	if !ok {
		return nil, false
	}
	return e.items, true
}

// Put replaces the provider's entry atomically and stamps it with now.
func (c *Cache) Put(name string, items []item.LoadedItem) {
	c.PutAt(name, items, time.Now())
}

// PutAt is Put with an explicit timestamp, for staleness tests.
func (c *Cache) PutAt(name string, items []item.LoadedItem, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[name] = entry{items: items, updated: now}
}

// IsStale reports whether the provider needs a reload: true when no entry
// exists or when the time since the last update is at least interval.
func (c *Cache) IsStale(name string, interval time.Duration, now time.Time) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[name]
	if !ok {
		return true
	}
	return now.Sub(e.updated) >= interval
}
