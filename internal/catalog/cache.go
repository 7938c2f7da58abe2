package catalog

import "sync"

// Cache is the in-process ref→resolved-record mapping described in
// spec.md §6: "Stations are cached in-process by ref for the session.
// The cache is a mapping from ref to resolved record with no expiry."
type Cache struct {
	mu    sync.RWMutex
	byRef map[string]*Station
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{byRef: make(map[string]*Station)}
}

// Get returns the cached station for ref, if present.
func (c *Cache) Get(ref StationRef) (*Station, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.byRef[ref.ID]
	return s, ok
}

// Put stores the resolved station for ref. There is no expiry or
// eviction: the cache lives for the process session, per spec.md §6.
func (c *Cache) Put(ref StationRef, station *Station) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byRef[ref.ID] = station
}

// Len reports the number of cached entries, for diagnostics.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byRef)
}
