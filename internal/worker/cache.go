package worker

import (
	"sync"
	"time"
)

// DefaultCacheTTL bounds how long an idempotent query result stays fresh.
const DefaultCacheTTL = 2 * time.Second

type cacheEntry struct {
	value string
	at    time.Time
}

// Cache is a small TTL cache for idempotent helper queries (geometry
// lookups). It must never wrap input-injection calls, which have to execute
// exactly once.
type Cache struct {
	ttl   time.Duration
	now   func() time.Time
	mu    sync.Mutex
	items map[string]cacheEntry
}

// NewCache constructs a Cache; ttl <= 0 selects DefaultCacheTTL.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string]cacheEntry),
	}
}

// Get returns the cached value for key if it is still fresh.
func (c *Cache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.items[key]
	if !ok {
		return "", false
	}
	if c.now().Sub(entry.at) >= c.ttl {
		delete(c.items, key)
		return "", false
	}
	return entry.value, true
}

// Put stores a value for key, stamping it with the current time.
func (c *Cache) Put(key, value string) {
	c.mu.Lock()
	c.items[key] = cacheEntry{value: value, at: c.now()}
	c.mu.Unlock()
}

// Invalidate drops the entry for key, if any.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}
