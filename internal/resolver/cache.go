package resolver

import (
	"sync"
	"time"

	"github.com/desertthunder/openbeats/internal/models"
)

// DefaultTTL is how long a resolved URL stays usable.
const DefaultTTL = 5 * time.Minute

type cacheEntry struct {
	result     Result
	obtainedAt time.Time
}

// Cache maps a track key to its resolved URL until the TTL passes.
type Cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[models.TrackKey]cacheEntry
}

// NewCache creates a cache. A nil now uses [time.Now]; a non-positive ttl uses [DefaultTTL].
func NewCache(ttl time.Duration, now func() time.Time) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Cache{ttl: ttl, now: now, entries: make(map[models.TrackKey]cacheEntry)}
}

// Get returns the cached result for key if it has not expired.
func (c *Cache) Get(key models.TrackKey) (Result, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || c.expired(e) {
		return Result{}, false
	}
	return e.result, true
}

// Put stores result for key, replacing any previous entry.
func (c *Cache) Put(key models.TrackKey, result Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{result: result, obtainedAt: c.now()}
}

// Delete drops key.
func (c *Cache) Delete(key models.TrackKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Sweep purges expired entries and returns how many were removed.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, e := range c.entries {
		if c.expired(e) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Len counts entries, expired ones included until swept.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) expired(e cacheEntry) bool {
	return c.now().Sub(e.obtainedAt) >= c.ttl
}
