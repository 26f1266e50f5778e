package colorscale

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sells-group/lagekarte/internal/indicator"
)

// CacheKey identifies a derived scale. Sample sets are immutable per
// indicator.Key, so the tuple fully determines the scale.
type CacheKey struct {
	indicator.Key
	Discipline     indicator.Discipline
	HigherIsBetter bool
}

func (k CacheKey) String() string {
	return fmt.Sprintf("%s|%s|%t", k.Key, k.Discipline, k.HigherIsBetter)
}

// Cache is a concurrent-safe LRU of built scales with TTL expiration. It is
// owned by the caller; the package keeps no cache of its own.
type Cache struct {
	mu         sync.Mutex
	entries    map[CacheKey]*cacheEntry
	order      []CacheKey // LRU order: front=oldest, back=newest
	maxEntries int
	ttl        time.Duration
	hits       atomic.Int64
	misses     atomic.Int64

	// builds collapses concurrent misses on one key. generation bumps on
	// Invalidate so a build that started before it is not stored.
	builds     singleflight.Group
	generation uint64

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

type cacheEntry struct {
	scale     *Scale
	createdAt time.Time
}

// CacheStats contains cache performance statistics.
type CacheStats struct {
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
}

// NewCache creates a cache with the given capacity and TTL. A TTL of zero
// disables expiration.
func NewCache(maxEntries int, ttl time.Duration) *Cache {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	return &Cache{
		entries:    make(map[CacheKey]*cacheEntry),
		maxEntries: maxEntries,
		ttl:        ttl,
		nowFunc:    time.Now,
	}
}

// Get retrieves a cached scale. Returns nil on miss or expiration.
func (c *Cache) Get(key CacheKey) *Scale {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(key)
}

func (c *Cache) getLocked(key CacheKey) *Scale {
	entry, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		return nil
	}

	if c.ttl > 0 && c.nowFunc().Sub(entry.createdAt) > c.ttl {
		delete(c.entries, key)
		c.removeFromOrder(key)
		c.misses.Add(1)
		return nil
	}

	c.removeFromOrder(key)
	c.order = append(c.order, key)
	c.hits.Add(1)
	return entry.scale
}

// Put stores a scale, evicting the oldest entry if at capacity.
func (c *Cache) Put(key CacheKey, s *Scale) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.putLocked(key, s)
}

func (c *Cache) putLocked(key CacheKey, s *Scale) {
	if _, ok := c.entries[key]; ok {
		c.entries[key] = &cacheEntry{scale: s, createdAt: c.nowFunc()}
		c.removeFromOrder(key)
		c.order = append(c.order, key)
		return
	}

	for len(c.entries) >= c.maxEntries && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[key] = &cacheEntry{scale: s, createdAt: c.nowFunc()}
	c.order = append(c.order, key)
}

// GetOrBuild returns the cached scale for key, building and storing it on a
// miss. Builds run outside the cache lock; concurrent misses on the same key
// share one build.
func (c *Cache) GetOrBuild(key CacheKey, build func() *Scale) *Scale {
	c.mu.Lock()
	if s := c.getLocked(key); s != nil {
		c.mu.Unlock()
		return s
	}
	gen := c.generation
	c.mu.Unlock()

	v, _, _ := c.builds.Do(key.String(), func() (any, error) {
		s := build()
		c.mu.Lock()
		if c.generation == gen {
			c.putLocked(key, s)
		}
		c.mu.Unlock()
		return s, nil
	})
	return v.(*Scale)
}

// Invalidate removes every entry for the given indicator.
func (c *Cache) Invalidate(indicatorID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++

	remaining := c.order[:0]
	for _, key := range c.order {
		if key.Indicator == indicatorID {
			delete(c.entries, key)
			continue
		}
		remaining = append(remaining, key)
	}
	c.order = remaining
}

// Stats returns cache performance statistics.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	entries := len(c.entries)
	maxEntries := c.maxEntries
	c.mu.Unlock()

	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return CacheStats{
		Entries:    entries,
		MaxEntries: maxEntries,
		Hits:       hits,
		Misses:     misses,
		HitRate:    hitRate,
	}
}

func (c *Cache) removeFromOrder(key CacheKey) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
