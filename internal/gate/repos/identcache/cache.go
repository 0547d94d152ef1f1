// Package identcache memoizes identifier derivation. Base-domain
// identification consults the public suffix list on every call, and the
// same handful of URIs is identified over and over while a page loads,
// so an LRU in front of it pays for itself quickly.
package identcache

import (
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/perch-io/crossgate/internal/gate/common/uriutil"
	"github.com/perch-io/crossgate/internal/gate/domain"
)

// Cache memoizes uriutil.Identify per URI at the active level. Changing
// the level purges the cache; it never re-keys past results.
type Cache struct {
	mu     sync.RWMutex
	lru    *lru.Cache[string, string]
	level  domain.IdentLevel
	hits   uint64
	misses uint64
}

// New creates a Cache with the given capacity and starting level.
func New(size int, level domain.IdentLevel) (*Cache, error) {
	c, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: c, level: level}, nil
}

// Identify returns the identifier for uri at the active level.
func (c *Cache) Identify(uri string) string {
	c.mu.RLock()
	level := c.level
	id, ok := c.lru.Get(uri)
	c.mu.RUnlock()
	if ok {
		atomic.AddUint64(&c.hits, 1)
		return id
	}
	atomic.AddUint64(&c.misses, 1)
	id = uriutil.Identify(uri, level)
	c.mu.RLock()
	// Only cache if the level didn't change while we derived.
	if c.level == level {
		c.lru.Add(uri, id)
	}
	c.mu.RUnlock()
	return id
}

// Level returns the active identification level.
func (c *Cache) Level() domain.IdentLevel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.level
}

// SetLevel switches the identification level and purges every memoized
// identifier. Stored rules are not re-keyed; callers are expected to
// clear their ledgers as well.
func (c *Cache) SetLevel(level domain.IdentLevel) {
	c.mu.Lock()
	if level != c.level {
		c.level = level
		c.lru.Purge()
	}
	c.mu.Unlock()
}

// Stats returns cumulative hit and miss counters.
func (c *Cache) Stats() (hits, misses uint64) {
	return atomic.LoadUint64(&c.hits), atomic.LoadUint64(&c.misses)
}
