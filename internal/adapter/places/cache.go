package places

import (
	"context"
	"fmt"
	"sync"

	"github.com/couchcryptid/nearby-search/internal/domain"
	"github.com/couchcryptid/nearby-search/internal/observability"
)

// keyPrecision rounds coordinates to about 100 m so nearby fixes share
// cached results.
const keyPrecision = 3

var _ domain.SearchBackend = (*CachedBackend)(nil)

// CachedBackend wraps a SearchBackend with an in-memory LRU cache.
type CachedBackend struct {
	inner   domain.SearchBackend
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedBackend creates a cache decorator around a search backend.
func NewCachedBackend(inner domain.SearchBackend, maxEntries int, metrics *observability.Metrics) *CachedBackend {
	return &CachedBackend{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedBackend) PerformSearch(ctx context.Context, at domain.Coordinates, terms *string) (domain.SearchResults, error) {
	key := cacheKey(at, terms)
	if results, ok := c.cache.get(key); ok {
		c.metrics.PlacesCache.WithLabelValues("hit").Inc()
		results.Terms = domain.CloneTerms(terms)
		return results, nil
	}
	c.metrics.PlacesCache.WithLabelValues("miss").Inc()

	results, err := c.inner.PerformSearch(ctx, at, terms)
	if err != nil {
		return results, err
	}
	// Empty results are not cached so a place that just opened shows up.
	if len(results.Restaurants) > 0 {
		c.cache.put(key, results)
	}
	return results, nil
}

func cacheKey(at domain.Coordinates, terms *string) string {
	t := "-"
	if terms != nil {
		t = "=" + *terms
	}
	return fmt.Sprintf("%.*f,%.*f|%s", keyPrecision, at.Latitude, keyPrecision, at.Longitude, t)
}

// lruCache is a simple thread-safe LRU cache for SearchResults.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value domain.SearchResults
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (domain.SearchResults, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return domain.SearchResults{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value domain.SearchResults) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
