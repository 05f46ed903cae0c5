package site

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// DefaultCacheTTL matches the site's daily revalidation window.
const DefaultCacheTTL = 24 * time.Hour

// Cache is a bounded LRU of rendered JSON responses. Entries expire after ttl
// or when one of their page tags is invalidated.
type Cache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	ll       *list.List
	entries  map[string]*list.Element
	metrics  cacheMetrics
}

type cacheMetrics struct {
	hits          metric.Int64Counter
	misses        metric.Int64Counter
	loads         metric.Int64Counter
	errors        metric.Int64Counter
	invalidations metric.Int64Counter
}

func newCacheMetrics() cacheMetrics {
	meter := otel.Meter("github.com/ugfund/ugfsync/internal/site")
	hits, _ := meter.Int64Counter("ugfsync.site_cache.hits")
	misses, _ := meter.Int64Counter("ugfsync.site_cache.misses")
	loads, _ := meter.Int64Counter("ugfsync.site_cache.loads")
	errors, _ := meter.Int64Counter("ugfsync.site_cache.errors")
	invalidations, _ := meter.Int64Counter("ugfsync.site_cache.invalidations")
	return cacheMetrics{
		hits:          hits,
		misses:        misses,
		loads:         loads,
		errors:        errors,
		invalidations: invalidations,
	}
}

type cacheEntry struct {
	key       string
	tags      []string
	body      []byte
	expiresAt time.Time
}

func NewCache(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = 64
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		capacity: capacity,
		ttl:      ttl,
		ll:       list.New(),
		entries:  make(map[string]*list.Element, capacity),
		metrics:  newCacheMetrics(),
	}
}

// GetOrLoad returns the cached body for key, or calls load and caches its result.
// The second return value reports a cache hit.
func (c *Cache) GetOrLoad(ctx context.Context, key string, tags []string, load func(context.Context) ([]byte, error)) ([]byte, bool, error) {
	attrs := metric.WithAttributes(attribute.String("key", key))
	if body, ok := c.get(key); ok {
		c.metrics.hits.Add(ctx, 1, attrs)
		return body, true, nil
	}
	c.metrics.misses.Add(ctx, 1, attrs)
	c.metrics.loads.Add(ctx, 1, attrs)

	body, err := load(ctx)
	if err != nil {
		c.metrics.errors.Add(ctx, 1, attrs)
		return nil, false, err
	}
	c.set(key, tags, body)
	return body, false, nil
}

// Invalidate drops every entry tagged with path or whose key starts with it.
// It returns the number of dropped entries.
func (c *Cache) Invalidate(ctx context.Context, path string) int {
	path = strings.TrimSpace(path)
	if c == nil || path == "" {
		return 0
	}

	c.mu.Lock()
	var victims []*list.Element
	for key, element := range c.entries {
		entry := element.Value.(*cacheEntry)
		if strings.HasPrefix(key, path) || hasTag(entry.tags, path) {
			victims = append(victims, element)
		}
	}
	for _, element := range victims {
		c.ll.Remove(element)
		delete(c.entries, element.Value.(*cacheEntry).key)
	}
	c.mu.Unlock()

	c.metrics.invalidations.Add(ctx, int64(len(victims)), metric.WithAttributes(attribute.String("path", path)))
	return len(victims)
}

// Len returns the number of live and expired entries still held.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

func (c *Cache) get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	element, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	entry := element.Value.(*cacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.ll.Remove(element)
		delete(c.entries, key)
		return nil, false
	}
	c.ll.MoveToFront(element)
	return append([]byte(nil), entry.body...), true
}

func (c *Cache) set(key string, tags []string, body []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if element, ok := c.entries[key]; ok {
		entry := element.Value.(*cacheEntry)
		entry.body = append(entry.body[:0], body...)
		entry.tags = append([]string(nil), tags...)
		entry.expiresAt = time.Now().Add(c.ttl)
		c.ll.MoveToFront(element)
		return
	}

	entry := &cacheEntry{
		key:       key,
		tags:      append([]string(nil), tags...),
		body:      append([]byte(nil), body...),
		expiresAt: time.Now().Add(c.ttl),
	}
	c.entries[key] = c.ll.PushFront(entry)

	if c.ll.Len() > c.capacity {
		tail := c.ll.Back()
		if tail == nil {
			return
		}
		c.ll.Remove(tail)
		delete(c.entries, tail.Value.(*cacheEntry).key)
	}
}

func hasTag(tags []string, tag string) bool {
	for _, candidate := range tags {
		if candidate == tag {
			return true
		}
	}
	return false
}
