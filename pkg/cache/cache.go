package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache is a typed facade over go-cache for values that are cheap to rebuild.
type Cache[T any] struct {
	store *gocache.Cache
	ttl   time.Duration
}

// New creates a cache whose entries expire after ttl. A non-positive ttl
// disables expiry.
func New[T any](ttl time.Duration) *Cache[T] {
	expiry := ttl
	cleanup := 2 * ttl
	if ttl <= 0 {
		expiry = gocache.NoExpiration
		cleanup = 0
	}
	return &Cache[T]{store: gocache.New(expiry, cleanup), ttl: expiry}
}

func (c *Cache[T]) Get(key string) (T, bool) {
	var zero T
	if c == nil {
		return zero, false
	}
	raw, ok := c.store.Get(key)
	if !ok {
		return zero, false
	}
	value, ok := raw.(T)
	if !ok {
		return zero, false
	}
	return value, true
}

func (c *Cache[T]) Set(key string, value T) {
	if c == nil {
		return
	}
	c.store.Set(key, value, c.ttl)
}

func (c *Cache[T]) Delete(key string) {
	if c == nil {
		return
	}
	c.store.Delete(key)
}

// Flush drops every entry.
func (c *Cache[T]) Flush() {
	if c == nil {
		return
	}
	c.store.Flush()
}
