package status

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// MemoryCache is an in-process Cache backed by go-cache. A singleflight group
// collapses concurrent builds of the same key.
type MemoryCache[T any] struct {
	cache *cache.Cache
	group singleflight.Group
}

// NewMemoryCache creates an in-memory cache.
//
// Parameters:
//   - cleanupInterval: How often expired entries are purged
//
// Returns:
//   - A new MemoryCache
func NewMemoryCache[T any](cleanupInterval time.Duration) *MemoryCache[T] {
	return &MemoryCache[T]{cache: cache.New(cache.NoExpiration, cleanupInterval)}
}

// GetOrBuild implements Cache.
func (c *MemoryCache[T]) GetOrBuild(ctx context.Context, key string, ttl time.Duration, build BuildFunc[T]) (T, error) {
	var zero T

	if val, ok := c.lookup(key); ok {
		return val, nil
	}

	val, err, _ := c.group.Do(key, func() (any, error) {
		// Another caller may have stored it while we waited.
		if cached, ok := c.lookup(key); ok {
			return cached, nil
		}

		built, err := build(ctx)
		if err != nil {
			return zero, err
		}
		c.cache.Set(key, built, ttl)

		return built, nil
	})
	if err != nil {
		return zero, err
	}

	typed, ok := val.(T)
	if !ok {
		return zero, fmt.Errorf("unexpected type in cache for key %s", key)
	}

	return typed, nil
}

// Invalidate implements Cache.
func (c *MemoryCache[T]) Invalidate(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.cache.Delete(key)
	return nil
}

func (c *MemoryCache[T]) lookup(key string) (T, bool) {
	var zero T

	val, found := c.cache.Get(key)
	if !found {
		return zero, false
	}
	typed, ok := val.(T)
	if !ok {
		return zero, false
	}

	return typed, true
}
