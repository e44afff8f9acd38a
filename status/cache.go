package status

import (
	"context"
	"time"
)

// BuildFunc produces a fresh value on a cache miss.
type BuildFunc[T any] func(ctx context.Context) (T, error)

// Cache stores built values for a bounded time. Concurrent misses for the
// same key run build once.
type Cache[T any] interface {
	// GetOrBuild returns the cached value for key, or runs build, stores the
	// result for ttl and returns it.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - key: The cache key
	//   - ttl: How long a built value stays cached
	//   - build: Produces the value on a miss
	//
	// Returns:
	//   - The cached or built value
	//   - An error if the cache backend or build fails
	GetOrBuild(ctx context.Context, key string, ttl time.Duration, build BuildFunc[T]) (T, error)

	// Invalidate drops key so the next GetOrBuild rebuilds it.
	Invalidate(ctx context.Context, key string) error
}
