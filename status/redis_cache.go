package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	lockTTL     = 10 * time.Second
	waitTimeout = 5 * time.Second
	minBackoff  = 10 * time.Millisecond
	maxBackoff  = 250 * time.Millisecond
)

// Releases the lock only if we still own it.
var releaseLock = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisCache is a Cache storing JSON values in Redis, so other processes can
// read what this relay publishes. A SET NX lock keeps concurrent builders
// across processes down to one.
type RedisCache[T any] struct {
	client redis.UniversalClient
}

// NewRedisCache wraps an existing Redis client.
//
// Example:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	snapshots := status.NewRedisCache[status.Snapshot](client)
func NewRedisCache[T any](client redis.UniversalClient) *RedisCache[T] {
	return &RedisCache[T]{client: client}
}

// GetOrBuild implements Cache. On a miss the caller that wins the lock
// builds and stores the value; the others poll until it appears or the lock
// disappears.
func (c *RedisCache[T]) GetOrBuild(ctx context.Context, key string, ttl time.Duration, build BuildFunc[T]) (T, error) {
	var zero T

	if val, ok, err := c.get(ctx, key); err != nil || ok {
		return val, err
	}

	lockKey := key + ":lock"
	lockValue := strconv.FormatInt(time.Now().UnixNano(), 10)

	acquired, err := c.client.SetNX(ctx, lockKey, lockValue, lockTTL).Result()
	if err != nil {
		return zero, fmt.Errorf("acquire build lock: %w", err)
	}
	if !acquired {
		return c.wait(ctx, key, lockKey)
	}

	defer releaseLock.Run(context.Background(), c.client, []string{lockKey}, lockValue)

	built, err := build(ctx)
	if err != nil {
		return zero, fmt.Errorf("build value: %w", err)
	}

	data, err := json.Marshal(built)
	if err != nil {
		return zero, fmt.Errorf("marshal value: %w", err)
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return zero, fmt.Errorf("store value: %w", err)
	}

	return built, nil
}

// Invalidate implements Cache.
func (c *RedisCache[T]) Invalidate(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("delete key: %w", err)
	}
	return nil
}

func (c *RedisCache[T]) get(ctx context.Context, key string) (T, bool, error) {
	var zero T

	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("redis get: %w", err)
	}

	var val T
	if err := json.Unmarshal(raw, &val); err != nil {
		return zero, false, fmt.Errorf("unmarshal cached value: %w", err)
	}

	return val, true, nil
}

// wait polls with exponential backoff until another builder stores key.
func (c *RedisCache[T]) wait(ctx context.Context, key, lockKey string) (T, error) {
	var zero T

	backoff := minBackoff
	deadline := time.Now().Add(waitTimeout)

	for time.Now().Before(deadline) {
		if val, ok, err := c.get(ctx, key); err != nil || ok {
			return val, err
		}

		exists, err := c.client.Exists(ctx, lockKey).Result()
		if err != nil {
			return zero, fmt.Errorf("check build lock: %w", err)
		}
		if exists == 0 {
			if val, ok, err := c.get(ctx, key); err != nil || ok {
				return val, err
			}
			return zero, errors.New("build lock released without a value")
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}

	return zero, errors.New("timeout waiting for cached value")
}
