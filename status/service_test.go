package status

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingCache wraps a MemoryCache and counts builds.
type countingCache struct {
	*MemoryCache[Snapshot]
	builds atomic.Int32
}

func (c *countingCache) GetOrBuild(ctx context.Context, key string, ttl time.Duration, build BuildFunc[Snapshot]) (Snapshot, error) {
	return c.MemoryCache.GetOrBuild(ctx, key, ttl, func(ctx context.Context) (Snapshot, error) {
		c.builds.Add(1)
		return build(ctx)
	})
}

func TestService_CurrentIsCached(t *testing.T) {
	cache := &countingCache{MemoryCache: NewMemoryCache[Snapshot](time.Minute)}
	svc := NewService(newProvider(t, 1), cache, Key("chatrelay", "relay-test"), time.Minute, nil)
	ctx := context.Background()

	first, err := svc.Current(ctx)
	require.NoError(t, err)
	second, err := svc.Current(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), cache.builds.Load())
	assert.Equal(t, "chatrelay:status:relay-test", svc.Key())
}

func TestService_RefreshRebuilds(t *testing.T) {
	p := newProvider(t, 1)
	cache := &countingCache{MemoryCache: NewMemoryCache[Snapshot](time.Minute)}
	svc := NewService(p, cache, "k", time.Minute, nil)
	ctx := context.Background()

	_, err := svc.Current(ctx)
	require.NoError(t, err)

	require.True(t, p.clients.Insert(3, nopHandle{}))
	snap, err := svc.Refresh(ctx)
	require.NoError(t, err)

	assert.Equal(t, []uint64{1, 3}, snap.Clients)
	assert.Equal(t, int32(2), cache.builds.Load())
}

func TestService_Publish(t *testing.T) {
	cache := &countingCache{MemoryCache: NewMemoryCache[Snapshot](time.Minute)}
	svc := NewService(newProvider(t, 1), cache, "k", time.Minute, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Publish(ctx, 5*time.Millisecond) }()

	require.Eventually(t, func() bool { return cache.builds.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("publish did not stop")
	}
}
