package registry

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberinferno/chatrelay/handle"
)

type stubHandle struct {
	name string
}

func (s *stubHandle) WriteLine(string) error { return nil }
func (s *stubHandle) Close() error           { return nil }

func TestNew(t *testing.T) {
	r := New()
	require.NotNil(t, r)
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.Snapshot())
}

func TestRegistry_Insert_Get(t *testing.T) {
	r := New()
	a := &stubHandle{name: "a"}

	t.Run("insert then get returns the handle", func(t *testing.T) {
		assert.True(t, r.Insert(1, a))
		got, ok := r.Get(1)
		assert.True(t, ok)
		assert.Same(t, a, got)
	})

	t.Run("second insert for the same id is rejected", func(t *testing.T) {
		assert.False(t, r.Insert(1, &stubHandle{name: "b"}))
		got, _ := r.Get(1)
		assert.Same(t, a, got)
		assert.Equal(t, 1, r.Len())
	})

	t.Run("get missing id returns nil and false", func(t *testing.T) {
		got, ok := r.Get(99)
		assert.False(t, ok)
		assert.Nil(t, got)
	})
}

func TestRegistry_Remove(t *testing.T) {
	r := New()
	a, b := &stubHandle{name: "a"}, &stubHandle{name: "b"}
	r.Insert(1, a)
	r.Insert(2, b)

	t.Run("remove returns the removed handle", func(t *testing.T) {
		got, ok := r.Remove(1)
		assert.True(t, ok)
		assert.Same(t, a, got)
		assert.False(t, r.Has(1))
	})

	t.Run("removing an absent id is a no-op", func(t *testing.T) {
		got, ok := r.Remove(1)
		assert.False(t, ok)
		assert.Nil(t, got)

		_, ok = r.Remove(42)
		assert.False(t, ok)

		assert.Equal(t, []uint64{2}, r.IDs())
	})
}

func TestRegistry_Snapshot_order(t *testing.T) {
	r := New()
	for _, id := range []uint64{5, 1, 3, 2, 4} {
		r.Insert(id, &stubHandle{})
	}

	snap := r.Snapshot()
	ids := make([]uint64, 0, len(snap))
	for _, e := range snap {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, ids)

	r.Remove(3)
	assert.Len(t, snap, 5, "snapshot must not change after mutation")
}

func TestRegistry_ForEach(t *testing.T) {
	r := New()
	for id := uint64(1); id <= 4; id++ {
		r.Insert(id, &stubHandle{})
	}

	t.Run("visits every entry once and reports failures", func(t *testing.T) {
		var visited []uint64
		failed := r.ForEach(func(id uint64, h handle.Handle) error {
			visited = append(visited, id)
			if id%2 == 0 {
				return errors.New("broken pipe")
			}
			return nil
		})

		assert.Equal(t, []uint64{1, 2, 3, 4}, visited)
		assert.Equal(t, []uint64{2, 4}, failed)
		assert.Equal(t, 4, r.Len(), "ForEach must not remove entries itself")
	})

	t.Run("callback may mutate the registry without deadlock", func(t *testing.T) {
		var visited []uint64
		r.ForEach(func(id uint64, h handle.Handle) error {
			visited = append(visited, id)
			r.Remove(id + 1)
			return nil
		})

		assert.Equal(t, []uint64{1, 2, 3, 4}, visited, "traversal runs over the snapshot")
		assert.Equal(t, []uint64{1}, r.IDs())
	})
}

func TestRegistry_Concurrent(t *testing.T) {
	r := New()
	const goroutines = 50
	const perGoroutine = 200

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := range goroutines {
		go func(base int) {
			defer wg.Done()
			for i := range perGoroutine {
				id := uint64(base*perGoroutine + i + 1)
				r.Insert(id, &stubHandle{})
				r.Get(id)
				r.ForEach(func(uint64, handle.Handle) error { return nil })
			}
		}(g)
	}
	wg.Wait()
	assert.Equal(t, goroutines*perGoroutine, r.Len())

	wg.Add(goroutines)
	for g := range goroutines {
		go func(base int) {
			defer wg.Done()
			for i := range perGoroutine {
				id := uint64(base*perGoroutine + i + 1)
				r.Remove(id)
				r.Remove(id)
			}
		}(g)
	}
	wg.Wait()
	assert.Equal(t, 0, r.Len())
}
