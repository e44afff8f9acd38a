// Package registry holds the live client connections of a relay, keyed by
// client identity. All operations are serialized by a single mutex; the
// registry never performs network I/O while holding it.
package registry

import (
	"cmp"
	"slices"
	"sync"

	"github.com/cyberinferno/chatrelay/handle"
)

// Entry is one registered client as seen by a traversal.
type Entry struct {
	ID     uint64
	Handle handle.Handle
}

// Registry maps client identities to their connection handles. At most one
// handle is stored per identity. Iteration order is ascending identity, which
// is also the order in which clients were accepted.
//
// Registry must not be copied after first use.
type Registry struct {
	mu      sync.Mutex
	clients map[uint64]handle.Handle
}

// New returns an empty Registry ready for concurrent use.
//
// Returns:
//   - A pointer to a new, empty Registry
func New() *Registry {
	return &Registry{clients: make(map[uint64]handle.Handle)}
}

// Insert registers h under id. An identity can only be registered once; a
// second insert for the same id is rejected and leaves the first entry intact.
//
// Parameters:
//   - id: The client identity
//   - h: The connection handle for that client
//
// Returns:
//   - true if the entry was added, false if id was already registered
func (r *Registry) Insert(id uint64, h handle.Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.clients[id]; exists {
		return false
	}
	r.clients[id] = h

	return true
}

// Get looks up the handle registered for id.
//
// Parameters:
//   - id: The client identity to look up
//
// Returns:
//   - The handle and true if id is registered, or nil and false otherwise
func (r *Registry) Get(id uint64) (handle.Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.clients[id]
	return h, ok
}

// Remove deletes the entry for id. Removing an absent identity is a no-op, so
// the write-failure path and the connection shutdown path may both call it.
//
// Parameters:
//   - id: The client identity to remove
//
// Returns:
//   - The removed handle and true if an entry was deleted, or nil and false
func (r *Registry) Remove(id uint64) (handle.Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.clients[id]
	if ok {
		delete(r.clients, id)
	}

	return h, ok
}

// Snapshot returns the entries registered at the moment of the call, ordered
// by identity. Later mutations do not affect the returned slice.
//
// Returns:
//   - A point-in-time copy of the registry contents
func (r *Registry) Snapshot() []Entry {
	r.mu.Lock()
	entries := make([]Entry, 0, len(r.clients))
	for id, h := range r.clients {
		entries = append(entries, Entry{ID: id, Handle: h})
	}
	r.mu.Unlock()

	slices.SortFunc(entries, func(a, b Entry) int {
		return cmp.Compare(a.ID, b.ID)
	})

	return entries
}

// ForEach calls fn for every entry of a point-in-time snapshot, in identity
// order, without holding the registry lock. It does not remove anything; it
// returns the identities for which fn failed so the caller can evict them once
// the traversal is over.
//
// Parameters:
//   - fn: Called once per entry; a non-nil error marks the entry as failed
//
// Returns:
//   - The identities whose fn call returned an error, in traversal order
func (r *Registry) ForEach(fn func(id uint64, h handle.Handle) error) []uint64 {
	var failed []uint64
	for _, e := range r.Snapshot() {
		if err := fn(e.ID, e.Handle); err != nil {
			failed = append(failed, e.ID)
		}
	}

	return failed
}

// IDs returns the registered identities in ascending order.
func (r *Registry) IDs() []uint64 {
	r.mu.Lock()
	ids := make([]uint64, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	slices.Sort(ids)
	return ids
}

// Len returns the number of registered clients.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Has reports whether id is registered.
func (r *Registry) Has(id uint64) bool {
	_, ok := r.Get(id)
	return ok
}
