// Package idgenerator hands out client identities. Identities are positive,
// strictly increasing and never reused for the lifetime of a generator.
package idgenerator

import "sync/atomic"

// IdGenerator issues monotonically increasing uint64 identities in a
// concurrency-safe manner. The first identity issued is start+1, so a generator
// built with New(0) issues 1, 2, 3, ... and 0 can mean "no identity".
type IdGenerator struct {
	start uint64
	last  atomic.Uint64
}

// New creates an IdGenerator whose first Next() call returns start+1.
//
// Parameters:
//   - start: The value the counter begins at; it is never issued itself
//
// Returns:
//   - A new IdGenerator ready for concurrent use
func New(start uint64) *IdGenerator {
	gen := &IdGenerator{start: start}
	gen.last.Store(start)
	return gen
}

// Next consumes and returns the next identity. An identity handed out by Next
// is consumed even if the caller later discards it.
//
// Returns:
//   - The next identity
func (g *IdGenerator) Next() uint64 {
	return g.last.Add(1)
}

// Last returns the most recently issued identity, or 0 if none was issued yet.
//
// Returns:
//   - The last identity returned by Next, or 0
func (g *IdGenerator) Last() uint64 {
	last := g.last.Load()
	if last == g.start {
		return 0
	}

	return last
}

// Issued returns how many identities have been handed out so far.
func (g *IdGenerator) Issued() uint64 {
	return g.last.Load() - g.start
}
