// Package safeset provides a generic set guarded by a mutex.
package safeset

import "sync"

// SafeSet is a set of comparable values that is safe for concurrent use.
type SafeSet[T comparable] struct {
	mu sync.RWMutex
	m  map[T]struct{}
}

// New returns an empty SafeSet.
func New[T comparable]() *SafeSet[T] {
	return &SafeSet[T]{m: make(map[T]struct{})}
}

// Add inserts value.
//
// Parameters:
//   - value: The element to add
//
// Returns:
//   - true if value was not present before
func (s *SafeSet[T]) Add(value T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.m[value]; ok {
		return false
	}
	s.m[value] = struct{}{}

	return true
}

// Remove deletes value. Removing an absent value is a no-op.
//
// Parameters:
//   - value: The element to remove
//
// Returns:
//   - true if value was present
func (s *SafeSet[T]) Remove(value T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.m[value]; !ok {
		return false
	}
	delete(s.m, value)

	return true
}

// Contains reports whether value is in the set.
func (s *SafeSet[T]) Contains(value T) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.m[value]
	return ok
}

// Size returns the number of elements.
func (s *SafeSet[T]) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

// Items returns a copy of the elements in no particular order.
func (s *SafeSet[T]) Items() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]T, 0, len(s.m))
	for v := range s.m {
		items = append(items, v)
	}

	return items
}

// Drain empties the set and returns what it held, atomically with respect to
// Add and Remove.
func (s *SafeSet[T]) Drain() []T {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]T, 0, len(s.m))
	for v := range s.m {
		items = append(items, v)
	}
	s.m = make(map[T]struct{})

	return items
}
