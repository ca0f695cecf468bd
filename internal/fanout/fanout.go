// Package fanout delivers values to callbacks in registration order.
package fanout

import "sync"

// Set is a list of callbacks invoked in the order they were added. The zero
// value is ready to use.
type Set[T any] struct {
	mu     sync.RWMutex
	nextID int64
	order  []int64
	fns    map[int64]func(T)
}

// Add registers fn and returns a function that removes it.
func (s *Set[T]) Add(fn func(T)) func() {
	s.mu.Lock()
	if s.fns == nil {
		s.fns = make(map[int64]func(T))
	}
	s.nextID++
	id := s.nextID
	s.fns[id] = fn
	s.order = append(s.order, id)
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.fns, id)
		for i, v := range s.order {
			if v == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
}

// Dispatch calls every registered callback with v. Callbacks run outside the
// lock, so they may add or remove registrations.
func (s *Set[T]) Dispatch(v T) {
	s.mu.RLock()
	fns := make([]func(T), 0, len(s.order))
	for _, id := range s.order {
		fns = append(fns, s.fns[id])
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(v)
	}
}

// Len returns the number of registered callbacks.
func (s *Set[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}
