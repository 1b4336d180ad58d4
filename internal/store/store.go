// Package store provides an observable container for a domain collection.
//
// The collection is only changed through Update and observers only ever see
// copies, so no caller can mutate the stored value directly.
package store

import (
	"sort"
	"sync"
)

// Observer receives a copy of the value after every change.
// Observers must not call Update synchronously.
type Observer[T any] func(snapshot T)

type Store[T any] struct {
	mu       sync.Mutex
	notifyMu sync.Mutex

	value     T
	clone     func(T) T
	observers map[uint64]Observer[T]
	nextID    uint64
	closed    bool
}

// New creates a store holding initial. clone must return a copy that is safe
// to hand out; it is used for every snapshot and every Update.
func New[T any](initial T, clone func(T) T) *Store[T] {
	return &Store[T]{
		value:     initial,
		clone:     clone,
		observers: make(map[uint64]Observer[T]),
	}
}

func (s *Store[T]) Snapshot() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clone(s.value)
}

// Subscribe registers fn and returns a function removing it.
func (s *Store[T]) Subscribe(fn Observer[T]) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// Update applies fn to a copy of the current value. When fn reports a change
// the result is stored and observers are notified in update order. Update
// reports whether the value changed; a closed store ignores every update.
func (s *Store[T]) Update(fn func(current T) (next T, changed bool)) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}

	next, changed := fn(s.clone(s.value))
	if !changed {
		s.mu.Unlock()
		return false
	}
	s.value = next

	snapshot := s.clone(next)
	observers := s.sortedObservers()

	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	for _, fn := range observers {
		fn(snapshot)
	}
	return true
}

// Close stops the store from accepting updates. Late results from pending
// operations are dropped from then on.
func (s *Store[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.observers = make(map[uint64]Observer[T])
}

func (s *Store[T]) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Store[T]) sortedObservers() []Observer[T] {
	ids := make([]uint64, 0, len(s.observers))
	for id := range s.observers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]Observer[T], 0, len(ids))
	for _, id := range ids {
		out = append(out, s.observers[id])
	}
	return out
}

// CloneSlice is a clone function for slices of value types.
func CloneSlice[E any](s []E) []E {
	if s == nil {
		return nil
	}
	out := make([]E, len(s))
	copy(out, s)
	return out
}
