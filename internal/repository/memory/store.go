// Package memory provides the ordered in-memory store behind the memory
// repositories.
package memory

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned by Store when the requested key does not exist.
var ErrNotFound = errors.New("not found")

// Store is a thread-safe keyed store that remembers first-insertion order.
// Replacing a value keeps its original position.
type Store[V any] struct {
	mu    sync.RWMutex
	data  map[string]V
	order []string
	key   func(V) string
}

// New creates a Store that derives each value's key with key.
func New[V any](key func(V) string) *Store[V] {
	return &Store[V]{data: make(map[string]V), key: key}
}

// Set inserts or replaces v.
func (s *Store[V]) Set(_ context.Context, v V) error {
	k := s.key(v)
	if k == "" {
		return errors.New("memory: empty key")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[k]; !ok {
		s.order = append(s.order, k)
	}
	s.data[k] = v
	return nil
}

// Get returns the value for key, or ErrNotFound.
func (s *Store[V]) Get(_ context.Context, key string) (V, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		var zero V
		return zero, ErrNotFound
	}
	return v, nil
}

// Has reports whether key exists.
func (s *Store[V]) Has(_ context.Context, key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[key]
	return ok
}

// Len returns the number of stored values.
func (s *Store[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// All returns every value in insertion order.
func (s *Store[V]) All(ctx context.Context) ([]V, error) {
	return s.Filter(ctx, func(V) bool { return true })
}

// Filter returns the values for which pred is true, in insertion order.
func (s *Store[V]) Filter(_ context.Context, pred func(V) bool) ([]V, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []V
	for _, k := range s.order {
		if v := s.data[k]; pred(v) {
			out = append(out, v)
		}
	}
	return out, nil
}
