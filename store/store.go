// Package store implements the in-memory artifact stores. A Store maps an
// opaque id to an immutable artifact record for the lifetime of the
// process: no eviction, no TTL, no persistence.
//
// Stores are explicit objects constructed once and handed to every
// pipeline call, which keeps tests isolated and makes concurrent access
// safe through a per-store RWMutex.
package store

import (
	"sync"

	"github.com/YuminosukeSato/prepflow/pkg/errors"
)

// Store is a keyed artifact store. Kind names the artifact family in
// NotFound errors ("cleaner", "model").
type Store[T any] struct {
	kind  string
	mu    sync.RWMutex
	items map[string]T
}

// New creates an empty store for the given artifact kind.
func New[T any](kind string) *Store[T] {
	return &Store[T]{
		kind:  kind,
		items: make(map[string]T),
	}
}

// Put stores an artifact under id. Re-using an id overwrites, last writer
// wins.
func (s *Store[T]) Put(id string, artifact T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[id] = artifact
}

// Get returns the artifact stored under id.
func (s *Store[T]) Get(id string) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	artifact, ok := s.items[id]
	if !ok {
		var zero T
		return zero, errors.NewNotFoundError(s.kind, id)
	}
	return artifact, nil
}

// IDs returns every stored id in unspecified order.
func (s *Store[T]) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.items))
	for id := range s.items {
		out = append(out, id)
	}
	return out
}

// Len returns the number of stored artifacts.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
