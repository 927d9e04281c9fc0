// Package memory provides an in-memory store, used for tests and demos.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/worshipwaves/WDweb-sub002/pkg/store"
)

// Store is a map-backed implementation of store.ReadWriter.
type Store struct {
	mu      sync.RWMutex
	objects map[string][]byte
	closed  bool
}

// New creates an empty memory store.
func New() *Store {
	return &Store{objects: make(map[string][]byte)}
}

// Write stores a copy of data under key.
func (s *Store) Write(ctx context.Context, key string, data []byte) error {
	if err := store.ValidateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.ErrClosed
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	s.objects[key] = buf
	return nil
}

// Read returns a copy of the object for key.
func (s *Store) Read(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, store.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, ok := s.objects[key]
	if !ok {
		return nil, store.ErrNotFound
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	return buf, nil
}

// Keys returns every stored key, sorted.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// HealthCheck reports ErrClosed after Close.
func (s *Store) HealthCheck(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return store.ErrClosed
	}
	return nil
}

// Close drops every object.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.objects = nil
	return nil
}

var _ store.ReadWriter = (*Store)(nil)
