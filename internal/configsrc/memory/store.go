// Package memory provides an in-memory container.Loader/Saver. Intended
// for tests and programmatically-assembled containers — configuration is
// not persisted across restarts.
package memory

import (
	"context"
	"sync"
)

// Store is a mutex-guarded map of (name, uri) -> text blob. uri is part
// of the key so one Store can back multiple containers without clashing.
type Store struct {
	mu   sync.RWMutex
	data map[key]string
}

type key struct{ name, uri string }

// New returns an empty Store.
func New() *Store {
	return &Store{data: make(map[key]string)}
}

// Load implements container.Loader.
func (s *Store) Load(_ context.Context, name, uri string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	text, ok := s.data[key{name, uri}]
	return text, ok, nil
}

// Save implements container.Saver.
func (s *Store) Save(_ context.Context, name, uri, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key{name, uri}] = text
	return nil
}

// Delete removes a previously saved entry, if any.
func (s *Store) Delete(name, uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key{name, uri})
}
