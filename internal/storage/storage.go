// Package storage provides the durable key/value mirror the game keeps its
// state in. Every backend behaves like browser local storage: reads are served
// from memory, writes go through synchronously, and the last write wins.
package storage

import (
	"errors"
	"sync"
)

// ErrClosed is returned by writes to a store that has been closed.
var ErrClosed = errors.New("storage closed")

// Store is a string to string mirror of game state.
type Store interface {
	// Get returns the value stored under key and whether it was present.
	Get(key string) (string, bool)
	// Set stores value under key.
	Set(key, value string) error
	// Remove deletes key. Removing an absent key is not an error.
	Remove(key string) error
}

// MemoryStore is a Store that lives only in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// NewMemoryStoreFrom creates a MemoryStore seeded with a copy of values.
func NewMemoryStoreFrom(values map[string]string) *MemoryStore {
	s := NewMemoryStore()
	for k, v := range values {
		s.values[k] = v
	}
	return s
}

// Get implements Store.
func (s *MemoryStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Set implements Store.
func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// Remove implements Store.
func (s *MemoryStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// Snapshot returns a copy of every stored value.
func (s *MemoryStore) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}
