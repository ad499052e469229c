package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps values in memory and rewrites a JSON file on every change.
type FileStore struct {
	path string

	mu    sync.Mutex
	cache *MemoryStore
}

// OpenFileStore loads the JSON file at path, creating parent directories as
// needed. A missing file yields an empty store; a corrupt file is an error so
// the caller can decide whether to start over.
func OpenFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	values := make(map[string]string)
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read state file: %w", err)
	case len(data) > 0:
		if err := json.Unmarshal(data, &values); err != nil {
			return nil, fmt.Errorf("failed to parse state file %s: %w", path, err)
		}
	}

	return &FileStore{path: path, cache: NewMemoryStoreFrom(values)}, nil
}

// Get implements Store.
func (s *FileStore) Get(key string) (string, bool) {
	return s.cache.Get(key)
}

// Set implements Store.
func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.cache.Set(key, value)
	return s.flush()
}

// Remove implements Store.
func (s *FileStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.cache.Remove(key)
	return s.flush()
}

// flush writes the cache to a temp file and renames it over the real one.
func (s *FileStore) flush() error {
	data, err := json.MarshalIndent(s.cache.Snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}
