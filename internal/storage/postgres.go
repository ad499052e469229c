package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// StateRepository persists one player's key/value state.
type StateRepository interface {
	Load(ctx context.Context, playerID int64) (map[string]string, error)
	Put(ctx context.Context, playerID int64, key, value string) error
	Delete(ctx context.Context, playerID int64, key string) error
}

// PostgresStore is a write-through Store for a single player backed by a
// StateRepository. Reads never touch the database after Open.
type PostgresStore struct {
	repo     StateRepository
	playerID int64
	timeout  time.Duration

	mu     sync.Mutex
	cache  *MemoryStore
	closed bool
}

// OpenPostgresStore loads every key the player has stored.
func OpenPostgresStore(ctx context.Context, repo StateRepository, playerID int64, timeout time.Duration) (*PostgresStore, error) {
	values, err := repo.Load(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load player state: %w", err)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PostgresStore{
		repo:     repo,
		playerID: playerID,
		timeout:  timeout,
		cache:    NewMemoryStoreFrom(values),
	}, nil
}

// Get implements Store.
func (s *PostgresStore) Get(key string) (string, bool) {
	return s.cache.Get(key)
}

// Set implements Store.
func (s *PostgresStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	_ = s.cache.Set(key, value)

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.repo.Put(ctx, s.playerID, key, value)
}

// Remove implements Store.
func (s *PostgresStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	_ = s.cache.Remove(key)

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.repo.Delete(ctx, s.playerID, key)
}

// Close stops further writes. Values already written stay in the database.
func (s *PostgresStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}
