// Package lock provides per-player locking so that a player's bot updates
// are handled one at a time.
package lock

import (
	"context"
	"sync"
)

// entry is a player's lock with a count of holders and waiters, so that idle
// entries can be dropped.
type entry struct {
	ch   chan struct{}
	refs int
}

// PlayerLock serializes work per player ID. Different players never block
// each other.
type PlayerLock struct {
	mu      sync.Mutex
	entries map[int64]*entry
}

// NewPlayerLock creates an empty PlayerLock.
func NewPlayerLock() *PlayerLock {
	return &PlayerLock{entries: make(map[int64]*entry)}
}

func (l *PlayerLock) acquireRef(playerID int64) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[playerID]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.entries[playerID] = e
	}
	e.refs++
	return e
}

func (l *PlayerLock) releaseRef(playerID int64, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, playerID)
	}
}

// Lock blocks until the player's lock is held or ctx is done.
func (l *PlayerLock) Lock(ctx context.Context, playerID int64) error {
	e := l.acquireRef(playerID)
	select {
	case e.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.releaseRef(playerID, e)
		return ErrLockTimeout
	}
}

// Unlock releases the player's lock. Unlocking a lock that is not held is a
// no-op.
func (l *PlayerLock) Unlock(playerID int64) {
	l.mu.Lock()
	e, ok := l.entries[playerID]
	l.mu.Unlock()
	if !ok {
		return
	}
	select {
	case <-e.ch:
		l.releaseRef(playerID, e)
	default:
	}
}

// WithLock runs fn while holding the player's lock.
func (l *PlayerLock) WithLock(ctx context.Context, playerID int64, fn func() error) error {
	if err := l.Lock(ctx, playerID); err != nil {
		return err
	}
	defer l.Unlock(playerID)
	return fn()
}

// Len returns the number of players with a held or awaited lock.
func (l *PlayerLock) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
