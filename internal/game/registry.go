package game

import (
	"fmt"
	"sync"
)

// Factory builds the Game for a player on first use.
type Factory func(playerID int64) (*Game, error)

// Registry keeps one live Game per player.
// It is safe for concurrent use; a player's Game is built at most once.
type Registry struct {
	factory Factory
	games   map[int64]*Game
	mu      sync.Mutex
}

// NewRegistry creates a registry that builds games with factory.
func NewRegistry(factory Factory) *Registry {
	return &Registry{
		factory: factory,
		games:   make(map[int64]*Game),
	}
}

// Get returns the player's Game, building it if needed.
func (r *Registry) Get(playerID int64) (*Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g, ok := r.games[playerID]; ok {
		return g, nil
	}
	if r.factory == nil {
		return nil, fmt.Errorf("no game factory configured")
	}
	g, err := r.factory(playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to create game for player %d: %w", playerID, err)
	}
	r.games[playerID] = g
	return g, nil
}

// Lookup returns the player's Game if it is already loaded.
func (r *Registry) Lookup(playerID int64) (*Game, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.games[playerID]
	return g, ok
}

// Count returns the number of loaded games.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.games)
}

// Unregister closes and forgets the player's Game.
// Returns true if the game was loaded.
func (r *Registry) Unregister(playerID int64) bool {
	r.mu.Lock()
	g, ok := r.games[playerID]
	delete(r.games, playerID)
	r.mu.Unlock()

	if ok {
		g.Close()
	}
	return ok
}

// CloseAll closes every loaded Game.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	games := r.games
	r.games = make(map[int64]*Game)
	r.mu.Unlock()

	for _, g := range games {
		g.Close()
	}
}
