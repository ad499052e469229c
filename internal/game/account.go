package game

import (
	"context"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"clicky-game/internal/leaderboard"
	"clicky-game/internal/model"
	"clicky-game/internal/storage"
)

// AccountBinder holds the player's leaderboard display name. The name is
// independent of any authenticated identity.
type AccountBinder struct {
	store storage.Store
	board *leaderboard.Synchronizer

	mu      sync.Mutex
	current string
}

// NewAccountBinder restores the bound name from storage.
func NewAccountBinder(store storage.Store, board *leaderboard.Synchronizer) *AccountBinder {
	b := &AccountBinder{store: store, board: board}
	if name, ok := store.Get(model.KeyCurrentUser); ok {
		b.current = strings.TrimSpace(name)
	}
	return b
}

// CreateAccount binds name as the current user and records score for it on
// the leaderboard. Blank names are ignored. It returns the bound name.
func (b *AccountBinder) CreateAccount(ctx context.Context, name string, score int64) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}

	b.mu.Lock()
	b.current = name
	if err := b.store.Set(model.KeyCurrentUser, name); err != nil {
		log.Warn().Err(err).Msg("Failed to persist current user")
	}
	b.mu.Unlock()

	b.board.Upsert(ctx, name, score)
	return name, true
}

// CurrentUser returns the bound name, if any.
func (b *AccountBinder) CurrentUser() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current, b.current != ""
}

// Rank returns the current user's 1-based leaderboard position.
func (b *AccountBinder) Rank() (int, bool) {
	name, ok := b.CurrentUser()
	if !ok {
		return 0, false
	}
	return b.board.Rank(name)
}

// Clear unbinds the current user. The leaderboard entry stays.
func (b *AccountBinder) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = ""
	if err := b.store.Remove(model.KeyCurrentUser); err != nil {
		log.Warn().Err(err).Msg("Failed to clear current user")
	}
}

// ValidateAccountName checks a display name before it is submitted.
func ValidateAccountName(name string) error {
	if strings.TrimSpace(name) == "" {
		return &ValidationError{Field: "username", Message: "Please enter a username"}
	}
	if utf8.RuneCountInString(name) > model.MaxAccountNameLength {
		return &ValidationError{Field: "username", Message: "Username must be 20 characters or less"}
	}
	return nil
}
