package bot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"clicky-game/internal/config"
	"clicky-game/internal/game"
	"clicky-game/internal/leaderboard"
	"clicky-game/internal/storage"
)

// stateTimeout bounds loading a player's state from the database.
const stateTimeout = 5 * time.Second

// PlayerFactory builds a player's Game on first use. Player state lives in a
// JSON file per player when a state directory is configured, otherwise in
// the database; with neither it is kept in memory.
type PlayerFactory struct {
	cfg    *config.Config
	remote leaderboard.Remote
	states storage.StateRepository

	// OnChange is called with the player ID when a game changes on its own.
	OnChange func(playerID int64)
}

// NewPlayerFactory creates a PlayerFactory.
func NewPlayerFactory(cfg *config.Config, remote leaderboard.Remote, states storage.StateRepository) *PlayerFactory {
	return &PlayerFactory{cfg: cfg, remote: remote, states: states}
}

// New implements game.Factory.
func (f *PlayerFactory) New(playerID int64) (*game.Game, error) {
	store, err := f.openStore(playerID)
	if err != nil {
		return nil, err
	}

	g := game.New(game.Options{
		Store:           store,
		Board:           leaderboard.NewSynchronizer(f.remote, store, nil),
		SplitDelay:      f.cfg.Game.SplitDelay,
		NotificationTTL: f.cfg.Game.NotificationTTL,
		SplitEnabled:    f.cfg.Game.SplitEnabled,
		OnChange: func(game.Snapshot) {
			if f.OnChange != nil {
				f.OnChange(playerID)
			}
		},
	})
	log.Debug().Int64("user_id", playerID).Msg("Game loaded")
	return g, nil
}

func (f *PlayerFactory) openStore(playerID int64) (storage.Store, error) {
	switch {
	case f.cfg.Bot.StateDir != "":
		return openFileStore(filepath.Join(f.cfg.Bot.StateDir, strconv.FormatInt(playerID, 10)+".json"))
	case f.states != nil:
		ctx, cancel := context.WithTimeout(context.Background(), stateTimeout)
		defer cancel()
		s, err := storage.OpenPostgresStore(ctx, f.states, playerID, stateTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to load player state: %w", err)
		}
		return s, nil
	default:
		return storage.NewMemoryStore(), nil
	}
}

// openFileStore opens path, moving an unreadable file aside so the player
// starts fresh instead of being locked out.
func openFileStore(path string) (storage.Store, error) {
	s, err := storage.OpenFileStore(path)
	if err == nil {
		return s, nil
	}
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		return nil, err
	}

	aside := path + ".corrupt"
	log.Warn().Err(err).Str("path", path).Str("moved_to", aside).Msg("Discarding unreadable player state")
	if renameErr := os.Rename(path, aside); renameErr != nil {
		return nil, fmt.Errorf("failed to move corrupt state aside: %w", renameErr)
	}
	s, err = storage.OpenFileStore(path)
	if err != nil {
		return nil, err
	}
	return s, nil
}
