package handler

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"clicky-game/internal/game"
	"clicky-game/internal/leaderboard"
	"clicky-game/internal/metrics"
	"clicky-game/internal/pkg/lock"
)

// PlayerCounter counts players with stored state.
type PlayerCounter interface {
	Players(ctx context.Context) (int64, error)
}

// AdminHandler handles operator commands. Access is checked by middleware.
type AdminHandler struct {
	remote  leaderboard.Remote
	games   *game.Registry
	locks   *lock.PlayerLock
	players PlayerCounter
	metrics *metrics.Metrics
}

// NewAdminHandler creates an AdminHandler. remote and players may be nil.
func NewAdminHandler(remote leaderboard.Remote, games *game.Registry, locks *lock.PlayerLock, players PlayerCounter, m *metrics.Metrics) *AdminHandler {
	return &AdminHandler{remote: remote, games: games, locks: locks, players: players, metrics: m}
}

// HandleResetLeaderboard handles /admin_reset: it reseeds the shared
// leaderboard.
func (h *AdminHandler) HandleResetLeaderboard(c tele.Context) error {
	if h.remote == nil {
		return c.Reply("There is no shared leaderboard to reset")
	}
	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	defer cancel()

	err := h.remote.Reset(ctx)
	h.metrics.Reset(err == nil)
	if err != nil {
		log.Error().Err(err).Int64("admin_id", c.Sender().ID).Msg("Admin leaderboard reset failed")
		return c.Reply("❌ Leaderboard reset failed")
	}

	log.Info().Int64("admin_id", c.Sender().ID).Str("operation", "admin_reset").Msg("Admin operation executed")
	return c.Reply("✅ Leaderboard reset successfully")
}

// HandleStats handles /admin_stats.
func (h *AdminHandler) HandleStats(c tele.Context) error {
	n := h.games.Count()
	h.metrics.SetActiveGames(n)
	msg := fmt.Sprintf("📊 Loaded games: %d\n⏳ Players with updates in flight: %d", n, h.locks.Len())

	if h.players != nil {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
		defer cancel()
		stored, err := h.players.Players(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to count stored players")
		} else {
			msg += fmt.Sprintf("\n💾 Stored players: %d", stored)
		}
	}
	return c.Reply(msg)
}

// HandleUnload handles /admin_unload <player id>: it closes the player's
// session so the next update reloads it from storage.
func (h *AdminHandler) HandleUnload(c tele.Context) error {
	args := c.Args()
	if len(args) != 1 {
		return c.Reply("Usage: /admin_unload <player id>")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return c.Reply("❌ Invalid player id")
	}
	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	defer cancel()
	var unloaded bool
	if err := h.locks.WithLock(ctx, id, func() error {
		unloaded = h.games.Unregister(id)
		return nil
	}); err != nil {
		return c.Reply("❌ Player is busy, try again")
	}
	if !unloaded {
		return c.Reply("Player has no loaded game")
	}
	h.metrics.SetActiveGames(h.games.Count())
	log.Info().Int64("admin_id", c.Sender().ID).Int64("target_id", id).Str("operation", "admin_unload").Msg("Admin operation executed")
	return c.Reply(fmt.Sprintf("✅ Unloaded game for %d", id))
}
