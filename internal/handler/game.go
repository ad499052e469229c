// Package handler provides the Telegram command and callback handlers for
// the clicker. Each player has one board message that is edited in place as
// the game changes.
package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"clicky-game/internal/game"
	"clicky-game/internal/leaderboard"
	"clicky-game/internal/metrics"
	"clicky-game/internal/model"
	"clicky-game/internal/pkg/lock"
)

// Messenger sends and edits messages. *tele.Bot satisfies it.
type Messenger interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// DefaultTimeout bounds the network work done for one update.
const DefaultTimeout = 10 * time.Second

// GameHandler handles the clicker board and the leaderboard commands.
type GameHandler struct {
	games    *game.Registry
	locks    *lock.PlayerLock
	metrics  *metrics.Metrics
	auth     *AuthHandler
	topLimit int
	timeout  time.Duration

	mu     sync.Mutex
	api    Messenger
	boards map[int64]tele.StoredMessage
}

// NewGameHandler creates a GameHandler. auth may be nil when sign in is not
// configured.
func NewGameHandler(games *game.Registry, locks *lock.PlayerLock, m *metrics.Metrics, auth *AuthHandler, topLimit int) *GameHandler {
	return &GameHandler{
		games:    games,
		locks:    locks,
		metrics:  m,
		auth:     auth,
		topLimit: topLimit,
		timeout:  DefaultTimeout,
		boards:   make(map[int64]tele.StoredMessage),
	}
}

// SetMessenger sets the API used to edit boards outside of an update.
func (h *GameHandler) SetMessenger(api Messenger) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.api = api
}

// HandleStart handles /start: it loads the player's game and posts a fresh
// board message.
func (h *GameHandler) HandleStart(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	return h.locks.WithLock(ctx, sender.ID, func() error {
		g, err := h.games.Get(sender.ID)
		if err != nil {
			log.Error().Err(err).Int64("user_id", sender.ID).Msg("Failed to load game")
			return c.Reply("❌ Could not load your game, please try again later")
		}
		h.metrics.SetActiveGames(h.games.Count())

		text, markup := Render(g.Snapshot(), h.view(sender.ID, g))
		api := h.messenger()
		if api == nil {
			return c.Send(text, markup)
		}
		msg, err := api.Send(c.Recipient(), text, markup)
		if err != nil {
			return err
		}
		h.setBoard(sender.ID, storedMessage(msg))
		return nil
	})
}

// HandleCallback routes inline button presses on the board.
func (h *GameHandler) HandleCallback(c tele.Context) error {
	cb := c.Callback()
	sender := c.Sender()
	if cb == nil || sender == nil {
		return nil
	}
	action, payload := parseCallback(cb.Data)
	log.Debug().Str("action", action).Str("payload", payload).Msg("Callback received")

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	var notice string
	err := h.locks.WithLock(ctx, sender.ID, func() error {
		g, err := h.games.Get(sender.ID)
		if err != nil {
			return err
		}
		notice, err = h.apply(ctx, c, g, sender.ID, action, payload)
		if err != nil {
			return err
		}
		if cb.Message != nil {
			h.setBoard(sender.ID, storedMessage(cb.Message))
		}
		text, markup := Render(g.Snapshot(), h.view(sender.ID, g))
		if err := c.Edit(text, markup); err != nil && !errors.Is(err, tele.ErrSameMessageContent) {
			return err
		}
		return nil
	})
	if err != nil {
		log.Error().Err(err).Int64("user_id", sender.ID).Str("action", action).Msg("Callback failed")
		return c.Respond(&tele.CallbackResponse{Text: "❌ Something went wrong"})
	}
	return c.Respond(&tele.CallbackResponse{Text: notice})
}

// apply performs one board action. The returned string is shown as the
// callback answer.
func (h *GameHandler) apply(ctx context.Context, c tele.Context, g *game.Game, playerID int64, action, payload string) (string, error) {
	switch action {
	case actionClick:
		res, err := g.Click(ctx)
		if errors.Is(err, game.ErrUseHalfButton) {
			return "Click one of the halves", nil
		}
		if err != nil {
			return "", err
		}
		h.metrics.Click("single")
		h.recordUnlocks(res)

	case actionHalf:
		side := game.Left
		if payload == "right" {
			side = game.Right
		}
		res, err := g.ClickHalf(ctx, side)
		if errors.Is(err, game.ErrNotSplit) {
			return "", nil
		}
		if err != nil {
			return "", err
		}
		h.metrics.Click(payload)
		h.recordUnlocks(res)
		if res.Theme != "" {
			return fmt.Sprintf("Theme set to %s", res.Theme), nil
		}

	case actionPanel:
		panel := game.Panel(payload)
		if panel == game.PanelAuth && !h.auth.Enabled() {
			return "Sign in is not available", nil
		}
		open, err := g.TogglePanel(panel)
		if errors.Is(err, game.ErrFeatureLocked) {
			return fmt.Sprintf("Reach %d clicks to unlock the leaderboard", game.LeaderboardThreshold), nil
		}
		if err != nil {
			return "", err
		}
		if open && panel == game.PanelLeaderboard {
			g.Leaderboard(ctx)
			h.metrics.Sync(g.Snapshot().SyncStatus.String())
		}

	case actionClose:
		if payload == "" {
			g.Escape()
		} else {
			g.ClosePanel(game.Panel(payload))
		}

	case actionDismiss:
		id, err := strconv.ParseUint(payload, 10, 64)
		if err != nil {
			return "", nil
		}
		g.DismissNotification(id)

	case actionTheme:
		theme, ok := model.ParseButtonTheme(payload)
		if !ok {
			return "Unknown theme", nil
		}
		var err error
		if theme.IsFireIce() {
			err = g.SelectFireIceTheme(theme)
		} else {
			err = g.SetTheme(theme)
		}
		if errors.Is(err, game.ErrFeatureLocked) {
			return fmt.Sprintf("Reach %d clicks to unlock fire and ice", game.FireIceThreshold), nil
		}
		if err != nil {
			return "", err
		}

	case actionSplit:
		if g.ToggleSplit() {
			return "Split button enabled", nil
		}
		return "Split button disabled", nil

	case actionLBReset:
		status := g.ResetLeaderboard(ctx)
		h.metrics.Reset(status != leaderboard.StatusDegraded)
		h.metrics.Sync(status.String())

	case actionReset:
		g.Reset()
		g.Notify(game.KindSuccess, "Game reset")

	case actionView:
		h.auth.SetView(playerID, payload)

	case actionGoogle:
		return "", h.auth.StartOAuth(ctx, c, playerID)

	default:
		log.Warn().Str("action", action).Msg("Unknown callback action")
	}
	return "", nil
}

// HandleText treats a plain chat message as a click outside the board: the
// most recently opened panel is dismissed.
func (h *GameHandler) HandleText(c tele.Context) error {
	sender := c.Sender()
	if sender == nil || strings.HasPrefix(c.Text(), "/") {
		return nil
	}
	g, ok := h.games.Lookup(sender.ID)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	return h.locks.WithLock(ctx, sender.ID, func() error {
		open := g.Snapshot().OpenPanels
		if len(open) == 0 {
			return nil
		}
		g.ClickOutside(open[len(open)-1])
		h.refreshLocked(sender.ID, g)
		return nil
	})
}

// HandleAccount handles /account <name>: it binds the name as the player's
// leaderboard identity and submits the current score.
func (h *GameHandler) HandleAccount(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	name := strings.TrimSpace(strings.Join(c.Args(), " "))
	if err := game.ValidateAccountName(name); err != nil {
		var vErr *game.ValidationError
		if errors.As(err, &vErr) {
			return c.Reply("❌ " + vErr.Message + "\nUsage: /account <name>")
		}
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	var bound string
	err := h.locks.WithLock(ctx, sender.ID, func() error {
		g, err := h.games.Get(sender.ID)
		if err != nil {
			return err
		}
		bound, _ = g.CreateAccount(ctx, name)
		h.metrics.Sync(g.Snapshot().SyncStatus.String())
		h.refreshLocked(sender.ID, g)
		return nil
	})
	if err != nil {
		log.Error().Err(err).Int64("user_id", sender.ID).Msg("Failed to create account")
		return c.Reply("❌ Could not create the account, please try again later")
	}

	log.Info().Int64("user_id", sender.ID).Str("name", bound).Msg("Account bound")
	return c.Reply(fmt.Sprintf("✅ You are now on the leaderboard as %s", bound))
}

// HandleRank handles /rank.
func (h *GameHandler) HandleRank(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	g, err := h.games.Get(sender.ID)
	if err != nil {
		return err
	}
	name, bound := g.CurrentUser()
	if !bound {
		return c.Reply("You have no leaderboard account yet. Use /account <name>.")
	}
	rank, ok := g.Rank()
	if !ok {
		return c.Reply(fmt.Sprintf("%s is not on the leaderboard yet", name))
	}
	return c.Reply(fmt.Sprintf("🏆 %s is #%d with %d clicks", name, rank, g.Snapshot().Score))
}

// HandleTop handles /top: it fetches and prints the leaderboard.
func (h *GameHandler) HandleTop(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	g, err := h.games.Get(sender.ID)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	entries := g.Leaderboard(ctx)
	snap := g.Snapshot()
	h.metrics.Sync(snap.SyncStatus.String())
	return c.Reply(renderLeaderboard(entries, snap.CurrentUser, h.topLimit, snap.SyncStatus))
}

// Refresh redraws the player's board. It is the game's change callback and
// runs on timer goroutines.
func (h *GameHandler) Refresh(playerID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	if err := h.locks.Lock(ctx, playerID); err != nil {
		log.Warn().Err(err).Int64("user_id", playerID).Msg("Skipping board refresh")
		return
	}
	defer h.locks.Unlock(playerID)

	g, ok := h.games.Lookup(playerID)
	if !ok {
		return
	}
	h.refreshLocked(playerID, g)
}

// refreshLocked edits the board message. Caller holds the player's lock.
func (h *GameHandler) refreshLocked(playerID int64, g *game.Game) {
	board, ok := h.board(playerID)
	api := h.messenger()
	if !ok || api == nil {
		return
	}
	text, markup := Render(g.Snapshot(), h.view(playerID, g))
	if _, err := api.Edit(board, text, markup); err != nil && !errors.Is(err, tele.ErrSameMessageContent) {
		log.Warn().Err(err).Int64("user_id", playerID).Msg("Failed to refresh board")
	}
}

func (h *GameHandler) view(playerID int64, g *game.Game) View {
	v := View{Entries: g.LeaderboardEntries(), TopLimit: h.topLimit}
	if h.auth.Enabled() {
		v.AuthEnabled = true
		v.AuthView, v.SignedIn = h.auth.Status(playerID)
	}
	return v
}

func (h *GameHandler) recordUnlocks(res game.ClickResult) {
	for _, f := range res.Unlocked {
		h.metrics.Unlock(string(f))
	}
}

func (h *GameHandler) messenger() Messenger {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.api
}

func (h *GameHandler) board(playerID int64) (tele.StoredMessage, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.boards[playerID]
	return b, ok
}

func (h *GameHandler) setBoard(playerID int64, msg tele.StoredMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.boards[playerID] = msg
}
