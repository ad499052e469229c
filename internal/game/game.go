// Package game implements the clicker: the persistent score, score-gated
// feature unlocks, the split button presentation, account binding, panels
// and notifications. A Game is one player's session and is safe for
// concurrent use.
package game

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"clicky-game/internal/leaderboard"
	"clicky-game/internal/model"
	"clicky-game/internal/storage"
)

// Options configures a Game.
type Options struct {
	Store           storage.Store
	Board           *leaderboard.Synchronizer
	Scheduler       Scheduler
	SplitDelay      time.Duration
	NotificationTTL time.Duration
	// SplitEnabled is the split setting used when none has been stored yet.
	SplitEnabled bool
	// OnChange is called with a fresh snapshot after changes the player did
	// not directly cause, such as animation steps and expiring notifications.
	OnChange func(Snapshot)
}

// Snapshot is a consistent copy of the game state for rendering.
type Snapshot struct {
	Score              int64
	Features           model.UnlockedFeatures
	Theme              model.ButtonTheme
	HasSelectedFireIce bool
	SplitEnabled       bool
	Presentation       Presentation
	CurrentUser        string
	OpenPanels         []Panel
	Focus              string
	Notifications      []Notification
	SyncStatus         leaderboard.SyncStatus
}

// ClickResult describes the effect of one click.
type ClickResult struct {
	Score    int64
	Unlocked []Feature
	// SplitStarted is set when this click started the split animation.
	SplitStarted bool
	// Theme is set when the click committed a fire or ice theme.
	Theme model.ButtonTheme
}

// Game is one player's clicker session.
type Game struct {
	store    storage.Store
	board    *leaderboard.Synchronizer
	onChange func(Snapshot)

	mu           sync.Mutex
	score        *ScoreStore
	features     model.UnlockedFeatures
	theme        model.ButtonTheme
	hasSelected  bool
	splitEnabled bool
	buttons      *ButtonMachine
	modals       *ModalCoordinator
	notes        *Notifier
	account      *AccountBinder
	closed       bool
}

// New restores a Game from opts.Store. Flags are re-evaluated against the
// stored score without notifications.
func New(opts Options) *Game {
	store := opts.Store
	if store == nil {
		store = storage.NewMemoryStore()
	}
	board := opts.Board
	if board == nil {
		board = leaderboard.NewSynchronizer(nil, store, nil)
	}

	g := &Game{
		store:    store,
		board:    board,
		onChange: opts.OnChange,
		score:    NewScoreStore(store),
		modals:   NewModalCoordinator(nil),
		account:  NewAccountBinder(store, board),
	}
	g.buttons = NewButtonMachine(&g.mu, opts.Scheduler, opts.SplitDelay, func(Presentation) { g.emit() })
	g.notes = NewNotifier(opts.Scheduler, opts.NotificationTTL, func([]Notification) { g.emit() })

	g.load(opts.SplitEnabled)
	return g
}

func (g *Game) load(splitDefault bool) {
	if raw, ok := g.store.Get(model.KeyUnlockedFeatures); ok {
		if err := json.Unmarshal([]byte(raw), &g.features); err != nil {
			log.Warn().Err(err).Msg("Ignoring corrupt unlocked features")
			g.features = model.UnlockedFeatures{}
		}
	}

	g.theme = model.ThemeDefault
	if raw, ok := g.store.Get(model.KeyButtonTheme); ok {
		if theme, valid := model.ParseButtonTheme(raw); valid {
			g.theme = theme
		} else {
			log.Warn().Str("value", raw).Msg("Ignoring unknown stored button theme")
		}
	}

	g.hasSelected = g.loadBool(model.KeyHasSelectedFireIceTheme, false)
	g.splitEnabled = g.loadBool(model.KeySplitButtonEnabled, splitDefault)

	features, unlocked := Evaluate(g.score.Score(), g.features)
	if len(unlocked) > 0 {
		g.features = features
		g.persistFeatures()
		for _, f := range unlocked {
			if f == FeatureSimpleButton && g.theme == model.ThemeDefault && !g.hasSelected {
				g.setThemeLocked(model.ThemeSimple)
			}
		}
	}
}

func (g *Game) loadBool(key string, def bool) bool {
	raw, ok := g.store.Get(key)
	if !ok {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Msg("Ignoring unparsable stored flag")
		return def
	}
	return v
}

// Click adds one point. It fails with ErrUseHalfButton while the control is
// split into two halves.
func (g *Game) Click(ctx context.Context) (ClickResult, error) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return ClickResult{}, ErrClosed
	}
	if _, split := g.buttons.State().(TwoButtons); split {
		g.mu.Unlock()
		return ClickResult{}, ErrUseHalfButton
	}
	res := g.incrementLocked()
	user, bound := g.account.CurrentUser()
	g.mu.Unlock()

	if bound {
		g.board.Upsert(ctx, user, res.Score)
	}
	return res, nil
}

// ClickHalf clicks one half of the split control. The half counts as a
// normal click; if a theme choice is pending, the left half picks fire and
// the right half picks ice. The control then merges back into one.
func (g *Game) ClickHalf(ctx context.Context, side Side) (ClickResult, error) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return ClickResult{}, ErrClosed
	}
	pending, err := g.buttons.ClickHalf()
	if err != nil {
		g.mu.Unlock()
		return ClickResult{}, err
	}

	var chosen model.ButtonTheme
	if pending {
		chosen = model.ThemeFire
		if side == Right {
			chosen = model.ThemeIce
		}
		g.setThemeLocked(chosen)
		g.hasSelected = true
		g.persistBool(model.KeyHasSelectedFireIceTheme, true)
	}

	res := g.incrementLocked()
	res.Theme = chosen
	user, bound := g.account.CurrentUser()
	g.mu.Unlock()

	if bound {
		g.board.Upsert(ctx, user, res.Score)
	}
	return res, nil
}

// incrementLocked increments the score and applies unlocks. Caller holds g.mu.
func (g *Game) incrementLocked() ClickResult {
	score := g.score.Increment()
	res := ClickResult{Score: score}

	features, unlocked := Evaluate(score, g.features)
	if len(unlocked) > 0 {
		g.features = features
		g.persistFeatures()
		for _, f := range unlocked {
			if f == FeatureSimpleButton && g.theme == model.ThemeDefault && !g.hasSelected {
				g.setThemeLocked(model.ThemeSimple)
			}
			g.notes.Show(KindUnlock, UnlockMessage(f))
		}
		res.Unlocked = unlocked
	}

	res.SplitStarted = g.buttons.ScoreChanged(score, g.features, g.hasSelected, g.splitEnabled)
	return res
}

// Reset returns the game to a first run: score 0, no unlocks, default theme,
// no theme choice, no bound account and a single button. Leaderboard entries
// are kept.
func (g *Game) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.buttons.ForceSingle()
	g.score.Reset()
	g.features = model.UnlockedFeatures{}
	g.persistFeatures()
	g.setThemeLocked(model.ThemeDefault)
	g.hasSelected = false
	if err := g.store.Remove(model.KeyHasSelectedFireIceTheme); err != nil {
		log.Warn().Err(err).Msg("Failed to clear theme selection")
	}
	g.account.Clear()
	g.modals.Escape()
}

// SetTheme sets the button theme directly.
func (g *Game) SetTheme(theme model.ButtonTheme) error {
	if _, ok := model.ParseButtonTheme(string(theme)); !ok {
		return ErrInvalidTheme
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.setThemeLocked(theme)
	return nil
}

// SelectFireIceTheme commits the fire or ice theme outside the split
// sequence. It requires the fire/ice unlock.
func (g *Game) SelectFireIceTheme(theme model.ButtonTheme) error {
	if !theme.IsFireIce() {
		return ErrInvalidTheme
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.features.FireIceTheme {
		return ErrFeatureLocked
	}
	g.setThemeLocked(theme)
	g.hasSelected = true
	g.persistBool(model.KeyHasSelectedFireIceTheme, true)
	g.buttons.ResolveChoice()
	return nil
}

// SetSplitEnabled changes the split setting. Disabling it cancels any split
// in progress.
func (g *Game) SetSplitEnabled(enabled bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.setSplitLocked(enabled)
}

// ToggleSplit flips the split setting and returns the new value.
func (g *Game) ToggleSplit() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.setSplitLocked(!g.splitEnabled)
	return g.splitEnabled
}

func (g *Game) setSplitLocked(enabled bool) {
	g.splitEnabled = enabled
	g.persistBool(model.KeySplitButtonEnabled, enabled)
	if !enabled {
		g.buttons.ForceSingle()
	}
}

// CreateAccount binds name as the leaderboard identity and submits the
// current score for it. Blank names are ignored.
func (g *Game) CreateAccount(ctx context.Context, name string) (string, bool) {
	g.mu.Lock()
	score := g.score.Score()
	g.mu.Unlock()
	return g.account.CreateAccount(ctx, name, score)
}

// CurrentUser returns the bound leaderboard name.
func (g *Game) CurrentUser() (string, bool) {
	return g.account.CurrentUser()
}

// Rank returns the bound name's leaderboard position.
func (g *Game) Rank() (int, bool) {
	return g.account.Rank()
}

// Leaderboard refreshes and returns the leaderboard.
func (g *Game) Leaderboard(ctx context.Context) []model.LeaderboardEntry {
	return g.board.FetchAll(ctx)
}

// LeaderboardEntries returns the last known leaderboard without fetching.
func (g *Game) LeaderboardEntries() []model.LeaderboardEntry {
	return g.board.Entries()
}

// ResetLeaderboard resets the leaderboard and shows whether the shared board
// was reset or only the local copy.
func (g *Game) ResetLeaderboard(ctx context.Context) leaderboard.SyncStatus {
	status := g.board.ResetAll(ctx)
	if status == leaderboard.StatusDegraded {
		g.notes.Show(KindError, "Could not reach the leaderboard, reset the local copy instead")
	} else {
		g.notes.Show(KindSuccess, "Leaderboard reset successfully")
	}
	return status
}

// OpenPanel opens p. The leaderboard panel requires its unlock.
func (g *Game) OpenPanel(p Panel) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if p == PanelLeaderboard && !g.features.Leaderboard {
		return ErrFeatureLocked
	}
	return g.modals.Open(p)
}

// ClosePanel closes p.
func (g *Game) ClosePanel(p Panel) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.modals.Close(p)
}

// TogglePanel opens or closes p and reports whether it is open afterwards.
func (g *Game) TogglePanel(p Panel) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if p == PanelLeaderboard && !g.features.Leaderboard && !g.modals.IsOpen(p) {
		return false, ErrFeatureLocked
	}
	return g.modals.Toggle(p)
}

// Escape closes every panel.
func (g *Game) Escape() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.modals.Escape()
}

// ClickOutside dismisses p.
func (g *Game) ClickOutside(p Panel) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.modals.ClickOutside(p)
}

// Notify shows a notification.
func (g *Game) Notify(kind NotificationKind, message string) Notification {
	return g.notes.Show(kind, message)
}

// DismissNotification hides a notification before it expires. It reports
// whether the notification was still visible.
func (g *Game) DismissNotification(id uint64) bool {
	return g.notes.Dismiss(id)
}

// Notifications returns the visible notifications.
func (g *Game) Notifications() []Notification {
	return g.notes.Active()
}

// Snapshot returns a copy of the current state.
func (g *Game) Snapshot() Snapshot {
	g.mu.Lock()
	snap := Snapshot{
		Score:              g.score.Score(),
		Features:           g.features,
		Theme:              g.theme,
		HasSelectedFireIce: g.hasSelected,
		SplitEnabled:       g.splitEnabled,
		Presentation:       g.buttons.State(),
		OpenPanels:         g.modals.OpenPanels(),
		Focus:              g.modals.Focus(),
	}
	g.mu.Unlock()

	snap.CurrentUser, _ = g.account.CurrentUser()
	snap.Notifications = g.notes.Active()
	snap.SyncStatus = g.board.Status()
	return snap
}

// Close cancels all timers and releases the store if it holds resources.
// Later clicks fail with ErrClosed.
func (g *Game) Close() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	g.buttons.Close()
	g.mu.Unlock()
	g.notes.Close()

	if c, ok := g.store.(interface{ Close() }); ok {
		c.Close()
	}
}

func (g *Game) emit() {
	if g.onChange == nil {
		return
	}
	g.mu.Lock()
	closed := g.closed
	g.mu.Unlock()
	if closed {
		return
	}
	g.onChange(g.Snapshot())
}

func (g *Game) setThemeLocked(theme model.ButtonTheme) {
	g.theme = theme
	if err := g.store.Set(model.KeyButtonTheme, string(theme)); err != nil {
		log.Warn().Err(err).Msg("Failed to persist button theme")
	}
}

func (g *Game) persistFeatures() {
	data, err := json.Marshal(g.features)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode unlocked features")
		return
	}
	if err := g.store.Set(model.KeyUnlockedFeatures, string(data)); err != nil {
		log.Warn().Err(err).Msg("Failed to persist unlocked features")
	}
}

func (g *Game) persistBool(key string, v bool) {
	if err := g.store.Set(key, strconv.FormatBool(v)); err != nil {
		log.Warn().Str("key", key).Err(err).Msg("Failed to persist flag")
	}
}
