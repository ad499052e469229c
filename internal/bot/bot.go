// Package bot wires the clicker into a Telegram bot: it builds one game per
// player, registers the handlers and runs the poller.
package bot

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"clicky-game/internal/config"
	"clicky-game/internal/game"
	"clicky-game/internal/handler"
	"clicky-game/internal/leaderboard"
	"clicky-game/internal/metrics"
	"clicky-game/internal/pkg/lock"
	"clicky-game/internal/storage"
)

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot     *tele.Bot
	cfg     *config.Config
	metrics *metrics.Metrics
	games   *game.Registry
	locks   *lock.PlayerLock
	players *PlayerFactory

	gameHandler  *handler.GameHandler
	authHandler  *handler.AuthHandler
	adminHandler *handler.AdminHandler
}

// Dependencies holds what the bot needs from the rest of the application.
type Dependencies struct {
	Config  *config.Config
	Metrics *metrics.Metrics
	// Remote is the shared leaderboard. Nil keeps every player's leaderboard
	// local.
	Remote leaderboard.Remote
	// States stores player state when Config.Bot.StateDir is empty.
	States storage.StateRepository
	// Auth builds per-player authenticators. Nil disables sign in.
	Auth handler.AuthFactory
}

// New creates a Bot with its handlers registered.
func New(deps *Dependencies) (*Bot, error) {
	if deps.Config.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.New()
	}

	teleBot, err := tele.NewBot(tele.Settings{
		Token:  deps.Config.Bot.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c tele.Context) {
			m.BotUpdateError()
			ev := log.Error().Err(err)
			if c != nil && c.Sender() != nil {
				ev = ev.Int64("user_id", c.Sender().ID)
			}
			ev.Msg("Update handling failed")
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := &Bot{
		bot:     teleBot,
		cfg:     deps.Config,
		metrics: m,
		locks:   lock.NewPlayerLock(),
	}
	b.wire(deps)
	b.gameHandler.SetMessenger(teleBot)

	b.registerMiddleware()
	b.registerHandlers()
	return b, nil
}

// wire builds the registry and handlers. The game change callback and the
// session change callback both redraw the player's board.
func (b *Bot) wire(deps *Dependencies) {
	b.players = NewPlayerFactory(deps.Config, deps.Remote, deps.States)
	b.games = game.NewRegistry(b.players.New)
	b.authHandler = handler.NewAuthHandler(deps.Auth, nil)
	b.gameHandler = handler.NewGameHandler(b.games, b.locks, b.metrics, b.authHandler, deps.Config.Leaderboard.TopLimit)
	var counter handler.PlayerCounter
	if pc, ok := deps.States.(handler.PlayerCounter); ok {
		counter = pc
	}
	b.adminHandler = handler.NewAdminHandler(deps.Remote, b.games, b.locks, counter, b.metrics)

	b.players.OnChange = b.gameHandler.Refresh
	b.authHandler.SetChanged(b.gameHandler.Refresh)
}

// registerMiddleware registers all middleware.
func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware(b.metrics))
	b.bot.Use(LoggingMiddleware())
}

// registerHandlers registers all command and callback handlers.
func (b *Bot) registerHandlers() {
	b.bot.Handle("/start", b.gameHandler.HandleStart)
	b.bot.Handle("/account", b.gameHandler.HandleAccount)
	b.bot.Handle("/rank", b.gameHandler.HandleRank)
	b.bot.Handle("/top", b.gameHandler.HandleTop)

	b.bot.Handle("/login", b.authHandler.HandleLogin)
	b.bot.Handle("/register", b.authHandler.HandleRegister)
	b.bot.Handle("/reset_password", b.authHandler.HandleResetPassword)
	b.bot.Handle("/password", b.authHandler.HandleChangePassword)
	b.bot.Handle("/logout", b.authHandler.HandleLogout)
	b.bot.Handle("/google", b.authHandler.HandleGoogle)
	b.bot.Handle("/oauth", b.authHandler.HandleOAuthCode)

	adminGroup := b.bot.Group()
	adminGroup.Use(AdminMiddleware(b.cfg))
	adminGroup.Handle("/admin_stats", b.adminHandler.HandleStats)
	adminGroup.Handle("/admin_unload", b.adminHandler.HandleUnload)
	adminGroup.Handle("/admin_reset", b.adminHandler.HandleResetLeaderboard)

	b.bot.Handle(tele.OnCallback, b.gameHandler.HandleCallback)
	b.bot.Handle(tele.OnText, b.gameHandler.HandleText)
}

// Start starts polling. It blocks until Stop is called.
func (b *Bot) Start() {
	log.Info().Msg("Starting bot...")
	b.bot.Start()
}

// Stop stops polling and closes every loaded game.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.bot.Stop()
	b.games.CloseAll()
}
