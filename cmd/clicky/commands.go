package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"clicky-game/internal/api"
	"clicky-game/internal/auth"
	"clicky-game/internal/bot"
	"clicky-game/internal/config"
	"clicky-game/internal/handler"
	"clicky-game/internal/leaderboard"
	"clicky-game/internal/metrics"
	"clicky-game/internal/pkg/db"
	"clicky-game/internal/repository"
	"clicky-game/internal/service"
	"clicky-game/internal/storage"
)

func openDatabase(ctx context.Context, cfg *config.Config) (*db.Pool, error) {
	pool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := repository.Migrate(ctx, pool.Pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}
	return pool, nil
}

func runMigrate(ctx context.Context, cfg *config.Config) error {
	pool, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	pool.Close()
	return nil
}

func runServe(parent context.Context, cfg *config.Config, withBot bool) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	m := metrics.New()
	svc := service.NewLeaderboardService(repository.NewLeaderboardRepository(pool.Pool), nil)
	router := api.NewRouter(cfg.Server, cfg.Leaderboard.ResetToken, api.NewHandler(svc, pool, m), m)

	if withBot {
		b, err := bot.New(&bot.Dependencies{
			Config:  cfg,
			Metrics: m,
			Remote:  svc,
			States:  playerStates(cfg, pool),
			Auth:    authFactory(cfg.Auth),
		})
		if err != nil {
			return fmt.Errorf("failed to create bot: %w", err)
		}
		go b.Start()
		defer b.Stop()
	}

	return api.NewServer(cfg.Server, router).Run(ctx)
}

func runBot(parent context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps := &bot.Dependencies{
		Config:  cfg,
		Metrics: metrics.New(),
		Auth:    authFactory(cfg.Auth),
	}

	needDB := cfg.Leaderboard.RemoteURL == "" || cfg.Bot.StateDir == ""
	if needDB {
		pool, err := openDatabase(ctx, cfg)
		if err != nil {
			return err
		}
		defer pool.Close()
		deps.States = playerStates(cfg, pool)
		if cfg.Leaderboard.RemoteURL == "" {
			deps.Remote = service.NewLeaderboardService(repository.NewLeaderboardRepository(pool.Pool), nil)
		}
	}
	if cfg.Leaderboard.RemoteURL != "" {
		deps.Remote = remoteClient(cfg.Leaderboard)
	}

	b, err := bot.New(deps)
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}
	go b.Start()

	<-ctx.Done()
	log.Info().Msg("Received shutdown signal")
	b.Stop()
	log.Info().Msg("Bot stopped gracefully")
	return nil
}

func runResetLeaderboard(ctx context.Context, cfg *config.Config) error {
	var remote leaderboard.Remote
	if cfg.Leaderboard.RemoteURL != "" {
		remote = remoteClient(cfg.Leaderboard)
	} else {
		pool, err := openDatabase(ctx, cfg)
		if err != nil {
			return err
		}
		defer pool.Close()
		remote = service.NewLeaderboardService(repository.NewLeaderboardRepository(pool.Pool), nil)
	}

	if err := remote.Reset(ctx); err != nil {
		if leaderboard.IsStatus(err, http.StatusUnauthorized) {
			return errors.New("leaderboard reset rejected: check leaderboard.reset_token")
		}
		return fmt.Errorf("failed to reset leaderboard: %w", err)
	}
	log.Info().Msg("Leaderboard reset successfully")
	return nil
}

func remoteClient(cfg config.LeaderboardConfig) *leaderboard.Client {
	return leaderboard.NewClient(cfg.RemoteURL, cfg.RequestTimeout, leaderboard.WithResetToken(cfg.ResetToken))
}

// playerStates returns the database state repository unless player state is
// kept in files.
func playerStates(cfg *config.Config, pool *db.Pool) storage.StateRepository {
	if cfg.Bot.StateDir != "" {
		return nil
	}
	return repository.NewPlayerStateRepository(pool.Pool)
}

// authFactory returns nil when no identity server is configured, which
// disables sign in.
func authFactory(cfg config.AuthConfig) handler.AuthFactory {
	if cfg.URL == "" {
		return nil
	}
	backend := auth.NewGoTrue(auth.GoTrueConfig{
		URL:      cfg.URL,
		AnonKey:  cfg.AnonKey,
		SiteURL:  cfg.SiteURL,
		ClientID: cfg.GoogleClientID,
		Timeout:  cfg.RequestTimeout,
	})
	var verifier *auth.TokenVerifier
	if cfg.JWTSecret != "" {
		verifier = auth.NewTokenVerifier(cfg.JWTSecret)
	}
	return func() *auth.Authenticator {
		return auth.NewAuthenticator(backend, verifier, cfg.MinPasswordLength)
	}
}
