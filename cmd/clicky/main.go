// Command clicky runs the clicker leaderboard service and the Telegram
// front end.
package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"clicky-game/internal/config"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	var cfg *config.Config
	app := &cli.App{
		Name:  "clicky",
		Usage: "clicker game leaderboard service and Telegram bot",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Value:   "config",
				Usage:   "directory containing config.yaml",
				EnvVars: []string{"CLICKY_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override log.level from the configuration",
			},
		},
		Before: func(c *cli.Context) error {
			loaded, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}
			if lvl := c.String("log-level"); lvl != "" {
				loaded.Log.Level = lvl
			}
			setupLogging(loaded.Log)
			cfg = loaded
			log.Info().Msg("Configuration loaded successfully")
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the leaderboard HTTP service",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "with-bot", Usage: "also run the Telegram bot in this process"},
				},
				Action: func(c *cli.Context) error { return runServe(c.Context, cfg, c.Bool("with-bot")) },
			},
			{
				Name:   "bot",
				Usage:  "run the Telegram bot",
				Action: func(c *cli.Context) error { return runBot(c.Context, cfg) },
			},
			{
				Name:   "migrate",
				Usage:  "create or update the database schema",
				Action: func(c *cli.Context) error { return runMigrate(c.Context, cfg) },
			},
			{
				Name:   "reset-leaderboard",
				Usage:  "replace the leaderboard with the seed entries",
				Action: func(c *cli.Context) error { return runResetLeaderboard(c.Context, cfg) },
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("clicky failed")
	}
}

// setupLogging applies the configured level and output format to the global
// logger.
func setupLogging(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if !cfg.Pretty {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}
