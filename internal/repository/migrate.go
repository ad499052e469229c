package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// migrations are applied in order; every statement is idempotent.
var migrations = []struct {
	name string
	sql  string
}{
	{
		name: "leaderboard table",
		sql: `
			CREATE TABLE IF NOT EXISTS leaderboard (
				id UUID PRIMARY KEY,
				name VARCHAR(20) NOT NULL UNIQUE,
				score BIGINT NOT NULL CHECK (score >= 0),
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_leaderboard_score ON leaderboard(score DESC, created_at ASC);
		`,
	},
	{
		name: "player_state table",
		sql: `
			CREATE TABLE IF NOT EXISTS player_state (
				player_id BIGINT NOT NULL,
				key VARCHAR(64) NOT NULL,
				value TEXT NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				PRIMARY KEY (player_id, key)
			);
		`,
	},
}

// Migrate creates the database schema.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	log.Info().Msg("Running database migrations...")

	for i, m := range migrations {
		if _, err := pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("failed to apply migration %d (%s): %w", i+1, m.name, err)
		}
		log.Info().Int("migration", i+1).Str("name", m.name).Msg("Migration applied")
	}

	log.Info().Msg("All migrations completed successfully")
	return nil
}
