package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PlayerStateRepository stores each Telegram player's game state as
// key/value pairs.
type PlayerStateRepository struct {
	pool *pgxpool.Pool
}

// NewPlayerStateRepository creates a new PlayerStateRepository instance.
func NewPlayerStateRepository(pool *pgxpool.Pool) *PlayerStateRepository {
	return &PlayerStateRepository{pool: pool}
}

// Load returns every key stored for the player.
func (r *PlayerStateRepository) Load(ctx context.Context, playerID int64) (map[string]string, error) {
	const query = `SELECT key, value FROM player_state WHERE player_id = $1`

	rows, err := r.pool.Query(ctx, query, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load player state: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan player state: %w", err)
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate player state: %w", err)
	}
	return values, nil
}

// Put stores value under key for the player.
func (r *PlayerStateRepository) Put(ctx context.Context, playerID int64, key, value string) error {
	const query = `
		INSERT INTO player_state (player_id, key, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (player_id, key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`
	if _, err := r.pool.Exec(ctx, query, playerID, key, value); err != nil {
		return fmt.Errorf("failed to store player state: %w", err)
	}
	return nil
}

// Delete removes key for the player.
func (r *PlayerStateRepository) Delete(ctx context.Context, playerID int64, key string) error {
	const query = `DELETE FROM player_state WHERE player_id = $1 AND key = $2`
	if _, err := r.pool.Exec(ctx, query, playerID, key); err != nil {
		return fmt.Errorf("failed to delete player state: %w", err)
	}
	return nil
}

// Players returns the number of players with stored state.
func (r *PlayerStateRepository) Players(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(DISTINCT player_id) FROM player_state`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count players: %w", err)
	}
	return n, nil
}
