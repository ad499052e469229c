// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"clicky-game/internal/model"
)

// Common errors for repository operations.
var (
	ErrEntryNotFound = model.ErrEntryNotFound
)

// LeaderboardRepository handles leaderboard persistence.
type LeaderboardRepository struct {
	pool *pgxpool.Pool
}

// NewLeaderboardRepository creates a new LeaderboardRepository instance.
func NewLeaderboardRepository(pool *pgxpool.Pool) *LeaderboardRepository {
	return &LeaderboardRepository{pool: pool}
}

// List returns entries by score descending, oldest first among ties.
// A limit of 0 or less returns every entry.
func (r *LeaderboardRepository) List(ctx context.Context, limit int) ([]model.LeaderboardRow, error) {
	query := `
		SELECT id, name, score, created_at, updated_at
		FROM leaderboard
		ORDER BY score DESC, created_at ASC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list leaderboard: %w", err)
	}
	defer rows.Close()

	entries := []model.LeaderboardRow{}
	for rows.Next() {
		var row model.LeaderboardRow
		if err := rows.Scan(&row.ID, &row.Name, &row.Score, &row.CreatedAt, &row.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		entries = append(entries, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate leaderboard: %w", err)
	}

	return entries, nil
}

// GetByName returns the entry for name.
// Returns ErrEntryNotFound if there is none.
func (r *LeaderboardRepository) GetByName(ctx context.Context, name string) (*model.LeaderboardRow, error) {
	const query = `
		SELECT id, name, score, created_at, updated_at
		FROM leaderboard
		WHERE name = $1
	`

	var row model.LeaderboardRow
	err := r.pool.QueryRow(ctx, query, name).Scan(&row.ID, &row.Name, &row.Score, &row.CreatedAt, &row.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("failed to get leaderboard entry: %w", err)
	}

	return &row, nil
}

// Upsert inserts name with score or raises the existing score. A lower score
// leaves the entry unchanged. inserted reports whether a new row was created.
func (r *LeaderboardRepository) Upsert(ctx context.Context, name string, score int64) (row *model.LeaderboardRow, inserted bool, err error) {
	const query = `
		INSERT INTO leaderboard (id, name, score, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (name) DO UPDATE SET
			score = GREATEST(leaderboard.score, EXCLUDED.score),
			updated_at = CASE
				WHEN EXCLUDED.score > leaderboard.score THEN NOW()
				ELSE leaderboard.updated_at
			END
		RETURNING id, name, score, created_at, updated_at, (xmax = 0) AS inserted
	`

	var out model.LeaderboardRow
	err = r.pool.QueryRow(ctx, query, uuid.New(), name, score).Scan(
		&out.ID,
		&out.Name,
		&out.Score,
		&out.CreatedAt,
		&out.UpdatedAt,
		&inserted,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert leaderboard entry: %w", err)
	}

	return &out, inserted, nil
}

// ReplaceAll deletes every entry and inserts entries in one transaction.
// Creation times follow slice order so ties keep that order.
func (r *LeaderboardRepository) ReplaceAll(ctx context.Context, entries []model.LeaderboardEntry) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM leaderboard`); err != nil {
			return fmt.Errorf("failed to clear leaderboard: %w", err)
		}

		now := time.Now().UTC()
		rows := make([][]any, len(entries))
		for i, e := range entries {
			created := now.Add(time.Duration(i) * time.Microsecond)
			rows[i] = []any{uuid.New(), e.Name, e.Score, created, created}
		}

		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"leaderboard"},
			[]string{"id", "name", "score", "created_at", "updated_at"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("failed to insert leaderboard seed: %w", err)
		}
		return nil
	})
}
