// Package service provides business logic implementations.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"clicky-game/internal/leaderboard"
	"clicky-game/internal/model"
)

// Leaderboard submission errors.
var (
	ErrInvalidName  = errors.New("invalid name: must be 1-20 characters")
	ErrInvalidScore = errors.New("invalid score: must be a non-negative integer")
)

// LeaderboardStore persists leaderboard rows.
type LeaderboardStore interface {
	List(ctx context.Context, limit int) ([]model.LeaderboardRow, error)
	GetByName(ctx context.Context, name string) (*model.LeaderboardRow, error)
	Upsert(ctx context.Context, name string, score int64) (*model.LeaderboardRow, bool, error)
	ReplaceAll(ctx context.Context, entries []model.LeaderboardEntry) error
}

// LeaderboardService applies the leaderboard rules on top of storage:
// names are unique, scores only ever rise, and a reset reseeds the board.
// It also serves as a leaderboard.Remote for in-process callers.
type LeaderboardService struct {
	store LeaderboardStore
	rng   leaderboard.Rand
}

// NewLeaderboardService creates a new LeaderboardService instance.
func NewLeaderboardService(store LeaderboardStore, rng leaderboard.Rand) *LeaderboardService {
	if rng == nil {
		rng = leaderboard.DefaultRand
	}
	return &LeaderboardService{store: store, rng: rng}
}

// ValidateSubmission checks a submitted name and score and returns the
// trimmed name.
func ValidateSubmission(name string, score int64) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > model.MaxAccountNameLength {
		return "", ErrInvalidName
	}
	if score < 0 {
		return "", ErrInvalidScore
	}
	return name, nil
}

// Rows returns up to limit rows ordered by score; limit <= 0 returns all.
func (s *LeaderboardService) Rows(ctx context.Context, limit int) ([]model.LeaderboardRow, error) {
	return s.store.List(ctx, limit)
}

// Entry returns the row for name. It returns model.ErrEntryNotFound when the
// name has never submitted a score.
func (s *LeaderboardService) Entry(ctx context.Context, name string) (*model.LeaderboardRow, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > model.MaxAccountNameLength {
		return nil, ErrInvalidName
	}
	return s.store.GetByName(ctx, name)
}

// List implements leaderboard.Remote.
func (s *LeaderboardService) List(ctx context.Context) ([]model.LeaderboardEntry, error) {
	rows, err := s.store.List(ctx, 0)
	if err != nil {
		return nil, err
	}
	entries := make([]model.LeaderboardEntry, len(rows))
	for i := range rows {
		entries[i] = rows[i].Entry()
	}
	return entries, nil
}

// SubmitScore records score for name. created reports whether the name is new.
func (s *LeaderboardService) SubmitScore(ctx context.Context, name string, score int64) (row *model.LeaderboardRow, created bool, err error) {
	name, err = ValidateSubmission(name, score)
	if err != nil {
		return nil, false, err
	}

	row, created, err = s.store.Upsert(ctx, name, score)
	if err != nil {
		return nil, false, fmt.Errorf("failed to submit score: %w", err)
	}

	log.Debug().
		Str("name", row.Name).
		Int64("submitted", score).
		Int64("score", row.Score).
		Bool("created", created).
		Msg("Score submitted")
	return row, created, nil
}

// Submit implements leaderboard.Remote.
func (s *LeaderboardService) Submit(ctx context.Context, name string, score int64) error {
	_, _, err := s.SubmitScore(ctx, name, score)
	return err
}

// Reset replaces every entry with the seed entries plus generated fillers.
func (s *LeaderboardService) Reset(ctx context.Context) error {
	seed := leaderboard.Seed(s.rng, leaderboard.ResetFillerCount)
	if err := s.store.ReplaceAll(ctx, seed); err != nil {
		return fmt.Errorf("failed to reset leaderboard: %w", err)
	}
	log.Info().Int("entries", len(seed)).Msg("Leaderboard reset")
	return nil
}

var _ leaderboard.Remote = (*LeaderboardService)(nil)
