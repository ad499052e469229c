package game

import (
	"strconv"

	"github.com/rs/zerolog/log"

	"clicky-game/internal/model"
	"clicky-game/internal/storage"
)

// ScoreStore owns the score and mirrors it to storage after every change.
// It is not safe for concurrent use; Game serialises access.
type ScoreStore struct {
	store storage.Store
	score int64
}

// NewScoreStore seeds the score from storage. Missing, unparsable or negative
// values start the score at 0.
func NewScoreStore(store storage.Store) *ScoreStore {
	s := &ScoreStore{store: store}
	raw, ok := store.Get(model.KeyScore)
	if !ok {
		return s
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	switch {
	case err != nil:
		log.Warn().Err(err).Str("value", raw).Msg("Ignoring unparsable stored score")
	case v < 0:
		log.Warn().Int64("value", v).Msg("Ignoring negative stored score")
	default:
		s.score = v
	}
	return s
}

// Score returns the current score.
func (s *ScoreStore) Score() int64 {
	return s.score
}

// Increment adds one point and returns the new score.
func (s *ScoreStore) Increment() int64 {
	s.score++
	s.persist()
	return s.score
}

// Reset sets the score back to 0.
func (s *ScoreStore) Reset() {
	s.score = 0
	s.persist()
}

func (s *ScoreStore) persist() {
	if err := s.store.Set(model.KeyScore, strconv.FormatInt(s.score, 10)); err != nil {
		log.Warn().Err(err).Msg("Failed to persist score")
	}
}
