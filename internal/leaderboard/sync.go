package leaderboard

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"clicky-game/internal/model"
	"clicky-game/internal/storage"
)

// SyncStatus tells whether the local leaderboard matches the remote store.
type SyncStatus int

const (
	// StatusSynced means the collection is the last authoritative read.
	StatusSynced SyncStatus = iota
	// StatusDegraded means the last remote call failed and a local-only
	// fallback was applied.
	StatusDegraded
	// StatusLocalOnly means no remote store is configured.
	StatusLocalOnly
	// StatusPending means a remote store is configured but has not been
	// contacted yet; the collection is the cached copy.
	StatusPending
)

func (s SyncStatus) String() string {
	switch s {
	case StatusSynced:
		return "synced"
	case StatusDegraded:
		return "degraded"
	case StatusLocalOnly:
		return "local"
	case StatusPending:
		return "pending"
	default:
		return "unknown"
	}
}

// Synchronizer holds the ordered leaderboard collection for one player and
// mirrors it to durable storage under model.KeyLeaderboardData.
//
// Mutations are two-phase: the remote store is changed first and re-read on
// success; on failure the same change is applied locally and the status turns
// degraded. No method returns an error.
type Synchronizer struct {
	remote Remote
	store  storage.Store
	rng    Rand

	mu      sync.Mutex
	entries []model.LeaderboardEntry
	status  SyncStatus
}

// NewSynchronizer loads the cached collection from store. A missing cache is
// replaced by the fallback seed; a corrupt one is logged and replaced too.
// A nil remote keeps the synchronizer local-only.
func NewSynchronizer(remote Remote, store storage.Store, rng Rand) *Synchronizer {
	if rng == nil {
		rng = DefaultRand
	}
	s := &Synchronizer{
		remote: remote,
		store:  store,
		rng:    rng,
		status: StatusLocalOnly,
	}
	if remote != nil {
		s.status = StatusPending
	}
	s.load()
	return s
}

func (s *Synchronizer) load() {
	raw, ok := s.store.Get(model.KeyLeaderboardData)
	if ok {
		var cached []model.LeaderboardEntry
		err := json.Unmarshal([]byte(raw), &cached)
		if err == nil {
			SortEntries(cached)
			s.entries = cached
			return
		}
		log.Warn().Err(err).Msg("Failed to parse cached leaderboard, using seed data")
	}
	s.entries = Seed(s.rng, FallbackFillerCount)
	s.persistLocked()
}

// FetchAll refreshes the collection from the remote store and returns it.
// When the remote cannot be read the cached collection is returned.
func (s *Synchronizer) FetchAll(ctx context.Context) []model.LeaderboardEntry {
	if s.remote == nil {
		return s.Entries()
	}

	entries, err := s.remote.List(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Leaderboard fetch failed, serving cached copy")
		s.mu.Lock()
		s.status = StatusDegraded
		s.mu.Unlock()
		return s.Entries()
	}

	s.replace(entries, StatusSynced)
	return s.Entries()
}

// Upsert records score for name. Existing entries are only ever raised,
// never lowered, matching the leaderboard service.
func (s *Synchronizer) Upsert(ctx context.Context, name string, score int64) SyncStatus {
	name = strings.TrimSpace(name)
	if name == "" {
		return s.Status()
	}

	if s.remote != nil {
		err := s.remote.Submit(ctx, name, score)
		if err == nil {
			entries, listErr := s.remote.List(ctx)
			if listErr == nil {
				s.replace(entries, StatusSynced)
				return StatusSynced
			}
			err = listErr
		}
		log.Warn().Err(err).Str("name", name).Int64("score", score).Msg("Leaderboard submit failed, applying locally")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	applyUpsert(&s.entries, name, score)
	s.status = s.fallbackStatus()
	s.persistLocked()
	return s.status
}

// ResetAll replaces the collection with a fresh seed, remotely when possible.
func (s *Synchronizer) ResetAll(ctx context.Context) SyncStatus {
	if s.remote != nil {
		err := s.remote.Reset(ctx)
		if err == nil {
			entries, listErr := s.remote.List(ctx)
			if listErr == nil {
				s.replace(entries, StatusSynced)
				return StatusSynced
			}
			err = listErr
		}
		log.Warn().Err(err).Msg("Leaderboard reset failed, resetting local copy")
	}

	seed := Seed(s.rng, ResetFillerCount)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = seed
	s.status = s.fallbackStatus()
	s.persistLocked()
	return s.status
}

// Entries returns a copy of the current collection, ordered by score descending.
func (s *Synchronizer) Entries() []model.LeaderboardEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.LeaderboardEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Rank returns the 1-based position of name in the collection.
func (s *Synchronizer) Rank(name string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := IndexOf(s.entries, name)
	if idx < 0 {
		return 0, false
	}
	return idx + 1, true
}

// Status returns the outcome of the most recent remote interaction.
func (s *Synchronizer) Status() SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Synchronizer) replace(entries []model.LeaderboardEntry, status SyncStatus) {
	sorted := make([]model.LeaderboardEntry, len(entries))
	copy(sorted, entries)
	SortEntries(sorted)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = sorted
	s.status = status
	s.persistLocked()
}

func (s *Synchronizer) fallbackStatus() SyncStatus {
	if s.remote == nil {
		return StatusLocalOnly
	}
	return StatusDegraded
}

// persistLocked mirrors the collection to storage. Caller holds s.mu.
func (s *Synchronizer) persistLocked() {
	data, err := json.Marshal(s.entries)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode leaderboard")
		return
	}
	if err := s.store.Set(model.KeyLeaderboardData, string(data)); err != nil {
		log.Warn().Err(err).Msg("Failed to persist leaderboard")
	}
}

// applyUpsert raises or inserts name in entries and re-sorts them.
func applyUpsert(entries *[]model.LeaderboardEntry, name string, score int64) {
	list := *entries
	if idx := IndexOf(list, name); idx >= 0 {
		if score > list[idx].Score {
			list[idx].Score = score
		}
	} else {
		list = append(list, model.LeaderboardEntry{Name: name, Score: score})
	}
	SortEntries(list)
	*entries = list
}
