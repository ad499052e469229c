// Package leaderboard keeps the player's view of the shared leaderboard in
// sync with the leaderboard service, falling back to a local copy when the
// service cannot be reached.
package leaderboard

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"clicky-game/internal/model"
)

// Seed sizes and filler score range.
const (
	FallbackFillerCount = 50
	ResetFillerCount    = 20
	MinFillerScore      = 10000
	MaxFillerScore      = 200000 // exclusive
)

// SeedEntries are the named high scores every seeded leaderboard starts with.
var SeedEntries = []model.LeaderboardEntry{
	{Name: "ClickyGuy123", Score: 122304},
	{Name: "CallenTheClicker", Score: 102568},
	{Name: "NobodyClicksLikeMe", Score: 80120},
}

// fillerNames is cycled through when generating filler entries.
var fillerNames = []string{
	"ClickMaster", "ButtonSmasher", "PointCollector", "ScoreHunter", "ClickWizard",
	"TapChampion", "ClickNinja", "PointGatherer", "ScoreSeeker", "TapMaster",
	"ClickerPro", "PointWizard", "ScoreLord", "TapKing", "ClickerQueen",
	"PointNinja", "ScoreChaser", "TapWarrior", "ClickerGuru", "PointHunter",
	"ScoreWizard", "TapNinja", "ClickerKing", "PointMaster", "ScoreHoarder",
}

// Rand is the subset of *rand.Rand used for filler scores.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// DefaultRand draws from the process-wide generator and is safe for concurrent use.
var DefaultRand Rand = globalRand{}

// FillerName returns the i-th generated filler name. Names cycle through the
// pool and get a _k suffix on the k-th pass so they stay unique.
func FillerName(i int) string {
	base := fillerNames[i%len(fillerNames)]
	if pass := i / len(fillerNames); pass > 0 {
		return fmt.Sprintf("%s_%d", base, pass)
	}
	return base
}

// GenerateFillers returns n filler entries with scores in [MinFillerScore, MaxFillerScore).
func GenerateFillers(rng Rand, n int) []model.LeaderboardEntry {
	if rng == nil {
		rng = DefaultRand
	}
	out := make([]model.LeaderboardEntry, n)
	for i := range out {
		out[i] = model.LeaderboardEntry{
			Name:  FillerName(i),
			Score: int64(MinFillerScore + rng.IntN(MaxFillerScore-MinFillerScore)),
		}
	}
	return out
}

// Seed returns the seed entries followed by n fillers, sorted by score descending.
func Seed(rng Rand, fillers int) []model.LeaderboardEntry {
	entries := make([]model.LeaderboardEntry, 0, len(SeedEntries)+fillers)
	entries = append(entries, SeedEntries...)
	entries = append(entries, GenerateFillers(rng, fillers)...)
	SortEntries(entries)
	return entries
}

// SortEntries orders entries by score descending. Equal scores keep their
// relative order.
func SortEntries(entries []model.LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
}

// IndexOf returns the position of name in entries, or -1.
func IndexOf(entries []model.LeaderboardEntry, name string) int {
	for i, e := range entries {
		if e.Name == name {
			return i
		}
	}
	return -1
}
