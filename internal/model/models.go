// Package model defines the data models shared by the clicker game, the
// leaderboard service and the Telegram front end.
package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrEntryNotFound is returned when a leaderboard name has no entry.
var ErrEntryNotFound = errors.New("leaderboard entry not found")

// LeaderboardEntry is a single (name, score) pair as the game sees it.
// Name is the case-sensitive identity key of the entry.
type LeaderboardEntry struct {
	Name  string `json:"name"`
	Score int64  `json:"score"`
}

// LeaderboardRow is a persisted leaderboard entry.
type LeaderboardRow struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Score     int64     `db:"score" json:"score"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Entry converts a row into the game-facing entry.
func (r *LeaderboardRow) Entry() LeaderboardEntry {
	return LeaderboardEntry{Name: r.Name, Score: r.Score}
}

// ButtonTheme is the visual theme of the click button.
type ButtonTheme string

// Button themes.
const (
	ThemeDefault ButtonTheme = "default"
	ThemeSimple  ButtonTheme = "simple"
	ThemeFire    ButtonTheme = "fire"
	ThemeIce     ButtonTheme = "ice"
)

// ParseButtonTheme returns the theme named by s, or false if s is not a known theme.
func ParseButtonTheme(s string) (ButtonTheme, bool) {
	switch ButtonTheme(s) {
	case ThemeDefault, ThemeSimple, ThemeFire, ThemeIce:
		return ButtonTheme(s), true
	}
	return "", false
}

// IsFireIce reports whether the theme is one of the split-choice themes.
func (t ButtonTheme) IsFireIce() bool {
	return t == ThemeFire || t == ThemeIce
}

// UnlockedFeatures records which score-gated features the player has reached.
// Flags only ever go from false to true; a game reset clears all of them.
type UnlockedFeatures struct {
	SimpleButton bool `json:"simpleButton"`
	Leaderboard  bool `json:"leaderboard"`
	FireIceTheme bool `json:"fireIceTheme"`
}

// Storage keys mirrored to durable local storage.
const (
	KeyScore                   = "score"
	KeyLeaderboardData         = "leaderboardData"
	KeyCurrentUser             = "currentUser"
	KeyButtonTheme             = "buttonTheme"
	KeySplitButtonEnabled      = "splitButtonEnabled"
	KeyUnlockedFeatures        = "unlockedFeatures"
	KeyHasSelectedFireIceTheme = "hasSelectedFireIceTheme"
)

// MaxAccountNameLength is the longest display name accepted for the leaderboard.
const MaxAccountNameLength = 20
