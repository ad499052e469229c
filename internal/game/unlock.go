package game

import "clicky-game/internal/model"

// Feature identifies a score-gated feature.
type Feature string

// Features in unlock order.
const (
	FeatureSimpleButton Feature = "simpleButton"
	FeatureLeaderboard  Feature = "leaderboard"
	FeatureFireIceTheme Feature = "fireIceTheme"
)

// Unlock thresholds.
const (
	SimpleButtonThreshold = 10
	LeaderboardThreshold  = 25
	FireIceThreshold      = 50
)

// Evaluate returns the flags for score and the features that turned on in
// this call. Flags that are already set stay set regardless of score.
func Evaluate(score int64, current model.UnlockedFeatures) (model.UnlockedFeatures, []Feature) {
	next := current
	var unlocked []Feature

	if score >= SimpleButtonThreshold && !next.SimpleButton {
		next.SimpleButton = true
		unlocked = append(unlocked, FeatureSimpleButton)
	}
	if score >= LeaderboardThreshold && !next.Leaderboard {
		next.Leaderboard = true
		unlocked = append(unlocked, FeatureLeaderboard)
	}
	if score >= FireIceThreshold && !next.FireIceTheme {
		next.FireIceTheme = true
		unlocked = append(unlocked, FeatureFireIceTheme)
	}

	return next, unlocked
}

// UnlockMessage is the notification text shown when f unlocks.
func UnlockMessage(f Feature) string {
	switch f {
	case FeatureSimpleButton:
		return "🎉 Unlocked: Gradient Button Theme!"
	case FeatureLeaderboard:
		return "🎉 Unlocked: Leaderboard Feature!"
	case FeatureFireIceTheme:
		return "🎉 Unlocked: Choose your theme - Fire or Ice!"
	default:
		return "🎉 Unlocked: " + string(f)
	}
}
