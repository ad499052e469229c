package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"clicky-game/internal/model"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name     string
		score    int64
		current  model.UnlockedFeatures
		want     model.UnlockedFeatures
		unlocked []Feature
	}{
		{"nothing at 0", 0, model.UnlockedFeatures{}, model.UnlockedFeatures{}, nil},
		{"nothing at 9", 9, model.UnlockedFeatures{}, model.UnlockedFeatures{}, nil},
		{"simple at 10", 10, model.UnlockedFeatures{}, model.UnlockedFeatures{SimpleButton: true}, []Feature{FeatureSimpleButton}},
		{"leaderboard at 25", 25, model.UnlockedFeatures{SimpleButton: true},
			model.UnlockedFeatures{SimpleButton: true, Leaderboard: true}, []Feature{FeatureLeaderboard}},
		{"all from stored 60", 60, model.UnlockedFeatures{},
			model.UnlockedFeatures{SimpleButton: true, Leaderboard: true, FireIceTheme: true},
			[]Feature{FeatureSimpleButton, FeatureLeaderboard, FeatureFireIceTheme}},
		{"already set is no-op", 50, model.UnlockedFeatures{SimpleButton: true, Leaderboard: true, FireIceTheme: true},
			model.UnlockedFeatures{SimpleButton: true, Leaderboard: true, FireIceTheme: true}, nil},
		{"flags never unset", 3, model.UnlockedFeatures{Leaderboard: true},
			model.UnlockedFeatures{Leaderboard: true}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, unlocked := Evaluate(tt.score, tt.current)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.unlocked, unlocked)
		})
	}
}

func TestEvaluateThresholdProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		score := rapid.Int64Range(0, 1_000_000).Draw(t, "score")

		got, _ := Evaluate(score, model.UnlockedFeatures{})
		if got.SimpleButton != (score >= SimpleButtonThreshold) {
			t.Fatalf("simpleButton=%v at score %d", got.SimpleButton, score)
		}
		if got.Leaderboard != (score >= LeaderboardThreshold) {
			t.Fatalf("leaderboard=%v at score %d", got.Leaderboard, score)
		}
		if got.FireIceTheme != (score >= FireIceThreshold) {
			t.Fatalf("fireIceTheme=%v at score %d", got.FireIceTheme, score)
		}
	})
}

func TestEvaluateMonotonicProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		current := model.UnlockedFeatures{
			SimpleButton: rapid.Bool().Draw(t, "simple"),
			Leaderboard:  rapid.Bool().Draw(t, "leaderboard"),
			FireIceTheme: rapid.Bool().Draw(t, "fireIce"),
		}
		score := rapid.Int64Range(0, 200).Draw(t, "score")

		got, unlocked := Evaluate(score, current)
		if current.SimpleButton && !got.SimpleButton ||
			current.Leaderboard && !got.Leaderboard ||
			current.FireIceTheme && !got.FireIceTheme {
			t.Fatalf("flag turned off: %+v -> %+v", current, got)
		}

		again, none := Evaluate(score, got)
		if again != got || len(none) != 0 {
			t.Fatalf("re-evaluation not idempotent: %+v -> %+v (%v)", got, again, none)
		}
		for _, f := range unlocked {
			if UnlockMessage(f) == "" {
				t.Fatalf("empty message for %s", f)
			}
		}
	})
}
