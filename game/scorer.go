// File: game/scorer.go
package game

import "math"

// Streak multiplier thresholds: 3 correct in a row earns 1.5x, 5 earns 2x.
const (
	streakMidThreshold  = 3
	streakHighThreshold = 5
	streakMidMultiplier = 1.5
	streakTopMultiplier = 2.0

	maxBasePoints = 1000
)

// ScoreResult is the outcome of scoring a single submitted answer.
type ScoreResult struct {
	Points     int
	NewStreak  int
	Multiplier float64 // the player multiplier that was applied
}

// Score computes the points for one answer. Pure: same inputs, same output.
// latencyFrac is elapsed/limit and is clamped to [0,1] here; playerMul is the
// participant's active multiplier for this question (1.0 unless DoublePoints).
func Score(correct bool, latencyFrac float64, oldStreak int, playerMul float64, isBonus bool) ScoreResult {
	if !correct {
		return ScoreResult{Points: 0, NewStreak: 0, Multiplier: playerMul}
	}
	if latencyFrac < 0 {
		latencyFrac = 0
	}
	if latencyFrac > 1 {
		latencyFrac = 1
	}

	newStreak := oldStreak + 1
	base := math.Round(maxBasePoints * (1 - 0.5*latencyFrac))

	streakMul := 1.0
	switch {
	case newStreak >= streakHighThreshold:
		streakMul = streakTopMultiplier
	case newStreak >= streakMidThreshold:
		streakMul = streakMidMultiplier
	}

	bonusMul := 1.0
	if isBonus {
		bonusMul = 2.0
	}

	points := int(math.Round(base * playerMul * streakMul * bonusMul))
	return ScoreResult{Points: points, NewStreak: newStreak, Multiplier: playerMul}
}
