// Package scoring grades a guess against a market's quoted probability and
// keeps the running score for a game mode.
//
// Grading is a pure function of the guess and the actual percentage. The zone
// thresholds are fixed; the points awarded and how the streak moves depend on
// the Policy selected for the mode. Tracker is the only place a ScoreState is
// mutated.
package scoring

import (
	"github.com/rewired-gh/predictle/internal/models"
)

const (
	// GreenMaxDelta is the largest miss, in percentage points, still graded green.
	GreenMaxDelta = 10
	// YellowMaxDelta is the largest miss still graded yellow.
	YellowMaxDelta = 20
)

// Result is the outcome of grading one guess.
type Result struct {
	Guess  int         `json:"guess"`
	Actual int         `json:"actual"`
	Delta  int         `json:"delta"`
	Zone   models.Zone `json:"zone"`
	Points float64     `json:"points"`
}

// Clamp pins a percentage to [0, 100]. Out-of-range guesses are clamped
// rather than rejected so grading stays total.
func Clamp(percent int) int {
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}

// ZoneFor buckets a delta.
func ZoneFor(delta int) models.Zone {
	switch {
	case delta <= GreenMaxDelta:
		return models.ZoneGreen
	case delta <= YellowMaxDelta:
		return models.ZoneYellow
	default:
		return models.ZoneRed
	}
}

// Grade compares guess with actual under policy. Both inputs are clamped.
func Grade(guess, actual int, policy Policy) Result {
	guess, actual = Clamp(guess), Clamp(actual)
	delta := guess - actual
	if delta < 0 {
		delta = -delta
	}
	r := Result{Guess: guess, Actual: actual, Delta: delta, Zone: ZoneFor(delta)}
	if policy != nil {
		r.Points = policy.Points(r)
	}
	return r
}
