package scoring

import (
	"fmt"

	"github.com/rewired-gh/predictle/internal/models"
)

// Policy decides what a graded round is worth and how it moves the state.
type Policy interface {
	// Name identifies the policy in config and logs.
	Name() string
	// Points awarded for a graded round.
	Points(r Result) float64
	// Apply folds a graded round into state and returns the new state.
	Apply(state models.ScoreState, r Result) models.ScoreState
}

// Policy names accepted by PolicyByName.
const (
	PolicyDiscrete   = "discrete"
	PolicyContinuous = "continuous"
)

// Discrete awards 1 for green, 0.5 for yellow and nothing for red. The streak
// counts consecutive green or yellow rounds.
type Discrete struct{}

// Name returns "discrete".
func (Discrete) Name() string { return PolicyDiscrete }

// Points returns the zone award for r.
func (Discrete) Points(r Result) float64 {
	switch r.Zone {
	case models.ZoneGreen:
		return 1.0
	case models.ZoneYellow:
		return 0.5
	default:
		return 0
	}
}

// Apply adds r to state and extends or breaks the streak.
func (d Discrete) Apply(state models.ScoreState, r Result) models.ScoreState {
	state.Score += d.Points(r)
	state.Rounds++
	if r.Zone == models.ZoneRed {
		state.Streak = 0
	} else {
		state.Streak++
	}
	return state
}

// Continuous awards 100 minus the miss, floored at zero, every round. The
// streak never resets and equals the number of rounds played.
type Continuous struct{}

// Name returns "continuous".
func (Continuous) Name() string { return PolicyContinuous }

// Points returns 100 minus the miss, never below zero.
func (Continuous) Points(r Result) float64 {
	if p := 100 - r.Delta; p > 0 {
		return float64(p)
	}
	return 0
}

// Apply adds r to state. The streak tracks the rounds played.
func (c Continuous) Apply(state models.ScoreState, r Result) models.ScoreState {
	state.Score += c.Points(r)
	state.Rounds++
	state.Streak = state.Rounds
	return state
}

// PolicyByName returns the policy registered under name.
func PolicyByName(name string) (Policy, error) {
	switch name {
	case PolicyDiscrete:
		return Discrete{}, nil
	case PolicyContinuous:
		return Continuous{}, nil
	}
	return nil, fmt.Errorf("unknown scoring policy %q", name)
}
