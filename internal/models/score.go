package models

import (
	"errors"
	"time"
)

// Zone buckets how close a guess landed to the market.
type Zone string

const (
	ZoneGreen  Zone = "green"
	ZoneYellow Zone = "yellow"
	ZoneRed    Zone = "red"
)

// ScoreState is a player's running total for one mode.
type ScoreState struct {
	Score  float64 `json:"score"`
	Streak int     `json:"streak"`
	Rounds int     `json:"rounds"`
	Played string  `json:"played,omitempty"` // YYYY-MM-DD of the last daily puzzle counted
}

// Validate checks that the state could have been produced by grading.
func (s *ScoreState) Validate() error {
	if s.Score < 0 {
		return errors.New("score must not be negative")
	}
	if s.Streak < 0 {
		return errors.New("streak must not be negative")
	}
	if s.Rounds < 0 {
		return errors.New("rounds must not be negative")
	}
	if s.Played != "" {
		if _, err := time.Parse(time.DateOnly, s.Played); err != nil {
			return errors.New("played must be a YYYY-MM-DD date")
		}
	}
	return nil
}
