// Package models defines the core domain entities for predictle.
//
// Terminology:
//   - RawMarket: an untrusted upstream record in whatever shape the feed sent.
//   - Market: a canonical binary market with exactly two priced outcomes. This
//     is the unit a player guesses on.
//   - Pools: the playable markets split by game mode.
package models

import (
	"errors"
	"math"
	"time"
)

// Outcome is one named side of a binary market.
type Outcome struct {
	Name        string  `json:"name"`
	Probability float64 `json:"probability"` // strictly inside (0, 1)
}

// Valid reports whether the probability is usable. Exactly 0 or 1 is not.
func (o Outcome) Valid() bool {
	return o.Probability > 0 && o.Probability < 1 && !math.IsNaN(o.Probability)
}

// Market is a normalized two-outcome market ready for play.
type Market struct {
	ID        string     `json:"id"`       // upstream id, or a name-based UUID of the dedup key
	Question  string     `json:"question"` // normalized question text
	Outcomes  [2]Outcome `json:"outcomes"`
	CreatedAt time.Time  `json:"created_at,omitempty"`
	Source    string     `json:"source,omitempty"`
}

// Validate checks that all market fields are valid.
func (m *Market) Validate() error {
	if m.ID == "" {
		return errors.New("market ID must not be empty")
	}
	if m.Question == "" {
		return errors.New("market question must not be empty")
	}
	for _, o := range m.Outcomes {
		if !o.Valid() {
			return errors.New("outcome probability must be strictly between 0.0 and 1.0")
		}
	}
	return nil
}

// ActualPercent is the quoted probability of the first outcome as a whole
// percentage, the number a guess is graded against.
func (m *Market) ActualPercent() int {
	return int(math.Round(m.Outcomes[0].Probability * 100))
}

// Mode selects a game variant and the pool it deals from.
type Mode string

const (
	ModeDaily Mode = "daily"
	ModeFree  Mode = "free"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeDaily || m == ModeFree
}

// Pools is an immutable snapshot of the playable markets for every mode.
// A new snapshot replaces the old one wholesale; nothing mutates it in place.
type Pools struct {
	Daily   []Market  `json:"daily"`
	Free    []Market  `json:"free"`
	Date    string    `json:"date"` // calendar date the daily pool was keyed on
	BuiltAt time.Time `json:"built_at"`
}

// For returns the pool dealt to mode.
func (p *Pools) For(mode Mode) []Market {
	if p == nil {
		return nil
	}
	if mode == ModeDaily {
		return p.Daily
	}
	return p.Free
}

// Size returns the number of markets across both pools.
func (p *Pools) Size() int {
	if p == nil {
		return 0
	}
	return len(p.Daily) + len(p.Free)
}
