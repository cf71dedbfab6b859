package models

import (
	"time"

	"github.com/google/uuid"
)

// GuessRound is one dealt market awaiting a guess. It holds its own copy of
// the market, so swapping pools never changes a round already dealt.
type GuessRound struct {
	ID      uuid.UUID `json:"id"`
	Number  int       `json:"number"` // 1-based within the session
	Mode    Mode      `json:"mode"`
	Market  Market    `json:"market"`
	DealtAt time.Time `json:"dealt_at"`
}
