package scoring

import (
	"fmt"
	"strings"

	"github.com/rewired-gh/predictle/internal/models"
)

// Glyphs used in the share grid.
const (
	GlyphGreen    = "🟩"
	GlyphYellow   = "🟨"
	GlyphRed      = "🟥"
	GlyphUnplayed = "⬜"
)

// Glyph returns the grid cell for a zone.
func Glyph(z models.Zone) string {
	switch z {
	case models.ZoneGreen:
		return GlyphGreen
	case models.ZoneYellow:
		return GlyphYellow
	case models.ZoneRed:
		return GlyphRed
	}
	return GlyphUnplayed
}

// ShareSummary composes the shareable text for a session:
//
//	Predictle #291 3.5/5
//	🟩🟨🟥🟩⬜
//
// The grid always has maxRounds cells; rounds beyond it are not shown and
// unplayed rounds are blank.
func ShareSummary(puzzle int, zones []models.Zone, state models.ScoreState, maxRounds int, policy Policy) string {
	if maxRounds <= 0 {
		maxRounds = len(zones)
	}
	var grid strings.Builder
	for i := 0; i < maxRounds; i++ {
		if i < len(zones) {
			grid.WriteString(Glyph(zones[i]))
		} else {
			grid.WriteString(GlyphUnplayed)
		}
	}
	return fmt.Sprintf("Predictle #%d %s\n%s", puzzle, formatScore(state, maxRounds, policy), grid.String())
}

func formatScore(state models.ScoreState, maxRounds int, policy Policy) string {
	if policy != nil && policy.Name() == PolicyContinuous {
		return fmt.Sprintf("%d pts", int(state.Score))
	}
	return fmt.Sprintf("%s/%d", strings.TrimSuffix(fmt.Sprintf("%.1f", state.Score), ".0"), maxRounds)
}
