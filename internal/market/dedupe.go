package market

import "github.com/rewired-gh/predictle/internal/models"

// Dedupe keeps the first market seen for each DedupKey and for each ID,
// preserving the relative order of the survivors.
func Dedupe(markets []models.Market) []models.Market {
	seenKeys := make(map[string]struct{}, len(markets))
	seenIDs := make(map[string]struct{}, len(markets))
	result := make([]models.Market, 0, len(markets))
	for _, m := range markets {
		key := DedupKey(m.Question)
		if _, dup := seenKeys[key]; dup {
			continue
		}
		if _, dup := seenIDs[m.ID]; dup {
			continue
		}
		seenKeys[key] = struct{}{}
		seenIDs[m.ID] = struct{}{}
		result = append(result, m)
	}
	return result
}
