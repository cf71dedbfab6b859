package market

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/rewired-gh/predictle/internal/models"
)

// Shuffler permutes markets in place.
type Shuffler interface {
	Shuffle(markets []models.Market)
}

// RandomShuffler is an unbiased Fisher-Yates shuffle for free play.
type RandomShuffler struct{}

// Shuffle implements Shuffler.
func (RandomShuffler) Shuffle(markets []models.Market) {
	rand.Shuffle(len(markets), func(i, j int) {
		markets[i], markets[j] = markets[j], markets[i]
	})
}

// DailyShuffler produces the same permutation for every caller holding the
// same market set on the same Date (YYYY-MM-DD), whatever order the feed
// returned the markets in.
type DailyShuffler struct {
	Date string
}

// Shuffle implements Shuffler.
func (d DailyShuffler) Shuffle(markets []models.Market) {
	sort.SliceStable(markets, func(i, j int) bool {
		if markets[i].ID != markets[j].ID {
			return markets[i].ID < markets[j].ID
		}
		return markets[i].Question < markets[j].Question
	})
	sum := sha256.Sum256([]byte("predictle:" + d.Date))
	rng := rand.New(rand.NewPCG(binary.BigEndian.Uint64(sum[:8]), binary.BigEndian.Uint64(sum[8:16])))
	rng.Shuffle(len(markets), func(i, j int) {
		markets[i], markets[j] = markets[j], markets[i]
	})
}

// Partition shuffles a copy of markets and splits it at floor(n*ratio).
// The two pools are disjoint and together hold every input market once.
// ratio is clamped to [0, 1].
func Partition(markets []models.Market, ratio float64, shuffler Shuffler) (poolA, poolB []models.Market) {
	if math.IsNaN(ratio) || ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	shuffled := make([]models.Market, len(markets))
	copy(shuffled, markets)
	if shuffler != nil {
		shuffler.Shuffle(shuffled)
	}
	cut := int(math.Floor(float64(len(shuffled)) * ratio))
	return shuffled[:cut:cut], shuffled[cut:]
}
