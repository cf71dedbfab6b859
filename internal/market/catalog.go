package market

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rewired-gh/predictle/internal/models"
)

// marketNamespace scopes the name-based IDs minted for markets that arrive
// without an upstream id.
var marketNamespace = uuid.MustParse("6f1c1f7e-4d53-4b7a-9a3e-0d2f5c8b9e41")

var (
	idKeys       = []string{"id", "condition_id", "conditionId", "ticker", "market_slug"}
	questionKeys = []string{"question", "title", "condition_title"}
)

// Stats describes one catalog build.
type Stats struct {
	Raw      int
	Eligible int
	Unique   int
	Rejected map[string]int // reason -> count
}

// Catalog runs the full raw-to-pools pipeline. The first daily pool built on
// a date is pinned for the rest of that date.
type Catalog struct {
	filter   *Filter
	ratio    float64
	location *time.Location
	now      func() time.Time
	freeShuf Shuffler

	mu          sync.Mutex
	pinnedDate  string
	pinnedDaily []models.Market
}

// NewCatalog creates a Catalog. ratio is the share of markets dealt to the
// daily pool; location decides which calendar date keys the daily shuffle.
func NewCatalog(filter *Filter, ratio float64, location *time.Location, now func() time.Time) *Catalog {
	if location == nil {
		location = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Catalog{
		filter:   filter,
		ratio:    ratio,
		location: location,
		now:      now,
		freeShuf: RandomShuffler{},
	}
}

// Canonicalize converts eligible raw records into markets, in input order.
// Ineligible and malformed records are counted in stats and dropped.
func (c *Catalog) Canonicalize(raws []models.RawMarket, source string) ([]models.Market, Stats) {
	stats := Stats{Raw: len(raws), Rejected: make(map[string]int)}
	markets := make([]models.Market, 0, len(raws))
	for _, raw := range raws {
		question := NormalizeQuestion(rawQuestion(raw))
		outcomes := ExtractOutcomes(raw)
		if reason := c.filter.Reason(raw, question, outcomes); reason != "" {
			stats.Rejected[reason]++
			continue
		}
		m := models.Market{
			ID:       rawID(raw, question),
			Question: question,
			Outcomes: [2]models.Outcome{outcomes[0], outcomes[1]},
			Source:   source,
		}
		if created, ok := raw.Time(createdAtKeys...); ok {
			m.CreatedAt = created
		}
		markets = append(markets, m)
	}
	stats.Eligible = len(markets)
	return markets, stats
}

// Build canonicalizes, dedupes and partitions raws into a fresh Pools
// snapshot.
func (c *Catalog) Build(raws []models.RawMarket, source string) (*models.Pools, Stats) {
	return c.BuildBatches([]models.Batch{{Source: source, Markets: raws}})
}

// BuildBatches is Build over several sources. Earlier batches win duplicate
// questions. Within one date the daily pool keeps the markets it was first
// dealt, minus any that are no longer eligible; only the rest is
// re-partitioned into free play.
func (c *Catalog) BuildBatches(batches []models.Batch) (*models.Pools, Stats) {
	stats := Stats{Rejected: make(map[string]int)}
	var markets []models.Market
	for _, b := range batches {
		ms, s := c.Canonicalize(b.Markets, b.Source)
		markets = append(markets, ms...)
		stats.Raw += s.Raw
		stats.Eligible += s.Eligible
		for reason, n := range s.Rejected {
			stats.Rejected[reason] += n
		}
	}
	unique := Dedupe(markets)
	stats.Unique = len(unique)

	now := c.now()
	date := now.In(c.location).Format(time.DateOnly)

	c.mu.Lock()
	daily, rest := c.dailyLocked(date, markets, unique)
	c.mu.Unlock()
	// Free play gets everything the daily pool did not take, in random order.
	_, free := Partition(rest, 0, c.freeShuf)

	return &models.Pools{Daily: daily, Free: free, Date: date, BuiltAt: now}, stats
}

// dailyLocked returns the daily pool for date and the unique markets left for
// free play. eligible is every market that passed the filter. c.mu must be
// held.
func (c *Catalog) dailyLocked(date string, eligible, unique []models.Market) (daily, rest []models.Market) {
	if c.pinnedDate == date && len(c.pinnedDaily) > 0 {
		present := make(map[string]struct{}, len(eligible))
		for _, m := range eligible {
			present[m.ID] = struct{}{}
		}
		for _, m := range c.pinnedDaily {
			if _, ok := present[m.ID]; ok {
				daily = append(daily, m)
			}
		}
	}

	if len(daily) == 0 {
		daily, rest = Partition(unique, c.ratio, DailyShuffler{Date: date})
		c.pinnedDate, c.pinnedDaily = date, daily
		return daily, rest
	}

	takenIDs := make(map[string]struct{}, len(daily))
	takenKeys := make(map[string]struct{}, len(daily))
	for _, m := range daily {
		takenIDs[m.ID] = struct{}{}
		takenKeys[DedupKey(m.Question)] = struct{}{}
	}
	rest = make([]models.Market, 0, len(unique))
	for _, m := range unique {
		if _, ok := takenIDs[m.ID]; ok {
			continue
		}
		if _, ok := takenKeys[DedupKey(m.Question)]; ok {
			continue
		}
		rest = append(rest, m)
	}
	c.pinnedDaily = daily
	return daily[:len(daily):len(daily)], rest
}

func rawQuestion(raw models.RawMarket) string {
	if q := raw.String(questionKeys...); q != "" {
		return q
	}
	return strings.ReplaceAll(raw.String("slug"), "-", " ")
}

func rawID(raw models.RawMarket, question string) string {
	if id := raw.String(idKeys...); id != "" {
		return id
	}
	if slug := raw.String("slug"); slug != "" {
		return slug
	}
	return uuid.NewSHA1(marketNamespace, []byte(DedupKey(question))).String()
}
