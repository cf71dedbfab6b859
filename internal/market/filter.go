package market

import (
	"strconv"
	"strings"
	"time"

	"github.com/rewired-gh/predictle/internal/models"
)

// createdAtKeys are the upstream fields that may carry a creation time.
var createdAtKeys = []string{"created_at", "createdAt", "creationDate", "created_time", "createdTime"}

// Rejection reasons reported by Filter.Reason.
const (
	ReasonOutcomes = "outcomes"
	ReasonClosed   = "closed"
	ReasonResolved = "resolved"
	ReasonArchived = "archived"
	ReasonInactive = "inactive"
	ReasonQuestion = "question_too_short"
	ReasonDenylist = "denylist"
	ReasonStale    = "stale"
)

// FilterConfig holds the eligibility thresholds.
type FilterConfig struct {
	MinQuestionLength int           // question must be strictly longer
	Denylist          []string      // case-insensitive substrings marking test or archival content
	StaleYearsFrom    int           // years from this one up to last year are denylisted; zero disables
	MaxAge            time.Duration // zero disables the age check
}

// DefaultFilterConfig returns the thresholds used when nothing is configured.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		MinQuestionLength: 10,
		Denylist:          []string{"test", "archive"},
		StaleYearsFrom:    2020,
		MaxAge:            180 * 24 * time.Hour,
	}
}

// Filter decides whether a market is playable.
type Filter struct {
	cfg      FilterConfig
	denylist []string
	now      func() time.Time
}

// NewFilter creates a Filter. now is the clock used for the age check; nil
// means time.Now.
func NewFilter(cfg FilterConfig, now func() time.Time) *Filter {
	if now == nil {
		now = time.Now
	}
	denylist := make([]string, 0, len(cfg.Denylist))
	for _, marker := range cfg.Denylist {
		if marker = strings.ToLower(strings.TrimSpace(marker)); marker != "" {
			denylist = append(denylist, marker)
		}
	}
	return &Filter{cfg: cfg, denylist: denylist, now: now}
}

// IsEligible reports whether raw may be dealt to players. question must
// already be normalized and outcomes extracted from the same record.
func (f *Filter) IsEligible(raw models.RawMarket, question string, outcomes []models.Outcome) bool {
	return f.Reason(raw, question, outcomes) == ""
}

// Reason returns the first failed eligibility rule, or "" when every rule
// passes.
func (f *Filter) Reason(raw models.RawMarket, question string, outcomes []models.Outcome) string {
	if len(outcomes) != 2 || !outcomes[0].Valid() || !outcomes[1].Valid() {
		return ReasonOutcomes
	}
	if closed, _ := raw.Flag("closed"); closed {
		return ReasonClosed
	}
	if resolved, _ := raw.Flag("resolved"); resolved {
		return ReasonResolved
	}
	if archived, _ := raw.Flag("archived"); archived {
		return ReasonArchived
	}
	if active, present := raw.Flag("active"); present && !active {
		return ReasonInactive
	}
	if len([]rune(question)) <= f.cfg.MinQuestionLength {
		return ReasonQuestion
	}
	lower := strings.ToLower(question)
	for _, marker := range f.denylist {
		if strings.Contains(lower, marker) {
			return ReasonDenylist
		}
	}
	now := f.now()
	if f.cfg.StaleYearsFrom > 0 {
		for year := f.cfg.StaleYearsFrom; year < now.Year(); year++ {
			if strings.Contains(lower, strconv.Itoa(year)) {
				return ReasonDenylist
			}
		}
	}
	if f.cfg.MaxAge > 0 {
		if created, ok := raw.Time(createdAtKeys...); ok && now.Sub(created) >= f.cfg.MaxAge {
			return ReasonStale
		}
	}
	return ""
}
