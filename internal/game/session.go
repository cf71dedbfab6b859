// Package game deals rounds from the current pools and grades guesses.
package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rewired-gh/predictle/internal/logger"
	"github.com/rewired-gh/predictle/internal/models"
	"github.com/rewired-gh/predictle/internal/scoring"
	"github.com/rewired-gh/predictle/internal/storage"
)

var (
	// ErrNoMarkets means the mode's pool is empty or not loaded yet.
	ErrNoMarkets = errors.New("no markets available")
	// ErrSessionOver means the daily session has dealt all its rounds or
	// today's puzzle was already played.
	ErrSessionOver = errors.New("session over")
	// ErrUnknownRound means the guess is not for the round in play.
	ErrUnknownRound = errors.New("round is not in play")
)

// DefaultEpoch is puzzle day zero.
var DefaultEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// PoolSource supplies the current pools snapshot.
type PoolSource interface {
	Pools() *models.Pools
}

// Metrics receives round observations.
type Metrics interface {
	RecordRound(mode, zone string)
	RecordError(kind string)
}

// Config describes one session.
type Config struct {
	Mode      models.Mode
	MaxRounds int // daily round cap; free play is unbounded and uses it as the share grid width
	Policy    scoring.Policy
	Epoch     time.Time
	Location  *time.Location
}

// Outcome is a graded round.
type Outcome struct {
	Round  models.GuessRound
	Result scoring.Result
	State  models.ScoreState // persisted state after this round
}

// Progress summarizes a session.
type Progress struct {
	Mode          models.Mode
	Puzzle        int
	Played        int
	MaxRounds     int               // zero for free play
	Session       models.ScoreState // this session only
	Total         models.ScoreState // including saved history
	Over          bool
	AlreadyPlayed bool // today's daily puzzle was played in an earlier session
}

// Session deals rounds for one mode and keeps its score.
type Session struct {
	cfg     Config
	pools   PoolSource
	store   storage.ScoreStore
	tracker *scoring.Tracker
	metrics Metrics
	now     func() time.Time

	puzzle  int
	date    string // daily puzzle date, YYYY-MM-DD in cfg.Location
	replay  bool

	mu      sync.Mutex
	dealt   map[string]struct{} // market IDs dealt in the current cycle
	cursor  int
	current *models.GuessRound
	zones   []models.Zone
	session models.ScoreState
}

// Option configures a Session.
type Option func(*Session)

// WithMetrics attaches a metrics sink.
func WithMetrics(m Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithClock replaces the session clock.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// NewSession creates a session and loads the mode's saved state. A missing or
// unreadable saved state starts from zero.
func NewSession(ctx context.Context, cfg Config, pools PoolSource, store storage.ScoreStore, opts ...Option) (*Session, error) {
	if !cfg.Mode.Valid() {
		return nil, fmt.Errorf("invalid mode: %q", cfg.Mode)
	}
	if cfg.Mode == models.ModeDaily && cfg.MaxRounds < 1 {
		return nil, fmt.Errorf("daily sessions need at least one round")
	}
	if cfg.Policy == nil {
		cfg.Policy = DefaultPolicy(cfg.Mode)
	}
	if cfg.Epoch.IsZero() {
		cfg.Epoch = DefaultEpoch
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	s := &Session{
		cfg:   cfg,
		pools: pools,
		store: store,
		now:   time.Now,
		dealt: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	now := s.now()
	s.puzzle = PuzzleNumber(cfg.Epoch, now, cfg.Location)
	s.date = now.In(cfg.Location).Format(time.DateOnly)

	var initial models.ScoreState
	if store != nil {
		state, err := store.Load(ctx, cfg.Mode)
		switch {
		case err == nil:
			initial = state
		case errors.Is(err, storage.ErrNotFound):
		default:
			logger.Warn("Failed to load %s score state, starting fresh: %v", cfg.Mode, err)
			s.recordError("storage")
		}
	}
	if cfg.Mode == models.ModeDaily {
		if initial.Played == s.date {
			s.replay = true
			logger.Info("Daily puzzle #%d was already played on %s", s.puzzle, s.date)
		}
		initial.Played = s.date
	}
	s.tracker = scoring.NewTracker(cfg.Policy, initial)
	return s, nil
}

// DefaultPolicy is discrete scoring for daily and continuous for free play.
func DefaultPolicy(mode models.Mode) scoring.Policy {
	if mode == models.ModeFree {
		return scoring.Continuous{}
	}
	return scoring.Discrete{}
}

// Mode returns the session's mode.
func (s *Session) Mode() models.Mode {
	return s.cfg.Mode
}

// Next deals the next round from the pools current at this moment. Until the
// dealt round is submitted, Next keeps returning it. A market is never dealt
// twice in a daily session; free play only repeats a market once every
// market in the current pool has been dealt.
func (s *Session) Next() (models.GuessRound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		return *s.current, nil
	}
	if s.overLocked() {
		return models.GuessRound{}, ErrSessionOver
	}

	pool := s.pools.Pools().For(s.cfg.Mode)
	if len(pool) == 0 {
		return models.GuessRound{}, ErrNoMarkets
	}

	m, ok := s.pickLocked(pool)
	if !ok {
		return models.GuessRound{}, ErrSessionOver
	}
	s.dealt[m.ID] = struct{}{}

	s.current = &models.GuessRound{
		ID:      uuid.New(),
		Number:  len(s.zones) + 1,
		Mode:    s.cfg.Mode,
		Market:  m,
		DealtAt: s.now(),
	}
	logger.Debug("Dealt %s round %d: %s", s.cfg.Mode, s.current.Number, m.ID)
	return *s.current, nil
}

// Submit grades guess for round and saves the new state. A failed save is
// logged and does not fail the round.
func (s *Session) Submit(ctx context.Context, round models.GuessRound, guess int) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil || s.current.ID != round.ID {
		return Outcome{}, ErrUnknownRound
	}
	played := *s.current
	s.current = nil

	result, state := s.tracker.Record(guess, played.Market.ActualPercent())
	s.zones = append(s.zones, result.Zone)
	s.session = s.cfg.Policy.Apply(s.session, result)

	if s.store != nil {
		if err := s.store.Save(ctx, s.cfg.Mode, state); err != nil {
			logger.Error("Failed to save %s score state: %v", s.cfg.Mode, err)
			s.recordError("storage")
		}
	}
	if s.metrics != nil {
		s.metrics.RecordRound(string(s.cfg.Mode), string(result.Zone))
	}
	logger.Debug("Graded %s round %d: guess %d actual %d delta %d (%s)",
		s.cfg.Mode, played.Number, result.Guess, result.Actual, result.Delta, result.Zone)

	return Outcome{Round: played, Result: result, State: state}, nil
}

// pickLocked chooses the next market from pool. Daily deals the first
// undealt market in pool order; free play walks the pool from its cursor and
// starts a new cycle once everything in it has been dealt. s.mu must be held.
func (s *Session) pickLocked(pool []models.Market) (models.Market, bool) {
	if s.cfg.Mode == models.ModeDaily {
		for _, m := range pool {
			if _, done := s.dealt[m.ID]; !done {
				return m, true
			}
		}
		return models.Market{}, false
	}

	n := len(pool)
	for i := 0; i < n; i++ {
		idx := (s.cursor + i) % n
		if _, done := s.dealt[pool[idx].ID]; !done {
			s.cursor = idx + 1
			return pool[idx], true
		}
	}
	clear(s.dealt)
	idx := s.cursor % n
	s.cursor = idx + 1
	return pool[idx], true
}

// Progress reports the session so far.
func (s *Session) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := Progress{
		Mode:          s.cfg.Mode,
		Puzzle:        s.puzzle,
		Played:        len(s.zones),
		Session:       s.session,
		Total:         s.tracker.Snapshot(),
		Over:          s.overLocked(),
		AlreadyPlayed: s.replay,
	}
	if s.cfg.Mode == models.ModeDaily {
		p.MaxRounds = s.cfg.MaxRounds
	}
	return p
}

// Share composes the share summary for the session so far. Free play shows
// the most recent rounds that fit the grid.
func (s *Session) Share() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	width := s.gridWidth()
	zones := s.zones
	if len(zones) > width {
		zones = zones[len(zones)-width:]
	}
	return scoring.ShareSummary(s.puzzle, append([]models.Zone(nil), zones...), s.session, width, s.cfg.Policy)
}

// PuzzleNumber returns the number of calendar days between epoch and now, as
// seen in loc.
func PuzzleNumber(epoch, now time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := now.In(loc).Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	ey, em, ed := epoch.Date()
	day0 := time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC)
	return int(today.Sub(day0).Hours() / 24)
}

// gridWidth is the configured cap for daily. Free play uses the rounds
// played, capped at MaxRounds when one is set.
func (s *Session) gridWidth() int {
	if s.cfg.Mode == models.ModeDaily {
		return s.cfg.MaxRounds
	}
	if s.cfg.MaxRounds > 0 {
		return min(len(s.zones), s.cfg.MaxRounds)
	}
	return len(s.zones)
}

func (s *Session) overLocked() bool {
	return s.cfg.Mode == models.ModeDaily && (s.replay || len(s.zones) >= s.cfg.MaxRounds)
}

func (s *Session) recordError(kind string) {
	if s.metrics != nil {
		s.metrics.RecordError(kind)
	}
}
