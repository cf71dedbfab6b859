// Package refresh keeps the playable pools current. It fetches upstream
// markets, rebuilds the pools, and retries with linear backoff when a fetch
// fails or yields nothing playable.
package refresh

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rewired-gh/predictle/internal/logger"
	"github.com/rewired-gh/predictle/internal/market"
	"github.com/rewired-gh/predictle/internal/models"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrNoPlayableMarkets means the fetch worked but nothing passed the filter.
	ErrNoPlayableMarkets = errors.New("no playable markets")
	// ErrClosed is returned once the refresher has been closed.
	ErrClosed = errors.New("refresher closed")
)

// State is a refresher lifecycle state.
type State string

const (
	StateIdle     State = "idle"
	StateFetching State = "fetching"
	StateSuccess  State = "success"
	StateEmpty    State = "empty"
	StateFailure  State = "failure"
)

// ErrorClass tells a network problem apart from an empty catalog.
type ErrorClass string

const (
	ErrorNone    ErrorClass = ""
	ErrorNetwork ErrorClass = "network"
	ErrorEmpty   ErrorClass = "empty"
)

// Fetcher returns raw market batches from upstream.
type Fetcher interface {
	Fetch(ctx context.Context) ([]models.Batch, error)
}

// Builder turns raw batches into pools.
type Builder interface {
	BuildBatches(batches []models.Batch) (*models.Pools, market.Stats)
}

// Metrics receives refresh observations.
type Metrics interface {
	RecordFetch(outcome string, d time.Duration)
	RecordRejected(reason string, n int)
	SetPoolSize(mode string, n int)
	SetRetryCount(n int)
}

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f to run after d, like time.AfterFunc.
type AfterFunc func(d time.Duration, f func()) Timer

func stdAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Config holds backoff settings.
type Config struct {
	StepUnit        time.Duration
	MaxBackoffSteps int
	// Interval schedules a routine refresh after a good fetch. Zero disables it.
	Interval time.Duration
}

// Status is a point-in-time view of the refresher.
type Status struct {
	State      State
	RetryCount int
	LastError  ErrorClass
	Err        error
	NextRetry  time.Time // zero when nothing is scheduled
	Markets    int
}

// Option configures a Refresher.
type Option func(*Refresher)

// WithAfterFunc replaces the timer factory.
func WithAfterFunc(f AfterFunc) Option {
	return func(r *Refresher) { r.afterFunc = f }
}

// WithClock replaces the clock used for NextRetry.
func WithClock(now func() time.Time) Option {
	return func(r *Refresher) { r.now = now }
}

// WithMetrics attaches a metrics sink.
func WithMetrics(m Metrics) Option {
	return func(r *Refresher) { r.metrics = m }
}

// WithOnSchedule registers a hook called whenever a refresh is scheduled. The
// hook runs under the refresher's lock and must not call back into it.
func WithOnSchedule(f func(delay time.Duration, retryCount int)) Option {
	return func(r *Refresher) { r.onSchedule = f }
}

// Refresher owns the fetch-retry state machine and the current pools.
type Refresher struct {
	fetcher    Fetcher
	builder    Builder
	cfg        Config
	afterFunc  AfterFunc
	now        func() time.Time
	metrics    Metrics
	onSchedule func(time.Duration, int)

	group singleflight.Group
	pools atomic.Pointer[models.Pools]

	mu         sync.Mutex
	state      State
	retryCount int
	lastClass  ErrorClass
	lastErr    error
	nextRetry  time.Time
	timer      Timer
	closed     bool
	started    bool
	ctx        context.Context
	cancel     context.CancelFunc
}

// New creates a Refresher. It does nothing until Start.
func New(fetcher Fetcher, builder Builder, cfg Config, opts ...Option) *Refresher {
	if cfg.MaxBackoffSteps < 1 {
		cfg.MaxBackoffSteps = 1
	}
	r := &Refresher{
		fetcher:   fetcher,
		builder:   builder,
		cfg:       cfg,
		afterFunc: stdAfterFunc,
		now:       time.Now,
		state:     StateIdle,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.ctx, r.cancel = context.WithCancel(context.Background())
	return r
}

// Start runs the first fetch and returns its error. Failures are retried in
// the background either way. Fetches are bound to ctx as well as to Close.
func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	if !r.started {
		r.started = true
		stop := context.AfterFunc(ctx, r.Close)
		go func() {
			<-r.ctx.Done()
			stop()
		}()
	}
	r.mu.Unlock()

	return r.refresh(ctx)
}

// RefreshNow cancels any pending retry and fetches immediately. A call made
// while a fetch is in flight waits for that fetch instead of starting another.
func (r *Refresher) RefreshNow(ctx context.Context) error {
	return r.refresh(ctx)
}

// Pools returns the current snapshot, or nil before the first good fetch.
func (r *Refresher) Pools() *models.Pools {
	return r.pools.Load()
}

// Status reports the current state.
func (r *Refresher) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Status{
		State:      r.state,
		RetryCount: r.retryCount,
		LastError:  r.lastClass,
		Err:        r.lastErr,
		NextRetry:  r.nextRetry,
		Markets:    r.pools.Load().Size(),
	}
}

// Close cancels any pending retry and in-flight fetch. Results that arrive
// afterwards are discarded. Close is idempotent.
func (r *Refresher) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.stopTimerLocked()
	r.cancel()
	logger.Debug("Refresher closed")
}

// Backoff returns the retry delay after retryCount consecutive failures.
func Backoff(retryCount, maxSteps int, step time.Duration) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}
	return time.Duration(min(maxSteps, retryCount)) * step
}

func (r *Refresher) refresh(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	r.stopTimerLocked()
	r.mu.Unlock()

	ch := r.group.DoChan("fetch", func() (any, error) {
		return nil, r.fetchOnce()
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fetchOnce runs one fetch and applies its result. Only one runs at a time.
func (r *Refresher) fetchOnce() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	r.state = StateFetching
	r.mu.Unlock()
	logger.Debug("Fetching markets")

	start := r.now()
	batches, err := r.fetcher.Fetch(r.ctx)
	var (
		pools *models.Pools
		stats market.Stats
	)
	if err == nil {
		pools, stats = r.builder.BuildBatches(batches)
	}
	elapsed := r.now().Sub(start)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		logger.Debug("Discarding fetch result after close")
		return ErrClosed
	}

	switch {
	case err != nil:
		r.state = StateFailure
		r.lastClass = ErrorNetwork
		r.lastErr = err
		r.retryCount++
		r.record("failure", elapsed, stats)
		logger.Warn("Market fetch failed (attempt %d): %v", r.retryCount, err)
		r.scheduleLocked(Backoff(r.retryCount, r.cfg.MaxBackoffSteps, r.cfg.StepUnit))
		return err

	case pools.Size() == 0:
		r.state = StateEmpty
		r.lastClass = ErrorEmpty
		r.lastErr = ErrNoPlayableMarkets
		r.retryCount++
		r.record("empty", elapsed, stats)
		logger.Warn("No playable markets in %d raw records (attempt %d)", stats.Raw, r.retryCount)
		r.scheduleLocked(Backoff(r.retryCount, r.cfg.MaxBackoffSteps, r.cfg.StepUnit))
		return ErrNoPlayableMarkets

	default:
		r.state = StateSuccess
		r.lastClass = ErrorNone
		r.lastErr = nil
		r.retryCount = 0
		r.pools.Store(pools)
		r.record("success", elapsed, stats)
		if r.metrics != nil {
			r.metrics.SetPoolSize(string(models.ModeDaily), len(pools.Daily))
			r.metrics.SetPoolSize(string(models.ModeFree), len(pools.Free))
		}
		logger.Info("Pools refreshed: %d daily, %d free (%d raw, %d eligible, %d unique)",
			len(pools.Daily), len(pools.Free), stats.Raw, stats.Eligible, stats.Unique)
		if r.cfg.Interval > 0 {
			r.scheduleLocked(r.cfg.Interval)
		}
		return nil
	}
}

func (r *Refresher) record(outcome string, elapsed time.Duration, stats market.Stats) {
	if r.metrics == nil {
		return
	}
	r.metrics.RecordFetch(outcome, elapsed)
	r.metrics.SetRetryCount(r.retryCount)
	for reason, n := range stats.Rejected {
		r.metrics.RecordRejected(reason, n)
	}
}

// scheduleLocked arms the retry timer. r.mu must be held.
func (r *Refresher) scheduleLocked(delay time.Duration) {
	r.stopTimerLocked()
	r.nextRetry = r.now().Add(delay)
	var t Timer
	t = r.afterFunc(delay, func() {
		r.mu.Lock()
		live := !r.closed && r.timer == t
		if live {
			r.timer = nil
			r.nextRetry = time.Time{}
		}
		r.mu.Unlock()
		if !live {
			return
		}
		if err := r.refresh(r.ctx); err != nil && !errors.Is(err, ErrClosed) {
			logger.Debug("Scheduled refresh: %v", err)
		}
	})
	r.timer = t
	logger.Debug("Next refresh in %s (retry count %d)", delay, r.retryCount)
	if r.onSchedule != nil {
		r.onSchedule(delay, r.retryCount)
	}
}

// stopTimerLocked cancels the pending timer. r.mu must be held.
func (r *Refresher) stopTimerLocked() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.nextRetry = time.Time{}
}
