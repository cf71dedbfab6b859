package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rewired-gh/predictle/internal/game"
	"github.com/rewired-gh/predictle/internal/models"
	"github.com/rewired-gh/predictle/internal/refresh"
	"github.com/rewired-gh/predictle/internal/scoring"
	"github.com/rewired-gh/predictle/internal/storage"
	"github.com/rewired-gh/predictle/internal/telegram"
)

var fixedNow = time.Date(2024, 10, 18, 12, 0, 0, 0, time.UTC)

type fakeRefresher struct {
	pools     atomic.Pointer[models.Pools]
	onRefresh *models.Pools
	status    refresh.Status
	refreshes int
}

func (f *fakeRefresher) Pools() *models.Pools { return f.pools.Load() }

func (f *fakeRefresher) RefreshNow(context.Context) error {
	f.refreshes++
	if f.onRefresh == nil {
		return refresh.ErrNoPlayableMarkets
	}
	f.pools.Store(f.onRefresh)
	f.status = refresh.Status{State: refresh.StateSuccess, Markets: f.onRefresh.Size()}
	return nil
}

func (f *fakeRefresher) Status() refresh.Status { return f.status }

type fakeSharer struct {
	shares []telegram.Share
	err    error
}

func (f *fakeSharer) SendShare(_ context.Context, share telegram.Share) error {
	f.shares = append(f.shares, share)
	return f.err
}

func testMarket(id string, pct int) models.Market {
	p := float64(pct) / 100
	return models.Market{
		ID:       id,
		Question: "Will " + id + " happen this year?",
		Outcomes: [2]models.Outcome{{Name: "Yes", Probability: p}, {Name: "No", Probability: 1 - p}},
	}
}

func newTestGame(t *testing.T, mode models.Mode, ref *fakeRefresher, input io.Reader) (*terminalGame, *bytes.Buffer) {
	t.Helper()
	session, err := game.NewSession(context.Background(), game.Config{
		Mode:      mode,
		MaxRounds: 2,
		Policy:    game.DefaultPolicy(mode),
	}, ref, nil, game.WithClock(func() time.Time { return fixedNow }))
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	out := &bytes.Buffer{}
	return &terminalGame{session: session, refresher: ref, in: input, out: out}, out
}

func TestTerminalGame_DailySession(t *testing.T) {
	ref := &fakeRefresher{}
	ref.pools.Store(&models.Pools{Daily: []models.Market{testMarket("d1", 62), testMarket("d2", 30)}})
	g, out := newTestGame(t, models.ModeDaily, ref, strings.NewReader("55\nabc\n\n60\n"))
	sharer := &fakeSharer{}
	g.sharer = sharer

	if err := g.run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	text := out.String()
	for _, want := range []string{
		"Round 1: Will d1 happen this year?",
		"Market says 62%, you said 55% (off by 7)",
		"Not a number: \"abc\"",
		"Round 2: Will d2 happen this year?",
		"Predictle #291 1/2\n🟩🟥",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, text)
		}
	}
	if strings.Contains(text, "Round 3") {
		t.Error("Expected no third round in a two-round daily session")
	}

	if len(sharer.shares) != 1 {
		t.Fatalf("Expected 1 share, got %d", len(sharer.shares))
	}
	if got := sharer.shares[0]; got.Mode != models.ModeDaily || got.Summary != "Predictle #291 1/2\n🟩🟥" {
		t.Errorf("Unexpected share: %+v", got)
	}
}

func TestTerminalGame_NoMarketsThenRefresh(t *testing.T) {
	ref := &fakeRefresher{
		onRefresh: &models.Pools{Free: []models.Market{testMarket("f1", 50)}},
		status: refresh.Status{
			State:      refresh.StateFailure,
			RetryCount: 2,
			LastError:  refresh.ErrorNetwork,
			NextRetry:  time.Now().Add(10 * time.Second),
		},
	}
	g, out := newTestGame(t, models.ModeFree, ref, strings.NewReader("r\n50\nq\n"))

	if err := g.run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	text := out.String()
	for _, want := range []string{
		"Could not reach the market feed.",
		"(attempt 3)",
		"Round 1: Will f1 happen this year?",
		"Market says 50%, you said 50% (off by 0)",
		"Predictle #291 100 pts",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, text)
		}
	}
	if ref.refreshes != 1 {
		t.Errorf("Expected 1 manual refresh, got %d", ref.refreshes)
	}
}

func TestTerminalGame_EmptyCatalogMessage(t *testing.T) {
	ref := &fakeRefresher{status: refresh.Status{State: refresh.StateEmpty, LastError: refresh.ErrorEmpty}}
	g, out := newTestGame(t, models.ModeFree, ref, strings.NewReader("r\n"))

	if err := g.run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	text := out.String()
	if !strings.Contains(text, "nothing playable") {
		t.Errorf("Expected empty catalog message, got:\n%s", text)
	}
	if !strings.Contains(text, "Refresh failed: "+refresh.ErrNoPlayableMarkets.Error()) {
		t.Errorf("Expected refresh failure to be shown, got:\n%s", text)
	}
	if !strings.Contains(text, "No rounds played.") {
		t.Errorf("Expected no rounds, got:\n%s", text)
	}
}

func TestTerminalGame_QuitWithoutPlaying(t *testing.T) {
	ref := &fakeRefresher{}
	ref.pools.Store(&models.Pools{Daily: []models.Market{testMarket("d1", 62)}})
	g, out := newTestGame(t, models.ModeDaily, ref, strings.NewReader("s\nq\n"))
	sharer := &fakeSharer{}
	g.sharer = sharer

	if err := g.run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	text := out.String()
	if !strings.Contains(text, "Mode daily, rounds 0/2") {
		t.Errorf("Expected status line, got:\n%s", text)
	}
	if len(sharer.shares) != 0 {
		t.Errorf("Expected no share without rounds, got %d", len(sharer.shares))
	}
}

func TestTerminalGame_DailyReplayLocked(t *testing.T) {
	ctx := context.Background()
	store := storage.NewFileStore(filepath.Join(t.TempDir(), "scores.json"), 0o600, 0o700)
	if err := store.Save(ctx, models.ModeDaily, models.ScoreState{Score: 2, Rounds: 2, Played: "2024-10-18"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	ref := &fakeRefresher{}
	ref.pools.Store(&models.Pools{Daily: []models.Market{testMarket("d1", 62), testMarket("d2", 30)}})

	session, err := game.NewSession(ctx, game.Config{Mode: models.ModeDaily, MaxRounds: 2}, ref, store,
		game.WithClock(func() time.Time { return fixedNow }))
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	out := &bytes.Buffer{}
	g := &terminalGame{session: session, refresher: ref, in: strings.NewReader("55\n"), out: out}
	if err := g.run(ctx); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	text := out.String()
	if strings.Contains(text, "Round 1") {
		t.Errorf("Expected no round on a replay, got:\n%s", text)
	}
	if !strings.Contains(text, "Daily puzzle #291 is already played") {
		t.Errorf("Expected the replay notice, got:\n%s", text)
	}
	state, err := store.Load(ctx, models.ModeDaily)
	if err != nil || state.Rounds != 2 {
		t.Errorf("Expected the saved state untouched, got %+v (%v)", state, err)
	}
}

func TestTerminalGame_ShareFailureIsNotFatal(t *testing.T) {
	ref := &fakeRefresher{}
	ref.pools.Store(&models.Pools{Free: []models.Market{testMarket("f1", 20)}})
	g, _ := newTestGame(t, models.ModeFree, ref, strings.NewReader("90\n"))
	g.sharer = &fakeSharer{err: errors.New("telegram down")}

	if err := g.run(context.Background()); err != nil {
		t.Errorf("Expected share failure to be logged only, got %v", err)
	}
}

func TestTerminalGame_ContextCancel(t *testing.T) {
	ref := &fakeRefresher{}
	ref.pools.Store(&models.Pools{Free: []models.Market{testMarket("f1", 20)}})
	pr, pw := io.Pipe()
	defer pw.Close()
	g, _ := newTestGame(t, models.ModeFree, ref, pr)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestPrintOutcome(t *testing.T) {
	out := &bytes.Buffer{}
	g := &terminalGame{out: out}
	g.printOutcome(game.Outcome{
		Result: scoring.Result{Guess: 40, Actual: 55, Delta: 15, Zone: models.ZoneYellow, Points: 0.5},
		State:  models.ScoreState{Score: 2.5, Streak: 3, Rounds: 4},
	})
	want := scoring.GlyphYellow + " Market says 55%, you said 40% (off by 15). +0.5\nScore 2.5, streak 3\n"
	if out.String() != want {
		t.Errorf("Expected %q, got %q", want, out.String())
	}
}
