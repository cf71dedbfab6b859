package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rewired-gh/predictle/internal/game"
	"github.com/rewired-gh/predictle/internal/logger"
	"github.com/rewired-gh/predictle/internal/models"
	"github.com/rewired-gh/predictle/internal/refresh"
	"github.com/rewired-gh/predictle/internal/scoring"
	"github.com/rewired-gh/predictle/internal/telegram"
)

type gameSession interface {
	Mode() models.Mode
	Next() (models.GuessRound, error)
	Submit(ctx context.Context, round models.GuessRound, guess int) (game.Outcome, error)
	Progress() game.Progress
	Share() string
}

type poolRefresher interface {
	RefreshNow(ctx context.Context) error
	Status() refresh.Status
}

type shareTarget interface {
	SendShare(ctx context.Context, share telegram.Share) error
}

// terminalGame plays one session over a line-oriented reader and writer.
type terminalGame struct {
	session   gameSession
	refresher poolRefresher
	sharer    shareTarget // nil disables sharing
	in        io.Reader
	out       io.Writer

	round *models.GuessRound
}

const helpText = "Enter a guess from 0 to 100, r to refresh markets, s for status, q to quit."

func (g *terminalGame) run(ctx context.Context) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(g.in)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Fprintf(g.out, "Predictle (%s)\n%s\n", g.session.Mode(), helpText)
	if done := g.deal(); done {
		return g.finish(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return g.finish(ctx)
			}
			done, err := g.handle(ctx, line)
			if err != nil {
				return err
			}
			if done {
				return g.finish(ctx)
			}
		}
	}
}

// handle processes one input line and reports whether the session is done.
func (g *terminalGame) handle(ctx context.Context, line string) (bool, error) {
	switch strings.ToLower(line) {
	case "":
		return false, nil
	case "q", "quit":
		return true, nil
	case "s", "status":
		g.printStatus()
		return false, nil
	case "r", "refresh":
		if err := g.refresher.RefreshNow(ctx); err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			fmt.Fprintf(g.out, "Refresh failed: %v\n", err)
		}
		if g.round == nil {
			return g.deal(), nil
		}
		return false, nil
	case "h", "help", "?":
		fmt.Fprintln(g.out, helpText)
		return false, nil
	}

	guess, err := strconv.Atoi(line)
	if err != nil {
		fmt.Fprintf(g.out, "Not a number: %q. %s\n", line, helpText)
		return false, nil
	}
	if g.round == nil {
		if g.deal() {
			return true, nil
		}
		if g.round == nil {
			return false, nil
		}
	}

	outcome, err := g.session.Submit(ctx, *g.round, guess)
	if err != nil {
		if errors.Is(err, game.ErrUnknownRound) {
			g.round = nil
			return g.deal(), nil
		}
		return false, err
	}
	g.round = nil
	g.printOutcome(outcome)
	return g.deal(), nil
}

// deal shows the next round. It reports true when the session has ended.
func (g *terminalGame) deal() bool {
	round, err := g.session.Next()
	switch {
	case err == nil:
		g.round = &round
		fmt.Fprintf(g.out, "\nRound %d: %s\nYour guess for %q (%%): ",
			round.Number, round.Market.Question, round.Market.Outcomes[0].Name)
		return false
	case errors.Is(err, game.ErrSessionOver):
		return true
	case errors.Is(err, game.ErrNoMarkets):
		g.printUnavailable()
		return false
	default:
		logger.Error("Failed to deal round: %v", err)
		fmt.Fprintf(g.out, "Could not deal a round: %v\n", err)
		return false
	}
}

func (g *terminalGame) printOutcome(o game.Outcome) {
	r := o.Result
	fmt.Fprintf(g.out, "%s Market says %d%%, you said %d%% (off by %d). +%s\n",
		scoring.Glyph(r.Zone), r.Actual, r.Guess, r.Delta, strconv.FormatFloat(r.Points, 'f', -1, 64))
	fmt.Fprintf(g.out, "Score %s, streak %d\n", strconv.FormatFloat(o.State.Score, 'f', -1, 64), o.State.Streak)
}

// printUnavailable tells a network problem apart from an empty catalog.
func (g *terminalGame) printUnavailable() {
	st := g.refresher.Status()
	switch st.LastError {
	case refresh.ErrorNetwork:
		fmt.Fprintln(g.out, "Could not reach the market feed.")
	case refresh.ErrorEmpty:
		fmt.Fprintln(g.out, "The market feed has nothing playable right now.")
	default:
		fmt.Fprintln(g.out, "Markets are still loading.")
	}
	if !st.NextRetry.IsZero() {
		wait := time.Until(st.NextRetry).Round(time.Second)
		fmt.Fprintf(g.out, "Retrying in %s (attempt %d). Enter r to retry now.\n", max(wait, 0), st.RetryCount+1)
	}
}

func (g *terminalGame) printStatus() {
	p := g.session.Progress()
	st := g.refresher.Status()
	rounds := strconv.Itoa(p.Played)
	if p.MaxRounds > 0 {
		rounds += "/" + strconv.Itoa(p.MaxRounds)
	}
	fmt.Fprintf(g.out, "Mode %s, rounds %s, session score %s, total score %s, streak %d\n",
		p.Mode, rounds,
		strconv.FormatFloat(p.Session.Score, 'f', -1, 64),
		strconv.FormatFloat(p.Total.Score, 'f', -1, 64),
		p.Total.Streak)
	fmt.Fprintf(g.out, "Feed %s, %d markets", st.State, st.Markets)
	if st.RetryCount > 0 {
		fmt.Fprintf(g.out, ", %d failed attempts", st.RetryCount)
	}
	fmt.Fprintln(g.out)
}

// finish prints the share summary and posts it when sharing is enabled.
func (g *terminalGame) finish(ctx context.Context) error {
	p := g.session.Progress()
	if p.Played == 0 {
		if p.AlreadyPlayed {
			fmt.Fprintf(g.out, "\nDaily puzzle #%d is already played. Come back tomorrow.\n", p.Puzzle)
		} else {
			fmt.Fprintln(g.out, "\nNo rounds played.")
		}
		return nil
	}
	summary := g.session.Share()
	fmt.Fprintf(g.out, "\n%s\n", summary)

	if g.sharer == nil {
		return nil
	}
	share := telegram.Share{
		Mode:    p.Mode,
		Summary: summary,
		Status:  fmt.Sprintf("Streak %d", p.Total.Streak),
	}
	if err := g.sharer.SendShare(ctx, share); err != nil {
		logger.Error("Failed to share %s result: %v", p.Mode, err)
		return nil
	}
	logger.Info("Shared %s result", p.Mode)
	return nil
}
