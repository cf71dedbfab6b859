// Package storage persists per-mode score state. Every backend speaks the
// same keys per mode:
//
//	predictle:<mode>:score   float
//	predictle:<mode>:streak  int
//	predictle:<mode>:rounds  int
//	predictle:<mode>:played  date of the last daily puzzle played
//
// Backends are a JSON file written atomically, a SQLite key/value table and
// Redis strings.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/rewired-gh/predictle/internal/models"
	"github.com/spf13/cast"
)

// ErrNotFound means no state has been saved for a mode yet.
var ErrNotFound = errors.New("score state not found")

const keyPrefix = "predictle"

// Field names stored per mode.
const (
	FieldScore  = "score"
	FieldStreak = "streak"
	FieldRounds = "rounds"
	FieldPlayed = "played"
)

var fields = []string{FieldScore, FieldStreak, FieldRounds, FieldPlayed}

// ScoreStore loads and saves score state per game mode.
type ScoreStore interface {
	Load(ctx context.Context, mode models.Mode) (models.ScoreState, error)
	Save(ctx context.Context, mode models.Mode, state models.ScoreState) error
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend         string // file, sqlite or redis
	FilePath        string
	DBPath          string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	FilePermissions os.FileMode
	DirPermissions  os.FileMode
}

// Open creates the backend named by opts.Backend.
func Open(ctx context.Context, opts Options) (ScoreStore, error) {
	switch opts.Backend {
	case "", "file":
		store := NewFileStore(opts.FilePath, opts.FilePermissions, opts.DirPermissions)
		if err := store.Restore(); err != nil {
			return nil, err
		}
		return store, nil
	case "sqlite":
		store, err := OpenSQLite(opts.DBPath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "redis":
		store, err := OpenRedis(ctx, opts.RedisAddr, opts.RedisPassword, opts.RedisDB)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", opts.Backend)
	}
}

// Key returns the storage key for one field of a mode's state.
func Key(mode models.Mode, field string) string {
	return keyPrefix + ":" + string(mode) + ":" + field
}

func keys(mode models.Mode) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = Key(mode, f)
	}
	return out
}

// encode renders state as key/value strings.
func encode(mode models.Mode, state models.ScoreState) map[string]string {
	return map[string]string{
		Key(mode, FieldScore):  strconv.FormatFloat(state.Score, 'f', -1, 64),
		Key(mode, FieldStreak): strconv.Itoa(state.Streak),
		Key(mode, FieldRounds): strconv.Itoa(state.Rounds),
		Key(mode, FieldPlayed): state.Played,
	}
}

// decode parses stored values. Missing fields default to zero; no fields at
// all is ErrNotFound.
func decode(mode models.Mode, values map[string]string) (models.ScoreState, error) {
	var state models.ScoreState
	found := false

	if v, ok := values[Key(mode, FieldScore)]; ok {
		found = true
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return models.ScoreState{}, fmt.Errorf("invalid %s: %w", Key(mode, FieldScore), err)
		}
		state.Score = f
	}
	if v, ok := values[Key(mode, FieldStreak)]; ok {
		found = true
		n, err := cast.ToIntE(v)
		if err != nil {
			return models.ScoreState{}, fmt.Errorf("invalid %s: %w", Key(mode, FieldStreak), err)
		}
		state.Streak = n
	}
	if v, ok := values[Key(mode, FieldRounds)]; ok {
		found = true
		n, err := cast.ToIntE(v)
		if err != nil {
			return models.ScoreState{}, fmt.Errorf("invalid %s: %w", Key(mode, FieldRounds), err)
		}
		state.Rounds = n
	}
	if v, ok := values[Key(mode, FieldPlayed)]; ok {
		found = true
		state.Played = v
	}

	if !found {
		return models.ScoreState{}, ErrNotFound
	}
	if err := state.Validate(); err != nil {
		return models.ScoreState{}, fmt.Errorf("stored state for %s: %w", mode, err)
	}
	return state, nil
}

func checkSave(mode models.Mode, state models.ScoreState) error {
	if !mode.Valid() {
		return fmt.Errorf("invalid mode: %q", mode)
	}
	if err := state.Validate(); err != nil {
		return fmt.Errorf("invalid score state: %w", err)
	}
	return nil
}
