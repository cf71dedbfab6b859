package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rewired-gh/predictle/internal/models"
	_ "modernc.org/sqlite"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS score_values (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// SQLiteStore keeps score values in a SQLite key/value table.
type SQLiteStore struct {
	db *sql.DB
}

// OpenDB creates or opens a SQLite database at the given path with WAL mode
// enabled. ":memory:" opens a private in-memory database.
func OpenDB(dbPath string) (*sql.DB, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection: SQLite serializes writers anyway, and every
	// ":memory:" connection would otherwise be a separate database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	return db, nil
}

// Migrate runs the schema creation SQL. Safe to call multiple times due to IF NOT EXISTS.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	// Record schema version 1 if not already present.
	if _, err := db.Exec(`INSERT OR IGNORE INTO schema_version (version) VALUES (1)`); err != nil {
		return fmt.Errorf("recording schema version: %w", err)
	}

	return nil
}

// OpenSQLite opens and migrates a SQLite-backed store.
func OpenSQLite(dbPath string) (*SQLiteStore, error) {
	db, err := OpenDB(dbPath)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Load returns the saved state for mode.
func (s *SQLiteStore) Load(ctx context.Context, mode models.Mode) (models.ScoreState, error) {
	ks := keys(mode)
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ks)), ",")
	args := make([]any, len(ks))
	for i, k := range ks {
		args[i] = k
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM score_values WHERE key IN (`+placeholders+`)`, args...)
	if err != nil {
		return models.ScoreState{}, fmt.Errorf("querying score values: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string, len(ks))
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return models.ScoreState{}, fmt.Errorf("scanning score value: %w", err)
		}
		values[k] = v
	}
	if err := rows.Err(); err != nil {
		return models.ScoreState{}, fmt.Errorf("reading score values: %w", err)
	}
	return decode(mode, values)
}

// Save upserts all of mode's values in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, mode models.Mode, state models.ScoreState) error {
	if err := checkSave(mode, state); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for k, v := range encode(mode, state) {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO score_values (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			k, v)
		if err != nil {
			return fmt.Errorf("saving %s: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing score values: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
