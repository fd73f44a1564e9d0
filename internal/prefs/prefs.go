// Package prefs persists dashboard preferences and stream resume cursors in a
// local sqlite database.
//
// Nothing is saved implicitly: callers Load once, change fields, and Save.
package prefs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	// Register modernc SQLite driver with database/sql.
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a key or cursor has never been saved.
var ErrNotFound = errors.New("prefs: not found")

// Preference keys accepted by Get and Set.
const (
	KeyTheme           = "theme"
	KeyPollInterval    = "poll_interval"
	KeyLatestOnly      = "latest_only"
	KeyPinnedExecutors = "pinned_executors"
)

// Keys lists every preference key in display order.
var Keys = []string{KeyTheme, KeyPollInterval, KeyLatestOnly, KeyPinnedExecutors}

// Themes accepted for KeyTheme.
var Themes = []string{"auto", "light", "dark"}

// Preferences is the full set of user preferences.
type Preferences struct {
	Theme           string        `json:"theme"`
	PollInterval    time.Duration `json:"poll_interval"`
	LatestOnly      bool          `json:"latest_only"`
	PinnedExecutors []string      `json:"pinned_executors,omitempty"`
}

// Defaults returns the preferences used for keys that were never saved.
func Defaults() Preferences {
	return Preferences{Theme: "auto", PollInterval: 500 * time.Millisecond}
}

// Store is a handle on the preferences database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the database at path and applies pending
// migrations. Use ":memory:" for a throwaway store.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("prefs: create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", buildDSN(path))
	if err != nil {
		return nil, fmt.Errorf("prefs: open database: %w", err)
	}
	// One connection keeps ":memory:" databases alive across calls.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, logger: logger}
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("prefs: migrations fs: %w", err)
	}
	if err := s.migrate(ctx, sub); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Debug("prefs: opened", "path", path)
	return s, nil
}

func buildDSN(path string) string {
	pragmas := "_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)"
	if path == ":memory:" {
		return "file::memory:?" + pragmas
	}
	return "file:" + path + "?" + pragmas + "&_pragma=journal_mode(WAL)"
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the saved preferences, with defaults for unsaved keys.
func (s *Store) Load(ctx context.Context) (Preferences, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM preferences`)
	if err != nil {
		return Preferences{}, fmt.Errorf("prefs: load: %w", err)
	}
	defer func() { _ = rows.Close() }()

	p := Defaults()
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return Preferences{}, fmt.Errorf("prefs: scan: %w", err)
		}
		if err := p.apply(key, value); err != nil {
			// A hand-edited or stale row must not lock the user out.
			s.logger.Warn("prefs: ignoring stored value", "key", key, "error", err)
		}
	}
	if err := rows.Err(); err != nil {
		return Preferences{}, fmt.Errorf("prefs: load: %w", err)
	}
	return p, nil
}

// Save writes every field of p in one transaction.
func (s *Store) Save(ctx context.Context, p Preferences) error {
	if err := p.Validate(); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("prefs: begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := nowText()
	for _, key := range Keys {
		if err := upsert(ctx, tx, key, p.Value(key), now); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("prefs: commit save: %w", err)
	}
	return nil
}

// Get returns the stored text of one key, or ErrNotFound if it was never set.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if !slices.Contains(Keys, key) {
		return "", fmt.Errorf("prefs: unknown key %q", key)
	}
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM preferences WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("prefs: get %s: %w", key, err)
	}
	return value, nil
}

// Set validates and stores one key. Pinned executors are comma separated.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if !slices.Contains(Keys, key) {
		return fmt.Errorf("prefs: unknown key %q", key)
	}
	var p Preferences
	if err := p.apply(key, value); err != nil {
		return err
	}
	// Store the canonical form, e.g. "1s" for "1000ms".
	return upsert(ctx, s.db, key, p.Value(key), nowText())
}

// Cursor returns the saved resume cursor of a run, or ErrNotFound.
func (s *Store) Cursor(ctx context.Context, runID string) (int, error) {
	var cursor int
	err := s.db.QueryRowContext(ctx, `SELECT cursor FROM stream_cursors WHERE run_id = ?`, runID).Scan(&cursor)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("prefs: get cursor %s: %w", runID, err)
	}
	return cursor, nil
}

// SaveCursor records where a stream of runID stopped.
func (s *Store) SaveCursor(ctx context.Context, runID string, cursor int) error {
	if cursor < 0 {
		return fmt.Errorf("prefs: cursor must be >= 0, got %d", cursor)
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO stream_cursors (run_id, cursor, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (run_id) DO UPDATE SET cursor = excluded.cursor, updated_at = excluded.updated_at`,
		runID, cursor, nowText(),
	); err != nil {
		return fmt.Errorf("prefs: save cursor %s: %w", runID, err)
	}
	return nil
}

// Validate rejects values the dashboard cannot honour.
func (p Preferences) Validate() error {
	if !slices.Contains(Themes, p.Theme) {
		return fmt.Errorf("prefs: theme must be one of %s, got %q", strings.Join(Themes, ", "), p.Theme)
	}
	if p.PollInterval <= 0 {
		return fmt.Errorf("prefs: poll_interval must be positive, got %s", p.PollInterval)
	}
	for _, e := range p.PinnedExecutors {
		if e == "" || strings.Contains(e, ",") {
			return fmt.Errorf("prefs: invalid pinned executor %q", e)
		}
	}
	return nil
}

func (p *Preferences) apply(key, value string) error {
	switch key {
	case KeyTheme:
		if !slices.Contains(Themes, value) {
			return fmt.Errorf("prefs: theme must be one of %s, got %q", strings.Join(Themes, ", "), value)
		}
		p.Theme = value
	case KeyPollInterval:
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			return fmt.Errorf("prefs: poll_interval %q is not a positive duration", value)
		}
		p.PollInterval = d
	case KeyLatestOnly:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("prefs: latest_only %q is not a boolean", value)
		}
		p.LatestOnly = b
	case KeyPinnedExecutors:
		p.PinnedExecutors = nil
		for _, e := range strings.Split(value, ",") {
			if e = strings.TrimSpace(e); e != "" {
				p.PinnedExecutors = append(p.PinnedExecutors, e)
			}
		}
	default:
		return fmt.Errorf("prefs: unknown key %q", key)
	}
	return nil
}

// Value returns the text form of one key, as Set accepts and Get returns it.
func (p Preferences) Value(key string) string {
	switch key {
	case KeyTheme:
		return p.Theme
	case KeyPollInterval:
		return p.PollInterval.String()
	case KeyLatestOnly:
		return strconv.FormatBool(p.LatestOnly)
	case KeyPinnedExecutors:
		return strings.Join(p.PinnedExecutors, ",")
	}
	return ""
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsert(ctx context.Context, db execer, key, value, now string) error {
	if _, err := db.ExecContext(ctx, `
		INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now,
	); err != nil {
		return fmt.Errorf("prefs: set %s: %w", key, err)
	}
	return nil
}

func nowText() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
