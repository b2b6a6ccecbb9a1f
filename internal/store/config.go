// Package store implements the persisted configuration store:
// watch_path, setting, crawler_state, and wizard_state tables behind a
// repository layer, so the core never touches SQL directly. Uses
// modernc.org/sqlite for the database driver (pure-Go, no cgo toolchain
// dependency on any target platform), in WAL mode with a single-writer
// connection pool. Open applies the pragmas and migrations only; it runs
// no integrity check on the database file.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Hamza5/file-brain/internal/model"
)

// ConfigStore is the repository layer: the core reads/writes watch
// paths, settings, and crawler state only through this interface,
// never via direct SQL.
type ConfigStore interface {
	ListWatchPaths(ctx context.Context) ([]model.WatchPath, error)
	UpsertWatchPath(ctx context.Context, wp model.WatchPath) (model.WatchPath, error)
	DeleteWatchPath(ctx context.Context, id int64) error

	GetSetting(ctx context.Context, key string) (model.Setting, bool, error)
	ListSettings(ctx context.Context) ([]model.Setting, error)
	SetSetting(ctx context.Context, key, value, description string) error

	LoadCrawlerState(ctx context.Context) (model.CrawlerState, error)
	SaveCrawlerState(ctx context.Context, state model.CrawlerState) error

	Close() error
}

// SQLiteConfigStore implements ConfigStore against a single
// modernc.org/sqlite file.
type SQLiteConfigStore struct {
	mu sync.Mutex
	db *sql.DB
}

var _ ConfigStore = (*SQLiteConfigStore)(nil)

// Open creates or opens the config database at path (":memory:" for a
// throwaway test database), runs migrations, and returns a ready
// store. The WAL/busy-timeout pragma set fits this workload well: the
// crawl manager's supervisory writes and any concurrent CLI read
// (`crawl status`) are exactly the single-writer-many-readers shape WAL
// mode targets.
func Open(path string) (*SQLiteConfigStore, error) {
	dsn := path
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("store: create directory %s: %w", dir, err)
			}
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: pragma %q: %w", p, err)
		}
	}

	s := &SQLiteConfigStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate runs the fixed migration set. Every statement is
// CREATE-TABLE-IF-NOT-EXISTS: the schema has never changed shape since
// this store was designed, so one idempotent pass is the migration
// runner.
func (s *SQLiteConfigStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS watch_path (
			id                     INTEGER PRIMARY KEY AUTOINCREMENT,
			path                   TEXT NOT NULL UNIQUE,
			enabled                INTEGER NOT NULL DEFAULT 1,
			include_subdirectories INTEGER NOT NULL DEFAULT 1,
			is_excluded            INTEGER NOT NULL DEFAULT 0,
			created_at             TEXT NOT NULL,
			updated_at             TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS setting (
			key         TEXT PRIMARY KEY,
			value       TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			updated_at  TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS crawler_state (
			id                   INTEGER PRIMARY KEY CHECK (id = 1),
			crawl_job_running    INTEGER NOT NULL DEFAULT 0,
			crawl_job_type       TEXT,
			crawl_job_started_at TEXT,
			monitoring_active    INTEGER NOT NULL DEFAULT 0,
			files_discovered     INTEGER NOT NULL DEFAULT 0,
			files_indexed        INTEGER NOT NULL DEFAULT 0,
			files_error          INTEGER NOT NULL DEFAULT 0,
			files_skipped        INTEGER NOT NULL DEFAULT 0,
			files_deleted        INTEGER NOT NULL DEFAULT 0,
			discovery_progress   INTEGER NOT NULL DEFAULT 0,
			indexing_progress    INTEGER NOT NULL DEFAULT 0
		)`,
		// wizard_state: schema present even though the setup wizard
		// itself is out of scope for this CLI; nothing reads or writes
		// this table yet.
		`CREATE TABLE IF NOT EXISTS wizard_state (
			id        INTEGER PRIMARY KEY CHECK (id = 1),
			completed INTEGER NOT NULL DEFAULT 0,
			step      TEXT NOT NULL DEFAULT ''
		)`,
		`INSERT OR IGNORE INTO crawler_state (id) VALUES (1)`,
		`INSERT OR IGNORE INTO wizard_state (id) VALUES (1)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("store: migrate: %w", err)
		}
	}
	return nil
}

const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		slog.Warn("store: unparsable timestamp", slog.String("value", s))
		return time.Time{}
	}
	return t
}

// Close releases the underlying database handle.
func (s *SQLiteConfigStore) Close() error {
	return s.db.Close()
}
