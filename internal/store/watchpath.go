package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Hamza5/file-brain/internal/model"
)

// ListWatchPaths returns every configured watch_path row, included and
// excluded alike: internal/pathfilter.New filters on Enabled/IsExcluded
// itself, so the repository hands back the raw rows.
func (s *SQLiteConfigStore) ListWatchPaths(ctx context.Context) ([]model.WatchPath, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, path, enabled, include_subdirectories,
		is_excluded, created_at, updated_at FROM watch_path ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: list watch paths: %w", err)
	}
	defer rows.Close()

	var out []model.WatchPath
	for rows.Next() {
		var wp model.WatchPath
		var createdAt, updatedAt string
		if err := rows.Scan(&wp.ID, &wp.Path, &wp.Enabled, &wp.IncludeSubdirectories,
			&wp.IsExcluded, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("store: scan watch path: %w", err)
		}
		wp.CreatedAt = parseTime(createdAt)
		wp.UpdatedAt = parseTime(updatedAt)
		out = append(out, wp)
	}
	return out, rows.Err()
}

// UpsertWatchPath inserts a new watch_path row, or updates the existing
// row for the same path if one already exists (path is UNIQUE). Returns
// the row as persisted, including its id and timestamps.
func (s *SQLiteConfigStore) UpsertWatchPath(ctx context.Context, wp model.WatchPath) (model.WatchPath, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := formatTime(time.Now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO watch_path (path, enabled, include_subdirectories, is_excluded, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			enabled = excluded.enabled,
			include_subdirectories = excluded.include_subdirectories,
			is_excluded = excluded.is_excluded,
			updated_at = excluded.updated_at
	`, wp.Path, wp.Enabled, wp.IncludeSubdirectories, wp.IsExcluded, now, now)
	if err != nil {
		return model.WatchPath{}, fmt.Errorf("store: upsert watch path %s: %w", wp.Path, err)
	}

	var out model.WatchPath
	var createdAt, updatedAt string
	row := s.db.QueryRowContext(ctx, `SELECT id, path, enabled, include_subdirectories,
		is_excluded, created_at, updated_at FROM watch_path WHERE path = ?`, wp.Path)
	if err := row.Scan(&out.ID, &out.Path, &out.Enabled, &out.IncludeSubdirectories,
		&out.IsExcluded, &createdAt, &updatedAt); err != nil {
		return model.WatchPath{}, fmt.Errorf("store: read back watch path %s: %w", wp.Path, err)
	}
	out.CreatedAt = parseTime(createdAt)
	out.UpdatedAt = parseTime(updatedAt)
	return out, nil
}

// DeleteWatchPath removes a watch_path row by id. Deleting an id that
// does not exist is success, matching the "not-found is success for
// delete" convention established by searchclient.RemoveByPath.
func (s *SQLiteConfigStore) DeleteWatchPath(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM watch_path WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: delete watch path %d: %w", id, err)
	}
	return nil
}

// GetSetting reads one setting row. The second return is false if no
// row exists for key; callers fall back to their own default.
func (s *SQLiteConfigStore) GetSetting(ctx context.Context, key string) (model.Setting, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var setting model.Setting
	var updatedAt string
	row := s.db.QueryRowContext(ctx, `SELECT key, value, description, updated_at FROM setting WHERE key = ?`, key)
	err := row.Scan(&setting.Key, &setting.Value, &setting.Description, &updatedAt)
	if err == sql.ErrNoRows {
		return model.Setting{}, false, nil
	}
	if err != nil {
		return model.Setting{}, false, fmt.Errorf("store: get setting %s: %w", key, err)
	}
	setting.UpdatedAt = parseTime(updatedAt)
	return setting, true, nil
}

// ListSettings returns every persisted setting row.
func (s *SQLiteConfigStore) ListSettings(ctx context.Context) ([]model.Setting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT key, value, description, updated_at FROM setting ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("store: list settings: %w", err)
	}
	defer rows.Close()

	var out []model.Setting
	for rows.Next() {
		var setting model.Setting
		var updatedAt string
		if err := rows.Scan(&setting.Key, &setting.Value, &setting.Description, &updatedAt); err != nil {
			return nil, fmt.Errorf("store: scan setting: %w", err)
		}
		setting.UpdatedAt = parseTime(updatedAt)
		out = append(out, setting)
	}
	return out, rows.Err()
}

// SetSetting upserts a single setting row, preserving any existing
// description when description is empty. Unknown keys are preserved
// by the store but not consulted by the core.
func (s *SQLiteConfigStore) SetSetting(ctx context.Context, key, value, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO setting (key, value, description, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			description = CASE WHEN excluded.description = '' THEN setting.description ELSE excluded.description END,
			updated_at = excluded.updated_at
	`, key, value, description, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("store: set setting %s: %w", key, err)
	}
	return nil
}
