package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Hamza5/file-brain/internal/model"
)

// LoadCrawlerState reads the singleton crawler_state row, for the
// crawl manager's persisted-resume check at process start.
func (s *SQLiteConfigStore) LoadCrawlerState(ctx context.Context) (model.CrawlerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st model.CrawlerState
	var jobType sql.NullString
	var startedAt sql.NullString

	row := s.db.QueryRowContext(ctx, `SELECT crawl_job_running, crawl_job_type,
		crawl_job_started_at, monitoring_active, files_discovered, files_indexed,
		files_error, files_skipped, files_deleted, discovery_progress, indexing_progress
		FROM crawler_state WHERE id = 1`)
	err := row.Scan(&st.CrawlJobRunning, &jobType, &startedAt, &st.MonitoringActive,
		&st.FilesDiscovered, &st.FilesIndexed, &st.FilesError, &st.FilesSkipped,
		&st.FilesDeleted, &st.DiscoveryProgress, &st.IndexingProgress)
	if err != nil {
		return model.CrawlerState{}, fmt.Errorf("store: load crawler state: %w", err)
	}

	if jobType.Valid {
		st.CrawlJobType = model.JobType(jobType.String)
	}
	if startedAt.Valid {
		st.CrawlJobStartedAt = parseTime(startedAt.String)
	}
	return st, nil
}

// SaveCrawlerState overwrites the singleton crawler_state row. The
// crawl manager batches calls to this (every N processed operations or
// phase boundary) rather than calling it per file.
func (s *SQLiteConfigStore) SaveCrawlerState(ctx context.Context, state model.CrawlerState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var jobType sql.NullString
	if state.CrawlJobType != "" {
		jobType = sql.NullString{String: string(state.CrawlJobType), Valid: true}
	}
	var startedAt sql.NullString
	if !state.CrawlJobStartedAt.IsZero() {
		startedAt = sql.NullString{String: formatTime(state.CrawlJobStartedAt), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `UPDATE crawler_state SET
		crawl_job_running = ?, crawl_job_type = ?, crawl_job_started_at = ?,
		monitoring_active = ?, files_discovered = ?, files_indexed = ?,
		files_error = ?, files_skipped = ?, files_deleted = ?,
		discovery_progress = ?, indexing_progress = ?
		WHERE id = 1`,
		state.CrawlJobRunning, jobType, startedAt, state.MonitoringActive,
		state.FilesDiscovered, state.FilesIndexed, state.FilesError,
		state.FilesSkipped, state.FilesDeleted, state.DiscoveryProgress, state.IndexingProgress)
	if err != nil {
		return fmt.Errorf("store: save crawler state: %w", err)
	}
	return nil
}
