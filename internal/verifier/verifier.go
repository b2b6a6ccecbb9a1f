// Package verifier runs before discovery (when enabled): it scans the
// search engine's chunk-0 documents in batches and removes any whose
// file no longer exists on disk or has fallen out of scope under the
// current watch configuration. It reuses internal/discoverer's
// path-filter/os.Stat pattern for the existence and scope checks.
package verifier

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/Hamza5/file-brain/internal/pathfilter"
	"github.com/Hamza5/file-brain/internal/searchclient"
)

// DefaultBatchSize is the default scan page size.
const DefaultBatchSize = 100

// Report is the outcome of one verification pass.
type Report struct {
	Processed       int
	OrphanedRemoved int
	Errors          int
}

// ProgressFunc is called after every batch with the number of documents
// processed so far and the total from Count, so the crawl manager can fold it into the externally observed
// verification progress.
type ProgressFunc func(processed, total int)

// Verifier scans a search-engine client's chunk-0 documents and removes
// orphans: files that no longer exist, or are no longer in scope.
type Verifier struct {
	Client    searchclient.Client
	Filter    *pathfilter.Filter
	BatchSize int

	// DryRun reports orphans in Report.OrphanedRemoved's place without
	// calling RemoveByPath. Wired to the cleanup_orphaned_files setting:
	// when the operator has disabled automatic cleanup, verification
	// still counts orphans so the snapshot stays accurate, it just
	// leaves the documents in place.
	DryRun bool
}

// New creates a Verifier. A zero BatchSize uses DefaultBatchSize.
func New(client searchclient.Client, filter *pathfilter.Filter, batchSize int) *Verifier {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Verifier{Client: client, Filter: filter, BatchSize: batchSize}
}

// Run performs one verification pass. Safe to interrupt between
// batches: ctx cancellation stops the scan without leaving partial
// per-batch deletes undone (each batch's deletes complete before the
// next batch is fetched). Only chunk 0 is ever fetched: Scan already
// returns chunk-0-only documents, so the sweep visits one document per
// file.
func (v *Verifier) Run(ctx context.Context, onProgress ProgressFunc) (Report, error) {
	var report Report

	total, err := v.Client.Count(ctx)
	if err != nil {
		return report, fmt.Errorf("verifier: count: %w", err)
	}

	offset := 0
	for {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		docs, err := v.Client.Scan(ctx, v.BatchSize, offset)
		if err != nil {
			return report, fmt.Errorf("verifier: scan at offset %d: %w", offset, err)
		}
		if len(docs) == 0 {
			break
		}

		var orphans []string
		for _, doc := range docs {
			report.Processed++
			if v.isOrphan(doc.FilePath) {
				orphans = append(orphans, doc.FilePath)
			}
		}

		removed := 0
		for _, path := range orphans {
			if v.DryRun {
				report.OrphanedRemoved++
				continue
			}
			if err := v.Client.RemoveByPath(ctx, path); err != nil {
				report.Errors++
				slog.Warn("verifier failed to remove orphan", slog.String("path", path), slog.String("error", err.Error()))
				continue
			}
			report.OrphanedRemoved++
			removed++
		}

		if onProgress != nil {
			onProgress(report.Processed, total)
		}

		// Removed documents shift the remaining ones down, so the next
		// page starts where the surviving documents of this one end.
		offset += len(docs) - removed
		if len(docs) < v.BatchSize {
			break
		}
	}

	return report, nil
}

// isOrphan reports whether path's file is gone from disk or no longer
// in scope per the watch configuration. A vanished ancestor root is
// treated the same as any other missing file, matching
// internal/discoverer's behavior.
func (v *Verifier) isOrphan(path string) bool {
	if _, err := os.Stat(path); err != nil {
		return true
	}
	return !v.Filter.InScope(path)
}
