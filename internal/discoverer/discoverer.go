// Package discoverer implements a recursive, cancellable walk over the
// included watch-path roots that emits one "create" CrawlOperation per
// in-scope regular file, built on filepath.WalkDir and the
// WatchPath/excluded-subtree model internal/pathfilter applies.
package discoverer

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Hamza5/file-brain/internal/fsmeta"
	"github.com/Hamza5/file-brain/internal/model"
	"github.com/Hamza5/file-brain/internal/pathfilter"
)

// Result is one discovery outcome: either a file operation, a non-fatal
// walk error, or a root-finished marker. RootDone is set (and Op/Err left
// nil) once per included root, after that root's walk completes, letting
// internal/crawl compute discovery_progress = 100 * processed_roots /
// total_roots without re-walking anything itself.
type Result struct {
	Op       *model.CrawlOperation
	Err      error
	RootDone string
}

// Discoverer walks the included roots of a watch configuration.
type Discoverer struct {
	filter *pathfilter.Filter
	paths  []model.WatchPath
}

// New creates a Discoverer over the given filter and the WatchPath rows
// it was built from (needed to look up include_subdirectories per root).
func New(filter *pathfilter.Filter, paths []model.WatchPath) *Discoverer {
	return &Discoverer{filter: filter, paths: paths}
}

// TotalRoots returns the number of included roots this Discoverer will
// walk, the denominator of discovery_progress.
func (d *Discoverer) TotalRoots() int {
	return len(d.filter.Roots())
}

// Discover walks every included root in configuration order and streams
// one Result per in-scope file over the returned channel, which closes
// when the walk finishes or ctx is cancelled. Files under root R_i are
// emitted before files under R_(i+1); within a root only directory-walk
// order is guaranteed. A RootDone result follows each root's files.
func (d *Discoverer) Discover(ctx context.Context) <-chan Result {
	out := make(chan Result, 64)

	go func() {
		defer close(out)
		for _, root := range d.filter.Roots() {
			if ctx.Err() != nil {
				return
			}
			includeSub := pathfilter.IncludeSubdirectories(d.paths, root)
			d.walkRoot(ctx, root, includeSub, out)
			select {
			case out <- Result{RootDone: root}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

func (d *Discoverer) walkRoot(ctx context.Context, root string, includeSubdirectories bool, out chan<- Result) {
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if walkErr != nil {
			// Transient I/O: log and continue past this entry.
			slog.Info("discoverer walk error", slog.String("path", path), slog.String("error", walkErr.Error()))
			return nil
		}

		if entry.IsDir() {
			if path != root && d.filter.PruneDir(path) {
				return fs.SkipDir
			}
			if path != root && !includeSubdirectories {
				return fs.SkipDir
			}
			return nil
		}

		if entry.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		if !d.filter.InScope(path) {
			return nil
		}

		info, statErr := os.Stat(path)
		if statErr != nil {
			if os.IsNotExist(statErr) {
				// Raced with deletion: skip silently.
				return nil
			}
			slog.Info("discoverer stat error", slog.String("path", path), slog.String("error", statErr.Error()))
			return nil
		}
		if info.IsDir() {
			return nil
		}

		op := &model.CrawlOperation{
			Kind:         model.OpCreate,
			FilePath:     path,
			FileSize:     info.Size(),
			ModifiedTime: info.ModTime(),
			CreatedTime:  fsmeta.CreatedTime(info),
			DiscoveredAt: nowFunc(),
			Source:       model.SourceCrawl,
		}

		select {
		case out <- Result{Op: op}:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})

	if err != nil && err != context.Canceled {
		select {
		case out <- Result{Err: err}:
		case <-ctx.Done():
		}
	}
}
