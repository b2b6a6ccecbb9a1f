package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// PollingWatcher detects changes under a watch root by rescanning it on
// an interval and diffing against the previous pass. It is the fallback
// event source when fsnotify cannot watch the root: inotify instance
// limits, network mounts, and Docker volumes are the usual reasons a
// configured watch path ends up here.
type PollingWatcher struct {
	interval time.Duration
	rootPath string

	mu       sync.Mutex
	lastSeen map[string]statProbe
	stopped  bool

	events chan FileEvent
	errors chan error
	stopCh chan struct{}
}

// statProbe is the per-entry fingerprint a poll compares between
// passes. mtime plus size is the same change signal the indexer's own
// skip-if-unchanged hash check backstops, so a false negative here is
// caught at the next crawl.
type statProbe struct {
	modTime time.Time
	size    int64
	isDir   bool
}

// NewPollingWatcher creates a polling watcher that rescans every
// interval.
func NewPollingWatcher(interval time.Duration) *PollingWatcher {
	return &PollingWatcher{
		interval: interval,
		lastSeen: make(map[string]statProbe),
		events:   make(chan FileEvent, 100),
		errors:   make(chan error, 10),
		stopCh:   make(chan struct{}),
	}
}

// Start establishes the baseline scan of path and then polls until ctx
// is cancelled or Stop is called. Paths on the event channel are
// root-relative; the hybrid watcher joins them back onto the root.
func (p *PollingWatcher) Start(ctx context.Context, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}
	if _, err := os.Stat(absPath); err != nil {
		// Watch roots are user configuration; a root that cannot even be
		// statted should fail monitor start loudly, not poll nothing.
		return fmt.Errorf("watch root unavailable: %w", err)
	}
	p.rootPath = absPath

	baseline, err := p.snapshotTree()
	if err != nil {
		return fmt.Errorf("perform initial scan: %w", err)
	}
	p.mu.Lock()
	p.lastSeen = baseline
	p.mu.Unlock()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = p.Stop()
			return ctx.Err()
		case <-p.stopCh:
			return nil
		case <-ticker.C:
			if err := p.pollOnce(); err != nil {
				// One failed pass is not fatal; the next tick rescans.
				select {
				case p.errors <- err:
				default:
				}
			}
		}
	}
}

// Stop ends polling and closes both channels. Safe to call more than
// once.
func (p *PollingWatcher) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return nil
	}

	p.stopped = true
	close(p.stopCh)
	close(p.events)
	close(p.errors)
	return nil
}

// Events returns the channel of detected file events.
func (p *PollingWatcher) Events() <-chan FileEvent {
	return p.events
}

// Errors returns the channel of per-pass scan errors.
func (p *PollingWatcher) Errors() <-chan error {
	return p.errors
}

// snapshotTree walks the root and fingerprints every entry. Entries
// that vanish or turn unreadable mid-walk are skipped; the next pass
// sees whatever state they settled into.
func (p *PollingWatcher) snapshotTree() (map[string]statProbe, error) {
	seen := make(map[string]statProbe)
	err := filepath.WalkDir(p.rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}

		relPath, err := filepath.Rel(p.rootPath, path)
		if err != nil || relPath == "." {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}

		seen[relPath] = statProbe{
			modTime: info.ModTime(),
			size:    info.Size(),
			isDir:   d.IsDir(),
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk watch root: %w", err)
	}
	return seen, nil
}

// pollOnce rescans the root, diffs against the previous pass, and emits
// one event per changed entry.
func (p *PollingWatcher) pollOnce() error {
	current, err := p.snapshotTree()
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for relPath, probe := range current {
		prev, existed := p.lastSeen[relPath]
		switch {
		case !existed:
			p.emitEvent(FileEvent{
				Path:      relPath,
				Operation: OpCreate,
				IsDir:     probe.isDir,
				Timestamp: time.Now(),
			})
		case prev.modTime != probe.modTime || prev.size != probe.size:
			p.emitEvent(FileEvent{
				Path:      relPath,
				Operation: OpModify,
				IsDir:     probe.isDir,
				Timestamp: time.Now(),
			})
		}
	}

	for relPath, probe := range p.lastSeen {
		if _, stillThere := current[relPath]; !stillThere {
			p.emitEvent(FileEvent{
				Path:      relPath,
				Operation: OpDelete,
				IsDir:     probe.isDir,
				Timestamp: time.Now(),
			})
		}
	}

	p.lastSeen = current
	return nil
}

// emitEvent sends one event without blocking the poll loop. Called with
// the lock held.
func (p *PollingWatcher) emitEvent(event FileEvent) {
	if p.stopped {
		return
	}

	select {
	case p.events <- event:
	default:
		slog.Warn("polling watcher buffer full, dropping event",
			slog.String("path", event.Path),
			slog.String("op", event.Operation.String()),
		)
	}
}
