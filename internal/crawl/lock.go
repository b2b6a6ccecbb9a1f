package crawl

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// processLock is a cross-process exclusive lock guarding startCrawl, so
// two filebrain-crawl processes never walk the same data directory at
// once. Wraps gofrs/flock with a create-parent-dir-then-TryLock shape.
type processLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// newProcessLock creates a lock for the given data directory's
// crawl.lock file.
func newProcessLock(dataDir string) *processLock {
	lockPath := filepath.Join(dataDir, "crawl.lock")
	return &processLock{path: lockPath, flock: flock.New(lockPath)}
}

// TryLock attempts to acquire the lock without blocking. Returns false,
// nil if another process already holds it.
func (l *processLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("crawl: create lock directory: %w", err)
	}
	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("crawl: acquire lock: %w", err)
	}
	if acquired {
		l.locked = true
	}
	return acquired, nil
}

// Unlock releases the lock. Safe to call when not held.
func (l *processLock) Unlock() error {
	if !l.locked {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("crawl: release lock: %w", err)
	}
	l.locked = false
	return nil
}
