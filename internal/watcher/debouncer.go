package watcher

import (
	"log/slog"
	"sync"
	"time"
)

// Debouncer collapses the event storms a watched root produces (editor
// save-rename dances, archive unpacks, rsync runs) into at most one
// event per path before the monitor translates them into crawl
// operations. Two events for the same path inside the window merge:
//   - create then modify stays a create: the file is still new to the index
//   - create then delete cancels out: the indexer never needs to see it
//   - modify then delete keeps the delete: the file is gone
//   - delete then create becomes a modify: the file was replaced in place
type Debouncer struct {
	window time.Duration

	mu      sync.Mutex
	byPath  map[string]pendingChange
	timer   *time.Timer
	out     chan []FileEvent
	stopped bool
}

// pendingChange is one path's merged event plus the operation that
// opened its window, which decides how the next event folds in.
type pendingChange struct {
	event   FileEvent
	firstOp Operation
}

// NewDebouncer creates a debouncer that emits a batch once no event has
// arrived for window.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window: window,
		byPath: make(map[string]pendingChange),
		out:    make(chan []FileEvent, 10),
	}
}

// Add folds event into its path's pending change and re-arms the flush
// timer, so the batch goes out window after the last event of a burst.
func (d *Debouncer) Add(event FileEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if existing, ok := d.byPath[event.Path]; ok {
		merged, keep := mergeEvents(existing, event)
		if !keep {
			delete(d.byPath, event.Path)
		} else {
			d.byPath[event.Path] = merged
		}
	} else {
		d.byPath[event.Path] = pendingChange{event: event, firstOp: event.Operation}
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

// mergeEvents applies the coalescing rules above. keep=false means the
// two events cancelled out and the path has nothing pending.
func mergeEvents(existing pendingChange, incoming FileEvent) (pendingChange, bool) {
	switch {
	case existing.firstOp == OpCreate && incoming.Operation == OpModify:
		// Still a brand-new file as far as the index is concerned.
		return existing, true
	case existing.firstOp == OpCreate && incoming.Operation == OpDelete:
		return pendingChange{}, false
	case existing.firstOp == OpDelete && incoming.Operation == OpCreate:
		// Replaced in place: the index sees an edit of existing content.
		incoming.Operation = OpModify
		return pendingChange{event: incoming, firstOp: existing.firstOp}, true
	default:
		// Latest event wins; the window keeps its opening operation so a
		// further event still merges against the original sequence.
		return pendingChange{event: incoming, firstOp: existing.firstOp}, true
	}
}

// flush emits every pending change as one batch. A full output channel
// drops the batch rather than blocking the timer goroutine; the
// periodic crawl re-verifies the index against disk, so a dropped batch
// is late, not lost.
func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || len(d.byPath) == 0 {
		return
	}

	batch := make([]FileEvent, 0, len(d.byPath))
	for _, pc := range d.byPath {
		batch = append(batch, pc.event)
	}
	d.byPath = make(map[string]pendingChange)

	select {
	case d.out <- batch:
	default:
		slog.Warn("debouncer output full, dropping batch",
			slog.Int("batch_size", len(batch)))
	}
}

// Output returns the channel of coalesced event batches.
func (d *Debouncer) Output() <-chan []FileEvent {
	return d.out
}

// Stop discards pending changes and closes the output channel. Safe to
// call more than once.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.out)
}
