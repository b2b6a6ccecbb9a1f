// Package monitor turns raw filesystem events from internal/watcher into
// model.CrawlOperation values and publishes them into a dedup queue,
// stamping source=watch. Create/modify events are re-stat'd at handling
// time, since the watcher's own timestamp is stale by the time the event
// is processed, and a delete event for a path that still exists is
// treated as a benign create/delete race and dropped.
package monitor

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/Hamza5/file-brain/internal/fsmeta"
	"github.com/Hamza5/file-brain/internal/model"
	"github.com/Hamza5/file-brain/internal/pathfilter"
	"github.com/Hamza5/file-brain/internal/queue"
	"github.com/Hamza5/file-brain/internal/watcher"
)

// Monitor owns one HybridWatcher per included root and fans its events
// into a shared dedup queue as watch-sourced CrawlOperations.
type Monitor struct {
	filter   *pathfilter.Filter
	q        *queue.DedupQueue[model.CrawlOperation]
	opts     watcher.Options
	watchers []*watcher.HybridWatcher
}

// New creates a Monitor over filter's included roots, publishing into q.
func New(filter *pathfilter.Filter, q *queue.DedupQueue[model.CrawlOperation], opts watcher.Options) *Monitor {
	return &Monitor{filter: filter, q: q, opts: opts}
}

// Run starts a watcher per included root and blocks, translating and
// enqueueing events until ctx is cancelled or a root's watcher exits.
func (m *Monitor) Run(ctx context.Context) error {
	roots := m.filter.Roots()
	if len(roots) == 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	errCh := make(chan error, len(roots))
	for _, root := range roots {
		w, err := watcher.NewHybridWatcher(m.opts, m.filter)
		if err != nil {
			return err
		}
		m.watchers = append(m.watchers, w)

		go m.forward(ctx, w)

		root := root
		go func() {
			errCh <- w.Start(ctx, root)
		}()
	}

	select {
	case <-ctx.Done():
		m.stopAll()
		return ctx.Err()
	case err := <-errCh:
		m.stopAll()
		return err
	}
}

func (m *Monitor) stopAll() {
	for _, w := range m.watchers {
		_ = w.Stop()
	}
}

// forward drains one watcher's batched events, converts each to a
// CrawlOperation, and publishes it into the queue.
func (m *Monitor) forward(ctx context.Context, w *watcher.HybridWatcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-w.Events():
			if !ok {
				return
			}
			for _, ev := range batch {
				m.handle(ctx, ev)
			}
		case err, ok := <-w.Errors():
			if !ok {
				continue
			}
			slog.Warn("monitor watcher error", slog.String("error", err.Error()))
		}
	}
}

func (m *Monitor) handle(ctx context.Context, ev watcher.FileEvent) {
	if ev.IsDir {
		return
	}

	path := ev.Path
	if !m.filter.InScope(path) {
		return
	}

	switch ev.Operation {
	case watcher.OpCreate, watcher.OpModify:
		info, err := os.Stat(path)
		if err != nil {
			// Raced with deletion between the event firing and handling it.
			return
		}
		kind := model.OpCreate
		if ev.Operation == watcher.OpModify {
			kind = model.OpEdit
		}
		op := model.CrawlOperation{
			Kind:         kind,
			FilePath:     path,
			FileSize:     info.Size(),
			ModifiedTime: info.ModTime(),
			DiscoveredAt: time.Now(),
			Source:       model.SourceWatch,
		}
		if kind == model.OpCreate {
			op.CreatedTime = fsmeta.CreatedTime(info)
		}
		m.publish(ctx, op)

	case watcher.OpDelete, watcher.OpRename:
		// fsnotify reports the old name of a renamed file as OpRename
		// (the new name arrives as its own create), so it is removed
		// like a delete. Polling reports renames as delete plus create.
		if _, err := os.Stat(path); err == nil {
			// File still exists: delete raced with a recreate, ignore.
			return
		}
		m.publish(ctx, model.CrawlOperation{
			Kind:         model.OpDelete,
			FilePath:     path,
			DiscoveredAt: time.Now(),
			Source:       model.SourceWatch,
		})
	}
}

func (m *Monitor) publish(ctx context.Context, op model.CrawlOperation) {
	if err := m.q.Put(ctx, op.Key(), op); err != nil {
		slog.Warn("monitor failed to enqueue operation",
			slog.String("path", op.FilePath),
			slog.String("error", err.Error()))
	}
}
