package indexer

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/Hamza5/file-brain/internal/model"
	"github.com/Hamza5/file-brain/internal/queue"
)

// Counters aggregates the per-outcome totals CrawlerState tracks. Safe
// for concurrent increment from every pool worker.
type Counters struct {
	Indexed atomic.Int64
	Skipped atomic.Int64
	Errors  atomic.Int64
	Deleted atomic.Int64
}

func (c *Counters) add(outcome Outcome) {
	switch outcome {
	case OutcomeIndexed:
		c.Indexed.Add(1)
	case OutcomeSkipped, OutcomeNoop:
		c.Skipped.Add(1)
	case OutcomeDeleted:
		c.Deleted.Add(1)
	case OutcomeError:
		c.Errors.Add(1)
	}
}

// Worker exposes the current_file state, visible per worker for the
// progress/status surface.
type Worker struct {
	id          int
	currentFile atomic.Value // string
}

// CurrentFile returns the path the worker is processing, or "" if idle.
func (w *Worker) CurrentFile() string {
	if v, ok := w.currentFile.Load().(string); ok {
		return v
	}
	return ""
}

// Pool drains a dedup queue through N Indexer workers. Built on
// golang.org/x/sync/errgroup for the worker lifecycle: N workers under
// shared cooperative cancellation, but a single worker's file-level
// error never cancels the group: one bad file must never take down
// the whole pool, so Pool records the error in Counters and continues
// rather than returning it from the group.
type Pool struct {
	indexer *Indexer
	queue   *queue.DedupQueue[model.CrawlOperation]
	size    int

	mu      sync.Mutex
	workers []*Worker

	Counters Counters
}

// NewPool creates a pool of size workers draining q through ix.
func NewPool(ix *Indexer, q *queue.DedupQueue[model.CrawlOperation], size int) *Pool {
	if size <= 0 {
		size = 4
	}
	return &Pool{indexer: ix, queue: q, size: size}
}

// Run starts size workers and blocks until ctx is cancelled. Each worker
// loops: Get from the queue, Process, record the outcome, repeat. Get
// itself is the suspension point that honors cancellation when the
// queue is empty.
func (p *Pool) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	p.mu.Lock()
	p.workers = make([]*Worker, p.size)
	for i := range p.workers {
		p.workers[i] = &Worker{id: i}
	}
	workers := p.workers
	p.mu.Unlock()

	for _, w := range workers {
		w := w
		g.Go(func() error {
			return p.runWorker(gctx, w)
		})
	}

	return g.Wait()
}

func (p *Pool) runWorker(ctx context.Context, w *Worker) error {
	for {
		op, err := p.queue.Get(ctx)
		if err != nil {
			return nil // ctx cancelled: stop cleanly, not an error for the group.
		}

		w.currentFile.Store(op.FilePath)
		outcome, procErr := p.indexer.Process(ctx, op)
		w.currentFile.Store("")

		LogOutcome(op, outcome, procErr)
		p.Counters.add(outcome)
		p.queue.Done()
	}
}

// Workers returns a snapshot of the pool's workers for status reporting.
func (p *Pool) Workers() []*Worker {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Worker(nil), p.workers...)
}
