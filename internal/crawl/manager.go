// Package crawl implements the crawl engine's state machine: the only
// component that updates CrawlerState. It takes its dependencies
// ({Config, client, registry, ...}) injected rather than constructing
// them, with one method per externally-triggered transition and
// mutex-guarded shared state, driving a five-state machine
// (idle/verifying/discovering/indexing/stopping) that owns and
// sequences the discoverer, indexer pool, verifier, and monitor.
package crawl

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Hamza5/file-brain/internal/discoverer"
	"github.com/Hamza5/file-brain/internal/extract"
	"github.com/Hamza5/file-brain/internal/indexer"
	"github.com/Hamza5/file-brain/internal/model"
	"github.com/Hamza5/file-brain/internal/monitor"
	"github.com/Hamza5/file-brain/internal/pathfilter"
	"github.com/Hamza5/file-brain/internal/queue"
	"github.com/Hamza5/file-brain/internal/readiness"
	"github.com/Hamza5/file-brain/internal/searchclient"
	"github.com/Hamza5/file-brain/internal/store"
	"github.com/Hamza5/file-brain/internal/verifier"
	"github.com/Hamza5/file-brain/internal/watcher"
)

// SearchEngineServiceName is the readiness-registry name the crawl
// manager checks before leaving idle.
const SearchEngineServiceName = "searchengine"

// drainPollInterval and drainIdleStreak bound how long indexing waits,
// after discovery finishes, before declaring itself complete: the queue
// must read empty and every worker idle for this many consecutive
// polls, the same poll-with-ticker shape internal/readiness.WaitFor uses.
const (
	drainPollInterval = 100 * time.Millisecond
	drainIdleStreak   = 3
)

// Config holds the crawl manager's tunables, a typed projection of the
// setting table plus the dependencies it wires together.
type Config struct {
	DataDir          string
	Extraction       *extract.Chain
	MaxFileSizeBytes int64
	ChunkSize        int
	ChunkOverlap     int
	WorkerPoolSize   int
	QueueCapacity    int
	VerifyOnCrawl    bool
	CleanupOrphaned  bool
	StateBatchSize   int
	WatcherOptions   watcher.Options
}

// Manager is the crawl engine's state machine. One Manager per process;
// it owns the process-exclusive crawl lock.
type Manager struct {
	configStore store.ConfigStore
	client      searchclient.Client
	readiness   *readiness.Registry
	cfg         Config
	lock        *processLock

	mu         sync.Mutex
	phase      Phase
	monitoring bool
	jobType    model.JobType
	startedAt  time.Time

	filter *pathfilter.Filter
	paths  []model.WatchPath

	totalRoots      int
	processedRoots  int
	discoveredSoFar int
	discoveryDone   bool

	verifyTotal     int
	verifyProcessed int
	orphanCount     int

	q    *queue.DedupQueue[model.CrawlOperation]
	pool *indexer.Pool

	mon           *monitor.Monitor
	monitorCancel context.CancelFunc

	lastPersisted model.CrawlerState
}

// New creates a Manager. cfg.WorkerPoolSize <= 0 defaults to 4;
// cfg.QueueCapacity <= 0 defaults to 1000.
func New(configStore store.ConfigStore, client searchclient.Client, reg *readiness.Registry, cfg Config) *Manager {
	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = 4
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = 1000
	}
	if cfg.StateBatchSize <= 0 {
		cfg.StateBatchSize = 20
	}
	return &Manager{
		configStore: configStore,
		client:      client,
		readiness:   reg,
		cfg:         cfg,
		lock:        newProcessLock(cfg.DataDir),
		phase:       PhaseIdle,
		// One queue for the life of the Manager: the discoverer and the
		// monitor publish into the same dedup queue, so burst edits and
		// concurrent discovery on one path collapse to a single pending
		// operation.
		q: queue.New[model.CrawlOperation](cfg.QueueCapacity),
	}
}

// StartCrawl transitions idle → verifying (or discovering, if
// verification is disabled) and runs the crawl to completion in the
// background, returning once the job has actually started (not once it
// finishes). withMonitor additionally starts the monitor for the same
// watch configuration, running independently of the crawl job's own
// lifetime.
func (m *Manager) StartCrawl(ctx context.Context, withMonitor bool) error {
	m.mu.Lock()
	if m.phase != PhaseIdle {
		m.mu.Unlock()
		return fmt.Errorf("crawl: already running (phase=%s)", m.phase)
	}
	m.mu.Unlock()

	if !m.readiness.IsReady(SearchEngineServiceName) {
		return fmt.Errorf("crawl: %s is not ready", SearchEngineServiceName)
	}

	acquired, err := m.lock.TryLock()
	if err != nil {
		return err
	}
	if !acquired {
		return fmt.Errorf("crawl: another process holds the crawl lock")
	}

	paths, err := m.configStore.ListWatchPaths(ctx)
	if err != nil {
		_ = m.lock.Unlock()
		return fmt.Errorf("crawl: list watch paths: %w", err)
	}
	filter := pathfilter.New(paths)
	if len(filter.Roots()) == 0 {
		_ = m.lock.Unlock()
		return fmt.Errorf("crawl: no enabled watch paths configured")
	}

	m.mu.Lock()
	m.paths = paths
	m.filter = filter
	m.totalRoots = 0
	m.processedRoots = 0
	m.discoveredSoFar = 0
	m.discoveryDone = false
	m.verifyTotal = 0
	m.verifyProcessed = 0
	m.orphanCount = 0
	// Counters are monotonic within a run and reset at the start of a new
	// crawl; dropping the previous run's persisted snapshot here keeps
	// maxMonotonic from resurrecting its files_discovered.
	m.lastPersisted = model.CrawlerState{}
	m.startedAt = time.Now()
	m.jobType = model.JobTypeCrawl
	if withMonitor {
		m.jobType = model.JobTypeCrawlMonitor
	}
	m.phase = PhaseVerifying
	if !m.cfg.VerifyOnCrawl {
		m.phase = PhaseDiscovering
	}
	m.mu.Unlock()

	m.persistState(ctx)

	go func() {
		defer func() {
			_ = m.lock.Unlock()
		}()
		m.runCrawl(ctx)
	}()

	if withMonitor {
		if err := m.StartMonitoring(ctx); err != nil {
			slog.Warn("crawl: failed to start monitor alongside crawl", "error", err.Error())
		}
	}

	return nil
}

// runCrawl drives one verify → discover+index → completion pass and
// returns the manager to idle. A verifier or discoverer failure is
// logged; that phase is simply marked complete rather than aborting
// the job.
func (m *Manager) runCrawl(ctx context.Context) {
	if m.currentPhase() == PhaseVerifying {
		m.runVerify(ctx)
		m.setPhase(PhaseDiscovering)
	}

	m.runDiscoverAndIndex(ctx)

	m.mu.Lock()
	m.phase = PhaseStopping
	m.mu.Unlock()
	m.persistState(ctx)

	m.mu.Lock()
	m.phase = PhaseIdle
	if m.monitoring {
		m.jobType = model.JobTypeMonitor
	} else {
		m.jobType = ""
	}
	m.mu.Unlock()
	m.persistState(ctx)
}

func (m *Manager) runVerify(ctx context.Context) {
	v := verifier.New(m.client, m.filter, verifier.DefaultBatchSize)
	v.DryRun = !m.cfg.CleanupOrphaned
	report, err := v.Run(ctx, func(processed, total int) {
		m.mu.Lock()
		m.verifyProcessed = processed
		m.verifyTotal = total
		m.mu.Unlock()
	})
	if err != nil {
		slog.Warn("crawl: verifier failed, continuing to discovery", "error", err.Error())
		return
	}
	m.mu.Lock()
	m.orphanCount = report.OrphanedRemoved
	m.mu.Unlock()
}

func (m *Manager) runDiscoverAndIndex(ctx context.Context) {
	d := discoverer.New(m.filter, m.paths)
	m.mu.Lock()
	m.totalRoots = d.TotalRoots()
	m.mu.Unlock()

	ix := indexer.New(m.cfg.Extraction, m.client, indexer.Config{
		MaxFileSizeBytes: m.cfg.MaxFileSizeBytes,
		ChunkSize:        m.cfg.ChunkSize,
		ChunkOverlap:     m.cfg.ChunkOverlap,
	})
	pool := indexer.NewPool(ix, m.q, m.cfg.WorkerPoolSize)
	m.mu.Lock()
	m.pool = pool
	m.mu.Unlock()

	poolCtx, cancelPool := context.WithCancel(ctx)
	defer cancelPool()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := m.pool.Run(poolCtx); err != nil {
			slog.Warn("crawl: indexer pool exited with error", "error", err.Error())
		}
	}()

	processed := 0
	for res := range d.Discover(ctx) {
		switch {
		case res.RootDone != "":
			m.mu.Lock()
			m.processedRoots++
			m.mu.Unlock()
		case res.Err != nil:
			slog.Info("crawl: discoverer reported a non-fatal error", "error", res.Err.Error())
		case res.Op != nil:
			if err := m.q.Put(ctx, res.Op.Key(), *res.Op); err != nil {
				slog.Info("crawl: stopped enqueueing discovered files", "error", err.Error())
			}
			m.mu.Lock()
			m.discoveredSoFar++
			m.mu.Unlock()
			processed++
			if processed%m.cfg.StateBatchSize == 0 {
				m.persistState(ctx)
			}
		}
	}

	m.mu.Lock()
	m.discoveryDone = true
	// Discovery has ended; the job stays active while indexing drains
	// whatever the walk and the monitor have queued.
	m.phase = PhaseIndexing
	m.mu.Unlock()
	m.persistState(ctx)

	m.waitForDrain(ctx)
	cancelPool()
	wg.Wait()
}

// waitForDrain blocks until the dedup queue is empty and every worker
// has been idle for drainIdleStreak consecutive polls: the operational
// definition of "discovery finished, dedup queue empty, all dequeued
// operations have either succeeded or failed."
func (m *Manager) waitForDrain(ctx context.Context) {
	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()

	idleStreak := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m.q.QSize() == 0 && m.allWorkersIdle() {
				idleStreak++
				if idleStreak >= drainIdleStreak {
					return
				}
			} else {
				idleStreak = 0
			}
		}
	}
}

func (m *Manager) allWorkersIdle() bool {
	for _, w := range m.pool.Workers() {
		if w.CurrentFile() != "" {
			return false
		}
	}
	return true
}

// StopCrawl marks a running crawl job's phase as stopping; a call while
// idle is a no-op, so repeated calls are harmless. It does not cancel
// the job: discovery and indexing keep running and later phase changes
// overwrite the mark. The crawl's work stops only when the ctx passed
// to StartCrawl is cancelled.
func (m *Manager) StopCrawl(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase == PhaseIdle {
		return
	}
	m.phase = PhaseStopping
}

// StartMonitoring starts the monitor over the manager's current watch
// configuration, if not already running. Orthogonal to crawl phase.
func (m *Manager) StartMonitoring(ctx context.Context) error {
	m.mu.Lock()
	if m.monitoring {
		m.mu.Unlock()
		return nil
	}
	paths := m.paths
	filter := m.filter
	q := m.q
	m.mu.Unlock()

	if filter == nil {
		loaded, err := m.configStore.ListWatchPaths(ctx)
		if err != nil {
			return fmt.Errorf("crawl: list watch paths for monitor: %w", err)
		}
		paths = loaded
		filter = pathfilter.New(paths)
	}

	monCtx, cancel := context.WithCancel(ctx)
	mon := monitor.New(filter, q, m.cfg.WatcherOptions)

	// The monitor needs its own drain: a crawl's pool is cancelled when
	// the crawl completes, but watch events keep arriving for as long as
	// monitoring is active.
	ix := indexer.New(m.cfg.Extraction, m.client, indexer.Config{
		MaxFileSizeBytes: m.cfg.MaxFileSizeBytes,
		ChunkSize:        m.cfg.ChunkSize,
		ChunkOverlap:     m.cfg.ChunkOverlap,
	})
	monPool := indexer.NewPool(ix, q, m.cfg.WorkerPoolSize)
	go func() {
		if err := monPool.Run(monCtx); err != nil {
			slog.Warn("crawl: monitor pool exited with error", "error", err.Error())
		}
	}()

	m.mu.Lock()
	m.mon = mon
	m.monitorCancel = cancel
	m.monitoring = true
	m.paths = paths
	m.filter = filter
	if m.pool == nil {
		m.pool = monPool
	}
	if m.jobType == "" {
		m.jobType = model.JobTypeMonitor
	} else if m.jobType == model.JobTypeCrawl {
		m.jobType = model.JobTypeCrawlMonitor
	}
	m.mu.Unlock()

	go func() {
		if err := mon.Run(monCtx); err != nil && monCtx.Err() == nil {
			slog.Warn("crawl: monitor exited with error", "error", err.Error())
		}
		m.mu.Lock()
		m.monitoring = false
		if m.jobType == model.JobTypeMonitor {
			m.jobType = ""
		} else if m.jobType == model.JobTypeCrawlMonitor {
			m.jobType = model.JobTypeCrawl
		}
		m.mu.Unlock()
	}()

	m.persistState(ctx)
	return nil
}

// StopMonitoring stops the monitor, if running. Idempotent.
func (m *Manager) StopMonitoring() {
	m.mu.Lock()
	cancel := m.monitorCancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// ClearIndex clears the search engine's collection and resets
// CrawlerState's counters to zero, preserving watch_path rows
// untouched.
func (m *Manager) ClearIndex(ctx context.Context) error {
	if err := m.client.ClearAll(ctx); err != nil {
		return fmt.Errorf("crawl: clear index: %w", err)
	}

	m.mu.Lock()
	m.discoveredSoFar = 0
	m.verifyTotal = 0
	m.verifyProcessed = 0
	m.orphanCount = 0
	m.mu.Unlock()

	return m.configStore.SaveCrawlerState(ctx, model.CrawlerState{
		MonitoringActive: m.monitoring,
		CrawlJobType:     m.currentJobType(),
	})
}

func (m *Manager) currentPhase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

func (m *Manager) setPhase(p Phase) {
	m.mu.Lock()
	m.phase = p
	m.mu.Unlock()
}

func (m *Manager) currentJobType() model.JobType {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jobType
}

// persistState writes the current in-memory snapshot to the config
// store. Called at phase boundaries and every StateBatchSize processed
// operations, batching writes rather than hitting the store once per
// file.
func (m *Manager) persistState(ctx context.Context) {
	snap := m.Snapshot()
	state := model.CrawlerState{
		CrawlJobRunning:   snap.CurrentPhase != PhaseIdle,
		CrawlJobType:      model.JobType(snap.JobType),
		MonitoringActive:  snap.MonitoringActive,
		FilesDiscovered:   snap.FilesDiscovered,
		FilesIndexed:      snap.FilesIndexed,
		FilesDeleted:      snap.FilesDeleted,
		FilesError:        snap.FilesError,
		FilesSkipped:      snap.FilesSkipped,
		DiscoveryProgress: snap.DiscoveryProgress,
		IndexingProgress:  snap.IndexingProgress,
	}
	if !m.startedAt.IsZero() {
		state.CrawlJobStartedAt = m.startedAt
	}
	if err := m.configStore.SaveCrawlerState(ctx, state); err != nil {
		slog.Warn("crawl: failed to persist crawler state", "error", err.Error())
		return
	}
	m.mu.Lock()
	m.lastPersisted = state
	m.mu.Unlock()
}

// Snapshot returns the externally observed progress/status view.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	var indexed, deleted, errored, skipped int
	queueSize := 0
	if m.pool != nil {
		indexed = int(m.pool.Counters.Indexed.Load())
		deleted = int(m.pool.Counters.Deleted.Load())
		errored = int(m.pool.Counters.Errors.Load())
		skipped = int(m.pool.Counters.Skipped.Load())
	}
	if m.q != nil {
		queueSize = m.q.QSize()
	}

	discovered := maxMonotonic(m.discoveredSoFar, m.lastPersisted.FilesDiscovered)

	discProgress := percentClamped(m.processedRoots, m.totalRoots)
	if m.discoveryDone {
		discProgress = 100
	}
	verifyProgress := percentClamped(m.verifyProcessed, m.verifyTotal)
	// indexing_progress tracks total operations drained from the queue
	// (indexed, deleted, skipped, or errored), not files_indexed alone:
	// completed / max(discovered, completed+queue).
	idxProgress := indexingProgress(indexed+deleted+errored+skipped, queueSize, discovered)

	elapsed := 0.0
	startMs := int64(0)
	if !m.startedAt.IsZero() {
		elapsed = time.Since(m.startedAt).Seconds()
		startMs = m.startedAt.UnixMilli()
	}

	// Linear extrapolation from indexing progress; null until there is
	// enough progress to extrapolate from.
	var estMs *int64
	if m.phase != PhaseIdle && idxProgress > 0 && elapsed > 0 {
		remaining := elapsed * float64(100-idxProgress) / float64(idxProgress)
		v := time.Now().Add(time.Duration(remaining * float64(time.Second))).UnixMilli()
		estMs = &v
	}

	return Snapshot{
		Running:               m.phase != PhaseIdle,
		JobType:               string(m.jobType),
		CurrentPhase:          m.phase,
		StartTimeMs:           startMs,
		ElapsedSeconds:        elapsed,
		DiscoveryProgress:     discProgress,
		IndexingProgress:      idxProgress,
		VerificationProgress:  verifyProgress,
		FilesDiscovered:       discovered,
		FilesIndexed:          indexed,
		FilesDeleted:          deleted,
		FilesSkipped:          skipped,
		FilesError:            errored,
		OrphanCount:           m.orphanCount,
		QueueSize:             queueSize,
		MonitoringActive:      m.monitoring,
		EstimatedCompletionMs: estMs,
	}
}

// Resume implements the persisted-resume behavior: on process start,
// after delay (to let dependencies become ready), read CrawlerState and
// restart whatever was running.
func (m *Manager) Resume(ctx context.Context, delay time.Duration) {
	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return
	}

	state, err := m.configStore.LoadCrawlerState(ctx)
	if err != nil {
		slog.Warn("crawl: resume: failed to load crawler state", "error", err.Error())
		return
	}

	if state.CrawlJobRunning {
		withMonitor := state.CrawlJobType == model.JobTypeCrawlMonitor || state.MonitoringActive
		if err := m.StartCrawl(ctx, withMonitor); err != nil {
			slog.Warn("crawl: resume: failed to restart crawl", "error", err.Error())
		}
		return
	}
	if state.MonitoringActive {
		if err := m.StartMonitoring(ctx); err != nil {
			slog.Warn("crawl: resume: failed to restart monitor", "error", err.Error())
		}
	}
}
