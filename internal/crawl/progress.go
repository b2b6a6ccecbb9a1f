package crawl

import "log/slog"

// Phase is one of the crawl manager's five states. The monitoring flag is
// orthogonal and tracked separately on Manager.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseVerifying   Phase = "verifying"
	PhaseDiscovering Phase = "discovering"
	PhaseIndexing    Phase = "indexing"
	PhaseStopping    Phase = "stopping"
)

// Snapshot is the externally observed progress/status view returned by
// Manager.Snapshot and rendered by the status command and the TUI.
type Snapshot struct {
	Running               bool
	JobType               string // "crawl" | "monitor" | "crawl+monitor" | ""
	CurrentPhase          Phase
	StartTimeMs           int64
	ElapsedSeconds        float64
	DiscoveryProgress     int
	IndexingProgress      int
	VerificationProgress  int
	FilesDiscovered       int
	FilesIndexed          int
	FilesDeleted          int
	FilesSkipped          int
	FilesError            int
	OrphanCount           int
	QueueSize             int
	MonitoringActive      bool
	EstimatedCompletionMs *int64
}

// percentClamped computes 100*numerator/denominator clamped to [0,100].
// denominator <= 0 is treated as "nothing to do yet" (0%).
func percentClamped(numerator, denominator int) int {
	if denominator <= 0 {
		return 0
	}
	pct := 100 * numerator / denominator
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// indexingProgress computes the indexing percentage with one invariant:
// while queue_size > 0, the result may never reach 100. A naive ratio can
// hit 100% on a small early batch before the rest of the queue is known
// about, so that case clamps to 99 and logs a warning instead.
func indexingProgress(completed, queueSize, discoveredSoFar int) int {
	denom := discoveredSoFar
	if completed+queueSize > denom {
		denom = completed + queueSize
	}
	pct := percentClamped(completed, denom)
	if queueSize > 0 && pct >= 100 {
		slog.Warn("indexing_progress computed 100 with nonzero queue, clamping",
			"completed", completed, "queue_size", queueSize, "discovered_so_far", discoveredSoFar)
		pct = 99
	}
	return pct
}

// maxMonotonic returns the larger of two monotonically-nondecreasing
// counters, so files_discovered never shrinks across sources (discoverer
// vs. a resumed prior count).
func maxMonotonic(a, b int) int {
	if a > b {
		return a
	}
	return b
}
