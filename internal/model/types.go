// Package model defines the data types shared by every crawl-engine
// component: the persisted configuration rows, the in-memory work item
// that flows through the dedup queue, and the chunk document written to
// the search engine.
package model

import "time"

// WatchPath is a configured root directory (or an excluded subtree) that
// scopes discovery, monitoring, and verification.
type WatchPath struct {
	ID                    int64
	Path                  string // absolute, canonicalized
	Enabled               bool
	IncludeSubdirectories bool
	IsExcluded            bool // pruning entry rather than a source
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Recognized Setting keys. Unknown keys are preserved by the store but
// not consulted by the core.
const (
	SettingMaxFileSizeMB      = "max_file_size_mb"
	SettingBatchSize          = "batch_size"
	SettingWorkerQueueSize    = "worker_queue_size"
	SettingOCRMyPDFEnabled    = "ocrmypdf_enabled"
	SettingVerifyIndexOnCrawl = "verify_index_on_crawl"
	SettingCleanupOrphaned    = "cleanup_orphaned_files"
)

// Setting is a key/value/description triple, process-wide interpretation.
type Setting struct {
	Key         string
	Value       string
	Description string
	UpdatedAt   time.Time
}

// JobType describes what a crawl run is doing.
type JobType string

const (
	JobTypeCrawl        JobType = "crawl"
	JobTypeMonitor      JobType = "monitor"
	JobTypeCrawlMonitor JobType = "crawl+monitor"
)

// CrawlerState is the singleton row tracking the last-known crawl.
type CrawlerState struct {
	CrawlJobRunning   bool
	CrawlJobType      JobType // empty means null
	CrawlJobStartedAt time.Time
	MonitoringActive  bool

	FilesDiscovered int
	FilesIndexed    int
	FilesError      int
	FilesSkipped    int
	FilesDeleted    int

	DiscoveryProgress int // 0-100
	IndexingProgress  int // 0-100
}

// OperationKind is the kind of change a CrawlOperation represents.
type OperationKind string

const (
	OpCreate OperationKind = "create"
	OpEdit   OperationKind = "edit"
	OpDelete OperationKind = "delete"
)

// Source identifies which producer emitted a CrawlOperation.
type Source string

const (
	SourceCrawl Source = "crawl"
	SourceWatch Source = "watch"
)

// CrawlOperation is an in-memory work item flowing through the dedup queue.
type CrawlOperation struct {
	Kind         OperationKind
	FilePath     string // absolute
	FileSize     int64  // 0 for delete
	ModifiedTime time.Time
	CreatedTime  time.Time
	DiscoveredAt time.Time
	Source       Source
	RetryCount   int
	Priority     int
}

// Key returns the dedup-queue key for this operation: one pending entry
// per file path, regardless of kind.
func (op CrawlOperation) Key() string {
	return op.FilePath
}

// ChunkDocument is the unit stored in the external search engine.
// Chunk 0 of a file additionally carries the fields below the separator;
// chunks 1..N-1 carry only the essential subset above it.
type ChunkDocument struct {
	// Essential fields, present on every chunk.
	ID            string // stable digest of (file_path, chunk_index)
	FilePath      string
	ChunkIndex    int
	ChunkTotal    int
	ChunkHash     string
	Content       string
	FileExtension string
	FileSize      int64
	MimeType      string
	ModifiedTime  int64 // unix seconds

	// Document-level fields, populated on chunk 0 only.
	FileHash        string
	CreatedTime     int64
	IndexedAt       int64
	Title           string
	Author          string
	Description     string
	Subject         string
	Language        string
	Producer        string
	Application     string
	Comments        string
	Revision        string
	DocCreatedDate  string
	DocModifiedDate string
	Keywords        []string
	ContentType     string
	Embedding       []float32
}

// IsChunkZero reports whether this document is the first chunk of its file.
func (c ChunkDocument) IsChunkZero() bool { return c.ChunkIndex == 0 }
