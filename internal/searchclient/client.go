// Package searchclient implements the search-engine client contract
// against a desktop-local engine: a bleve/v2 full-text index for the
// chunk document's textual and faceted fields, paired with a
// coder/hnsw approximate-nearest-neighbor index for the embedding
// field.
package searchclient

import (
	"context"
	"time"

	"github.com/Hamza5/file-brain/internal/model"
)

// Stats is the aggregate snapshot backing the search-engine client's
// stats() operation: total documents plus a facet value count per
// faceted field.
type Stats struct {
	DocumentCount int
	VectorCount   int
	Facets        map[string]map[string]int
}

// Client is the search-engine client contract. Every method is safe
// for concurrent use; callers (the indexer's worker pool) do not
// serialize their own access.
type Client interface {
	// InitializeCollection prepares the backing indices, retrying with
	// exponential backoff if the underlying engine is not yet
	// reachable. Idempotent: calling it again on an already initialized
	// client is a no-op.
	InitializeCollection(ctx context.Context) error

	// GetDocByPath returns chunk 0 of the file at path, or (nil, nil)
	// if no document is indexed for that path.
	GetDocByPath(ctx context.Context, path string) (*model.ChunkDocument, error)

	// IndexChunk upserts a single chunk document.
	IndexChunk(ctx context.Context, doc model.ChunkDocument) error

	// RemoveByPath deletes every chunk document for path. Removing a
	// path with no indexed documents is success, not an error.
	RemoveByPath(ctx context.Context, path string) error

	// Scan returns up to limit chunk-0 documents (one per file)
	// starting at offset, ordered by file_path, for the verifier's
	// paged sweep.
	Scan(ctx context.Context, limit, offset int) ([]model.ChunkDocument, error)

	// Count returns the number of indexed chunk-0 documents, that is,
	// the number of indexed files.
	Count(ctx context.Context) (int, error)

	// Stats returns the aggregate snapshot described above.
	Stats(ctx context.Context) (Stats, error)

	// ClearAll removes every indexed document and embedding, leaving
	// the collection initialized but empty.
	ClearAll(ctx context.Context) error

	// Close releases the underlying indices.
	Close() error
}

// RetryBackoff is the initializeCollection backoff ladder: 1s, 2s, 4s,
// 8s, 16s, five attempts total beyond the first.
var RetryBackoff = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	4 * time.Second,
	8 * time.Second,
	16 * time.Second,
}
