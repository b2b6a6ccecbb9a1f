package searchclient

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/Hamza5/file-brain/internal/errors"
	"github.com/Hamza5/file-brain/internal/model"
)

// Config configures a local Client.
type Config struct {
	// DataDir holds the bleve index directory. Empty means an
	// in-memory index, used by tests.
	DataDir string
}

// localClient is the desktop-local Client implementation: bleve/v2 for
// text and facets, coder/hnsw for the embedding field, composed behind
// the single search-engine-client contract the indexer and verifier
// depend on.
type localClient struct {
	cfg Config

	initMu      sync.Mutex
	initialized bool

	text *textIndex

	// vectors is created lazily from the dimension of the first
	// non-empty embedding this process sees. This client never computes
	// an embedding itself; it only needs to know how long the ones it
	// is handed are, which it cannot know until the first one arrives.
	vecMu   sync.Mutex
	vectors *embeddingStore
}

// New constructs a local search-engine client. Callers must still call
// InitializeCollection before use.
func New(cfg Config) Client {
	return &localClient{cfg: cfg}
}

func (c *localClient) InitializeCollection(ctx context.Context) error {
	c.initMu.Lock()
	defer c.initMu.Unlock()
	if c.initialized {
		return nil
	}

	retryCfg := errors.RetryConfig{
		MaxRetries:   len(RetryBackoff),
		InitialDelay: RetryBackoff[0],
		MaxDelay:     RetryBackoff[len(RetryBackoff)-1],
		Multiplier:   2.0,
	}

	err := errors.Retry(ctx, retryCfg, func() error {
		path := ""
		if c.cfg.DataDir != "" {
			path = filepath.Join(c.cfg.DataDir, "bleve")
		}
		idx, err := newTextIndex(path)
		if err != nil {
			return err
		}
		c.text = idx
		return nil
	})
	if err != nil {
		return fmt.Errorf("searchclient: initialize collection: %w", err)
	}

	c.initialized = true
	return nil
}

func (c *localClient) ensureVectors(dimension int) *embeddingStore {
	c.vecMu.Lock()
	defer c.vecMu.Unlock()
	if c.vectors == nil {
		c.vectors = newEmbeddingStore(dimension)
	}
	return c.vectors
}

func (c *localClient) GetDocByPath(ctx context.Context, path string) (*model.ChunkDocument, error) {
	return c.text.getChunkZero(ctx, path)
}

func (c *localClient) IndexChunk(ctx context.Context, doc model.ChunkDocument) error {
	if err := c.text.indexDoc(doc); err != nil {
		return fmt.Errorf("searchclient: index chunk %s: %w", doc.ID, err)
	}
	if len(doc.Embedding) > 0 {
		v := c.ensureVectors(len(doc.Embedding))
		if err := v.upsert(doc.ID, doc.Embedding); err != nil {
			return fmt.Errorf("searchclient: index embedding for %s: %w", doc.ID, err)
		}
	}
	return nil
}

func (c *localClient) RemoveByPath(ctx context.Context, path string) error {
	ids, err := c.text.idsForPath(ctx, path)
	if err != nil {
		return fmt.Errorf("searchclient: remove by path %s: %w", path, err)
	}
	for _, id := range ids {
		if err := c.text.deleteDoc(id); err != nil {
			return fmt.Errorf("searchclient: remove by path %s: %w", path, err)
		}
		c.vecMu.Lock()
		if c.vectors != nil {
			c.vectors.delete(id)
		}
		c.vecMu.Unlock()
	}
	// ids == nil is not-found, treated as success rather than an error.
	return nil
}

func (c *localClient) Scan(ctx context.Context, limit, offset int) ([]model.ChunkDocument, error) {
	return c.text.scan(ctx, limit, offset)
}

func (c *localClient) Count(ctx context.Context) (int, error) {
	return c.text.count(ctx)
}

func (c *localClient) Stats(ctx context.Context) (Stats, error) {
	docCount, err := c.text.count(ctx)
	if err != nil {
		return Stats{}, err
	}
	facets, err := c.text.facetCounts(ctx)
	if err != nil {
		return Stats{}, err
	}
	vectorCount := 0
	c.vecMu.Lock()
	if c.vectors != nil {
		vectorCount = c.vectors.count()
	}
	c.vecMu.Unlock()

	return Stats{
		DocumentCount: docCount,
		VectorCount:   vectorCount,
		Facets:        facets,
	}, nil
}

func (c *localClient) ClearAll(ctx context.Context) error {
	ids, err := c.text.allIDs(ctx)
	if err != nil {
		return fmt.Errorf("searchclient: clear all: %w", err)
	}
	for _, id := range ids {
		if err := c.text.deleteDoc(id); err != nil {
			return fmt.Errorf("searchclient: clear all: %w", err)
		}
	}
	c.vecMu.Lock()
	if c.vectors != nil {
		c.vectors.clear()
	}
	c.vecMu.Unlock()
	return nil
}

func (c *localClient) Close() error {
	c.vecMu.Lock()
	if c.vectors != nil {
		_ = c.vectors.close()
	}
	c.vecMu.Unlock()

	if c.text == nil {
		return nil
	}
	return c.text.close()
}

var _ Client = (*localClient)(nil)
