package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hamza5/file-brain/internal/extract"
	"github.com/Hamza5/file-brain/internal/model"
	"github.com/Hamza5/file-brain/internal/queue"
	"github.com/Hamza5/file-brain/internal/searchclient"
)

func TestPoolDrainsQueueAndCountsOutcomes(t *testing.T) {
	client := searchclient.New(searchclient.Config{})
	require.NoError(t, client.InitializeCollection(context.Background()))
	t.Cleanup(func() { _ = client.Close() })

	chain := extract.NewChain(extract.NewBasicStrategy())
	ix := New(chain, client, Config{MaxFileSizeBytes: 1 << 20, ChunkSize: 1000, ChunkOverlap: 100})

	q := queue.New[model.CrawlOperation](10)
	dir := t.TempDir()
	for i := 0; i < 5; i++ {
		path := filepath.Join(dir, string(rune('a'+i))+".txt")
		require.NoError(t, os.WriteFile(path, []byte("content"), 0o644))
		op := model.CrawlOperation{Kind: model.OpCreate, FilePath: path}
		require.NoError(t, q.Put(context.Background(), op.Key(), op))
	}

	pool := NewPool(ix, q, 2)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		_ = pool.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return pool.Counters.Indexed.Load() == 5
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
	assert.Equal(t, int64(0), pool.Counters.Errors.Load())
}
