package discoverer

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hamza5/file-brain/internal/model"
	"github.com/Hamza5/file-brain/internal/pathfilter"
)

func collect(t *testing.T, d *Discoverer) []Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var results []Result
	for r := range d.Discover(ctx) {
		results = append(results, r)
	}
	return results
}

func paths(results []Result) []string {
	var out []string
	for _, r := range results {
		if r.Op != nil {
			out = append(out, r.Op.FilePath)
		}
	}
	sort.Strings(out)
	return out
}

// opResults filters out the per-root RootDone markers, leaving only
// file-operation results, for tests that count discovered files.
func opResults(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.Op != nil {
			out = append(out, r)
		}
	}
	return out
}

func rootDoneCount(results []Result) int {
	n := 0
	for _, r := range results {
		if r.RootDone != "" {
			n++
		}
	}
	return n
}

func TestDiscover_BasicFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "b.txt"), []byte("b"), 0o644))

	wp := []model.WatchPath{{Path: root, Enabled: true, IncludeSubdirectories: true}}
	d := New(pathfilter.New(wp), wp)

	results := collect(t, d)
	ops := opResults(results)
	require.Len(t, ops, 2)
	assert.Equal(t, 1, rootDoneCount(results))
	assert.Equal(t, []string{
		filepath.Join(root, "a.txt"),
		filepath.Join(root, "sub", "b.txt"),
	}, paths(results))

	for _, r := range ops {
		assert.NoError(t, r.Err)
		assert.Equal(t, model.OpCreate, r.Op.Kind)
		assert.Equal(t, model.SourceCrawl, r.Op.Source)
		assert.False(t, r.Op.DiscoveredAt.IsZero())
	}
}

func TestDiscover_IncludeSubdirectoriesFalsePrunes(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "top.txt"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "nested.txt"), []byte("x"), 0o644))

	wp := []model.WatchPath{{Path: root, Enabled: true, IncludeSubdirectories: false}}
	d := New(pathfilter.New(wp), wp)

	results := collect(t, d)
	assert.Equal(t, []string{filepath.Join(root, "top.txt")}, paths(results))
}

func TestDiscover_ExcludedSubtreePruned(t *testing.T) {
	root := t.TempDir()
	excluded := filepath.Join(root, "node_modules")
	require.NoError(t, os.MkdirAll(excluded, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "keep.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(excluded, "skip.txt"), []byte("x"), 0o644))

	wp := []model.WatchPath{
		{Path: root, Enabled: true, IncludeSubdirectories: true},
		{Path: excluded, Enabled: true, IsExcluded: true},
	}
	d := New(pathfilter.New(wp), wp)

	results := collect(t, d)
	assert.Equal(t, []string{filepath.Join(root, "keep.txt")}, paths(results))
}

func TestDiscover_FileRemovedBeforeStatIsSkippedSilently(t *testing.T) {
	root := t.TempDir()
	gone := filepath.Join(root, "gone.txt")
	require.NoError(t, os.WriteFile(gone, []byte("x"), 0o644))
	// Removed before the walk starts, so the listing never sees it: no
	// operation is emitted and the root still reports RootDone.
	require.NoError(t, os.Remove(gone))

	wp := []model.WatchPath{{Path: root, Enabled: true, IncludeSubdirectories: true}}
	d := New(pathfilter.New(wp), wp)

	results := collect(t, d)
	assert.Empty(t, opResults(results))
	assert.Equal(t, 1, rootDoneCount(results))
}

func TestDiscover_OrdersRootsBeforeNestedEntries(t *testing.T) {
	rootA := t.TempDir()
	rootB := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(rootA, "a.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(rootB, "b.txt"), []byte("x"), 0o644))

	wp := []model.WatchPath{
		{Path: rootA, Enabled: true, IncludeSubdirectories: true},
		{Path: rootB, Enabled: true, IncludeSubdirectories: true},
	}
	d := New(pathfilter.New(wp), wp)

	results := collect(t, d)
	ops := opResults(results)
	require.Len(t, ops, 2)
	assert.Equal(t, filepath.Join(rootA, "a.txt"), ops[0].Op.FilePath)
	assert.Equal(t, filepath.Join(rootB, "b.txt"), ops[1].Op.FilePath)
	assert.Equal(t, 2, rootDoneCount(results))
}

func TestDiscover_CancelledContextStopsWalk(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 200; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(root, "f"+string(rune('a'+i%26))+".txt"), []byte("x"), 0o644))
	}

	wp := []model.WatchPath{{Path: root, Enabled: true, IncludeSubdirectories: true}}
	d := New(pathfilter.New(wp), wp)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var results []Result
	for r := range d.Discover(ctx) {
		results = append(results, r)
	}
	assert.Empty(t, results)
}
