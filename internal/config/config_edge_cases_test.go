package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoad_ZeroValuesNotMerged documents that an explicit zero in a
// config file does not override a default: the merge only overlays
// non-zero fields.
func TestLoad_ZeroValuesNotMerged(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := `
version: 1
crawler:
  batch_size: 0
chunk:
  size: 0
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".filebrain.yaml"), []byte(configContent), 0o644))

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Crawler.BatchSize)
	assert.Equal(t, 2000, cfg.Chunk.Size)
}

func TestLoad_NegativeBatchSize_Validated(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := `
version: 1
crawler:
  batch_size: -10
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".filebrain.yaml"), []byte(configContent), 0o644))

	cfg, err := Load(tmpDir)

	require.Error(t, err)
	require.Nil(t, cfg)
	assert.Contains(t, err.Error(), "batch_size must be positive")
}

func TestLoad_UnreadableConfigFile_ReturnsError(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("test requires non-root user")
	}

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ".filebrain.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("version: 1"), 0o000))
	defer func() { _ = os.Chmod(configPath, 0o644) }()

	cfg, err := Load(tmpDir)

	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "read")
}

// TestLoad_CrawlerBlockWithOnlyFalseFlags documents that the three
// boolean crawler flags can be turned off from a config file: each is
// unmarshalled through a *bool, so an explicit `false` is told apart
// from an absent key and overrides the default field by field.
func TestLoad_CrawlerBlockWithOnlyFalseFlags(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := `
version: 1
crawler:
  verify_index_on_crawl: false
  cleanup_orphaned_files: false
  ocrmypdf_enabled: false
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".filebrain.yaml"), []byte(configContent), 0o644))

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.False(t, cfg.Crawler.VerifyIndexOnCrawl)
	assert.False(t, cfg.Crawler.CleanupOrphanedFiles)
	assert.False(t, cfg.Crawler.OCRMyPDFEnabled)
}

func TestConfig_MaxFileSizeBytes_ReflectsOverride(t *testing.T) {
	cfg := NewConfig()
	cfg.Crawler.MaxFileSizeMB = 5

	assert.Equal(t, int64(5*1024*1024), cfg.MaxFileSizeBytes())
}
