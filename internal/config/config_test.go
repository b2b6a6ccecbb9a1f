package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	cfg := NewConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, 200, cfg.Crawler.MaxFileSizeMB)
	assert.Equal(t, 100, cfg.Crawler.BatchSize)
	assert.Equal(t, 1000, cfg.Crawler.WorkerQueueSize)
	assert.Equal(t, runtime.NumCPU(), cfg.Crawler.IndexWorkers)
	assert.False(t, cfg.Crawler.OCRMyPDFEnabled)
	assert.True(t, cfg.Crawler.VerifyIndexOnCrawl)
	assert.True(t, cfg.Crawler.CleanupOrphanedFiles)
	assert.Equal(t, 2000, cfg.Chunk.Size)
	assert.Equal(t, 200, cfg.Chunk.Overlap)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestNewConfig_MaxFileSizeBytesConvertsFromMB(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, int64(200*1024*1024), cfg.MaxFileSizeBytes())
}

func TestLoad_NoConfigFile_ReturnsDefaults(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, 2000, cfg.Chunk.Size)
}

func TestLoad_YamlFile_OverridesDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := `
version: 1
crawler:
  max_file_size_mb: 50
  batch_size: 25
chunk:
  size: 1000
  overlap: 100
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".filebrain.yaml"), []byte(configContent), 0o644))

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Crawler.MaxFileSizeMB)
	assert.Equal(t, 25, cfg.Crawler.BatchSize)
	assert.Equal(t, 1000, cfg.Chunk.Size)
	assert.Equal(t, 100, cfg.Chunk.Overlap)
}

func TestLoad_YmlExtension_IsRecognized(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := "version: 1\nlogging:\n  level: debug\n"
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".filebrain.yml"), []byte(configContent), 0o644))

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_YamlPreferredOverYml(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".filebrain.yaml"), []byte("version: 1\nlogging:\n  level: warn\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".filebrain.yml"), []byte("version: 1\nlogging:\n  level: error\n"), 0o644))

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad_InvalidYaml_ReturnsError(t *testing.T) {
	tmpDir := t.TempDir()
	invalidContent := "version: 1\ncrawler:\n  batch_size: [invalid yaml syntax\n"
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".filebrain.yaml"), []byte(invalidContent), 0o644))

	cfg, err := Load(tmpDir)

	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "parse")
}

func TestLoad_InvalidFieldType_ReturnsError(t *testing.T) {
	tmpDir := t.TempDir()
	invalidContent := `
version: 1
chunk:
  size: "not-a-number"
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".filebrain.yaml"), []byte(invalidContent), 0o644))

	cfg, err := Load(tmpDir)

	require.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_EnvVarOverridesLogLevel(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("FILEBRAIN_LOG_LEVEL", "error")

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Logging.Level)
}

func TestLoad_EnvVarOverridesChunkSettings(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".filebrain.yaml"), []byte("version: 1\nchunk:\n  size: 1000\n  overlap: 100\n"), 0o644))
	t.Setenv("FILEBRAIN_CHUNK_SIZE", "3000")
	t.Setenv("FILEBRAIN_CHUNK_OVERLAP", "300")

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Chunk.Size)
	assert.Equal(t, 300, cfg.Chunk.Overlap)
}

func TestLoad_EnvVarOverridesBooleanFlags(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("FILEBRAIN_OCRMYPDF_ENABLED", "true")
	t.Setenv("FILEBRAIN_VERIFY_INDEX_ON_CRAWL", "0")

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.True(t, cfg.Crawler.OCRMyPDFEnabled)
	assert.False(t, cfg.Crawler.VerifyIndexOnCrawl)
}

func TestLoad_EnvVarEmptyString_DoesNotOverride(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("FILEBRAIN_LOG_LEVEL", "")

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestValidate_RejectsOverlapGreaterThanOrEqualToSize(t *testing.T) {
	cfg := NewConfig()
	cfg.Chunk.Size = 500
	cfg.Chunk.Overlap = 500

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be less than")
}

func TestValidate_RejectsNonPositiveBatchSize(t *testing.T) {
	cfg := NewConfig()
	cfg.Crawler.BatchSize = 0

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch_size")
}

func TestValidate_RejectsUnknownLogLevel(t *testing.T) {
	cfg := NewConfig()
	cfg.Logging.Level = "verbose"

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.level")
}

func TestWriteYAML_RoundTripsThroughLoad(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := NewConfig()
	cfg.Crawler.BatchSize = 42

	path := filepath.Join(tmpDir, ".filebrain.yaml")
	require.NoError(t, cfg.WriteYAML(path))

	loaded, err := Load(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, 42, loaded.Crawler.BatchSize)
}
