package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the typed projection of the persisted Setting table
// (see internal/store) plus the chunker defaults, loaded in three
// layers: hardcoded defaults, overridden by a project config file,
// overridden by environment variables.
type Config struct {
	Version int           `yaml:"version" json:"version"`
	Crawler CrawlerConfig `yaml:"crawler" json:"crawler"`
	Chunk   ChunkConfig   `yaml:"chunk" json:"chunk"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// CrawlerConfig mirrors the Setting rows a crawl run actually reads.
type CrawlerConfig struct {
	MaxFileSizeMB        int  `yaml:"max_file_size_mb" json:"max_file_size_mb"`
	BatchSize            int  `yaml:"batch_size" json:"batch_size"`
	WorkerQueueSize      int  `yaml:"worker_queue_size" json:"worker_queue_size"`
	IndexWorkers         int  `yaml:"index_workers" json:"index_workers"`
	OCRMyPDFEnabled      bool `yaml:"ocrmypdf_enabled" json:"ocrmypdf_enabled"`
	VerifyIndexOnCrawl   bool `yaml:"verify_index_on_crawl" json:"verify_index_on_crawl"`
	CleanupOrphanedFiles bool `yaml:"cleanup_orphaned_files" json:"cleanup_orphaned_files"`
}

// ChunkConfig configures the extraction chain's text splitter.
type ChunkConfig struct {
	Size    int `yaml:"size" json:"size"`
	Overlap int `yaml:"overlap" json:"overlap"`
}

// LoggingConfig configures internal/logging.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
}

// NewConfig returns a Config with the file-brain defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Crawler: CrawlerConfig{
			MaxFileSizeMB:        200,
			BatchSize:            100,
			WorkerQueueSize:      1000,
			IndexWorkers:         runtime.NumCPU(),
			OCRMyPDFEnabled:      false,
			VerifyIndexOnCrawl:   true,
			CleanupOrphanedFiles: true,
		},
		Chunk: ChunkConfig{
			Size:    2000,
			Overlap: 200,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// MaxFileSizeBytes converts Crawler.MaxFileSizeMB to bytes for the
// extraction chain's size guard.
func (c *Config) MaxFileSizeBytes() int64 {
	return int64(c.Crawler.MaxFileSizeMB) * 1024 * 1024
}

// Load loads configuration from dir, applying, in increasing order of
// precedence: hardcoded defaults, `.filebrain.yaml`/`.filebrain.yml` in
// dir, then FILEBRAIN_* environment variables. The result is validated
// before it is returned.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".filebrain.yaml")
	if fileExists(yamlPath) {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ".filebrain.yml")
	if fileExists(ymlPath) {
		return c.loadYAML(ymlPath)
	}

	return nil
}

// rawConfig mirrors Config but with pointer booleans, so a config file
// can tell "set to false" apart from "absent" for the three crawler
// flags. Only used as the YAML unmarshal target.
type rawConfig struct {
	Version int `yaml:"version"`
	Crawler struct {
		MaxFileSizeMB        int   `yaml:"max_file_size_mb"`
		BatchSize            int   `yaml:"batch_size"`
		WorkerQueueSize      int   `yaml:"worker_queue_size"`
		IndexWorkers         int   `yaml:"index_workers"`
		OCRMyPDFEnabled      *bool `yaml:"ocrmypdf_enabled"`
		VerifyIndexOnCrawl   *bool `yaml:"verify_index_on_crawl"`
		CleanupOrphanedFiles *bool `yaml:"cleanup_orphaned_files"`
	} `yaml:"crawler"`
	Chunk struct {
		Size    int `yaml:"size"`
		Overlap int `yaml:"overlap"`
	} `yaml:"chunk"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed rawConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith overlays the fields rawConfig actually saw onto c: numeric
// and string fields overlay when non-zero, the three crawler flags
// overlay whenever the file set them explicitly (including to false).
func (c *Config) mergeWith(other *rawConfig) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Crawler.MaxFileSizeMB != 0 {
		c.Crawler.MaxFileSizeMB = other.Crawler.MaxFileSizeMB
	}
	if other.Crawler.BatchSize != 0 {
		c.Crawler.BatchSize = other.Crawler.BatchSize
	}
	if other.Crawler.WorkerQueueSize != 0 {
		c.Crawler.WorkerQueueSize = other.Crawler.WorkerQueueSize
	}
	if other.Crawler.IndexWorkers != 0 {
		c.Crawler.IndexWorkers = other.Crawler.IndexWorkers
	}
	if other.Crawler.OCRMyPDFEnabled != nil {
		c.Crawler.OCRMyPDFEnabled = *other.Crawler.OCRMyPDFEnabled
	}
	if other.Crawler.VerifyIndexOnCrawl != nil {
		c.Crawler.VerifyIndexOnCrawl = *other.Crawler.VerifyIndexOnCrawl
	}
	if other.Crawler.CleanupOrphanedFiles != nil {
		c.Crawler.CleanupOrphanedFiles = *other.Crawler.CleanupOrphanedFiles
	}

	if other.Chunk.Size != 0 {
		c.Chunk.Size = other.Chunk.Size
	}
	if other.Chunk.Overlap != 0 {
		c.Chunk.Overlap = other.Chunk.Overlap
	}

	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
}

// applyEnvOverrides applies FILEBRAIN_* environment variable overrides,
// the highest-precedence layer.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("FILEBRAIN_MAX_FILE_SIZE_MB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Crawler.MaxFileSizeMB = n
		}
	}
	if v := os.Getenv("FILEBRAIN_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Crawler.BatchSize = n
		}
	}
	if v := os.Getenv("FILEBRAIN_WORKER_QUEUE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Crawler.WorkerQueueSize = n
		}
	}
	if v := os.Getenv("FILEBRAIN_INDEX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Crawler.IndexWorkers = n
		}
	}
	if v := os.Getenv("FILEBRAIN_OCRMYPDF_ENABLED"); v != "" {
		c.Crawler.OCRMyPDFEnabled = isTruthy(v)
	}
	if v := os.Getenv("FILEBRAIN_VERIFY_INDEX_ON_CRAWL"); v != "" {
		c.Crawler.VerifyIndexOnCrawl = isTruthy(v)
	}
	if v := os.Getenv("FILEBRAIN_CLEANUP_ORPHANED_FILES"); v != "" {
		c.Crawler.CleanupOrphanedFiles = isTruthy(v)
	}
	if v := os.Getenv("FILEBRAIN_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Chunk.Size = n
		}
	}
	if v := os.Getenv("FILEBRAIN_CHUNK_OVERLAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Chunk.Overlap = n
		}
	}
	if v := os.Getenv("FILEBRAIN_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

func isTruthy(v string) bool {
	return strings.ToLower(v) == "true" || v == "1"
}

// Validate rejects a Config that would produce nonsensical crawl
// behavior.
func (c *Config) Validate() error {
	if c.Crawler.MaxFileSizeMB <= 0 {
		return fmt.Errorf("max_file_size_mb must be positive, got %d", c.Crawler.MaxFileSizeMB)
	}
	if c.Crawler.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", c.Crawler.BatchSize)
	}
	if c.Crawler.WorkerQueueSize <= 0 {
		return fmt.Errorf("worker_queue_size must be positive, got %d", c.Crawler.WorkerQueueSize)
	}
	if c.Crawler.IndexWorkers <= 0 {
		return fmt.Errorf("index_workers must be positive, got %d", c.Crawler.IndexWorkers)
	}
	if c.Chunk.Size <= 0 {
		return fmt.Errorf("chunk.size must be positive, got %d", c.Chunk.Size)
	}
	if c.Chunk.Overlap < 0 {
		return fmt.Errorf("chunk.overlap must be non-negative, got %d", c.Chunk.Overlap)
	}
	if c.Chunk.Overlap >= c.Chunk.Size {
		return fmt.Errorf("chunk.overlap (%d) must be less than chunk.size (%d)", c.Chunk.Overlap, c.Chunk.Size)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
