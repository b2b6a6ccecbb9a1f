// Package cmd provides the filebrain-crawl CLI commands. The framing is
// intentionally thin: no REST/SSE server, no setup wizard, no container
// lifecycle, just enough of a process to exercise the crawl engine end
// to end through three verbs: start, stop, status. Each subcommand gets
// its own newXxxCmd() constructor wired under a shared
// PersistentPreRunE bootstrap.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Hamza5/file-brain/internal/config"
	"github.com/Hamza5/file-brain/internal/crawl"
	"github.com/Hamza5/file-brain/internal/extract"
	"github.com/Hamza5/file-brain/internal/logging"
	"github.com/Hamza5/file-brain/internal/readiness"
	"github.com/Hamza5/file-brain/internal/searchclient"
	"github.com/Hamza5/file-brain/internal/store"
	"github.com/Hamza5/file-brain/internal/watcher"
	"github.com/Hamza5/file-brain/pkg/version"
)

// resumeDelay is a short pause before a persisted-resume attempt,
// letting the search-engine client finish InitializeCollection first.
const resumeDelay = 500 * time.Millisecond

// app bundles the process-wide singletons the crawl engine needs.
// Built once per invocation in PersistentPreRunE, closed in
// PersistentPostRunE. There's no lazy construction on first request,
// since a one-shot CLI invocation has no "first request" to defer to.
type app struct {
	dataDir     string
	cfg         *config.Config
	configStore store.ConfigStore
	client      searchclient.Client
	registry    *readiness.Registry
	manager     *crawl.Manager
}

var (
	current      *app
	dataDirFlag  string
	richDocURL   string
	debugLogging bool
	loggingDone  func()
)

// NewRootCmd builds the filebrain-crawl root command.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "filebrain-crawl",
		Short:   "Desktop file indexing crawl engine",
		Version: version.Version,
		PersistentPreRunE: func(c *cobra.Command, args []string) error {
			return bootstrap(c.Context())
		},
		PersistentPostRunE: func(c *cobra.Command, args []string) error {
			return teardown()
		},
	}

	root.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "Crawl engine data directory (default: ./.filebrain)")
	root.PersistentFlags().StringVar(&richDocURL, "extraction-service", "", "Rich-document extraction service endpoint (empty: basic-only fallback)")
	root.PersistentFlags().BoolVar(&debugLogging, "debug", false, "Enable debug-level structured logging")

	root.AddCommand(newStartCmd())
	root.AddCommand(newStopCmd())
	root.AddCommand(newStatusCmd())

	return root
}

// bootstrap wires the process singletons together: config, the
// persisted configuration store, the search-engine client, the
// service-readiness registry, and the crawl manager. Collapsed into one
// function since this CLI has no subcommand-specific dependency subset
// worth avoiding the construction of.
func bootstrap(ctx context.Context) error {
	dir := dataDirFlag
	if dir == "" {
		dir = ".filebrain"
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve data dir: %w", err)
	}
	if err := os.MkdirAll(absDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	logCfg := logging.DefaultConfig()
	logCfg.FilePath = filepath.Join(absDir, "crawl.log")
	if debugLogging {
		logCfg.Level = "debug"
	}
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("set up logging: %w", err)
	}
	slog.SetDefault(logger)
	loggingDone = cleanup

	cfg, err := config.Load(absDir)
	if err != nil {
		cleanup()
		return fmt.Errorf("load config: %w", err)
	}

	// The persistence layer being unreachable is fatal: the process
	// fails to start rather than attempt partial operation.
	configStore, err := store.Open(filepath.Join(absDir, "filebrain.db"))
	if err != nil {
		cleanup()
		return fmt.Errorf("open config store: %w", err)
	}

	client := searchclient.New(searchclient.Config{DataDir: absDir})

	reg := readiness.New()
	reg.Register(crawl.SearchEngineServiceName, nil, func(ctx context.Context) error {
		return client.InitializeCollection(ctx)
	})
	if err := client.InitializeCollection(ctx); err != nil {
		reg.SetState(crawl.SearchEngineServiceName, readiness.StateFailed, err)
		slog.Warn("search engine failed to initialize, crawls will be rejected until it recovers", "error", err.Error())
	} else {
		reg.SetState(crawl.SearchEngineServiceName, readiness.StateReady, nil)
	}

	chain := extract.NewDefaultChain(richDocURL)

	manager := crawl.New(configStore, client, reg, crawl.Config{
		DataDir:          absDir,
		Extraction:       chain,
		MaxFileSizeBytes: cfg.MaxFileSizeBytes(),
		ChunkSize:        cfg.Chunk.Size,
		ChunkOverlap:     cfg.Chunk.Overlap,
		WorkerPoolSize:   cfg.Crawler.IndexWorkers,
		QueueCapacity:    cfg.Crawler.WorkerQueueSize,
		VerifyOnCrawl:    cfg.Crawler.VerifyIndexOnCrawl,
		CleanupOrphaned:  cfg.Crawler.CleanupOrphanedFiles,
		StateBatchSize:   cfg.Crawler.BatchSize,
		WatcherOptions:   watcher.DefaultOptions(),
	})

	// Persisted resume: restart whatever was running when the process
	// last stopped, after a short delay.
	go manager.Resume(context.Background(), resumeDelay)

	current = &app{
		dataDir:     absDir,
		cfg:         cfg,
		configStore: configStore,
		client:      client,
		registry:    reg,
		manager:     manager,
	}
	return nil
}

func teardown() error {
	if current == nil {
		return nil
	}
	err := current.configStore.Close()
	if loggingDone != nil {
		loggingDone()
	}
	current = nil
	return err
}
