package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// statusPollInterval is how often start polls the manager's own snapshot
// while waiting for a crawl to finish.
const statusPollInterval = 250 * time.Millisecond

func newStartCmd() *cobra.Command {
	var withMonitor bool

	c := &cobra.Command{
		Use:   "start",
		Short: "Start a crawl (verify, discover, index) and wait for it to finish",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Signal handling mirrors a foreground process: Ctrl+C (or
			// SIGTERM) cancels the context, which StartCrawl's workers
			// observe at their next suspension point rather than the
			// process dying mid file.
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := current.manager.StartCrawl(ctx, withMonitor); err != nil {
				return err
			}

			if err := waitForCrawl(ctx, cmd.OutOrStdout()); err != nil {
				return err
			}

			if withMonitor {
				fmt.Fprintln(cmd.OutOrStdout(), "crawl finished; monitoring is active, press ctrl+c to stop")
				<-ctx.Done()
				current.manager.StopMonitoring()
			}

			return nil
		},
	}

	c.Flags().BoolVar(&withMonitor, "monitor", false, "Also start live filesystem monitoring for the same watch configuration; keeps this command attached until interrupted")
	return c
}

// waitForCrawl blocks until the crawl job returns to idle, printing a line
// each time progress changes. A one-shot CLI invocation has to stay up for
// the crawl to make any progress at all, since nothing else keeps the
// process (and the manager's in-memory state) alive once it exits.
func waitForCrawl(ctx context.Context, out io.Writer) error {
	ticker := time.NewTicker(statusPollInterval)
	defer ticker.Stop()

	lastDiscovery, lastIndexing := -1, -1
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			snap := current.manager.Snapshot()
			if snap.DiscoveryProgress != lastDiscovery || snap.IndexingProgress != lastIndexing {
				fmt.Fprintf(out, "discovery %d%%  indexing %d%%  indexed=%d skipped=%d errors=%d queue=%d\n",
					snap.DiscoveryProgress, snap.IndexingProgress,
					snap.FilesIndexed, snap.FilesSkipped, snap.FilesError, snap.QueueSize)
				lastDiscovery = snap.DiscoveryProgress
				lastIndexing = snap.IndexingProgress
			}
			if !snap.Running {
				fmt.Fprintln(out, "crawl finished")
				return nil
			}
		}
	}
}
