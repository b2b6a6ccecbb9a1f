package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStopCmd() *cobra.Command {
	var stopMonitor bool

	c := &cobra.Command{
		Use:   "stop",
		Short: "Stop the running crawl (idempotent)",
		RunE: func(cmd *cobra.Command, args []string) error {
			current.manager.StopCrawl(cmd.Context())
			if stopMonitor {
				current.manager.StopMonitoring()
			}
			fmt.Fprintln(cmd.OutOrStdout(), "stop requested")
			return nil
		},
	}

	c.Flags().BoolVar(&stopMonitor, "monitor", false, "Also stop live filesystem monitoring")
	return c
}
