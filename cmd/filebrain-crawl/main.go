// Command filebrain-crawl is the CLI entry point for the crawl engine:
// start/stop a crawl, start/stop the monitor, and print the progress
// snapshot. A single NewRootCmd().Execute() call drives everything;
// the process exit code is derived from the returned error.
package main

import (
	"fmt"
	"os"

	"github.com/Hamza5/file-brain/cmd/filebrain-crawl/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
