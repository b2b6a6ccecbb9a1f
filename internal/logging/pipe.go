package logging

import "log/slog"

// SetupPipeMode installs a file-only logger as slog.Default: records go
// to DefaultLogPath at the given level and are not mirrored to stderr,
// so nothing from the log stream interleaves with a process's own
// terminal output. cmd/filebrain-crawl's bootstrap does not call it; it
// uses Setup with a log file in the data directory.
func SetupPipeMode(level string) (func(), error) {
	cfg := Config{
		Level:         level,
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: false,
	}

	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return nil, err
	}

	slog.SetDefault(logger)
	return cleanup, nil
}
