// Package fsmeta isolates the one piece of filesystem metadata that
// needs platform-specific code: a file's creation time. Shared by
// internal/discoverer and internal/monitor so both producers of
// model.CrawlOperation stamp created_time the same way.
package fsmeta

import (
	"os"
	"time"
)

// CreatedTime returns the best available creation timestamp for info.
// Where the platform exposes no birth time, it falls back to mtime;
// st_ctime is inode-change time, not creation time, so it is no better
// a substitute.
func CreatedTime(info os.FileInfo) time.Time {
	if t, ok := birthTime(info); ok {
		return t
	}
	return info.ModTime()
}
