//go:build linux

package fsmeta

import (
	"os"
	"time"
)

// birthTime reports false: the Linux syscall.Stat_t exposed by the Go
// runtime carries no birth time (statx(2) has one but the portable
// os/syscall layer doesn't surface it).
func birthTime(info os.FileInfo) (time.Time, bool) {
	return time.Time{}, false
}
