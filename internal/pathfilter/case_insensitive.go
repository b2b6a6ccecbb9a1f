//go:build windows || darwin

package pathfilter

import "strings"

// foldCase normalizes case on filesystems that are case-insensitive by
// default (Windows, macOS/APFS) so ancestor comparisons aren't fooled by
// a differently-cased path referring to the same file.
func foldCase(path string) string {
	return strings.ToLower(path)
}
