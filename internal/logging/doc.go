// Package logging provides structured, rotating file-based logging for
// the crawl engine. Logs are written as JSON to ~/.filebrain/logs/
// (rotated by size and count), with an optional stderr mirror for
// interactive runs.
package logging
