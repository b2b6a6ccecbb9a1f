package extract

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"
)

// basicBlockSize is the streaming read size for the fallback scan.
const basicBlockSize = 4096

// BasicMaxTextSize bounds how much filtered text the basic strategy will
// accumulate, so a huge binary never builds an unbounded string in memory.
const BasicMaxTextSize = 8 * 1024 * 1024 // 8 MiB of filtered text

// BasicStrategy is the final, always-applicable fallback: it streams the
// file in blocks, decodes whatever valid UTF-8 it can find, keeps only
// printable/whitespace code points, collapses runs of whitespace, and
// returns the filtered text even for binary files (possibly empty). It
// never raises for unreadable content, since it is the strategy of last
// resort.
type BasicStrategy struct{}

// NewBasicStrategy returns the always-on fallback strategy.
func NewBasicStrategy() *BasicStrategy { return &BasicStrategy{} }

func (s *BasicStrategy) Name() string { return "basic" }

// CanExtract is always true: basic is the strategy of last resort.
func (s *BasicStrategy) CanExtract(path string) bool { return true }

func (s *BasicStrategy) Extract(ctx context.Context, path string) (Content, error) {
	f, err := os.Open(path)
	if err != nil {
		return Content{}, err
	}
	defer f.Close()

	var out strings.Builder
	var lastWasSpace bool
	reader := bufio.NewReaderSize(f, basicBlockSize)
	buf := make([]byte, basicBlockSize)

	for out.Len() < BasicMaxTextSize {
		if ctx.Err() != nil {
			return Content{}, ctx.Err()
		}
		n, readErr := reader.Read(buf)
		if n > 0 {
			filterPrintable(buf[:n], &out, &lastWasSpace)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return Content{}, readErr
		}
	}

	return Content{
		Text:     strings.TrimSpace(out.String()),
		Metadata: map[string]string{"extraction_method": s.Name()},
	}, nil
}

// filterPrintable decodes chunk as UTF-8 runes (skipping invalid bytes
// one at a time, the way a best-effort text sniffer must for arbitrary
// binary input), keeps printable and whitespace runes, and collapses
// consecutive whitespace into a single space.
func filterPrintable(chunk []byte, out *strings.Builder, lastWasSpace *bool) {
	for len(chunk) > 0 {
		r, size := utf8.DecodeRune(chunk)
		if r == utf8.RuneError && size <= 1 {
			chunk = chunk[1:]
			continue
		}
		chunk = chunk[size:]

		switch {
		case unicode.IsSpace(r):
			if !*lastWasSpace {
				out.WriteByte(' ')
			}
			*lastWasSpace = true
		case unicode.IsPrint(r):
			out.WriteRune(r)
			*lastWasSpace = false
		}
	}
}
