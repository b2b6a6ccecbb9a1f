// Package chunk splits extracted text into deterministic, overlapping
// windows. It's a content-agnostic sliding window, not a symbol-bounded
// or language-aware one: every extraction strategy in internal/extract
// hands back plain text, and this chunker only needs to slice it
// reproducibly so chunk_hash and chunk_index are stable across re-runs
// of the same content.
package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Chunk is one deterministic slice of extracted text.
type Chunk struct {
	Index   int
	Total   int
	Content string
	Hash    string
}

// Split divides text into overlapping chunks of at most size runes,
// each subsequent chunk starting size-overlap runes after the previous
// one. Requires size > overlap >= 0. Empty input produces exactly one
// empty chunk, so a zero-byte file still gets a chunk-0 document.
func Split(filePath, text string, size, overlap int) ([]Chunk, error) {
	if size <= overlap || overlap < 0 {
		return nil, fmt.Errorf("chunk: invalid size/overlap (size=%d overlap=%d): require size > overlap >= 0", size, overlap)
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return []Chunk{{Index: 0, Total: 1, Content: "", Hash: hash(filePath, 0, "")}}, nil
	}

	stride := size - overlap
	var starts []int
	for start := 0; start < len(runes); start += stride {
		starts = append(starts, start)
	}

	chunks := make([]Chunk, 0, len(starts))
	for i, start := range starts {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		content := string(runes[start:end])
		chunks = append(chunks, Chunk{
			Index:   i,
			Total:   len(starts),
			Content: content,
			Hash:    hash(filePath, i, content),
		})
	}
	return chunks, nil
}

// hash computes the stable digest for chunk_hash: a function of
// (file_path, chunk_index, chunk_content).
func hash(filePath string, index int, content string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%d\x00%s", filePath, index, content)))
	return hex.EncodeToString(sum[:])
}
