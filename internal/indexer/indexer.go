// Package indexer processes one CrawlOperation at a time. A delete
// removes the file's chunks; a create/edit checks accessibility and
// size, hashes the file's content, short-circuits on an unchanged hash,
// otherwise runs the extraction chain, chunks the result, and upserts
// chunk 0 with full metadata followed by the remaining chunks with only
// the essential fields. Any step's failure counts as files_error and is
// not retried automatically; the worker pool takes its Indexer and
// search-engine client as injected collaborators rather than
// constructing them itself.
package indexer

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/Hamza5/file-brain/internal/chunk"
	"github.com/Hamza5/file-brain/internal/extract"
	"github.com/Hamza5/file-brain/internal/model"
	"github.com/Hamza5/file-brain/internal/searchclient"
)

// Outcome classifies how Process disposed of one operation, so callers
// can bump the right CrawlerState counter.
type Outcome string

const (
	OutcomeIndexed Outcome = "indexed"
	OutcomeSkipped Outcome = "skipped"
	OutcomeDeleted Outcome = "deleted"
	OutcomeError   Outcome = "error"
	OutcomeNoop    Outcome = "noop" // a stale create observed ENOENT; not an error
)

// Config bounds Indexer behavior, sourced from the Setting table /
// internal/config defaults.
type Config struct {
	MaxFileSizeBytes int64
	ChunkSize        int
	ChunkOverlap     int
}

// Indexer processes one CrawlOperation at a time against the extraction
// chain and the search-engine client. Stateless beyond its injected
// collaborators, so a worker pool can share one Indexer across workers
// as long as each worker tracks its own CurrentFile (see Worker).
type Indexer struct {
	Chain  *extract.Chain
	Client searchclient.Client
	Config Config
}

// New creates an Indexer over the given extraction chain and
// search-engine client.
func New(chain *extract.Chain, client searchclient.Client, cfg Config) *Indexer {
	return &Indexer{Chain: chain, Client: client, Config: cfg}
}

// Process handles one operation and reports how it was disposed of.
// Individual-file errors are returned, not panicked: callers (the
// worker pool) count them and move to the next operation rather than
// letting one bad file take down the whole run.
func (ix *Indexer) Process(ctx context.Context, op model.CrawlOperation) (Outcome, error) {
	if op.Kind == model.OpDelete {
		if err := ix.Client.RemoveByPath(ctx, op.FilePath); err != nil {
			return OutcomeError, fmt.Errorf("indexer: removing %s: %w", op.FilePath, err)
		}
		return OutcomeDeleted, nil
	}

	info, err := os.Stat(op.FilePath)
	if err != nil {
		if os.IsNotExist(err) {
			// Stale create/edit racing a delete: the delete wins and
			// this becomes a no-op, not an error.
			return OutcomeNoop, nil
		}
		return OutcomeError, fmt.Errorf("indexer: stat %s: %w", op.FilePath, err)
	}
	if !info.Mode().IsRegular() {
		return OutcomeError, fmt.Errorf("indexer: %s is not a regular file", op.FilePath)
	}
	if ix.Config.MaxFileSizeBytes > 0 && info.Size() > ix.Config.MaxFileSizeBytes {
		return OutcomeError, fmt.Errorf("indexer: %s exceeds max file size (%d > %d)", op.FilePath, info.Size(), ix.Config.MaxFileSizeBytes)
	}

	fileHash, err := hashFile(op.FilePath)
	if err != nil {
		return OutcomeError, fmt.Errorf("indexer: hashing %s: %w", op.FilePath, err)
	}

	existing, err := ix.Client.GetDocByPath(ctx, op.FilePath)
	if err != nil {
		return OutcomeError, fmt.Errorf("indexer: checking existing doc for %s: %w", op.FilePath, err)
	}
	if existing != nil && existing.FileHash == fileHash {
		return OutcomeSkipped, nil
	}

	content, err := ix.Chain.Extract(ctx, op.FilePath)
	if err != nil {
		return OutcomeError, fmt.Errorf("indexer: extracting %s: %w", op.FilePath, err)
	}

	chunks, err := chunk.Split(op.FilePath, content.Text, ix.Config.ChunkSize, ix.Config.ChunkOverlap)
	if err != nil {
		return OutcomeError, fmt.Errorf("indexer: chunking %s: %w", op.FilePath, err)
	}

	mimeType := detectMIME(op.FilePath)
	indexedAt := time.Now().Unix()

	for _, c := range chunks {
		if ctx.Err() != nil {
			return OutcomeError, ctx.Err()
		}
		doc := model.ChunkDocument{
			ID:            chunkID(op.FilePath, c.Index),
			FilePath:      op.FilePath,
			ChunkIndex:    c.Index,
			ChunkTotal:    c.Total,
			ChunkHash:     c.Hash,
			Content:       c.Content,
			FileExtension: filepath.Ext(op.FilePath),
			FileSize:      info.Size(),
			MimeType:      mimeType,
			ModifiedTime:  info.ModTime().Unix(),
		}
		if c.Index == 0 {
			applyChunkZeroMetadata(&doc, content, fileHash, op, indexedAt)
		}
		if err := ix.Client.IndexChunk(ctx, doc); err != nil {
			return OutcomeError, fmt.Errorf("indexer: upserting chunk %d of %s: %w", c.Index, op.FilePath, err)
		}
	}

	return OutcomeIndexed, nil
}

// applyChunkZeroMetadata populates the document-level fields that
// belong only on chunk 0.
func applyChunkZeroMetadata(doc *model.ChunkDocument, content extract.Content, fileHash string, op model.CrawlOperation, indexedAt int64) {
	doc.FileHash = fileHash
	doc.IndexedAt = indexedAt
	doc.Keywords = content.Keywords
	if !op.CreatedTime.IsZero() {
		doc.CreatedTime = op.CreatedTime.Unix()
	}

	md := content.Metadata
	doc.Title = md["title"]
	doc.Author = md["author"]
	doc.Description = md["description"]
	doc.Subject = md["subject"]
	doc.Language = md["language"]
	doc.Producer = md["producer"]
	doc.Application = md["application"]
	doc.Comments = md["comments"]
	doc.Revision = md["revision"]
	doc.DocCreatedDate = md["document_created_date"]
	doc.DocModifiedDate = md["document_modified_date"]
	// content_type prefers what the extraction service detected from the
	// bytes; the extension-guessed mime type is the fallback.
	doc.ContentType = md["mime_type"]
	if doc.ContentType == "" {
		doc.ContentType = doc.MimeType
	}
}

// hashFile computes the MD5 content hash used to detect unchanged
// files, streaming 4 KiB blocks so large files never load fully into
// memory.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	buf := make([]byte, 4096)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func chunkID(filePath string, index int) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s\x00%d", filePath, index)))
	return hex.EncodeToString(sum[:])
}

// detectMIME falls back to the file extension when content sniffing
// isn't warranted for this cheap a lookup; the rich-document extraction
// strategy does a real content-based MIME sniff when it runs.
func detectMIME(path string) string {
	ext := filepath.Ext(path)
	if m := mime.TypeByExtension(ext); m != "" {
		return m
	}
	return "application/octet-stream"
}

// LogOutcome emits one structured log line per processed operation,
// logging at the boundary of a unit of work rather than inside every
// helper.
func LogOutcome(op model.CrawlOperation, outcome Outcome, err error) {
	attrs := []any{slog.String("path", op.FilePath), slog.String("kind", string(op.Kind)), slog.String("outcome", string(outcome))}
	if err != nil {
		slog.Warn("indexer processed operation with error", append(attrs, slog.String("error", err.Error()))...)
		return
	}
	slog.Debug("indexer processed operation", attrs...)
}
