package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// RichDocTimeouts is the increasing-timeout retry sequence for the
// rich-document strategy: 60s, then 120s, then 240s.
var RichDocTimeouts = []time.Duration{
	60 * time.Second,
	120 * time.Second,
	240 * time.Second,
}

// unsupportedMIME is what the external extraction service (and Go's own
// mimetype sniffer) reports for unknown binary content. Tika-compatible
// services return this exact MIME for content they cannot positively
// identify, and that is treated as "not supported" so Basic can still
// run.
const unsupportedMIME = "application/octet-stream"

// RichDocumentStrategy delegates extraction to an external document
// service, specified only at its interface: detect MIME, then call the
// service with the 60/120/240s retry ladder. If the detected MIME is
// one the service is expected to support and every retry still failed,
// this is a no-fallback failure; otherwise the caller is free to try
// Basic. Talks to the service over a generic JSON-over-HTTP contract
// (a Tika-compatible rmeta/text endpoint) rather than any
// language-specific client library.
type RichDocumentStrategy struct {
	Endpoint string
	Client   *http.Client
	Enabled  bool
}

// NewRichDocumentStrategy returns a strategy that calls the extraction
// service at endpoint. If endpoint is empty, the strategy disables
// itself (CanExtract always false) so the chain falls straight to
// Basic: this is how a desktop install without the optional extraction
// service degrades gracefully when that component is unavailable.
func NewRichDocumentStrategy(endpoint string) *RichDocumentStrategy {
	return &RichDocumentStrategy{
		Endpoint: strings.TrimRight(endpoint, "/"),
		Client:   &http.Client{},
		Enabled:  endpoint != "",
	}
}

func (s *RichDocumentStrategy) Name() string { return "rich_document" }

func (s *RichDocumentStrategy) CanExtract(path string) bool { return s.Enabled }

func (s *RichDocumentStrategy) Extract(ctx context.Context, path string) (Content, error) {
	detected, err := mimetype.DetectFile(path)
	mimeType := unsupportedMIME
	if err == nil && detected != nil {
		mimeType = detected.String()
	}
	supported := mimeType != unsupportedMIME

	var lastErr error
	for attempt, timeout := range RichDocTimeouts {
		if ctx.Err() != nil {
			return Content{}, ctx.Err()
		}

		callCtx, cancel := context.WithTimeout(ctx, timeout)
		content, callErr := s.call(callCtx, path, mimeType)
		cancel()
		if callErr == nil {
			return content, nil
		}
		lastErr = fmt.Errorf("rich_document attempt %d/%d: %w", attempt+1, len(RichDocTimeouts), callErr)
	}

	if supported {
		return Content{}, &NoFallbackError{Strategy: s.Name(), Path: path, Err: lastErr}
	}
	return Content{}, lastErr
}

// rmetaEntry mirrors one object of a Tika rmeta/text JSON response: the
// extracted body under "X-TIKA:content" plus a flat bag of metadata
// key/value pairs (Tika emits some as single strings, some as arrays).
type rmetaEntry map[string]json.RawMessage

// tikaMetadataKeys maps a rich-document service's metadata keys to the
// ChunkDocument metadata fields this crawler stores.
var tikaMetadataKeys = map[string]string{
	"Content-Type":        "mime_type",
	"dc:title":            "title",
	"title":               "title",
	"dc:creator":          "author",
	"Author":              "author",
	"creator":             "author",
	"dc:description":      "description",
	"description":         "description",
	"dc:subject":          "subject",
	"subject":             "subject",
	"dc:language":         "language",
	"language":            "language",
	"producer":            "producer",
	"xmp:CreatorTool":     "application",
	"Application-Name":    "application",
	"comment":             "comments",
	"Comments":            "comments",
	"cp:revision":         "revision",
	"Last-Modified":       "document_modified_date",
	"Creation-Date":       "document_created_date",
}

func (s *RichDocumentStrategy) call(ctx context.Context, path, mimeType string) (Content, error) {
	f, err := os.Open(path)
	if err != nil {
		return Content{}, err
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.Endpoint+"/rmeta/text", f)
	if err != nil {
		return Content{}, err
	}
	req.Header.Set("Accept", "application/json")
	if mimeType != "" && mimeType != unsupportedMIME {
		req.Header.Set("Content-Type", mimeType)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return Content{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Content{}, fmt.Errorf("extraction service returned status %d", resp.StatusCode)
	}

	var entries []rmetaEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return Content{}, fmt.Errorf("decoding extraction service response: %w", err)
	}
	if len(entries) == 0 {
		return Content{Metadata: map[string]string{}}, nil
	}

	content, metadata, keywords := flattenRmeta(entries[0])
	return Content{Text: strings.TrimSpace(content), Metadata: metadata, Keywords: keywords}, nil
}

func flattenRmeta(entry rmetaEntry) (string, map[string]string, []string) {
	metadata := map[string]string{}
	var content string
	var keywords []string

	for key, raw := range entry {
		if key == "X-TIKA:content" {
			var s string
			if err := json.Unmarshal(raw, &s); err == nil {
				content = s
			}
			continue
		}
		mapped, ok := tikaMetadataKeys[key]
		if !ok {
			continue
		}
		if values := decodeRmetaValues(raw); len(values) > 0 {
			metadata[mapped] = values[0]
		}
	}
	if kw := decodeKeywords(entry); len(kw) > 0 {
		keywords = append(keywords, kw...)
	}
	return content, metadata, keywords
}

// decodeRmetaValues reads a raw JSON value that Tika may emit as either
// a bare string or an array of strings, returning it as a string slice.
func decodeRmetaValues(raw json.RawMessage) []string {
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if single == "" {
			return nil
		}
		return []string{single}
	}
	var multi []string
	if err := json.Unmarshal(raw, &multi); err == nil {
		return multi
	}
	var num float64
	if err := json.Unmarshal(raw, &num); err == nil {
		return []string{strconv.FormatFloat(num, 'f', -1, 64)}
	}
	return nil
}

func decodeKeywords(entry rmetaEntry) []string {
	for _, key := range []string{"meta:keyword", "Keywords", "dc:subject"} {
		if raw, ok := entry[key]; ok {
			if v := decodeRmetaValues(raw); len(v) > 0 {
				return v
			}
		}
	}
	return nil
}
