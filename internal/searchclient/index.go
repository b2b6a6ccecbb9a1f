package searchclient

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/Hamza5/file-brain/internal/model"
)

// facetFields are the chunk-document fields marked for faceting: a
// search UI aggregates counts over these rather than full-text matching
// them. buildMapping indexes these with the keyword analyzer, so each
// value stays a single term that stats() can aggregate; every other
// field uses bleve's default mapping.
var facetFields = []string{
	"file_path",
	"file_extension",
	"mime_type",
	"author",
	"subject",
	"language",
	"producer",
	"application",
	"content_type",
	"keywords",
}

// textIndex wraps a bleve.Index over bleveDocument, the on-disk
// projection of model.ChunkDocument. Since this domain indexes general
// documents rather than source code, it uses bleve's default mapping
// plus the built-in keyword analyzer on the facet fields, and registers
// no custom analyzer.
type textIndex struct {
	index bleve.Index
}

// bleveDocument is what actually gets handed to bleve.Index.Index. It
// mirrors model.ChunkDocument field-for-field; document-level fields
// are simply empty on chunks 1..N-1, since those fields are populated
// on chunk 0 only.
type bleveDocument struct {
	FilePath      string   `json:"file_path"`
	ChunkIndex    int      `json:"chunk_index"`
	ChunkTotal    int      `json:"chunk_total"`
	ChunkHash     string   `json:"chunk_hash"`
	Content       string   `json:"content"`
	FileExtension string   `json:"file_extension"`
	FileSize      int64    `json:"file_size"`
	MimeType      string   `json:"mime_type"`
	ModifiedTime  int64    `json:"modified_time"`
	FileHash      string   `json:"file_hash"`
	CreatedTime   int64    `json:"created_time"`
	IndexedAt     int64    `json:"indexed_at"`
	Title         string   `json:"title"`
	Author        string   `json:"author"`
	Description   string   `json:"description"`
	Subject       string   `json:"subject"`
	Language      string   `json:"language"`
	Producer      string   `json:"producer"`
	Application   string   `json:"application"`
	Comments      string   `json:"comments"`
	Revision      string   `json:"revision"`
	DocCreated    string   `json:"document_created_date"`
	DocModified   string   `json:"document_modified_date"`
	Keywords      []string `json:"keywords"`
	ContentType   string   `json:"content_type"`
}

func toBleveDocument(doc model.ChunkDocument) bleveDocument {
	return bleveDocument{
		FilePath:      doc.FilePath,
		ChunkIndex:    doc.ChunkIndex,
		ChunkTotal:    doc.ChunkTotal,
		ChunkHash:     doc.ChunkHash,
		Content:       doc.Content,
		FileExtension: doc.FileExtension,
		FileSize:      doc.FileSize,
		MimeType:      doc.MimeType,
		ModifiedTime:  doc.ModifiedTime,
		FileHash:      doc.FileHash,
		CreatedTime:   doc.CreatedTime,
		IndexedAt:     doc.IndexedAt,
		Title:         doc.Title,
		Author:        doc.Author,
		Description:   doc.Description,
		Subject:       doc.Subject,
		Language:      doc.Language,
		Producer:      doc.Producer,
		Application:   doc.Application,
		Comments:      doc.Comments,
		Revision:      doc.Revision,
		DocCreated:    doc.DocCreatedDate,
		DocModified:   doc.DocModifiedDate,
		Keywords:      doc.Keywords,
		ContentType:   doc.ContentType,
	}
}

func fromBleveDocument(id string, d bleveDocument, embedding []float32) model.ChunkDocument {
	return model.ChunkDocument{
		ID:              id,
		FilePath:        d.FilePath,
		ChunkIndex:      d.ChunkIndex,
		ChunkTotal:      d.ChunkTotal,
		ChunkHash:       d.ChunkHash,
		Content:         d.Content,
		FileExtension:   d.FileExtension,
		FileSize:        d.FileSize,
		MimeType:        d.MimeType,
		ModifiedTime:    d.ModifiedTime,
		FileHash:        d.FileHash,
		CreatedTime:     d.CreatedTime,
		IndexedAt:       d.IndexedAt,
		Title:           d.Title,
		Author:          d.Author,
		Description:     d.Description,
		Subject:         d.Subject,
		Language:        d.Language,
		Producer:        d.Producer,
		Application:     d.Application,
		Comments:        d.Comments,
		Revision:        d.Revision,
		DocCreatedDate:  d.DocCreated,
		DocModifiedDate: d.DocModified,
		Keywords:        d.Keywords,
		ContentType:     d.ContentType,
		Embedding:       embedding,
	}
}

// newTextIndex opens (or creates) the bleve index at path. An empty
// path opens an in-memory index, a convenient shortcut for tests.
func newTextIndex(path string) (*textIndex, error) {
	im, err := buildMapping()
	if err != nil {
		return nil, fmt.Errorf("searchclient: build mapping: %w", err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(im)
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("searchclient: create index dir: %w", err)
		}
		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, im)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("searchclient: open index: %w", err)
	}
	return &textIndex{index: idx}, nil
}

// buildMapping builds the chunk-document mapping: standard analyzer
// everywhere, facet-enabled keyword sub-mapping on the faceted fields,
// content/title/description left as free text.
func buildMapping() (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()

	keyword := bleve.NewTextFieldMapping()
	keyword.Analyzer = "keyword"
	keyword.IncludeInAll = false

	for _, f := range facetFields {
		docMapping.AddFieldMappingsAt(f, keyword)
	}

	// content/title/description keep the default (standard English)
	// analyzer for full-text matching; everything else not named above
	// falls back to bleve's dynamic default mapping, which is adequate
	// for the non-faceted scalar fields (hashes, timestamps as numbers).
	im.AddDocumentMapping("_default", docMapping)
	return im, nil
}
