package searchclient

import (
	"context"
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/Hamza5/file-brain/internal/model"
)

func (t *textIndex) indexDoc(doc model.ChunkDocument) error {
	return t.index.Index(doc.ID, toBleveDocument(doc))
}

func (t *textIndex) deleteDoc(id string) error {
	return t.index.Delete(id)
}

// idsForPath returns every document ID indexed for path, across all
// of its chunks.
func (t *textIndex) idsForPath(ctx context.Context, path string) ([]string, error) {
	q := bleve.NewTermQuery(path)
	q.SetField("file_path")
	req := bleve.NewSearchRequest(q)
	req.Size = 1 << 20
	req.Fields = nil

	result, err := t.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("searchclient: query by path: %w", err)
	}
	ids := make([]string, len(result.Hits))
	for i, hit := range result.Hits {
		ids[i] = hit.ID
	}
	return ids, nil
}

// getChunkZero returns the chunk-0 document for path, or nil if none
// is indexed.
func (t *textIndex) getChunkZero(ctx context.Context, path string) (*model.ChunkDocument, error) {
	pathQ := bleve.NewTermQuery(path)
	pathQ.SetField("file_path")

	conj := bleve.NewConjunctionQuery(pathQ, chunkZeroQuery())
	req := bleve.NewSearchRequest(conj)
	req.Size = 1
	req.Fields = []string{"*"}

	result, err := t.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("searchclient: query chunk zero: %w", err)
	}
	if len(result.Hits) == 0 {
		return nil, nil
	}
	doc := hitToChunkDocument(result.Hits[0])
	return &doc, nil
}

// chunkZeroQuery matches only the first chunk of every file: the
// verifier's sweep and count() both enumerate files, not chunks, and
// chunk 0 is the one carrying document-level metadata.
func chunkZeroQuery() *query.NumericRangeQuery {
	q := bleve.NewNumericRangeInclusiveQuery(ptr(0.0), ptr(0.0), boolPtr(true), boolPtr(true))
	q.SetField("chunk_index")
	return q
}

// scan returns up to limit chunk-0 documents ordered by file_path,
// starting at offset, for the verifier's paged sweep.
func (t *textIndex) scan(ctx context.Context, limit, offset int) ([]model.ChunkDocument, error) {
	req := bleve.NewSearchRequestOptions(chunkZeroQuery(), limit, offset, false)
	req.Fields = []string{"*"}
	req.SortBy([]string{"file_path"})

	result, err := t.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("searchclient: scan: %w", err)
	}
	docs := make([]model.ChunkDocument, len(result.Hits))
	for i, hit := range result.Hits {
		docs[i] = hitToChunkDocument(hit)
	}
	return docs, nil
}

// count returns the number of chunk-0 documents, i.e. indexed files.
func (t *textIndex) count(ctx context.Context) (int, error) {
	req := bleve.NewSearchRequestOptions(chunkZeroQuery(), 0, 0, false)
	result, err := t.index.SearchInContext(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("searchclient: count: %w", err)
	}
	return int(result.Total), nil
}

// facetCounts aggregates value counts for every field in facetFields,
// backing the Stats() operation.
func (t *textIndex) facetCounts(ctx context.Context) (map[string]map[string]int, error) {
	q := bleve.NewMatchAllQuery()
	req := bleve.NewSearchRequestOptions(q, 0, 0, false)
	for _, f := range facetFields {
		req.AddFacet(f, bleve.NewFacetRequest(f, 50))
	}

	result, err := t.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("searchclient: facets: %w", err)
	}

	out := make(map[string]map[string]int, len(facetFields))
	for name, fr := range result.Facets {
		values := make(map[string]int, len(fr.Terms.Terms()))
		for _, term := range fr.Terms.Terms() {
			values[term.Term] = term.Count
		}
		out[name] = values
	}
	return out, nil
}

// allIDs returns every document ID across all chunks, for clearAll's
// paired HNSW sweep.
func (t *textIndex) allIDs(ctx context.Context) ([]string, error) {
	n, err := t.index.DocCount()
	if err != nil {
		return nil, fmt.Errorf("searchclient: doc count: %w", err)
	}
	docCount := int(n)
	q := bleve.NewMatchAllQuery()
	req := bleve.NewSearchRequestOptions(q, docCount, 0, false)
	req.Fields = nil

	result, err := t.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("searchclient: list all ids: %w", err)
	}
	ids := make([]string, len(result.Hits))
	for i, hit := range result.Hits {
		ids[i] = hit.ID
	}
	return ids, nil
}

func (t *textIndex) close() error {
	return t.index.Close()
}

func hitToChunkDocument(hit *search.DocumentMatch) model.ChunkDocument {
	get := func(field string) string {
		if v, ok := hit.Fields[field].(string); ok {
			return v
		}
		return ""
	}
	getInt := func(field string) int {
		if v, ok := hit.Fields[field].(float64); ok {
			return int(v)
		}
		return 0
	}
	getInt64 := func(field string) int64 {
		if v, ok := hit.Fields[field].(float64); ok {
			return int64(v)
		}
		return 0
	}
	var keywords []string
	switch kw := hit.Fields["keywords"].(type) {
	case []interface{}:
		for _, v := range kw {
			if s, ok := v.(string); ok {
				keywords = append(keywords, s)
			}
		}
	case string:
		keywords = []string{kw}
	}

	return model.ChunkDocument{
		ID:              hit.ID,
		FilePath:        get("file_path"),
		ChunkIndex:      getInt("chunk_index"),
		ChunkTotal:      getInt("chunk_total"),
		ChunkHash:       get("chunk_hash"),
		Content:         get("content"),
		FileExtension:   get("file_extension"),
		FileSize:        getInt64("file_size"),
		MimeType:        get("mime_type"),
		ModifiedTime:    getInt64("modified_time"),
		FileHash:        get("file_hash"),
		CreatedTime:     getInt64("created_time"),
		IndexedAt:       getInt64("indexed_at"),
		Title:           get("title"),
		Author:          get("author"),
		Description:     get("description"),
		Subject:         get("subject"),
		Language:        get("language"),
		Producer:        get("producer"),
		Application:     get("application"),
		Comments:        get("comments"),
		Revision:        get("revision"),
		DocCreatedDate:  get("document_created_date"),
		DocModifiedDate: get("document_modified_date"),
		Keywords:        keywords,
		ContentType:     get("content_type"),
	}
}

func ptr(f float64) *float64 { return &f }

func boolPtr(b bool) *bool { return &b }
