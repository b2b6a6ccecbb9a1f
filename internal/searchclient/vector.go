package searchclient

import (
	"fmt"
	"math"
	"sync"

	"github.com/coder/hnsw"
)

// embeddingStore is the embedding-field half of the search-engine
// client. It uses a lazy-delete-by-key-orphaning technique: coder/hnsw
// has a bug deleting the last remaining graph node, so re-indexing or
// removing a vector never calls graph.Delete; it just drops the
// string-ID mapping and leaves the now-unreachable graph node in the
// graph, where search skips it. The graph is held in memory only and
// nothing prunes orphaned nodes from it.
type embeddingStore struct {
	mu        sync.RWMutex
	graph     *hnsw.Graph[uint64]
	dimension int

	idToKey map[string]uint64
	keyToID map[uint64]string
	nextKey uint64

	closed bool
}

// newEmbeddingStore creates an empty cosine-distance HNSW index.
// dimension is fixed at construction: a vector of the wrong length is
// rejected rather than silently truncated or padded.
func newEmbeddingStore(dimension int) *embeddingStore {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	g.M = 16
	g.EfSearch = 20
	g.Ml = 0.25

	return &embeddingStore{
		graph:     g,
		dimension: dimension,
		idToKey:   make(map[string]uint64),
		keyToID:   make(map[uint64]string),
	}
}

// upsert stores (or replaces) the embedding for id. A zero-length
// vector is accepted as "no embedding for this chunk" and removes any
// prior entry instead of indexing an empty one, since most chunk documents
// only carry an embedding on chunk 0.
func (s *embeddingStore) upsert(id string, vector []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("searchclient: embedding store closed")
	}
	if len(vector) == 0 {
		s.orphanLocked(id)
		return nil
	}
	if len(vector) != s.dimension {
		return fmt.Errorf("searchclient: embedding dimension mismatch: want %d, got %d", s.dimension, len(vector))
	}

	s.orphanLocked(id)

	key := s.nextKey
	s.nextKey++

	normalized := make([]float32, len(vector))
	copy(normalized, vector)
	normalizeInPlace(normalized)

	s.graph.Add(hnsw.MakeNode(key, normalized))
	s.idToKey[id] = key
	s.keyToID[key] = id
	return nil
}

// orphanLocked removes id's mapping without touching the graph.
// Caller must hold s.mu.
func (s *embeddingStore) orphanLocked(id string) {
	if key, ok := s.idToKey[id]; ok {
		delete(s.keyToID, key)
		delete(s.idToKey, id)
	}
}

func (s *embeddingStore) delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orphanLocked(id)
}

// vectorResult is one nearest-neighbor hit.
type vectorResult struct {
	ID    string
	Score float32
}

func (s *embeddingStore) search(query []float32, k int) ([]vectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("searchclient: embedding store closed")
	}
	if len(query) != s.dimension {
		return nil, fmt.Errorf("searchclient: embedding dimension mismatch: want %d, got %d", s.dimension, len(query))
	}
	if s.graph.Len() == 0 {
		return nil, nil
	}

	normalized := make([]float32, len(query))
	copy(normalized, query)
	normalizeInPlace(normalized)

	nodes := s.graph.Search(normalized, k)
	results := make([]vectorResult, 0, len(nodes))
	for _, node := range nodes {
		id, ok := s.keyToID[node.Key]
		if !ok {
			continue // orphaned node, lazily deleted
		}
		distance := s.graph.Distance(normalized, node.Value)
		results = append(results, vectorResult{ID: id, Score: 1 - distance/2})
	}
	return results, nil
}

func (s *embeddingStore) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.idToKey)
}

func (s *embeddingStore) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idToKey = make(map[string]uint64)
	s.keyToID = make(map[uint64]string)
}

func (s *embeddingStore) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.graph = nil
	return nil
}

func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}
