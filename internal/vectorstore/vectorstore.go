// Package vectorstore stores passage embeddings for dense and hybrid retrieval.
package vectorstore

import (
	"context"
	"hash/fnv"
	"sort"

	"github.com/google/uuid"
)

// SparseVector represents a sparse vector with indices and values
type SparseVector struct {
	Indices []uint32
	Values  []float32
}

// Passage is a passage with its embedding.
type Passage struct {
	ID           string
	Content      string
	Vector       []float32     // Dense vector from embedding model
	SparseVector *SparseVector // Optional term vector for hybrid search
	Fields       map[string]string
}

// SearchResult represents a search result from the vector store
type SearchResult struct {
	PassageID string
	Content   string
	Score     float32
	Fields    map[string]string
}

// VectorStore defines the interface for vector storage operations
type VectorStore interface {
	// EnsureCollection creates the passage collection unless it exists. Hybrid collections
	// hold a named dense and a named sparse vector per point.
	EnsureCollection(ctx context.Context, dimension int, hybrid bool) error

	// CollectionExists checks if the passage collection exists
	CollectionExists(ctx context.Context) (bool, error)

	// DeleteCollection drops the passage collection
	DeleteCollection(ctx context.Context) error

	// Upsert inserts or updates passages
	Upsert(ctx context.Context, passages []Passage) error

	// Search performs similarity search using dense vectors only
	Search(ctx context.Context, vector []float32, topK int, minScore float32) ([]SearchResult, error)

	// HybridSearch fuses dense and sparse results with reciprocal rank fusion
	HybridSearch(ctx context.Context, denseVector []float32, sparseVector *SparseVector, topK int, minScore float32) ([]SearchResult, error)

	// Delete removes passages by id
	Delete(ctx context.Context, passageIDs []string) error
}

// PointID maps a passage id to the uuid of its point. The mapping is stable, so re-ingesting
// a passage overwrites its point.
func PointID(passageID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("passage:"+passageID)).String()
}

// SparseFromTerms builds a term-count vector from analyzed terms. Terms are hashed into
// the index space; indices are sorted.
func SparseFromTerms(terms []string) *SparseVector {
	counts := make(map[uint32]float32, len(terms))
	for _, term := range terms {
		h := fnv.New32a()
		h.Write([]byte(term))
		counts[h.Sum32()]++
	}

	v := &SparseVector{
		Indices: make([]uint32, 0, len(counts)),
		Values:  make([]float32, 0, len(counts)),
	}
	for idx := range counts {
		v.Indices = append(v.Indices, idx)
	}
	sort.Slice(v.Indices, func(a, b int) bool { return v.Indices[a] < v.Indices[b] })
	for _, idx := range v.Indices {
		v.Values = append(v.Values, counts[idx])
	}
	return v
}
