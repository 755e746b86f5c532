package axiom

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/knoguchi/comparank/internal/embedder"
	"github.com/knoguchi/comparank/internal/model"
	"github.com/knoguchi/comparank/internal/rerankctx"
)

// TermSimilarity scores how related two terms are.
type TermSimilarity interface {
	Similarity(term1, term2 string) float64
}

// EmbeddingSimilarity is the cosine similarity of term embeddings. Vectors must be loaded
// before re-ranking; unknown terms have similarity 0.
type EmbeddingSimilarity struct {
	embedder embedder.Embedder

	mu      sync.RWMutex
	vectors map[string][]float32
}

// NewEmbeddingSimilarity creates a similarity backed by emb.
func NewEmbeddingSimilarity(emb embedder.Embedder) *EmbeddingSimilarity {
	return &EmbeddingSimilarity{
		embedder: emb,
		vectors:  make(map[string][]float32),
	}
}

// Load embeds every term not embedded yet in one batch.
func (s *EmbeddingSimilarity) Load(ctx context.Context, terms []string) error {
	s.mu.RLock()
	var missing []string
	seen := make(map[string]struct{})
	for _, t := range terms {
		if _, ok := s.vectors[t]; ok {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		missing = append(missing, t)
	}
	s.mu.RUnlock()

	if len(missing) == 0 {
		return nil
	}

	vectors, err := s.embedder.EmbedBatch(ctx, missing)
	if err != nil {
		return fmt.Errorf("embed terms: %w", err)
	}

	s.mu.Lock()
	for i, t := range missing {
		s.vectors[t] = vectors[i]
	}
	s.mu.Unlock()
	return nil
}

// Similarity implements TermSimilarity.
func (s *EmbeddingSimilarity) Similarity(term1, term2 string) float64 {
	s.mu.RLock()
	v1, ok1 := s.vectors[term1]
	v2, ok2 := s.vectors[term2]
	s.mu.RUnlock()
	if !ok1 || !ok2 {
		return 0
	}
	return cosine(v1, v2)
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// STMC1 prefers the item whose terms are on average more similar to the query terms.
type STMC1 struct {
	Similarity TermSimilarity
}

// Preference implements Axiom.
func (s STMC1) Preference(rc rerankctx.Context, q model.Query, a, b model.RankedItem) float64 {
	if s.Similarity == nil {
		return 0
	}
	query := rc.TermSet(q.Title)
	return strictlyGreater(
		s.averageSimilarity(rc.TermSet(a.Content), query),
		s.averageSimilarity(rc.TermSet(b.Content), query),
	)
}

func (s STMC1) averageSimilarity(terms1, terms2 map[string]struct{}) float64 {
	if len(terms1) == 0 || len(terms2) == 0 {
		return 0
	}
	var sum float64
	for t1 := range terms1 {
		for t2 := range terms2 {
			sum += s.Similarity.Similarity(t1, t2)
		}
	}
	return sum / float64(len(terms1)*len(terms2))
}
