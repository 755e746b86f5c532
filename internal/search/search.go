// Package search retrieves the initial rankings that are re-ranked afterwards.
package search

import (
	"context"
	"fmt"

	"github.com/knoguchi/comparank/internal/analysis"
	"github.com/knoguchi/comparank/internal/embedder"
	"github.com/knoguchi/comparank/internal/index"
	"github.com/knoguchi/comparank/internal/model"
	"github.com/knoguchi/comparank/internal/repository"
	"github.com/knoguchi/comparank/internal/vectorstore"
)

// Searcher retrieves up to numHits ranked passages for a query, with ranks 1..n.
type Searcher interface {
	Search(ctx context.Context, q model.Query, numHits int) (model.Ranking, error)
}

// Lexical searches the in-memory index.
type Lexical struct {
	index *index.Index
	model index.RetrievalModel
}

// NewLexical creates a lexical searcher scoring with the given retrieval model.
func NewLexical(idx *index.Index, m index.RetrievalModel) *Lexical {
	return &Lexical{index: idx, model: m}
}

// Search implements Searcher. It never fails.
func (s *Lexical) Search(_ context.Context, q model.Query, numHits int) (model.Ranking, error) {
	return model.Ranking(s.index.Search(q.Title, numHits, s.model)), nil
}

// DenseConfig configures a Dense searcher.
type DenseConfig struct {
	Embedder embedder.Embedder
	Store    vectorstore.VectorStore
	// Passages fills in content missing from point payloads. Optional.
	Passages repository.PassageRepository
	// Analyzer turns on hybrid search with term vectors of the query. Optional.
	Analyzer *analysis.Analyzer
	MinScore float32
}

// Dense searches passage embeddings in the vector store.
type Dense struct {
	embedder embedder.Embedder
	store    vectorstore.VectorStore
	passages repository.PassageRepository
	analyzer *analysis.Analyzer
	minScore float32
}

// NewDense creates a dense searcher.
func NewDense(cfg DenseConfig) *Dense {
	return &Dense{
		embedder: cfg.Embedder,
		store:    cfg.Store,
		passages: cfg.Passages,
		analyzer: cfg.Analyzer,
		minScore: cfg.MinScore,
	}
}

// Search implements Searcher.
func (s *Dense) Search(ctx context.Context, q model.Query, numHits int) (model.Ranking, error) {
	if numHits <= 0 {
		return nil, nil
	}

	vector, err := s.embedder.Embed(ctx, q.Title)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var results []vectorstore.SearchResult
	if s.analyzer != nil {
		sparse := vectorstore.SparseFromTerms(s.analyzer.Terms(q.Title))
		results, err = s.store.HybridSearch(ctx, vector, sparse, numHits, s.minScore)
	} else {
		results, err = s.store.Search(ctx, vector, numHits, s.minScore)
	}
	if err != nil {
		return nil, fmt.Errorf("search vectors: %w", err)
	}

	var missing []string
	for _, r := range results {
		if r.Content == "" && r.PassageID != "" {
			missing = append(missing, r.PassageID)
		}
	}
	var stored map[string]model.Document
	if len(missing) > 0 && s.passages != nil {
		if stored, err = s.passages.GetMany(ctx, missing); err != nil {
			return nil, fmt.Errorf("load passages: %w", err)
		}
	}

	ranking := make(model.Ranking, 0, len(results))
	seen := make(map[string]struct{}, len(results))
	for _, r := range results {
		if r.PassageID == "" {
			continue
		}
		if _, ok := seen[r.PassageID]; ok {
			continue
		}
		seen[r.PassageID] = struct{}{}

		doc := model.Document{ID: r.PassageID, Content: r.Content}
		if len(r.Fields) > 0 {
			doc.Fields = r.Fields
		}
		if doc.Content == "" {
			found, ok := stored[r.PassageID]
			if !ok {
				continue
			}
			doc = found
		}
		ranking = append(ranking, model.RankedItem{
			Document: doc,
			Score:    float64(r.Score),
			Rank:     len(ranking) + 1,
		})
	}
	return ranking, nil
}

var (
	_ Searcher = (*Lexical)(nil)
	_ Searcher = (*Dense)(nil)
)
