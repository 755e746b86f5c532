// Package reranker re-orders retrieved rankings.
//
// Every stage consumes a full ranking and returns a new one; the input is never modified.
// Stages that change the order renormalize the result so that the item at index i has rank
// i+1 and score n-i. Stages are composed with Cascade and restricted to the head of a
// ranking with Top.
package reranker

import (
	"context"
	"errors"
	"fmt"

	"github.com/knoguchi/comparank/internal/model"
)

// ErrInvalidK is returned for a negative cut-off.
var ErrInvalidK = errors.New("k must not be negative")

// Reranker defines the interface for re-ranking stages.
type Reranker interface {
	// Rerank returns a re-ordered copy of ranking for the query.
	Rerank(ctx context.Context, q model.Query, ranking model.Ranking) (model.Ranking, error)
}

// Original keeps the ranking as it is.
type Original struct{}

// Rerank implements Reranker.
func (Original) Rerank(_ context.Context, _ model.Query, ranking model.Ranking) (model.Ranking, error) {
	return ranking, nil
}

// Cascade applies its stages in order, each consuming the previous output.
type Cascade []Reranker

// Rerank implements Reranker.
func (c Cascade) Rerank(ctx context.Context, q model.Query, ranking model.Ranking) (model.Ranking, error) {
	ranking, err := Original{}.Rerank(ctx, q, ranking)
	if err != nil {
		return nil, err
	}
	for i, stage := range c {
		ranking, err = stage.Rerank(ctx, q, ranking)
		if err != nil {
			return nil, fmt.Errorf("stage %d (%T): %w", i, stage, err)
		}
	}
	return ranking, nil
}

// Top applies a stage to the first k items only. The remaining items are appended
// unchanged, and the scores of the re-ranked items are shifted by the maximum score of the
// input so they stay above the untouched tail.
type Top struct {
	reranker Reranker
	k        int
}

// NewTop restricts reranker to the first k items. A k beyond the ranking length covers the
// whole ranking.
func NewTop(reranker Reranker, k int) (*Top, error) {
	if k < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidK, k)
	}
	return &Top{reranker: reranker, k: k}, nil
}

// K returns the cut-off.
func (t *Top) K() int {
	return t.k
}

// Rerank implements Reranker.
func (t *Top) Rerank(ctx context.Context, q model.Query, ranking model.Ranking) (model.Ranking, error) {
	if len(ranking) == 0 {
		return ranking, nil
	}
	k := min(t.k, len(ranking))

	maxScore := ranking[0].Score
	for _, item := range ranking[1:] {
		maxScore = max(maxScore, item.Score)
	}

	out := make(model.Ranking, 0, len(ranking))
	if k > 0 {
		head, err := t.reranker.Rerank(ctx, q, ranking[:k].Clone())
		if err != nil {
			return nil, err
		}
		for _, item := range head {
			item.Score += maxScore
			out = append(out, item)
		}
	}
	return append(out, ranking[k:]...), nil
}
