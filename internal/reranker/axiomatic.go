package reranker

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/knoguchi/comparank/internal/axiom"
	"github.com/knoguchi/comparank/internal/model"
	"github.com/knoguchi/comparank/internal/rerankctx"
)

// ErrRankTie is returned when the axiom has no preference between two items that share the
// same pre-existing rank. It indicates corrupted input.
var ErrRankTie = errors.New("items share the same rank")

// Axiomatic orders a ranking by the pairwise preferences of an axiom. Axioms only define a
// partial and possibly intransitive relation, so it partitions around random pivots
// (kwiksort) instead of sorting, falling back to the pre-existing rank when the axiom has
// no preference.
//
// Recursion depth is O(log n) expected and n in the worst case. Rankings are at most a few
// thousand items, well within the goroutine stack.
type Axiomatic struct {
	context rerankctx.Context
	axiom   axiom.Axiom

	mu  sync.Mutex
	rng *rand.Rand
}

// NewAxiomatic creates an axiomatic stage. Pivots are drawn from rng, so a fixed seed gives
// a reproducible order.
func NewAxiomatic(rc rerankctx.Context, a axiom.Axiom, rng *rand.Rand) *Axiomatic {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Axiomatic{
		context: rc,
		axiom:   a,
		rng:     rng,
	}
}

// Rerank implements Reranker. Cached preferences are dropped first, since they are keyed
// by item id only.
func (a *Axiomatic) Rerank(ctx context.Context, q model.Query, ranking model.Ranking) (model.Ranking, error) {
	axiom.Reset(a.axiom)

	sorted, err := a.kwiksort(ctx, q, ranking)
	if err != nil {
		return nil, err
	}
	return Renormalize(sorted), nil
}

func (a *Axiomatic) kwiksort(ctx context.Context, q model.Query, items model.Ranking) (model.Ranking, error) {
	if len(items) == 0 {
		return model.Ranking{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p := a.pivot(len(items))
	pivot := items[p]

	var left, right model.Ranking
	for i, v := range items {
		if i == p {
			continue
		}
		preference := a.axiom.Preference(a.context, q, v, pivot)
		switch {
		case preference > 0:
			left = append(left, v)
		case preference < 0:
			right = append(right, v)
		case v.Rank < pivot.Rank:
			left = append(left, v)
		case v.Rank > pivot.Rank:
			right = append(right, v)
		default:
			return nil, fmt.Errorf("%w: %q and %q at rank %d", ErrRankTie, v.ID, pivot.ID, v.Rank)
		}
	}

	left, err := a.kwiksort(ctx, q, left)
	if err != nil {
		return nil, err
	}
	right, err = a.kwiksort(ctx, q, right)
	if err != nil {
		return nil, err
	}

	out := make(model.Ranking, 0, len(items))
	out = append(out, left...)
	out = append(out, pivot)
	return append(out, right...), nil
}

func (a *Axiomatic) pivot(n int) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rng.IntN(n)
}
