package reranker

import (
	"context"
	"fmt"
	"slices"

	"github.com/knoguchi/comparank/internal/model"
)

// AlternatingStance interleaves items favouring the first object, items favouring the
// second and neutral items so that consecutive results alternate stance where possible.
// Untagged items count as neutral.
type AlternatingStance struct{}

// Rerank implements Reranker.
func (AlternatingStance) Rerank(_ context.Context, _ model.Query, ranking model.Ranking) (model.Ranking, error) {
	remaining := ranking.Clone()
	out := make(model.Ranking, 0, len(ranking))

	var last float64
	for len(remaining) > 0 {
		next := 0
		switch {
		case last > 0:
			next = firstIndex(remaining, 0, func(s float64) bool { return s <= 0 })
		case last < 0:
			next = firstIndex(remaining, 0, func(s float64) bool { return s >= 0 })
		}
		if next < 0 {
			next = 0
		}

		item := remaining[next]
		remaining = slices.Delete(remaining, next, next+1)
		out = append(out, item)
		last = item.Stance()
	}
	return Renormalize(out), nil
}

// BalancedTopKStance moves items so that the first k results hold about as many items
// favouring the first object as favouring the second (difference at most one). An item in
// excess is taken from the first k+1 positions and re-inserted where the first opposing
// item at or after position k was found, moving that item up by one. It stops early when no
// such pair exists.
type BalancedTopKStance struct {
	k int
}

// NewBalancedTopKStance creates the stage for cut-off k.
func NewBalancedTopKStance(k int) (*BalancedTopKStance, error) {
	if k < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidK, k)
	}
	return &BalancedTopKStance{k: k}, nil
}

// Rerank implements Reranker.
func (b *BalancedTopKStance) Rerank(_ context.Context, _ model.Query, ranking model.Ranking) (model.Ranking, error) {
	out := ranking.Clone()
	k := min(b.k, len(out))

	pro := func(s float64) bool { return s > 0 }
	con := func(s float64) bool { return s < 0 }

	for {
		diff := 0
		for _, item := range out[:k] {
			switch s := item.Stance(); {
			case s > 0:
				diff++
			case s < 0:
				diff--
			}
		}

		var excess, deficit func(float64) bool
		switch {
		case diff > 1:
			excess, deficit = pro, con
		case diff < -1:
			excess, deficit = con, pro
		default:
			return Renormalize(out), nil
		}

		from := firstIndex(out[:min(k+1, len(out))], 0, excess)
		to := firstIndex(out, k, deficit)
		if from < 0 || to < 0 {
			return Renormalize(out), nil
		}

		item := out[from]
		out = slices.Delete(out, from, from+1)
		out = slices.Insert(out, to, item)
	}
}

// firstIndex returns the index of the first item at or after start whose stance satisfies
// match, or -1.
func firstIndex(ranking model.Ranking, start int, match func(float64) bool) int {
	for i := start; i < len(ranking); i++ {
		if match(ranking[i].Stance()) {
			return i
		}
	}
	return -1
}
