package reranker

import "github.com/knoguchi/comparank/internal/model"

// Renormalize returns a copy of ranking where the item at index i has rank i+1 and score
// n-i. Annotations are carried over unchanged.
func Renormalize(ranking model.Ranking) model.Ranking {
	n := len(ranking)
	out := make(model.Ranking, n)
	for i, item := range ranking {
		item.Rank = i + 1
		item.Score = float64(n - i)
		out[i] = item
	}
	return out
}
