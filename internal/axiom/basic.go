package axiom

import (
	"math/rand/v2"
	"sync"

	"github.com/knoguchi/comparank/internal/model"
	"github.com/knoguchi/comparank/internal/rerankctx"
)

// Random returns a uniformly random preference in {-1, 0, 1}. It is not antisymmetric and
// only serves as a baseline.
type Random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandom creates a Random axiom drawing from rng.
func NewRandom(rng *rand.Rand) *Random {
	return &Random{rng: rng}
}

// Preference implements Axiom.
func (r *Random) Preference(rerankctx.Context, model.Query, model.RankedItem, model.RankedItem) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return float64(r.rng.IntN(3) - 1)
}

// DocumentID prefers the lexicographically smaller id. Useful in tests.
type DocumentID struct{}

// Preference implements Axiom.
func (DocumentID) Preference(_ rerankctx.Context, _ model.Query, a, b model.RankedItem) float64 {
	return strictlyLess(a.ID, b.ID)
}

// Original prefers the item with the better pre-existing rank.
type Original struct{}

// Preference implements Axiom.
func (Original) Preference(_ rerankctx.Context, _ model.Query, a, b model.RankedItem) float64 {
	return strictlyLess(a.Rank, b.Rank)
}

// Retrieval-score axioms prefer the item the retrieval model scores higher.
type (
	TFIDF struct{}
	BM25  struct{}
	PL2   struct{}
	QL    struct{}
)

// Preference implements Axiom.
func (TFIDF) Preference(rc rerankctx.Context, q model.Query, a, b model.RankedItem) float64 {
	return strictlyGreater(rc.TFIDFScore(q, a.Document), rc.TFIDFScore(q, b.Document))
}

// Preference implements Axiom.
func (BM25) Preference(rc rerankctx.Context, q model.Query, a, b model.RankedItem) float64 {
	return strictlyGreater(rc.BM25Score(q, a.Document), rc.BM25Score(q, b.Document))
}

// Preference implements Axiom.
func (PL2) Preference(rc rerankctx.Context, q model.Query, a, b model.RankedItem) float64 {
	return strictlyGreater(rc.PL2Score(q, a.Document), rc.PL2Score(q, b.Document))
}

// Preference implements Axiom.
func (QL) Preference(rc rerankctx.Context, q model.Query, a, b model.RankedItem) float64 {
	return strictlyGreater(rc.QLScore(q, a.Document), rc.QLScore(q, b.Document))
}
