// Package axiom provides pairwise preference rules between ranked items and the combinators
// used to compose them into a single preference function.
//
// A preference is positive when the first item should rank above the second, negative when
// the second should rank above the first and zero when the axiom has no opinion. Axioms that
// need an annotation the items do not carry return zero.
package axiom

import (
	"log/slog"
	"sync"

	"github.com/knoguchi/comparank/internal/model"
	"github.com/knoguchi/comparank/internal/rerankctx"
)

// Axiom computes a signed pairwise preference between two items for a query.
type Axiom interface {
	Preference(rc rerankctx.Context, q model.Query, a, b model.RankedItem) float64
}

// Func adapts an ordinary function to the Axiom interface.
type Func func(rc rerankctx.Context, q model.Query, a, b model.RankedItem) float64

// Preference implements Axiom.
func (f Func) Preference(rc rerankctx.Context, q model.Query, a, b model.RankedItem) float64 {
	return f(rc, q, a, b)
}

// Resetter is implemented by axioms holding per-ranking state. Combinators forward Reset to
// the axioms they wrap.
type Resetter interface {
	Reset()
}

// Reset clears the state of a if it holds any.
func Reset(a Axiom) {
	if r, ok := a.(Resetter); ok {
		r.Reset()
	}
}

// Weighted multiplies the preference of an axiom by a fixed weight.
type Weighted struct {
	Axiom  Axiom
	Weight float64
}

// Preference implements Axiom.
func (w Weighted) Preference(rc rerankctx.Context, q model.Query, a, b model.RankedItem) float64 {
	return w.Weight * w.Axiom.Preference(rc, q, a, b)
}

// Reset implements Resetter.
func (w Weighted) Reset() {
	Reset(w.Axiom)
}

// Aggregated sums the preferences of its axioms.
type Aggregated []Axiom

// Preference implements Axiom.
func (ag Aggregated) Preference(rc rerankctx.Context, q model.Query, a, b model.RankedItem) float64 {
	var sum float64
	for _, axiom := range ag {
		sum += axiom.Preference(rc, q, a, b)
	}
	return sum
}

// Reset implements Resetter.
func (ag Aggregated) Reset() {
	for _, axiom := range ag {
		Reset(axiom)
	}
}

// Normalized maps the preference of an axiom to -1, 0 or +1.
type Normalized struct {
	Axiom Axiom
}

// Preference implements Axiom.
func (n Normalized) Preference(rc rerankctx.Context, q model.Query, a, b model.RankedItem) float64 {
	return sign(n.Axiom.Preference(rc, q, a, b))
}

// Reset implements Resetter.
func (n Normalized) Reset() {
	Reset(n.Axiom)
}

type pair struct {
	a, b string
}

// Cached memoizes the preference of an axiom per pair of item ids. A lookup of the reversed
// pair returns the negated value, so the wrapped axiom must be antisymmetric. Entries are
// keyed by id only; call Reset whenever the set of items changes.
type Cached struct {
	axiom  Axiom
	check  bool
	logger *slog.Logger

	mu    sync.Mutex
	cache map[pair]float64
}

// CachedOption configures a Cached axiom.
type CachedOption func(*Cached)

// WithAntisymmetryCheck evaluates both orders on every cache miss and logs a warning when
// the wrapped axiom is not antisymmetric. It doubles the cost of a miss.
func WithAntisymmetryCheck(logger *slog.Logger) CachedOption {
	return func(c *Cached) {
		c.check = true
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCached wraps axiom with a per-pair cache.
func NewCached(axiom Axiom, opts ...CachedOption) *Cached {
	c := &Cached{
		axiom:  axiom,
		logger: slog.Default(),
		cache:  make(map[pair]float64),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Preference implements Axiom.
func (c *Cached) Preference(rc rerankctx.Context, q model.Query, a, b model.RankedItem) float64 {
	c.mu.Lock()
	if p, ok := c.cache[pair{a.ID, b.ID}]; ok {
		c.mu.Unlock()
		return p
	}
	if p, ok := c.cache[pair{b.ID, a.ID}]; ok {
		c.mu.Unlock()
		return -p
	}
	c.mu.Unlock()

	p := c.axiom.Preference(rc, q, a, b)
	if c.check {
		if reverse := c.axiom.Preference(rc, q, b, a); reverse != -p {
			c.logger.Warn("axiom is not antisymmetric",
				"query", q.ID,
				"a", a.ID,
				"b", b.ID,
				"preference", p,
				"reverse", reverse,
			)
		}
	}

	c.mu.Lock()
	c.cache[pair{a.ID, b.ID}] = p
	c.mu.Unlock()
	return p
}

// Len returns the number of cached pairs.
func (c *Cached) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

// Reset implements Resetter.
func (c *Cached) Reset() {
	c.mu.Lock()
	clear(c.cache)
	c.mu.Unlock()
	Reset(c.axiom)
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}
