package axiom

import (
	"bytes"
	"context"
	"log/slog"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knoguchi/comparank/internal/index"
	"github.com/knoguchi/comparank/internal/model"
	"github.com/knoguchi/comparank/internal/rerankctx"
)

func testContext(t *testing.T) rerankctx.Context {
	t.Helper()
	idx := index.New(nil)
	idx.Add(
		model.Document{ID: "d1", Content: "Laptops are portable and light."},
		model.Document{ID: "d2", Content: "Desktops are powerful and cheap."},
		model.Document{ID: "d3", Content: "A laptop is more expensive than a desktop."},
	)
	rc, err := rerankctx.New(idx, 64)
	require.NoError(t, err)
	return rc
}

func item(id, content string) model.RankedItem {
	return model.RankedItem{Document: model.Document{ID: id, Content: content}}
}

func constant(v float64) Func {
	return func(rerankctx.Context, model.Query, model.RankedItem, model.RankedItem) float64 {
		return v
	}
}

func TestWeightedAndAggregated(t *testing.T) {
	rc := testContext(t)
	a, b := item("a", ""), item("b", "")

	assert.Equal(t, 3.0, Weighted{Axiom: constant(1.5), Weight: 2}.Preference(rc, model.Query{}, a, b))
	assert.Equal(t, -1.5, Weighted{Axiom: constant(1.5), Weight: -1}.Preference(rc, model.Query{}, a, b))

	sum := Aggregated{constant(1), constant(-3), Weighted{Axiom: constant(1), Weight: 0.5}}
	assert.Equal(t, -1.5, sum.Preference(rc, model.Query{}, a, b))
	assert.Zero(t, Aggregated{}.Preference(rc, model.Query{}, a, b))
}

func TestNormalized_Idempotent(t *testing.T) {
	rc := testContext(t)
	a, b := item("a", ""), item("b", "")

	for _, v := range []float64{-42, -0.001, 0, 0.3, 7} {
		once := Normalized{Axiom: constant(v)}
		twice := Normalized{Axiom: once}
		p := once.Preference(rc, model.Query{}, a, b)
		assert.Contains(t, []float64{-1, 0, 1}, p)
		assert.Equal(t, p, twice.Preference(rc, model.Query{}, a, b), "value %v", v)
	}
}

func TestCached_Antisymmetry(t *testing.T) {
	rc := testContext(t)
	calls := 0
	inner := Func(func(_ rerankctx.Context, _ model.Query, a, b model.RankedItem) float64 {
		calls++
		return DocumentID{}.Preference(rc, model.Query{}, a, b) * 2
	})
	cached := NewCached(inner)
	a, b := item("a", ""), item("b", "")

	assert.Equal(t, 2.0, cached.Preference(rc, model.Query{}, a, b))
	assert.Equal(t, -2.0, cached.Preference(rc, model.Query{}, b, a))
	assert.Equal(t, 2.0, cached.Preference(rc, model.Query{}, a, b))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, cached.Len())

	cached.Reset()
	assert.Zero(t, cached.Len())
	assert.Equal(t, -2.0, cached.Preference(rc, model.Query{}, b, a))
	assert.Equal(t, 2, calls)
}

func TestCached_ResetIsForwardedThroughCombinators(t *testing.T) {
	rc := testContext(t)
	cached := NewCached(DocumentID{})
	composite := Normalized{Axiom: Aggregated{Weighted{Axiom: cached, Weight: 3}}}

	composite.Preference(rc, model.Query{}, item("a", ""), item("b", ""))
	require.Equal(t, 1, cached.Len())

	Reset(composite)
	assert.Zero(t, cached.Len())
}

func TestCached_AntisymmetryCheckLogsViolation(t *testing.T) {
	rc := testContext(t)
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	cached := NewCached(constant(1), WithAntisymmetryCheck(logger))
	cached.Preference(rc, model.Query{ID: 7}, item("a", ""), item("b", ""))
	assert.Contains(t, buf.String(), "axiom is not antisymmetric")

	buf.Reset()
	symmetric := NewCached(DocumentID{}, WithAntisymmetryCheck(logger))
	symmetric.Preference(rc, model.Query{}, item("a", ""), item("b", ""))
	assert.Empty(t, buf.String())
}

func TestRandom_DeterministicForSeed(t *testing.T) {
	rc := testContext(t)
	draw := func() []float64 {
		r := NewRandom(rand.New(rand.NewPCG(1, 2)))
		out := make([]float64, 20)
		for i := range out {
			out[i] = r.Preference(rc, model.Query{}, item("a", ""), item("b", ""))
		}
		return out
	}
	first := draw()
	assert.Equal(t, first, draw())
	for _, p := range first {
		assert.Contains(t, []float64{-1, 0, 1}, p)
	}
}

func TestBaselineAxioms(t *testing.T) {
	rc := testContext(t)
	a := model.RankedItem{Document: model.Document{ID: "a"}, Rank: 2}
	b := model.RankedItem{Document: model.Document{ID: "b"}, Rank: 1}

	assert.Equal(t, 1.0, DocumentID{}.Preference(rc, model.Query{}, a, b))
	assert.Equal(t, -1.0, Original{}.Preference(rc, model.Query{}, a, b))
}

func TestRetrievalScoreAxioms(t *testing.T) {
	rc := testContext(t)
	q := model.Query{Title: "laptop"}
	better := item("x", "laptop laptop portable")
	worse := item("y", "desktop laptop cheap")

	for name, a := range map[string]Axiom{"tfidf": TFIDF{}, "bm25": BM25{}, "pl2": PL2{}, "ql": QL{}} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, 1.0, a.Preference(rc, q, better, worse))
			assert.Equal(t, -1.0, a.Preference(rc, q, worse, better))
		})
	}
}

func TestTFC1(t *testing.T) {
	rc := testContext(t)
	q := model.Query{Title: "laptop"}

	more := item("a", "laptop laptop fast machine")
	fewer := item("b", "laptop slow heavy machine")
	assert.Equal(t, 1.0, TFC1{}.Preference(rc, q, more, fewer))
	assert.Equal(t, -1.0, TFC1{}.Preference(rc, q, fewer, more))

	long := item("c", "laptop slow heavy machine with many more words attached")
	assert.Zero(t, TFC1{}.Preference(rc, q, more, long))
}

func TestTFC3(t *testing.T) {
	rc := testContext(t)
	q := model.Query{Title: "portable cheap"}

	both := item("a", "portable cheap thing")
	one := item("b", "portable portable thing")
	assert.Equal(t, 1.0, TFC3{}.Preference(rc, q, both, one))
	assert.Equal(t, -1.0, TFC3{}.Preference(rc, q, one, both))
}

func TestLNC1(t *testing.T) {
	rc := testContext(t)
	q := model.Query{Title: "laptop"}

	short := item("a", "laptop fast")
	long := item("b", "laptop fast quiet")
	assert.Equal(t, 1.0, LNC1{}.Preference(rc, q, short, long))
	assert.Zero(t, LNC1{}.Preference(rc, q, short, item("c", "laptop laptop")))
}

func TestApproximatelyEqual(t *testing.T) {
	tests := []struct {
		values []float64
		want   bool
	}{
		{[]float64{0, 0}, true},
		{[]float64{10, 9.5}, true},
		{[]float64{10, 8}, false},
		{[]float64{-10, -9.5}, true},
		{[]float64{1, 0}, false},
		{nil, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, approximatelyEqual(defaultMargin, tt.values...), "%v", tt.values)
	}
}

func TestSTMC1(t *testing.T) {
	rc := testContext(t)
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"laptop":   {1, 0},
		"notebook": {0.9, 0.1},
		"banana":   {0, 1},
	}}
	sim := NewEmbeddingSimilarity(emb)
	require.NoError(t, sim.Load(context.Background(), []string{"laptop", "notebook", "banana", "laptop"}))
	require.NoError(t, sim.Load(context.Background(), []string{"laptop"}))
	assert.Equal(t, 1, emb.batches)
	assert.InDelta(t, 1, sim.Similarity("laptop", "laptop"), 1e-6)
	assert.Zero(t, sim.Similarity("laptop", "unknown"))

	q := model.Query{Title: "laptop"}
	assert.Equal(t, 1.0, STMC1{Similarity: sim}.Preference(rc, q, item("a", "notebook"), item("b", "banana")))
	assert.Zero(t, STMC1{}.Preference(rc, q, item("a", "notebook"), item("b", "banana")))
}

type fakeEmbedder struct {
	vectors map[string][]float32
	batches int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return f.vectors[text], nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.batches++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = f.Embed(ctx, t)
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension() int    { return 2 }
func (f *fakeEmbedder) ModelName() string { return "fake" }
