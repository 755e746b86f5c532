package reranker

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knoguchi/comparank/internal/axiom"
	"github.com/knoguchi/comparank/internal/model"
	"github.com/knoguchi/comparank/internal/rerankctx"
)

// ranked builds a well-formed ranking: ranks 1..n, scores decreasing in steps of ten.
func ranked(ids ...string) model.Ranking {
	out := make(model.Ranking, len(ids))
	for i, id := range ids {
		out[i] = model.RankedItem{
			Document: model.Document{ID: id, Content: "content of " + id, Fields: map[string]string{"src": id}},
			Rank:     i + 1,
			Score:    float64(len(ids)-i) * 10,
		}
	}
	return out
}

func withStances(ranking model.Ranking, stances ...float64) model.Ranking {
	for i, s := range stances {
		ranking[i].Stances = []model.StanceSentence{{Content: ranking[i].ID, Stance: s}}
	}
	return ranking
}

func zero() axiom.Func {
	return func(rerankctx.Context, model.Query, model.RankedItem, model.RankedItem) float64 { return 0 }
}

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, 7))
}

func assertRenormalized(t *testing.T, ranking model.Ranking) {
	t.Helper()
	for i, item := range ranking {
		assert.Equal(t, i+1, item.Rank, "rank of %s", item.ID)
		assert.Equal(t, float64(len(ranking)-i), item.Score, "score of %s", item.ID)
	}
}

func TestRenormalize(t *testing.T) {
	in := withStances(ranked("a", "b", "c"), 1, 0, -1)
	in[0], in[2] = in[2], in[0]

	out := Renormalize(in)
	assert.Equal(t, []string{"c", "b", "a"}, out.IDs())
	assertRenormalized(t, out)
	assert.Equal(t, in[0].Stances, out[0].Stances)
	assert.Equal(t, 3, in[0].Rank, "input must not be modified")
	assert.Empty(t, Renormalize(nil))
}

func TestAxiomatic_TieFallsBackToOriginalRank(t *testing.T) {
	in := ranked("a", "b", "c", "d", "e")
	shuffled := model.Ranking{in[3], in[0], in[4], in[2], in[1]}

	out, err := NewAxiomatic(nil, zero(), seeded(1)).Rerank(context.Background(), model.Query{}, shuffled)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, out.IDs())
	assertRenormalized(t, out)
}

func TestAxiomatic_PermutationForAllSizes(t *testing.T) {
	for n := 0; n <= 40; n++ {
		ids := make([]string, n)
		for i := range ids {
			ids[i] = fmt.Sprintf("doc-%02d", (i*17)%41)
		}
		in := ranked(ids...)

		out, err := NewAxiomatic(nil, axiom.DocumentID{}, seeded(uint64(n))).Rerank(context.Background(), model.Query{}, in)
		require.NoError(t, err)
		assert.ElementsMatch(t, in.IDs(), out.IDs(), "n=%d", n)
		assert.True(t, slices.IsSorted(out.IDs()), "n=%d", n)
		assertRenormalized(t, out)
	}
}

func TestAxiomatic_DeterministicForFixedSeed(t *testing.T) {
	in := ranked("a", "b", "c", "d", "e", "f", "g", "h", "i", "j")
	run := func() []string {
		stage := NewAxiomatic(nil, axiom.NewRandom(seeded(3)), seeded(4))
		out, err := stage.Rerank(context.Background(), model.Query{}, in)
		require.NoError(t, err)
		return out.IDs()
	}
	first := run()
	for range 5 {
		assert.Equal(t, first, run())
	}
}

func TestAxiomatic_RankTie(t *testing.T) {
	in := ranked("a", "b", "c")
	in[2].Rank = 2

	_, err := NewAxiomatic(nil, zero(), seeded(1)).Rerank(context.Background(), model.Query{}, in)
	require.ErrorIs(t, err, ErrRankTie)
}

func TestAxiomatic_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewAxiomatic(nil, zero(), seeded(1)).Rerank(ctx, model.Query{}, ranked("a", "b"))
	require.ErrorIs(t, err, context.Canceled)
}

type resetCounter struct {
	axiom.DocumentID
	resets int
}

func (r *resetCounter) Reset() { r.resets++ }

func TestAxiomatic_ResetsAxiomStateEveryRanking(t *testing.T) {
	counter := &resetCounter{}
	stage := NewAxiomatic(nil, axiom.Normalized{Axiom: counter}, seeded(1))

	for range 3 {
		_, err := stage.Rerank(context.Background(), model.Query{}, ranked("b", "a"))
		require.NoError(t, err)
	}
	assert.Equal(t, 3, counter.resets)
}

func TestAlternatingStance(t *testing.T) {
	in := withStances(ranked("0", "1", "2", "3"), 1, 1, -1, 0)

	out, err := AlternatingStance{}.Rerank(context.Background(), model.Query{}, in)
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "2", "1", "3"}, out.IDs())
	assertRenormalized(t, out)
	assert.Equal(t, []string{"0", "1", "2", "3"}, in.IDs())
}

func TestAlternatingStance_UntaggedIsNeutral(t *testing.T) {
	in := ranked("a", "b", "c")
	in[1].Stances = []model.StanceSentence{{Stance: -1}}
	in[2].Stances = []model.StanceSentence{{Stance: 1}}

	out, err := AlternatingStance{}.Rerank(context.Background(), model.Query{}, in)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, out.IDs())
}

func TestBalancedTopKStance(t *testing.T) {
	tests := []struct {
		name    string
		k       int
		stances []float64
		want    []string
	}{
		{"too many first", 2, []float64{1, 1, -1, 1}, []string{"1", "2", "0", "3"}},
		{"too many second", 2, []float64{-1, -1, 1}, []string{"1", "2", "0"}},
		{"candidate deeper in tail", 2, []float64{1, 1, 1, -1}, []string{"2", "3", "1", "0"}},
		{"already balanced", 2, []float64{1, -1, 1, 1}, []string{"0", "1", "2", "3"}},
		{"impossible", 2, []float64{1, 1, 1}, []string{"0", "1", "2"}},
		{"k beyond length", 10, []float64{1, 1, 1}, []string{"0", "1", "2"}},
		{"k zero", 0, []float64{1, 1, -1}, []string{"0", "1", "2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids := make([]string, len(tt.stances))
			for i := range ids {
				ids[i] = fmt.Sprint(i)
			}
			stage, err := NewBalancedTopKStance(tt.k)
			require.NoError(t, err)

			out, err := stage.Rerank(context.Background(), model.Query{}, withStances(ranked(ids...), tt.stances...))
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.IDs())
			assertRenormalized(t, out)
		})
	}

	_, err := NewBalancedTopKStance(-1)
	require.ErrorIs(t, err, ErrInvalidK)
}

func TestTop_LeavesTailUntouched(t *testing.T) {
	in := ranked("a", "b", "c", "d", "e", "f")
	reverse := NewAxiomatic(nil, axiom.Weighted{Axiom: axiom.Original{}, Weight: -1}, seeded(1))

	top, err := NewTop(reverse, 3)
	require.NoError(t, err)
	out, err := top.Rerank(context.Background(), model.Query{}, in)
	require.NoError(t, err)

	assert.Equal(t, []string{"c", "b", "a", "d", "e", "f"}, out.IDs())
	assert.Equal(t, in[3:], out[3:])

	maxTail := 0.0
	for _, item := range out[3:] {
		maxTail = max(maxTail, item.Score)
	}
	for _, item := range out[:3] {
		assert.Greater(t, item.Score, maxTail)
	}
	assert.Equal(t, []float64{63, 62, 61}, []float64{out[0].Score, out[1].Score, out[2].Score})
	assert.Equal(t, 1, in[0].Rank)
}

func TestTop_Bounds(t *testing.T) {
	_, err := NewTop(Original{}, -1)
	require.ErrorIs(t, err, ErrInvalidK)

	reverse := NewAxiomatic(nil, axiom.Weighted{Axiom: axiom.Original{}, Weight: -1}, seeded(1))
	top, err := NewTop(reverse, 10)
	require.NoError(t, err)
	out, err := top.Rerank(context.Background(), model.Query{}, ranked("a", "b"))
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, out.IDs())

	none, err := NewTop(reverse, 0)
	require.NoError(t, err)
	out, err = none.Rerank(context.Background(), model.Query{}, ranked("a", "b"))
	require.NoError(t, err)
	assert.Equal(t, ranked("a", "b"), out)

	out, err = top.Rerank(context.Background(), model.Query{}, model.Ranking{})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestCascade(t *testing.T) {
	in := withStances(ranked("b", "a", "c"), 1, 1, -1)
	cascade := Cascade{
		NewAxiomatic(nil, axiom.DocumentID{}, seeded(1)),
		AlternatingStance{},
	}

	out, err := cascade.Rerank(context.Background(), model.Query{}, in)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "b"}, out.IDs())

	out, err = Cascade{}.Rerank(context.Background(), model.Query{}, in)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	broken := ranked("a", "b")
	broken[1].Rank = 1
	_, err = Cascade{NewAxiomatic(nil, zero(), seeded(1))}.Rerank(context.Background(), model.Query{}, broken)
	require.ErrorIs(t, err, ErrRankTie)
}
