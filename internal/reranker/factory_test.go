package reranker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knoguchi/comparank/internal/axiom"
	"github.com/knoguchi/comparank/internal/model"
)

func profile(t *testing.T, s string) axiom.Profile {
	t.Helper()
	p, err := axiom.ParseProfile(s)
	require.NoError(t, err)
	return p
}

func TestNewFactory_RejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  PipelineConfig
		err  error
	}{
		{"unknown stage", PipelineConfig{Stages: []string{"original", "magic"}}, ErrUnknownReranker},
		{"axiomatic without axioms", PipelineConfig{Stages: []string{"axiomatic"}}, ErrNoAxioms},
		{"negative hits", PipelineConfig{RerankHits: -1}, ErrInvalidK},
		{"negative fairness k", PipelineConfig{FairnessK: -2}, ErrInvalidK},
		{"unknown axiom", PipelineConfig{Stages: []string{"a"}, Axioms: axiom.Profile{{Name: "nope", Weight: 1}}}, axiom.ErrUnknownAxiom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFactory(tt.cfg)
			require.ErrorIs(t, err, tt.err)
		})
	}
}

func TestParseStages(t *testing.T) {
	assert.Equal(t, []string{"axiomatic", "alternating-stance"}, ParseStages(" axiomatic, ,alternating-stance"))
	assert.Empty(t, ParseStages(""))
}

func TestFactory_Build(t *testing.T) {
	f, err := NewFactory(PipelineConfig{
		Stages:          []string{"Axiom", "balanced_top_k_stance"},
		Axioms:          profile(t, "document-id"),
		NormalizeAxioms: true,
		CacheAxioms:     true,
		FairnessK:       2,
		Seed:            42,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, f.Config().FairnessK)

	r, err := f.Build(nil, axiom.Dependencies{})
	require.NoError(t, err)
	cascade, ok := r.(Cascade)
	require.True(t, ok)
	require.Len(t, cascade, 2)
	assert.IsType(t, &Axiomatic{}, cascade[0])
	assert.IsType(t, &BalancedTopKStance{}, cascade[1])

	in := withStances(ranked("d", "c", "b", "a"), 1, 1, 1, -1)
	out, err := r.Rerank(context.Background(), model.Query{}, in)
	require.NoError(t, err)
	// sorted by id: a(-1) b c d, already balanced in the top 2
	assert.Equal(t, []string{"a", "b", "c", "d"}, out.IDs())
}

func TestFactory_BuildWrapsTop(t *testing.T) {
	f, err := NewFactory(PipelineConfig{Stages: []string{"original"}, RerankHits: 5})
	require.NoError(t, err)

	r, err := f.Build(nil, axiom.Dependencies{})
	require.NoError(t, err)
	top, ok := r.(*Top)
	require.True(t, ok)
	assert.Equal(t, 5, top.K())
}

func TestFactory_SeedMakesBuildsReproducible(t *testing.T) {
	f, err := NewFactory(PipelineConfig{
		Stages: []string{"axiomatic"},
		Axioms: profile(t, "random"),
		Seed:   7,
	})
	require.NoError(t, err)

	in := ranked("a", "b", "c", "d", "e", "f", "g", "h")
	run := func() []string {
		r, err := f.Build(nil, axiom.Dependencies{})
		require.NoError(t, err)
		out, err := r.Rerank(context.Background(), model.Query{}, in)
		require.NoError(t, err)
		return out.IDs()
	}
	assert.Equal(t, run(), run())
}
