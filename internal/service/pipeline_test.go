package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knoguchi/comparank/internal/analysis"
	"github.com/knoguchi/comparank/internal/axiom"
	"github.com/knoguchi/comparank/internal/index"
	"github.com/knoguchi/comparank/internal/memory"
	"github.com/knoguchi/comparank/internal/model"
	"github.com/knoguchi/comparank/internal/reranker"
	"github.com/knoguchi/comparank/internal/rerankctx"
	"github.com/knoguchi/comparank/internal/runfile"
	"github.com/knoguchi/comparank/internal/search"
	"github.com/knoguchi/comparank/internal/tagging"
)

type vectorEmbedder struct{ calls int }

func (e *vectorEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 1}, nil
}

func (e *vectorEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, float32(i)}
	}
	return out, nil
}

func (e *vectorEmbedder) Dimension() int    { return 2 }
func (e *vectorEmbedder) ModelName() string { return "vector" }

type stanceScorer struct{}

// Score favours the first claim in every sentence mentioning it.
func (stanceScorer) Score(_ context.Context, claim string, sentences []string) ([]float64, error) {
	out := make([]float64, len(sentences))
	for i, s := range sentences {
		if bytes.Contains([]byte(s), []byte(claim)) {
			out[i] = 1
		}
	}
	return out, nil
}

func testIndex() *index.Index {
	idx := index.New(analysis.NewAnalyzer())
	idx.Add(
		model.Document{ID: "c", Content: "laptop laptop laptop"},
		model.Document{ID: "a", Content: "laptop"},
		model.Document{ID: "b", Content: "laptop desktop"},
	)
	return idx
}

func newPipeline(t *testing.T, cfg Config, pipeline reranker.PipelineConfig) *Pipeline {
	t.Helper()
	factory, err := reranker.NewFactory(pipeline)
	require.NoError(t, err)

	idx := testIndex()
	rc, err := rerankctx.New(idx, 0)
	require.NoError(t, err)

	cfg.Factory = factory
	cfg.Context = rc
	if cfg.Searcher == nil {
		cfg.Searcher = search.NewLexical(idx, index.BM25)
	}
	p, err := New(cfg)
	require.NoError(t, err)
	return p
}

func idProfile(t *testing.T) axiom.Profile {
	t.Helper()
	p, err := axiom.ParseProfile("document-id")
	require.NoError(t, err)
	return p
}

func TestPipeline_Search(t *testing.T) {
	runs := memory.NewStore(10, 0)
	defer runs.Close()

	p := newPipeline(t, Config{Runs: runs, RunTag: "test"}, reranker.PipelineConfig{
		Stages: []string{reranker.StageAxiomatic},
		Axioms: idProfile(t),
		Seed:   1,
	})

	run, err := p.Search(context.Background(), model.Query{ID: 3, Title: "laptop"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, run.Ranking.IDs())
	require.Len(t, run.Lines, 3)
	assert.Equal(t, runfile.Line{QueryID: 3, Label: runfile.LabelNone, DocID: "a", Rank: 1, Score: run.Ranking[0].Score, Tag: "test"}, run.Lines[0])
	assert.Equal(t, "document-id", run.Axioms)

	stored, ok := p.Run(run.ID)
	require.True(t, ok)
	assert.Equal(t, run.Ranking.IDs(), stored.Ranking.IDs())
}

func TestPipeline_RerankOverrides(t *testing.T) {
	p := newPipeline(t, Config{}, reranker.PipelineConfig{Stages: []string{reranker.StageOriginal}})
	ranking := model.Ranking{
		{Document: model.Document{ID: "c"}, Rank: 1, Score: 3},
		{Document: model.Document{ID: "a"}, Rank: 2, Score: 2},
		{Document: model.Document{ID: "b"}, Rank: 3, Score: 1},
	}
	q := model.Query{ID: 1, Title: "laptop"}

	run, err := p.Rerank(context.Background(), q, ranking, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, run.Ranking.IDs())

	run, err = p.Rerank(context.Background(), q, ranking, Options{Stages: []string{"axiomatic"}, Axioms: idProfile(t), Seed: 9})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, run.Ranking.IDs())

	_, ok := p.Run(run.ID)
	assert.False(t, ok, "runs are not kept without a store")
}

func TestPipeline_InvalidRequests(t *testing.T) {
	p := newPipeline(t, Config{}, reranker.PipelineConfig{})
	ctx := context.Background()

	_, err := p.Search(ctx, model.Query{}, Options{})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = p.Rerank(ctx, model.Query{Title: "x", Objects: &model.ComparativeObjects{First: "a"}}, nil, Options{})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	dup := model.Ranking{{Document: model.Document{ID: "a"}}, {Document: model.Document{ID: "a"}}}
	_, err = p.Rerank(ctx, model.Query{Title: "x"}, dup, Options{})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.ErrorIs(t, err, model.ErrDuplicateID)

	_, err = p.Rerank(ctx, model.Query{Title: "x"}, nil, Options{Stages: []string{"shuffle"}})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.ErrorIs(t, err, reranker.ErrUnknownReranker)

	factory, err := reranker.NewFactory(reranker.PipelineConfig{})
	require.NoError(t, err)
	rc, err := rerankctx.New(testIndex(), 0)
	require.NoError(t, err)
	bare, err := New(Config{Factory: factory, Context: rc})
	require.NoError(t, err)
	_, err = bare.Search(ctx, model.Query{Title: "x"}, Options{})
	assert.ErrorIs(t, err, ErrNoSearcher)

	_, err = New(Config{Context: rc})
	assert.Error(t, err)
}

func TestPipeline_RerankWithoutRanks(t *testing.T) {
	original, err := axiom.ParseProfile("original")
	require.NoError(t, err)
	p := newPipeline(t, Config{}, reranker.PipelineConfig{
		Stages: []string{reranker.StageAxiomatic},
		Axioms: original,
		Seed:   1,
	})
	unranked := model.Ranking{{Document: model.Document{ID: "a"}}, {Document: model.Document{ID: "b"}}}

	_, err = p.Rerank(context.Background(), model.Query{Title: "laptop"}, unranked, Options{})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.ErrorIs(t, err, reranker.ErrRankTie)

	run, err := p.Rerank(context.Background(), model.Query{Title: "laptop"}, unranked, Options{Stages: []string{reranker.StageOriginal}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, run.Ranking.IDs())
}

func TestPipeline_TagsStances(t *testing.T) {
	tagger := tagging.New(tagging.Config{Stance: tagging.NewStanceTagger(stanceScorer{}, tagging.ClaimObject, 0)})
	p := newPipeline(t, Config{Tagger: tagger}, reranker.PipelineConfig{Stages: []string{reranker.StageAlternatingStance}})

	q := model.Query{ID: 2, Title: "laptop or desktop", Objects: &model.ComparativeObjects{First: "laptop", Second: "desktop"}}
	ranking := model.Ranking{
		{Document: model.Document{ID: "l1", Content: "A laptop is light."}, Rank: 1, Score: 4},
		{Document: model.Document{ID: "l2", Content: "Take the laptop."}, Rank: 2, Score: 3},
		{Document: model.Document{ID: "d1", Content: "A desktop is fast."}, Rank: 3, Score: 2},
	}

	run, err := p.Rerank(context.Background(), q, ranking, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"l1", "d1", "l2"}, run.Ranking.IDs())
	assert.Equal(t, "FIRST", run.Lines[0].Label)
	assert.Equal(t, "SECOND", run.Lines[1].Label)

	run, err = p.Rerank(context.Background(), q, ranking, Options{SkipTagging: true})
	require.NoError(t, err)
	assert.Equal(t, runfile.LabelNone, run.Lines[0].Label)
}

func TestPipeline_LoadsTermVectors(t *testing.T) {
	emb := &vectorEmbedder{}
	sim := axiom.NewEmbeddingSimilarity(emb)
	profile, err := axiom.ParseProfile("stmc1")
	require.NoError(t, err)

	p := newPipeline(t, Config{Similarity: sim}, reranker.PipelineConfig{
		Stages: []string{reranker.StageAxiomatic},
		Axioms: profile,
		Seed:   1,
	})

	_, err = p.Search(context.Background(), model.Query{Title: "laptop"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, emb.calls)
	assert.Greater(t, sim.Similarity("laptop", "desktop"), 0.0)

	_, err = p.Rerank(context.Background(), model.Query{Title: "laptop"}, nil, Options{Axioms: idProfile(t)})
	require.NoError(t, err)
	assert.Equal(t, 1, emb.calls, "vectors are only loaded for term similarity axioms")
}

func TestPipeline_RunTopics(t *testing.T) {
	p := newPipeline(t, Config{RunTag: "t", Concurrency: 2}, reranker.PipelineConfig{
		Stages: []string{reranker.StageAxiomatic},
		Axioms: idProfile(t),
		Seed:   1,
	})

	var buf bytes.Buffer
	queries := []model.Query{{ID: 2, Title: "desktop"}, {ID: 1, Title: "laptop"}}
	require.NoError(t, p.RunTopics(context.Background(), queries, Options{NumHits: 2}, runfile.NewWriter(&buf, "t")))

	lines, err := runfile.Read(&buf)
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Equal(t, 2, lines[0].QueryID, "topics are written in input order")
	assert.Equal(t, "b", lines[0].DocID)
	assert.Equal(t, []string{"a", "c"}, []string{lines[1].DocID, lines[2].DocID}, "the two best lexical hits, re-ranked by id")
}
