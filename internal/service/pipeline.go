// Package service runs queries through retrieval, tagging and re-ranking.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/knoguchi/comparank/internal/axiom"
	"github.com/knoguchi/comparank/internal/memory"
	"github.com/knoguchi/comparank/internal/model"
	"github.com/knoguchi/comparank/internal/reranker"
	"github.com/knoguchi/comparank/internal/rerankctx"
	"github.com/knoguchi/comparank/internal/runfile"
	"github.com/knoguchi/comparank/internal/search"
	"github.com/knoguchi/comparank/internal/tagging"
)

const (
	defaultNumHits     = 100
	defaultRunTag      = "comparank"
	defaultConcurrency = 4
)

var (
	// ErrInvalidRequest is returned for queries or rankings that cannot be processed.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNoSearcher is returned when a query needs retrieval but no searcher is configured.
	ErrNoSearcher = errors.New("no searcher configured")
)

// Config holds the collaborators of a Pipeline.
type Config struct {
	Factory *reranker.Factory
	Context rerankctx.Context

	// Searcher retrieves rankings for Run. Optional for Rerank.
	Searcher search.Searcher
	// Tagger annotates rankings before re-ranking. Optional.
	Tagger *tagging.Tagger
	// Similarity backs term similarity axioms. Term vectors are loaded per query.
	Similarity *axiom.EmbeddingSimilarity
	// Runs keeps finished runs for retrieval by id. Optional.
	Runs *memory.Store

	NumHits int
	RunTag  string
	// Concurrency bounds the topics processed at once by RunTopics.
	Concurrency int
	Logger      *slog.Logger
}

// Options override the pipeline configuration for one request.
type Options struct {
	NumHits int
	Stages  []string
	Axioms  axiom.Profile
	Seed    uint64
	// SkipTagging re-ranks with the annotations the ranking already carries.
	SkipTagging bool
}

// Pipeline is safe for concurrent use; every call builds its own stage tree.
type Pipeline struct {
	factory     *reranker.Factory
	rc          rerankctx.Context
	searcher    search.Searcher
	tagger      *tagging.Tagger
	similarity  *axiom.EmbeddingSimilarity
	runs        *memory.Store
	numHits     int
	runTag      string
	concurrency int
	logger      *slog.Logger
}

// New creates a pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Factory == nil {
		return nil, errors.New("service: reranker factory is required")
	}
	if cfg.Context == nil {
		return nil, errors.New("service: reranking context is required")
	}

	p := &Pipeline{
		factory:     cfg.Factory,
		rc:          cfg.Context,
		searcher:    cfg.Searcher,
		tagger:      cfg.Tagger,
		similarity:  cfg.Similarity,
		runs:        cfg.Runs,
		numHits:     cfg.NumHits,
		runTag:      cfg.RunTag,
		concurrency: cfg.Concurrency,
		logger:      cfg.Logger,
	}
	if p.numHits <= 0 {
		p.numHits = defaultNumHits
	}
	if p.runTag == "" {
		p.runTag = defaultRunTag
	}
	if p.concurrency <= 0 {
		p.concurrency = defaultConcurrency
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p, nil
}

// Search retrieves, tags and re-ranks the passages for q.
func (p *Pipeline) Search(ctx context.Context, q model.Query, opts Options) (memory.Run, error) {
	if p.searcher == nil {
		return memory.Run{}, ErrNoSearcher
	}
	if err := validateQuery(q); err != nil {
		return memory.Run{}, err
	}

	numHits := opts.NumHits
	if numHits <= 0 {
		numHits = p.numHits
	}

	start := time.Now()
	ranking, err := p.searcher.Search(ctx, q, numHits)
	if err != nil {
		return memory.Run{}, fmt.Errorf("search: %w", err)
	}
	p.logger.Debug("retrieved ranking", "query", q.ID, "hits", len(ranking), "duration", time.Since(start))

	return p.Rerank(ctx, q, ranking, opts)
}

// Rerank tags and re-ranks a given ranking.
func (p *Pipeline) Rerank(ctx context.Context, q model.Query, ranking model.Ranking, opts Options) (memory.Run, error) {
	if err := validateQuery(q); err != nil {
		return memory.Run{}, err
	}
	if err := ranking.Validate(); err != nil {
		return memory.Run{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	factory, err := p.factoryFor(opts)
	if err != nil {
		return memory.Run{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	cfg := factory.Config()

	start := time.Now()
	if p.tagger != nil && !opts.SkipTagging {
		if ranking, err = p.tagger.TagRanking(ctx, q, ranking); err != nil {
			return memory.Run{}, fmt.Errorf("tag: %w", err)
		}
	}
	tagTime := time.Since(start)

	deps := axiom.Dependencies{}
	if p.similarity != nil && cfg.Axioms.Contains("stmc1") {
		if err := p.similarity.Load(ctx, p.terms(q, ranking)); err != nil {
			return memory.Run{}, fmt.Errorf("load term vectors: %w", err)
		}
		deps.Similarity = p.similarity
	}

	pipeline, err := factory.Build(p.rc, deps)
	if err != nil {
		return memory.Run{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	rerankStart := time.Now()
	reranked, err := pipeline.Rerank(ctx, q, ranking)
	if errors.Is(err, reranker.ErrRankTie) {
		// Ties only surface for rankings submitted without distinct ranks.
		return memory.Run{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if err != nil {
		return memory.Run{}, fmt.Errorf("rerank: %w", err)
	}

	run := memory.Run{
		ID:        uuid.NewString(),
		Query:     q,
		Stages:    cfg.Stages,
		Axioms:    cfg.Axioms.String(),
		Ranking:   reranked,
		Lines:     runfile.Lines(q, reranked, p.runTag),
		CreatedAt: time.Now(),
	}
	if p.runs != nil {
		p.runs.Put(run)
	}

	p.logger.Info("reranked query",
		"run_id", run.ID,
		"query", q.ID,
		"items", len(reranked),
		"tag_ms", tagTime.Milliseconds(),
		"rerank_ms", time.Since(rerankStart).Milliseconds(),
	)
	return run, nil
}

// RunTopics searches and re-ranks every query and writes the results in query order.
func (p *Pipeline) RunTopics(ctx context.Context, queries []model.Query, opts Options, w *runfile.Writer) error {
	runs := make([]memory.Run, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, q := range queries {
		g.Go(func() error {
			run, err := p.Search(gctx, q, opts)
			if err != nil {
				return fmt.Errorf("topic %d: %w", q.ID, err)
			}
			runs[i] = run
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, run := range runs {
		if err := w.Write(run.Query, run.Ranking); err != nil {
			return err
		}
	}
	return w.Flush()
}

// Run returns a stored run.
func (p *Pipeline) Run(id string) (memory.Run, bool) {
	if p.runs == nil {
		return memory.Run{}, false
	}
	return p.runs.Get(id)
}

func (p *Pipeline) factoryFor(opts Options) (*reranker.Factory, error) {
	if len(opts.Stages) == 0 && len(opts.Axioms) == 0 && opts.Seed == 0 {
		return p.factory, nil
	}
	cfg := p.factory.Config()
	if len(opts.Stages) > 0 {
		cfg.Stages = opts.Stages
	}
	if len(opts.Axioms) > 0 {
		cfg.Axioms = opts.Axioms
	}
	if opts.Seed != 0 {
		cfg.Seed = opts.Seed
	}
	return reranker.NewFactory(cfg)
}

func (p *Pipeline) terms(q model.Query, ranking model.Ranking) []string {
	terms := slices.Clone(p.rc.Terms(q.Title))
	for _, item := range ranking {
		terms = append(terms, p.rc.Terms(item.Content)...)
	}
	return terms
}

func validateQuery(q model.Query) error {
	if q.Title == "" {
		return fmt.Errorf("%w: query title is required", ErrInvalidRequest)
	}
	if q.Objects != nil && (q.Objects.First == "" || q.Objects.Second == "") {
		return fmt.Errorf("%w: both comparative objects are required", ErrInvalidRequest)
	}
	return nil
}
