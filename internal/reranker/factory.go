package reranker

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/knoguchi/comparank/internal/axiom"
	"github.com/knoguchi/comparank/internal/rerankctx"
)

var (
	// ErrUnknownReranker is returned for a stage name that is not registered.
	ErrUnknownReranker = errors.New("unknown reranker")
	// ErrNoAxioms is returned when an axiomatic stage is configured without axioms.
	ErrNoAxioms = errors.New("axiomatic reranker needs at least one axiom")
)

// Stage names accepted in PipelineConfig.Stages.
const (
	StageOriginal           = "original"
	StageAxiomatic          = "axiomatic"
	StageAlternatingStance  = "alternating-stance"
	StageBalancedTopKStance = "balanced-top-k-stance"
)

const defaultFairnessK = 10

// PCG stream ids, so pivots and the random axiom draw from independent sequences.
const (
	pivotStream uint64 = 0x9e3779b97f4a7c15
	axiomStream uint64 = 0xbf58476d1ce4e5b9
)

var stageAliases = map[string]string{
	"axiom": StageAxiomatic,
	"a":     StageAxiomatic,
}

// PipelineConfig describes the stages of a re-ranking pipeline.
type PipelineConfig struct {
	// Stages are applied in order. Empty means the original ranking is kept.
	Stages []string
	// Axioms is the profile aggregated by axiomatic stages.
	Axioms axiom.Profile
	// NormalizeAxioms maps the aggregated preference to -1, 0 or +1.
	NormalizeAxioms bool
	// CacheAxioms memoizes preferences per item pair within one ranking.
	CacheAxioms bool
	// CheckAntisymmetry logs cached axioms that are not antisymmetric.
	CheckAntisymmetry bool
	// RerankHits restricts the pipeline to the first RerankHits items. 0 re-ranks everything.
	RerankHits int
	// FairnessK is the cut-off of the balanced top-k stage.
	FairnessK int
	// Seed makes pivot selection reproducible. 0 draws a fresh seed per build.
	Seed uint64

	Logger *slog.Logger
}

// Factory builds re-ranking pipelines from a validated configuration.
type Factory struct {
	cfg    PipelineConfig
	stages []string
	logger *slog.Logger
}

// NewFactory validates cfg. Unknown stage names, negative cut-offs and axiomatic stages
// without axioms are rejected here rather than when the first query is re-ranked.
func NewFactory(cfg PipelineConfig) (*Factory, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RerankHits < 0 {
		return nil, fmt.Errorf("rerank hits: %w: %d", ErrInvalidK, cfg.RerankHits)
	}
	if cfg.FairnessK < 0 {
		return nil, fmt.Errorf("fairness k: %w: %d", ErrInvalidK, cfg.FairnessK)
	}
	if cfg.FairnessK == 0 {
		cfg.FairnessK = defaultFairnessK
	}

	stages := make([]string, 0, len(cfg.Stages))
	for _, name := range cfg.Stages {
		stage, err := canonicalStage(name)
		if err != nil {
			return nil, err
		}
		if stage == StageAxiomatic && len(cfg.Axioms) == 0 {
			return nil, ErrNoAxioms
		}
		stages = append(stages, stage)
	}
	if _, err := cfg.Axioms.Build(axiom.Dependencies{}); err != nil {
		return nil, err
	}

	return &Factory{cfg: cfg, stages: stages, logger: logger}, nil
}

// ParseStages splits a comma separated list of stage names.
func ParseStages(s string) []string {
	var stages []string
	for _, name := range strings.Split(s, ",") {
		if name = strings.TrimSpace(name); name != "" {
			stages = append(stages, name)
		}
	}
	return stages
}

// Config returns the validated configuration.
func (f *Factory) Config() PipelineConfig {
	return f.cfg
}

// Build returns a new pipeline over rc. Axiom caches live inside the returned pipeline, so
// build one per query batch or request and do not share it between goroutines.
func (f *Factory) Build(rc rerankctx.Context, deps axiom.Dependencies) (Reranker, error) {
	seed := f.cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewPCG(seed, axiomStream))
	}

	cascade := make(Cascade, 0, len(f.stages))
	for _, stage := range f.stages {
		var r Reranker
		switch stage {
		case StageOriginal:
			r = Original{}
		case StageAxiomatic:
			a, err := f.buildAxiom(deps)
			if err != nil {
				return nil, err
			}
			r = NewAxiomatic(rc, a, rand.New(rand.NewPCG(seed, pivotStream)))
		case StageAlternatingStance:
			r = AlternatingStance{}
		case StageBalancedTopKStance:
			b, err := NewBalancedTopKStance(f.cfg.FairnessK)
			if err != nil {
				return nil, err
			}
			r = b
		}
		cascade = append(cascade, r)
	}

	f.logger.Debug("built reranking pipeline",
		"stages", f.stages,
		"axioms", f.cfg.Axioms.String(),
		"rerank_hits", f.cfg.RerankHits,
		"seed", seed,
	)

	if f.cfg.RerankHits == 0 {
		return cascade, nil
	}
	top, err := NewTop(cascade, f.cfg.RerankHits)
	if err != nil {
		return nil, err
	}
	return top, nil
}

func (f *Factory) buildAxiom(deps axiom.Dependencies) (axiom.Axiom, error) {
	a, err := f.cfg.Axioms.Build(deps)
	if err != nil {
		return nil, err
	}
	if f.cfg.NormalizeAxioms {
		a = axiom.Normalized{Axiom: a}
	}
	if f.cfg.CacheAxioms {
		var opts []axiom.CachedOption
		if f.cfg.CheckAntisymmetry {
			opts = append(opts, axiom.WithAntisymmetryCheck(f.logger))
		}
		a = axiom.NewCached(a, opts...)
	}
	return a, nil
}

func canonicalStage(name string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.ReplaceAll(key, "_", "-")
	if alias, ok := stageAliases[key]; ok {
		key = alias
	}
	switch key {
	case StageOriginal, StageAxiomatic, StageAlternatingStance, StageBalancedTopKStance:
		return key, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownReranker, name)
}
