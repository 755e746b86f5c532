package tagging

import (
	"context"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/knoguchi/comparank/internal/repository"
)

const defaultScoreCacheSize = 65536

type scoreKey struct {
	topic    string
	sentence string
}

// CachedScorer wraps a SentenceScorer with a two-level cache: an in-memory LRU in front of
// an optional persistent score repository. Only sentences missing from both reach the
// wrapped scorer, in a single call.
type CachedScorer struct {
	kind   repository.ScoreKind
	scorer SentenceScorer
	store  repository.ScoreRepository
	cache  *lru.Cache[scoreKey, float64]
	logger *slog.Logger
}

// CachedScorerConfig configures a CachedScorer.
type CachedScorerConfig struct {
	Kind      repository.ScoreKind
	Scorer    SentenceScorer
	Store     repository.ScoreRepository // optional
	CacheSize int
	Logger    *slog.Logger
}

// NewCachedScorer creates a cached scorer.
func NewCachedScorer(cfg CachedScorerConfig) (*CachedScorer, error) {
	size := cfg.CacheSize
	if size <= 0 {
		size = defaultScoreCacheSize
	}
	cache, err := lru.New[scoreKey, float64](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create score cache: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedScorer{
		kind:   cfg.Kind,
		scorer: cfg.Scorer,
		store:  cfg.Store,
		cache:  cache,
		logger: logger,
	}, nil
}

// Score implements SentenceScorer. Sentences missing from both cache levels are fetched in
// one call to the wrapped scorer.
func (c *CachedScorer) Score(ctx context.Context, topic string, sentences []string) ([]float64, error) {
	known := make(map[string]float64, len(sentences))
	var unknown []string
	seen := make(map[string]struct{})
	for _, sentence := range sentences {
		if score, ok := c.cache.Get(scoreKey{topic, sentence}); ok {
			known[sentence] = score
			continue
		}
		if _, ok := seen[sentence]; !ok {
			seen[sentence] = struct{}{}
			unknown = append(unknown, sentence)
		}
	}

	if len(unknown) > 0 && c.store != nil {
		stored, err := c.store.GetScores(ctx, c.kind, topic, unknown)
		if err != nil {
			// The store is only a cache; fall back to the scorer.
			c.logger.Warn("failed to read cached scores", "kind", c.kind, "error", err)
		}
		remaining := unknown[:0]
		for _, sentence := range unknown {
			if score, ok := stored[sentence]; ok {
				known[sentence] = score
				c.cache.Add(scoreKey{topic, sentence}, score)
				continue
			}
			remaining = append(remaining, sentence)
		}
		unknown = remaining
	}

	if len(unknown) > 0 {
		scores, err := c.scorer.Score(ctx, topic, unknown)
		if err != nil {
			return nil, fmt.Errorf("score %d sentences: %w", len(unknown), err)
		}
		if len(scores) != len(unknown) {
			return nil, fmt.Errorf("scorer returned %d scores for %d sentences", len(scores), len(unknown))
		}

		fetched := make(map[string]float64, len(unknown))
		for i, sentence := range unknown {
			known[sentence] = scores[i]
			fetched[sentence] = scores[i]
			c.cache.Add(scoreKey{topic, sentence}, scores[i])
		}
		if c.store != nil {
			if err := c.store.PutScores(ctx, c.kind, topic, fetched); err != nil {
				c.logger.Warn("failed to store scores", "kind", c.kind, "error", err)
			}
		}
		c.logger.Debug("fetched sentence scores", "kind", c.kind, "topic", topic, "count", len(unknown))
	}

	out := make([]float64, len(sentences))
	for i, sentence := range sentences {
		out[i] = known[sentence]
	}
	return out, nil
}

var _ SentenceScorer = (*CachedScorer)(nil)
