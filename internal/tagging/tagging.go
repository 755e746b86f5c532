// Package tagging annotates retrieved passages with argument units, sentence quality and
// sentence stance before re-ranking.
//
// All sentence scores of a ranking are fetched in bulk before any annotation is assembled,
// so re-ranking never waits on a scoring API.
package tagging

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/knoguchi/comparank/internal/analysis"
	"github.com/knoguchi/comparank/internal/model"
)

const defaultConcurrency = 4

// SentenceScorer scores sentences with respect to a topic or claim. It returns one score
// per sentence, in order.
type SentenceScorer interface {
	Score(ctx context.Context, topic string, sentences []string) ([]float64, error)
}

// Config configures a Tagger. Nil collaborators skip the matching annotation.
type Config struct {
	Arguments ArgumentTagger
	Quality   SentenceScorer
	Stance    *StanceTagger
	// Concurrency bounds the number of passages tagged for arguments at once.
	Concurrency int
	Logger      *slog.Logger
}

// Tagger attaches annotations to ranked items.
type Tagger struct {
	arguments   ArgumentTagger
	quality     SentenceScorer
	stance      *StanceTagger
	concurrency int
	logger      *slog.Logger
}

// New creates a Tagger.
func New(cfg Config) *Tagger {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Tagger{
		arguments:   cfg.Arguments,
		quality:     cfg.Quality,
		stance:      cfg.Stance,
		concurrency: concurrency,
		logger:      logger,
	}
}

// TagRanking returns a copy of ranking with annotations attached. Quality is scored
// against the query title; stance towards the query's comparative objects.
func (t *Tagger) TagRanking(ctx context.Context, q model.Query, ranking model.Ranking) (model.Ranking, error) {
	out := ranking.Clone()
	if len(out) == 0 {
		return out, nil
	}

	if t.arguments != nil {
		if err := t.tagArguments(ctx, out); err != nil {
			return nil, err
		}
	}
	if t.quality == nil && t.stance == nil {
		return out, nil
	}

	perItem := make([][]string, len(out))
	var unique []string
	seen := make(map[string]struct{})
	for i, item := range out {
		perItem[i] = analysis.SplitSentences(item.Content)
		for _, s := range perItem[i] {
			if _, ok := seen[s]; !ok {
				seen[s] = struct{}{}
				unique = append(unique, s)
			}
		}
	}

	var qualities, stances map[string]float64
	if t.quality != nil {
		scores, err := t.quality.Score(ctx, q.Title, unique)
		if err != nil {
			return nil, fmt.Errorf("score quality: %w", err)
		}
		if qualities, err = zip(unique, scores); err != nil {
			return nil, fmt.Errorf("score quality: %w", err)
		}
	}
	if t.stance != nil {
		scores, err := t.stance.Stances(ctx, q, unique)
		if err != nil {
			return nil, fmt.Errorf("score stance: %w", err)
		}
		if stances, err = zip(unique, scores); err != nil {
			return nil, fmt.Errorf("score stance: %w", err)
		}
	}

	for i := range out {
		if qualities != nil {
			out[i].Qualities = make([]model.QualitySentence, len(perItem[i]))
			for j, s := range perItem[i] {
				out[i].Qualities[j] = model.QualitySentence{Content: s, Quality: qualities[s]}
			}
		}
		if stances != nil {
			out[i].Stances = make([]model.StanceSentence, len(perItem[i]))
			for j, s := range perItem[i] {
				out[i].Stances[j] = model.StanceSentence{Content: s, Stance: stances[s]}
			}
		}
	}

	t.logger.Debug("tagged ranking",
		"query", q.ID,
		"items", len(out),
		"sentences", len(unique),
	)
	return out, nil
}

func (t *Tagger) tagArguments(ctx context.Context, ranking model.Ranking) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.concurrency)

	for i := range ranking {
		g.Go(func() error {
			arguments, err := t.arguments.TagArguments(gctx, ranking[i].Document)
			if err != nil {
				return err
			}
			ranking[i].Arguments = arguments
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("tag arguments: %w", err)
	}
	return nil
}

func zip(sentences []string, scores []float64) (map[string]float64, error) {
	if len(scores) != len(sentences) {
		return nil, fmt.Errorf("got %d scores for %d sentences", len(scores), len(sentences))
	}
	m := make(map[string]float64, len(sentences))
	for i, s := range sentences {
		m[s] = scores[i]
	}
	return m, nil
}
