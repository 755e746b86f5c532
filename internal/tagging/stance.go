package tagging

import (
	"context"
	"fmt"
	"math"

	"github.com/knoguchi/comparank/internal/model"
)

// ClaimStrategy turns a comparative object into the claims sentences are scored against.
type ClaimStrategy string

const (
	// ClaimObject uses the object itself as the only claim.
	ClaimObject ClaimStrategy = "object"
	// ClaimSentiment adds positive statements about the object.
	ClaimSentiment ClaimStrategy = "sentiment"
)

// ParseClaimStrategy parses a claim strategy name. Empty selects ClaimObject.
func ParseClaimStrategy(s string) (ClaimStrategy, error) {
	switch ClaimStrategy(s) {
	case "", ClaimObject:
		return ClaimObject, nil
	case ClaimSentiment:
		return ClaimSentiment, nil
	}
	return "", fmt.Errorf("unknown claim strategy %q", s)
}

// Claims returns the claims for object.
func (s ClaimStrategy) Claims(object string) []string {
	if s == ClaimSentiment {
		return []string{object, object + " is good", object + " is the best"}
	}
	return []string{object}
}

// StanceTagger computes sentence stances towards the two objects of a comparative query.
// The stance of a sentence is its mean score over the claims about the first object minus
// its mean score over the claims about the second.
type StanceTagger struct {
	scorer    SentenceScorer
	strategy  ClaimStrategy
	threshold float64
}

// NewStanceTagger creates a stance tagger. Stances whose magnitude is below threshold are
// set to zero; a threshold of 0 keeps every stance.
func NewStanceTagger(scorer SentenceScorer, strategy ClaimStrategy, threshold float64) *StanceTagger {
	if strategy == "" {
		strategy = ClaimObject
	}
	return &StanceTagger{scorer: scorer, strategy: strategy, threshold: math.Abs(threshold)}
}

// Stances returns one stance per sentence. Sentences of a query without comparative objects
// have stance zero. Every claim is scored against all sentences in one call.
func (t *StanceTagger) Stances(ctx context.Context, q model.Query, sentences []string) ([]float64, error) {
	stances := make([]float64, len(sentences))
	if !q.Comparative() || len(sentences) == 0 {
		return stances, nil
	}

	first, err := t.meanScores(ctx, t.strategy.Claims(q.Objects.First), sentences)
	if err != nil {
		return nil, err
	}
	second, err := t.meanScores(ctx, t.strategy.Claims(q.Objects.Second), sentences)
	if err != nil {
		return nil, err
	}

	for i := range sentences {
		stance := first[i] - second[i]
		if math.Abs(stance) < t.threshold {
			stance = 0
		}
		stances[i] = stance
	}
	return stances, nil
}

func (t *StanceTagger) meanScores(ctx context.Context, claims, sentences []string) ([]float64, error) {
	means := make([]float64, len(sentences))
	for _, claim := range claims {
		scores, err := t.scorer.Score(ctx, claim, sentences)
		if err != nil {
			return nil, fmt.Errorf("score stance towards %q: %w", claim, err)
		}
		if len(scores) != len(sentences) {
			return nil, fmt.Errorf("got %d scores for %d sentences", len(scores), len(sentences))
		}
		for i, s := range scores {
			means[i] += s / float64(len(claims))
		}
	}
	return means, nil
}
