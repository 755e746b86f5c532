// Package embedder provides text embedding for dense passage retrieval and term similarity.
package embedder

import (
	"context"
	"strings"
)

// Embedder turns text into dense vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch returns one vector per text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	ModelName() string
}

// modelLimits holds the vector size of a model and how many words of a passage it is fed.
type modelLimits struct {
	dimension int
	maxWords  int
}

var knownModels = map[string]modelLimits{
	"nomic-embed-text":  {dimension: 768, maxWords: 512},
	"mxbai-embed-large": {dimension: 1024, maxWords: 300},
	"all-minilm":        {dimension: 384, maxWords: 150},
}

var fallbackLimits = modelLimits{dimension: 768, maxWords: 256}

func limitsFor(model string) modelLimits {
	if l, ok := knownModels[model]; ok {
		return l
	}
	return fallbackLimits
}

// Truncate keeps the first maxWords whitespace-separated words of text.
// Text within the limit is returned unchanged.
func Truncate(text string, maxWords int) string {
	if maxWords <= 0 {
		return text
	}
	words := strings.Fields(text)
	if len(words) <= maxWords {
		return text
	}
	return strings.Join(words[:maxWords], " ")
}
