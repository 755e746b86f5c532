package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultOllamaBaseURL    = "http://localhost:11434"
	DefaultOllamaModel      = "nomic-embed-text"
	DefaultBatchConcurrency = 4
)

// OllamaConfig configures an OllamaEmbedder. Zero values take the defaults
// of the model, or of this package for unknown models.
type OllamaConfig struct {
	BaseURL          string
	Model            string
	BatchConcurrency int
	MaxInputWords    int
}

// OllamaEmbedder embeds text through the /api/embeddings endpoint of an Ollama server.
type OllamaEmbedder struct {
	endpoint    string
	model       string
	limits      modelLimits
	concurrency int
	client      *http.Client
}

type embeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

func NewOllamaEmbedder(cfg OllamaConfig) *OllamaEmbedder {
	e := &OllamaEmbedder{
		endpoint:    cfg.BaseURL,
		model:       cfg.Model,
		concurrency: cfg.BatchConcurrency,
		client:      http.DefaultClient,
	}
	if e.endpoint == "" {
		e.endpoint = DefaultOllamaBaseURL
	}
	e.endpoint += "/api/embeddings"
	if e.model == "" {
		e.model = DefaultOllamaModel
	}
	if e.concurrency <= 0 {
		e.concurrency = DefaultBatchConcurrency
	}
	e.limits = limitsFor(e.model)
	if cfg.MaxInputWords > 0 {
		e.limits.maxWords = cfg.MaxInputWords
	}
	return e
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embeddingRequest{Model: e.model, Prompt: Truncate(text, e.limits.maxWords)})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, msg)
	}

	var out embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(out.Embedding) == 0 {
		return nil, errors.New("empty embedding returned from Ollama")
	}

	vec := make([]float32, len(out.Embedding))
	for i, v := range out.Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

// EmbedBatch implements Embedder with at most BatchConcurrency requests in flight.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, text := range texts {
		g.Go(func() error {
			vec, err := e.Embed(gctx, text)
			if err != nil {
				return fmt.Errorf("text %d: %w", i, err)
			}
			results[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("batch embedding failed: %w", err)
	}
	return results, nil
}

func (e *OllamaEmbedder) Dimension() int    { return e.limits.dimension }
func (e *OllamaEmbedder) ModelName() string { return e.model }

var _ Embedder = (*OllamaEmbedder)(nil)
