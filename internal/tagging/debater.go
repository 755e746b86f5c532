package tagging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/time/rate"
)

const (
	// DefaultDebaterQualityURL scores the argument quality of a sentence for a topic.
	DefaultDebaterQualityURL = "https://arg-quality.debater.res.ibm.com/score/"
	// DefaultDebaterProConURL scores whether a sentence supports or contests a claim.
	DefaultDebaterProConURL = "https://pro-con.debater.res.ibm.com/score/"

	debaterBatchSize = 100
)

// ErrMissingAPIKey is returned when a scorer that needs an API key has none.
var ErrMissingAPIKey = errors.New("missing API key")

// DebaterConfig holds configuration for an IBM Project Debater scorer.
type DebaterConfig struct {
	// URL of the scoring endpoint. Defaults depend on the scorer.
	URL        string
	APIKey     string
	HTTPClient *http.Client
	Limiter    *rate.Limiter
}

// DebaterScorer implements SentenceScorer with an IBM Project Debater scoring service.
// The argument quality service returns scores in [0, 1], the pro/con service in [-1, 1].
type DebaterScorer struct {
	url    string
	apiKey string
	api    *apiClient
}

type debaterPair struct {
	Sentence string `json:"sentence"`
	Topic    string `json:"topic"`
}

type debaterRequest struct {
	SentenceTopicDicts []debaterPair `json:"sentence_topic_dicts"`
}

// NewDebaterQualityScorer creates an argument quality scorer.
func NewDebaterQualityScorer(cfg DebaterConfig) (*DebaterScorer, error) {
	return newDebaterScorer("debater-quality", DefaultDebaterQualityURL, cfg)
}

// NewDebaterStanceScorer creates a pro/con stance scorer.
func NewDebaterStanceScorer(cfg DebaterConfig) (*DebaterScorer, error) {
	return newDebaterScorer("debater-pro-con", DefaultDebaterProConURL, cfg)
}

func newDebaterScorer(name, defaultURL string, cfg DebaterConfig) (*DebaterScorer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: %w", name, ErrMissingAPIKey)
	}
	url := cfg.URL
	if url == "" {
		url = defaultURL
	}
	return &DebaterScorer{
		url:    url,
		apiKey: cfg.APIKey,
		api:    newAPIClient(name, cfg.HTTPClient, cfg.Limiter),
	}, nil
}

// Score implements SentenceScorer.
func (s *DebaterScorer) Score(ctx context.Context, topic string, sentences []string) ([]float64, error) {
	scores := make([]float64, 0, len(sentences))
	for start := 0; start < len(sentences); start += debaterBatchSize {
		end := min(start+debaterBatchSize, len(sentences))
		batch, err := s.scoreBatch(ctx, topic, sentences[start:end])
		if err != nil {
			return nil, err
		}
		scores = append(scores, batch...)
	}
	return scores, nil
}

func (s *DebaterScorer) scoreBatch(ctx context.Context, topic string, sentences []string) ([]float64, error) {
	req := debaterRequest{SentenceTopicDicts: make([]debaterPair, len(sentences))}
	for i, sentence := range sentences {
		req.SentenceTopicDicts[i] = debaterPair{Sentence: sentence, Topic: topic}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	header := http.Header{}
	header.Set("apikey", s.apiKey)
	data, err := s.api.post(ctx, s.url, "application/json", body, header)
	if err != nil {
		return nil, err
	}

	var scores []float64
	if err := json.Unmarshal(data, &scores); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(scores) != len(sentences) {
		return nil, fmt.Errorf("expected %d scores, got %d", len(sentences), len(scores))
	}
	return scores, nil
}

var _ SentenceScorer = (*DebaterScorer)(nil)
