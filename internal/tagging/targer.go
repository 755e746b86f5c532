package tagging

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/knoguchi/comparank/internal/model"
)

const (
	// DefaultTargerURL is the public TARGER API. Model names are appended to it.
	DefaultTargerURL = "https://demo.webis.de/targer-api/"
	// DefaultTargerModel tags claims and premises with the IBM-trained model.
	DefaultTargerModel = "tag-ibm-fasttext"

	defaultArgumentCacheSize = 2048
)

// ArgumentTagger tags the argumentative units of a passage, keyed by tagger model.
type ArgumentTagger interface {
	TagArguments(ctx context.Context, doc model.Document) (map[string]model.ArgumentSentences, error)
}

// TargerConfig holds configuration for the TARGER client.
type TargerConfig struct {
	BaseURL    string
	Models     []string
	CacheSize  int
	HTTPClient *http.Client
	Limiter    *rate.Limiter
}

// TargerClient implements ArgumentTagger using the TARGER API. Responses are cached by
// model, passage id and content.
type TargerClient struct {
	baseURL string
	models  []string
	api     *apiClient
	cache   *lru.Cache[string, model.ArgumentSentences]
}

type targerTag struct {
	Token string  `json:"token"`
	Label string  `json:"label"`
	Prob  float64 `json:"prob"`
}

// NewTargerClient creates a TARGER client.
func NewTargerClient(cfg TargerConfig) (*TargerClient, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultTargerURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	models := cfg.Models
	if len(models) == 0 {
		models = []string{DefaultTargerModel}
	}

	size := cfg.CacheSize
	if size <= 0 {
		size = defaultArgumentCacheSize
	}
	cache, err := lru.New[string, model.ArgumentSentences](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create argument cache: %w", err)
	}

	return &TargerClient{
		baseURL: baseURL,
		models:  models,
		api:     newAPIClient("targer", cfg.HTTPClient, cfg.Limiter),
		cache:   cache,
	}, nil
}

// Models returns the tagger models queried for every passage.
func (c *TargerClient) Models() []string {
	return c.models
}

// TagArguments implements ArgumentTagger.
func (c *TargerClient) TagArguments(ctx context.Context, doc model.Document) (map[string]model.ArgumentSentences, error) {
	arguments := make(map[string]model.ArgumentSentences, len(c.models))
	for _, m := range c.models {
		sentences, err := c.tag(ctx, m, doc)
		if err != nil {
			return nil, fmt.Errorf("tag %s with %s: %w", doc.ID, m, err)
		}
		arguments[m] = sentences
	}
	return arguments, nil
}

func (c *TargerClient) tag(ctx context.Context, m string, doc model.Document) (model.ArgumentSentences, error) {
	key := cacheKey(m, doc)
	if sentences, ok := c.cache.Get(key); ok {
		return sentences, nil
	}

	body, err := c.api.post(ctx, c.baseURL+m, "text/plain", []byte(doc.Content), nil)
	if err != nil {
		return nil, err
	}

	var raw [][]targerTag
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	sentences := make(model.ArgumentSentences, len(raw))
	for i, rawSentence := range raw {
		sentence := make(model.ArgumentSentence, len(rawSentence))
		for j, t := range rawSentence {
			sentence[j] = model.ArgumentTag{
				Token:       t.Token,
				Label:       model.ArgumentLabel(t.Label),
				Probability: t.Prob,
			}
		}
		sentences[i] = sentence
	}

	c.cache.Add(key, sentences)
	return sentences, nil
}

func cacheKey(m string, doc model.Document) string {
	sum := sha256.Sum256([]byte(doc.Content))
	return m + "/" + doc.ID + "-" + hex.EncodeToString(sum[:8])
}

var _ ArgumentTagger = (*TargerClient)(nil)
