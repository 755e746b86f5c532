package tagging

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/knoguchi/comparank/internal/llm"
)

const llmBatchSize = 20

// LLMTask selects what an LLMScorer asks the model for.
type LLMTask string

const (
	// LLMQuality asks for the argument quality of each sentence, in [0, 1].
	LLMQuality LLMTask = "quality"
	// LLMStance asks whether each sentence supports (1) or contests (-1) the topic.
	LLMStance LLMTask = "stance"
)

// LLMScorer implements SentenceScorer by prompting an LLM for JSON scores.
type LLMScorer struct {
	llmClient llm.LLM
	model     string
	task      LLMTask
}

// LLMScorerOption is a functional option for configuring LLMScorer.
type LLMScorerOption func(*LLMScorer)

// WithModel sets the model to use for scoring.
func WithModel(model string) LLMScorerOption {
	return func(s *LLMScorer) {
		if model != "" {
			s.model = model
		}
	}
}

// NewLLMScorer creates a new LLM-based sentence scorer.
func NewLLMScorer(llmClient llm.LLM, task LLMTask, opts ...LLMScorerOption) *LLMScorer {
	s := &LLMScorer{
		llmClient: llmClient,
		model:     llm.DefaultModel,
		task:      task,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type sentenceScore struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

type scoreResponse struct {
	Scores []sentenceScore `json:"scores"`
}

// Score implements SentenceScorer. Sentences the model leaves out score neutral.
func (s *LLMScorer) Score(ctx context.Context, topic string, sentences []string) ([]float64, error) {
	scores := make([]float64, 0, len(sentences))
	for start := 0; start < len(sentences); start += llmBatchSize {
		end := min(start+llmBatchSize, len(sentences))
		batch := sentences[start:end]

		response, err := s.llmClient.Generate(ctx, s.buildPrompt(topic, batch), llm.GenerateOptions{
			Model:       s.model,
			Temperature: 0.0, // Deterministic scoring
			MaxTokens:   1024,
			JSON:        true,
		})
		if err != nil {
			return nil, fmt.Errorf("LLM scoring failed: %w", err)
		}

		parsed, err := s.parseResponse(response, len(batch))
		if err != nil {
			return nil, err
		}
		scores = append(scores, parsed...)
	}
	return scores, nil
}

func (s *LLMScorer) buildPrompt(topic string, sentences []string) string {
	var sb strings.Builder

	switch s.task {
	case LLMStance:
		sb.WriteString("You are a stance detection system. For each sentence decide whether it supports or contests the claim.\n\n")
		sb.WriteString("Claim: ")
	default:
		sb.WriteString("You are an argument quality scoring system. Score how convincing each sentence is as an argument about the topic.\n\n")
		sb.WriteString("Topic: ")
	}
	sb.WriteString(topic)
	sb.WriteString("\n\nSentences:\n")
	for i, sentence := range sentences {
		sb.WriteString(fmt.Sprintf("[%d]: %s\n", i, sentence))
	}

	switch s.task {
	case LLMStance:
		sb.WriteString(`
Score each sentence from -1.0 (contests the claim) to 1.0 (supports the claim); 0.0 means no stance.
Output ONLY valid JSON in this exact format:
{"scores": [{"index": 0, "score": 0.8}, {"index": 1, "score": -0.4}, ...]}
Output only JSON, no explanation:`)
	default:
		sb.WriteString(`
Score each sentence from 0.0 (not an argument) to 1.0 (strong, well-formed argument).
Output ONLY valid JSON in this exact format:
{"scores": [{"index": 0, "score": 0.9}, {"index": 1, "score": 0.3}, ...]}
Output only JSON, no explanation:`)
	}

	return sb.String()
}

// parseResponse extracts scores from the LLM response.
func (s *LLMScorer) parseResponse(response string, n int) ([]float64, error) {
	response = extractJSON(response)

	var parsed scoreResponse
	if err := json.Unmarshal([]byte(response), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse score response: %w", err)
	}

	lo, hi, neutral := 0.0, 1.0, 0.5
	if s.task == LLMStance {
		lo, neutral = -1.0, 0.0
	}

	scores := make([]float64, n)
	for i := range scores {
		scores[i] = neutral
	}
	for _, sc := range parsed.Scores {
		if sc.Index >= 0 && sc.Index < n {
			scores[sc.Index] = min(max(sc.Score, lo), hi)
		}
	}
	return scores, nil
}

// extractJSON strips markdown code fences around a JSON answer.
func extractJSON(response string) string {
	response = strings.TrimSpace(response)

	if idx := strings.Index(response, "```json"); idx != -1 {
		start := idx + 7
		if end := strings.Index(response[start:], "```"); end != -1 {
			response = response[start : start+end]
		}
	} else if idx := strings.Index(response, "```"); idx != -1 {
		start := idx + 3
		if end := strings.Index(response[start:], "```"); end != -1 {
			response = response[start : start+end]
		}
	}

	return strings.TrimSpace(response)
}

var _ SentenceScorer = (*LLMScorer)(nil)
