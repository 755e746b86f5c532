package ingestion

import (
	"strconv"
	"strings"

	"github.com/knoguchi/comparank/internal/analysis"
	"github.com/knoguchi/comparank/internal/model"
)

const (
	// PassageSeparator joins a document id and a passage number ("doc___2").
	PassageSeparator = "___"

	defaultTargetWords = 200
	defaultMaxWords    = 400
)

// SplitterConfig configures how long documents are split into passages.
type SplitterConfig struct {
	// TargetWords is the size a passage is flushed at.
	TargetWords int
	// MaxWords is the largest document kept whole, and the largest passage produced.
	MaxWords int
}

// Splitter splits long documents into passages of whole sentences.
type Splitter struct {
	config SplitterConfig
}

// NewSplitter creates a splitter. Zero sizes select the defaults.
func NewSplitter(config SplitterConfig) *Splitter {
	if config.TargetWords <= 0 {
		config.TargetWords = defaultTargetWords
	}
	if config.MaxWords <= 0 {
		config.MaxWords = defaultMaxWords
	}
	if config.TargetWords > config.MaxWords {
		config.TargetWords = config.MaxWords
	}
	return &Splitter{config: config}
}

// Split returns doc unchanged when it has at most MaxWords words. Longer documents become
// passages "<id>___<n>" numbered from 1, each carrying the source id in the "document_id"
// field. A sentence longer than MaxWords is cut at word boundaries.
func (s *Splitter) Split(doc model.Document) []model.Document {
	if len(strings.Fields(doc.Content)) <= s.config.MaxWords {
		return []model.Document{doc}
	}

	var groups [][]string
	var current []string
	words := 0
	flush := func() {
		if len(current) > 0 {
			groups = append(groups, current)
			current, words = nil, 0
		}
	}

	for _, sentence := range analysis.SplitSentences(doc.Content) {
		n := len(strings.Fields(sentence))
		if words+n > s.config.MaxWords {
			flush()
		}
		if n > s.config.MaxWords {
			for _, part := range splitWords(sentence, s.config.TargetWords) {
				groups = append(groups, []string{part})
			}
			continue
		}
		current = append(current, sentence)
		words += n
		if words >= s.config.TargetWords {
			flush()
		}
	}
	flush()

	passages := make([]model.Document, len(groups))
	for i, group := range groups {
		fields := make(map[string]string, len(doc.Fields)+1)
		for k, v := range doc.Fields {
			fields[k] = v
		}
		fields["document_id"] = doc.ID
		passages[i] = model.Document{
			ID:      doc.ID + PassageSeparator + strconv.Itoa(i+1),
			Content: strings.Join(group, " "),
			Fields:  fields,
		}
	}
	return passages
}

func splitWords(sentence string, size int) []string {
	words := strings.Fields(sentence)
	var parts []string
	for i := 0; i < len(words); i += size {
		parts = append(parts, strings.Join(words[i:min(i+size, len(words))], " "))
	}
	return parts
}
