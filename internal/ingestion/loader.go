// Package ingestion loads passage corpora into the passage store, the in-memory index and
// the vector store.
package ingestion

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/knoguchi/comparank/internal/analysis"
	"github.com/knoguchi/comparank/internal/embedder"
	"github.com/knoguchi/comparank/internal/index"
	"github.com/knoguchi/comparank/internal/model"
	"github.com/knoguchi/comparank/internal/repository"
	"github.com/knoguchi/comparank/internal/vectorstore"
)

const (
	defaultBatchSize = 256
	maxLineBytes     = 16 << 20
)

// ErrInvalidRecord is returned for corpus lines without an id.
var ErrInvalidRecord = errors.New("invalid corpus record")

// LoaderConfig holds the stores a Loader writes to. Every store is optional.
type LoaderConfig struct {
	Passages repository.PassageRepository
	Index    *index.Index

	// Embedder and Vectors must both be set to fill the vector store.
	Embedder embedder.Embedder
	Vectors  vectorstore.VectorStore
	// Analyzer adds term vectors to points for hybrid search.
	Analyzer *analysis.Analyzer

	// Splitter splits long documents into passages. Nil keeps documents whole.
	Splitter *Splitter

	// DefaultFields are added to every passage without overriding its own fields.
	DefaultFields map[string]string

	BatchSize int
	Logger    *slog.Logger
}

// Stats summarizes a load.
type Stats struct {
	// Records is the number of corpus lines read.
	Records int
	// Passages is the number of passages stored.
	Passages int
	// Skipped counts records with empty content.
	Skipped  int
	Duration time.Duration
}

// Loader reads JSONL corpora.
type Loader struct {
	config LoaderConfig
	logger *slog.Logger
}

// NewLoader creates a loader.
func NewLoader(config LoaderConfig) *Loader {
	if config.BatchSize <= 0 {
		config.BatchSize = defaultBatchSize
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{config: config, logger: logger}
}

// Load reads one JSON object per line, each with an "id" and "contents" key. Remaining
// keys become passage fields. Passages are written in batches.
func (l *Loader) Load(ctx context.Context, r io.Reader) (Stats, error) {
	start := time.Now()
	var stats Stats

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	batch := make([]model.Document, 0, l.config.BatchSize)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		stats.Records++

		doc, err := ParseRecord([]byte(text))
		if err != nil {
			return stats, fmt.Errorf("line %d: %w", line, err)
		}
		doc.Content = strings.TrimSpace(doc.Content)
		if doc.Content == "" {
			stats.Skipped++
			continue
		}
		l.addDefaults(&doc)

		if l.config.Splitter != nil {
			batch = append(batch, l.config.Splitter.Split(doc)...)
		} else {
			batch = append(batch, doc)
		}

		if len(batch) >= l.config.BatchSize {
			if err := l.store(ctx, batch); err != nil {
				return stats, err
			}
			stats.Passages += len(batch)
			batch = batch[:0]
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("read corpus: %w", err)
	}
	if len(batch) > 0 {
		if err := l.store(ctx, batch); err != nil {
			return stats, err
		}
		stats.Passages += len(batch)
	}

	stats.Duration = time.Since(start)
	l.logger.Info("corpus loaded",
		"records", stats.Records,
		"passages", stats.Passages,
		"skipped", stats.Skipped,
		"duration", stats.Duration,
	)
	return stats, nil
}

// RebuildIndex adds every stored passage to the index, so a restarted process searches the
// same corpus without re-reading it.
func (l *Loader) RebuildIndex(ctx context.Context) (int, error) {
	if l.config.Passages == nil || l.config.Index == nil {
		return 0, nil
	}

	n := 0
	batch := make([]model.Document, 0, l.config.BatchSize)
	err := l.config.Passages.Each(ctx, func(doc model.Document) error {
		batch = append(batch, doc)
		if len(batch) >= l.config.BatchSize {
			l.config.Index.Add(batch...)
			n += len(batch)
			batch = batch[:0]
		}
		return nil
	})
	if err != nil {
		return n, fmt.Errorf("read passages: %w", err)
	}
	l.config.Index.Add(batch...)
	n += len(batch)

	l.logger.Info("index rebuilt", "passages", n)
	return n, nil
}

func (l *Loader) addDefaults(doc *model.Document) {
	if len(l.config.DefaultFields) == 0 {
		return
	}
	if doc.Fields == nil {
		doc.Fields = make(map[string]string, len(l.config.DefaultFields))
	}
	for k, v := range l.config.DefaultFields {
		if _, exists := doc.Fields[k]; !exists {
			doc.Fields[k] = v
		}
	}
}

func (l *Loader) store(ctx context.Context, docs []model.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if l.config.Passages != nil {
		if err := l.config.Passages.Upsert(ctx, docs); err != nil {
			return fmt.Errorf("store passages: %w", err)
		}
	}
	if l.config.Index != nil {
		l.config.Index.Add(docs...)
	}
	if l.config.Embedder == nil || l.config.Vectors == nil {
		return nil
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
	}
	vectors, err := l.config.Embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed passages: %w", err)
	}

	passages := make([]vectorstore.Passage, len(docs))
	for i, doc := range docs {
		passages[i] = vectorstore.Passage{
			ID:      doc.ID,
			Content: doc.Content,
			Vector:  vectors[i],
			Fields:  doc.Fields,
		}
		if l.config.Analyzer != nil {
			passages[i].SparseVector = vectorstore.SparseFromTerms(l.config.Analyzer.Terms(doc.Content))
		}
	}
	if err := l.config.Vectors.Upsert(ctx, passages); err != nil {
		return fmt.Errorf("store vectors: %w", err)
	}
	return nil
}

var (
	idKeys      = []string{"id", "docid", "_id"}
	contentKeys = []string{"contents", "content", "text"}
)

// ParseRecord parses one corpus line. The "contents" key holds the passage text ("content"
// and "text" are accepted too); scalar values of other keys become fields.
func ParseRecord(line []byte) (model.Document, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(line, &raw); err != nil {
		return model.Document{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}

	var doc model.Document
	doc.ID = first(raw, idKeys)
	if doc.ID == "" {
		return model.Document{}, fmt.Errorf("%w: missing id", ErrInvalidRecord)
	}
	doc.Content = first(raw, contentKeys)

	for key, value := range raw {
		if slices.Contains(idKeys, key) || slices.Contains(contentKeys, key) {
			continue
		}
		if s, ok := scalar(value); ok {
			if doc.Fields == nil {
				doc.Fields = make(map[string]string)
			}
			doc.Fields[key] = s
		}
	}
	return doc, nil
}

// first returns the value of the first key present with a scalar value.
func first(raw map[string]json.RawMessage, keys []string) string {
	for _, key := range keys {
		if value, ok := raw[key]; ok {
			if s, ok := scalar(value); ok {
				return s
			}
		}
	}
	return ""
}

// scalar renders a JSON string, number or boolean as text.
func scalar(value json.RawMessage) (string, bool) {
	var v any
	if err := json.Unmarshal(value, &v); err != nil {
		return "", false
	}
	switch v := v.(type) {
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	}
	return "", false
}
