// Package rerankctx exposes the term statistics and retrieval scores that axioms need,
// backed by the search index.
package rerankctx

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/knoguchi/comparank/internal/analysis"
	"github.com/knoguchi/comparank/internal/index"
	"github.com/knoguchi/comparank/internal/model"
)

// DefaultTermCacheSize bounds the number of analyzed texts kept in memory.
const DefaultTermCacheSize = 4096

// Context provides collection statistics and retrieval scores to axioms.
// Axioms call it but never construct it.
type Context interface {
	DocumentCount() int
	DocumentFrequency(term string) int
	InverseDocumentFrequency(term string) float64
	Terms(text string) []string
	TermSet(text string) map[string]struct{}
	TermFrequency(text, term string) float64

	TFIDFScore(q model.Query, doc model.Document) float64
	BM25Score(q model.Query, doc model.Document) float64
	PL2Score(q model.Query, doc model.Document) float64
	QLScore(q model.Query, doc model.Document) float64
}

// IndexContext implements Context over index statistics. Analyzed texts are memoised
// because axioms analyze the same passage for every pair it takes part in.
type IndexContext struct {
	stats    index.Statistics
	analyzer *analysis.Analyzer
	terms    *lru.Cache[string, []string]
}

// Option configures an IndexContext.
type Option func(*IndexContext)

// WithAnalyzer overrides the analyzer used for Terms.
func WithAnalyzer(a *analysis.Analyzer) Option {
	return func(c *IndexContext) {
		c.analyzer = a
	}
}

// New creates a context over stats. cacheSize <= 0 uses DefaultTermCacheSize.
func New(stats index.Statistics, cacheSize int, opts ...Option) (*IndexContext, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultTermCacheSize
	}
	cache, err := lru.New[string, []string](cacheSize)
	if err != nil {
		return nil, err
	}

	c := &IndexContext{
		stats:    stats,
		analyzer: analysis.NewAnalyzer(),
		terms:    cache,
	}
	if idx, ok := stats.(*index.Index); ok {
		c.analyzer = idx.Analyzer()
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// DocumentCount implements Context.
func (c *IndexContext) DocumentCount() int {
	return c.stats.DocumentCount()
}

// DocumentFrequency implements Context.
func (c *IndexContext) DocumentFrequency(term string) int {
	return c.stats.DocumentFrequency(term)
}

// InverseDocumentFrequency implements Context.
func (c *IndexContext) InverseDocumentFrequency(term string) float64 {
	return index.IDF(c.stats, term)
}

// Terms implements Context. The returned slice must not be modified.
func (c *IndexContext) Terms(text string) []string {
	if terms, ok := c.terms.Get(text); ok {
		return terms
	}
	terms := c.analyzer.Terms(text)
	c.terms.Add(text, terms)
	return terms
}

// TermSet implements Context.
func (c *IndexContext) TermSet(text string) map[string]struct{} {
	terms := c.Terms(text)
	set := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		set[t] = struct{}{}
	}
	return set
}

// TermFrequency implements Context. It is the share of the text's terms equal to term.
func (c *IndexContext) TermFrequency(text, term string) float64 {
	terms := c.Terms(text)
	if len(terms) == 0 {
		return 0
	}
	count := 0
	for _, t := range terms {
		if t == term {
			count++
		}
	}
	return float64(count) / float64(len(terms))
}

func (c *IndexContext) score(m index.RetrievalModel, q model.Query, doc model.Document) float64 {
	docTerms := c.Terms(doc.Content)
	return index.Score(m, c.stats, c.Terms(q.Title), index.TermCounts(docTerms), len(docTerms))
}

// TFIDFScore implements Context.
func (c *IndexContext) TFIDFScore(q model.Query, doc model.Document) float64 {
	return c.score(index.TFIDF, q, doc)
}

// BM25Score implements Context.
func (c *IndexContext) BM25Score(q model.Query, doc model.Document) float64 {
	return c.score(index.BM25, q, doc)
}

// PL2Score implements Context.
func (c *IndexContext) PL2Score(q model.Query, doc model.Document) float64 {
	return c.score(index.PL2, q, doc)
}

// QLScore implements Context.
func (c *IndexContext) QLScore(q model.Query, doc model.Document) float64 {
	return c.score(index.QL, q, doc)
}

var _ Context = (*IndexContext)(nil)
