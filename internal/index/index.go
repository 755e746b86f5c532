// Package index provides an in-memory inverted index over passages with the collection
// statistics needed by retrieval models and re-ranking axioms.
package index

import (
	"sync"

	"github.com/knoguchi/comparank/internal/analysis"
	"github.com/knoguchi/comparank/internal/model"
)

// Statistics exposes collection-level term statistics.
type Statistics interface {
	// DocumentCount returns the number of indexed documents.
	DocumentCount() int
	// DocumentFrequency returns the number of documents containing term.
	DocumentFrequency(term string) int
	// CollectionFrequency returns the total number of occurrences of term.
	CollectionFrequency(term string) int
	// CollectionLength returns the total number of terms in the collection.
	CollectionLength() int
	// AverageDocumentLength returns the mean number of terms per document.
	AverageDocumentLength() float64
}

type posting struct {
	docID string
	count int
}

// Index is an in-memory inverted index. It is safe for concurrent use.
type Index struct {
	mu        sync.RWMutex
	analyzer  *analysis.Analyzer
	documents map[string]model.Document
	lengths   map[string]int
	postings  map[string][]posting
	cf        map[string]int
	total     int
}

// New creates an empty index using analyzer for all documents and queries.
func New(analyzer *analysis.Analyzer) *Index {
	if analyzer == nil {
		analyzer = analysis.NewAnalyzer()
	}
	return &Index{
		analyzer:  analyzer,
		documents: make(map[string]model.Document),
		lengths:   make(map[string]int),
		postings:  make(map[string][]posting),
		cf:        make(map[string]int),
	}
}

// Analyzer returns the analyzer the index was built with.
func (i *Index) Analyzer() *analysis.Analyzer {
	return i.analyzer
}

// Add indexes documents. Re-adding an id replaces the earlier version.
func (i *Index) Add(docs ...model.Document) {
	i.mu.Lock()
	defer i.mu.Unlock()

	for _, doc := range docs {
		if _, exists := i.documents[doc.ID]; exists {
			i.remove(doc.ID)
		}

		terms := i.analyzer.Terms(doc.Content)
		counts := make(map[string]int)
		for _, term := range terms {
			counts[term]++
		}
		for term, count := range counts {
			i.postings[term] = append(i.postings[term], posting{docID: doc.ID, count: count})
			i.cf[term] += count
		}

		i.documents[doc.ID] = doc
		i.lengths[doc.ID] = len(terms)
		i.total += len(terms)
	}
}

// Delete removes a document from the index.
func (i *Index) Delete(id string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.remove(id)
}

func (i *Index) remove(id string) {
	doc, ok := i.documents[id]
	if !ok {
		return
	}
	for _, term := range i.analyzer.Terms(doc.Content) {
		i.cf[term]--
		if i.cf[term] <= 0 {
			delete(i.cf, term)
		}
	}
	for term, list := range i.postings {
		for j, p := range list {
			if p.docID == id {
				list = append(list[:j], list[j+1:]...)
				break
			}
		}
		if len(list) == 0 {
			delete(i.postings, term)
		} else {
			i.postings[term] = list
		}
	}
	i.total -= i.lengths[id]
	delete(i.lengths, id)
	delete(i.documents, id)
}

// Reset clears the index.
func (i *Index) Reset() {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.documents = make(map[string]model.Document)
	i.lengths = make(map[string]int)
	i.postings = make(map[string][]posting)
	i.cf = make(map[string]int)
	i.total = 0
}

// Get returns the document with the given id.
func (i *Index) Get(id string) (model.Document, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	doc, ok := i.documents[id]
	return doc, ok
}

// DocumentCount implements Statistics.
func (i *Index) DocumentCount() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.documents)
}

// DocumentFrequency implements Statistics.
func (i *Index) DocumentFrequency(term string) int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.postings[term])
}

// CollectionFrequency implements Statistics.
func (i *Index) CollectionFrequency(term string) int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.cf[term]
}

// CollectionLength implements Statistics.
func (i *Index) CollectionLength() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.total
}

// AverageDocumentLength implements Statistics.
func (i *Index) AverageDocumentLength() float64 {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if len(i.documents) == 0 {
		return 0
	}
	return float64(i.total) / float64(len(i.documents))
}

// DocumentLength returns the number of terms in the indexed document.
func (i *Index) DocumentLength(id string) int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.lengths[id]
}

var _ Statistics = (*Index)(nil)
