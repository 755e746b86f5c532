package index

import (
	"sort"

	"github.com/knoguchi/comparank/internal/model"
)

// Search scores every document matching at least one query term and returns the best
// maxResults as a ranking with ranks 1..n. Equal scores are ordered by document id.
func (i *Index) Search(query string, maxResults int, m RetrievalModel) []model.RankedItem {
	i.mu.RLock()
	defer i.mu.RUnlock()

	queryTerms := i.analyzer.Terms(query)
	if len(queryTerms) == 0 || maxResults <= 0 {
		return nil
	}

	// Collect per-document counts of query terms only; that is all the models read.
	candidates := make(map[string]map[string]int)
	for _, term := range queryTerms {
		for _, p := range i.postings[term] {
			counts, ok := candidates[p.docID]
			if !ok {
				counts = make(map[string]int)
				candidates[p.docID] = counts
			}
			counts[term] = p.count
		}
	}

	stats := lockedStatistics{i}
	results := make([]model.RankedItem, 0, len(candidates))
	for id, counts := range candidates {
		results = append(results, model.RankedItem{
			Document: i.documents[id],
			Score:    Score(m, stats, queryTerms, counts, i.lengths[id]),
		})
	}

	sort.Slice(results, func(a, b int) bool {
		if results[a].Score != results[b].Score {
			return results[a].Score > results[b].Score
		}
		return results[a].ID < results[b].ID
	})

	if len(results) > maxResults {
		results = results[:maxResults]
	}
	for r := range results {
		results[r].Rank = r + 1
	}
	return results
}

// lockedStatistics reads statistics while the caller already holds the index lock.
type lockedStatistics struct {
	i *Index
}

func (s lockedStatistics) DocumentCount() int { return len(s.i.documents) }

func (s lockedStatistics) DocumentFrequency(term string) int { return len(s.i.postings[term]) }

func (s lockedStatistics) CollectionFrequency(term string) int { return s.i.cf[term] }

func (s lockedStatistics) CollectionLength() int { return s.i.total }

func (s lockedStatistics) AverageDocumentLength() float64 {
	if len(s.i.documents) == 0 {
		return 0
	}
	return float64(s.i.total) / float64(len(s.i.documents))
}
