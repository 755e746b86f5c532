package index

import (
	"fmt"
	"math"
	"strings"
)

// RetrievalModel names a lexical scoring function.
type RetrievalModel string

const (
	TFIDF RetrievalModel = "tfidf"
	BM25  RetrievalModel = "bm25"
	PL2   RetrievalModel = "pl2"
	QL    RetrievalModel = "ql" // query likelihood, Dirichlet smoothing
)

// Parameters follow Anserini's defaults.
const (
	bm25K1     = 0.9
	bm25B      = 0.4
	pl2C       = 1.0
	dirichletM = 1000.0
)

// ParseRetrievalModel resolves a configuration name to a retrieval model.
func ParseRetrievalModel(name string) (RetrievalModel, error) {
	switch m := RetrievalModel(strings.ToLower(strings.TrimSpace(name))); m {
	case TFIDF, BM25, PL2, QL:
		return m, nil
	case "", "default":
		return BM25, nil
	case "qld", "query-likelihood", "query-likelihood-dirichlet":
		return QL, nil
	default:
		return "", fmt.Errorf("unknown retrieval model: %q", name)
	}
}

// TermCounts counts occurrences of every term.
func TermCounts(terms []string) map[string]int {
	counts := make(map[string]int, len(terms))
	for _, t := range terms {
		counts[t]++
	}
	return counts
}

// IDF returns ln(N/df), or 0 when the term does not occur in the collection.
func IDF(stats Statistics, term string) float64 {
	df := stats.DocumentFrequency(term)
	if df == 0 {
		return 0
	}
	return math.Log(float64(stats.DocumentCount()) / float64(df))
}

// Score scores a document, given as term counts and length, against query terms.
func Score(m RetrievalModel, stats Statistics, queryTerms []string, docCounts map[string]int, docLength int) float64 {
	switch m {
	case TFIDF:
		return scoreTFIDF(stats, queryTerms, docCounts)
	case PL2:
		return scorePL2(stats, queryTerms, docCounts, docLength)
	case QL:
		return scoreQL(stats, queryTerms, docCounts, docLength)
	default:
		return scoreBM25(stats, queryTerms, docCounts, docLength)
	}
}

func scoreTFIDF(stats Statistics, queryTerms []string, docCounts map[string]int) float64 {
	score := 0.0
	for _, term := range queryTerms {
		tf := float64(docCounts[term])
		if tf == 0 {
			continue
		}
		score += tf * IDF(stats, term)
	}
	return score
}

func scoreBM25(stats Statistics, queryTerms []string, docCounts map[string]int, docLength int) float64 {
	avgdl := stats.AverageDocumentLength()
	if avgdl == 0 {
		return 0
	}
	n := float64(stats.DocumentCount())
	lengthNorm := 1.0 - bm25B + bm25B*(float64(docLength)/avgdl)

	score := 0.0
	for _, term := range queryTerms {
		tf := float64(docCounts[term])
		if tf == 0 {
			continue
		}
		df := float64(stats.DocumentFrequency(term))
		idf := math.Log(1.0 + (n-df+0.5)/(df+0.5))
		score += idf * (tf * (bm25K1 + 1.0)) / (tf + bm25K1*lengthNorm)
	}
	return score
}

func scorePL2(stats Statistics, queryTerms []string, docCounts map[string]int, docLength int) float64 {
	n := float64(stats.DocumentCount())
	avgdl := stats.AverageDocumentLength()
	if n == 0 || docLength == 0 {
		return 0
	}

	score := 0.0
	for _, term := range queryTerms {
		tf := float64(docCounts[term])
		cf := float64(stats.CollectionFrequency(term))
		if tf == 0 || cf == 0 {
			continue
		}
		tfn := tf * math.Log2(1.0+pl2C*avgdl/float64(docLength))
		lambda := cf / n
		score += 1.0 / (tfn + 1.0) * (tfn*math.Log2(tfn/lambda) +
			(lambda-tfn)*math.Log2(math.E) +
			0.5*math.Log2(2*math.Pi*tfn))
	}
	return score
}

func scoreQL(stats Statistics, queryTerms []string, docCounts map[string]int, docLength int) float64 {
	collection := float64(stats.CollectionLength())
	if collection == 0 {
		return 0
	}

	score := 0.0
	for _, term := range queryTerms {
		cf := float64(stats.CollectionFrequency(term))
		if cf == 0 {
			continue
		}
		p := cf / collection
		tf := float64(docCounts[term])
		score += math.Log((tf + dirichletM*p) / (float64(docLength) + dirichletM))
	}
	return score
}
