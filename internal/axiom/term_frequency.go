package axiom

import (
	"github.com/knoguchi/comparank/internal/model"
	"github.com/knoguchi/comparank/internal/rerankctx"
)

// TFC1 prefers the item with more query term occurrences when both items have about the
// same length.
type TFC1 struct{}

// Preference implements Axiom.
func (TFC1) Preference(rc rerankctx.Context, q model.Query, a, b model.RankedItem) float64 {
	if !approximatelySameLength(rc, a, b) {
		return 0
	}

	var tfA, tfB float64
	for _, term := range rc.Terms(q.Title) {
		tfA += rc.TermFrequency(a.Content, term)
		tfB += rc.TermFrequency(b.Content, term)
	}
	if approximatelyEqual(defaultMargin, tfA, tfB) {
		return 0
	}
	return strictlyGreater(tfA, tfB)
}

// TFC3 prefers the item covering more distinct query terms of similar discriminative power
// when both items have about the same length.
type TFC3 struct{}

// Preference implements Axiom.
func (TFC3) Preference(rc rerankctx.Context, q model.Query, a, b model.RankedItem) float64 {
	if !approximatelySameLength(rc, a, b) {
		return 0
	}

	terms := uniqueTerms(rc.Terms(q.Title))
	var scoreA, scoreB int
	for i := 0; i < len(terms); i++ {
		for j := i + 1; j < len(terms); j++ {
			t1, t2 := terms[i], terms[j]
			if !approximatelyEqual(defaultMargin, rc.InverseDocumentFrequency(t1), rc.InverseDocumentFrequency(t2)) {
				continue
			}
			a1, b1 := rc.TermFrequency(a.Content, t1), rc.TermFrequency(b.Content, t1)
			a2, b2 := rc.TermFrequency(a.Content, t2), rc.TermFrequency(b.Content, t2)

			if b1 == a1+a2 && b2 == 0 && a1 != 0 && a2 != 0 {
				scoreA++
			}
			if a1 == b1+b2 && a2 == 0 && b1 != 0 && b2 != 0 {
				scoreB++
			}
		}
	}
	return strictlyGreater(scoreA, scoreB)
}

// LNC1 prefers the shorter item when both contain every query term equally often.
type LNC1 struct{}

// Preference implements Axiom.
func (LNC1) Preference(rc rerankctx.Context, q model.Query, a, b model.RankedItem) float64 {
	termsA, termsB := rc.Terms(a.Content), rc.Terms(b.Content)
	countsA, countsB := counts(termsA), counts(termsB)
	for _, term := range uniqueTerms(rc.Terms(q.Title)) {
		if countsA[term] != countsB[term] {
			return 0
		}
	}
	return strictlyLess(len(termsA), len(termsB))
}

func uniqueTerms(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	unique := make([]string, 0, len(terms))
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		unique = append(unique, t)
	}
	return unique
}

func counts(terms []string) map[string]int {
	m := make(map[string]int, len(terms))
	for _, t := range terms {
		m[t]++
	}
	return m
}
