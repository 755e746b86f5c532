package axiom

import (
	"github.com/knoguchi/comparank/internal/analysis"
	"github.com/knoguchi/comparank/internal/model"
	"github.com/knoguchi/comparank/internal/rerankctx"
)

const (
	// minTagProbability is the confidence a tag needs to count as argumentative.
	minTagProbability = 0.5
	// missingTermPosition is the position assigned to a term that never occurs in an argument.
	missingTermPosition = 10_000_000

	minSentenceLength = 12
	maxSentenceLength = 20
)

// ArgumentCount prefers the item with more claims and premises.
type ArgumentCount struct{}

// Preference implements Axiom.
func (ArgumentCount) Preference(rc rerankctx.Context, _ model.Query, a, b model.RankedItem) float64 {
	if !bothArgumentative(rc, a, b) {
		return 0
	}
	return strictlyGreater(sumArguments(a, countArguments), sumArguments(b, countArguments))
}

// QueryTermsInArgument prefers the item whose arguments mention query terms more often.
type QueryTermsInArgument struct{}

// Preference implements Axiom.
func (QueryTermsInArgument) Preference(rc rerankctx.Context, q model.Query, a, b model.RankedItem) float64 {
	if !bothArgumentative(rc, a, b) {
		return 0
	}
	terms := rc.Terms(q.Title)
	count := func(s model.ArgumentSentences) int { return countTerms(rc, s, terms) }
	return strictlyGreater(sumArguments(a, count), sumArguments(b, count))
}

// QueryTermPositionInArgument prefers the item whose arguments mention query terms earlier.
type QueryTermPositionInArgument struct{}

// Preference implements Axiom.
func (QueryTermPositionInArgument) Preference(rc rerankctx.Context, q model.Query, a, b model.RankedItem) float64 {
	if !bothArgumentative(rc, a, b) {
		return 0
	}
	terms := rc.Terms(q.Title)
	return strictlyLess(meanTermPosition(rc, a, terms), meanTermPosition(rc, b, terms))
}

// ComparativeObjectTermsInArgument prefers the item whose arguments mention the compared
// objects more often.
type ComparativeObjectTermsInArgument struct{}

// Preference implements Axiom.
func (ComparativeObjectTermsInArgument) Preference(rc rerankctx.Context, q model.Query, a, b model.RankedItem) float64 {
	if !bothArgumentative(rc, a, b) {
		return 0
	}
	terms := objectTerms(rc, q)
	count := func(s model.ArgumentSentences) int { return countTerms(rc, s, terms) }
	return strictlyGreater(sumArguments(a, count), sumArguments(b, count))
}

// ComparativeObjectTermPositionInArgument prefers the item whose arguments mention the
// compared objects earlier.
type ComparativeObjectTermPositionInArgument struct{}

// Preference implements Axiom.
func (ComparativeObjectTermPositionInArgument) Preference(rc rerankctx.Context, q model.Query, a, b model.RankedItem) float64 {
	if !bothArgumentative(rc, a, b) {
		return 0
	}
	terms := objectTerms(rc, q)
	return strictlyLess(meanTermPosition(rc, a, terms), meanTermPosition(rc, b, terms))
}

// AverageSentenceLength prefers an item whose sentences average between 12 and 20 words
// over one whose sentences do not.
type AverageSentenceLength struct{}

// Preference implements Axiom.
func (AverageSentenceLength) Preference(rc rerankctx.Context, _ model.Query, a, b model.RankedItem) float64 {
	if !approximatelySameLength(rc, a, b) {
		return 0
	}
	goodA := goodSentenceLength(averageSentenceLength(a.Content))
	goodB := goodSentenceLength(averageSentenceLength(b.Content))
	switch {
	case goodA && !goodB:
		return 1
	case goodB && !goodA:
		return -1
	default:
		return 0
	}
}

// ArgumentQuality prefers the item with the higher average argument quality.
type ArgumentQuality struct{}

// Preference implements Axiom.
func (ArgumentQuality) Preference(rc rerankctx.Context, _ model.Query, a, b model.RankedItem) float64 {
	if !approximatelySameLength(rc, a, b) {
		return 0
	}
	qa, okA := a.AverageQuality()
	qb, okB := b.AverageQuality()
	if !okA || !okB {
		return 0
	}
	return strictlyGreater(qa, qb)
}

// ArgumentStance prefers an item taking a stance on the compared objects over a neutral one.
type ArgumentStance struct{}

// Preference implements Axiom.
func (ArgumentStance) Preference(rc rerankctx.Context, q model.Query, a, b model.RankedItem) float64 {
	if !q.Comparative() || !approximatelySameLength(rc, a, b) {
		return 0
	}
	sa, okA := a.AverageStance()
	sb, okB := b.AverageStance()
	if !okA || !okB {
		return 0
	}
	switch {
	case sa != 0 && sb == 0:
		return 1
	case sb != 0 && sa == 0:
		return -1
	default:
		return 0
	}
}

func bothArgumentative(rc rerankctx.Context, a, b model.RankedItem) bool {
	return a.HasArguments() && b.HasArguments() && approximatelySameLength(rc, a, b)
}

// sumArguments adds up count over the sentences of every tagger model.
func sumArguments(item model.RankedItem, count func(model.ArgumentSentences) int) int {
	total := 0
	for _, sentences := range item.Arguments {
		total += count(sentences)
	}
	return total
}

func countArguments(sentences model.ArgumentSentences) int {
	return countClaims(sentences) + countPremises(sentences)
}

func countPremises(sentences model.ArgumentSentences) int {
	count := 0
	for _, sentence := range sentences {
		for _, tag := range sentence {
			if tag.Label == model.LabelPremiseBegin && tag.Probability > minTagProbability {
				count++
			}
		}
	}
	return count
}

// countClaims counts runs of confident claim tokens. A run may span sentences.
func countClaims(sentences model.ArgumentSentences) int {
	inClaim := false
	count := 0
	for _, sentence := range sentences {
		for _, tag := range sentence {
			claim := tag.Label.IsClaim()
			switch {
			case !inClaim && claim && tag.Probability > minTagProbability:
				inClaim = true
				count++
			case inClaim && !claim:
				inClaim = false
			}
		}
	}
	return count
}

func countTerms(rc rerankctx.Context, sentences model.ArgumentSentences, terms []string) int {
	count := 0
	for _, term := range terms {
		for _, sentence := range sentences {
			for _, tag := range sentence {
				if (tag.Label.IsClaim() || tag.Label.IsPremise()) &&
					tag.Probability > minTagProbability &&
					normalizeToken(rc, tag.Token) == term {
					count++
				}
			}
		}
	}
	return count
}

// termPosition returns the mean 1-based token position of the first argumentative
// occurrence of each term.
func termPosition(rc rerankctx.Context, sentences model.ArgumentSentences, terms []string) float64 {
	var tags []model.ArgumentTag
	for _, sentence := range sentences {
		tags = append(tags, sentence...)
	}

	positions := make([]float64, 0, len(terms))
	for _, term := range terms {
		position := float64(missingTermPosition)
		for i, tag := range tags {
			if tag.Label != model.LabelOther &&
				tag.Probability > minTagProbability &&
				normalizeToken(rc, tag.Token) == term {
				position = float64(i + 1)
				break
			}
		}
		positions = append(positions, position)
	}
	return mean(positions)
}

func meanTermPosition(rc rerankctx.Context, item model.RankedItem, terms []string) float64 {
	positions := make([]float64, 0, len(item.Arguments))
	for _, sentences := range item.Arguments {
		positions = append(positions, termPosition(rc, sentences, terms))
	}
	return mean(positions)
}

// normalizeToken maps a tagged token to an index term, or "" for stopwords.
func normalizeToken(rc rerankctx.Context, token string) string {
	terms := rc.Terms(token)
	if len(terms) == 0 {
		return ""
	}
	return terms[0]
}

func objectTerms(rc rerankctx.Context, q model.Query) []string {
	if !q.Comparative() {
		return nil
	}
	var terms []string
	terms = append(terms, rc.Terms(q.Objects.First)...)
	terms = append(terms, rc.Terms(q.Objects.Second)...)
	return terms
}

func averageSentenceLength(text string) float64 {
	sentences := analysis.SplitSentences(text)
	lengths := make([]float64, len(sentences))
	for i, s := range sentences {
		lengths[i] = float64(analysis.CountWords(s))
	}
	return mean(lengths)
}

func goodSentenceLength(length float64) bool {
	return length >= minSentenceLength && length <= maxSentenceLength
}
