// Package analysis turns text into index terms and sentences.
package analysis

import (
	"strings"
	"unicode"

	"github.com/kljensen/snowball/english"
)

// lucene's default English stop set, which is what the index was built with
var defaultStopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "but": {}, "by": {},
	"for": {}, "if": {}, "in": {}, "into": {}, "is": {}, "it": {}, "no": {}, "not": {}, "of": {},
	"on": {}, "or": {}, "such": {}, "that": {}, "the": {}, "their": {}, "then": {}, "there": {},
	"these": {}, "they": {}, "this": {}, "to": {}, "was": {}, "will": {}, "with": {},
}

// Analyzer tokenizes, filters and stems text.
type Analyzer struct {
	stem      bool
	stopwords map[string]struct{}
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithoutStemming disables Porter2 stemming.
func WithoutStemming() Option {
	return func(a *Analyzer) {
		a.stem = false
	}
}

// WithStopwords replaces the stopword list. An empty list keeps all tokens.
func WithStopwords(words []string) Option {
	return func(a *Analyzer) {
		a.stopwords = make(map[string]struct{}, len(words))
		for _, w := range words {
			a.stopwords[strings.ToLower(w)] = struct{}{}
		}
	}
}

// NewAnalyzer creates an English analyzer with stemming and the default stopword list.
func NewAnalyzer(opts ...Option) *Analyzer {
	a := &Analyzer{
		stem:      true,
		stopwords: defaultStopwords,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Tokenize lowercases text and splits it on anything that is not a letter or digit.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Terms returns the analyzed terms of text in order, duplicates included.
func (a *Analyzer) Terms(text string) []string {
	tokens := Tokenize(text)
	terms := tokens[:0]
	for _, token := range tokens {
		if _, stop := a.stopwords[token]; stop {
			continue
		}
		terms = append(terms, a.Normalize(token))
	}
	return terms
}

// Normalize maps a single lowercase token to its index form.
func (a *Analyzer) Normalize(token string) string {
	token = strings.ToLower(token)
	if !a.stem {
		return token
	}
	return english.Stem(token, false)
}
