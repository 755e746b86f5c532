// Package model defines the queries, documents and ranked items that flow through retrieval,
// tagging and re-ranking.
package model

import (
	"errors"
	"fmt"
)

// ErrDuplicateID is returned when a ranking contains the same item id twice.
var ErrDuplicateID = errors.New("duplicate item id")

// ComparativeObjects holds the two objects a comparative query compares ("laptop vs desktop").
type ComparativeObjects struct {
	First  string `json:"first"`
	Second string `json:"second"`
}

// Query is a search topic.
type Query struct {
	ID          int                 `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	Narrative   string              `json:"narrative,omitempty"`
	Objects     *ComparativeObjects `json:"objects,omitempty"`
}

// Comparative reports whether the query names a pair of comparative objects.
func (q Query) Comparative() bool {
	return q.Objects != nil
}

// Document is a retrievable passage.
type Document struct {
	ID      string            `json:"id"`
	Content string            `json:"content"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// RankedItem is one retrieved, scored result. Optional annotations are carried in the embedded
// Annotations value; a nil annotation slice or map means the item was never tagged.
type RankedItem struct {
	Document
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
	Annotations
}

// Ranking is an ordered list of ranked items.
type Ranking []RankedItem

// IDs returns the item ids in ranking order.
func (r Ranking) IDs() []string {
	ids := make([]string, len(r))
	for i, item := range r {
		ids[i] = item.ID
	}
	return ids
}

// Clone returns a shallow copy of the ranking. Annotations are shared, items are not.
func (r Ranking) Clone() Ranking {
	if r == nil {
		return nil
	}
	clone := make(Ranking, len(r))
	copy(clone, r)
	return clone
}

// Validate checks that every id in the ranking is unique.
func (r Ranking) Validate() error {
	seen := make(map[string]struct{}, len(r))
	for _, item := range r {
		if _, ok := seen[item.ID]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateID, item.ID)
		}
		seen[item.ID] = struct{}{}
	}
	return nil
}
