// Package repository defines data access interfaces for passages and cached sentence scores.
package repository

import (
	"context"
	"errors"

	"github.com/knoguchi/comparank/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ScoreKind names the scorer a cached sentence score came from.
type ScoreKind string

const (
	ScoreQuality ScoreKind = "quality"
	ScoreStance  ScoreKind = "stance"
)

// PassageRepository defines operations for passage persistence
type PassageRepository interface {
	// Upsert inserts passages or replaces them by id.
	Upsert(ctx context.Context, docs []model.Document) error
	Get(ctx context.Context, id string) (model.Document, error)
	// GetMany returns the passages found for ids. Missing ids are skipped.
	GetMany(ctx context.Context, ids []string) (map[string]model.Document, error)
	// Each calls fn for every stored passage in id order.
	Each(ctx context.Context, fn func(model.Document) error) error
	Count(ctx context.Context) (int, error)
}

// ScoreRepository persists sentence scores per scorer and topic so that scoring APIs are
// called at most once per sentence.
type ScoreRepository interface {
	// GetScores returns the stored scores of sentences. Unknown sentences are absent.
	GetScores(ctx context.Context, kind ScoreKind, topic string, sentences []string) (map[string]float64, error)
	PutScores(ctx context.Context, kind ScoreKind, topic string, scores map[string]float64) error
}
