package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/knoguchi/comparank/internal/repository"
)

// ScoreRepo implements repository.ScoreRepository
type ScoreRepo struct {
	db *DB
}

// NewScoreRepo creates a new sentence score repository
func NewScoreRepo(db *DB) *ScoreRepo {
	return &ScoreRepo{db: db}
}

// GetScores retrieves the stored scores for sentences of a topic
func (r *ScoreRepo) GetScores(ctx context.Context, kind repository.ScoreKind, topic string, sentences []string) (map[string]float64, error) {
	scores := make(map[string]float64, len(sentences))
	if len(sentences) == 0 {
		return scores, nil
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT sentence, score
		FROM sentence_scores
		WHERE kind = $1 AND topic = $2 AND sentence = ANY($3)
	`, string(kind), topic, sentences)
	if err != nil {
		return nil, fmt.Errorf("failed to get scores: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sentence string
		var score float64
		if err := rows.Scan(&sentence, &score); err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		scores[sentence] = score
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read scores: %w", err)
	}
	return scores, nil
}

// PutScores stores sentence scores, overwriting existing ones
func (r *ScoreRepo) PutScores(ctx context.Context, kind repository.ScoreKind, topic string, scores map[string]float64) error {
	if len(scores) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for sentence, score := range scores {
		batch.Queue(`
			INSERT INTO sentence_scores (kind, topic, sentence, score)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (kind, topic, sentence) DO UPDATE SET score = EXCLUDED.score
		`, string(kind), topic, sentence, score)
	}

	results := r.db.Pool.SendBatch(ctx, batch)
	defer results.Close()

	for range scores {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to store score: %w", err)
		}
	}
	return nil
}

// Ensure ScoreRepo implements the interface
var _ repository.ScoreRepository = (*ScoreRepo)(nil)
