package postgres

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/knoguchi/comparank/internal/model"
	"github.com/knoguchi/comparank/internal/repository"
)

// PassageRepo implements repository.PassageRepository
type PassageRepo struct {
	db *DB
}

// NewPassageRepo creates a new passage repository
func NewPassageRepo(db *DB) *PassageRepo {
	return &PassageRepo{db: db}
}

// Upsert inserts or replaces passages in one batch
func (r *PassageRepo) Upsert(ctx context.Context, docs []model.Document) error {
	if len(docs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, doc := range docs {
		fieldsJSON, err := marshalFields(doc.Fields)
		if err != nil {
			return err
		}
		batch.Queue(`
			INSERT INTO passages (id, content, fields, content_hash)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE
			SET content = EXCLUDED.content, fields = EXCLUDED.fields,
			    content_hash = EXCLUDED.content_hash, updated_at = NOW()
		`, doc.ID, doc.Content, fieldsJSON, contentHash(doc.Content))
	}

	results := r.db.Pool.SendBatch(ctx, batch)
	defer results.Close()

	for _, doc := range docs {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to upsert passage %s: %w", doc.ID, err)
		}
	}
	return nil
}

// Get retrieves a passage by id
func (r *PassageRepo) Get(ctx context.Context, id string) (model.Document, error) {
	var doc model.Document
	var fieldsJSON []byte

	err := r.db.Pool.QueryRow(ctx, `SELECT id, content, fields FROM passages WHERE id = $1`, id).
		Scan(&doc.ID, &doc.Content, &fieldsJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Document{}, repository.ErrNotFound
		}
		return model.Document{}, fmt.Errorf("failed to get passage: %w", err)
	}

	if doc.Fields, err = unmarshalFields(fieldsJSON); err != nil {
		return model.Document{}, err
	}
	return doc, nil
}

// GetMany retrieves the passages with the given ids
func (r *PassageRepo) GetMany(ctx context.Context, ids []string) (map[string]model.Document, error) {
	docs := make(map[string]model.Document, len(ids))
	if len(ids) == 0 {
		return docs, nil
	}

	rows, err := r.db.Pool.Query(ctx, `SELECT id, content, fields FROM passages WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get passages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		doc, err := scanPassage(rows)
		if err != nil {
			return nil, err
		}
		docs[doc.ID] = doc
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read passages: %w", err)
	}
	return docs, nil
}

// Each streams every passage ordered by id
func (r *PassageRepo) Each(ctx context.Context, fn func(model.Document) error) error {
	rows, err := r.db.Pool.Query(ctx, `SELECT id, content, fields FROM passages ORDER BY id`)
	if err != nil {
		return fmt.Errorf("failed to list passages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		doc, err := scanPassage(rows)
		if err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read passages: %w", err)
	}
	return nil
}

// Count returns the number of stored passages
func (r *PassageRepo) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM passages`).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count passages: %w", err)
	}
	return total, nil
}

func scanPassage(rows pgx.Rows) (model.Document, error) {
	var doc model.Document
	var fieldsJSON []byte
	if err := rows.Scan(&doc.ID, &doc.Content, &fieldsJSON); err != nil {
		return model.Document{}, fmt.Errorf("failed to scan passage: %w", err)
	}
	fields, err := unmarshalFields(fieldsJSON)
	if err != nil {
		return model.Document{}, err
	}
	doc.Fields = fields
	return doc, nil
}

func marshalFields(fields map[string]string) ([]byte, error) {
	if fields == nil {
		fields = map[string]string{}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal fields: %w", err)
	}
	return data, nil
}

func unmarshalFields(data []byte) (map[string]string, error) {
	fields := make(map[string]string)
	if len(data) == 0 {
		return fields, nil
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to unmarshal fields: %w", err)
	}
	return fields, nil
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Ensure PassageRepo implements the interface
var _ repository.PassageRepository = (*PassageRepo)(nil)
