package postgresql

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"recipe-ingest-service/internal/entity"
)

type ContentRepository struct {
	pool *pgxpool.Pool
}

func NewContentRepository(pool *pgxpool.Pool) *ContentRepository {
	return &ContentRepository{pool: pool}
}

// Save stores an intermediate artifact produced by a step.
func (r *ContentRepository) Save(ctx context.Context, sourceID uuid.UUID, stepID *uuid.UUID, kind, body string) (*entity.ContentItem, error) {
	const q = `
INSERT INTO content_items (source_id, step_id, kind, body)
VALUES ($1, $2, $3, $4)
RETURNING id, created_at;
`
	item := entity.ContentItem{SourceID: sourceID, StepID: stepID, Kind: kind, Body: body}
	if err := r.pool.QueryRow(ctx, q, sourceID, stepID, kind, body).Scan(&item.ID, &item.CreatedAt); err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *ContentRepository) ListBySource(ctx context.Context, sourceID uuid.UUID) ([]entity.ContentItem, error) {
	const q = `
SELECT id, source_id, step_id, kind, body, created_at
FROM content_items
WHERE source_id = $1
ORDER BY created_at, id;
`
	rows, err := r.pool.Query(ctx, q, sourceID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.ContentItem, error) {
		var it entity.ContentItem
		err := row.Scan(&it.ID, &it.SourceID, &it.StepID, &it.Kind, &it.Body, &it.CreatedAt)
		return it, err
	})
}
