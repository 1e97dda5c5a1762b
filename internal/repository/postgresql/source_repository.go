package postgresql

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"recipe-ingest-service/internal/entity"
)

type SourceRepository struct {
	pool *pgxpool.Pool
}

func NewSourceRepository(pool *pgxpool.Pool) *SourceRepository {
	return &SourceRepository{pool: pool}
}

// Create inserts a source. A duplicate (external_ref, kind) returns ErrConflict.
func (r *SourceRepository) Create(ctx context.Context, externalRef string, kind entity.SourceKind, metadata json.RawMessage) (*entity.Source, error) {
	const q = `
INSERT INTO sources (external_ref, kind, metadata)
VALUES ($1, $2, $3)
RETURNING id, created_at;
`
	var meta []byte
	if len(metadata) > 0 {
		meta = metadata
	}

	src := entity.Source{ExternalRef: externalRef, Kind: kind, Metadata: metadata}
	if err := r.pool.QueryRow(ctx, q, externalRef, string(kind), meta).Scan(&src.ID, &src.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, err
	}
	return &src, nil
}

func (r *SourceRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Source, error) {
	const q = `
SELECT id, external_ref, kind, metadata, created_at
FROM sources
WHERE id = $1;
`
	return scanSource(r.pool.QueryRow(ctx, q, id))
}

func (r *SourceRepository) FindByRef(ctx context.Context, externalRef string, kind entity.SourceKind) (*entity.Source, error) {
	const q = `
SELECT id, external_ref, kind, metadata, created_at
FROM sources
WHERE external_ref = $1 AND kind = $2;
`
	return scanSource(r.pool.QueryRow(ctx, q, externalRef, string(kind)))
}

// FindRecipeIDByRef returns the committed recipe for (externalRef, kind).
func (r *SourceRepository) FindRecipeIDByRef(ctx context.Context, externalRef string, kind entity.SourceKind) (uuid.UUID, error) {
	const q = `
SELECT r.id
FROM recipes r
JOIN sources s ON s.id = r.source_id
WHERE s.external_ref = $1 AND s.kind = $2;
`
	var id uuid.UUID
	if err := r.pool.QueryRow(ctx, q, externalRef, string(kind)).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrNotFound
		}
		return uuid.Nil, err
	}
	return id, nil
}

// DeleteFailed removes a source whose job ended in failed, together with the
// job, its steps and content items. A source in any other state is left alone
// and ErrNotFound is returned.
func (r *SourceRepository) DeleteFailed(ctx context.Context, id uuid.UUID) error {
	const q = `
DELETE FROM sources s
WHERE s.id = $1
  AND EXISTS (SELECT 1 FROM jobs j WHERE j.source_id = s.id AND j.status = 'failed')
  AND NOT EXISTS (SELECT 1 FROM recipes r WHERE r.source_id = s.id);
`
	tag, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanSource(row pgx.Row) (*entity.Source, error) {
	var (
		src      entity.Source
		kindText string
		meta     []byte
	)
	if err := row.Scan(&src.ID, &src.ExternalRef, &kindText, &meta, &src.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	src.Kind = entity.SourceKind(kindText)
	if meta != nil {
		src.Metadata = json.RawMessage(meta)
	}
	return &src, nil
}
