package postgresql

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaTemplate = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS sources (
	id           uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	external_ref text NOT NULL,
	kind         text NOT NULL,
	metadata     jsonb,
	created_at   timestamptz NOT NULL DEFAULT now(),
	UNIQUE (external_ref, kind)
);

CREATE TABLE IF NOT EXISTS jobs (
	id            uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	source_id     uuid NOT NULL UNIQUE REFERENCES sources(id) ON DELETE CASCADE,
	status        text NOT NULL DEFAULT 'created',
	error_kind    text,
	error_message text,
	created_at    timestamptz NOT NULL DEFAULT now(),
	started_at    timestamptz,
	completed_at  timestamptz
);

CREATE INDEX IF NOT EXISTS jobs_status_started_idx ON jobs (status, started_at);

CREATE TABLE IF NOT EXISTS job_steps (
	id            uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	job_id        uuid NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
	type          text NOT NULL,
	step_order    int  NOT NULL,
	status        text NOT NULL DEFAULT 'created',
	error_message text,
	started_at    timestamptz,
	completed_at  timestamptz,
	UNIQUE (job_id, step_order)
);

CREATE TABLE IF NOT EXISTS content_items (
	id         uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	source_id  uuid NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
	step_id    uuid REFERENCES job_steps(id) ON DELETE SET NULL,
	kind       text NOT NULL,
	body       text NOT NULL,
	created_at timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS recipes (
	id               uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	source_id        uuid NOT NULL UNIQUE REFERENCES sources(id),
	name             text NOT NULL,
	instructions     text NOT NULL,
	ingredients      jsonb NOT NULL,
	ingredients_text text NOT NULL,
	tags             text[] NOT NULL DEFAULT '{}',
	created_at       timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS recipe_embeddings (
	id        uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	recipe_id uuid NOT NULL UNIQUE REFERENCES recipes(id) ON DELETE CASCADE,
	type      text NOT NULL,
	embedding vector(%d) NOT NULL
);
`

// Migrate creates the schema if it does not exist. It is safe to run on every start.
func Migrate(ctx context.Context, pool *pgxpool.Pool, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("embedding dimensions must be positive, got %d", dimensions)
	}
	ddl := fmt.Sprintf(schemaTemplate, dimensions)
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
		return nil
	})
}
