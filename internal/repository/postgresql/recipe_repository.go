package postgresql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"recipe-ingest-service/internal/entity"
	"recipe-ingest-service/internal/search"
)

type RecipeRepository struct {
	pool *pgxpool.Pool
}

func NewRecipeRepository(pool *pgxpool.Pool) *RecipeRepository {
	return &RecipeRepository{pool: pool}
}

// Commit writes the recipe, its embedding and the job's completion in one
// transaction. The recipe must already be normalized.
func (r *RecipeRepository) Commit(
	ctx context.Context,
	jobID, sourceID uuid.UUID,
	rec entity.StructuredRecipe,
	embeddingType string,
	vector []float32,
) (uuid.UUID, error) {
	const insertRecipe = `
INSERT INTO recipes (source_id, name, instructions, ingredients, ingredients_text, tags)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id;
`
	const insertEmbedding = `
INSERT INTO recipe_embeddings (recipe_id, type, embedding)
VALUES ($1, $2, $3);
`
	ingredients, err := json.Marshal(rec.Ingredients)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal ingredients: %w", err)
	}
	tags := rec.Tags
	if tags == nil {
		tags = []string{}
	}

	var recipeID uuid.UUID
	err = pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, insertRecipe,
			sourceID, rec.Name, rec.Instructions, ingredients, rec.IngredientsText(), tags,
		).Scan(&recipeID); err != nil {
			return fmt.Errorf("insert recipe: %w", err)
		}
		if _, err := tx.Exec(ctx, insertEmbedding, recipeID, embeddingType, pgvector.NewVector(vector)); err != nil {
			return fmt.Errorf("insert embedding: %w", err)
		}
		if err := markJobCompleted(ctx, tx, jobID); err != nil {
			return fmt.Errorf("complete job: %w", err)
		}
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return uuid.Nil, fmt.Errorf("%w: %w", ErrConflict, err)
		}
		return uuid.Nil, err
	}
	return recipeID, nil
}

const selectRecipe = `
SELECT id, source_id, name, instructions, ingredients, tags, created_at
FROM recipes
`

func (r *RecipeRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Recipe, error) {
	rec, err := scanRecipe(r.pool.QueryRow(ctx, selectRecipe+`WHERE id = $1;`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

func (r *RecipeRepository) GetBySource(ctx context.Context, sourceID uuid.UUID) (*entity.Recipe, error) {
	rec, err := scanRecipe(r.pool.QueryRow(ctx, selectRecipe+`WHERE source_id = $1;`, sourceID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// GetEmbedding returns the stored embedding of a recipe.
func (r *RecipeRepository) GetEmbedding(ctx context.Context, recipeID uuid.UUID) (*entity.Embedding, error) {
	const q = `
SELECT id, recipe_id, type, embedding
FROM recipe_embeddings
WHERE recipe_id = $1;
`
	var (
		emb entity.Embedding
		vec pgvector.Vector
	)
	if err := r.pool.QueryRow(ctx, q, recipeID).Scan(&emb.ID, &emb.RecipeID, &emb.Type, &vec); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	emb.Vector = vec.Slice()
	return &emb, nil
}

// Candidates scores every committed recipe against the query and returns the
// best q.Limit by weighted score. Similarity is cosine similarity in [-1, 1];
// keyword score is ts_rank over name, tags and ingredients weighted by label.
func (r *RecipeRepository) Candidates(ctx context.Context, q search.CandidateQuery) ([]entity.RecipeMatch, error) {
	const sql = `
SELECT id, source_id, name, instructions, ingredients, tags, created_at, similarity, keyword_score
FROM (
	SELECT r.id, r.source_id, r.name, r.instructions, r.ingredients, r.tags, r.created_at,
		(1 - (e.embedding <=> $1::vector))::float8 AS similarity,
		ts_rank(
			setweight(to_tsvector('english', r.name), $3::text::"char") ||
			setweight(to_tsvector('english', array_to_string(r.tags, ' ')), $4::text::"char") ||
			setweight(to_tsvector('english', r.ingredients_text), $5::text::"char"),
			websearch_to_tsquery('english', $2)
		)::float8 AS keyword_score
	FROM recipes r
	JOIN recipe_embeddings e ON e.recipe_id = r.id
) c
ORDER BY $6::float8 * similarity + $7::float8 * keyword_score DESC, id
LIMIT $8;
`
	w := q.Weights
	rows, err := r.pool.Query(ctx, sql,
		pgvector.NewVector(q.Vector), q.Text,
		w.Name, w.Tags, w.Ingredients,
		w.Semantic, w.Keyword,
		q.Limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entity.RecipeMatch
	for rows.Next() {
		var (
			m           entity.RecipeMatch
			ingredients []byte
		)
		if err := rows.Scan(
			&m.Recipe.ID, &m.Recipe.SourceID, &m.Recipe.Name, &m.Recipe.Instructions,
			&ingredients, &m.Recipe.Tags, &m.Recipe.CreatedAt,
			&m.Similarity, &m.KeywordScore,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(ingredients, &m.Recipe.Ingredients); err != nil {
			return nil, fmt.Errorf("decode ingredients of %s: %w", m.Recipe.ID, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanRecipe(row pgx.Row) (*entity.Recipe, error) {
	var (
		rec         entity.Recipe
		ingredients []byte
	)
	if err := row.Scan(&rec.ID, &rec.SourceID, &rec.Name, &rec.Instructions, &ingredients, &rec.Tags, &rec.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(ingredients, &rec.Ingredients); err != nil {
		return nil, fmt.Errorf("decode ingredients: %w", err)
	}
	return &rec, nil
}
