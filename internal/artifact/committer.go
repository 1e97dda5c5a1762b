// Package artifact performs the final write of an ingestion run.
package artifact

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"recipe-ingest-service/internal/apperr"
	"recipe-ingest-service/internal/entity"
	"recipe-ingest-service/internal/events"
)

// RecipeStore is implemented by postgresql.RecipeRepository. Commit must
// insert the recipe, its embedding and complete the job atomically.
type RecipeStore interface {
	Commit(ctx context.Context, jobID, sourceID uuid.UUID, rec entity.StructuredRecipe, embeddingType string, vector []float32) (uuid.UUID, error)
}

type Committer struct {
	store          RecipeStore
	publisher      events.Publisher
	publishTimeout time.Duration
	logger         *slog.Logger
}

func NewCommitter(store RecipeStore, publisher events.Publisher) *Committer {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Committer{
		store:          store,
		publisher:      publisher,
		publishTimeout: 5 * time.Second,
		logger:         slog.Default().With("component", "committer"),
	}
}

// Commit normalizes rec and stores it with its embedding. It never retries;
// every failure is a CommitError and leaves nothing behind.
func (c *Committer) Commit(ctx context.Context, jobID, sourceID uuid.UUID, rec entity.StructuredRecipe, vector []float32) (uuid.UUID, error) {
	if len(vector) == 0 {
		return uuid.Nil, apperr.New(apperr.CommitError, "recipe has no embedding")
	}
	norm := rec.Normalized()

	recipeID, err := c.store.Commit(ctx, jobID, sourceID, norm, entity.EmbeddingTypeRecipe, vector)
	if err != nil {
		c.logger.Error("recipe commit failed", "job_id", jobID, "source_id", sourceID, "error", err)
		return uuid.Nil, apperr.Wrap(apperr.CommitError, "could not store recipe", err)
	}
	c.logger.Info("recipe committed", "job_id", jobID, "recipe_id", recipeID, "ingredients", len(norm.Ingredients))

	c.publish(ctx, events.RecipeCommitted{
		RecipeID:    recipeID,
		SourceID:    sourceID,
		JobID:       jobID,
		Name:        norm.Name,
		Tags:        norm.Tags,
		CommittedAt: time.Now().UTC(),
	})
	return recipeID, nil
}

func (c *Committer) publish(ctx context.Context, e events.RecipeCommitted) {
	ctx, cancel := context.WithTimeout(ctx, c.publishTimeout)
	defer cancel()
	if err := c.publisher.PublishRecipeCommitted(ctx, e); err != nil {
		c.logger.Warn("recipe event not published", "recipe_id", e.RecipeID, "error", err)
	}
}
