// Package ai declares the language-model capabilities the pipeline consumes.
// Implementations classify their failures with apperr kinds.
package ai

import (
	"context"

	"recipe-ingest-service/internal/entity"
)

// Structurer turns free text into a recipe.
// Failures are apperr.Rejected (text is not a recipe), apperr.MalformedOutput
// (the model answered with something that does not decode) or
// apperr.InvocationError (provider or transport failure).
type Structurer interface {
	Structure(ctx context.Context, text string) (*entity.StructuredRecipe, error)
}

// Embedder produces a fixed-dimension vector for text.
// Failures are apperr.InvocationError.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}
