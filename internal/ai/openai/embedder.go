package openai

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tmc/langchaingo/embeddings"

	"recipe-ingest-service/internal/ai"
	"recipe-ingest-service/internal/apperr"
)

// Embedder implements ai.Embedder and checks every vector has the
// configured dimension.
type Embedder struct {
	embedder   embeddings.Embedder
	dimensions int
	logger     *slog.Logger
}

var _ ai.Embedder = (*Embedder)(nil)

func NewEmbedder(cfg ai.Config) (*Embedder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := newClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create embedding client: %w", err)
	}
	emb, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return newEmbedder(emb, cfg.Dimensions), nil
}

func newEmbedder(e embeddings.Embedder, dimensions int) *Embedder {
	return &Embedder{
		embedder:   e,
		dimensions: dimensions,
		logger:     slog.Default().With("component", "openai-embedder"),
	}
}

func (e *Embedder) Dimensions() int {
	return e.dimensions
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vectors, err := e.embedder.EmbedDocuments(ctx, []string{text})
	if err != nil {
		e.logger.Warn("embedding failed", "text_len", len(text), "duration_ms", time.Since(start).Milliseconds(), "error", err)
		return nil, apperr.Wrap(apperr.InvocationError, "embedding call failed", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, apperr.New(apperr.InvocationError, "embedding provider returned no vector")
	}
	if got := len(vectors[0]); got != e.dimensions {
		return nil, apperr.Newf(apperr.InvocationError, "embedding has %d dimensions, expected %d", got, e.dimensions)
	}
	e.logger.Debug("text embedded", "text_len", len(text), "duration_ms", time.Since(start).Milliseconds())
	return vectors[0], nil
}
