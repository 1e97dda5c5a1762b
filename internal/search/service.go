package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"recipe-ingest-service/internal/ai"
	"recipe-ingest-service/internal/apperr"
	"recipe-ingest-service/internal/entity"
	"recipe-ingest-service/internal/metrics"
)

const (
	DefaultLimit = 10
	MaxLimit     = 50
)

type CandidateStore interface {
	Candidates(ctx context.Context, q CandidateQuery) ([]entity.RecipeMatch, error)
}

// ResultCache memoizes ranked results. Implementations must treat their own
// failures as misses.
type ResultCache interface {
	GetOrCompute(ctx context.Context, query string, limit int, compute func(ctx context.Context) ([]entity.RecipeMatch, error)) ([]entity.RecipeMatch, bool, error)
}

type Service struct {
	store    CandidateStore
	embedder ai.Embedder
	ranker   *Ranker
	cache    ResultCache
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

type Option func(*Service)

func WithCache(c ResultCache) Option {
	return func(s *Service) { s.cache = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewService(store CandidateStore, embedder ai.Embedder, ranker *Ranker, opts ...Option) *Service {
	s := &Service{
		store:    store,
		embedder: embedder,
		ranker:   ranker,
		logger:   slog.Default().With("component", "search"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search returns up to limit committed recipes ordered by hybrid score.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]entity.RecipeMatch, error) {
	query = normalizeQuery(query)
	if query == "" {
		return nil, apperr.New(apperr.ValidationError, "query must not be empty")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	start := time.Now()
	compute := func(ctx context.Context) ([]entity.RecipeMatch, error) {
		return s.rank(ctx, query, limit)
	}

	if s.cache == nil {
		res, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		s.metrics.ObserveSearch("disabled", time.Since(start), len(res))
		return res, nil
	}

	res, hit, err := s.cache.GetOrCompute(ctx, query, limit, compute)
	if err != nil {
		return nil, err
	}
	status := "miss"
	if hit {
		status = "hit"
	}
	s.metrics.ObserveSearch(status, time.Since(start), len(res))
	return res, nil
}

func (s *Service) rank(ctx context.Context, query string, limit int) ([]entity.RecipeMatch, error) {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	candidates, err := s.store.Candidates(ctx, CandidateQuery{
		Text:    query,
		Vector:  vec,
		Weights: s.ranker.Weights(),
		Limit:   limit,
	})
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}

	ranked := s.ranker.Rank(candidates)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	s.logger.Debug("search ranked", "query_len", len(query), "candidates", len(candidates), "returned", len(ranked))
	return ranked, nil
}

// normalizeQuery lower-cases the query and collapses whitespace. Both the
// cache key and the ranking see the same text.
func normalizeQuery(q string) string {
	return strings.ToLower(strings.Join(strings.Fields(q), " "))
}
