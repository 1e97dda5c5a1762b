// Package app wires the service's components from configuration. Each
// binary builds one App and takes the parts it needs.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"recipe-ingest-service/internal/ai/openai"
	"recipe-ingest-service/internal/artifact"
	"recipe-ingest-service/internal/config"
	"recipe-ingest-service/internal/entity"
	"recipe-ingest-service/internal/events"
	"recipe-ingest-service/internal/metrics"
	"recipe-ingest-service/internal/pipeline"
	"recipe-ingest-service/internal/registry"
	"recipe-ingest-service/internal/repository/postgresql"
	"recipe-ingest-service/internal/search"
	"recipe-ingest-service/internal/service"
	"recipe-ingest-service/internal/video"
)

type App struct {
	Config  *config.Config
	Metrics *metrics.Metrics
	DB      *pgxpool.Pool
	// Redis is nil when no address is configured.
	Redis *redis.Client

	Sources *postgresql.SourceRepository
	Jobs    *postgresql.JobRepository
	Recipes *postgresql.RecipeRepository
	Content *postgresql.ContentRepository

	Publisher events.Publisher
	Registry  *registry.Registry
	Executor  *pipeline.Executor
	Search    *search.Service

	logger *slog.Logger
}

// New connects to PostgreSQL (and Redis when configured), applies the schema
// and builds every component. Close releases what New opened.
func New(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*App, error) {
	a := &App{
		Config:  cfg,
		Metrics: m,
		logger:  slog.Default().With("component", "app"),
	}

	db, err := postgresql.NewPool(ctx, cfg.Postgres.DSN, postgresql.PoolOptions{MaxConns: cfg.Postgres.MaxConns})
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	a.DB = db
	if err := postgresql.Migrate(ctx, db, cfg.AI.Dimensions); err != nil {
		a.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	if cfg.Redis.Addr != "" {
		a.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
	}

	a.Sources = postgresql.NewSourceRepository(db)
	a.Jobs = postgresql.NewJobRepository(db)
	a.Recipes = postgresql.NewRecipeRepository(db)
	a.Content = postgresql.NewContentRepository(db)

	a.Publisher = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		a.Publisher = events.NewKafkaPublisher(cfg.Kafka)
	}

	checker := video.NewOEmbedChecker(cfg.Video.OEmbedURL, cfg.Video.Timeout)
	a.Registry = registry.New(a.Sources, a.Jobs, checker,
		registry.WithValidator(entity.KindYouTube, video.ParseYouTubeRef),
		registry.WithMetrics(m),
		registry.WithStaleAfter(cfg.Pipeline.StaleAfter),
	)

	structurer, err := openai.NewStructurer(cfg.AI)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("structurer: %w", err)
	}
	embedder, err := openai.NewEmbedder(cfg.AI)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("embedder: %w", err)
	}

	caps := pipeline.Capabilities{
		Extractors: map[entity.SourceKind]pipeline.Extractor{
			entity.KindYouTube: video.NewTranscriptClient(cfg.Video.TranscriptBaseURL, cfg.Video.Timeout),
		},
		Structurer: structurer,
		Embedder:   embedder,
	}
	a.Executor, err = pipeline.NewExecutor(a.Jobs, a.Sources, a.Content,
		artifact.NewCommitter(a.Recipes, a.Publisher), caps,
		pipeline.WithStepTimeout(cfg.Pipeline.StepTimeout),
		pipeline.WithMetrics(m),
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("executor: %w", err)
	}

	searchOpts := []search.Option{search.WithMetrics(m)}
	if a.Redis != nil {
		searchOpts = append(searchOpts, search.WithCache(search.NewRedisCache(a.Redis, cfg.Search.CacheTTL)))
	}
	a.Search = search.NewService(a.Recipes, embedder, search.NewRanker(cfg.Search.Weights), searchOpts...)

	return a, nil
}

// Queue returns the Redis job queue, or nil without Redis.
func (a *App) Queue() service.Queue {
	if a.Redis == nil {
		return nil
	}
	r := a.Config.Redis
	low, normal, high := service.Lanes(r.QueueKey, r.ProcessingKey)
	return service.NewRedisPriorityQueue(a.Redis, r.ProcessingMapKey, low, normal, high)
}

// EventBus returns the Redis event bus, or nil without Redis.
func (a *App) EventBus() service.EventBus {
	if a.Redis == nil {
		return nil
	}
	return service.NewRedisEventBus(a.Redis, a.Config.Redis.EventsPrefix)
}

func (a *App) Close() {
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			a.logger.Warn("close publisher", "error", err)
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.logger.Warn("close redis", "error", err)
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
