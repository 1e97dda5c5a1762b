package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"recipe-ingest-service/internal/entity"
	"recipe-ingest-service/internal/pipeline"
	"recipe-ingest-service/internal/repository/postgresql"
	"recipe-ingest-service/internal/service"
)

type JobLoader interface {
	GetJob(ctx context.Context, id uuid.UUID) (*entity.Job, error)
}

// Processor runs one queued job id through the pipeline executor.
type Processor struct {
	jobs   JobLoader
	runner service.Runner
	bus    service.EventBus
	logger *slog.Logger
}

// NewProcessor wires a processor. bus may be nil, in which case runs are not
// observable from other processes.
func NewProcessor(jobs JobLoader, runner service.Runner, bus service.EventBus) *Processor {
	return &Processor{
		jobs:   jobs,
		runner: runner,
		bus:    bus,
		logger: slog.Default().With("component", "processor"),
	}
}

// Process returns nil for ids that need no work: unknown jobs and jobs that
// already left the created status, which is how requeued duplicates look.
func (p *Processor) Process(ctx context.Context, jobID string) error {
	start := time.Now()

	id, err := uuid.Parse(jobID)
	if err != nil {
		return fmt.Errorf("parse job id %q: %w", jobID, err)
	}

	job, err := p.jobs.GetJob(ctx, id)
	if errors.Is(err, postgresql.ErrNotFound) {
		p.logger.Warn("queued job not found", "job_id", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}
	if job.Status != entity.StatusCreated {
		p.logger.Info("skip job", "job_id", id, "status", job.Status)
		return nil
	}

	var sink pipeline.Sink
	if p.bus != nil {
		sink = service.NewBusSink(p.bus)
	}

	recipeID, err := p.runner.Run(ctx, job, sink)
	if errors.Is(err, pipeline.ErrNotRunnable) || errors.Is(err, postgresql.ErrInvalidTransition) {
		// Another worker started it between the load and the run.
		p.logger.Info("skip job", "job_id", id, "reason", err)
		return nil
	}
	if err != nil {
		p.logger.Info("job failed", "job_id", id, "duration_ms", time.Since(start).Milliseconds(), "error", err)
		return err
	}

	p.logger.Info("job completed", "job_id", id, "recipe_id", recipeID, "duration_ms", time.Since(start).Milliseconds())
	return nil
}
