package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"recipe-ingest-service/internal/apperr"
	"recipe-ingest-service/internal/entity"
	"recipe-ingest-service/internal/pipeline"
	"recipe-ingest-service/internal/registry"
	"recipe-ingest-service/internal/repository/postgresql"
)

// Registrar is implemented by registry.Registry.
type Registrar interface {
	Register(ctx context.Context, rawRef string, kind entity.SourceKind) (*registry.Result, error)
}

// JobRepository is implemented by postgresql.JobRepository.
type JobRepository interface {
	CreateJob(ctx context.Context, sourceID uuid.UUID, types []entity.StepType) (*entity.Job, error)
	GetJob(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	GetJobBySource(ctx context.Context, sourceID uuid.UUID) (*entity.Job, error)
	MarkJobFailed(ctx context.Context, jobID uuid.UUID, kind apperr.Kind, message string) error
}

// RecipeRepository is implemented by postgresql.RecipeRepository.
type RecipeRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Recipe, error)
}

type IngestService struct {
	registry   Registrar
	jobs       JobRepository
	recipes    RecipeRepository
	dispatcher Dispatcher
	logger     *slog.Logger
}

func NewIngestService(reg Registrar, jobs JobRepository, recipes RecipeRepository, dispatcher Dispatcher) *IngestService {
	return &IngestService{
		registry:   reg,
		jobs:       jobs,
		recipes:    recipes,
		dispatcher: dispatcher,
		logger:     slog.Default().With("component", "ingest-service"),
	}
}

type IngestRequest struct {
	URL      string
	Kind     entity.SourceKind
	Priority int
	// Observe asks for a live event stream of the run.
	Observe bool
}

// IngestResult mirrors registry.Result. For a started job Job is set and,
// when observing, Stream delivers its events and is closed after the last.
type IngestResult struct {
	Status   registry.Status
	SourceID uuid.UUID
	Job      *entity.Job
	JobID    uuid.UUID
	RecipeID uuid.UUID
	Stream   *pipeline.Stream
}

// Ingest registers the reference and, for a new source, creates its job and
// dispatches it. It returns as soon as the job exists.
func (s *IngestService) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	if req.Kind == "" {
		req.Kind = entity.KindYouTube
	}

	reg, err := s.registry.Register(ctx, req.URL, req.Kind)
	if err != nil {
		return nil, err
	}
	switch reg.Status {
	case registry.StatusAlreadyExists:
		return &IngestResult{Status: reg.Status, RecipeID: reg.RecipeID}, nil
	case registry.StatusInProgress:
		return &IngestResult{Status: reg.Status, JobID: reg.JobID}, nil
	}

	src := reg.Source
	job, err := s.jobs.CreateJob(ctx, src.ID, entity.StepTypes())
	if errors.Is(err, postgresql.ErrConflict) {
		// Another request materialised the job for this source first.
		existing, getErr := s.jobs.GetJobBySource(ctx, src.ID)
		if getErr != nil {
			return nil, fmt.Errorf("load concurrent job: %w", getErr)
		}
		return &IngestResult{Status: registry.StatusInProgress, JobID: existing.ID, SourceID: src.ID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	res := &IngestResult{Status: registry.StatusCreated, SourceID: src.ID, Job: job, JobID: job.ID}
	var sink pipeline.Sink
	if req.Observe {
		res.Stream = pipeline.NewStream(pipeline.MaxEvents(len(job.Steps)))
		sink = res.Stream
	}

	if err := s.dispatcher.Dispatch(ctx, job, req.Priority, sink); err != nil {
		s.logger.Error("dispatch rejected", "job_id", job.ID, "error", err)
		// Fail the fresh job so registering the source again retries it.
		if mErr := s.jobs.MarkJobFailed(context.WithoutCancel(ctx), job.ID, apperr.Internal, "dispatch rejected"); mErr != nil {
			s.logger.Error("rejected job not marked failed", "job_id", job.ID, "error", mErr)
		}
		if res.Stream != nil {
			res.Stream.Close()
		}
		return nil, err
	}

	s.logger.Info("job dispatched", "job_id", job.ID, "source_id", src.ID, "observe", req.Observe)
	return res, nil
}

func (s *IngestService) GetJob(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	return s.jobs.GetJob(ctx, id)
}

func (s *IngestService) GetRecipe(ctx context.Context, id uuid.UUID) (*entity.Recipe, error) {
	return s.recipes.GetByID(ctx, id)
}
