// Package registry deduplicates ingestion requests by source identity and
// creates the Source row a new job hangs off.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"recipe-ingest-service/internal/apperr"
	"recipe-ingest-service/internal/entity"
	"recipe-ingest-service/internal/metrics"
	"recipe-ingest-service/internal/repository/postgresql"
)

// SourceStore is implemented by postgresql.SourceRepository.
type SourceStore interface {
	Create(ctx context.Context, externalRef string, kind entity.SourceKind, metadata json.RawMessage) (*entity.Source, error)
	FindByRef(ctx context.Context, externalRef string, kind entity.SourceKind) (*entity.Source, error)
	FindRecipeIDByRef(ctx context.Context, externalRef string, kind entity.SourceKind) (uuid.UUID, error)
	DeleteFailed(ctx context.Context, id uuid.UUID) error
}

// JobLookup is implemented by postgresql.JobRepository.
type JobLookup interface {
	GetJobBySource(ctx context.Context, sourceID uuid.UUID) (*entity.Job, error)
	FailUnstarted(ctx context.Context, jobID uuid.UUID, kind apperr.Kind, message string) error
}

// Checker reports whether the referenced media exists upstream.
type Checker interface {
	Exists(ctx context.Context, kind entity.SourceKind, ref string) (bool, error)
}

// Validator turns raw user input into the canonical external reference for
// one source kind.
type Validator func(raw string) (string, error)

type Status string

const (
	StatusCreated       Status = "created"
	StatusAlreadyExists Status = "already_exists"
	StatusInProgress    Status = "in_progress"
)

// Result is the outcome of a registration. Source is set for StatusCreated,
// RecipeID for StatusAlreadyExists and JobID for StatusInProgress.
type Result struct {
	Status   Status
	Source   *entity.Source
	RecipeID uuid.UUID
	JobID    uuid.UUID
}

type Registry struct {
	sources    SourceStore
	jobs       JobLookup
	checker    Checker
	validators map[entity.SourceKind]Validator
	metrics    *metrics.Metrics
	logger     *slog.Logger

	// staleAfter is how long a job may sit in created before a new
	// registration fails it and retries. Zero disables the check.
	staleAfter time.Duration
}

type Option func(*Registry)

// WithValidator registers or replaces the validator for kind.
func WithValidator(kind entity.SourceKind, v Validator) Option {
	return func(r *Registry) { r.validators[kind] = v }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// WithStaleAfter lets a registration take over a source whose job never
// left created within d, as happens when the process holding it dies.
func WithStaleAfter(d time.Duration) Option {
	return func(r *Registry) { r.staleAfter = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

func New(sources SourceStore, jobs JobLookup, checker Checker, opts ...Option) *Registry {
	r := &Registry{
		sources:    sources,
		jobs:       jobs,
		checker:    checker,
		validators: map[entity.SourceKind]Validator{},
		logger:     slog.Default().With("component", "registry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register resolves rawRef to a canonical source. Checks run in order:
// validation, committed recipe, existing source, upstream existence, insert.
// Only the last two touch anything outside the local store, and nothing is
// written unless the result is StatusCreated or a failed source is retried.
func (r *Registry) Register(ctx context.Context, rawRef string, kind entity.SourceKind) (*Result, error) {
	res, err := r.register(ctx, rawRef, kind)
	if err != nil {
		r.metrics.Registration(string(apperr.KindOf(err)))
		return nil, err
	}
	r.metrics.Registration(string(res.Status))
	return res, nil
}

func (r *Registry) register(ctx context.Context, rawRef string, kind entity.SourceKind) (*Result, error) {
	validate, ok := r.validators[kind]
	if !ok {
		return nil, apperr.Newf(apperr.ValidationError, "unsupported source kind %q", kind)
	}
	ref, err := validate(strings.TrimSpace(rawRef))
	if err != nil {
		return nil, apperr.Wrap(apperr.ValidationError, err.Error(), err)
	}

	res, err := r.resolve(ctx, ref, kind, true)
	if err != nil || res != nil {
		return res, err
	}

	found, err := r.checker.Exists(ctx, kind, ref)
	if err != nil {
		return nil, apperr.Wrap(apperr.UpstreamUnavailable, "could not verify source", err)
	}
	if !found {
		return nil, apperr.Newf(apperr.UpstreamUnavailable, "source %s not found upstream", ref)
	}

	meta, err := json.Marshal(map[string]string{"input": rawRef})
	if err != nil {
		return nil, err
	}
	src, err := r.sources.Create(ctx, ref, kind, meta)
	if err == nil {
		r.logger.Info("source registered", "source_id", src.ID, "kind", kind, "ref", ref)
		return &Result{Status: StatusCreated, Source: src}, nil
	}
	if !errors.Is(err, postgresql.ErrConflict) {
		return nil, fmt.Errorf("create source: %w", err)
	}

	// Lost a race with a concurrent registration of the same source.
	r.logger.Info("concurrent registration", "kind", kind, "ref", ref)
	res, err = r.resolve(ctx, ref, kind, false)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, apperr.Newf(apperr.Internal, "source %s vanished during registration", ref)
	}
	return res, nil
}

// resolve reports what already exists for (ref, kind). A nil result means the
// caller may create the source. With retryFailed, a source whose job failed,
// or sat in created past staleAfter, is deleted so it can be registered again.
func (r *Registry) resolve(ctx context.Context, ref string, kind entity.SourceKind, retryFailed bool) (*Result, error) {
	recipeID, err := r.sources.FindRecipeIDByRef(ctx, ref, kind)
	if err == nil {
		return &Result{Status: StatusAlreadyExists, RecipeID: recipeID}, nil
	}
	if !errors.Is(err, postgresql.ErrNotFound) {
		return nil, fmt.Errorf("find recipe: %w", err)
	}

	src, err := r.sources.FindByRef(ctx, ref, kind)
	if errors.Is(err, postgresql.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find source: %w", err)
	}

	job, err := r.jobs.GetJobBySource(ctx, src.ID)
	if errors.Is(err, postgresql.ErrNotFound) {
		// The source was stored but its job never was. Hand it back so the
		// caller creates the job.
		r.logger.Warn("source without job", "source_id", src.ID)
		return &Result{Status: StatusCreated, Source: src}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find job: %w", err)
	}

	if retryFailed && r.abandoned(job) {
		err := r.jobs.FailUnstarted(ctx, job.ID, apperr.Interrupted, "job was never started")
		if err != nil && !errors.Is(err, postgresql.ErrInvalidTransition) {
			return nil, fmt.Errorf("fail abandoned job: %w", err)
		}
		if err == nil {
			r.logger.Warn("abandoned job failed", "source_id", src.ID, "job_id", job.ID, "created_at", job.CreatedAt)
		}
		// Failed now, or picked up by a worker in the meantime.
		return r.resolve(ctx, ref, kind, true)
	}

	switch job.Status {
	case entity.StatusFailed:
		if !retryFailed {
			return &Result{Status: StatusInProgress, JobID: job.ID}, nil
		}
		err := r.sources.DeleteFailed(ctx, src.ID)
		if errors.Is(err, postgresql.ErrNotFound) {
			// Someone else retried or finished it first.
			return r.resolve(ctx, ref, kind, false)
		}
		if err != nil {
			return nil, fmt.Errorf("delete failed source: %w", err)
		}
		r.logger.Info("failed source cleared for retry", "source_id", src.ID, "job_id", job.ID)
		return nil, nil
	case entity.StatusCompleted:
		// Completion and the recipe insert share a transaction, so this
		// means the recipe was committed between the two lookups.
		if retryFailed {
			return r.resolve(ctx, ref, kind, false)
		}
		return nil, apperr.Newf(apperr.Internal, "job %s completed without a recipe", job.ID)
	default:
		return &Result{Status: StatusInProgress, JobID: job.ID}, nil
	}
}

func (r *Registry) abandoned(job *entity.Job) bool {
	return r.staleAfter > 0 &&
		job.Status == entity.StatusCreated &&
		time.Since(job.CreatedAt) > r.staleAfter
}
