// Package pipeline runs the ordered steps of an ingestion job, records every
// transition in the job store and streams progress to an optional observer.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"recipe-ingest-service/internal/apperr"
	"recipe-ingest-service/internal/entity"
	"recipe-ingest-service/internal/metrics"
)

var ErrNotRunnable = errors.New("job is not in created status")

// JobStore is implemented by postgresql.JobRepository.
type JobStore interface {
	StartJob(ctx context.Context, id uuid.UUID) error
	MarkStepProcessing(ctx context.Context, stepID uuid.UUID) error
	MarkStepCompleted(ctx context.Context, stepID uuid.UUID) error
	FailStep(ctx context.Context, jobID, stepID uuid.UUID, kind apperr.Kind, message string) error
	MarkJobFailed(ctx context.Context, jobID uuid.UUID, kind apperr.Kind, message string) error
}

type SourceLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Source, error)
}

type ContentStore interface {
	Save(ctx context.Context, sourceID uuid.UUID, stepID *uuid.UUID, kind, body string) (*entity.ContentItem, error)
}

// Committer writes the final recipe and completes the job in one unit.
type Committer interface {
	Commit(ctx context.Context, jobID, sourceID uuid.UUID, rec entity.StructuredRecipe, vector []float32) (uuid.UUID, error)
}

const DefaultStepTimeout = 2 * time.Minute

type Executor struct {
	jobs        JobStore
	sources     SourceLookup
	content     ContentStore
	committer   Committer
	steps       map[entity.StepType]StepFunc
	stepTimeout time.Duration
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

type Option func(*Executor)

func WithStepTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.stepTimeout = d
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithStep replaces the function bound to a step type.
func WithStep(t entity.StepType, fn StepFunc) Option {
	return func(e *Executor) { e.steps[t] = fn }
}

// NewExecutor binds every step type to its capability. It fails when a step
// type is left without a binding.
func NewExecutor(jobs JobStore, sources SourceLookup, content ContentStore, committer Committer, caps Capabilities, opts ...Option) (*Executor, error) {
	e := &Executor{
		jobs:        jobs,
		sources:     sources,
		content:     content,
		committer:   committer,
		stepTimeout: DefaultStepTimeout,
		logger:      slog.Default().With("component", "pipeline"),
	}
	e.steps = e.defaultSteps(caps)
	for _, opt := range opts {
		opt(e)
	}

	for _, t := range entity.StepTypes() {
		if e.steps[t] == nil {
			return nil, fmt.Errorf("pipeline: no function bound to step %q", t)
		}
	}
	return e, nil
}

// run is the state of one execution.
type run struct {
	*Executor
	ctx     context.Context
	job     *entity.Job
	sink    Sink
	current *entity.Step
	log     *slog.Logger
}

// Run executes job from its first unfinished step and commits the result.
// Terminal state is always written to the store, whatever happens to sink.
// The returned error is the classified failure that ended the run.
func (e *Executor) Run(ctx context.Context, job *entity.Job, sink Sink) (recipeID uuid.UUID, err error) {
	if sink == nil {
		sink = nopSink{}
	}
	if c, ok := sink.(interface{ Close() }); ok {
		defer c.Close()
	}
	if job.Status != entity.StatusCreated {
		return uuid.Nil, fmt.Errorf("%w: job %s is %s", ErrNotRunnable, job.ID, job.Status)
	}

	r := &run{
		Executor: e,
		ctx:      ctx,
		job:      job,
		sink:     sink,
		log:      e.logger.With("job_id", job.ID),
	}

	e.metrics.JobStarted()
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("pipeline panicked", "panic", p, "stack", string(debug.Stack()))
			recipeID = uuid.Nil
			err = r.fail(apperr.Newf(apperr.Internal, "internal error: %v", p))
		}
		status, kind := string(entity.StatusCompleted), ""
		if err != nil {
			status, kind = string(entity.StatusFailed), string(apperr.KindOf(err))
		}
		e.metrics.JobFinished(status, kind)
	}()

	return r.execute()
}

func (r *run) execute() (uuid.UUID, error) {
	if err := r.jobs.StartJob(r.ctx, r.job.ID); err != nil {
		// Someone else started it; nothing here owns the job.
		return uuid.Nil, fmt.Errorf("start job %s: %w", r.job.ID, err)
	}
	r.job.Status = entity.StatusProcessing
	r.log.Info("job started", "source_id", r.job.SourceID, "steps", len(r.job.Steps))

	src, err := r.sources.GetByID(r.ctx, r.job.SourceID)
	if err != nil {
		return uuid.Nil, r.fail(apperr.Wrap(apperr.Internal, "source could not be loaded", err))
	}

	rc := RunContext{Job: r.job, Source: src}
	for i := r.job.NextStep(); i < len(r.job.Steps); i++ {
		step := &r.job.Steps[i]
		if step.Status != entity.StatusCreated {
			return uuid.Nil, r.fail(apperr.Newf(apperr.Internal, "step %s is %s, expected created", step.Type, step.Status))
		}

		if err := r.jobs.MarkStepProcessing(r.ctx, step.ID); err != nil {
			return uuid.Nil, r.fail(apperr.Wrap(apperr.Internal, "step could not be started", err))
		}
		step.Status = entity.StatusProcessing
		r.current = step
		r.emit(Event{Type: EventStepStarted, Step: step.Type})

		rc.Step = *step
		start := time.Now()
		next, ref, err := r.runStep(rc)
		if err != nil {
			r.metrics.ObserveStep(string(step.Type), string(entity.StatusFailed), time.Since(start))
			return uuid.Nil, r.fail(err)
		}
		r.metrics.ObserveStep(string(step.Type), string(entity.StatusCompleted), time.Since(start))

		if err := r.jobs.MarkStepCompleted(r.ctx, step.ID); err != nil {
			return uuid.Nil, r.fail(apperr.Wrap(apperr.Internal, "step could not be completed", err))
		}
		step.Status = entity.StatusCompleted
		r.current = nil
		rc = next
		r.emit(Event{Type: EventStepSucceeded, Step: step.Type, OutputRef: ref})
		r.log.Debug("step completed", "step", step.Type, "output_ref", ref, "duration_ms", time.Since(start).Milliseconds())
	}

	if rc.Recipe == nil || len(rc.Vector) == 0 {
		return uuid.Nil, r.fail(apperr.New(apperr.Internal, "run finished without a recipe and embedding"))
	}

	recipeID, err := r.committer.Commit(r.ctx, r.job.ID, r.job.SourceID, *rc.Recipe, rc.Vector)
	if err != nil {
		if apperr.KindOf(err) == apperr.Internal {
			err = apperr.Wrap(apperr.CommitError, "could not store recipe", err)
		}
		return uuid.Nil, r.fail(err)
	}
	r.job.Status = entity.StatusCompleted
	r.emit(Event{Type: EventPipelineCompleted, RecipeID: &recipeID})
	r.log.Info("job completed", "recipe_id", recipeID)
	return recipeID, nil
}

type stepOutcome struct {
	rc  RunContext
	ref string
	err error
}

// runStep calls the step function with a deadline. The function runs on its
// own goroutine so a capability that ignores its context cannot hold the job
// past the deadline; its late result is discarded.
func (r *run) runStep(rc RunContext) (RunContext, string, error) {
	fn := r.steps[rc.Step.Type]
	ctx, cancel := context.WithTimeout(r.ctx, r.stepTimeout)
	defer cancel()

	done := make(chan stepOutcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				r.log.Error("step panicked", "step", rc.Step.Type, "panic", p, "stack", string(debug.Stack()))
				done <- stepOutcome{err: apperr.Newf(apperr.Internal, "internal error in step %s", rc.Step.Type)}
			}
		}()
		next, ref, err := fn(ctx, rc)
		done <- stepOutcome{rc: next, ref: ref, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil && errors.Is(out.err, context.DeadlineExceeded) && ctx.Err() != nil {
			return rc, "", apperr.Wrap(apperr.InvocationError, fmt.Sprintf("step %s timed out after %s", rc.Step.Type, r.stepTimeout), out.err)
		}
		return out.rc, out.ref, out.err
	case <-ctx.Done():
		return rc, "", apperr.Wrap(apperr.InvocationError, fmt.Sprintf("step %s timed out after %s", rc.Step.Type, r.stepTimeout), ctx.Err())
	}
}

// fail records cause as the job's terminal failure and emits the failure
// events. It returns cause, or cause joined with the recording error.
func (r *run) fail(cause error) error {
	kind := apperr.KindOf(cause)
	msg := apperr.SafeMessage(cause)
	r.log.Error("job failed", "error_kind", kind, "error", cause)

	var recordErr error
	if step := r.current; step != nil {
		recordErr = r.jobs.FailStep(r.ctx, r.job.ID, step.ID, kind, msg)
		step.Status = entity.StatusFailed
		r.current = nil
		r.metrics.StepFailed(string(step.Type), string(kind))
		r.emit(Event{Type: EventStepFailed, Step: step.Type, ErrorKind: kind, Message: msg})
	} else {
		recordErr = r.jobs.MarkJobFailed(r.ctx, r.job.ID, kind, msg)
	}
	r.job.Status = entity.StatusFailed
	r.emit(Event{Type: EventPipelineFailed, ErrorKind: kind, Message: msg})

	if recordErr != nil {
		r.log.Error("failure not recorded, job left for the reaper", "error", recordErr)
		return errors.Join(cause, fmt.Errorf("record failure: %w", recordErr))
	}
	return cause
}

func (r *run) emit(e Event) {
	e.JobID = r.job.ID
	e.At = time.Now().UTC()
	r.sink.Emit(e)
}
