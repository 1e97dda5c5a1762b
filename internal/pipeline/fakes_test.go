package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"recipe-ingest-service/internal/apperr"
	"recipe-ingest-service/internal/entity"
)

var errTransition = errors.New("invalid status transition")

// memJobs is an in-memory job store that enforces the same guarded
// transitions as the PostgreSQL repository.
type memJobs struct {
	mu        sync.Mutex
	job       entity.Job
	steps     map[uuid.UUID]*entity.Step
	errorKind apperr.Kind
	errorMsg  string
	calls     int
}

func newJob() (*entity.Job, *memJobs) {
	job := entity.Job{ID: uuid.New(), SourceID: uuid.New(), Status: entity.StatusCreated}
	for i, t := range entity.StepTypes() {
		job.Steps = append(job.Steps, entity.Step{ID: uuid.New(), JobID: job.ID, Type: t, Order: i, Status: entity.StatusCreated})
	}
	store := &memJobs{job: job, steps: map[uuid.UUID]*entity.Step{}}
	store.job.Steps = append([]entity.Step(nil), job.Steps...)
	for i := range store.job.Steps {
		store.steps[store.job.Steps[i].ID] = &store.job.Steps[i]
	}
	return &job, store
}

func (m *memJobs) StartJob(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.job.ID != id || m.job.Status != entity.StatusCreated {
		return errTransition
	}
	m.job.Status = entity.StatusProcessing
	return nil
}

func (m *memJobs) MarkStepProcessing(_ context.Context, stepID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	st, ok := m.steps[stepID]
	if !ok || st.Status != entity.StatusCreated {
		return errTransition
	}
	for _, p := range m.job.Steps {
		if p.Order < st.Order && p.Status != entity.StatusCompleted {
			return errTransition
		}
	}
	st.Status = entity.StatusProcessing
	return nil
}

func (m *memJobs) MarkStepCompleted(_ context.Context, stepID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	st, ok := m.steps[stepID]
	if !ok || st.Status != entity.StatusProcessing {
		return errTransition
	}
	st.Status = entity.StatusCompleted
	return nil
}

func (m *memJobs) FailStep(_ context.Context, jobID, stepID uuid.UUID, kind apperr.Kind, msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	st, ok := m.steps[stepID]
	if !ok || st.Status != entity.StatusProcessing || m.job.Status != entity.StatusProcessing {
		return errTransition
	}
	st.Status = entity.StatusFailed
	st.ErrorMessage = &msg
	m.failJob(kind, msg)
	return nil
}

func (m *memJobs) MarkJobFailed(_ context.Context, jobID uuid.UUID, kind apperr.Kind, msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.job.Status != entity.StatusCreated && m.job.Status != entity.StatusProcessing {
		return errTransition
	}
	m.failJob(kind, msg)
	return nil
}

func (m *memJobs) failJob(kind apperr.Kind, msg string) {
	m.job.Status = entity.StatusFailed
	m.errorKind = kind
	m.errorMsg = msg
}

func (m *memJobs) complete() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.job.Status != entity.StatusProcessing {
		return errTransition
	}
	m.job.Status = entity.StatusCompleted
	return nil
}

func (m *memJobs) snapshot() entity.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	j := m.job
	j.Steps = append([]entity.Step(nil), m.job.Steps...)
	return j
}

func (m *memJobs) stepStatuses() []entity.StepStatus {
	j := m.snapshot()
	out := make([]entity.StepStatus, len(j.Steps))
	for i, s := range j.Steps {
		out[i] = s.Status
	}
	return out
}

type memSources struct {
	src *entity.Source
	err error
}

func (s *memSources) GetByID(context.Context, uuid.UUID) (*entity.Source, error) {
	return s.src, s.err
}

type memContent struct {
	mu    sync.Mutex
	items []entity.ContentItem
	err   error
}

func (c *memContent) Save(_ context.Context, sourceID uuid.UUID, stepID *uuid.UUID, kind, body string) (*entity.ContentItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	it := entity.ContentItem{ID: uuid.New(), SourceID: sourceID, StepID: stepID, Kind: kind, Body: body}
	c.items = append(c.items, it)
	return &it, nil
}

// fakeCommitter completes the job in the store like the real transaction does.
type fakeCommitter struct {
	jobs   *memJobs
	err    error
	got    *entity.StructuredRecipe
	vector []float32
	id     uuid.UUID
}

func (c *fakeCommitter) Commit(_ context.Context, _, _ uuid.UUID, rec entity.StructuredRecipe, vector []float32) (uuid.UUID, error) {
	if c.err != nil {
		return uuid.Nil, c.err
	}
	if err := c.jobs.complete(); err != nil {
		return uuid.Nil, apperr.Wrap(apperr.CommitError, "could not store recipe", err)
	}
	c.got = &rec
	c.vector = vector
	c.id = uuid.New()
	return c.id, nil
}

type extractorFunc func(ctx context.Context, ref string) (string, error)

func (f extractorFunc) ExtractText(ctx context.Context, ref string) (string, error) { return f(ctx, ref) }

type structurerFunc func(ctx context.Context, text string) (*entity.StructuredRecipe, error)

func (f structurerFunc) Structure(ctx context.Context, text string) (*entity.StructuredRecipe, error) {
	return f(ctx, text)
}

type embedderFunc func(ctx context.Context, text string) ([]float32, error)

func (f embedderFunc) Embed(ctx context.Context, text string) ([]float32, error) { return f(ctx, text) }
func (f embedderFunc) Dimensions() int                                           { return 3 }

// recorder is a Sink that keeps every event.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Emit(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

type shortEvent struct {
	Type EventType
	Step entity.StepType
	Kind apperr.Kind
}

func (r *recorder) short() []shortEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]shortEvent, len(r.events))
	for i, e := range r.events {
		out[i] = shortEvent{Type: e.Type, Step: e.Step, Kind: e.ErrorKind}
	}
	return out
}
