package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipe-ingest-service/internal/apperr"
	"recipe-ingest-service/internal/entity"
	"recipe-ingest-service/internal/pipeline"
	"recipe-ingest-service/internal/registry"
	"recipe-ingest-service/internal/repository/postgresql"
	"recipe-ingest-service/internal/service"
)

// ---- fakes ----

type fakeRegistrar struct {
	result *registry.Result
	err    error
	calls  int
}

func (r *fakeRegistrar) Register(ctx context.Context, rawRef string, kind entity.SourceKind) (*registry.Result, error) {
	r.calls++
	return r.result, r.err
}

type fakeJobs struct {
	mu        sync.Mutex
	created   []*entity.Job
	createErr error
	bySource  map[uuid.UUID]*entity.Job
	failed    map[uuid.UUID]apperr.Kind
}

func (j *fakeJobs) CreateJob(ctx context.Context, sourceID uuid.UUID, types []entity.StepType) (*entity.Job, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.createErr != nil {
		return nil, j.createErr
	}
	job := &entity.Job{ID: uuid.New(), SourceID: sourceID, Status: entity.StatusCreated}
	for i, t := range types {
		job.Steps = append(job.Steps, entity.Step{ID: uuid.New(), JobID: job.ID, Type: t, Order: i, Status: entity.StatusCreated})
	}
	j.created = append(j.created, job)
	return job, nil
}

func (j *fakeJobs) GetJob(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, job := range j.created {
		if job.ID == id {
			return job, nil
		}
	}
	return nil, postgresql.ErrNotFound
}

func (j *fakeJobs) GetJobBySource(ctx context.Context, sourceID uuid.UUID) (*entity.Job, error) {
	if job, ok := j.bySource[sourceID]; ok {
		return job, nil
	}
	return nil, postgresql.ErrNotFound
}

func (j *fakeJobs) MarkJobFailed(ctx context.Context, jobID uuid.UUID, kind apperr.Kind, message string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.failed == nil {
		j.failed = map[uuid.UUID]apperr.Kind{}
	}
	j.failed[jobID] = kind
	return nil
}

type fakeRecipes struct {
	recipe *entity.Recipe
}

func (r *fakeRecipes) GetByID(ctx context.Context, id uuid.UUID) (*entity.Recipe, error) {
	if r.recipe == nil || r.recipe.ID != id {
		return nil, postgresql.ErrNotFound
	}
	return r.recipe, nil
}

type fakeDispatcher struct {
	err        error
	jobs       []*entity.Job
	priorities []int
	sinks      []pipeline.Sink
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, job *entity.Job, priority int, sink pipeline.Sink) error {
	d.jobs = append(d.jobs, job)
	d.priorities = append(d.priorities, priority)
	d.sinks = append(d.sinks, sink)
	return d.err
}

func newSource() *entity.Source {
	return &entity.Source{ID: uuid.New(), ExternalRef: "dQw4w9WgXcQ", Kind: entity.KindYouTube}
}

// ---- tests ----

func TestIngest_CreatedDispatchesNewJob(t *testing.T) {
	src := newSource()
	reg := &fakeRegistrar{result: &registry.Result{Status: registry.StatusCreated, Source: src}}
	jobs := &fakeJobs{}
	disp := &fakeDispatcher{}
	svc := service.NewIngestService(reg, jobs, &fakeRecipes{}, disp)

	res, err := svc.Ingest(context.Background(), service.IngestRequest{
		URL:      "https://youtu.be/dQw4w9WgXcQ",
		Priority: service.PriorityHigh,
	})
	require.NoError(t, err)

	assert.Equal(t, registry.StatusCreated, res.Status)
	assert.Equal(t, src.ID, res.SourceID)
	require.Len(t, jobs.created, 1)
	assert.Equal(t, jobs.created[0].ID, res.JobID)
	assert.Len(t, jobs.created[0].Steps, len(entity.StepTypes()))
	assert.Nil(t, res.Stream)

	require.Len(t, disp.jobs, 1)
	assert.Equal(t, res.JobID, disp.jobs[0].ID)
	assert.Equal(t, service.PriorityHigh, disp.priorities[0])
	assert.Nil(t, disp.sinks[0])
}

func TestIngest_ObserveAttachesStream(t *testing.T) {
	reg := &fakeRegistrar{result: &registry.Result{Status: registry.StatusCreated, Source: newSource()}}
	disp := &fakeDispatcher{}
	svc := service.NewIngestService(reg, &fakeJobs{}, &fakeRecipes{}, disp)

	res, err := svc.Ingest(context.Background(), service.IngestRequest{URL: "x", Observe: true})
	require.NoError(t, err)
	require.NotNil(t, res.Stream)
	assert.Same(t, res.Stream, disp.sinks[0])
}

func TestIngest_AlreadyExistsDoesNotCreateJob(t *testing.T) {
	recipeID := uuid.New()
	reg := &fakeRegistrar{result: &registry.Result{Status: registry.StatusAlreadyExists, RecipeID: recipeID}}
	jobs := &fakeJobs{}
	disp := &fakeDispatcher{}
	svc := service.NewIngestService(reg, jobs, &fakeRecipes{}, disp)

	res, err := svc.Ingest(context.Background(), service.IngestRequest{URL: "x"})
	require.NoError(t, err)
	assert.Equal(t, registry.StatusAlreadyExists, res.Status)
	assert.Equal(t, recipeID, res.RecipeID)
	assert.Empty(t, jobs.created)
	assert.Empty(t, disp.jobs)
}

func TestIngest_InProgressReportsJob(t *testing.T) {
	jobID := uuid.New()
	reg := &fakeRegistrar{result: &registry.Result{Status: registry.StatusInProgress, JobID: jobID}}
	disp := &fakeDispatcher{}
	svc := service.NewIngestService(reg, &fakeJobs{}, &fakeRecipes{}, disp)

	res, err := svc.Ingest(context.Background(), service.IngestRequest{URL: "x"})
	require.NoError(t, err)
	assert.Equal(t, registry.StatusInProgress, res.Status)
	assert.Equal(t, jobID, res.JobID)
	assert.Empty(t, disp.jobs)
}

func TestIngest_ConcurrentJobCreationReportsInProgress(t *testing.T) {
	src := newSource()
	existing := &entity.Job{ID: uuid.New(), SourceID: src.ID, Status: entity.StatusProcessing}
	reg := &fakeRegistrar{result: &registry.Result{Status: registry.StatusCreated, Source: src}}
	jobs := &fakeJobs{
		createErr: postgresql.ErrConflict,
		bySource:  map[uuid.UUID]*entity.Job{src.ID: existing},
	}
	disp := &fakeDispatcher{}
	svc := service.NewIngestService(reg, jobs, &fakeRecipes{}, disp)

	res, err := svc.Ingest(context.Background(), service.IngestRequest{URL: "x"})
	require.NoError(t, err)
	assert.Equal(t, registry.StatusInProgress, res.Status)
	assert.Equal(t, existing.ID, res.JobID)
	assert.Empty(t, disp.jobs)
}

func TestIngest_RegistrationErrorPropagates(t *testing.T) {
	reg := &fakeRegistrar{err: apperr.New(apperr.ValidationError, "unsupported reference")}
	svc := service.NewIngestService(reg, &fakeJobs{}, &fakeRecipes{}, &fakeDispatcher{})

	_, err := svc.Ingest(context.Background(), service.IngestRequest{URL: "not a video"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.ValidationError))
}

func TestIngest_DispatchRejectedFailsJob(t *testing.T) {
	reg := &fakeRegistrar{result: &registry.Result{Status: registry.StatusCreated, Source: newSource()}}
	jobs := &fakeJobs{}
	disp := &fakeDispatcher{err: service.ErrBusy}
	svc := service.NewIngestService(reg, jobs, &fakeRecipes{}, disp)

	res, err := svc.Ingest(context.Background(), service.IngestRequest{URL: "x", Observe: true})
	require.ErrorIs(t, err, service.ErrBusy)
	assert.Nil(t, res)

	require.Len(t, jobs.created, 1)
	assert.Equal(t, apperr.Internal, jobs.failed[jobs.created[0].ID])

	stream, ok := disp.sinks[0].(*pipeline.Stream)
	require.True(t, ok)
	_, open := <-stream.Events()
	assert.False(t, open, "stream must be closed after a rejected dispatch")
}

func TestGetJobAndRecipe(t *testing.T) {
	reg := &fakeRegistrar{result: &registry.Result{Status: registry.StatusCreated, Source: newSource()}}
	jobs := &fakeJobs{}
	recipe := &entity.Recipe{ID: uuid.New(), Name: "shakshuka"}
	svc := service.NewIngestService(reg, jobs, &fakeRecipes{recipe: recipe}, &fakeDispatcher{})

	res, err := svc.Ingest(context.Background(), service.IngestRequest{URL: "x"})
	require.NoError(t, err)

	job, err := svc.GetJob(context.Background(), res.JobID)
	require.NoError(t, err)
	assert.Equal(t, res.JobID, job.ID)

	_, err = svc.GetJob(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, postgresql.ErrNotFound))

	got, err := svc.GetRecipe(context.Background(), recipe.ID)
	require.NoError(t, err)
	assert.Equal(t, "shakshuka", got.Name)
}
