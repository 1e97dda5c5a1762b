package worker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"recipe-ingest-service/internal/metrics"
	"recipe-ingest-service/internal/worker"
)

type requeueQueue struct {
	scriptedQueue
	n   int64
	err error
}

func (q *requeueQueue) RequeueStale(ctx context.Context, max int64) (int64, error) {
	return q.n, q.err
}

type staleJobs struct {
	n         int64
	err       error
	olderThan time.Duration
}

func (s *staleJobs) FailStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	s.olderThan = olderThan
	return s.n, s.err
}

func TestReaper_SweepDoesBothHalves(t *testing.T) {
	q := &requeueQueue{n: 3}
	jobs := &staleJobs{n: 2}
	r := worker.NewReaper(q, jobs, 10*time.Minute, metrics.New())

	requeued, failed := r.Sweep(context.Background())
	assert.EqualValues(t, 3, requeued)
	assert.EqualValues(t, 2, failed)
	assert.Equal(t, 10*time.Minute, jobs.olderThan)
}

func TestReaper_QueueErrorDoesNotSkipJobs(t *testing.T) {
	q := &requeueQueue{err: errors.New("redis down")}
	jobs := &staleJobs{n: 1}
	r := worker.NewReaper(q, jobs, time.Minute, nil)

	_, failed := r.Sweep(context.Background())
	assert.EqualValues(t, 1, failed)
}

func TestReaper_InlineModeHasNoQueue(t *testing.T) {
	jobs := &staleJobs{}
	r := worker.NewReaper(nil, jobs, 0, nil)

	requeued, _ := r.Sweep(context.Background())
	assert.Zero(t, requeued)
	assert.Equal(t, 30*time.Minute, jobs.olderThan)
}
