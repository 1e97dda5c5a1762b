package worker

import (
	"context"
	"log/slog"
	"time"

	"recipe-ingest-service/internal/metrics"
	"recipe-ingest-service/internal/service"
)

type StaleFailer interface {
	FailStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Reaper returns ids abandoned in processing lists to the queue and fails
// jobs stuck in processing, so their sources can be registered again.
type Reaper struct {
	queue      service.Queue
	jobs       StaleFailer
	staleAfter time.Duration
	maxPerLane int64
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewReaper builds a reaper. queue may be nil when jobs are dispatched inline.
func NewReaper(queue service.Queue, jobs StaleFailer, staleAfter time.Duration, m *metrics.Metrics) *Reaper {
	if staleAfter <= 0 {
		staleAfter = 30 * time.Minute
	}
	return &Reaper{
		queue:      queue,
		jobs:       jobs,
		staleAfter: staleAfter,
		maxPerLane: 100,
		metrics:    m,
		logger:     slog.Default().With("component", "reaper"),
	}
}

// Sweep runs one pass. Errors of one half do not stop the other.
func (r *Reaper) Sweep(ctx context.Context) (requeued, failed int64) {
	if r.queue != nil {
		n, err := r.queue.RequeueStale(ctx, r.maxPerLane)
		if err != nil {
			r.logger.Error("requeue stale ids", "error", err)
		} else if n > 0 {
			r.logger.Info("requeued ids from processing", "count", n)
		}
		r.metrics.Requeued(n)
		requeued = n
	}

	if r.jobs != nil {
		n, err := r.jobs.FailStale(ctx, r.staleAfter)
		if err != nil {
			r.logger.Error("fail stale jobs", "error", err)
		} else if n > 0 {
			r.logger.Warn("failed stale jobs", "count", n, "older_than", r.staleAfter)
		}
		r.metrics.StaleFailed(n)
		failed = n
	}
	return requeued, failed
}

// Run sweeps every interval until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}
