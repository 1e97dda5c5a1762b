package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"recipe-ingest-service/internal/service"
)

// JobProcessor is implemented by Processor.
type JobProcessor interface {
	Process(ctx context.Context, jobID string) error
}

// Listener claims job ids from the queue and runs them on the pool.
type Listener struct {
	queue      service.Queue
	processor  JobProcessor
	pool       *Pool
	claimDelay time.Duration
	retryDelay time.Duration
	logger     *slog.Logger
}

func NewListener(queue service.Queue, processor JobProcessor, pool *Pool) *Listener {
	return &Listener{
		queue:      queue,
		processor:  processor,
		pool:       pool,
		claimDelay: 5 * time.Second,
		retryDelay: time.Second,
		logger:     slog.Default().With("component", "queue-listener"),
	}
}

// Run blocks until ctx is cancelled. Jobs already submitted keep running;
// the caller drains them with Pool.Release.
func (l *Listener) Run(ctx context.Context) {
	l.logger.Info("listener started", "workers", l.pool.Size())
	defer l.logger.Info("listener stopped")

	for {
		if ctx.Err() != nil {
			return
		}
		jobID, err := l.queue.ClaimBlocking(ctx, l.claimDelay)
		if err != nil {
			// redis.Nil (nothing claimed) and cancellation are not fatal
			if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
				l.logger.Warn("claim job", "error", err)
				sleepCtx(ctx, l.retryDelay)
			}
			continue
		}

		runCtx := context.WithoutCancel(ctx)
		err = l.pool.Submit(func() {
			if err := l.processor.Process(runCtx, jobID); err != nil {
				l.logger.Warn("process job", "job_id", jobID, "error", err)
			}
			// Ack in every case: the job row already holds the outcome. If the
			// process dies before this point the reaper requeues the id.
			if err := l.queue.Ack(runCtx, jobID); err != nil {
				l.logger.Error("ack job", "job_id", jobID, "error", err)
			}
		})
		if err != nil {
			// The id stays in the processing list until the reaper requeues it.
			l.logger.Error("submit claimed job", "job_id", jobID, "error", err)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
