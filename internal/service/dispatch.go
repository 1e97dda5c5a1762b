package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"recipe-ingest-service/internal/entity"
	"recipe-ingest-service/internal/pipeline"
)

// ErrBusy means the job could not be handed to an executor.
var ErrBusy = errors.New("ingestion capacity exhausted")

// Dispatcher starts a job in the background. sink may be nil. Dispatch
// returns once the job is accepted; it never waits for the run.
type Dispatcher interface {
	Dispatch(ctx context.Context, job *entity.Job, priority int, sink pipeline.Sink) error
}

// Runner is implemented by pipeline.Executor.
type Runner interface {
	Run(ctx context.Context, job *entity.Job, sink pipeline.Sink) (uuid.UUID, error)
}

// Submitter is implemented by worker.Pool.
type Submitter interface {
	Submit(task func()) error
}

// InlineDispatcher runs jobs on a bounded pool in this process.
type InlineDispatcher struct {
	pool   Submitter
	runner Runner
	logger *slog.Logger
}

func NewInlineDispatcher(pool Submitter, runner Runner) *InlineDispatcher {
	return &InlineDispatcher{
		pool:   pool,
		runner: runner,
		logger: slog.Default().With("component", "inline-dispatcher"),
	}
}

func (d *InlineDispatcher) Dispatch(ctx context.Context, job *entity.Job, _ int, sink pipeline.Sink) error {
	// The run outlives the request that triggered it.
	runCtx := context.WithoutCancel(ctx)
	err := d.pool.Submit(func() {
		if _, err := d.runner.Run(runCtx, job, sink); err != nil {
			d.logger.Info("job finished with failure", "job_id", job.ID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBusy, err)
	}
	return nil
}

// QueueDispatcher hands jobs to worker processes through the Redis queue and
// relays their events back from the bus.
type QueueDispatcher struct {
	queue    Queue
	bus      EventBus
	maxRelay time.Duration
	logger   *slog.Logger
}

func NewQueueDispatcher(queue Queue, bus EventBus, maxRelay time.Duration) *QueueDispatcher {
	if maxRelay <= 0 {
		maxRelay = 10 * time.Minute
	}
	return &QueueDispatcher{
		queue:    queue,
		bus:      bus,
		maxRelay: maxRelay,
		logger:   slog.Default().With("component", "queue-dispatcher"),
	}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, job *entity.Job, priority int, sink pipeline.Sink) error {
	var events <-chan pipeline.Event
	cancel := context.CancelFunc(func() {})
	if sink != nil && d.bus != nil {
		// Subscribe before enqueueing so the first event cannot be missed.
		relayCtx, c := context.WithTimeout(context.WithoutCancel(ctx), d.maxRelay)
		ch, err := d.bus.Subscribe(relayCtx, job.ID)
		if err != nil {
			c()
			d.logger.Warn("event relay unavailable", "job_id", job.ID, "error", err)
		} else {
			events, cancel = ch, c
		}
	}

	if err := d.queue.Enqueue(ctx, job.ID.String(), priority); err != nil {
		cancel()
		closeSink(sink)
		return fmt.Errorf("%w: enqueue: %w", ErrBusy, err)
	}

	if events == nil {
		closeSink(sink)
		return nil
	}
	go d.relay(events, cancel, sink)
	return nil
}

func (d *QueueDispatcher) relay(events <-chan pipeline.Event, cancel context.CancelFunc, sink pipeline.Sink) {
	defer closeSink(sink)
	defer cancel()
	for e := range events {
		sink.Emit(e)
		if e.Terminal() {
			return
		}
	}
}

func closeSink(sink pipeline.Sink) {
	if c, ok := sink.(interface{ Close() }); ok {
		c.Close()
	}
}
