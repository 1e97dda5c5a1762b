package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"recipe-ingest-service/internal/entity"
	"recipe-ingest-service/internal/pipeline"
)

// EventBus carries pipeline events from the process running a job to the
// process holding its observer.
type EventBus interface {
	Publish(ctx context.Context, e pipeline.Event) error
	// Subscribe is confirmed by the broker before it returns, so events
	// published afterwards are not missed. The channel closes when ctx ends.
	Subscribe(ctx context.Context, jobID uuid.UUID) (<-chan pipeline.Event, error)
}

// subscriberBuffer holds every event of one run, matching pipeline.Stream.
var subscriberBuffer = pipeline.MaxEvents(len(entity.StepTypes()))

// RedisEventBus publishes on one pub/sub channel per job: <prefix>:<jobID>.
type RedisEventBus struct {
	rdb    *redis.Client
	prefix string
	logger *slog.Logger
}

func NewRedisEventBus(rdb *redis.Client, prefix string) *RedisEventBus {
	if prefix == "" {
		prefix = "jobs:events"
	}
	return &RedisEventBus{
		rdb:    rdb,
		prefix: prefix,
		logger: slog.Default().With("component", "event-bus"),
	}
}

func (b *RedisEventBus) channel(jobID uuid.UUID) string {
	return b.prefix + ":" + jobID.String()
}

func (b *RedisEventBus) Publish(ctx context.Context, e pipeline.Event) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel(e.JobID), raw).Err()
}

func (b *RedisEventBus) Subscribe(ctx context.Context, jobID uuid.UUID) (<-chan pipeline.Event, error) {
	sub := b.rdb.Subscribe(ctx, b.channel(jobID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	out := make(chan pipeline.Event, subscriberBuffer)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var e pipeline.Event
				if err := json.Unmarshal([]byte(m.Payload), &e); err != nil {
					b.logger.Warn("bad event payload", "channel", m.Channel, "error", err)
					continue
				}
				select {
				case out <- e:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// BusSink is a pipeline.Sink that forwards events to an EventBus. Publish
// failures are logged; the run never depends on them.
type BusSink struct {
	bus     EventBus
	timeout time.Duration
	logger  *slog.Logger
}

func NewBusSink(bus EventBus) *BusSink {
	return &BusSink{
		bus:     bus,
		timeout: 2 * time.Second,
		logger:  slog.Default().With("component", "bus-sink"),
	}
}

func (s *BusSink) Emit(e pipeline.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.bus.Publish(ctx, e); err != nil {
		s.logger.Warn("event not published", "job_id", e.JobID, "type", e.Type, "error", err)
	}
}
