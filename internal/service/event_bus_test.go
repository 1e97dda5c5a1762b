package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipe-ingest-service/internal/entity"
	"recipe-ingest-service/internal/pipeline"
	"recipe-ingest-service/internal/service"
)

type failingBus struct {
	calls int
}

func (b *failingBus) Publish(ctx context.Context, e pipeline.Event) error {
	b.calls++
	return errors.New("broker gone")
}

func (b *failingBus) Subscribe(ctx context.Context, jobID uuid.UUID) (<-chan pipeline.Event, error) {
	return nil, errors.New("broker gone")
}

func TestBusSink_PublishFailureIsSwallowed(t *testing.T) {
	bus := &failingBus{}
	sink := service.NewBusSink(bus)

	sink.Emit(pipeline.Event{Type: pipeline.EventStepStarted, JobID: uuid.New()})
	assert.Equal(t, 1, bus.calls)
}

func TestRedisEventBus_UnreachableRedis(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	defer rdb.Close()
	bus := service.NewRedisEventBus(rdb, "")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := bus.Subscribe(ctx, uuid.New())
	require.Error(t, err)
	assert.Error(t, bus.Publish(ctx, pipeline.Event{JobID: uuid.New()}))
}

func TestQueueDispatcher_RelayUnavailableStillEnqueues(t *testing.T) {
	q := &fakeQueue{}
	d := service.NewQueueDispatcher(q, &failingBus{}, time.Second)

	stream := pipeline.NewStream(0)
	require.NoError(t, d.Dispatch(context.Background(), &entity.Job{ID: uuid.New()}, service.PriorityNormal, stream))
	assert.Len(t, q.enqueued, 1)

	_, open := <-stream.Events()
	assert.False(t, open, "stream closes when events cannot be relayed")
}
