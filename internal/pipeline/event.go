package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"recipe-ingest-service/internal/apperr"
	"recipe-ingest-service/internal/entity"
)

type EventType string

const (
	EventStepStarted       EventType = "step_started"
	EventStepSucceeded     EventType = "step_succeeded"
	EventStepFailed        EventType = "step_failed"
	EventPipelineCompleted EventType = "pipeline_completed"
	EventPipelineFailed    EventType = "pipeline_failed"
)

// Event is one progress notification of a run. Step is set for step events,
// ErrorKind and Message for failures, RecipeID for completion.
type Event struct {
	Type      EventType       `json:"type"`
	JobID     uuid.UUID       `json:"job_id"`
	Step      entity.StepType `json:"step,omitempty"`
	OutputRef string          `json:"output_ref,omitempty"`
	ErrorKind apperr.Kind     `json:"error_kind,omitempty"`
	Message   string          `json:"message,omitempty"`
	RecipeID  *uuid.UUID      `json:"recipe_id,omitempty"`
	At        time.Time       `json:"at"`
}

// Terminal reports whether no further events follow for the job.
func (e Event) Terminal() bool {
	return e.Type == EventPipelineCompleted || e.Type == EventPipelineFailed
}

// Sink receives the events of one run. Emit must not block.
type Sink interface {
	Emit(Event)
}

type nopSink struct{}

func (nopSink) Emit(Event) {}

// MaxEvents is the most events a run over steps steps can emit: a start and
// an outcome per step plus the terminal event.
func MaxEvents(steps int) int {
	return 2*steps + 1
}

// Stream is a Sink for a single observer. It is buffered to hold every event
// of a run, so the executor never waits for the observer. The executor closes
// it when the run ends.
type Stream struct {
	mu       sync.Mutex
	ch       chan Event
	closed   bool
	detached bool
}

func NewStream(size int) *Stream {
	if size <= 0 {
		size = MaxEvents(len(entity.StepTypes()))
	}
	return &Stream{ch: make(chan Event, size)}
}

func (s *Stream) Emit(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.detached {
		return
	}
	select {
	case s.ch <- e:
	default:
		// Buffer is sized for a full run; a full buffer means a misuse.
	}
}

// Events is closed after the terminal event.
func (s *Stream) Events() <-chan Event {
	return s.ch
}

// Detach stops delivery to the observer. The run itself is unaffected.
func (s *Stream) Detach() {
	s.mu.Lock()
	s.detached = true
	s.mu.Unlock()
}

func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}
