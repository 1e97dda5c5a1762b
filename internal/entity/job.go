package entity

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	StatusCreated    JobStatus = "created"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// StepStatus shares the job lifecycle: created -> processing -> completed | failed.
// A step left in created after its job failed was never attempted.
type StepStatus = JobStatus

// StepType is a closed, ordered set of pipeline stages.
type StepType string

const (
	StepExtractContent    StepType = "extract-content"
	StepStructureContent  StepType = "structure-content"
	StepGenerateEmbedding StepType = "generate-embedding"
)

// StepTypes returns the stages of a recipe ingestion job in execution order.
func StepTypes() []StepType {
	return []StepType{StepExtractContent, StepStructureContent, StepGenerateEmbedding}
}

func (t StepType) Valid() bool {
	switch t {
	case StepExtractContent, StepStructureContent, StepGenerateEmbedding:
		return true
	}
	return false
}

type Job struct {
	ID           uuid.UUID  `json:"id"`
	SourceID     uuid.UUID  `json:"source_id"`
	Status       JobStatus  `json:"status"`
	ErrorKind    *string    `json:"error_kind,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	Steps        []Step     `json:"steps"`
}

type Step struct {
	ID           uuid.UUID  `json:"id"`
	JobID        uuid.UUID  `json:"job_id"`
	Type         StepType   `json:"type"`
	Order        int        `json:"order"`
	Status       StepStatus `json:"status"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// NextStep returns the index of the first step that is not completed,
// or len(Steps) when every step is done.
func (j *Job) NextStep() int {
	for i, s := range j.Steps {
		if s.Status != StatusCompleted {
			return i
		}
	}
	return len(j.Steps)
}
