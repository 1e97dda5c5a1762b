package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type SourceKind string

const (
	KindYouTube SourceKind = "youtube"
)

// Source is one deduplicated external origin. (ExternalRef, Kind) is unique.
type Source struct {
	ID          uuid.UUID       `json:"id"`
	ExternalRef string          `json:"external_ref"`
	Kind        SourceKind      `json:"kind"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ContentItem is an audit copy of a step's raw output. The pipeline never reads it back.
type ContentItem struct {
	ID        uuid.UUID  `json:"id"`
	SourceID  uuid.UUID  `json:"source_id"`
	StepID    *uuid.UUID `json:"step_id,omitempty"`
	Kind      string     `json:"kind"`
	Body      string     `json:"body"`
	CreatedAt time.Time  `json:"created_at"`
}
