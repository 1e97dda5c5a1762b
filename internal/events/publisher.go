// Package events announces committed recipes to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// RecipeCommitted is published once per recipe, after its commit.
type RecipeCommitted struct {
	RecipeID    uuid.UUID `json:"recipe_id"`
	SourceID    uuid.UUID `json:"source_id"`
	JobID       uuid.UUID `json:"job_id"`
	Name        string    `json:"name"`
	Tags        []string  `json:"tags"`
	CommittedAt time.Time `json:"committed_at"`
}

type Publisher interface {
	PublishRecipeCommitted(ctx context.Context, e RecipeCommitted) error
	Close() error
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// KafkaPublisher writes JSON events keyed by recipe id.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger *slog.Logger
}

func NewKafkaPublisher(cfg KafkaConfig) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  3,
		RequiredAcks: kafka.RequireAll,
	}
	return &KafkaPublisher{
		writer: w,
		logger: slog.Default().With("component", "kafka-publisher", "topic", cfg.Topic),
	}
}

func (p *KafkaPublisher) PublishRecipeCommitted(ctx context.Context, e RecipeCommitted) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := kafka.Message{Key: []byte(e.RecipeID.String()), Value: value}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish to kafka: %w", err)
	}
	p.logger.Debug("recipe event published", "recipe_id", e.RecipeID, "value_size", len(value))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops every event. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) PublishRecipeCommitted(context.Context, RecipeCommitted) error { return nil }
func (NopPublisher) Close() error                                                   { return nil }
