package ai

import (
	"errors"
	"fmt"
)

// Config selects the chat and embedding models. BaseURL may point at any
// OpenAI-compatible server; Token may then be left empty.
type Config struct {
	BaseURL        string  `yaml:"base_url"`
	Token          string  `yaml:"token"`
	ChatModel      string  `yaml:"chat_model"`
	EmbeddingModel string  `yaml:"embedding_model"`
	Dimensions     int     `yaml:"dimensions"`
	MaxAttempts    int     `yaml:"max_attempts"`
	Temperature    float64 `yaml:"temperature"`
}

func DefaultConfig() Config {
	return Config{
		ChatModel:      "gpt-4o-mini",
		EmbeddingModel: "text-embedding-3-small",
		Dimensions:     1536,
		MaxAttempts:    3,
	}
}

func (c Config) Validate() error {
	if c.Token == "" && c.BaseURL == "" {
		return errors.New("ai: token is required unless base_url points at a local server")
	}
	if c.ChatModel == "" {
		return errors.New("ai: chat_model is required")
	}
	if c.EmbeddingModel == "" {
		return errors.New("ai: embedding_model is required")
	}
	if c.Dimensions <= 0 {
		return fmt.Errorf("ai: dimensions must be positive, got %d", c.Dimensions)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("ai: max_attempts must be positive, got %d", c.MaxAttempts)
	}
	return nil
}
