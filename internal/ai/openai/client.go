package openai

import (
	"github.com/tmc/langchaingo/llms/openai"

	"recipe-ingest-service/internal/ai"
)

func newClient(cfg ai.Config) (*openai.LLM, error) {
	token := cfg.Token
	if token == "" {
		// Local OpenAI-compatible servers ignore the token but the client requires one.
		token = "none"
	}
	opts := []openai.Option{
		openai.WithToken(token),
		openai.WithModel(cfg.ChatModel),
		openai.WithEmbeddingModel(cfg.EmbeddingModel),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	return openai.New(opts...)
}
