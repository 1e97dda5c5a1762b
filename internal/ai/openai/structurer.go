package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/llms"

	"recipe-ingest-service/internal/ai"
	"recipe-ingest-service/internal/apperr"
	"recipe-ingest-service/internal/entity"
)

// Structurer implements ai.Structurer with a chat model in JSON mode.
type Structurer struct {
	model       llms.Model
	attempts    int
	temperature float64
	logger      *slog.Logger
}

var _ ai.Structurer = (*Structurer)(nil)

type structuredAnswer struct {
	IsRecipe     *bool               `json:"is_recipe"`
	Name         string              `json:"name"`
	Instructions string              `json:"instructions"`
	Ingredients  []entity.Ingredient `json:"ingredients"`
	Tags         []string            `json:"tags"`
}

func NewStructurer(cfg ai.Config) (*Structurer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := newClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create chat client: %w", err)
	}
	s := newStructurer(client, cfg.MaxAttempts)
	s.temperature = cfg.Temperature
	return s, nil
}

func newStructurer(model llms.Model, attempts int) *Structurer {
	if attempts <= 0 {
		attempts = 1
	}
	return &Structurer{
		model:    model,
		attempts: attempts,
		logger:   slog.Default().With("component", "openai-structurer"),
	}
}

// Structure asks the model for a recipe. An answer that does not decode is
// retried with a repair instruction up to the configured number of attempts.
func (s *Structurer) Structure(ctx context.Context, text string) (*entity.StructuredRecipe, error) {
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, structureSystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, text),
	}

	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		resp, err := s.model.GenerateContent(ctx, content,
			llms.WithTemperature(s.temperature),
			llms.WithJSONMode(),
		)
		if err != nil {
			s.logger.Error("chat completion failed", "attempt", attempt, "error", err)
			return nil, apperr.Wrap(apperr.InvocationError, "recipe structuring call failed", err)
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("model returned no choices")
			s.logger.Warn("empty model answer", "attempt", attempt)
			continue
		}

		raw := resp.Choices[0].Content
		answer, err := decodeAnswer(raw)
		if err != nil {
			lastErr = err
			s.logger.Warn("undecodable model answer", "attempt", attempt, "length", len(raw), "error", err)
			content = append(content,
				llms.TextParts(llms.ChatMessageTypeAI, raw),
				llms.TextParts(llms.ChatMessageTypeHuman, repairPrompt),
			)
			continue
		}

		if answer.IsRecipe != nil && !*answer.IsRecipe {
			return nil, apperr.New(apperr.Rejected, "content does not describe a recipe")
		}
		s.logger.Debug("recipe structured", "attempt", attempt, "ingredients", len(answer.Ingredients))
		return &entity.StructuredRecipe{
			Name:         answer.Name,
			Instructions: answer.Instructions,
			Ingredients:  answer.Ingredients,
			Tags:         answer.Tags,
		}, nil
	}

	return nil, apperr.Wrap(apperr.MalformedOutput,
		fmt.Sprintf("model output was not a valid recipe after %d attempts", s.attempts), lastErr)
}

func decodeAnswer(raw string) (*structuredAnswer, error) {
	cleaned := cleanResponse(raw)

	var answer structuredAnswer
	err := json.Unmarshal([]byte(cleaned), &answer)
	if err == nil {
		return &answer, nil
	}
	if err2 := json.Unmarshal([]byte(repairJSON(cleaned)), &answer); err2 == nil {
		return &answer, nil
	}
	return nil, err
}
