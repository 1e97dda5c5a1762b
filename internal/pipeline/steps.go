package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"recipe-ingest-service/internal/ai"
	"recipe-ingest-service/internal/apperr"
	"recipe-ingest-service/internal/entity"
)

// RunContext carries step outputs forward within one run. It is never
// persisted; each step receives a copy and returns the next one.
type RunContext struct {
	Job        *entity.Job
	Source     *entity.Source
	Step       entity.Step
	Transcript string
	Recipe     *entity.StructuredRecipe
	Vector     []float32
}

// StepFunc runs one stage. It returns the updated context and a short
// reference to what it produced.
type StepFunc func(ctx context.Context, rc RunContext) (RunContext, string, error)

// Extractor pulls the text of a source.
type Extractor interface {
	ExtractText(ctx context.Context, ref string) (string, error)
}

// Capabilities are the external services the default steps call.
type Capabilities struct {
	Extractors map[entity.SourceKind]Extractor
	Structurer ai.Structurer
	Embedder   ai.Embedder
}

// defaultSteps binds each step type to the capability it needs. A missing
// capability leaves its step unbound.
func (e *Executor) defaultSteps(caps Capabilities) map[entity.StepType]StepFunc {
	steps := make(map[entity.StepType]StepFunc, len(entity.StepTypes()))
	if len(caps.Extractors) > 0 {
		steps[entity.StepExtractContent] = e.extractContent(caps.Extractors)
	}
	if caps.Structurer != nil {
		steps[entity.StepStructureContent] = e.structureContent(caps.Structurer)
	}
	if caps.Embedder != nil {
		steps[entity.StepGenerateEmbedding] = generateEmbedding(caps.Embedder)
	}
	return steps
}

func (e *Executor) extractContent(extractors map[entity.SourceKind]Extractor) StepFunc {
	return func(ctx context.Context, rc RunContext) (RunContext, string, error) {
		ex, ok := extractors[rc.Source.Kind]
		if !ok {
			return rc, "", apperr.Newf(apperr.Internal, "no extractor for source kind %q", rc.Source.Kind)
		}
		text, err := ex.ExtractText(ctx, rc.Source.ExternalRef)
		if err != nil {
			return rc, "", err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return rc, "", apperr.New(apperr.ContentUnextractable, "source has no text")
		}
		rc.Transcript = text
		return rc, e.saveContent(ctx, rc, "transcript", text), nil
	}
}

func (e *Executor) structureContent(s ai.Structurer) StepFunc {
	return func(ctx context.Context, rc RunContext) (RunContext, string, error) {
		rec, err := s.Structure(ctx, rc.Transcript)
		if err != nil {
			return rc, "", err
		}
		norm := rec.Normalized()
		if err := validateRecipe(norm); err != nil {
			return rc, "", err
		}
		rc.Recipe = &norm

		body, err := json.Marshal(norm)
		if err != nil {
			return rc, "", apperr.Wrap(apperr.Internal, "encode structured recipe", err)
		}
		return rc, e.saveContent(ctx, rc, "structured_recipe", string(body)), nil
	}
}

func generateEmbedding(emb ai.Embedder) StepFunc {
	return func(ctx context.Context, rc RunContext) (RunContext, string, error) {
		if rc.Recipe == nil {
			return rc, "", apperr.New(apperr.Internal, "no structured recipe to embed")
		}
		vec, err := emb.Embed(ctx, rc.Recipe.EmbeddingText())
		if err != nil {
			return rc, "", err
		}
		rc.Vector = vec
		return rc, fmt.Sprintf("vector:%d", len(vec)), nil
	}
}

func validateRecipe(r entity.StructuredRecipe) error {
	var missing []string
	if r.Name == "" {
		missing = append(missing, "name")
	}
	if r.Instructions == "" {
		missing = append(missing, "instructions")
	}
	if len(r.Ingredients) == 0 {
		missing = append(missing, "ingredients")
	}
	if len(missing) > 0 {
		return apperr.Newf(apperr.MalformedOutput, "structured recipe is missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// saveContent stores an audit copy of a step output. Failures are logged
// and never fail the step. The returned reference names the stored item, or
// just its kind when nothing was stored.
func (e *Executor) saveContent(ctx context.Context, rc RunContext, kind, body string) string {
	if e.content == nil {
		return kind
	}
	stepID := rc.Step.ID
	item, err := e.content.Save(ctx, rc.Source.ID, &stepID, kind, body)
	if err != nil {
		e.logger.Warn("content item not saved", "job_id", rc.Job.ID, "kind", kind, "error", err)
		return kind
	}
	return "content_item:" + item.ID.String()
}
