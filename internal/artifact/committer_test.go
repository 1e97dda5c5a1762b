package artifact

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipe-ingest-service/internal/apperr"
	"recipe-ingest-service/internal/entity"
	"recipe-ingest-service/internal/events"
)

type fakeStore struct {
	got     entity.StructuredRecipe
	gotType string
	err     error
	id      uuid.UUID
}

func (s *fakeStore) Commit(_ context.Context, _, _ uuid.UUID, rec entity.StructuredRecipe, embType string, _ []float32) (uuid.UUID, error) {
	s.got = rec
	s.gotType = embType
	return s.id, s.err
}

type recordingPublisher struct {
	events []events.RecipeCommitted
	err    error
}

func (p *recordingPublisher) PublishRecipeCommitted(_ context.Context, e events.RecipeCommitted) error {
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func qty(s string) *string { return &s }

func TestCommitter_NormalizesAndPublishes(t *testing.T) {
	store := &fakeStore{id: uuid.New()}
	pub := &recordingPublisher{}
	jobID, sourceID := uuid.New(), uuid.New()

	id, err := NewCommitter(store, pub).Commit(context.Background(), jobID, sourceID, entity.StructuredRecipe{
		Name:         "Pesto",
		Instructions: "Blend.",
		Ingredients: []entity.Ingredient{
			{Name: "Basil", Quantity: qty("1 bunch")},
			{Name: " basil ", Quantity: qty("2 bunches")},
		},
		Tags: []string{"Italian", "italian"},
	}, []float32{0.1})
	require.NoError(t, err)

	assert.Equal(t, store.id, id)
	assert.Equal(t, entity.EmbeddingTypeRecipe, store.gotType)
	require.Len(t, store.got.Ingredients, 1)
	assert.Equal(t, "1 bunch", *store.got.Ingredients[0].Quantity)
	assert.Equal(t, []string{"italian"}, store.got.Tags)

	require.Len(t, pub.events, 1)
	assert.Equal(t, id, pub.events[0].RecipeID)
	assert.Equal(t, jobID, pub.events[0].JobID)
}

func TestCommitter_StoreFailureIsCommitError(t *testing.T) {
	pub := &recordingPublisher{}

	_, err := NewCommitter(&fakeStore{err: errors.New("connection reset")}, pub).
		Commit(context.Background(), uuid.New(), uuid.New(), entity.StructuredRecipe{Name: "x"}, []float32{1})

	require.Error(t, err)
	assert.Equal(t, apperr.CommitError, apperr.KindOf(err))
	assert.Empty(t, pub.events)
}

func TestCommitter_PublishFailureIsIgnored(t *testing.T) {
	store := &fakeStore{id: uuid.New()}

	id, err := NewCommitter(store, &recordingPublisher{err: errors.New("broker down")}).
		Commit(context.Background(), uuid.New(), uuid.New(), entity.StructuredRecipe{Name: "x"}, []float32{1})

	require.NoError(t, err)
	assert.Equal(t, store.id, id)
}

func TestCommitter_EmptyVector(t *testing.T) {
	_, err := NewCommitter(&fakeStore{}, nil).
		Commit(context.Background(), uuid.New(), uuid.New(), entity.StructuredRecipe{Name: "x"}, nil)

	assert.Equal(t, apperr.CommitError, apperr.KindOf(err))
}
