package entity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipe-ingest-service/internal/entity"
)

func ptr(s string) *string { return &s }

func TestStructuredRecipe_Normalized_DedupKeepsFirstQuantity(t *testing.T) {
	in := entity.StructuredRecipe{
		Name:         "  Garlic Noodles ",
		Instructions: "Boil. Toss.",
		Ingredients: []entity.Ingredient{
			{Name: "Garlic", Quantity: ptr("4 cloves")},
			{Name: "noodles", Quantity: ptr("200 g")},
			{Name: "  GARLIC  ", Quantity: ptr("1 head")},
			{Name: "garlic\t", Quantity: nil},
			{Name: "   ", Quantity: ptr("1")},
		},
		Tags: []string{"Quick", "quick ", "Asian  Style", "", "asian style"},
	}

	out := in.Normalized()

	require.Len(t, out.Ingredients, 2)
	assert.Equal(t, "garlic", out.Ingredients[0].Name)
	require.NotNil(t, out.Ingredients[0].Quantity)
	assert.Equal(t, "4 cloves", *out.Ingredients[0].Quantity)
	assert.Equal(t, "noodles", out.Ingredients[1].Name)
	assert.Equal(t, []string{"quick", "asian style"}, out.Tags)
	assert.Equal(t, "Garlic Noodles", out.Name)
}

func TestStructuredRecipe_Normalized_Idempotent(t *testing.T) {
	in := entity.StructuredRecipe{
		Name:        "Soup",
		Ingredients: []entity.Ingredient{{Name: "Salt ", Quantity: ptr(" ")}, {Name: "water"}},
		Tags:        []string{"Winter"},
	}

	once := in.Normalized()
	twice := once.Normalized()

	assert.Equal(t, once, twice)
	assert.Nil(t, once.Ingredients[0].Quantity, "blank quantity becomes null")
}

func TestStructuredRecipe_EmbeddingText(t *testing.T) {
	r := entity.StructuredRecipe{
		Name:         "toast",
		Instructions: "Toast the bread.",
		Ingredients:  []entity.Ingredient{{Name: "bread"}, {Name: "butter"}},
		Tags:         []string{"breakfast"},
	}

	assert.Equal(t, "toast\nTags: breakfast\nIngredients: bread, butter\nToast the bread.", r.EmbeddingText())
}

func TestJob_NextStep(t *testing.T) {
	j := entity.Job{Steps: []entity.Step{
		{Order: 0, Status: entity.StatusCompleted},
		{Order: 1, Status: entity.StatusCreated},
		{Order: 2, Status: entity.StatusCreated},
	}}
	assert.Equal(t, 1, j.NextStep())

	j.Steps[1].Status = entity.StatusCompleted
	j.Steps[2].Status = entity.StatusCompleted
	assert.Equal(t, 3, j.NextStep())
}

func TestStepTypes_OrderedAndValid(t *testing.T) {
	types := entity.StepTypes()
	require.Equal(t, []entity.StepType{
		entity.StepExtractContent,
		entity.StepStructureContent,
		entity.StepGenerateEmbedding,
	}, types)
	for _, st := range types {
		assert.True(t, st.Valid())
	}
	assert.False(t, entity.StepType("transcode").Valid())
}
