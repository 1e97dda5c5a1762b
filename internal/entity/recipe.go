package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const EmbeddingTypeRecipe = "recipe"

type Ingredient struct {
	Name     string  `json:"name"`
	Quantity *string `json:"quantity"`
}

// StructuredRecipe is the output of the structuring step, before it is committed.
type StructuredRecipe struct {
	Name         string       `json:"name"`
	Instructions string       `json:"instructions"`
	Ingredients  []Ingredient `json:"ingredients"`
	Tags         []string     `json:"tags"`
}

type Recipe struct {
	ID           uuid.UUID    `json:"id"`
	SourceID     uuid.UUID    `json:"source_id"`
	Name         string       `json:"name"`
	Instructions string       `json:"instructions"`
	Ingredients  []Ingredient `json:"ingredients"`
	Tags         []string     `json:"tags"`
	CreatedAt    time.Time    `json:"created_at"`
}

type Embedding struct {
	ID       uuid.UUID `json:"id"`
	RecipeID uuid.UUID `json:"recipe_id"`
	Type     string    `json:"type"`
	Vector   []float32 `json:"-"`
}

// RecipeMatch is a search hit with its score components.
type RecipeMatch struct {
	Recipe       Recipe  `json:"recipe"`
	Similarity   float64 `json:"similarity"`
	KeywordScore float64 `json:"keyword_score"`
	Score        float64 `json:"score"`
}

// NormalizeName trims, collapses inner whitespace and lower-cases s.
func NormalizeName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Normalized returns a copy with ingredient names and tags normalized and
// deduplicated. The first occurrence of a duplicate wins, quantity included.
func (r StructuredRecipe) Normalized() StructuredRecipe {
	out := StructuredRecipe{
		Name:         strings.TrimSpace(r.Name),
		Instructions: strings.TrimSpace(r.Instructions),
		Ingredients:  make([]Ingredient, 0, len(r.Ingredients)),
		Tags:         make([]string, 0, len(r.Tags)),
	}

	seen := make(map[string]struct{}, len(r.Ingredients))
	for _, ing := range r.Ingredients {
		name := NormalizeName(ing.Name)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		var qty *string
		if ing.Quantity != nil {
			if q := strings.TrimSpace(*ing.Quantity); q != "" {
				qty = &q
			}
		}
		out.Ingredients = append(out.Ingredients, Ingredient{Name: name, Quantity: qty})
	}

	seenTags := make(map[string]struct{}, len(r.Tags))
	for _, t := range r.Tags {
		tag := NormalizeName(t)
		if tag == "" {
			continue
		}
		if _, dup := seenTags[tag]; dup {
			continue
		}
		seenTags[tag] = struct{}{}
		out.Tags = append(out.Tags, tag)
	}

	return out
}

// IngredientsText joins ingredient names for full-text indexing.
func (r StructuredRecipe) IngredientsText() string {
	names := make([]string, len(r.Ingredients))
	for i, ing := range r.Ingredients {
		names[i] = ing.Name
	}
	return strings.Join(names, ", ")
}

// EmbeddingText is the document fed to the embedder for this recipe.
func (r StructuredRecipe) EmbeddingText() string {
	var b strings.Builder
	b.WriteString(r.Name)
	if len(r.Tags) > 0 {
		b.WriteString("\nTags: ")
		b.WriteString(strings.Join(r.Tags, ", "))
	}
	if len(r.Ingredients) > 0 {
		b.WriteString("\nIngredients: ")
		b.WriteString(r.IngredientsText())
	}
	if r.Instructions != "" {
		b.WriteString("\n")
		b.WriteString(r.Instructions)
	}
	return b.String()
}
