// Package search ranks committed recipes for a text query by blending vector
// similarity with weighted full-text rank.
package search

import (
	"bytes"
	"fmt"
	"slices"

	"recipe-ingest-service/internal/entity"
)

// Weights configures the hybrid score. Field weights are PostgreSQL tsvector
// labels, A (highest) to D.
type Weights struct {
	Semantic    float64 `yaml:"semantic"`
	Keyword     float64 `yaml:"keyword"`
	Name        string  `yaml:"name"`
	Tags        string  `yaml:"tags"`
	Ingredients string  `yaml:"ingredients"`
}

func DefaultWeights() Weights {
	return Weights{
		Semantic:    0.7,
		Keyword:     0.3,
		Name:        "A",
		Tags:        "B",
		Ingredients: "A",
	}
}

func (w Weights) Validate() error {
	if w.Semantic < 0 || w.Keyword < 0 {
		return fmt.Errorf("score weights must be non-negative (semantic=%v keyword=%v)", w.Semantic, w.Keyword)
	}
	if w.Semantic == 0 && w.Keyword == 0 {
		return fmt.Errorf("at least one score weight must be positive")
	}
	for field, label := range map[string]string{"name": w.Name, "tags": w.Tags, "ingredients": w.Ingredients} {
		switch label {
		case "A", "B", "C", "D":
		default:
			return fmt.Errorf("%s weight must be one of A, B, C, D, got %q", field, label)
		}
	}
	return nil
}

// CandidateQuery is what the recipe store needs to score candidates.
type CandidateQuery struct {
	Text    string
	Vector  []float32
	Weights Weights
	Limit   int
}

type Ranker struct {
	weights Weights
}

func NewRanker(w Weights) *Ranker {
	return &Ranker{weights: w}
}

func (r *Ranker) Weights() Weights {
	return r.weights
}

// Score combines cosine similarity and keyword rank into the final score.
func (r *Ranker) Score(similarity, keyword float64) float64 {
	return r.weights.Semantic*similarity + r.weights.Keyword*keyword
}

// Rank sets Score on every match and orders by score descending, then by
// recipe id ascending. The input slice is reordered in place and returned.
func (r *Ranker) Rank(matches []entity.RecipeMatch) []entity.RecipeMatch {
	for i := range matches {
		matches[i].Score = r.Score(matches[i].Similarity, matches[i].KeywordScore)
	}
	slices.SortStableFunc(matches, func(a, b entity.RecipeMatch) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return bytes.Compare(a.Recipe.ID[:], b.Recipe.ID[:])
	})
	return matches
}
