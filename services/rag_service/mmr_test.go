package rag_service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 3}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Zero(t, cosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}

func TestMaximalMarginalRelevance(t *testing.T) {
	query := []float32{1, 0}
	candidates := [][]float32{
		{0.9, 0.436},   // most relevant
		{0.9, 0.436},   // duplicate of 0
		{0.85, -0.527}, // relevant from another direction
		{0, 1},         // irrelevant
	}

	t.Run("pure relevance keeps ranking", func(t *testing.T) {
		assert.Equal(t, []int{0, 1, 2}, maximalMarginalRelevance(query, candidates, 3, 1))
	})

	t.Run("diversity skips the duplicate", func(t *testing.T) {
		got := maximalMarginalRelevance(query, candidates, 2, 0.7)
		assert.Equal(t, []int{0, 2}, got)
	})

	t.Run("pure diversity picks the orthogonal vector second", func(t *testing.T) {
		got := maximalMarginalRelevance(query, candidates, 2, 0)
		assert.Equal(t, []int{0, 3}, got)
	})

	t.Run("k larger than candidates", func(t *testing.T) {
		got := maximalMarginalRelevance(query, candidates, 10, 0.7)
		assert.Len(t, got, 4)
		assert.ElementsMatch(t, []int{0, 1, 2, 3}, got)
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, maximalMarginalRelevance(query, nil, 5, 0.7))
		assert.Empty(t, maximalMarginalRelevance(query, candidates, 0, 0.7))
	})
}
