package rag_service

import "math"

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// maximalMarginalRelevance picks up to k indices of candidates. The first pick
// is the candidate most similar to query; each following pick maximises
//
//	weight*sim(query, c) - (1-weight)*max(sim(c, s) for s already picked)
//
// so weight 1 ranks purely by relevance and weight 0 purely by diversity.
// Ties go to the earlier candidate.
func maximalMarginalRelevance(query []float32, candidates [][]float32, k int, weight float64) []int {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}
	k = min(k, len(candidates))

	relevance := make([]float64, len(candidates))
	for i, c := range candidates {
		relevance[i] = cosineSimilarity(query, c)
	}

	// redundancy[i] is the highest similarity of candidate i to any pick.
	redundancy := make([]float64, len(candidates))
	for i := range redundancy {
		redundancy[i] = math.Inf(-1)
	}
	picked := make([]bool, len(candidates))
	selected := make([]int, 0, k)

	for len(selected) < k {
		best, bestScore := -1, math.Inf(-1)
		for i := range candidates {
			if picked[i] {
				continue
			}
			score := relevance[i]
			if len(selected) > 0 {
				score = weight*relevance[i] - (1-weight)*redundancy[i]
			}
			if score > bestScore {
				best, bestScore = i, score
			}
		}
		picked[best] = true
		selected = append(selected, best)

		for i := range candidates {
			if !picked[i] {
				redundancy[i] = max(redundancy[i], cosineSimilarity(candidates[i], candidates[best]))
			}
		}
	}
	return selected
}
