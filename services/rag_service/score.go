package rag_service

import "math"

// NormalizeDistance maps a raw distance to a similarity in (0, 1]:
// 0 maps to 1 and the score falls towards 0 as the distance grows.
// It is a ranking aid, not a calibrated probability.
func NormalizeDistance(distance float64) float64 {
	if distance < 0 {
		distance = 0
	}
	return 1 / (1 + distance)
}

// RoundScore rounds to 3 decimal places.
func RoundScore(score float64) float64 {
	return math.Round(score*1000) / 1000
}
