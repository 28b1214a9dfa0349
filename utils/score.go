package utils

import "math"

// HealthScore is grams of protein per calorie. Items without a positive
// calorie count score 0.
func HealthScore(protein, calories float64) float64 {
	if calories <= 0 || math.IsNaN(calories) || math.IsNaN(protein) {
		return 0
	}
	score := protein / calories
	if score < 0 || math.IsInf(score, 0) {
		return 0
	}
	return score
}
