package match

import "math"

// Portion is a suggested serving size realizing approximately a calorie
// target. Grams is set for candidates with a known calorie density,
// Servings for per-serving candidates. Neither is set when the candidate
// carries no calorie value, in which case EstimatedCalories is nil too.
type Portion struct {
	Grams             *int
	Servings          *float64
	EstimatedCalories *int
}

// SuggestPortion computes the portion of candidate c that approximates
// target calories. Grams round to the nearest integer, serving counts to
// two decimal places, and estimated calories are recomputed from the
// rounded portion so the caller sees what the suggestion actually yields.
func SuggestPortion(c NormalizedCandidate, target float64) Portion {
	var p Portion

	switch {
	case c.CaloriesPer100 != nil && *c.CaloriesPer100 > 0:
		grams := int(math.Round(target / *c.CaloriesPer100 * 100))
		estimated := int(math.Round(float64(grams) * *c.CaloriesPer100 / 100))
		p.Grams = &grams
		p.EstimatedCalories = &estimated

	case c.CaloriesPerServing != nil && *c.CaloriesPerServing > 0:
		servings := round2(target / *c.CaloriesPerServing)
		estimated := int(math.Round(servings * *c.CaloriesPerServing))
		p.Servings = &servings
		p.EstimatedCalories = &estimated
	}

	return p
}

// round2 rounds to two decimal places
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// roundInt rounds to the nearest integer
func roundInt(v float64) int {
	return int(math.Round(v))
}
