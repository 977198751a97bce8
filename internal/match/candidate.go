package match

import (
	"math"

	"github.com/refuel-app/refuel-server/internal/foodsource"
)

// NormalizedCandidate is one food reduced to a single comparable calorie
// metric. Exactly one of CaloriesPer100 and CaloriesPerServing is set;
// Distance is the absolute difference between that value and the target
// it was resolved against.
type NormalizedCandidate struct {
	ID                 string
	Name               string
	Source             string
	CaloriesPer100     *float64
	CaloriesPerServing *float64
	Distance           float64
}

// MatchResult is one ranked suggestion in the wire shape returned to the
// caller. Pointer fields are omitted when the underlying metric is unknown.
type MatchResult struct {
	FoodID                string   `json:"food_id"`
	Name                  string   `json:"name"`
	Source                string   `json:"source"`
	KcalPer100            *int     `json:"kcal_per_100,omitempty"`
	KcalPerServing        *int     `json:"kcal_per_serving,omitempty"`
	SuggestedPortionGrams *int     `json:"suggested_portion_grams,omitempty"`
	SuggestedServings     *float64 `json:"suggested_servings,omitempty"`
	EstimatedCalories     *int     `json:"estimated_calories,omitempty"`
}

// resolveCandidate reduces a food's servings to the single normalized value
// closest to target. The per-100 path wins when any serving normalizes by
// mass or volume; otherwise the per-serving path picks the serving calorie
// count closest to target. Ties keep the first-encountered serving so the
// result is deterministic for a given API response order. Returns nil when
// the food has no usable serving metric at all.
func resolveCandidate(food *foodsource.Food, ref foodsource.FoodRef, source string, target float64) *NormalizedCandidate {
	name := food.Name
	if name == "" {
		name = ref.Name
	}
	c := &NormalizedCandidate{
		ID:     food.ID,
		Name:   name,
		Source: source,
	}
	if c.ID == "" {
		c.ID = ref.ID
	}

	if best, ok := closestTo(target, normalizedValues(food.Servings)); ok {
		c.CaloriesPer100 = &best
		c.Distance = math.Abs(best - target)
		return c
	}

	if best, ok := closestTo(target, perServingValues(food.Servings)); ok {
		c.CaloriesPerServing = &best
		c.Distance = math.Abs(best - target)
		return c
	}

	return nil
}

func normalizedValues(servings []foodsource.ServingRecord) []float64 {
	var vals []float64
	for _, s := range servings {
		if v := Normalize(s); v != nil {
			vals = append(vals, *v)
		}
	}
	return vals
}

func perServingValues(servings []foodsource.ServingRecord) []float64 {
	var vals []float64
	for _, s := range servings {
		if s.Unit != foodsource.UnitServing {
			continue
		}
		if math.IsNaN(s.Calories) || math.IsInf(s.Calories, 0) || s.Calories < 0 {
			continue
		}
		vals = append(vals, s.Calories)
	}
	return vals
}

// closestTo picks the value with minimum absolute distance to target.
// Strict less-than keeps the earliest value on ties.
func closestTo(target float64, vals []float64) (float64, bool) {
	if len(vals) == 0 {
		return 0, false
	}
	best := vals[0]
	for _, v := range vals[1:] {
		if math.Abs(v-target) < math.Abs(best-target) {
			best = v
		}
	}
	return best, true
}
