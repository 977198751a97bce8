package match

import (
	"math"

	"github.com/refuel-app/refuel-server/internal/foodsource"
)

// Normalize converts a serving record into calorie density, kcal per 100
// mass or volume units. Returns nil when the record cannot be normalized
// that way: per-serving records, non-positive amounts, and non-finite or
// negative calorie counts. Per-serving records are not an error; they are
// handled by the serving-count path instead.
func Normalize(r foodsource.ServingRecord) *float64 {
	if r.Unit != foodsource.UnitMass && r.Unit != foodsource.UnitVolume {
		return nil
	}
	if !(r.Amount > 0) || math.IsInf(r.Amount, 0) {
		return nil
	}
	if math.IsNaN(r.Calories) || math.IsInf(r.Calories, 0) || r.Calories < 0 {
		return nil
	}
	v := r.Calories * 100 / r.Amount
	return &v
}
