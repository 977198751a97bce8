package foodsource

import (
	"context"
	"errors"
)

// ErrUnavailable indicates a data source could not be reached or returned
// an unusable response (network failure, non-2xx status, malformed payload).
// Callers may retry; a nil error with empty data means the source answered
// but had nothing usable.
var ErrUnavailable = errors.New("food source unavailable")

// Unit classifies how a serving amount is measured
type Unit int

const (
	// UnitServing is a per-serving record with no metric amount
	UnitServing Unit = iota
	// UnitMass is measured in grams
	UnitMass
	// UnitVolume is measured in milliliters
	UnitVolume
)

// String returns the wire name of the unit
func (u Unit) String() string {
	switch u {
	case UnitMass:
		return "g"
	case UnitVolume:
		return "ml"
	default:
		return "serving"
	}
}

// ServingRecord is one serving of a food mapped into strict form at the
// API boundary. Amount is the metric quantity for mass/volume units and
// is meaningless for UnitServing records.
type ServingRecord struct {
	Amount   float64
	Unit     Unit
	Calories float64
}

// FoodRef identifies a food returned from a search
type FoodRef struct {
	ID      string
	Name    string
	Generic bool
}

// Food is the full detail record for one food
type Food struct {
	ID       string
	Name     string
	Servings []ServingRecord
}

// Source is a food database that can be searched and queried for detail.
// Implementations are read-only, rate-limited and unreliable; callers own
// retry and fallback policy.
type Source interface {
	Search(ctx context.Context, query string) ([]FoodRef, error)
	Detail(ctx context.Context, id string) (*Food, error)
	Name() string
}
