package foodsource

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// Mock is an in-memory Source implementation for testing
type Mock struct {
	mu        sync.Mutex
	foods     []Food
	searchErr error
	detailErr error
	name      string
	log       *slog.Logger

	// Calls record every query and detail id seen. The pipeline fans out
	// over goroutines, so access goes through mu; read them via
	// RecordedSearches/RecordedDetails.
	searchCalls []string
	detailCalls []string
}

// Ensure Mock implements the Source interface
var _ Source = (*Mock)(nil)

// NewMock creates a mock source seeded with a few generic foods
func NewMock(logger *slog.Logger) *Mock {
	return &Mock{
		name: "mock",
		log:  logger,
		foods: []Food{
			{
				ID:   "33691",
				Name: "Chicken Breast",
				Servings: []ServingRecord{
					{Amount: 100, Unit: UnitMass, Calories: 165},
					{Unit: UnitServing, Calories: 231},
				},
			},
			{
				ID:   "35752",
				Name: "White Rice",
				Servings: []ServingRecord{
					{Amount: 100, Unit: UnitMass, Calories: 130},
				},
			},
			{
				ID:   "35718",
				Name: "Banana",
				Servings: []ServingRecord{
					{Amount: 118, Unit: UnitMass, Calories: 105},
					{Unit: UnitServing, Calories: 105},
				},
			},
		},
	}
}

// Name identifies this source
func (m *Mock) Name() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.name
}

// Search returns seeded foods whose name contains the query
func (m *Mock) Search(ctx context.Context, query string) ([]FoodRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.searchCalls = append(m.searchCalls, query)
	if m.searchErr != nil {
		return nil, m.searchErr
	}

	var refs []FoodRef
	for _, f := range m.foods {
		if query != "" && !contains(f.Name, query) {
			continue
		}
		refs = append(refs, FoodRef{ID: f.ID, Name: f.Name, Generic: true})
	}
	return refs, nil
}

// Detail returns the seeded food with the given id, or an empty food
func (m *Mock) Detail(ctx context.Context, id string) (*Food, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.detailCalls = append(m.detailCalls, id)
	if m.detailErr != nil {
		return nil, m.detailErr
	}

	for _, f := range m.foods {
		if f.ID == id {
			food := f
			return &food, nil
		}
	}
	return &Food{ID: id}, nil
}

// RecordedSearches returns a copy of every search query seen so far
func (m *Mock) RecordedSearches() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.searchCalls...)
}

// RecordedDetails returns a copy of every detail id seen so far
func (m *Mock) RecordedDetails() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.detailCalls...)
}

// SetFoods replaces the seeded foods
func (m *Mock) SetFoods(foods []Food) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.foods = foods
}

// SetSearchError makes Search fail with err
func (m *Mock) SetSearchError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchErr = err
}

// SetDetailError makes Detail fail with err
func (m *Mock) SetDetailError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detailErr = err
}

// SetName overrides the source name reported in results
func (m *Mock) SetName(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.name = name
}

// contains checks if a string contains a substring (case-insensitive)
func contains(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
