package activity

import "context"

// MockSource is an in-memory Source implementation for testing
type MockSource struct {
	options []Option
	err     error

	// Calls records every query seen, in order
	Calls []Query
}

// Ensure MockSource implements the Source interface
var _ Source = (*MockSource)(nil)

// NewMockSource creates a mock seeded with two running variants
func NewMockSource() *MockSource {
	return &MockSource{
		options: []Option{
			{Name: "Running, 5 mph (12 minute mile)", CaloriesPerHour: 606, DurationMinutes: 30, TotalCalories: 303},
			{Name: "Running, 6 mph (10 min mile)", CaloriesPerHour: 727, DurationMinutes: 30, TotalCalories: 364},
		},
	}
}

// Search returns the seeded options
func (m *MockSource) Search(ctx context.Context, q Query) ([]Option, error) {
	m.Calls = append(m.Calls, q)
	if m.err != nil {
		return nil, m.err
	}
	return m.options, nil
}

// SetOptions replaces the seeded options
func (m *MockSource) SetOptions(options []Option) {
	m.options = options
}

// SetError makes Search fail with err
func (m *MockSource) SetError(err error) {
	m.err = err
}
