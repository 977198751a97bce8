package mcpgo

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refuel-app/refuel-server/internal/activity"
	"github.com/refuel-app/refuel-server/internal/config"
	"github.com/refuel-app/refuel-server/internal/foodsource"
	"github.com/refuel-app/refuel-server/internal/match"
)

func newServerForTest(t *testing.T) (*Server, *foodsource.Mock, *activity.MockSource) {
	t.Helper()

	logger := config.NewTestLogger(io.Discard, "error")
	primary := foodsource.NewMock(logger)
	fallback := foodsource.NewMock(logger)
	activities := activity.NewMockSource()

	orchestrator := match.NewOrchestrator(
		match.NewPipeline(primary, true, match.DefaultToleranceWindow, match.DefaultMaxResults, logger),
		match.NewPipeline(fallback, false, match.DefaultToleranceWindow, match.DefaultMaxResults, logger),
		match.OrchestratorOptions{Attempts: 3, BaseDelay: time.Millisecond},
		logger,
	)

	return NewServer(orchestrator, activities, logger), primary, activities
}

func callRequest(tool string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = tool
	req.Params.Arguments = args
	return req
}

func TestHandleFindMeals(t *testing.T) {
	srv, _, _ := newServerForTest(t)

	result, err := srv.handleFindMeals(context.Background(), callRequest("find_meals_for_calories", map[string]any{
		"target_calories": 600.0,
		"queries":         "chicken, rice",
	}))

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.IsError)

	response, ok := result.StructuredContent.(FindMealsResponse)
	require.True(t, ok)
	assert.True(t, response.Found)
	assert.Equal(t, 600.0, response.TargetCalories)
	assert.Equal(t, len(response.Results), response.Count)
	require.NotEmpty(t, response.Results)
	assert.Equal(t, "Chicken Breast", response.Results[0].Name)
}

func TestHandleFindMealsInvalidTarget(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing target", map[string]any{}},
		{"zero target", map[string]any{"target_calories": 0.0}},
		{"negative target", map[string]any{"target_calories": -100.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, primary, _ := newServerForTest(t)

			result, err := srv.handleFindMeals(context.Background(), callRequest("find_meals_for_calories", tt.args))

			require.NoError(t, err)
			assert.True(t, result.IsError)
			assert.Empty(t, primary.RecordedSearches())
		})
	}
}

func TestHandleFindMealsMaxResults(t *testing.T) {
	srv, _, _ := newServerForTest(t)

	result, err := srv.handleFindMeals(context.Background(), callRequest("find_meals_for_calories", map[string]any{
		"target_calories": 500.0,
		"max_results":     1.0,
	}))

	require.NoError(t, err)
	assert.False(t, result.IsError)

	response, ok := result.StructuredContent.(FindMealsResponse)
	require.True(t, ok)
	assert.LessOrEqual(t, response.Count, 1)
}

func TestHandleFindMealsCapsRequestedMaxResults(t *testing.T) {
	srv, primary, _ := newServerForTest(t)

	// More candidates than the pipeline maximum
	foods := make([]foodsource.Food, 7)
	for i := range foods {
		foods[i] = foodsource.Food{
			ID:   fmt.Sprintf("snack-%d", i),
			Name: fmt.Sprintf("Snack %d", i),
			Servings: []foodsource.ServingRecord{
				{Amount: 100, Unit: foodsource.UnitMass, Calories: float64(100 + i*10)},
			},
		}
	}
	primary.SetFoods(foods)

	result, err := srv.handleFindMeals(context.Background(), callRequest("find_meals_for_calories", map[string]any{
		"target_calories": 150.0,
		"queries":         "snack",
		"max_results":     10.0,
	}))

	require.NoError(t, err)
	assert.False(t, result.IsError)

	response, ok := result.StructuredContent.(FindMealsResponse)
	require.True(t, ok)
	// Requests above the pipeline maximum clamp to it
	assert.Equal(t, match.DefaultMaxResults, response.Count)
}

func TestHandleFindMealsUpstreamFailure(t *testing.T) {
	srv, primary, _ := newServerForTest(t)
	primary.SetSearchError(foodsource.ErrUnavailable)

	// The fallback mock still answers, so matching degrades rather than fails
	result, err := srv.handleFindMeals(context.Background(), callRequest("find_meals_for_calories", map[string]any{
		"target_calories": 500.0,
	}))

	require.NoError(t, err)
	assert.False(t, result.IsError)

	response, ok := result.StructuredContent.(FindMealsResponse)
	require.True(t, ok)
	assert.True(t, response.Found)
}

func TestHandleActivityCalories(t *testing.T) {
	srv, _, activities := newServerForTest(t)

	result, err := srv.handleActivityCalories(context.Background(), callRequest("lookup_activity_calories", map[string]any{
		"activity": "running",
		"weight":   170.0,
		"duration": 30.0,
	}))

	require.NoError(t, err)
	assert.False(t, result.IsError)

	response, ok := result.StructuredContent.(ActivityCaloriesResponse)
	require.True(t, ok)
	assert.True(t, response.Found)
	assert.Equal(t, 2, response.Count)

	require.Len(t, activities.Calls, 1)
	assert.Equal(t, activity.Query{Activity: "running", WeightLbs: 170, DurationMin: 30}, activities.Calls[0])
}

func TestHandleActivityCaloriesValidation(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing activity", map[string]any{}},
		{"blank activity", map[string]any{"activity": "   "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _, activities := newServerForTest(t)

			result, err := srv.handleActivityCalories(context.Background(), callRequest("lookup_activity_calories", tt.args))

			require.NoError(t, err)
			assert.True(t, result.IsError)
			assert.Empty(t, activities.Calls)
		})
	}
}

func TestHandleActivityCaloriesUpstreamFailure(t *testing.T) {
	srv, _, activities := newServerForTest(t)
	activities.SetError(foodsource.ErrUnavailable)

	result, err := srv.handleActivityCalories(context.Background(), callRequest("lookup_activity_calories", map[string]any{
		"activity": "running",
	}))

	require.NoError(t, err)
	assert.True(t, result.IsError)
}
