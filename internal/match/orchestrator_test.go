package match

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refuel-app/refuel-server/internal/config"
	"github.com/refuel-app/refuel-server/internal/foodsource"
)

// flakySource fails its first failures searches, then serves foods
type flakySource struct {
	mu       sync.Mutex
	failures int
	calls    int
	foods    []foodsource.Food
}

func (f *flakySource) Name() string { return "flaky" }

func (f *flakySource) Search(ctx context.Context, query string) ([]foodsource.FoodRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		return nil, foodsource.ErrUnavailable
	}
	var refs []foodsource.FoodRef
	for _, food := range f.foods {
		refs = append(refs, foodsource.FoodRef{ID: food.ID, Name: food.Name, Generic: true})
	}
	return refs, nil
}

func (f *flakySource) Detail(ctx context.Context, id string) (*foodsource.Food, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, food := range f.foods {
		if food.ID == id {
			out := food
			return &out, nil
		}
	}
	return &foodsource.Food{ID: id}, nil
}

var testFoods = []foodsource.Food{
	{
		ID:   "rice-1",
		Name: "White Rice",
		Servings: []foodsource.ServingRecord{
			{Amount: 100, Unit: foodsource.UnitMass, Calories: 130},
		},
	},
}

func newTestOrchestrator(primary, fallback foodsource.Source) *Orchestrator {
	logger := config.NewTestLogger(io.Discard, "error")
	var fallbackPipeline *Pipeline
	if fallback != nil {
		fallbackPipeline = NewPipeline(fallback, false, DefaultToleranceWindow, DefaultMaxResults, logger)
	}
	return NewOrchestrator(
		NewPipeline(primary, true, DefaultToleranceWindow, DefaultMaxResults, logger),
		fallbackPipeline,
		OrchestratorOptions{Attempts: 3, BaseDelay: time.Millisecond},
		logger,
	)
}

func TestOrchestrator_PrimarySucceedsFirstAttempt(t *testing.T) {
	primary := &flakySource{foods: testFoods}
	fallback := &flakySource{failures: 999}

	results, err := newTestOrchestrator(primary, fallback).FindMeals(context.Background(), 130, []string{"rice"})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "rice-1", results[0].FoodID)
	assert.Equal(t, "flaky", results[0].Source)
}

func TestOrchestrator_RecoversOnThirdAttempt(t *testing.T) {
	// First two attempts fail, third succeeds; fallback must stay unused
	primary := &flakySource{failures: 2, foods: testFoods}
	fallback := &flakySource{}

	results, err := newTestOrchestrator(primary, fallback).FindMeals(context.Background(), 130, []string{"rice"})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "rice-1", results[0].FoodID)
	assert.Equal(t, 0, fallback.calls, "fallback must not be queried when primary recovers")
}

func TestOrchestrator_FallbackAfterExhaustedRetries(t *testing.T) {
	primary := &flakySource{failures: 999}
	fallback := &flakySource{foods: testFoods}

	results, err := newTestOrchestrator(primary, fallback).FindMeals(context.Background(), 130, []string{"rice"})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "rice-1", results[0].FoodID)
	// The fallback sees only the fixed seed set, never the live queries
	assert.Equal(t, len(FallbackSeedQueries), fallback.calls)
}

func TestOrchestrator_EmptyPrimaryTriggersFallback(t *testing.T) {
	primary := &flakySource{} // reachable but knows no foods
	fallback := &flakySource{foods: testFoods}

	results, err := newTestOrchestrator(primary, fallback).FindMeals(context.Background(), 130, nil)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "rice-1", results[0].FoodID)
}

func TestOrchestrator_EmptyPrimarySkipsRetries(t *testing.T) {
	logger := config.NewTestLogger(io.Discard, "error")
	primary := &flakySource{} // reachable but knows no foods
	fallback := &flakySource{foods: testFoods}

	// A base delay this long would dominate the test if any backoff ran
	o := NewOrchestrator(
		NewPipeline(primary, true, DefaultToleranceWindow, DefaultMaxResults, logger),
		NewPipeline(fallback, false, DefaultToleranceWindow, DefaultMaxResults, logger),
		OrchestratorOptions{Attempts: 3, BaseDelay: 10 * time.Second},
		logger,
	)

	start := time.Now()
	results, err := o.FindMeals(context.Background(), 130, []string{"rice"})
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, primary.calls, "an answered-but-empty primary must not be retried")
	assert.Equal(t, len(FallbackSeedQueries), fallback.calls)
	assert.Less(t, elapsed, time.Second)
}

func TestOrchestrator_BothEmptyYieldsEmptyNotError(t *testing.T) {
	results, err := newTestOrchestrator(&flakySource{}, &flakySource{}).FindMeals(context.Background(), 500, nil)

	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestOrchestrator_EmptyPrimaryFailingFallbackDegrades(t *testing.T) {
	primary := &flakySource{}
	fallback := &flakySource{failures: 999}

	results, err := newTestOrchestrator(primary, fallback).FindMeals(context.Background(), 500, nil)

	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestOrchestrator_BothSourcesUnreachable(t *testing.T) {
	primary := &flakySource{failures: 999}
	fallback := &flakySource{failures: 999}

	_, err := newTestOrchestrator(primary, fallback).FindMeals(context.Background(), 500, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, foodsource.ErrUnavailable)
}

func TestOrchestrator_NoFallbackConfigured(t *testing.T) {
	t.Run("exhausted with errors surfaces error", func(t *testing.T) {
		primary := &flakySource{failures: 999}

		_, err := newTestOrchestrator(primary, nil).FindMeals(context.Background(), 500, nil)

		require.Error(t, err)
		assert.ErrorIs(t, err, foodsource.ErrUnavailable)
	})

	t.Run("empty results stay empty", func(t *testing.T) {
		results, err := newTestOrchestrator(&flakySource{}, nil).FindMeals(context.Background(), 500, nil)

		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

func TestOrchestrator_BackoffDoubles(t *testing.T) {
	logger := config.NewTestLogger(io.Discard, "error")
	primary := &flakySource{failures: 999}

	base := 20 * time.Millisecond
	o := NewOrchestrator(
		NewPipeline(primary, true, DefaultToleranceWindow, DefaultMaxResults, logger),
		nil,
		OrchestratorOptions{Attempts: 3, BaseDelay: base},
		logger,
	)

	start := time.Now()
	_, err := o.FindMeals(context.Background(), 500, []string{"x"})
	elapsed := time.Since(start)

	require.Error(t, err)
	// Two backoff gaps: base and 2*base
	assert.GreaterOrEqual(t, elapsed, 3*base)
}

func TestOrchestrator_BackoffRespectsContextCancellation(t *testing.T) {
	primary := &flakySource{failures: 999}

	ctx, cancel := context.WithCancel(context.Background())
	o := newTestOrchestrator(primary, nil)

	// Use a long base delay so cancellation lands inside the backoff wait
	o.baseDelay = 10 * time.Second

	done := make(chan error, 1)
	go func() {
		_, err := o.FindMeals(ctx, 500, []string{"x"})
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("FindMeals did not return after context cancellation")
	}
}
