package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuggestPortion_PerDensity(t *testing.T) {
	density := 200.0
	c := NormalizedCandidate{CaloriesPer100: &density}

	p := SuggestPortion(c, 500)

	require.NotNil(t, p.Grams)
	require.NotNil(t, p.EstimatedCalories)
	assert.Nil(t, p.Servings)
	assert.Equal(t, 250, *p.Grams)
	assert.Equal(t, 500, *p.EstimatedCalories)
}

func TestSuggestPortion_PerServing(t *testing.T) {
	perServing := 150.0
	c := NormalizedCandidate{CaloriesPerServing: &perServing}

	p := SuggestPortion(c, 500)

	require.NotNil(t, p.Servings)
	require.NotNil(t, p.EstimatedCalories)
	assert.Nil(t, p.Grams)
	assert.Equal(t, 3.33, *p.Servings)
	// 3.33 servings of 150 kcal is 499.5, rounded to the nearest integer
	assert.Equal(t, 500, *p.EstimatedCalories)
}

func TestSuggestPortion_DensityWinsOverServing(t *testing.T) {
	density := 100.0
	perServing := 150.0
	c := NormalizedCandidate{CaloriesPer100: &density, CaloriesPerServing: &perServing}

	p := SuggestPortion(c, 300)

	require.NotNil(t, p.Grams)
	assert.Equal(t, 300, *p.Grams)
	assert.Nil(t, p.Servings)
}

func TestSuggestPortion_NoCalorieValue(t *testing.T) {
	p := SuggestPortion(NormalizedCandidate{}, 500)

	assert.Nil(t, p.Grams)
	assert.Nil(t, p.Servings)
	assert.Nil(t, p.EstimatedCalories)
}

func TestSuggestPortion_ZeroDensityUnusable(t *testing.T) {
	density := 0.0
	c := NormalizedCandidate{CaloriesPer100: &density}

	p := SuggestPortion(c, 500)

	assert.Nil(t, p.Grams)
	assert.Nil(t, p.EstimatedCalories)
}

func TestSuggestPortion_GramsRounding(t *testing.T) {
	tests := []struct {
		name          string
		density       float64
		target        float64
		wantGrams     int
		wantEstimated int
	}{
		{"exact fit", 200, 500, 250, 500},
		{"round up", 165, 600, 364, 601},
		{"dense food small portion", 900, 450, 50, 450},
		{"low density large portion", 35, 500, 1429, 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NormalizedCandidate{CaloriesPer100: &tt.density}
			p := SuggestPortion(c, tt.target)

			require.NotNil(t, p.Grams)
			require.NotNil(t, p.EstimatedCalories)
			assert.Equal(t, tt.wantGrams, *p.Grams)
			assert.Equal(t, tt.wantEstimated, *p.EstimatedCalories)
		})
	}
}
