package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"
)

// FoodsRequest represents the request payload for the meal matching endpoint
type FoodsRequest struct {
	TargetCalories float64  `json:"targetCalories"`
	Queries        []string `json:"queries,omitempty"`
}

// FoodsResponse represents the response from the meal matching endpoint
type FoodsResponse struct {
	TargetCalories float64                  `json:"targetCalories"`
	Results        []map[string]interface{} `json:"results"`
}

// CaloriesRequest represents the request payload for the activity endpoint
type CaloriesRequest struct {
	Activity string  `json:"activity"`
	Weight   float64 `json:"weight,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// CaloriesResponse represents the response from the activity endpoint
type CaloriesResponse struct {
	Results []map[string]interface{} `json:"results"`
}

const (
	baseURL     = "http://localhost:8080"
	maxDuration = 1 * time.Second
	testRuns    = 5
)

// Run the server with FOOD_SOURCE_MOCK=true before starting this driver,
// so results are deterministic and no upstream credentials are needed.
func main() {
	fmt.Printf("🧪 Running acceptance tests for refuel server\n")
	fmt.Printf("Expected: all requests complete in under %v\n\n", maxDuration)

	fmt.Printf("1. Testing health endpoint...\n")
	if err := testHealth(); err != nil {
		fmt.Printf("❌ Health check failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Health check passed\n\n")

	fmt.Printf("2. Testing activity calorie lookup...\n")
	if err := testCalories(); err != nil {
		fmt.Printf("❌ Activity lookup failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Activity lookup passed\n\n")

	fmt.Printf("3. Testing meal matching (%d runs)...\n", testRuns)

	req := FoodsRequest{
		TargetCalories: 600,
		Queries:        []string{"chicken", "rice"},
	}

	var totalDuration time.Duration
	var maxDur time.Duration
	var minDur = time.Hour

	for i := 1; i <= testRuns; i++ {
		start := time.Now()

		response, err := postFoods(req)
		if err != nil {
			fmt.Printf("❌ Test %d failed: %v\n", i, err)
			os.Exit(1)
		}

		duration := time.Since(start)
		totalDuration += duration
		if duration > maxDur {
			maxDur = duration
		}
		if duration < minDur {
			minDur = duration
		}

		if err := validateMatches(response); err != nil {
			fmt.Printf("❌ Test %d failed: %v\n", i, err)
			os.Exit(1)
		}

		status := "✅"
		if duration > maxDuration {
			status = "❌"
		}
		fmt.Printf("%s Test %d: %v (%d matches)\n", status, i, duration, len(response.Results))

		if duration > maxDuration {
			fmt.Printf("\n❌ FAILED: Request took %v, which exceeds the %v limit\n", duration, maxDuration)
			os.Exit(1)
		}
	}

	avgDuration := totalDuration / testRuns

	fmt.Printf("\n📊 Performance Summary:\n")
	fmt.Printf("   Runs: %d\n", testRuns)
	fmt.Printf("   Average: %v\n", avgDuration)
	fmt.Printf("   Min: %v\n", minDur)
	fmt.Printf("   Max: %v\n", maxDur)
	fmt.Printf("   Limit: %v\n", maxDuration)

	fmt.Printf("\n🎉 ALL TESTS PASSED!\n")
}

func testHealth() error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("expected status 200, got %d", resp.StatusCode)
	}
	return nil
}

func testCalories() error {
	response, err := postJSON("/api/calories", CaloriesRequest{
		Activity: "running",
		Weight:   170,
		Duration: 30,
	})
	if err != nil {
		return err
	}

	var parsed CaloriesResponse
	if err := json.Unmarshal(response, &parsed); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if len(parsed.Results) == 0 {
		return fmt.Errorf("no activity options returned")
	}
	for _, option := range parsed.Results {
		if name, ok := option["name"].(string); !ok || name == "" {
			return fmt.Errorf("activity option missing name: %v", option)
		}
	}
	return nil
}

func postFoods(req FoodsRequest) (*FoodsResponse, error) {
	body, err := postJSON("/api/foods", req)
	if err != nil {
		return nil, err
	}

	var response FoodsResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &response, nil
}

func postJSON(path string, payload interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequest("POST", baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return buf.Bytes(), nil
}

// validateMatches checks the shape and ordering of the meal suggestions
func validateMatches(response *FoodsResponse) error {
	if len(response.Results) == 0 {
		return fmt.Errorf("no matches returned")
	}
	if len(response.Results) > 5 {
		return fmt.Errorf("expected at most 5 matches, got %d", len(response.Results))
	}

	lastDistance := -1.0
	for i, match := range response.Results {
		name, ok := match["name"].(string)
		if !ok || name == "" {
			return fmt.Errorf("match %d missing name: %v", i, match)
		}
		if source, ok := match["source"].(string); !ok || source == "" {
			return fmt.Errorf("match %d missing source: %v", i, match)
		}

		kcal100, has100 := match["kcal_per_100"].(float64)
		kcalServing, hasServing := match["kcal_per_serving"].(float64)
		if !has100 && !hasServing {
			return fmt.Errorf("match %d has no calorie metric: %v", i, match)
		}

		// Results must be ordered by distance to the target
		metric := kcalServing
		if has100 {
			metric = kcal100
		}
		distance := response.TargetCalories - metric
		if distance < 0 {
			distance = -distance
		}
		if lastDistance >= 0 && distance < lastDistance {
			return fmt.Errorf("match %d out of order: distance %.1f after %.1f", i, distance, lastDistance)
		}
		lastDistance = distance

		if has100 {
			if grams, ok := match["suggested_portion_grams"].(float64); !ok || grams <= 0 {
				return fmt.Errorf("match %d missing portion suggestion: %v", i, match)
			}
		}
	}
	return nil
}
