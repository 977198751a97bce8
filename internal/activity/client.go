// Package activity looks up estimated calorie burn for physical
// activities via the API Ninjas caloriesburned endpoint.
package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/refuel-app/refuel-server/internal/foodsource"
)

// Option is one activity variant with its calorie estimates
type Option struct {
	Name            string  `json:"name"`
	CaloriesPerHour float64 `json:"calories_per_hour"`
	DurationMinutes float64 `json:"duration_minutes"`
	TotalCalories   float64 `json:"total_calories"`
}

// TargetCalories derives the calorie target this option represents.
// TotalCalories wins when present; otherwise the total is derived from
// the hourly rate and the requested duration. Returns 0 when neither
// produces a positive value.
func (o Option) TargetCalories(durationMinutes float64) int {
	if o.TotalCalories > 0 && !math.IsInf(o.TotalCalories, 0) {
		return int(math.Round(o.TotalCalories))
	}
	if o.CaloriesPerHour > 0 && durationMinutes > 0 {
		return int(math.Round(o.CaloriesPerHour / 60 * durationMinutes))
	}
	return 0
}

// Query describes one activity lookup. Weight (lbs) and Duration
// (minutes) are optional; zero values are omitted from the request.
type Query struct {
	Activity    string
	WeightLbs   float64
	DurationMin float64
}

// Source is an activity calorie lookup service
type Source interface {
	Search(ctx context.Context, q Query) ([]Option, error)
}

// Client is the API Ninjas implementation of Source
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     *slog.Logger
}

// Ensure Client implements the Source interface
var _ Source = (*Client)(nil)

// NewClient creates an activity lookup client
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		log:     logger,
	}
}

// Search fetches the variants matching q. Weight and duration are only
// forwarded when positive and finite; the upstream applies its own
// defaults otherwise.
func (c *Client) Search(ctx context.Context, q Query) ([]Option, error) {
	params := url.Values{}
	params.Set("activity", q.Activity)
	if q.WeightLbs > 0 && !math.IsInf(q.WeightLbs, 0) {
		params.Set("weight", strconv.FormatFloat(q.WeightLbs, 'f', -1, 64))
	}
	if q.DurationMin > 0 && !math.IsInf(q.DurationMin, 0) {
		params.Set("duration", strconv.FormatFloat(q.DurationMin, 'f', -1, 64))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: activity lookup failed: %v", foodsource.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: activity source returned status %d: %s", foodsource.ErrUnavailable, resp.StatusCode, string(body))
	}

	var options []Option
	if err := json.NewDecoder(resp.Body).Decode(&options); err != nil {
		return nil, fmt.Errorf("%w: malformed activity payload: %v", foodsource.ErrUnavailable, err)
	}

	c.log.Debug("Activity lookup completed", "activity", q.Activity, "options", len(options))
	return options, nil
}
