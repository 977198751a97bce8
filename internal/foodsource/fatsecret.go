package foodsource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// FatSecret is the primary food database source, backed by the FatSecret
// platform REST API. Requests are authenticated with OAuth2 client
// credentials; the token source is owned by the client and refreshed
// transparently.
type FatSecret struct {
	apiURL     string
	client     *http.Client
	maxResults int
	log        *slog.Logger
}

// Ensure FatSecret implements the Source interface
var _ Source = (*FatSecret)(nil)

// FatSecretOptions configures a FatSecret client
type FatSecretOptions struct {
	APIURL       string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
	MaxResults   int
}

// NewFatSecret creates a FatSecret client from explicit credentials
func NewFatSecret(opts FatSecretOptions, logger *slog.Logger) *FatSecret {
	if opts.MaxResults <= 0 {
		opts.MaxResults = 20
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	cc := &clientcredentials.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		TokenURL:     opts.TokenURL,
		Scopes:       []string{"basic"},
	}

	// Token fetches share the same timeout as API calls
	base := &http.Client{Timeout: opts.Timeout}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)

	client := cc.Client(ctx)
	client.Timeout = opts.Timeout

	return &FatSecret{
		apiURL:     opts.APIURL,
		client:     client,
		maxResults: opts.MaxResults,
		log:        logger,
	}
}

// Name identifies this source in logs and results
func (f *FatSecret) Name() string {
	return "fatsecret"
}

// Search runs foods.search and maps the hits into FoodRefs
func (f *FatSecret) Search(ctx context.Context, query string) ([]FoodRef, error) {
	params := url.Values{}
	params.Set("method", "foods.search")
	params.Set("format", "json")
	params.Set("search_expression", query)
	params.Set("max_results", strconv.Itoa(f.maxResults))
	params.Set("page_number", "0")

	var payload fsSearchResponse
	if err := f.call(ctx, params, &payload); err != nil {
		return nil, err
	}

	hits := payload.Foods.Food.items()
	refs := make([]FoodRef, 0, len(hits))
	for _, hit := range hits {
		if hit.FoodID == "" {
			continue
		}
		refs = append(refs, FoodRef{
			ID:      hit.FoodID,
			Name:    hit.FoodName,
			Generic: hit.FoodType == "Generic",
		})
	}

	f.log.Debug("FatSecret search completed", "query", query, "hits", len(refs))
	return refs, nil
}

// Detail runs food.get and maps the serving list into strict records
func (f *FatSecret) Detail(ctx context.Context, id string) (*Food, error) {
	params := url.Values{}
	params.Set("method", "food.get")
	params.Set("format", "json")
	params.Set("food_id", id)

	var payload fsDetailResponse
	if err := f.call(ctx, params, &payload); err != nil {
		return nil, err
	}

	food := &Food{
		ID:   payload.Food.FoodID,
		Name: payload.Food.FoodName,
	}
	for _, s := range payload.Food.Servings.Serving.items() {
		food.Servings = append(food.Servings, s.toRecord())
	}

	f.log.Debug("FatSecret detail completed", "food_id", id, "servings", len(food.Servings))
	return food, nil
}

// call performs one signed GET against the REST endpoint
func (f *FatSecret) call(ctx context.Context, params url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: fatsecret request failed: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: fatsecret returned status %d: %s", ErrUnavailable, resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read fatsecret response: %v", ErrUnavailable, err)
	}

	// The API reports errors as a 200 with an error envelope
	var apiErr fsErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != nil {
		return fmt.Errorf("%w: fatsecret error %d: %s", ErrUnavailable, apiErr.Error.Code, apiErr.Error.Message)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: malformed fatsecret payload: %v", ErrUnavailable, err)
	}
	return nil
}

// --- loose wire types ---
//
// FatSecret serializes numbers as strings and collapses one-element arrays
// to bare objects. These helpers absorb both quirks at the boundary.

type fsSearchResponse struct {
	Foods struct {
		Food fsList[fsSearchHit] `json:"food"`
	} `json:"foods"`
}

type fsSearchHit struct {
	FoodID   string `json:"food_id"`
	FoodName string `json:"food_name"`
	FoodType string `json:"food_type"`
}

type fsDetailResponse struct {
	Food struct {
		FoodID   string `json:"food_id"`
		FoodName string `json:"food_name"`
		Servings struct {
			Serving fsList[fsServing] `json:"serving"`
		} `json:"servings"`
	} `json:"food"`
}

type fsServing struct {
	MetricServingAmount fsNumber `json:"metric_serving_amount"`
	MetricServingUnit   string   `json:"metric_serving_unit"`
	Calories            fsNumber `json:"calories"`
}

// toRecord maps a wire serving into the strict boundary type
func (s fsServing) toRecord() ServingRecord {
	rec := ServingRecord{
		Amount:   float64(s.MetricServingAmount),
		Calories: float64(s.Calories),
	}
	switch s.MetricServingUnit {
	case "g":
		rec.Unit = UnitMass
	case "ml":
		rec.Unit = UnitVolume
	default:
		rec.Unit = UnitServing
	}
	return rec
}

type fsErrorResponse struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// fsNumber decodes a JSON number that may arrive quoted
type fsNumber float64

func (n *fsNumber) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*n = 0
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" {
			*n = 0
			return nil
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid numeric string %q: %w", s, err)
		}
		*n = fsNumber(parsed)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*n = fsNumber(f)
	return nil
}

// fsList decodes a JSON value that may be a single object or an array
type fsList[T any] struct {
	values []T
}

func (l *fsList[T]) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		l.values = nil
		return nil
	}
	var many []T
	if err := json.Unmarshal(data, &many); err == nil {
		l.values = many
		return nil
	}
	var one T
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	l.values = []T{one}
	return nil
}

func (l fsList[T]) items() []T {
	return l.values
}
