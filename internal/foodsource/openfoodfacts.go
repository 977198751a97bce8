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
)

const (
	// kJ to kcal conversion factor
	kjPerKcal = 4.184

	// Plausibility bound for kcal per 100g; values outside are discarded
	maxKcalPer100 = 10000
)

// OpenFoodFacts is the fallback food database source, backed by the public
// Open Food Facts API. It needs no credentials and is queried only with a
// small fixed seed set to stay well under the public rate limits.
type OpenFoodFacts struct {
	baseURL  string
	client   *http.Client
	pageSize int
	log      *slog.Logger
}

// Ensure OpenFoodFacts implements the Source interface
var _ Source = (*OpenFoodFacts)(nil)

// NewOpenFoodFacts creates an Open Food Facts client
func NewOpenFoodFacts(baseURL string, timeout time.Duration, logger *slog.Logger) *OpenFoodFacts {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenFoodFacts{
		baseURL:  baseURL,
		client:   &http.Client{Timeout: timeout},
		pageSize: 10,
		log:      logger,
	}
}

// Name identifies this source in logs and results
func (o *OpenFoodFacts) Name() string {
	return "openfoodfacts"
}

// Search queries the legacy search endpoint and maps products to FoodRefs
func (o *OpenFoodFacts) Search(ctx context.Context, query string) ([]FoodRef, error) {
	params := url.Values{}
	params.Set("search_terms", query)
	params.Set("search_simple", "1")
	params.Set("action", "process")
	params.Set("json", "1")
	params.Set("page_size", strconv.Itoa(o.pageSize))
	params.Set("fields", "code,product_name,product_name_en,generic_name")

	var payload offSearchResponse
	if err := o.get(ctx, o.baseURL+"/cgi/search.pl?"+params.Encode(), &payload); err != nil {
		return nil, err
	}

	refs := make([]FoodRef, 0, len(payload.Products))
	for _, p := range payload.Products {
		name := p.bestName()
		if p.Code == "" || name == "" {
			continue
		}
		// Open Food Facts is an all-products database with no
		// generic/branded split; every hit passes the generic filter.
		refs = append(refs, FoodRef{ID: p.Code, Name: name, Generic: true})
	}

	o.log.Debug("Open Food Facts search completed", "query", query, "hits", len(refs))
	return refs, nil
}

// Detail fetches one product by barcode and synthesizes serving records
// from its nutriments block
func (o *OpenFoodFacts) Detail(ctx context.Context, id string) (*Food, error) {
	var payload offProductResponse
	if err := o.get(ctx, o.baseURL+"/api/v2/product/"+url.PathEscape(id)+".json", &payload); err != nil {
		return nil, err
	}
	if payload.Status != 1 {
		// Product not found is a successful fetch with no usable data
		return &Food{ID: id}, nil
	}

	p := payload.Product
	food := &Food{ID: p.Code, Name: p.bestName()}
	if food.ID == "" {
		food.ID = id
	}

	if kcal, ok := p.kcalPer100(); ok {
		food.Servings = append(food.Servings, ServingRecord{
			Amount:   100,
			Unit:     UnitMass,
			Calories: kcal,
		})
	}
	if kcal, ok := extractFloat(p.Nutriments, "energy-kcal_serving"); ok && kcal >= 0 {
		rec := ServingRecord{Unit: UnitServing, Calories: kcal}
		// A known serving mass upgrades this to a normalizable record
		if qty := p.ServingQuantity.value(); qty > 0 {
			rec.Amount = qty
			rec.Unit = UnitMass
		}
		food.Servings = append(food.Servings, rec)
	}

	o.log.Debug("Open Food Facts detail completed", "code", id, "servings", len(food.Servings))
	return food, nil
}

func (o *OpenFoodFacts) get(ctx context.Context, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "refuel-server/1.0 (https://github.com/refuel-app/refuel-server)")

	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: openfoodfacts request failed: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: openfoodfacts returned status %d: %s", ErrUnavailable, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: malformed openfoodfacts payload: %v", ErrUnavailable, err)
	}
	return nil
}

// --- loose wire types ---

type offSearchResponse struct {
	Products []offProduct `json:"products"`
}

type offProductResponse struct {
	Status  int        `json:"status"`
	Product offProduct `json:"product"`
}

type offProduct struct {
	Code            string         `json:"code"`
	ProductName     string         `json:"product_name"`
	ProductNameEn   string         `json:"product_name_en"`
	GenericName     string         `json:"generic_name"`
	ServingQuantity offQuantity    `json:"serving_quantity"`
	Nutriments      map[string]any `json:"nutriments"`
}

// offQuantity decodes serving_quantity, which the dataset serves as either
// a number or a numeric string
type offQuantity struct {
	raw json.RawMessage
}

func (q *offQuantity) UnmarshalJSON(data []byte) error {
	q.raw = append(q.raw[:0], data...)
	return nil
}

func (q offQuantity) value() float64 {
	if len(q.raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(q.raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(q.raw, &s); err == nil {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return 0
}

// bestName returns the best available product name using the fallback
// order product_name, product_name_en, generic_name
func (p *offProduct) bestName() string {
	if p.ProductName != "" {
		return p.ProductName
	}
	if p.ProductNameEn != "" {
		return p.ProductNameEn
	}
	return p.GenericName
}

// kcalPer100 extracts kcal per 100g from nutriments. Prefers
// energy-kcal_100g and falls back to energy-kj_100g converted to kcal.
// Values outside [0, maxKcalPer100] are treated as absent.
func (p *offProduct) kcalPer100() (float64, bool) {
	if v, ok := extractFloat(p.Nutriments, "energy-kcal_100g"); ok && v >= 0 && v <= maxKcalPer100 {
		return v, true
	}
	if v, ok := extractFloat(p.Nutriments, "energy-kj_100g"); ok {
		kcal := v / kjPerKcal
		if kcal >= 0 && kcal <= maxKcalPer100 {
			return kcal, true
		}
	}
	return 0, false
}

// extractFloat coerces a nutriments map value to float64; the dataset
// mixes numbers with numeric strings
func extractFloat(m map[string]any, key string) (float64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch x := v.(type) {
	case float64:
		return x, true
	case string:
		if f, err := strconv.ParseFloat(x, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
