package match

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/refuel-app/refuel-server/internal/foodsource"
)

// Matching policy defaults, shared by every surface
const (
	DefaultToleranceWindow = 100.0
	DefaultMaxResults      = 5
)

// DefaultSeedQueries stands in for callers that supply no query hints
var DefaultSeedQueries = []string{
	"chicken", "beef", "salmon", "egg", "rice",
	"bread", "milk", "pasta", "potato", "banana",
}

// FallbackSeedQueries is the reduced fixed set used against the fallback
// source. The user's live queries are never forwarded there, to keep load
// on the secondary database minimal.
var FallbackSeedQueries = []string{"chicken", "rice", "banana"}

// Pipeline runs one search-resolve-match pass against a single food source
type Pipeline struct {
	source      foodsource.Source
	genericOnly bool
	tolerance   float64
	maxResults  int
	log         *slog.Logger
}

// NewPipeline creates a pipeline over source. genericOnly restricts search
// hits to generic (non-branded) foods, which cuts noise from near-duplicate
// branded products on sources that make the distinction.
func NewPipeline(source foodsource.Source, genericOnly bool, tolerance float64, maxResults int, logger *slog.Logger) *Pipeline {
	if tolerance <= 0 {
		tolerance = DefaultToleranceWindow
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	return &Pipeline{
		source:      source,
		genericOnly: genericOnly,
		tolerance:   tolerance,
		maxResults:  maxResults,
		log:         logger,
	}
}

// Run searches for candidates, resolves their calorie metrics and returns
// the ranked suggestions for target. An empty result with a nil error means
// the source answered but nothing was usable; a non-nil error means the
// attempt is retryable.
func (p *Pipeline) Run(ctx context.Context, target float64, queries []string) ([]MatchResult, error) {
	if len(queries) == 0 {
		queries = DefaultSeedQueries
	}

	refs, err := p.searchCandidates(ctx, queries)
	if err != nil {
		return nil, err
	}

	candidates, err := p.resolveCandidates(ctx, refs, target)
	if err != nil {
		return nil, err
	}

	matched := Match(candidates, target, p.tolerance, p.maxResults)

	results := make([]MatchResult, 0, len(matched))
	for _, c := range matched {
		results = append(results, toResult(c, target))
	}
	p.log.Debug("Pipeline run completed",
		"source", p.source.Name(),
		"queries", len(queries),
		"candidates", len(candidates),
		"results", len(results))
	return results, nil
}

// searchCandidates fans out one search per query and flattens the hits
// into a single deduplicated, order-preserving candidate list. A failed
// query is logged and dropped so the others still contribute; only when
// every query fails does the whole search fail.
func (p *Pipeline) searchCandidates(ctx context.Context, queries []string) ([]foodsource.FoodRef, error) {
	perQuery := make([][]foodsource.FoodRef, len(queries))
	var (
		mu      sync.Mutex
		lastErr error
		failed  int
	)

	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		g.Go(func() error {
			refs, err := p.source.Search(gctx, q)
			if err != nil {
				p.log.Warn("Search query failed, dropping it", "source", p.source.Name(), "query", q, "error", err)
				mu.Lock()
				failed++
				lastErr = err
				mu.Unlock()
				return nil
			}
			perQuery[i] = refs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if failed == len(queries) {
		return nil, fmt.Errorf("all %d search queries failed: %w", failed, lastErr)
	}

	seen := make(map[string]struct{})
	var flat []foodsource.FoodRef
	for _, refs := range perQuery {
		for _, ref := range refs {
			if p.genericOnly && !ref.Generic {
				continue
			}
			if _, dup := seen[ref.ID]; dup {
				continue
			}
			seen[ref.ID] = struct{}{}
			flat = append(flat, ref)
		}
	}
	return flat, nil
}

// resolveCandidates fetches detail for every candidate concurrently and
// keeps those with a usable calorie metric. Unlike search, a detail fetch
// failure aborts the attempt: it signals the source is misbehaving and the
// orchestrator should retry rather than rank a partial list.
func (p *Pipeline) resolveCandidates(ctx context.Context, refs []foodsource.FoodRef, target float64) ([]NormalizedCandidate, error) {
	resolved := make([]*NormalizedCandidate, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	for i, ref := range refs {
		g.Go(func() error {
			food, err := p.source.Detail(gctx, ref.ID)
			if err != nil {
				return fmt.Errorf("detail fetch for %q failed: %w", ref.ID, err)
			}
			resolved[i] = resolveCandidate(food, ref, p.source.Name(), target)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var candidates []NormalizedCandidate
	for _, c := range resolved {
		if c != nil {
			candidates = append(candidates, *c)
		}
	}
	return candidates, nil
}

// toResult converts a matched candidate into the wire shape, attaching the
// suggested portion for the target
func toResult(c NormalizedCandidate, target float64) MatchResult {
	r := MatchResult{
		FoodID: c.ID,
		Name:   strings.TrimSpace(c.Name),
		Source: c.Source,
	}
	if c.CaloriesPer100 != nil {
		kcal := roundInt(*c.CaloriesPer100)
		r.KcalPer100 = &kcal
	}
	if c.CaloriesPerServing != nil {
		kcal := roundInt(*c.CaloriesPerServing)
		r.KcalPerServing = &kcal
	}

	portion := SuggestPortion(c, target)
	r.SuggestedPortionGrams = portion.Grams
	r.SuggestedServings = portion.Servings
	r.EstimatedCalories = portion.EstimatedCalories
	return r
}
