package match

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/refuel-app/refuel-server/internal/foodsource"
)

// Retry policy defaults
const (
	DefaultRetryAttempts  = 3
	DefaultRetryBaseDelay = 600 * time.Millisecond
)

// Orchestrator wraps the primary pipeline with bounded retries and a
// fallback source. One logical request moves Primary -> Retrying ->
// Fallback -> Done; the terminal state always yields a ranked list,
// possibly empty. Only total inability to reach either source surfaces
// as an error.
type Orchestrator struct {
	primary   *Pipeline
	fallback  *Pipeline
	attempts  int
	baseDelay time.Duration
	log       *slog.Logger
}

// OrchestratorOptions tunes retry behavior
type OrchestratorOptions struct {
	Attempts  int
	BaseDelay time.Duration
}

// NewOrchestrator builds an orchestrator over a primary and a fallback
// pipeline. fallback may be nil, in which case exhausted retries end the
// request with whatever the primary produced.
func NewOrchestrator(primary, fallback *Pipeline, opts OrchestratorOptions, logger *slog.Logger) *Orchestrator {
	if opts.Attempts <= 0 {
		opts.Attempts = DefaultRetryAttempts
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultRetryBaseDelay
	}
	return &Orchestrator{
		primary:   primary,
		fallback:  fallback,
		attempts:  opts.Attempts,
		baseDelay: opts.BaseDelay,
		log:       logger,
	}
}

// FindMeals runs the full matching flow for target calories. Queries may
// be empty; the primary pipeline substitutes its default seed set. The
// fallback source is only ever queried with the fixed fallback seeds.
func (o *Orchestrator) FindMeals(ctx context.Context, target float64, queries []string) ([]MatchResult, error) {
	var primaryErr error

	delay := o.baseDelay
	for attempt := 1; attempt <= o.attempts; attempt++ {
		if attempt > 1 {
			o.log.Info("Retrying primary food source",
				"attempt", attempt,
				"of", o.attempts,
				"backoff", delay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		results, err := o.primary.Run(ctx, target, queries)
		if err != nil {
			o.log.Warn("Primary attempt failed", "attempt", attempt, "error", err)
			primaryErr = err
			continue
		}
		primaryErr = nil
		if len(results) > 0 {
			return results, nil
		}
		// The source answered; empty data will not improve on retry, so
		// move straight to the fallback instead of burning the backoff.
		o.log.Info("Primary returned no usable results, skipping retries", "attempt", attempt)
		break
	}

	if o.fallback == nil {
		if primaryErr != nil {
			return nil, fmt.Errorf("primary food source exhausted after %d attempts: %w", o.attempts, primaryErr)
		}
		return []MatchResult{}, nil
	}

	o.log.Info("Primary exhausted, querying fallback source", "seed_queries", len(FallbackSeedQueries))
	results, err := o.fallback.Run(ctx, target, FallbackSeedQueries)
	if err != nil {
		if primaryErr != nil {
			// Both sources unreachable; nothing left to degrade to
			return nil, fmt.Errorf("%w: primary failed (%v) and fallback failed (%v)",
				foodsource.ErrUnavailable, primaryErr, err)
		}
		// Primary answered (just emptily), so degrade to an empty list
		o.log.Warn("Fallback source failed after empty primary results", "error", err)
		return []MatchResult{}, nil
	}
	return results, nil
}
