package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/refuel-app/refuel-server/internal/activity"
	"github.com/refuel-app/refuel-server/internal/config"
	"github.com/refuel-app/refuel-server/internal/foodsource"
	"github.com/refuel-app/refuel-server/internal/match"
)

// CaloriesRequest is the JSON body for activity lookups
type CaloriesRequest struct {
	Activity string  `json:"activity"`
	Weight   float64 `json:"weight,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// CaloriesResponse is the JSON response for activity lookups
type CaloriesResponse struct {
	Results []activity.Option `json:"results"`
}

// FoodsRequest is the JSON body for meal matching
type FoodsRequest struct {
	TargetCalories float64  `json:"targetCalories"`
	Queries        []string `json:"queries"`
}

// FoodsResponse is the JSON response for meal matching
type FoodsResponse struct {
	TargetCalories float64            `json:"targetCalories"`
	Results        []match.MatchResult `json:"results"`
}

// ErrorResponse is the single error descriptor shape for all failures
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status string `json:"status"`
	Ready  bool   `json:"ready"`
}

// Server is the HTTP surface consumed by the UI layer
type Server struct {
	config       *config.Config
	activities   activity.Source
	orchestrator *match.Orchestrator
	log          *slog.Logger
	ready        bool
}

// New creates a server wired to the real data sources, or to mocks when
// FOOD_SOURCE_MOCK=true (used by the test suite)
func New(cfg *config.Config, logger *slog.Logger) *Server {
	orchestrator, activities := BuildCollaborators(cfg, logger)
	return NewWithSources(cfg, activities, orchestrator, logger)
}

// UseMockSources reports whether FOOD_SOURCE_MOCK=true is set, replacing
// every upstream with in-memory mocks. Mock mode needs no credentials.
func UseMockSources() bool {
	return os.Getenv("FOOD_SOURCE_MOCK") == "true"
}

// BuildCollaborators wires the matching orchestrator and the activity
// source from configuration. FOOD_SOURCE_MOCK=true substitutes in-memory
// mocks for every upstream (used by the test suite and the acceptance
// driver).
func BuildCollaborators(cfg *config.Config, logger *slog.Logger) (*match.Orchestrator, activity.Source) {
	if UseMockSources() {
		return BuildOrchestrator(cfg, foodsource.NewMock(logger), foodsource.NewMock(logger), logger), activity.NewMockSource()
	}

	primary := foodsource.NewFatSecret(foodsource.FatSecretOptions{
		APIURL:       cfg.FatSecretAPIURL,
		TokenURL:     cfg.FatSecretTokenURL,
		ClientID:     cfg.FatSecretClientID,
		ClientSecret: cfg.FatSecretClientSecret,
		Timeout:      cfg.UpstreamTimeout(),
	}, logger)
	fallback := foodsource.NewOpenFoodFacts(cfg.OpenFoodFactsURL, cfg.UpstreamTimeout(), logger)
	activities := activity.NewClient(cfg.APINinjasURL, cfg.APINinjasKey, cfg.UpstreamTimeout(), logger)

	return BuildOrchestrator(cfg, primary, fallback, logger), activities
}

// NewWithSources creates a server over explicit collaborators
func NewWithSources(cfg *config.Config, activities activity.Source, orchestrator *match.Orchestrator, logger *slog.Logger) *Server {
	return &Server{
		config:       cfg,
		activities:   activities,
		orchestrator: orchestrator,
		log:          logger,
	}
}

// BuildOrchestrator assembles the matching orchestrator from a primary and
// a fallback source using the configured policy. The generic-only filter
// applies to the primary source, which marks branded entries.
func BuildOrchestrator(cfg *config.Config, primary, fallback foodsource.Source, logger *slog.Logger) *match.Orchestrator {
	primaryPipeline := match.NewPipeline(primary, true, cfg.ToleranceWindow, cfg.MaxResults, logger)
	fallbackPipeline := match.NewPipeline(fallback, false, cfg.ToleranceWindow, cfg.MaxResults, logger)
	return match.NewOrchestrator(primaryPipeline, fallbackPipeline, match.OrchestratorOptions{
		Attempts:  cfg.RetryAttempts,
		BaseDelay: cfg.RetryBaseDelay(),
	}, logger)
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully
func (s *Server) Start(ctx context.Context) error {
	s.log.Info("Starting refuel server", "port", s.config.Port)

	if s.config.IsDevelopment() {
		s.log.Warn("Development mode enabled",
			"environment", s.config.Environment,
			"note", "Detailed error messages will be returned to clients")
	}

	if UseMockSources() {
		s.log.Warn("Mock food sources enabled; skipping credential validation")
	} else if err := s.config.Validate(); err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}
	s.ready = true

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/calories", s.handleCalories)
	mux.HandleFunc("/api/foods", s.handleFoods)

	server := &http.Server{
		Addr:         ":" + s.config.Port,
		Handler:      mux,
		ReadTimeout:  HTTPReadTimeout,
		WriteTimeout: HTTPWriteTimeout,
		IdleTimeout:  HTTPIdleTimeout,
	}

	go func() {
		s.log.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			s.log.Error("HTTP server error", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigChan:
	case <-ctx.Done():
	}

	s.log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		s.log.Error("Server shutdown error", "error", err)
	}

	s.log.Info("Server stopped")
	return nil
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status: "ok",
		Ready:  s.ready,
	}

	w.Header().Set("Content-Type", "application/json")
	if !s.ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	json.NewEncoder(w).Encode(response)
}

// handleCalories proxies activity calorie lookups. A failed lookup blocks
// the caller's flow (there is no target to match against), so upstream
// failures surface as errors here rather than degrading.
func (s *Server) handleCalories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
		return
	}

	var req CaloriesRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxRequestBodyBytes)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON body.", err)
		return
	}

	activityName := strings.TrimSpace(req.Activity)
	if activityName == "" {
		s.writeError(w, http.StatusBadRequest, "Activity is required.", nil)
		return
	}

	start := time.Now()
	options, err := s.activities.Search(r.Context(), activity.Query{
		Activity:    activityName,
		WeightLbs:   req.Weight,
		DurationMin: req.Duration,
	})
	if err != nil {
		s.log.Error("Activity lookup failed", "activity", activityName, "error", err)
		s.writeError(w, http.StatusBadGateway, "Failed to fetch activity data.", err)
		return
	}

	s.log.Info("Activity lookup completed", "activity", activityName, "options", len(options), "duration", time.Since(start))

	if options == nil {
		options = []activity.Option{}
	}
	s.writeJSON(w, http.StatusOK, CaloriesResponse{Results: options})
}

// handleFoods runs the meal matching pipeline. Zero matches is a valid,
// successful response; only bad input or both food sources being
// unreachable produce errors.
func (s *Server) handleFoods(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
		return
	}

	var req FoodsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxRequestBodyBytes)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON body.", err)
		return
	}

	if !(req.TargetCalories > 0) || math.IsInf(req.TargetCalories, 0) {
		s.writeError(w, http.StatusBadRequest, "targetCalories must be a positive number.", nil)
		return
	}

	queries := make([]string, 0, len(req.Queries))
	for _, q := range req.Queries {
		if trimmed := strings.TrimSpace(q); trimmed != "" {
			queries = append(queries, trimmed)
		}
	}

	start := time.Now()
	results, err := s.orchestrator.FindMeals(r.Context(), req.TargetCalories, queries)
	if err != nil {
		if errors.Is(err, foodsource.ErrUnavailable) {
			s.log.Error("Food sources unavailable", "error", err)
			s.writeError(w, http.StatusBadGateway, "Failed to fetch meal options.", err)
			return
		}
		s.log.Error("Meal matching failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Unexpected server error.", err)
		return
	}

	s.log.Info("Meal matching completed",
		"target_calories", req.TargetCalories,
		"queries", len(queries),
		"results", len(results),
		"duration", time.Since(start))

	s.writeJSON(w, http.StatusOK, FoodsResponse{
		TargetCalories: req.TargetCalories,
		Results:        results,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError sends the error descriptor, attaching detail only in
// development mode
func (s *Server) writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil && s.config.IsDevelopment() {
		resp.Details = err.Error()
	}
	s.writeJSON(w, status, resp)
}
