package mcpgo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/refuel-app/refuel-server/internal/activity"
	"github.com/refuel-app/refuel-server/internal/match"
)

// Server wraps the mark3labs MCP server around the matching pipeline
type Server struct {
	mcpServer    *server.MCPServer
	orchestrator *match.Orchestrator
	activities   activity.Source
	log          *slog.Logger
}

// FindMealsResponse is the structured result of find_meals_for_calories
type FindMealsResponse struct {
	TargetCalories float64             `json:"target_calories"`
	Found          bool                `json:"found"`
	Count          int                 `json:"count"`
	Results        []match.MatchResult `json:"results"`
}

// ActivityCaloriesResponse is the structured result of lookup_activity_calories
type ActivityCaloriesResponse struct {
	Found   bool              `json:"found"`
	Count   int               `json:"count"`
	Options []activity.Option `json:"options"`
}

// NewServer creates a new MCP server exposing the refuel tools
func NewServer(orchestrator *match.Orchestrator, activities activity.Source, logger *slog.Logger) *Server {
	mcpServer := server.NewMCPServer(
		"Refuel Server",
		"1.0.0",
		server.WithToolCapabilities(false), // Tools don't change dynamically
		server.WithRecovery(),              // Recover from panics
		server.WithLogging(),               // Enable logging
	)

	s := &Server{
		mcpServer:    mcpServer,
		orchestrator: orchestrator,
		activities:   activities,
		log:          logger,
	}

	s.addTools()

	return s
}

func (s *Server) addTools() {
	findMealsTool := mcp.NewTool("find_meals_for_calories",
		mcp.WithDescription("Find foods and portion sizes whose calorie content approximately matches a calorie target, e.g. calories burned in a workout."),
		mcp.WithNumber("target_calories",
			mcp.Required(),
			mcp.Min(1),
			mcp.Description("Calorie target to match, in kcal. Required and must be positive."),
		),
		mcp.WithString("queries",
			mcp.Description("Optional comma-separated food search terms. A default set of generic foods is used when omitted."),
		),
		mcp.WithNumber("max_results",
			mcp.Description(fmt.Sprintf("Maximum number of suggestions (default and max: %d)", match.DefaultMaxResults)),
			mcp.DefaultNumber(float64(match.DefaultMaxResults)),
			mcp.Min(1),
			mcp.Max(float64(match.DefaultMaxResults)),
		),
		mcp.WithOutputSchema[FindMealsResponse](),
		mcp.WithIdempotentHintAnnotation(true),
	)

	s.mcpServer.AddTool(findMealsTool, s.handleFindMeals)

	activityTool := mcp.NewTool("lookup_activity_calories",
		mcp.WithDescription("Look up estimated calorie burn for a physical activity, optionally personalized by weight and duration."),
		mcp.WithString("activity",
			mcp.Required(),
			mcp.MinLength(1),
			mcp.Description("Activity to look up, e.g. 'running'. Required and must be non-empty."),
		),
		mcp.WithNumber("weight",
			mcp.Description("Body weight in pounds. Omitted when not positive."),
		),
		mcp.WithNumber("duration",
			mcp.Description("Activity duration in minutes. Omitted when not positive."),
		),
		mcp.WithOutputSchema[ActivityCaloriesResponse](),
		mcp.WithIdempotentHintAnnotation(true),
	)

	s.mcpServer.AddTool(activityTool, s.handleActivityCalories)
}

func (s *Server) handleFindMeals(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.log.Debug("handleFindMeals: Starting tool call",
		"arguments", request.GetArguments())

	target := request.GetFloat("target_calories", 0)
	if !(target > 0) || math.IsInf(target, 0) {
		s.log.Warn("handleFindMeals: Invalid 'target_calories' parameter", "value", target)
		return mcp.NewToolResultError("Parameter 'target_calories' must be a positive number"), nil
	}

	var queries []string
	for _, q := range strings.Split(request.GetString("queries", ""), ",") {
		if trimmed := strings.TrimSpace(q); trimmed != "" {
			queries = append(queries, trimmed)
		}
	}

	s.log.Debug("MCP FindMeals called", "target_calories", target, "queries", queries)

	results, err := s.orchestrator.FindMeals(ctx, target, queries)
	if err != nil {
		s.log.Error("Meal matching failed", "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("Meal matching failed: %v", err)), nil
	}

	// The pipeline already caps at its configured maximum; the tool
	// parameter can only narrow further.
	maxResults := int(request.GetFloat("max_results", float64(match.DefaultMaxResults)))
	if maxResults > match.DefaultMaxResults {
		maxResults = match.DefaultMaxResults
	}
	if maxResults > 0 && len(results) > maxResults {
		results = results[:maxResults]
	}

	response := FindMealsResponse{
		TargetCalories: target,
		Found:          len(results) > 0,
		Count:          len(results),
		Results:        results,
	}

	responseJSON, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		s.log.Error("handleFindMeals: Failed to marshal response", "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("Failed to marshal response: %v", err)), nil
	}

	s.log.Debug("handleFindMeals: Returning structured result",
		"found", response.Found,
		"count", response.Count,
		"response_size", len(responseJSON))

	return mcp.NewToolResultStructured(response, string(responseJSON)), nil
}

func (s *Server) handleActivityCalories(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.log.Debug("handleActivityCalories: Starting tool call",
		"arguments", request.GetArguments())

	activityName, err := request.RequireString("activity")
	if err != nil {
		s.log.Warn("handleActivityCalories: Missing 'activity' parameter", "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("Missing required parameter 'activity': %v", err)), nil
	}
	if strings.TrimSpace(activityName) == "" {
		return mcp.NewToolResultError("Parameter 'activity' must be non-empty"), nil
	}

	q := activity.Query{
		Activity:    strings.TrimSpace(activityName),
		WeightLbs:   request.GetFloat("weight", 0),
		DurationMin: request.GetFloat("duration", 0),
	}

	s.log.Debug("MCP ActivityCalories called", "activity", q.Activity, "weight", q.WeightLbs, "duration", q.DurationMin)

	options, err := s.activities.Search(ctx, q)
	if err != nil {
		s.log.Error("Activity lookup failed", "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("Activity lookup failed: %v", err)), nil
	}

	response := ActivityCaloriesResponse{
		Found:   len(options) > 0,
		Count:   len(options),
		Options: options,
	}

	responseJSON, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		s.log.Error("handleActivityCalories: Failed to marshal response", "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("Failed to marshal response: %v", err)), nil
	}

	s.log.Debug("handleActivityCalories: Returning structured result",
		"found", response.Found,
		"count", response.Count,
		"response_size", len(responseJSON))

	return mcp.NewToolResultStructured(response, string(responseJSON)), nil
}

// ServeStdio serves the MCP server over stdio for local clients
func (s *Server) ServeStdio() error {
	s.log.Info("Starting MCP server in stdio mode")
	return server.ServeStdio(s.mcpServer)
}
