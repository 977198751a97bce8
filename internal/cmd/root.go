package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/refuel-app/refuel-server/internal/config"
	"github.com/refuel-app/refuel-server/internal/mcpgo"
	"github.com/refuel-app/refuel-server/internal/server"
	"github.com/refuel-app/refuel-server/internal/version"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "refuel-server",
	Short: "Meal suggestions matched to calories burned",
	Long: `Refuel Server matches foods to the calories burned in a workout.

Given a calorie target it searches a food database, normalizes every
serving into a comparable kcal-per-100g metric, ranks candidates by
distance to the target and suggests a portion size that realizes it.
Activity calorie lookups are proxied from API Ninjas; food data comes
from FatSecret with Open Food Facts as an automatic fallback.

The server operates in three modes:

1. HTTP Mode (default): JSON API for the web UI
   - POST /api/calories: activity calorie lookup
   - POST /api/foods: meal matching for a calorie target
   - GET /health: readiness probe

2. STDIO Mode (--stdio): MCP server for local assistant integration
   - Tools: find_meals_for_calories, lookup_activity_calories
   - Communicates over stdio pipes; logs go to stderr

3. Match Mode (--match): run one match from the CLI and exit
   - Prints the JSON response for --target and --queries
   - Useful for smoke-testing credentials and the matching policy

Credentials are read from the environment (a .env file is honored):
API_NINJAS_KEY, FATSECRET_CLIENT_ID, FATSECRET_CLIENT_SECRET.
The Open Food Facts fallback needs no credentials.`,
	Version: version.String(),
	RunE: func(cmd *cobra.Command, args []string) error {
		if matchMode, _ := cmd.Flags().GetBool("match"); matchMode {
			return runMatchMode(cmd, args)
		}

		if stdio, _ := cmd.Flags().GetBool("stdio"); stdio {
			return runStdioMode(cmd, args)
		}
		return runHTTPMode(cmd, args)
	},
}

func init() {
	cobra.OnInitialize(loadDotEnv)

	rootCmd.Flags().Bool("stdio", false, "Run as an MCP server on stdio (default: HTTP mode)")
	rootCmd.Flags().Bool("match", false, "Run one meal match and exit")
	rootCmd.Flags().Float64("target", 500, "Calorie target for --match mode")
	rootCmd.Flags().String("queries", "", "Comma-separated food queries for --match mode")
}

// loadDotEnv loads a local .env file when present; absence is fine
func loadDotEnv() {
	_ = godotenv.Load()
}

// runHTTPMode runs the JSON API server for the web UI
func runHTTPMode(cmd *cobra.Command, args []string) error {
	logger := config.NewLogger(false)
	cfg := config.Load()

	logger.Info("Starting refuel server in HTTP mode",
		"mode", "http",
		"port", cfg.Port,
		"tolerance_window", cfg.ToleranceWindow,
		"max_results", cfg.MaxResults)

	srv := server.New(cfg, logger)
	return srv.Start(context.Background())
}

// runStdioMode runs the MCP server on stdio for local assistants
func runStdioMode(cmd *cobra.Command, args []string) error {
	// Logs go to stderr so stdout stays clean for MCP traffic
	logger := config.NewLogger(true)
	cfg := config.Load()

	logger.Info("Starting refuel server in STDIO mode",
		"mode", "stdio",
		"transport", "stdio pipes")

	if !server.UseMockSources() {
		if err := cfg.Validate(); err != nil {
			logger.Error("Configuration invalid", "error", err)
			return err
		}
	}

	orchestrator, activities := server.BuildCollaborators(cfg, logger)
	mcpSrv := mcpgo.NewServer(orchestrator, activities, logger)
	return mcpSrv.ServeStdio()
}

// runMatchMode runs one match against the live sources and prints the
// JSON response
func runMatchMode(cmd *cobra.Command, args []string) error {
	logger := config.NewTextLogger(os.Stderr)
	cfg := config.Load()

	if !server.UseMockSources() {
		if err := cfg.Validate(); err != nil {
			logger.Error("Configuration invalid", "error", err)
			return err
		}
	}

	target, _ := cmd.Flags().GetFloat64("target")
	if target <= 0 {
		return fmt.Errorf("--target must be a positive number of calories")
	}

	var queries []string
	rawQueries, _ := cmd.Flags().GetString("queries")
	for _, q := range strings.Split(rawQueries, ",") {
		if trimmed := strings.TrimSpace(q); trimmed != "" {
			queries = append(queries, trimmed)
		}
	}

	logger.Info("Running one-shot match", "target", target, "queries", queries)

	orchestrator, _ := server.BuildCollaborators(cfg, logger)
	results, err := orchestrator.FindMeals(context.Background(), target, queries)
	if err != nil {
		logger.Error("Match failed", "error", err)
		return err
	}

	out, err := json.MarshalIndent(map[string]interface{}{
		"targetCalories": target,
		"results":        results,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// Run is the main entry point for the CLI application
func Run() error {
	return Execute()
}
