package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// ErrMissingCredentials indicates a required API credential is absent.
// Fatal: retrying cannot produce a credential.
var ErrMissingCredentials = errors.New("missing credentials")

// Config holds all configuration for the refuel server
type Config struct {
	// Environment
	Environment string

	// Activity calorie source (API Ninjas)
	APINinjasKey string
	APINinjasURL string

	// Primary food database source (FatSecret)
	FatSecretClientID     string
	FatSecretClientSecret string
	FatSecretAPIURL       string
	FatSecretTokenURL     string

	// Fallback food database source (Open Food Facts)
	OpenFoodFactsURL string

	// Matching policy
	ToleranceWindow float64
	MaxResults      int

	// Retry behavior
	RetryAttempts     int
	RetryBaseDelayMS  int
	UpstreamTimeoutMS int

	// Server
	Port string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Environment:           getEnv("ENVIRONMENT", "production"),
		APINinjasKey:          os.Getenv("API_NINJAS_KEY"),
		APINinjasURL:          getEnv("API_NINJAS_URL", "https://api.api-ninjas.com/v1/caloriesburned"),
		FatSecretClientID:     os.Getenv("FATSECRET_CLIENT_ID"),
		FatSecretClientSecret: os.Getenv("FATSECRET_CLIENT_SECRET"),
		FatSecretAPIURL:       getEnv("FATSECRET_API_URL", "https://platform.fatsecret.com/rest/server.api"),
		FatSecretTokenURL:     getEnv("FATSECRET_TOKEN_URL", "https://oauth.fatsecret.com/connect/token"),
		OpenFoodFactsURL:      getEnv("OPENFOODFACTS_URL", "https://world.openfoodfacts.org"),
		ToleranceWindow:       getEnvFloat("TOLERANCE_WINDOW", 100),
		MaxResults:            getEnvInt("MAX_RESULTS", 5),
		RetryAttempts:         getEnvInt("RETRY_ATTEMPTS", 3),
		RetryBaseDelayMS:      getEnvInt("RETRY_BASE_DELAY_MS", 600),
		UpstreamTimeoutMS:     getEnvInt("UPSTREAM_TIMEOUT_MS", 30000),
		Port:                  getEnv("PORT", "8080"),
	}
}

// Validate checks that required credentials are present.
// Called once at startup so a misconfigured deploy fails fast.
func (c *Config) Validate() error {
	if c.APINinjasKey == "" {
		return fmt.Errorf("%w: API_NINJAS_KEY is not set", ErrMissingCredentials)
	}
	if c.FatSecretClientID == "" || c.FatSecretClientSecret == "" {
		return fmt.Errorf("%w: FATSECRET_CLIENT_ID and FATSECRET_CLIENT_SECRET must be set", ErrMissingCredentials)
	}
	return nil
}

// IsDevelopment returns true when running in a development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// RetryBaseDelay returns the initial retry backoff as a duration
func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelayMS) * time.Millisecond
}

// UpstreamTimeout returns the per-call upstream timeout as a duration
func (c *Config) UpstreamTimeout() time.Duration {
	return time.Duration(c.UpstreamTimeoutMS) * time.Millisecond
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}
