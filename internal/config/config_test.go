package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"ENVIRONMENT", "PORT", "API_NINJAS_URL", "FATSECRET_API_URL",
		"FATSECRET_TOKEN_URL", "OPENFOODFACTS_URL", "TOLERANCE_WINDOW",
		"MAX_RESULTS", "RETRY_ATTEMPTS", "RETRY_BASE_DELAY_MS", "UPSTREAM_TIMEOUT_MS",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "https://api.api-ninjas.com/v1/caloriesburned", cfg.APINinjasURL)
	assert.Equal(t, "https://platform.fatsecret.com/rest/server.api", cfg.FatSecretAPIURL)
	assert.Equal(t, "https://oauth.fatsecret.com/connect/token", cfg.FatSecretTokenURL)
	assert.Equal(t, "https://world.openfoodfacts.org", cfg.OpenFoodFactsURL)
	assert.Equal(t, 100.0, cfg.ToleranceWindow)
	assert.Equal(t, 5, cfg.MaxResults)
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.Equal(t, 600, cfg.RetryBaseDelayMS)
	assert.Equal(t, 30000, cfg.UpstreamTimeoutMS)
	assert.Equal(t, "8080", cfg.Port)
}

func TestLoadCustomValues(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("PORT", "9090")
	t.Setenv("TOLERANCE_WINDOW", "50.5")
	t.Setenv("MAX_RESULTS", "10")
	t.Setenv("RETRY_ATTEMPTS", "5")
	t.Setenv("API_NINJAS_KEY", "ninja-key")
	t.Setenv("FATSECRET_CLIENT_ID", "fs-id")
	t.Setenv("FATSECRET_CLIENT_SECRET", "fs-secret")

	cfg := Load()

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 50.5, cfg.ToleranceWindow)
	assert.Equal(t, 10, cfg.MaxResults)
	assert.Equal(t, 5, cfg.RetryAttempts)
	assert.Equal(t, "ninja-key", cfg.APINinjasKey)
	assert.Equal(t, "fs-id", cfg.FatSecretClientID)
	assert.Equal(t, "fs-secret", cfg.FatSecretClientSecret)
}

func TestLoadIgnoresUnparsableNumbers(t *testing.T) {
	t.Setenv("MAX_RESULTS", "plenty")
	t.Setenv("TOLERANCE_WINDOW", "wide")

	cfg := Load()

	assert.Equal(t, 5, cfg.MaxResults)
	assert.Equal(t, 100.0, cfg.ToleranceWindow)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "all credentials present",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing api ninjas key",
			mutate:  func(c *Config) { c.APINinjasKey = "" },
			wantErr: true,
		},
		{
			name:    "missing fatsecret client id",
			mutate:  func(c *Config) { c.FatSecretClientID = "" },
			wantErr: true,
		},
		{
			name:    "missing fatsecret client secret",
			mutate:  func(c *Config) { c.FatSecretClientSecret = "" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				APINinjasKey:          "key",
				FatSecretClientID:     "id",
				FatSecretClientSecret: "secret",
			}
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrMissingCredentials)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestIsDevelopment(t *testing.T) {
	assert.True(t, (&Config{Environment: "development"}).IsDevelopment())
	assert.True(t, (&Config{Environment: "dev"}).IsDevelopment())
	assert.False(t, (&Config{Environment: "production"}).IsDevelopment())
	assert.False(t, (&Config{Environment: ""}).IsDevelopment())
}

func TestDurations(t *testing.T) {
	cfg := &Config{RetryBaseDelayMS: 600, UpstreamTimeoutMS: 30000}

	assert.Equal(t, 600*time.Millisecond, cfg.RetryBaseDelay())
	assert.Equal(t, 30*time.Second, cfg.UpstreamTimeout())
}
