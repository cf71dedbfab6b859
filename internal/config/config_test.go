package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadAndValidate(t *testing.T) {
	// Create temp config file
	content := `
feed:
  public_url: "https://example.com/markets"
  timeout: 30s
  max_retries: 3

filter:
  min_question_length: 12
  denylist:
    - test
    - archive
  max_age: 720h

pool:
  daily_ratio: 0.25
  timezone: "America/New_York"

refresh:
  step_unit: 2s
  max_backoff_steps: 4

game:
  max_rounds: 7

storage:
  backend: sqlite
  db_path: "./data/test.db"

logging:
  level: "debug"
  format: "text"
`
	tmpfile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmpfile.Name())

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	// Test Load
	cfg, err := Load(tmpfile.Name())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Verify values
	if cfg.Feed.PublicURL != "https://example.com/markets" {
		t.Errorf("Unexpected feed URL: %s", cfg.Feed.PublicURL)
	}
	if cfg.Feed.Timeout != 30*time.Second {
		t.Errorf("Unexpected timeout: %s", cfg.Feed.Timeout)
	}
	if len(cfg.Filter.Denylist) != 2 {
		t.Errorf("Expected 2 denylist terms, got %d", len(cfg.Filter.Denylist))
	}
	if cfg.Filter.MaxAge != 720*time.Hour {
		t.Errorf("Unexpected max age: %s", cfg.Filter.MaxAge)
	}
	if cfg.Pool.DailyRatio != 0.25 {
		t.Errorf("Unexpected daily ratio: %f", cfg.Pool.DailyRatio)
	}
	if cfg.Refresh.StepUnit != 2*time.Second || cfg.Refresh.MaxBackoffSteps != 4 {
		t.Errorf("Unexpected refresh config: %+v", cfg.Refresh)
	}
	if cfg.Game.MaxRounds != 7 {
		t.Errorf("Expected 7 rounds, got %d", cfg.Game.MaxRounds)
	}

	// Defaults fill what the file leaves out
	if cfg.Game.DailyPolicy != "discrete" || cfg.Game.FreePolicy != "continuous" {
		t.Errorf("Unexpected default policies: %+v", cfg.Game)
	}
	if cfg.Feed.MinTokenLength != 32 {
		t.Errorf("Expected default min token length 32, got %d", cfg.Feed.MinTokenLength)
	}

	// Test Validate
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if cfg.Location().String() != "America/New_York" {
		t.Errorf("Unexpected location: %s", cfg.Location())
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Defaults should validate: %v", err)
	}
	if cfg.Filter.MinQuestionLength != 10 {
		t.Errorf("Expected min question length 10, got %d", cfg.Filter.MinQuestionLength)
	}
	if len(cfg.Filter.Denylist) != 2 || cfg.Filter.StaleYearsFrom != 2020 {
		t.Errorf("Expected denylist [test archive] from 2020, got %v from %d", cfg.Filter.Denylist, cfg.Filter.StaleYearsFrom)
	}
	if cfg.Filter.MaxAge != 180*24*time.Hour {
		t.Errorf("Expected max age 180 days, got %s", cfg.Filter.MaxAge)
	}
	if cfg.Location() != time.UTC && cfg.Location().String() != "UTC" {
		t.Errorf("Expected UTC, got %s", cfg.Location())
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("PREDICTLE_GAME_MAX_ROUNDS", "3")
	t.Setenv("PREDICTLE_STORAGE_BACKEND", "redis")
	t.Setenv("PREDICTLE_FEED_MANIFOLD_ENABLED", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Game.MaxRounds != 3 {
		t.Errorf("Expected env override of max rounds, got %d", cfg.Game.MaxRounds)
	}
	if cfg.Storage.Backend != "redis" {
		t.Errorf("Expected redis backend, got %s", cfg.Storage.Backend)
	}
	if !cfg.Feed.Manifold.Enabled {
		t.Error("Expected manifold to be enabled")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/predictle.yaml"); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return cfg
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "defaults",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name: "missing telegram token when enabled",
			mutate: func(c *Config) {
				c.Telegram.Enabled = true
				c.Telegram.ChatID = "42"
			},
			wantErr: true,
		},
		{
			name:    "negative stale years",
			mutate:  func(c *Config) { c.Filter.StaleYearsFrom = -1 },
			wantErr: true,
		},
		{
			name:    "invalid daily ratio",
			mutate:  func(c *Config) { c.Pool.DailyRatio = 1.5 },
			wantErr: true,
		},
		{
			name:    "unknown timezone",
			mutate:  func(c *Config) { c.Pool.Timezone = "Mars/Olympus_Mons" },
			wantErr: true,
		},
		{
			name:    "zero step unit",
			mutate:  func(c *Config) { c.Refresh.StepUnit = 0 },
			wantErr: true,
		},
		{
			name:    "zero rounds",
			mutate:  func(c *Config) { c.Game.MaxRounds = 0 },
			wantErr: true,
		},
		{
			name:    "unknown policy",
			mutate:  func(c *Config) { c.Game.FreePolicy = "lottery" },
			wantErr: true,
		},
		{
			name:    "unknown storage backend",
			mutate:  func(c *Config) { c.Storage.Backend = "postgres" },
			wantErr: true,
		},
		{
			name: "long token without auth url",
			mutate: func(c *Config) {
				c.Feed.Token = "0123456789abcdef0123456789abcdef"
				c.Feed.AuthURL = ""
			},
			wantErr: true,
		},
		{
			name:    "short token ignored",
			mutate:  func(c *Config) { c.Feed.Token = "abc" },
			wantErr: false,
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Logging.Level = "trace" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
