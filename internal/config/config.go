package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Feed     FeedConfig     `mapstructure:"feed"`
	Filter   FilterConfig   `mapstructure:"filter"`
	Pool     PoolConfig     `mapstructure:"pool"`
	Refresh  RefreshConfig  `mapstructure:"refresh"`
	Game     GameConfig     `mapstructure:"game"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// FeedConfig holds upstream market feed configuration
type FeedConfig struct {
	PublicURL      string         `mapstructure:"public_url"`
	AuthURL        string         `mapstructure:"auth_url"`
	Token          string         `mapstructure:"token"`
	MinTokenLength int            `mapstructure:"min_token_length"`
	Limit          int            `mapstructure:"limit"`
	Timeout        time.Duration  `mapstructure:"timeout"`
	MaxRetries     int            `mapstructure:"max_retries"`
	RetryDelayBase time.Duration  `mapstructure:"retry_delay_base"`
	Manifold       ManifoldConfig `mapstructure:"manifold"`
}

// ManifoldConfig enables Manifold Markets as an additional source
type ManifoldConfig struct {
	Enabled bool  `mapstructure:"enabled"`
	Limit   int64 `mapstructure:"limit"`
}

// FilterConfig holds market eligibility thresholds
type FilterConfig struct {
	MinQuestionLength int           `mapstructure:"min_question_length"`
	Denylist          []string      `mapstructure:"denylist"`
	StaleYearsFrom    int           `mapstructure:"stale_years_from"`
	MaxAge            time.Duration `mapstructure:"max_age"`
}

// PoolConfig holds pool partitioning configuration
type PoolConfig struct {
	DailyRatio float64 `mapstructure:"daily_ratio"`
	Timezone   string  `mapstructure:"timezone"`
}

// RefreshConfig holds fetch retry and backoff configuration
type RefreshConfig struct {
	StepUnit        time.Duration `mapstructure:"step_unit"`
	MaxBackoffSteps int           `mapstructure:"max_backoff_steps"`
	Interval        time.Duration `mapstructure:"interval"`
}

// GameConfig holds game mode configuration
type GameConfig struct {
	MaxRounds   int    `mapstructure:"max_rounds"`
	DailyPolicy string `mapstructure:"daily_policy"`
	FreePolicy  string `mapstructure:"free_policy"`
	PuzzleEpoch string `mapstructure:"puzzle_epoch"`
}

// StorageConfig holds score persistence configuration
type StorageConfig struct {
	Backend         string `mapstructure:"backend"` // file, sqlite or redis
	FilePath        string `mapstructure:"file_path"`
	DBPath          string `mapstructure:"db_path"`
	RedisAddr       string `mapstructure:"redis_addr"`
	RedisPassword   string `mapstructure:"redis_password"`
	RedisDB         int    `mapstructure:"redis_db"`
	FilePermissions uint32 `mapstructure:"file_permissions"`
	DirPermissions  uint32 `mapstructure:"dir_permissions"`
}

// TelegramConfig holds the share target configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// MetricsConfig holds Prometheus exposition configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables. A .env file
// in the working directory is loaded first if present. An empty path means
// defaults plus environment only.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Enable environment variable override
	v.SetEnvPrefix("PREDICTLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Feed defaults
	v.SetDefault("feed.public_url", "https://gamma-api.polymarket.com/markets?active=true&closed=false")
	v.SetDefault("feed.auth_url", "")
	v.SetDefault("feed.token", "")
	v.SetDefault("feed.min_token_length", 32)
	v.SetDefault("feed.limit", 200)
	v.SetDefault("feed.timeout", "15s")
	v.SetDefault("feed.max_retries", 2)
	v.SetDefault("feed.retry_delay_base", "500ms")
	v.SetDefault("feed.manifold.enabled", false)
	v.SetDefault("feed.manifold.limit", 200)

	// Filter defaults
	v.SetDefault("filter.min_question_length", 10)
	v.SetDefault("filter.denylist", []string{"test", "archive"})
	v.SetDefault("filter.stale_years_from", 2020)
	v.SetDefault("filter.max_age", "4320h")

	// Pool defaults
	v.SetDefault("pool.daily_ratio", 0.2)
	v.SetDefault("pool.timezone", "UTC")

	// Refresh defaults
	v.SetDefault("refresh.step_unit", "5s")
	v.SetDefault("refresh.max_backoff_steps", 6)
	v.SetDefault("refresh.interval", "10m")

	// Game defaults
	v.SetDefault("game.max_rounds", 5)
	v.SetDefault("game.daily_policy", "discrete")
	v.SetDefault("game.free_policy", "continuous")
	v.SetDefault("game.puzzle_epoch", "2024-01-01")

	// Storage defaults
	v.SetDefault("storage.backend", "file")
	v.SetDefault("storage.file_path", "./data/predictle.json")
	v.SetDefault("storage.db_path", "./data/predictle.db")
	v.SetDefault("storage.redis_addr", "localhost:6379")
	v.SetDefault("storage.redis_password", "")
	v.SetDefault("storage.redis_db", 0)
	v.SetDefault("storage.file_permissions", 0o600)
	v.SetDefault("storage.dir_permissions", 0o755)

	// Telegram defaults
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9108")
	v.SetDefault("metrics.path", "/metrics")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Feed config
	if c.Feed.PublicURL == "" {
		return fmt.Errorf("feed.public_url is required")
	}
	if c.Feed.Timeout <= 0 {
		return fmt.Errorf("feed.timeout must be positive")
	}
	if c.Feed.MaxRetries < 1 {
		return fmt.Errorf("feed.max_retries must be at least 1")
	}
	if c.Feed.MinTokenLength < 1 {
		return fmt.Errorf("feed.min_token_length must be at least 1")
	}
	if c.Feed.Token != "" && len(c.Feed.Token) >= c.Feed.MinTokenLength && c.Feed.AuthURL == "" {
		return fmt.Errorf("feed.auth_url is required when feed.token is set")
	}

	// Validate Filter config
	if c.Filter.MinQuestionLength < 0 {
		return fmt.Errorf("filter.min_question_length must not be negative")
	}
	if c.Filter.StaleYearsFrom < 0 {
		return fmt.Errorf("filter.stale_years_from must not be negative")
	}
	if c.Filter.MaxAge < 0 {
		return fmt.Errorf("filter.max_age must not be negative")
	}

	// Validate Pool config
	if c.Pool.DailyRatio < 0.0 || c.Pool.DailyRatio > 1.0 {
		return fmt.Errorf("pool.daily_ratio must be between 0.0 and 1.0")
	}
	if _, err := time.LoadLocation(c.Pool.Timezone); err != nil {
		return fmt.Errorf("pool.timezone is invalid: %w", err)
	}

	// Validate Refresh config
	if c.Refresh.StepUnit <= 0 {
		return fmt.Errorf("refresh.step_unit must be positive")
	}
	if c.Refresh.MaxBackoffSteps < 1 {
		return fmt.Errorf("refresh.max_backoff_steps must be at least 1")
	}
	if c.Refresh.Interval < 1*time.Minute {
		return fmt.Errorf("refresh.interval must be at least 1 minute")
	}

	// Validate Game config
	if c.Game.MaxRounds < 1 {
		return fmt.Errorf("game.max_rounds must be at least 1")
	}
	validPolicies := map[string]bool{"discrete": true, "continuous": true}
	if !validPolicies[c.Game.DailyPolicy] || !validPolicies[c.Game.FreePolicy] {
		return fmt.Errorf("game policies must be one of: discrete, continuous")
	}
	if _, err := time.Parse(time.DateOnly, c.Game.PuzzleEpoch); err != nil {
		return fmt.Errorf("game.puzzle_epoch must be a YYYY-MM-DD date: %w", err)
	}

	// Validate Storage config
	switch c.Storage.Backend {
	case "file":
		if c.Storage.FilePath == "" {
			return fmt.Errorf("storage.file_path is required for the file backend")
		}
	case "sqlite":
		if c.Storage.DBPath == "" {
			return fmt.Errorf("storage.db_path is required for the sqlite backend")
		}
	case "redis":
		if c.Storage.RedisAddr == "" {
			return fmt.Errorf("storage.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("storage.backend must be one of: file, sqlite, redis")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	// Validate Metrics config
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required when metrics are enabled")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// Location returns the timezone that keys the daily pool.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Pool.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
