package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // schedule.timezone must load on hosts without zoneinfo

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	Backoffice BackofficeConfig
	Sheets     SheetsConfig
	Slack      SlackConfig
	Matching   MatchingConfig
	Schedule   ScheduleConfig
	Cache      CacheConfig
	RateLimit  RateLimitConfig
	Log        LogConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Environment     string        `mapstructure:"environment"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// BackofficeConfig points at the order backoffice the client automates
type BackofficeConfig struct {
	URL string `mapstructure:"url"`
}

// SheetsConfig holds the spreadsheet and its worksheet names
type SheetsConfig struct {
	SpreadsheetID          string `mapstructure:"spreadsheet_id"`
	BaseURL                string `mapstructure:"base_url"`
	DeviationsWorksheet    string `mapstructure:"deviations_worksheet"`
	CancellationsWorksheet string `mapstructure:"cancellations_worksheet"`
	ClaimsWorksheet        string `mapstructure:"claims_worksheet"`
}

// SlackConfig selects the chat destination: a webhook, or a bot token plus channel
type SlackConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
	Token      string `mapstructure:"token"`
	Channel    string `mapstructure:"channel"`
	APIBaseURL string `mapstructure:"api_base_url"`
}

// MatchingConfig holds product matcher thresholds
type MatchingConfig struct {
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	OverlapThreshold    float64 `mapstructure:"overlap_threshold"`
	EnableDebugLogging  bool    `mapstructure:"enable_debug_logging"`
}

// ScheduleConfig controls which sheet rows count as current
type ScheduleConfig struct {
	Timezone                string `mapstructure:"timezone"`
	DeviationsDaysOffset    int    `mapstructure:"deviations_days_offset"`
	CancellationsDaysOffset int    `mapstructure:"cancellations_days_offset"`
	ClaimsDaysOffset        int    `mapstructure:"claims_days_offset"`
}

// Location loads the configured timezone
func (s ScheduleConfig) Location() (*time.Location, error) {
	return time.LoadLocation(s.Timezone)
}

// CacheConfig holds store configuration
type CacheConfig struct {
	Type            string        `mapstructure:"type"` // "memory", "redis" or "bolt"
	RedisURL        string        `mapstructure:"redis_url"`
	RedisPrefix     string        `mapstructure:"redis_prefix"`
	BoltPath        string        `mapstructure:"bolt_path"`
	RunTTL          time.Duration `mapstructure:"run_ttl"`
	LedgerTTL       time.Duration `mapstructure:"ledger_ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP  int `mapstructure:"per_ip"`
	Burst  int `mapstructure:"burst"`
	Sheets int `mapstructure:"sheets"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/orderdesk/")

	// Environment variable settings: ORDERDESK_CACHE_REDIS_URL -> cache.redis_url
	v.SetEnvPrefix("ORDERDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values.
// Every key needs a default, even an empty one, so AutomaticEnv can fill it on Unmarshal.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"chrome-extension://*"})
	v.SetDefault("server.shutdown_timeout", "15s")

	v.SetDefault("backoffice.url", "")

	// Sheets defaults
	v.SetDefault("sheets.spreadsheet_id", "")
	v.SetDefault("sheets.base_url", "https://docs.google.com")
	v.SetDefault("sheets.deviations_worksheet", "check_nueva_info_desvios")
	v.SetDefault("sheets.cancellations_worksheet", "Cancelar")
	v.SetDefault("sheets.claims_worksheet", "ReclamoAI")

	// Slack defaults
	v.SetDefault("slack.webhook_url", "")
	v.SetDefault("slack.token", "")
	v.SetDefault("slack.channel", "")
	v.SetDefault("slack.api_base_url", "https://slack.com/api")

	// Matching defaults
	v.SetDefault("matching.similarity_threshold", 0.8)
	v.SetDefault("matching.overlap_threshold", 0.5)
	v.SetDefault("matching.enable_debug_logging", false)

	// Schedule defaults
	v.SetDefault("schedule.timezone", "America/Argentina/Buenos_Aires")
	v.SetDefault("schedule.deviations_days_offset", 1)
	v.SetDefault("schedule.cancellations_days_offset", 0)
	v.SetDefault("schedule.claims_days_offset", 0)

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.redis_prefix", "orderdesk:")
	v.SetDefault("cache.bolt_path", "orderdesk.db")
	v.SetDefault("cache.run_ttl", "24h")
	v.SetDefault("cache.ledger_ttl", "720h") // 30 days
	v.SetDefault("cache.cleanup_interval", "10m")

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 100)
	v.SetDefault("ratelimit.burst", 20)
	v.SetDefault("ratelimit.sheets", 60)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Sheets.SpreadsheetID == "" {
		return fmt.Errorf("spreadsheet ID is required (set ORDERDESK_SHEETS_SPREADSHEET_ID)")
	}

	if config.Backoffice.URL == "" {
		return fmt.Errorf("backoffice URL is required (set ORDERDESK_BACKOFFICE_URL)")
	}

	if !validThreshold(config.Matching.SimilarityThreshold) {
		return fmt.Errorf("similarity threshold must be in (0, 1], got: %v", config.Matching.SimilarityThreshold)
	}

	if !validThreshold(config.Matching.OverlapThreshold) {
		return fmt.Errorf("overlap threshold must be in (0, 1], got: %v", config.Matching.OverlapThreshold)
	}

	switch config.Cache.Type {
	case "memory":
	case "redis":
		if config.Cache.RedisURL == "" {
			return fmt.Errorf("Redis URL is required when cache type is 'redis'")
		}
	case "bolt":
		if config.Cache.BoltPath == "" {
			return fmt.Errorf("bolt path is required when cache type is 'bolt'")
		}
	default:
		return fmt.Errorf("cache type must be 'memory', 'redis' or 'bolt', got: %s", config.Cache.Type)
	}

	if config.Slack.Token != "" && config.Slack.Channel == "" {
		return fmt.Errorf("Slack channel is required when a bot token is set")
	}

	if _, err := config.Schedule.Location(); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", config.Schedule.Timezone, err)
	}

	return nil
}

func validThreshold(v float64) bool {
	return v > 0 && v <= 1
}

// loadEnvFile exports the variables of ./.env that are not already set.
// A missing file is not an error.
func loadEnvFile() error {
	err := gotenv.Load(".env")
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
