package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requiredEnv sets the variables Load cannot default
func requiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ORDERDESK_SHEETS_SPREADSHEET_ID", "sheet-123")
	t.Setenv("ORDERDESK_BACKOFFICE_URL", "https://backoffice.example.com/login")
}

// inTempDir runs the test from an empty directory so no config.yaml or .env is picked up
func inTempDir(t *testing.T) {
	t.Helper()
	originalDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(originalDir) })
}

func TestLoad(t *testing.T) {
	t.Run("loads with defaults when only required env vars set", func(t *testing.T) {
		inTempDir(t)
		requiredEnv(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "8080", cfg.Server.Port)
		assert.Equal(t, "development", cfg.Server.Environment)
		assert.Equal(t, []string{"chrome-extension://*"}, cfg.Server.AllowedOrigins)
		assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)
		assert.Equal(t, "sheet-123", cfg.Sheets.SpreadsheetID)
		assert.Equal(t, "https://docs.google.com", cfg.Sheets.BaseURL)
		assert.Equal(t, "check_nueva_info_desvios", cfg.Sheets.DeviationsWorksheet)
		assert.Equal(t, "Cancelar", cfg.Sheets.CancellationsWorksheet)
		assert.Equal(t, "ReclamoAI", cfg.Sheets.ClaimsWorksheet)
		assert.InDelta(t, 0.8, cfg.Matching.SimilarityThreshold, 1e-9)
		assert.InDelta(t, 0.5, cfg.Matching.OverlapThreshold, 1e-9)
		assert.Equal(t, 1, cfg.Schedule.DeviationsDaysOffset)
		assert.Equal(t, 0, cfg.Schedule.ClaimsDaysOffset)
		assert.Equal(t, "memory", cfg.Cache.Type)
		assert.Equal(t, 24*time.Hour, cfg.Cache.RunTTL)
		assert.Equal(t, 720*time.Hour, cfg.Cache.LedgerTTL)
		assert.Equal(t, 10*time.Minute, cfg.Cache.CleanupInterval)
		assert.Equal(t, 100, cfg.RateLimit.PerIP)
		assert.Equal(t, 60, cfg.RateLimit.Sheets)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.Empty(t, cfg.Slack.WebhookURL)
	})

	t.Run("loads custom values from environment variables", func(t *testing.T) {
		inTempDir(t)
		requiredEnv(t)
		t.Setenv("ORDERDESK_SERVER_PORT", "9090")
		t.Setenv("ORDERDESK_SERVER_ENVIRONMENT", "production")
		t.Setenv("ORDERDESK_CACHE_TYPE", "redis")
		t.Setenv("ORDERDESK_CACHE_REDIS_URL", "redis://localhost:6379/0")
		t.Setenv("ORDERDESK_CACHE_LEDGER_TTL", "48h")
		t.Setenv("ORDERDESK_MATCHING_SIMILARITY_THRESHOLD", "0.9")
		t.Setenv("ORDERDESK_SLACK_TOKEN", "xoxb-1")
		t.Setenv("ORDERDESK_SLACK_CHANNEL", "#ops")
		t.Setenv("ORDERDESK_RATELIMIT_PER_IP", "200")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "9090", cfg.Server.Port)
		assert.Equal(t, "production", cfg.Server.Environment)
		assert.Equal(t, "redis", cfg.Cache.Type)
		assert.Equal(t, "redis://localhost:6379/0", cfg.Cache.RedisURL)
		assert.Equal(t, 48*time.Hour, cfg.Cache.LedgerTTL)
		assert.InDelta(t, 0.9, cfg.Matching.SimilarityThreshold, 1e-9)
		assert.Equal(t, "xoxb-1", cfg.Slack.Token)
		assert.Equal(t, "#ops", cfg.Slack.Channel)
		assert.Equal(t, 200, cfg.RateLimit.PerIP)
	})

	t.Run("reads config.yaml", func(t *testing.T) {
		inTempDir(t)
		requiredEnv(t)
		yaml := "cache:\n  type: bolt\n  bolt_path: /tmp/orderdesk.db\nschedule:\n  timezone: America/Mexico_City\n"
		require.NoError(t, os.WriteFile("config.yaml", []byte(yaml), 0o600))

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "bolt", cfg.Cache.Type)
		assert.Equal(t, "/tmp/orderdesk.db", cfg.Cache.BoltPath)
		assert.Equal(t, "America/Mexico_City", cfg.Schedule.Timezone)
	})

	t.Run("fails validation when spreadsheet ID is missing", func(t *testing.T) {
		inTempDir(t)
		t.Setenv("ORDERDESK_SHEETS_SPREADSHEET_ID", "")
		t.Setenv("ORDERDESK_BACKOFFICE_URL", "https://backoffice.example.com")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "spreadsheet ID is required")
	})

	t.Run("fails validation for invalid cache type", func(t *testing.T) {
		inTempDir(t)
		requiredEnv(t)
		t.Setenv("ORDERDESK_CACHE_TYPE", "invalid")

		_, err := Load()
		assert.Error(t, err)
	})
}

func TestLoadEnvFile(t *testing.T) {
	t.Run("returns nil when .env file doesn't exist", func(t *testing.T) {
		inTempDir(t)

		assert.NoError(t, loadEnvFile())
	})

	t.Run("loads variables and skips comments", func(t *testing.T) {
		inTempDir(t)
		envContent := `
# Comment line
ORDERDESK_TEST_VAR_1=value1
   # indented comment

export ORDERDESK_TEST_VAR_2="value2"
# ORDERDESK_TEST_COMMENTED=should_not_load
`
		require.NoError(t, os.WriteFile(".env", []byte(envContent), 0o600))
		t.Setenv("ORDERDESK_TEST_VAR_1", "")
		t.Setenv("ORDERDESK_TEST_VAR_2", "")
		os.Unsetenv("ORDERDESK_TEST_VAR_1")
		os.Unsetenv("ORDERDESK_TEST_VAR_2")

		require.NoError(t, loadEnvFile())

		assert.Equal(t, "value1", os.Getenv("ORDERDESK_TEST_VAR_1"))
		assert.Equal(t, "value2", os.Getenv("ORDERDESK_TEST_VAR_2"))
		_, found := os.LookupEnv("ORDERDESK_TEST_COMMENTED")
		assert.False(t, found)
	})

	t.Run("doesn't override existing environment variables", func(t *testing.T) {
		inTempDir(t)
		t.Setenv("ORDERDESK_TEST_OVERRIDE", "existing-value")
		require.NoError(t, os.WriteFile(".env", []byte("ORDERDESK_TEST_OVERRIDE=new-value"), 0o600))

		require.NoError(t, loadEnvFile())

		assert.Equal(t, "existing-value", os.Getenv("ORDERDESK_TEST_OVERRIDE"))
	})
}

func validConfig() *Config {
	return &Config{
		Sheets:     SheetsConfig{SpreadsheetID: "sheet-123"},
		Backoffice: BackofficeConfig{URL: "https://backoffice.example.com"},
		Matching:   MatchingConfig{SimilarityThreshold: 0.8, OverlapThreshold: 0.5},
		Schedule:   ScheduleConfig{Timezone: "UTC"},
		Cache:      CacheConfig{Type: "memory"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid memory config", mutate: func(c *Config) {}},
		{name: "valid redis config", mutate: func(c *Config) {
			c.Cache = CacheConfig{Type: "redis", RedisURL: "redis://localhost:6379"}
		}},
		{name: "valid bolt config", mutate: func(c *Config) {
			c.Cache = CacheConfig{Type: "bolt", BoltPath: "orderdesk.db"}
		}},
		{name: "threshold of one is allowed", mutate: func(c *Config) {
			c.Matching.SimilarityThreshold = 1
		}},
		{name: "missing backoffice", mutate: func(c *Config) { c.Backoffice.URL = "" }, wantErr: "backoffice URL"},
		{name: "zero similarity threshold", mutate: func(c *Config) {
			c.Matching.SimilarityThreshold = 0
		}, wantErr: "similarity threshold"},
		{name: "overlap threshold above one", mutate: func(c *Config) {
			c.Matching.OverlapThreshold = 1.5
		}, wantErr: "overlap threshold"},
		{name: "redis without URL", mutate: func(c *Config) { c.Cache.Type = "redis" }, wantErr: "Redis URL"},
		{name: "bolt without path", mutate: func(c *Config) { c.Cache.Type = "bolt" }, wantErr: "bolt path"},
		{name: "unknown cache type", mutate: func(c *Config) { c.Cache.Type = "memcached" }, wantErr: "cache type"},
		{name: "slack token without channel", mutate: func(c *Config) { c.Slack.Token = "xoxb-1" }, wantErr: "Slack channel"},
		{name: "unknown timezone", mutate: func(c *Config) { c.Schedule.Timezone = "Mars/Olympus" }, wantErr: "invalid timezone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
