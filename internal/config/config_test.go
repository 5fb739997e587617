package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
storage:
  driver: memory
auth:
  jwt_secret: s3cret
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "eventory-pricing", cfg.AppName)
	assert.Equal(t, 30*time.Second, cfg.Pricing.RefreshInterval)
	assert.Equal(t, 10, cfg.Pricing.HistorySize)
	assert.Equal(t, int32(0), cfg.Pricing.RoundingPlaces)
	assert.Equal(t, "half_up", cfg.Pricing.RoundingMode)
	assert.Equal(t, "pricing.attendance", cfg.Redis.AttendanceChannel)
	assert.False(t, cfg.Kafka.Enabled)
}

func TestLoad_FileOverrides(t *testing.T) {
	path := writeConfig(t, `
app_name: pricing-test
storage:
  driver: postgres
postgres:
  dsn: postgres://localhost/eventory
pricing:
  refresh_interval: 10s
  rounding_places: 2
  rounding_mode: bankers
  watch_items: [evt-1, evt-2]
kafka:
  enabled: true
  brokers: [kafka-1:9092]
auth:
  jwt_secret: s3cret
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "pricing-test", cfg.AppName)
	assert.Equal(t, 10*time.Second, cfg.Pricing.RefreshInterval)
	assert.Equal(t, int32(2), cfg.Pricing.RoundingPlaces)
	assert.Equal(t, []string{"evt-1", "evt-2"}, cfg.Pricing.WatchItems)
	assert.Equal(t, []string{"kafka-1:9092"}, cfg.Kafka.Brokers)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
storage:
  driver: memory
auth:
  jwt_secret: from-file
`)
	t.Setenv("AUTH_JWT_SECRET", "from-env")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			AppName: "eventory-pricing",
			HTTP:    HTTPConfig{Address: ":8080"},
			Storage: StorageConfig{Driver: "memory"},
			Pricing: PricingConfig{RefreshInterval: time.Second, RefreshTimeout: time.Second, HistorySize: 10},
			Auth:    AuthConfig{JWTSecret: "x"},
		}
	}
	require.NoError(t, valid().Validate())

	fromFile := valid()
	fromFile.Auth = AuthConfig{JWTSecretFile: "jwt"}
	require.NoError(t, fromFile.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing dsn", func(c *Config) { c.Storage.Driver = "postgres" }},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "sqlite" }},
		{"redis without addr", func(c *Config) { c.Redis.Enabled = true }},
		{"kafka without topic", func(c *Config) { c.Kafka = KafkaConfig{Enabled: true, Brokers: []string{"b:9092"}} }},
		{"zero interval", func(c *Config) { c.Pricing.RefreshInterval = 0 }},
		{"zero history", func(c *Config) { c.Pricing.HistorySize = 0 }},
		{"negative places", func(c *Config) { c.Pricing.RoundingPlaces = -1 }},
		{"missing secret", func(c *Config) { c.Auth.JWTSecret = "" }},
		{"negative rate limit", func(c *Config) { c.HTTP.OrganizerRateLimit = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
