package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the pricing service
type Config struct {
	AppName  string         `mapstructure:"app_name"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Pricing  PricingConfig  `mapstructure:"pricing"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Log      LogConfig      `mapstructure:"log"`
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// OrganizerRateLimit is requests per minute per organizer and route,
	// enforced through Redis; 0 disables it
	OrganizerRateLimit int `mapstructure:"organizer_rate_limit"`
}

// StorageConfig selects the rule and sales-state backend
type StorageConfig struct {
	// Driver is "postgres" or "memory"
	Driver string `mapstructure:"driver"`
}

// PostgresConfig holds PostgreSQL configuration
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Addr              string        `mapstructure:"addr"`
	DB                int           `mapstructure:"db"`
	Password          string        `mapstructure:"password"`
	RuleTTL           time.Duration `mapstructure:"rule_ttl"`
	AttendanceChannel string        `mapstructure:"attendance_channel"`
	MirrorHistory     bool          `mapstructure:"mirror_history"`
}

// KafkaConfig holds configuration of the price change publisher
type KafkaConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Brokers  []string `mapstructure:"brokers"`
	Topic    string   `mapstructure:"topic"`
	ClientID string   `mapstructure:"client_id"`
}

// PricingConfig holds evaluation and publication settings
type PricingConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	RefreshTimeout  time.Duration `mapstructure:"refresh_timeout"`
	HistorySize     int           `mapstructure:"history_size"`
	RoundingPlaces  int32         `mapstructure:"rounding_places"`
	RoundingMode    string        `mapstructure:"rounding_mode"`
	// WatchItems are started on boot in addition to items watched over HTTP
	WatchItems []string `mapstructure:"watch_items"`
}

// AuthConfig holds organizer authentication configuration
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	// JWTSecretFile is read when JWTSecret is empty; relative paths resolve
	// against /run/secrets
	JWTSecretFile string `mapstructure:"jwt_secret_file"`
	Issuer        string `mapstructure:"issuer"`
}

// MetricsConfig holds Prometheus server configuration
type MetricsConfig struct {
	Address string `mapstructure:"address"`
}

// TracingConfig holds OpenTelemetry configuration
type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	SamplingRatio  float64 `mapstructure:"sampling_ratio"`
	Environment    string  `mapstructure:"environment"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return unmarshal(v)
}

// LoadFromEnv loads configuration from environment variables only
func LoadFromEnv() (*Config, error) {
	return unmarshal(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values. Every key needs a default
// so AutomaticEnv can override it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app_name", "eventory-pricing")
	v.SetDefault("http.address", ":8080")
	v.SetDefault("http.read_timeout", 5*time.Second)
	v.SetDefault("http.write_timeout", 10*time.Second)
	v.SetDefault("http.organizer_rate_limit", 120)
	v.SetDefault("storage.driver", "postgres")
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.rule_ttl", time.Minute)
	v.SetDefault("redis.attendance_channel", "pricing.attendance")
	v.SetDefault("redis.mirror_history", true)
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "pricing.price-changes")
	v.SetDefault("kafka.client_id", "eventory-pricing")
	v.SetDefault("pricing.refresh_interval", 30*time.Second)
	v.SetDefault("pricing.refresh_timeout", 5*time.Second)
	v.SetDefault("pricing.history_size", 10)
	v.SetDefault("pricing.rounding_places", 0)
	v.SetDefault("pricing.rounding_mode", "half_up")
	v.SetDefault("pricing.watch_items", []string{})
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.jwt_secret_file", "")
	v.SetDefault("auth.issuer", "eventory")
	v.SetDefault("metrics.address", ":9090")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.jaeger_endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("tracing.sampling_ratio", 1.0)
	v.SetDefault("tracing.environment", "development")
	v.SetDefault("log.level", "info")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.AppName == "" {
		return fmt.Errorf("app_name is required")
	}
	if c.HTTP.Address == "" {
		return fmt.Errorf("http.address is required")
	}
	if c.HTTP.OrganizerRateLimit < 0 {
		return fmt.Errorf("http.organizer_rate_limit must not be negative")
	}
	switch c.Storage.Driver {
	case "postgres":
		if c.Postgres.DSN == "" {
			return fmt.Errorf("postgres.dsn is required")
		}
		if c.Postgres.MaxConns <= 0 {
			return fmt.Errorf("postgres.max_conns must be greater than 0")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported storage.driver: %s", c.Storage.Driver)
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers is required")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("kafka.topic is required")
		}
	}
	if c.Pricing.RefreshInterval <= 0 {
		return fmt.Errorf("pricing.refresh_interval must be greater than 0")
	}
	if c.Pricing.RefreshTimeout <= 0 {
		return fmt.Errorf("pricing.refresh_timeout must be greater than 0")
	}
	if c.Pricing.HistorySize <= 0 {
		return fmt.Errorf("pricing.history_size must be greater than 0")
	}
	if c.Pricing.RoundingPlaces < 0 {
		return fmt.Errorf("pricing.rounding_places must not be negative")
	}
	if c.Auth.JWTSecret == "" && c.Auth.JWTSecretFile == "" {
		return fmt.Errorf("auth.jwt_secret or auth.jwt_secret_file is required")
	}
	return nil
}
