package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Storage drivers
const (
	DriverSQLite     = "sqlite"
	DriverPostgres   = "postgres"
	DriverClickHouse = "clickhouse"
	DriverMemory     = "memory"
)

// State backends
const (
	StateMemory = "memory"
	StateRedis  = "redis"
)

// Fallback modes for messages no route claims
const (
	FallbackEcho   = "echo"
	FallbackSilent = "silent"
)

// Config holds the application configuration
type Config struct {
	TelegramToken string `envconfig:"TELEGRAM_BOT_TOKEN" required:"true"`
	Port          string `envconfig:"PORT" default:"8080"`

	// Bot mode configuration
	WebhookMode bool   `envconfig:"WEBHOOK_MODE" default:"true"` // webhook if true, long polling otherwise
	WebhookURL  string `envconfig:"WEBHOOK_URL"`                 // registered with Telegram when set

	Storage struct {
		Driver     string `envconfig:"STORAGE_DRIVER" default:"sqlite"`
		SQLitePath string `envconfig:"SQLITE_PATH" default:"shop.db"`

		DatabaseURL string `envconfig:"DATABASE_URL"`
		MaxConns    int32  `envconfig:"DATABASE_MAX_CONNS" default:"10"`

		ClickHouseHost     string `envconfig:"CLICKHOUSE_HOST"`
		ClickHousePort     int    `envconfig:"CLICKHOUSE_PORT" default:"9000"`
		ClickHouseDatabase string `envconfig:"CLICKHOUSE_DATABASE" default:"default"`
		ClickHouseUser     string `envconfig:"CLICKHOUSE_USER" default:"default"`
		ClickHousePassword string `envconfig:"CLICKHOUSE_PASSWORD"`
		ClickHouseUseTLS   bool   `envconfig:"CLICKHOUSE_USE_TLS" default:"false"`
	}

	State struct {
		Backend         string        `envconfig:"STATE_BACKEND" default:"memory"`
		RedisAddr       string        `envconfig:"REDIS_ADDR"`
		RedisPassword   string        `envconfig:"REDIS_PASSWORD"`
		RedisDB         int           `envconfig:"REDIS_DB" default:"0"`
		ContinuationTTL time.Duration `envconfig:"CONTINUATION_TTL" default:"15m"`
		DedupTTL        time.Duration `envconfig:"DEDUP_TTL" default:"24h"`
	}

	FallbackMode string `envconfig:"FALLBACK_MODE" default:"echo"`

	Log struct {
		Level string `envconfig:"LOG_LEVEL" default:"info"`
		Dev   bool   `envconfig:"LOG_DEV" default:"false"`
	}
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that depend on each other
func (c *Config) Validate() error {
	// envconfig's required only checks that the variable is set
	if strings.TrimSpace(c.TelegramToken) == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	switch c.Storage.Driver {
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required when STORAGE_DRIVER is sqlite")
		}
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORAGE_DRIVER is postgres")
		}
	case DriverClickHouse:
		if c.Storage.ClickHouseHost == "" {
			return fmt.Errorf("CLICKHOUSE_HOST is required when STORAGE_DRIVER is clickhouse")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q (want sqlite, postgres, clickhouse or memory)", c.Storage.Driver)
	}

	c.State.Backend = strings.ToLower(strings.TrimSpace(c.State.Backend))
	switch c.State.Backend {
	case StateMemory:
	case StateRedis:
		if c.State.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required when STATE_BACKEND is redis")
		}
	default:
		return fmt.Errorf("unknown STATE_BACKEND %q (want memory or redis)", c.State.Backend)
	}

	if c.State.ContinuationTTL <= 0 {
		return fmt.Errorf("CONTINUATION_TTL must be positive")
	}
	if c.State.DedupTTL < 0 {
		return fmt.Errorf("DEDUP_TTL must not be negative")
	}

	c.FallbackMode = strings.ToLower(strings.TrimSpace(c.FallbackMode))
	if c.FallbackMode != FallbackEcho && c.FallbackMode != FallbackSilent {
		return fmt.Errorf("unknown FALLBACK_MODE %q (want echo or silent)", c.FallbackMode)
	}
	return nil
}

// Mode names the update intake mode for logs and the status page
func (c *Config) Mode() string {
	if c.WebhookMode {
		return "webhook"
	}
	return "polling"
}
