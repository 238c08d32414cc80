package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

/* Config is read from an optional .env file (toml syntax) and the environment
 * Environment variables win over the file
 */
type Config struct {
	Port                   string  `mapstructure:"PORT"`
	DatabaseURL            string  `mapstructure:"DATABASE_URL"`
	StorageDriver          string  `mapstructure:"STORAGE_DRIVER"`
	RedisAddr              string  `mapstructure:"REDIS_ADDR"`
	RedisPassword          string  `mapstructure:"REDIS_PASSWORD"`
	RedisDB                int     `mapstructure:"REDIS_DB"`
	WebhookTimeoutSeconds  int     `mapstructure:"WEBHOOK_TIMEOUT_SECONDS"`
	WebhookMaxRetries      int     `mapstructure:"WEBHOOK_MAX_RETRIES"`
	WebhookWorkers         int     `mapstructure:"WEBHOOK_WORKERS"`
	WebhookRateLimit       float64 `mapstructure:"WEBHOOK_RATE_LIMIT"`
	ReaperIntervalSeconds  int     `mapstructure:"REAPER_INTERVAL_SECONDS"`
	ClaimLeaseSeconds      int     `mapstructure:"CLAIM_LEASE_SECONDS"`
	DeliveryRetentionHours int     `mapstructure:"DELIVERY_RETENTION_HOURS"`
	SubscriptionsSeedFile  string  `mapstructure:"SUBSCRIPTIONS_SEED_FILE"`
	LogLevel               string  `mapstructure:"LOG_LEVEL"`
}

var defaults = map[string]any{
	"PORT":                     "8080",
	"DATABASE_URL":             "",
	"STORAGE_DRIVER":           DriverPostgres,
	"REDIS_ADDR":               "localhost:6379",
	"REDIS_PASSWORD":           "",
	"REDIS_DB":                 0,
	"WEBHOOK_TIMEOUT_SECONDS":  30,
	"WEBHOOK_MAX_RETRIES":      5,
	"WEBHOOK_WORKERS":          10,
	"WEBHOOK_RATE_LIMIT":       0,
	"REAPER_INTERVAL_SECONDS":  30,
	"CLAIM_LEASE_SECONDS":      300,
	"DELIVERY_RETENTION_HOURS": 720,
	"SUBSCRIPTIONS_SEED_FILE":  "",
	"LOG_LEVEL":                "info",
}

// GetConfig loads the configuration from ./.env and the environment
func GetConfig() (*Config, error) {
	return Load(".")
}

// Load reads <dir>/.env when present, applies the environment and validates the result
func Load(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("toml")
	v.AddConfigPath(dir)
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("parsing config data: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &config, nil
}

// Validate checks bounds and cross-field constraints
func (c Config) Validate() error {
	var errs []error

	if c.Port == "" {
		errs = append(errs, errors.New("PORT is required"))
	}
	switch c.StorageDriver {
	case DriverMemory:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres driver"))
		}
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORAGE_DRIVER must be %s or %s, got %q", DriverPostgres, DriverMemory, c.StorageDriver))
	}
	if c.WebhookTimeoutSeconds <= 0 {
		errs = append(errs, errors.New("WEBHOOK_TIMEOUT_SECONDS must be positive"))
	}
	if c.WebhookMaxRetries < 1 {
		errs = append(errs, errors.New("WEBHOOK_MAX_RETRIES must be at least 1"))
	}
	if c.WebhookWorkers < 1 {
		errs = append(errs, errors.New("WEBHOOK_WORKERS must be at least 1"))
	}
	if c.WebhookRateLimit < 0 {
		errs = append(errs, errors.New("WEBHOOK_RATE_LIMIT must not be negative"))
	}
	if c.ReaperIntervalSeconds <= 0 {
		errs = append(errs, errors.New("REAPER_INTERVAL_SECONDS must be positive"))
	}
	// a lease shorter than the call timeout would release claims still in flight
	if c.ClaimLeaseSeconds <= c.WebhookTimeoutSeconds {
		errs = append(errs, errors.New("CLAIM_LEASE_SECONDS must exceed WEBHOOK_TIMEOUT_SECONDS"))
	}
	if c.DeliveryRetentionHours < 0 {
		errs = append(errs, errors.New("DELIVERY_RETENTION_HOURS must not be negative"))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}

	return errors.Join(errs...)
}

func (c Config) WebhookTimeout() time.Duration {
	return time.Duration(c.WebhookTimeoutSeconds) * time.Second
}

func (c Config) ReaperInterval() time.Duration {
	return time.Duration(c.ReaperIntervalSeconds) * time.Second
}

func (c Config) ClaimLease() time.Duration {
	return time.Duration(c.ClaimLeaseSeconds) * time.Second
}

// Retention is how long terminal history is kept; 0 keeps it forever
func (c Config) Retention() time.Duration {
	return time.Duration(c.DeliveryRetentionHours) * time.Hour
}

// Level returns the parsed LOG_LEVEL, defaulting to info
func (c Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}
