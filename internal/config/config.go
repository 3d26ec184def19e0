package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Environment string `envconfig:"ENV" default:"production"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Auth settings
	JWTSecret string `envconfig:"JWT_SECRET"`

	// Backend REST API settings
	BackendBaseURL        string `envconfig:"BACKEND_BASE_URL"`
	BackendTimeoutSec     int    `envconfig:"BACKEND_TIMEOUT_SEC" default:"10"`
	BackendServiceToken   string `envconfig:"BACKEND_SERVICE_TOKEN"`
	BackendServiceTokenSM string `envconfig:"BACKEND_SERVICE_TOKEN_SECRET"`

	// Entitlement cache settings
	EntitlementFreshnessSec int `envconfig:"ENTITLEMENT_FRESHNESS_SEC" default:"30"`

	// Usage tracker settings
	UsageStore            string `envconfig:"USAGE_STORE" default:"memory"`
	UsageRetentionMonths  int    `envconfig:"USAGE_RETENTION_MONTHS" default:"3"`
	UsageSweepIntervalMin int    `envconfig:"USAGE_SWEEP_INTERVAL_MIN" default:"60"`

	// Redis settings
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Postgres settings
	DBConnectionString string `envconfig:"DB_CONNECTION_STRING"`

	// Payment settings
	PaymentPollMaxAttempts int    `envconfig:"PAYMENT_POLL_MAX_ATTEMPTS" default:"60"`
	PaymentPollIntervalSec int    `envconfig:"PAYMENT_POLL_INTERVAL_SEC" default:"2"`
	PaymentWatchEnabled    bool   `envconfig:"PAYMENT_WATCH_ENABLED" default:"false"`
	PaymentWatchQueueName  string `envconfig:"PAYMENT_WATCH_QUEUE_NAME" default:"payment_watch_queue"`
	PaymentWatchPollSec    int    `envconfig:"PAYMENT_WATCH_POLL_SEC" default:"30"`

	// GCP settings
	GCPProjectID       string `envconfig:"GCP_PROJECT_ID"`
	PubSubSignalsTopic string `envconfig:"PUBSUB_SIGNALS_TOPIC" default:"subscription-signals"`
	// Prefix of the per-instance subscription; each gateway appends its instance ID.
	PubSubSignalsSub   string `envconfig:"PUBSUB_SIGNALS_SUBSCRIPTION" default:"subscription-signals-gateway"`
	PubSubEmulatorHost string `envconfig:"PUBSUB_EMULATOR_HOST"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// RequireGateway checks the settings the HTTP gateway cannot start without.
func (c *Config) RequireGateway() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if err := c.RequireUsage(); err != nil {
		return err
	}
	return c.RequireBackend()
}

// RequireUsage checks the usage retention and sweep settings.
func (c *Config) RequireUsage() error {
	if c.UsageRetentionMonths < 1 {
		return fmt.Errorf("USAGE_RETENTION_MONTHS must be at least 1, got %d", c.UsageRetentionMonths)
	}
	if c.UsageSweepIntervalMin < 1 {
		return fmt.Errorf("USAGE_SWEEP_INTERVAL_MIN must be at least 1, got %d", c.UsageSweepIntervalMin)
	}
	return nil
}

// RequireBackend checks that the backend REST API is configured.
func (c *Config) RequireBackend() error {
	if c.BackendBaseURL == "" {
		return fmt.Errorf("BACKEND_BASE_URL is required")
	}
	return nil
}

// IsDevelopment reports whether the process runs against local infrastructure.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) EntitlementFreshness() time.Duration {
	return time.Duration(c.EntitlementFreshnessSec) * time.Second
}

func (c *Config) BackendTimeout() time.Duration {
	return time.Duration(c.BackendTimeoutSec) * time.Second
}

func (c *Config) PaymentPollInterval() time.Duration {
	return time.Duration(c.PaymentPollIntervalSec) * time.Second
}

func (c *Config) UsageSweepInterval() time.Duration {
	return time.Duration(c.UsageSweepIntervalMin) * time.Minute
}
