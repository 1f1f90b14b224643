package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
)

const (
	DBDriverSQLite   = "sqlite"
	DBDriverPostgres = "postgres"

	QueueDriverMemory   = "memory"
	QueueDriverRabbitMQ = "rabbitmq"
)

type Config struct {
	HTTPPort          int    `env:"HTTP_PORT,default=8080"`
	LogLevel          string `env:"LOG_LEVEL,default=info"`
	LogFormat         string `env:"LOG_FORMAT,default=json"`
	DBDriver          string `env:"DB_DRIVER,default=sqlite"`
	DatabaseDSN       string `env:"DATABASE_DSN,default=responder.db"`
	RedisURL          string `env:"REDIS_URL"`
	QueueDriver       string `env:"QUEUE_DRIVER,default=memory"`
	RabbitMQURL       string `env:"RABBITMQ_URL"`
	WorkerConcurrency int    `env:"WORKER_CONCURRENCY,default=2"`

	// Missed calls waiting longer than this are not answered anymore.
	MissedCallMaxAge time.Duration `env:"MISSED_CALL_MAX_AGE,default=10m"`

	DeviceBridgeURL   string `env:"DEVICE_BRIDGE_URL,required=true"`
	DeviceBridgeToken string `env:"DEVICE_BRIDGE_TOKEN"`

	// Defaults for settings that have never been saved.
	StoreAPIURL    string `env:"STORE_API_URL"`
	StoreAPIKey    string `env:"STORE_API_KEY"`
	ServiceEnabled bool   `env:"SERVICE_ENABLED,default=false"`
	SIMSlot        int    `env:"SIM_SLOT,default=1"`

	Timezone      string        `env:"TIMEZONE,default=Europe/Paris"`
	RingCeiling   time.Duration `env:"RING_CEILING,default=30s"`
	TargetPackage string        `env:"TARGET_PACKAGE,default=com.whatsapp.w4b"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// Location resolves Timezone, falling back to the local zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.DeviceBridgeURL) == "" {
		return errors.New("DEVICE_BRIDGE_URL is required")
	}

	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	switch c.DBDriver {
	case DBDriverSQLite, DBDriverPostgres:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}

	c.QueueDriver = strings.ToLower(strings.TrimSpace(c.QueueDriver))
	switch c.QueueDriver {
	case QueueDriverMemory:
	case QueueDriverRabbitMQ:
		if strings.TrimSpace(c.RabbitMQURL) == "" {
			return fmt.Errorf("RABBITMQ_URL is required when QUEUE_DRIVER=%s", QueueDriverRabbitMQ)
		}
	default:
		return fmt.Errorf("unsupported QUEUE_DRIVER %q", c.QueueDriver)
	}

	if c.WorkerConcurrency <= 0 {
		return fmt.Errorf("WORKER_CONCURRENCY must be positive, got %d", c.WorkerConcurrency)
	}
	if c.MissedCallMaxAge < 0 {
		return fmt.Errorf("MISSED_CALL_MAX_AGE must not be negative, got %s", c.MissedCallMaxAge)
	}
	if c.RingCeiling <= 0 {
		return fmt.Errorf("RING_CEILING must be positive, got %s", c.RingCeiling)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return nil
}
