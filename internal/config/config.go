// Package config loads service configuration from the environment.
//
// Loading runs in three steps: a .env file is read if present (without
// overriding variables already set), envconfig fills the Config struct from
// its tags, and validator checks the result.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Store backends
const (
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
)

// Config is the full service configuration
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Mongo    MongoConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Breaker  BreakerConfig
	Logging  LoggingConfig
	Map      MapConfig
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Host         string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port         int           `envconfig:"SERVER_PORT" default:"8080" validate:"min=1,max=65535"`
	ReadTimeout  time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s" validate:"gt=0"`
	WriteTimeout time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"15s" validate:"gt=0"`
	IdleTimeout  time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"60s" validate:"gt=0"`
}

// StoreConfig selects where forecasts are read from
type StoreConfig struct {
	Backend string `envconfig:"STORE_BACKEND" default:"mongo" validate:"oneof=mongo postgres"`
}

// MongoConfig configures the document store
type MongoConfig struct {
	URI        string        `envconfig:"MONGO_URI"`
	Database   string        `envconfig:"MONGO_DATABASE" default:"PaStateParksDB" validate:"required"`
	Collection string        `envconfig:"MONGO_COLLECTION" default:"Park" validate:"required"`
	Timeout    time.Duration `envconfig:"MONGO_TIMEOUT" default:"10s" validate:"gt=0"`
}

// DatabaseConfig configures the Postgres store
type DatabaseConfig struct {
	Host            string        `envconfig:"DB_HOST" default:"localhost"`
	Port            int           `envconfig:"DB_PORT" default:"5432" validate:"min=1,max=65535"`
	User            string        `envconfig:"DB_USER" default:"postgres"`
	Password        string        `envconfig:"DB_PASSWORD"`
	Database        string        `envconfig:"DB_NAME" default:"pa_state_parks"`
	SSLMode         string        `envconfig:"DB_SSLMODE" default:"disable" validate:"oneof=disable require verify-ca verify-full"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"10" validate:"min=1"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5" validate:"min=0"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"30m"`
	ConnMaxIdleTime time.Duration `envconfig:"DB_CONN_MAX_IDLE_TIME" default:"5m"`
}

// CacheConfig configures forecast memoization
type CacheConfig struct {
	TTL             time.Duration `envconfig:"CACHE_TTL" default:"600s" validate:"min=0"`
	RefreshInterval time.Duration `envconfig:"CACHE_REFRESH_INTERVAL" default:"0s" validate:"min=0"`
}

// BreakerConfig configures the store circuit breaker
type BreakerConfig struct {
	MaxFailures uint32        `envconfig:"BREAKER_MAX_FAILURES" default:"5" validate:"min=1"`
	OpenTimeout time.Duration `envconfig:"BREAKER_OPEN_TIMEOUT" default:"30s" validate:"gt=0"`
}

// LoggingConfig configures the structured logger
type LoggingConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Format string `envconfig:"LOG_FORMAT" default:"json" validate:"oneof=json text"`
}

// MapConfig configures the dashboard base map
type MapConfig struct {
	MapboxToken string `envconfig:"MAPBOX_TOKEN"`
}

// ErrorType classifies configuration failures
type ErrorType string

const (
	ErrParsing    ErrorType = "PARSING"
	ErrValidation ErrorType = "VALIDATION"
)

// ConfigError is returned by LoadConfig
type ConfigError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// LoadConfig reads .env (if present) and the environment into a validated Config.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks struct tags and the rules that span fields.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}

	if c.Store.Backend == BackendMongo && c.Mongo.URI == "" {
		return &ConfigError{
			Type:    ErrValidation,
			Message: "MONGO_URI is required when STORE_BACKEND is mongo",
		}
	}

	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return &ConfigError{
			Type:    ErrValidation,
			Message: "DB_MAX_IDLE_CONNS must not exceed DB_MAX_OPEN_CONNS",
		}
	}

	return nil
}
