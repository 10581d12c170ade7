// Package config provides centralized configuration management for the exporter.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Database    DatabaseConfig
	Destination DestinationConfig
	Export      ExportConfig
	Retry       RetryConfig
	Status      StatusConfig
	Logging     LoggingConfig
}

// DatabaseConfig holds source database connection settings.
type DatabaseConfig struct {
	// Host is the database server hostname (required)
	Host string `env:"RDS_HOST" required:"true"`

	// Port is the database server port (required)
	Port int `env:"RDS_DB_PORT" required:"true"`

	// User is the login role (required)
	User string `env:"RDS_USERNAME" required:"true"`

	// Password for User (required)
	Password string `env:"RDS_PASSWORD" required:"true"`

	// Name is the database to export from (required)
	Name string `env:"RDS_DBNAME" required:"true"`

	// SSLMode is passed through to the driver (default: prefer)
	SSLMode string `env:"RDS_SSLMODE" default:"prefer"`

	// ConnectTimeout bounds dialing a new connection; queries are not bounded (default: 10s)
	ConnectTimeout time.Duration `env:"RDS_CONNECT_TIMEOUT" default:"10s"`
}

// DestinationConfig holds the cross-account upload target.
type DestinationConfig struct {
	// Bucket is the destination bucket in the other account (required)
	Bucket string `env:"DESTINATION_BUCKET" required:"true"`

	// AccountID is the AWS account owning Bucket (required)
	AccountID string `env:"DESTINATION_ACCOUNT_ID" required:"true"`

	// RoleName is the role assumed in AccountID (required)
	RoleName string `env:"CROSS_ACCOUNT_ROLE_NAME" required:"true"`

	// SessionName identifies the assumed-role session (default: AssumeRoleSession)
	SessionName string `env:"CROSS_ACCOUNT_SESSION_NAME" default:"AssumeRoleSession"`

	// Region overrides the SDK default region chain when set
	Region string `env:"AWS_REGION" envAlt:"AWS_DEFAULT_REGION"`
}

// ExportConfig holds batch export settings.
type ExportConfig struct {
	// TablesFile is the path of the YAML table manifest (default: tables.yaml)
	TablesFile string `env:"EXPORT_TABLES_FILE" default:"tables.yaml"`

	// OutputDir is where <table>.csv files are written (default: current directory)
	OutputDir string `env:"EXPORT_OUTPUT_DIR" default:"."`

	// BatchSize is the LIMIT of each paged SELECT (default: 150000)
	BatchSize int64 `env:"EXPORT_BATCH_SIZE" default:"150000"`

	// Parallelism is the number of batches fetched per round (default: 3)
	Parallelism int `env:"EXPORT_PARALLELISM" default:"3"`
}

// RetryConfig holds the per-batch retry and circuit breaker policy.
type RetryConfig struct {
	// MaxAttempts is the total number of tries per batch, including the first (default: 3)
	MaxAttempts int `env:"EXPORT_MAX_ATTEMPTS" default:"3"`

	// InitialDelay is the backoff before the second attempt (default: 1s)
	InitialDelay time.Duration `env:"EXPORT_RETRY_INITIAL_DELAY" default:"1s"`

	// MaxDelay caps the backoff between attempts (default: 30s)
	MaxDelay time.Duration `env:"EXPORT_RETRY_MAX_DELAY" default:"30s"`

	// Multiplier grows the delay after each failed attempt (default: 2)
	Multiplier float64 `env:"EXPORT_RETRY_MULTIPLIER" default:"2"`

	// BreakerMaxFailures is how many batch failures a table tolerates per BreakerWindow (default: 10)
	BreakerMaxFailures int `env:"EXPORT_BREAKER_MAX_FAILURES" default:"10"`

	// BreakerWindow is the sliding window for BreakerMaxFailures (default: 5m)
	BreakerWindow time.Duration `env:"EXPORT_BREAKER_WINDOW" default:"5m"`
}

// StatusConfig holds the optional progress HTTP server settings.
type StatusConfig struct {
	// Addr is the listen address; empty disables the server
	Addr string `env:"STATUS_ADDR"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 5s)
	ShutdownTimeout time.Duration `env:"STATUS_SHUTDOWN_TIMEOUT" default:"5s"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Enabled reports whether the status server should be started.
func (c *StatusConfig) Enabled() bool {
	return c.Addr != ""
}

// RoleARN returns the ARN of the role assumed in the destination account.
func (c *DestinationConfig) RoleARN() string {
	return fmt.Sprintf("arn:aws:iam::%s:role/%s", c.AccountID, c.RoleName)
}
