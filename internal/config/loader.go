package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Returns an error if required values are missing or validation fails.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// loadStruct recursively populates struct fields from environment variables.
func loadStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(fieldVal); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		envAlt := field.Tag.Get("envAlt")
		defaultVal := field.Tag.Get("default")
		required := field.Tag.Get("required") == "true"

		if envName == "" {
			continue
		}

		// Try primary env var, then alternate
		value := strings.TrimSpace(os.Getenv(envName))
		if value == "" && envAlt != "" {
			value = strings.TrimSpace(os.Getenv(envAlt))
		}

		if value == "" {
			if required {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = defaultVal
		}

		if value == "" {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		// Handle time.Duration specially
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid number: %w", err)
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				result = append(result, p)
			}
		}
		field.Set(reflect.ValueOf(result))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Database validation
	if c.Database.Host == "" {
		errs = append(errs, "RDS_HOST is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("RDS_DB_PORT (%d) must be 1-65535", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "RDS_USERNAME is required")
	}
	if c.Database.Name == "" {
		errs = append(errs, "RDS_DBNAME is required")
	}
	if c.Database.ConnectTimeout < 0 {
		errs = append(errs, "RDS_CONNECT_TIMEOUT must be non-negative")
	}

	// Destination validation
	if c.Destination.Bucket == "" {
		errs = append(errs, "DESTINATION_BUCKET is required")
	}
	if !isAccountID(c.Destination.AccountID) {
		errs = append(errs, fmt.Sprintf("DESTINATION_ACCOUNT_ID (%q) must be a 12-digit account ID", c.Destination.AccountID))
	}
	if c.Destination.RoleName == "" {
		errs = append(errs, "CROSS_ACCOUNT_ROLE_NAME is required")
	}
	if c.Destination.SessionName == "" {
		errs = append(errs, "CROSS_ACCOUNT_SESSION_NAME must not be empty")
	}

	// Export validation
	if c.Export.TablesFile == "" {
		errs = append(errs, "EXPORT_TABLES_FILE must not be empty")
	}
	if c.Export.BatchSize <= 0 {
		errs = append(errs, "EXPORT_BATCH_SIZE must be positive")
	}
	if c.Export.Parallelism <= 0 {
		errs = append(errs, "EXPORT_PARALLELISM must be positive")
	}

	// Retry validation
	if c.Retry.MaxAttempts <= 0 {
		errs = append(errs, "EXPORT_MAX_ATTEMPTS must be positive")
	}
	if c.Retry.InitialDelay < 0 {
		errs = append(errs, "EXPORT_RETRY_INITIAL_DELAY must be non-negative")
	}
	if c.Retry.MaxDelay < c.Retry.InitialDelay {
		errs = append(errs, fmt.Sprintf("EXPORT_RETRY_MAX_DELAY (%s) must be >= EXPORT_RETRY_INITIAL_DELAY (%s)",
			c.Retry.MaxDelay, c.Retry.InitialDelay))
	}
	if c.Retry.Multiplier < 1 {
		errs = append(errs, "EXPORT_RETRY_MULTIPLIER must be >= 1")
	}
	if c.Retry.BreakerMaxFailures <= 0 {
		errs = append(errs, "EXPORT_BREAKER_MAX_FAILURES must be positive")
	}
	if c.Retry.BreakerWindow <= 0 {
		errs = append(errs, "EXPORT_BREAKER_WINDOW must be positive")
	}

	// Status validation
	if c.Status.Enabled() && c.Status.ShutdownTimeout <= 0 {
		errs = append(errs, "STATUS_SHUTDOWN_TIMEOUT must be positive")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

func isAccountID(s string) bool {
	if len(s) != 12 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// String returns a safe string representation of the config for logging.
// The database password is masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Database: {Host: %q, Port: %d, User: %q, Password: [MASKED], Name: %q}, ",
		c.Database.Host, c.Database.Port, c.Database.User, c.Database.Name))
	b.WriteString(fmt.Sprintf("Destination: {Bucket: %q, AccountID: %q, RoleName: %q}, ",
		c.Destination.Bucket, c.Destination.AccountID, c.Destination.RoleName))
	b.WriteString(fmt.Sprintf("Export: {TablesFile: %q, OutputDir: %q, BatchSize: %d, Parallelism: %d}, ",
		c.Export.TablesFile, c.Export.OutputDir, c.Export.BatchSize, c.Export.Parallelism))
	b.WriteString(fmt.Sprintf("Retry: {MaxAttempts: %d, BreakerMaxFailures: %d}, ",
		c.Retry.MaxAttempts, c.Retry.BreakerMaxFailures))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}
