package storageinfra

import "time"

// Supported storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Config holds the configuration for opening a storage adapter.
type Config struct {
	// Driver selects the backend: memory, sqlite, postgres or mysql.
	Driver string

	// DSN is the driver specific data source name.
	// Ignored by the memory driver.
	DSN string

	// MaxOpenConns limits open connections. Zero leaves the database/sql default.
	MaxOpenConns int

	// MaxIdleConns limits idle connections. Must not exceed MaxOpenConns when both are set.
	MaxIdleConns int

	// ConnMaxLifetime closes connections older than this. Zero keeps them forever.
	ConnMaxLifetime time.Duration

	// QueryTimeout bounds every statement issued by the SQL adapter.
	// Zero means the caller's context is used as-is.
	QueryTimeout time.Duration
}

// DefaultConfig returns an in-memory storage configuration.
func DefaultConfig() Config {
	return Config{
		Driver:       DriverMemory,
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		QueryTimeout: 5 * time.Second,
	}
}

// Validate checks if the configuration values are valid.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverMemory:
		return nil
	case DriverSQLite, DriverPostgres, DriverMySQL:
	case "":
		return &ConfigError{Field: "Driver", Message: "cannot be empty"}
	default:
		return &ConfigError{Field: "Driver", Message: "unsupported driver " + c.Driver}
	}

	if c.DSN == "" {
		return &ConfigError{Field: "DSN", Message: "cannot be empty for driver " + c.Driver}
	}
	if c.MaxOpenConns < 0 {
		return &ConfigError{Field: "MaxOpenConns", Message: "must be non-negative"}
	}
	if c.MaxIdleConns < 0 {
		return &ConfigError{Field: "MaxIdleConns", Message: "must be non-negative"}
	}
	if c.MaxOpenConns > 0 && c.MaxIdleConns > c.MaxOpenConns {
		return &ConfigError{Field: "MaxIdleConns", Message: "cannot be greater than MaxOpenConns"}
	}
	if c.ConnMaxLifetime < 0 {
		return &ConfigError{Field: "ConnMaxLifetime", Message: "must be non-negative"}
	}
	if c.QueryTimeout < 0 {
		return &ConfigError{Field: "QueryTimeout", Message: "must be non-negative"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}
