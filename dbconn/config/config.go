package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidConfig is wrapped by every validation failure so callers can match
// the whole class with errors.Is.
var ErrInvalidConfig = errors.New("invalid database config")

// BackendType is the operator-facing backend selector.
type BackendType string

// Supported backend selectors.
const (
	BackendSQLite   BackendType = "sqlite"
	BackendPostgres BackendType = "postgresdb"
	BackendMySQL    BackendType = "mysqldb"
	BackendMariaDB  BackendType = "mariadb"
)

// Known reports whether the selector names a supported backend.
func (b BackendType) Known() bool {
	switch b {
	case BackendSQLite, BackendPostgres, BackendMySQL, BackendMariaDB:
		return true
	default:
		return false
	}
}

// Config is the generic operator configuration translated into backend-specific
// connection options by the options builder.
type Config struct {
	// Type selects the backend. One of sqlite, postgresdb, mysqldb, mariadb.
	Type BackendType

	// TablePrefix is prepended verbatim to entity table names and to the
	// migrations bookkeeping table.
	TablePrefix string

	// HealthCheckIntervalSeconds is the period of the connection liveness task.
	HealthCheckIntervalSeconds int

	SQLite   SQLiteConfig
	Postgres PostgresConfig
	MySQL    MySQLConfig

	Logging LoggingConfig
}

// SQLiteConfig configures the sqlite backend.
type SQLiteConfig struct {
	// Database is the database file name, resolved against the working
	// directory the builder was given.
	Database string

	// PoolSize greater than zero switches to the pooled sqlite variant with
	// WAL forced on.
	PoolSize int

	// EnableWAL enables write-ahead logging for the non-pooled variant. The
	// pooled variant ignores it and always uses WAL.
	EnableWAL bool
}

// PostgresConfig configures the postgres backend.
type PostgresConfig struct {
	Database string
	Host     string
	Port     int
	User     string

	// Password is the static credential. Ignored when Azure auth is enabled;
	// the builder then fetches a bearer token instead.
	Password string

	Schema           string
	PoolSize         int
	ConnectTimeoutMS int
	IdleTimeoutMS    int

	SSL   SSLConfig
	Azure AzureConfig
}

// SSLConfig carries the TLS material for the postgres backend. The CA, Cert
// and Key fields are file paths; empty strings mean absent.
type SSLConfig struct {
	Enabled            bool
	CA                 string
	Cert               string
	Key                string
	RejectUnauthorized bool
}

// AzureConfig selects Azure AD authentication for a cloud-hosted postgres
// endpoint. Which identity strategy is used follows from which fields are set;
// see the azauth package.
type AzureConfig struct {
	Enabled      bool
	TenantID     string
	ClientID     string
	ClientSecret string
}

// MySQLConfig configures the mysql and mariadb backends.
type MySQLConfig struct {
	Database string
	Host     string
	Port     int
	User     string
	Password string
}

// LoggingConfig configures query logging.
type LoggingConfig struct {
	Enabled bool

	// Mode is either the literal "all" or a comma-separated list of log
	// categories (for example "query,error").
	Mode string

	// SlowQueryThresholdMS flags queries slower than this many milliseconds.
	SlowQueryThresholdMS int
}

// HealthCheckInterval returns the liveness period as a duration, zero when the
// operator did not set one. Consumers apply their own default.
func (c Config) HealthCheckInterval() time.Duration {
	return time.Duration(c.HealthCheckIntervalSeconds) * time.Second
}

// Validate checks the sub-config of the selected backend. An unknown selector
// is reported here too, although the options builder rejects it on its own
// before consulting any sub-config.
func (c Config) Validate() error {
	switch c.Type {
	case BackendSQLite:
		return c.SQLite.validate()
	case BackendPostgres:
		return c.Postgres.validate()
	case BackendMySQL, BackendMariaDB:
		return c.MySQL.validate()
	default:
		return fmt.Errorf("%w: unknown backend type %q", ErrInvalidConfig, c.Type)
	}
}

func (c SQLiteConfig) validate() error {
	if strings.TrimSpace(c.Database) == "" {
		return fmt.Errorf("%w: sqlite database file name is required", ErrInvalidConfig)
	}

	if c.PoolSize < 0 {
		return fmt.Errorf("%w: sqlite pool size must not be negative", ErrInvalidConfig)
	}

	return nil
}

func (c PostgresConfig) validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return fmt.Errorf("%w: postgres host is required", ErrInvalidConfig)
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: postgres port %d is out of range", ErrInvalidConfig, c.Port)
	}

	if strings.TrimSpace(c.User) == "" {
		return fmt.Errorf("%w: postgres user is required", ErrInvalidConfig)
	}

	if strings.TrimSpace(c.Database) == "" {
		return fmt.Errorf("%w: postgres database name is required", ErrInvalidConfig)
	}

	if c.Azure.Enabled && c.Azure.ClientSecret != "" && (c.Azure.TenantID == "" || c.Azure.ClientID == "") {
		return fmt.Errorf("%w: azure client secret requires both tenant id and client id", ErrInvalidConfig)
	}

	return nil
}

func (c MySQLConfig) validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return fmt.Errorf("%w: mysql host is required", ErrInvalidConfig)
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: mysql port %d is out of range", ErrInvalidConfig, c.Port)
	}

	if strings.TrimSpace(c.User) == "" {
		return fmt.Errorf("%w: mysql user is required", ErrInvalidConfig)
	}

	if strings.TrimSpace(c.Database) == "" {
		return fmt.Errorf("%w: mysql database name is required", ErrInvalidConfig)
	}

	return nil
}
