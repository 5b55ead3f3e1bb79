package options

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// Backend tags the variant carried by a ConnectionOptions value.
type Backend string

// Backend variants. sqlite-pooled is the pooled rendition of sqlite with WAL
// forced on; mysql and mariadb share one option shape and differ in dialect.
const (
	BackendSQLite       Backend = "sqlite"
	BackendSQLitePooled Backend = "sqlite-pooled"
	BackendPostgres     Backend = "postgres"
	BackendMySQL        Backend = "mysql"
	BackendMariaDB      Backend = "mariadb"
)

// Pool timeouts applied to the sqlite-pooled variant regardless of operator
// configuration.
const (
	SQLitePoolAcquireTimeout = 60 * time.Second
	SQLitePoolDestroyTimeout = 5 * time.Second
)

// migrationsTableSuffix is appended to the entity prefix to name the
// migrations bookkeeping table.
const migrationsTableSuffix = "migrations"

// MigrationFunc is one direction of a migration unit. It receives either the
// live connection or the per-unit transaction the engine opened for it.
type MigrationFunc func(ctx context.Context, db bun.IDB) error

// Migration is a versioned schema-change unit. Units are applied in
// lexicographic Name order, so names carry a sortable prefix
// (for example "20240101120000_create_accounts").
type Migration struct {
	Name string
	Up   MigrationFunc
	Down MigrationFunc
}

// QueryLog is the resolved query-logging mode: disabled, everything, or an
// ordered list of categories exactly as the operator wrote them.
type QueryLog struct {
	Enabled    bool
	All        bool
	Categories []string
}

// CommonOptions is the backend-independent part of ConnectionOptions.
type CommonOptions struct {
	TablePrefix     string
	Entities        []any
	Subscribers     []bun.QueryHook
	MigrationsTable string
	Migrations      []Migration

	// MigrationsRun is always false: building options never applies
	// migrations, that is a separate explicit lifecycle step.
	MigrationsRun bool

	// AutoSync is always false: the engine never synthesizes schema from the
	// entity set.
	AutoSync bool

	QueryLog           QueryLog
	SlowQueryThreshold time.Duration
}

// SQLiteOptions carries both sqlite variants. AcquireTimeout, DestroyTimeout
// and PoolSize are only set on the pooled variant.
type SQLiteOptions struct {
	Path           string
	EnableWAL      bool
	PoolSize       int
	AcquireTimeout time.Duration
	DestroyTimeout time.Duration
}

// TLSOptions is the structured SSL shape for postgres. Empty strings mean the
// corresponding material is absent.
type TLSOptions struct {
	CA                 string
	Cert               string
	Key                string
	RejectUnauthorized bool
}

// PostgresOptions is the postgres variant. When TLS is nil the SSLEnabled flag
// alone decides whether the connection is encrypted.
type PostgresOptions struct {
	Database       string
	Host           string
	Port           int
	User           string
	Password       string
	Schema         string
	PoolSize       int
	ConnectTimeout time.Duration
	IdleTimeout    time.Duration
	SSLEnabled     bool
	TLS            *TLSOptions
}

// MySQLOptions is shared by the mysql and mariadb variants.
type MySQLOptions struct {
	Database string
	Host     string
	Port     int
	User     string
	Password string

	// Timezone is fixed to "UTC" regardless of operator locale.
	Timezone string
}

// ConnectionOptions is the immutable value handed to the persistence engine.
// Exactly one variant pointer is non-nil, matching the Backend tag; the
// sqlite and sqlite-pooled tags both use the SQLite variant.
type ConnectionOptions struct {
	Backend Backend
	Common  CommonOptions

	SQLite   *SQLiteOptions
	Postgres *PostgresOptions
	MySQL    *MySQLOptions
}
