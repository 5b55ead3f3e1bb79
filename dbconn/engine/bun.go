package engine

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/migrate"
	"github.com/uptrace/bun/schema"
	"go.uber.org/zap"

	"github.com/jakobkrein-pag/n8n/dbconn/options"

	_ "github.com/jackc/pgx/v5/stdlib" // postgres driver
	_ "github.com/mattn/go-sqlite3"    // sqlite driver
)

// dbOpenFn is the database/sql opening seam, swapped in tests.
var dbOpenFn = sql.Open

// Bun is the production Engine backed by uptrace/bun with one SQL driver per
// backend family.
type Bun struct {
	logger *zap.Logger
}

var _ Engine = (*Bun)(nil)

// NewBun creates the bun-backed engine. A nil logger silences query logging
// regardless of the built options.
func NewBun(logger *zap.Logger) *Bun {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Bun{logger: logger}
}

// Open connects the configured backend, registers entities and query hooks,
// applies pool tuning, and verifies the connection with a ping bounded by the
// postgres connect timeout when one is configured.
func (e *Bun) Open(ctx context.Context, opts *options.ConnectionOptions) (Handle, error) {
	if opts == nil {
		return nil, fmt.Errorf("engine: connection options are required")
	}

	sqldb, dialect, err := openSQL(opts)
	if err != nil {
		return nil, err
	}

	tunePool(sqldb, opts)

	db := bun.NewDB(sqldb, dialect)

	for _, entity := range opts.Common.Entities {
		db.RegisterModel(entity)
	}

	for _, hook := range opts.Common.Subscribers {
		db.AddQueryHook(hook)
	}

	if opts.Common.QueryLog.Enabled {
		db.AddQueryHook(newQueryLogHook(e.logger, opts.Common.QueryLog, opts.Common.SlowQueryThreshold))
	}

	pingCtx := ctx

	if opts.Backend == options.BackendPostgres && opts.Postgres.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, opts.Postgres.ConnectTimeout)

		defer cancel()
	}

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()

		return nil, err
	}

	return &bunHandle{
		db:              db,
		migrationsTable: opts.Common.MigrationsTable,
	}, nil
}

func openSQL(opts *options.ConnectionOptions) (*sql.DB, schema.Dialect, error) {
	switch opts.Backend {
	case options.BackendSQLite, options.BackendSQLitePooled:
		sqldb, err := dbOpenFn("sqlite3", sqliteDSN(opts.SQLite))

		return sqldb, sqlitedialect.New(), err
	case options.BackendPostgres:
		sqldb, err := dbOpenFn("pgx", postgresDSN(opts.Postgres))

		return sqldb, pgdialect.New(), err
	case options.BackendMySQL, options.BackendMariaDB:
		sqldb, err := dbOpenFn("mysql", mysqlDSN(opts.MySQL))

		return sqldb, mysqldialect.New(), err
	default:
		return nil, nil, &options.UnsupportedBackendError{Backend: string(opts.Backend)}
	}
}

// tunePool maps the pool-related option fields onto the database/sql pool.
// The non-pooled sqlite variant is pinned to a single connection; the pooled
// variant's acquire/destroy timeouts have no database/sql equivalent and stay
// advisory.
func tunePool(sqldb *sql.DB, opts *options.ConnectionOptions) {
	switch opts.Backend {
	case options.BackendSQLite:
		sqldb.SetMaxOpenConns(1)
	case options.BackendSQLitePooled:
		sqldb.SetMaxOpenConns(opts.SQLite.PoolSize)
		sqldb.SetMaxIdleConns(opts.SQLite.PoolSize)
	case options.BackendPostgres:
		if opts.Postgres.PoolSize > 0 {
			sqldb.SetMaxOpenConns(opts.Postgres.PoolSize)
		}

		if opts.Postgres.IdleTimeout > 0 {
			sqldb.SetConnMaxIdleTime(opts.Postgres.IdleTimeout)
		}
	}
}

type bunHandle struct {
	db              *bun.DB
	migrationsTable string
	closed          atomic.Bool
}

var _ Handle = (*bunHandle)(nil)

// RunMigrations applies all pending units through bun's migrator, recording
// them in the configured migrations table. Each unit runs inside its own
// transaction; a failing unit aborts the run and leaves later units pending.
func (h *bunHandle) RunMigrations(ctx context.Context, migrations []options.Migration) error {
	if len(migrations) == 0 {
		return nil
	}

	collection := migrate.NewMigrations()

	for _, unit := range migrations {
		if unit.Name == "" {
			return fmt.Errorf("engine: migration with empty name")
		}

		collection.Add(migrate.Migration{
			Name: unit.Name,
			Up:   transactional(unit.Up),
			Down: transactional(unit.Down),
		})
	}

	migrator := migrate.NewMigrator(h.db, collection,
		migrate.WithTableName(h.migrationsTable),
		migrate.WithLocksTableName(h.migrationsTable+"_lock"),
	)

	if err := migrator.Init(ctx); err != nil {
		return fmt.Errorf("engine: init migrations table: %w", err)
	}

	if _, err := migrator.Migrate(ctx); err != nil {
		return err
	}

	return nil
}

// transactional adapts a migration unit to the migrator's callback shape,
// running the unit inside one transaction.
func transactional(fn options.MigrationFunc) migrate.MigrationFunc {
	if fn == nil {
		return nil
	}

	return func(ctx context.Context, db *bun.DB) error {
		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			return fn(ctx, tx)
		})
	}
}

func (h *bunHandle) RawQuery(ctx context.Context, query string) error {
	rows, err := h.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}

	defer rows.Close()

	return rows.Err()
}

func (h *bunHandle) IsOpen() bool {
	return !h.closed.Load()
}

func (h *bunHandle) Close() error {
	if h.closed.Swap(true) {
		return nil
	}

	return h.db.Close()
}
