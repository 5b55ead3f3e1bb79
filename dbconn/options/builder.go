package options

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/jakobkrein-pag/n8n/dbconn/config"
)

// TokenSource supplies a bearer token used as the postgres password when the
// operator selected Azure AD authentication instead of a static credential.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Registry is the read-only entity/subscriber registry extension modules
// contribute to. Its entries are merged into the built options after the
// built-in entities.
type Registry interface {
	Entities() []any
	Subscribers() []bun.QueryHook
}

// Builder translates one operator Config into ConnectionOptions.
type Builder struct {
	cfg config.Config

	workingDir      string
	builtinEntities []any
	extraEntities   []any
	subscribers     []bun.QueryHook
	migrations      []Migration
	tokens          TokenSource
}

// Option configures a Builder.
type Option func(*Builder)

// WithWorkingDirectory sets the directory sqlite file names are resolved
// against. Defaults to the process working directory (".").
func WithWorkingDirectory(dir string) Option {
	return func(b *Builder) {
		if strings.TrimSpace(dir) != "" {
			b.workingDir = dir
		}
	}
}

// WithBuiltinEntities registers the host's built-in entity set. Built-ins come
// first in the merged entity list.
func WithBuiltinEntities(entities ...any) Option {
	return func(b *Builder) {
		b.builtinEntities = append(b.builtinEntities, entities...)
	}
}

// WithEntities registers externally-contributed entities, merged after the
// built-ins in registration order.
func WithEntities(entities ...any) Option {
	return func(b *Builder) {
		b.extraEntities = append(b.extraEntities, entities...)
	}
}

// WithRegistry merges an entity/subscriber registry's entries, equivalent to
// WithEntities plus WithSubscribers for its current contents.
func WithRegistry(registry Registry) Option {
	return func(b *Builder) {
		if registry == nil {
			return
		}

		b.extraEntities = append(b.extraEntities, registry.Entities()...)
		b.subscribers = append(b.subscribers, registry.Subscribers()...)
	}
}

// WithSubscribers registers query hooks passed through to the engine.
func WithSubscribers(hooks ...bun.QueryHook) Option {
	return func(b *Builder) {
		b.subscribers = append(b.subscribers, hooks...)
	}
}

// WithMigrations sets the migration list carried by the built options.
func WithMigrations(migrations ...Migration) Option {
	return func(b *Builder) {
		b.migrations = append(b.migrations, migrations...)
	}
}

// WithTokenSource sets the Azure AD token source consulted for postgres when
// cloud authentication is enabled.
func WithTokenSource(tokens TokenSource) Option {
	return func(b *Builder) {
		b.tokens = tokens
	}
}

// New creates a Builder bound to the given operator config.
func New(cfg config.Config, opts ...Option) *Builder {
	builder := &Builder{
		cfg:        cfg,
		workingDir: ".",
	}

	for _, opt := range opts {
		if opt != nil {
			opt(builder)
		}
	}

	return builder
}

// Build produces the connection options for the configured backend. An
// unrecognized backend selector fails with *UnsupportedBackendError before
// any per-backend translation runs; a missing required sub-field of the
// selected backend fails with a config.ErrInvalidConfig-wrapped error.
func (b *Builder) Build(ctx context.Context) (*ConnectionOptions, error) {
	if !b.cfg.Type.Known() {
		return nil, &UnsupportedBackendError{Backend: string(b.cfg.Type)}
	}

	if err := b.cfg.Validate(); err != nil {
		return nil, err
	}

	common := b.commonOptions()

	switch b.cfg.Type {
	case config.BackendSQLite:
		return b.buildSQLite(common), nil
	case config.BackendPostgres:
		return b.buildPostgres(ctx, common)
	case config.BackendMySQL:
		return b.buildMySQL(common, BackendMySQL), nil
	case config.BackendMariaDB:
		return b.buildMySQL(common, BackendMariaDB), nil
	default:
		// Unreachable: Known() already filtered the selector.
		return nil, &UnsupportedBackendError{Backend: string(b.cfg.Type)}
	}
}

func (b *Builder) commonOptions() CommonOptions {
	entities := make([]any, 0, len(b.builtinEntities)+len(b.extraEntities))
	entities = append(entities, b.builtinEntities...)
	entities = append(entities, b.extraEntities...)

	subscribers := make([]bun.QueryHook, len(b.subscribers))
	copy(subscribers, b.subscribers)

	migrations := make([]Migration, len(b.migrations))
	copy(migrations, b.migrations)

	return CommonOptions{
		TablePrefix:        b.cfg.TablePrefix,
		Entities:           entities,
		Subscribers:        subscribers,
		MigrationsTable:    b.cfg.TablePrefix + migrationsTableSuffix,
		Migrations:         migrations,
		MigrationsRun:      false,
		AutoSync:           false,
		QueryLog:           resolveQueryLog(b.cfg.Logging),
		SlowQueryThreshold: time.Duration(b.cfg.Logging.SlowQueryThresholdMS) * time.Millisecond,
	}
}

func (b *Builder) buildSQLite(common CommonOptions) *ConnectionOptions {
	cfg := b.cfg.SQLite
	path := filepath.Join(b.workingDir, cfg.Database)

	if cfg.PoolSize > 0 {
		return &ConnectionOptions{
			Backend: BackendSQLitePooled,
			Common:  common,
			SQLite: &SQLiteOptions{
				Path:           path,
				EnableWAL:      true,
				PoolSize:       cfg.PoolSize,
				AcquireTimeout: SQLitePoolAcquireTimeout,
				DestroyTimeout: SQLitePoolDestroyTimeout,
			},
		}
	}

	return &ConnectionOptions{
		Backend: BackendSQLite,
		Common:  common,
		SQLite: &SQLiteOptions{
			Path:      path,
			EnableWAL: cfg.EnableWAL,
		},
	}
}

func (b *Builder) buildPostgres(ctx context.Context, common CommonOptions) (*ConnectionOptions, error) {
	cfg := b.cfg.Postgres

	password := cfg.Password

	if cfg.Azure.Enabled {
		if b.tokens == nil {
			return nil, fmt.Errorf("%w: azure authentication is enabled but no token source is configured", config.ErrInvalidConfig)
		}

		token, err := b.tokens.Token(ctx)
		if err != nil {
			return nil, err
		}

		password = token
	}

	sslEnabled, tls := resolveSSL(cfg.SSL)

	return &ConnectionOptions{
		Backend: BackendPostgres,
		Common:  common,
		Postgres: &PostgresOptions{
			Database:       cfg.Database,
			Host:           cfg.Host,
			Port:           cfg.Port,
			User:           cfg.User,
			Password:       password,
			Schema:         cfg.Schema,
			PoolSize:       cfg.PoolSize,
			ConnectTimeout: time.Duration(cfg.ConnectTimeoutMS) * time.Millisecond,
			IdleTimeout:    time.Duration(cfg.IdleTimeoutMS) * time.Millisecond,
			SSLEnabled:     sslEnabled,
			TLS:            tls,
		},
	}, nil
}

func (b *Builder) buildMySQL(common CommonOptions, backend Backend) *ConnectionOptions {
	cfg := b.cfg.MySQL

	return &ConnectionOptions{
		Backend: backend,
		Common:  common,
		MySQL: &MySQLOptions{
			Database: cfg.Database,
			Host:     cfg.Host,
			Port:     cfg.Port,
			User:     cfg.User,
			Password: cfg.Password,
			Timezone: "UTC",
		},
	}
}

// resolveQueryLog maps the logging sub-config to the resolved mode: disabled,
// the literal "all" (case-sensitive, surrounding whitespace stripped), or an
// ordered comma list of trimmed category tokens with duplicates preserved.
func resolveQueryLog(cfg config.LoggingConfig) QueryLog {
	if !cfg.Enabled {
		return QueryLog{}
	}

	if strings.TrimSpace(cfg.Mode) == "all" {
		return QueryLog{Enabled: true, All: true}
	}

	parts := strings.Split(cfg.Mode, ",")
	categories := make([]string, 0, len(parts))

	for _, part := range parts {
		categories = append(categories, strings.TrimSpace(part))
	}

	return QueryLog{Enabled: true, Categories: categories}
}

// resolveSSL collapses the SSL sub-config into the simple boolean form when no
// TLS material is present and certificate verification was not relaxed;
// otherwise it keeps the structured shape verbatim.
func resolveSSL(cfg config.SSLConfig) (bool, *TLSOptions) {
	if cfg.CA == "" && cfg.Cert == "" && cfg.Key == "" && cfg.RejectUnauthorized {
		return cfg.Enabled, nil
	}

	return false, &TLSOptions{
		CA:                 cfg.CA,
		Cert:               cfg.Cert,
		Key:                cfg.Key,
		RejectUnauthorized: cfg.RejectUnauthorized,
	}
}
