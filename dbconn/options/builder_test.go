package options

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/jakobkrein-pag/n8n/dbconn/config"
)

type staticTokens struct {
	token string
	err   error
	calls int
}

func (s *staticTokens) Token(context.Context) (string, error) {
	s.calls++

	if s.err != nil {
		return "", s.err
	}

	return s.token, nil
}

type noopHook struct{}

func (noopHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context { return ctx }
func (noopHook) AfterQuery(context.Context, *bun.QueryEvent)                        {}

type entityA struct{}
type entityB struct{}
type entityC struct{}

func postgresConfig() config.Config {
	return config.Config{
		Type:        config.BackendPostgres,
		TablePrefix: "app_",
		Postgres: config.PostgresConfig{
			Database:         "app",
			Host:             "db.internal",
			Port:             5432,
			User:             "app",
			Password:         "literal-secret",
			Schema:           "public",
			PoolSize:         8,
			ConnectTimeoutMS: 20000,
			IdleTimeoutMS:    30000,
			SSL:              config.SSLConfig{RejectUnauthorized: true},
		},
	}
}

func TestBuildRejectsUnknownBackend(t *testing.T) {
	tokens := &staticTokens{token: "unused"}
	builder := New(config.Config{Type: "oracle"}, WithTokenSource(tokens))

	built, err := builder.Build(context.Background())

	require.Error(t, err)
	require.Nil(t, built)

	var unsupported *UnsupportedBackendError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "oracle", unsupported.Backend)
	// Rejection happens before any per-backend logic, so no token fetch.
	assert.Zero(t, tokens.calls)
}

func TestBuildRejectsInvalidSubConfig(t *testing.T) {
	builder := New(config.Config{Type: config.BackendPostgres})

	_, err := builder.Build(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestBuildSQLite(t *testing.T) {
	t.Run("pool size zero keeps configured WAL flag", func(t *testing.T) {
		cfg := config.Config{
			Type:   config.BackendSQLite,
			SQLite: config.SQLiteConfig{Database: "app.sqlite", EnableWAL: false},
		}

		built, err := New(cfg, WithWorkingDirectory("/data")).Build(context.Background())

		require.NoError(t, err)
		assert.Equal(t, BackendSQLite, built.Backend)
		require.NotNil(t, built.SQLite)
		assert.Equal(t, filepath.Join("/data", "app.sqlite"), built.SQLite.Path)
		assert.False(t, built.SQLite.EnableWAL)
		assert.Zero(t, built.SQLite.PoolSize)
		assert.Zero(t, built.SQLite.AcquireTimeout)
	})

	t.Run("pool size forces pooled variant with fixed timeouts and WAL", func(t *testing.T) {
		cfg := config.Config{
			Type:   config.BackendSQLite,
			SQLite: config.SQLiteConfig{Database: "app.sqlite", PoolSize: 4, EnableWAL: false},
		}

		built, err := New(cfg).Build(context.Background())

		require.NoError(t, err)
		assert.Equal(t, BackendSQLitePooled, built.Backend)
		require.NotNil(t, built.SQLite)
		assert.True(t, built.SQLite.EnableWAL, "WAL is forced on for the pooled variant")
		assert.Equal(t, 4, built.SQLite.PoolSize)
		assert.Equal(t, 60*time.Second, built.SQLite.AcquireTimeout)
		assert.Equal(t, 5*time.Second, built.SQLite.DestroyTimeout)
	})
}

func TestBuildPostgres(t *testing.T) {
	t.Run("literal password when azure auth is off", func(t *testing.T) {
		built, err := New(postgresConfig()).Build(context.Background())

		require.NoError(t, err)
		require.NotNil(t, built.Postgres)
		assert.Equal(t, "literal-secret", built.Postgres.Password)
		assert.Equal(t, "db.internal", built.Postgres.Host)
		assert.Equal(t, 5432, built.Postgres.Port)
		assert.Equal(t, 20*time.Second, built.Postgres.ConnectTimeout)
		assert.Equal(t, 30*time.Second, built.Postgres.IdleTimeout)
	})

	t.Run("token replaces password when azure auth is on", func(t *testing.T) {
		cfg := postgresConfig()
		cfg.Postgres.Azure = config.AzureConfig{Enabled: true}
		tokens := &staticTokens{token: "bearer-token"}

		built, err := New(cfg, WithTokenSource(tokens)).Build(context.Background())

		require.NoError(t, err)
		assert.Equal(t, "bearer-token", built.Postgres.Password)
		assert.Equal(t, 1, tokens.calls)
	})

	t.Run("token source failure propagates", func(t *testing.T) {
		cfg := postgresConfig()
		cfg.Postgres.Azure = config.AzureConfig{Enabled: true}
		tokenErr := errors.New("identity provider unreachable")

		_, err := New(cfg, WithTokenSource(&staticTokens{err: tokenErr})).Build(context.Background())

		assert.ErrorIs(t, err, tokenErr)
	})

	t.Run("azure auth without token source is a config error", func(t *testing.T) {
		cfg := postgresConfig()
		cfg.Postgres.Azure = config.AzureConfig{Enabled: true}

		_, err := New(cfg).Build(context.Background())

		assert.ErrorIs(t, err, config.ErrInvalidConfig)
	})

	t.Run("ssl collapses to boolean when no material and strict verification", func(t *testing.T) {
		cfg := postgresConfig()
		cfg.Postgres.SSL = config.SSLConfig{Enabled: true, RejectUnauthorized: true}

		built, err := New(cfg).Build(context.Background())

		require.NoError(t, err)
		assert.True(t, built.Postgres.SSLEnabled)
		assert.Nil(t, built.Postgres.TLS)
	})

	t.Run("ssl keeps structured shape when material is present", func(t *testing.T) {
		cfg := postgresConfig()
		cfg.Postgres.SSL = config.SSLConfig{Enabled: true, CA: "/etc/ssl/ca.pem", RejectUnauthorized: true}

		built, err := New(cfg).Build(context.Background())

		require.NoError(t, err)
		assert.False(t, built.Postgres.SSLEnabled)
		require.NotNil(t, built.Postgres.TLS)
		assert.Equal(t, "/etc/ssl/ca.pem", built.Postgres.TLS.CA)
		assert.True(t, built.Postgres.TLS.RejectUnauthorized)
	})

	t.Run("ssl keeps structured shape when verification is relaxed", func(t *testing.T) {
		cfg := postgresConfig()
		cfg.Postgres.SSL = config.SSLConfig{Enabled: true, RejectUnauthorized: false}

		built, err := New(cfg).Build(context.Background())

		require.NoError(t, err)
		assert.False(t, built.Postgres.SSLEnabled)
		require.NotNil(t, built.Postgres.TLS)
		assert.False(t, built.Postgres.TLS.RejectUnauthorized)
	})
}

func TestBuildMySQLAndMariaDB(t *testing.T) {
	cfg := config.Config{
		Type:  config.BackendMySQL,
		MySQL: config.MySQLConfig{Database: "app", Host: "db", Port: 3306, User: "root", Password: "pw"},
	}

	built, err := New(cfg).Build(context.Background())

	require.NoError(t, err)
	assert.Equal(t, BackendMySQL, built.Backend)
	require.NotNil(t, built.MySQL)
	assert.Equal(t, "UTC", built.MySQL.Timezone)
	assert.Equal(t, "pw", built.MySQL.Password)

	cfg.Type = config.BackendMariaDB

	built, err = New(cfg).Build(context.Background())

	require.NoError(t, err)
	assert.Equal(t, BackendMariaDB, built.Backend)
	assert.Equal(t, "UTC", built.MySQL.Timezone)
}

func TestCommonOptions(t *testing.T) {
	base := config.Config{
		Type:        config.BackendSQLite,
		TablePrefix: "n8n_",
		SQLite:      config.SQLiteConfig{Database: "app.sqlite"},
	}

	t.Run("migrations table name and fixed flags", func(t *testing.T) {
		built, err := New(base).Build(context.Background())

		require.NoError(t, err)
		assert.Equal(t, "n8n_migrations", built.Common.MigrationsTable)
		assert.False(t, built.Common.MigrationsRun)
		assert.False(t, built.Common.AutoSync)
	})

	t.Run("entity merge keeps built-ins first", func(t *testing.T) {
		built, err := New(base,
			WithBuiltinEntities(entityA{}, entityB{}),
			WithEntities(entityC{}),
		).Build(context.Background())

		require.NoError(t, err)
		require.Len(t, built.Common.Entities, 3)
		assert.IsType(t, entityA{}, built.Common.Entities[0])
		assert.IsType(t, entityB{}, built.Common.Entities[1])
		assert.IsType(t, entityC{}, built.Common.Entities[2])
	})

	t.Run("subscribers and migrations pass through", func(t *testing.T) {
		migration := Migration{Name: "20240101120000_init"}

		built, err := New(base,
			WithSubscribers(noopHook{}),
			WithMigrations(migration),
		).Build(context.Background())

		require.NoError(t, err)
		require.Len(t, built.Common.Subscribers, 1)
		require.Len(t, built.Common.Migrations, 1)
		assert.Equal(t, "20240101120000_init", built.Common.Migrations[0].Name)
	})

	t.Run("slow query threshold passes through", func(t *testing.T) {
		cfg := base
		cfg.Logging = config.LoggingConfig{Enabled: true, Mode: "all", SlowQueryThresholdMS: 1500}

		built, err := New(cfg).Build(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 1500*time.Millisecond, built.Common.SlowQueryThreshold)
	})
}

func TestResolveQueryLog(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		resolved := resolveQueryLog(config.LoggingConfig{Enabled: false, Mode: "all"})

		assert.False(t, resolved.Enabled)
		assert.False(t, resolved.All)
		assert.Nil(t, resolved.Categories)
	})

	t.Run("all with surrounding whitespace", func(t *testing.T) {
		resolved := resolveQueryLog(config.LoggingConfig{Enabled: true, Mode: "  all "})

		assert.True(t, resolved.Enabled)
		assert.True(t, resolved.All)
	})

	t.Run("all is case-sensitive", func(t *testing.T) {
		resolved := resolveQueryLog(config.LoggingConfig{Enabled: true, Mode: "ALL"})

		assert.False(t, resolved.All)
		assert.Equal(t, []string{"ALL"}, resolved.Categories)
	})

	t.Run("comma list preserves order and duplicates", func(t *testing.T) {
		resolved := resolveQueryLog(config.LoggingConfig{Enabled: true, Mode: " query , error ,query"})

		assert.True(t, resolved.Enabled)
		assert.False(t, resolved.All)
		assert.Equal(t, []string{"query", "error", "query"}, resolved.Categories)
	})
}
