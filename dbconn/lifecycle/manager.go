package lifecycle

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/jakobkrein-pag/n8n/dbconn/engine"
	"github.com/jakobkrein-pag/n8n/dbconn/options"
)

// DefaultHealthCheckInterval is used when the config does not set one.
const DefaultHealthCheckInterval = 60 * time.Second

// OptionsBuilder produces the connection options the manager opens with.
// *options.Builder satisfies it.
type OptionsBuilder interface {
	Build(ctx context.Context) (*options.ConnectionOptions, error)
}

// ErrorReporter receives health-check failures. Reports are fire-and-forget;
// the loop never acts on them.
type ErrorReporter interface {
	Report(err error)
}

// ReporterFunc adapts a plain function to ErrorReporter.
type ReporterFunc func(err error)

func (f ReporterFunc) Report(err error) {
	f(err)
}

// Config assembles a Manager's collaborators.
type Config struct {
	Engine  engine.Engine
	Builder OptionsBuilder

	// HealthCheckInterval is the probe period, typically taken from
	// config.Config.HealthCheckInterval(). Zero means
	// DefaultHealthCheckInterval.
	HealthCheckInterval time.Duration

	Reporter ErrorReporter
	Logger   *zap.Logger

	// SkipHealthCheck disables the background loop entirely, for embedders
	// that probe liveness themselves.
	SkipHealthCheck bool
}

// Manager owns one live connection handle: it opens it from built options,
// runs migrations through it, probes it periodically, and closes it. Options
// are built once on the first Init and reused for the manager's lifetime.
type Manager struct {
	cfg    Config
	logger *zap.Logger

	opts *options.ConnectionOptions

	handleMu sync.Mutex
	handle   engine.Handle

	connected atomic.Bool
	migrated  atomic.Bool

	loopMu   sync.Mutex
	loopStop chan struct{}
}

// NewManager validates the config and returns an unconnected manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Engine == nil {
		return nil, ErrEngineRequired
	}

	if cfg.Builder == nil {
		return nil, ErrBuilderRequired
	}

	if cfg.HealthCheckInterval <= 0 {
		cfg.HealthCheckInterval = DefaultHealthCheckInterval
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Manager{cfg: cfg, logger: logger}, nil
}

// Init builds the connection options (once) and opens the handle. It is a
// no-op when already connected. A postgres open that fails on a timeout is
// wrapped in *ConnectionTimeoutError carrying the configured connect timeout;
// every other failure propagates unchanged. On success the health-check loop
// starts unless SkipHealthCheck is set.
func (m *Manager) Init(ctx context.Context) error {
	if m.connected.Load() {
		return nil
	}

	if m.opts == nil {
		opts, err := m.cfg.Builder.Build(ctx)
		if err != nil {
			return err
		}

		m.opts = opts
	}

	handle, err := m.cfg.Engine.Open(ctx, m.opts)
	if err != nil {
		if m.opts.Backend == options.BackendPostgres && isTimeoutIndication(err) {
			return &ConnectionTimeoutError{Timeout: m.opts.Postgres.ConnectTimeout, Err: err}
		}

		return err
	}

	m.setHandle(handle)
	m.connected.Store(true)

	m.logger.Info("database connection established", zap.String("backend", string(m.opts.Backend)))

	if !m.cfg.SkipHealthCheck {
		m.startHealthLoop()
	}

	return nil
}

// Migrate runs all pending migrations from the built options through the
// handle, one transaction per unit. Each unit is wrapped with a timing log
// before it is handed over. Requires a successful Init first.
func (m *Manager) Migrate(ctx context.Context) error {
	handle := m.getHandle()
	if handle == nil {
		return ErrNotInitialized
	}

	migrations := make([]options.Migration, len(m.opts.Common.Migrations))
	for i, unit := range m.opts.Common.Migrations {
		migrations[i] = options.Migration{
			Name: unit.Name,
			Up:   m.timed(unit.Name, unit.Up),
			Down: unit.Down,
		}
	}

	if err := handle.RunMigrations(ctx, migrations); err != nil {
		return err
	}

	m.migrated.Store(true)

	return nil
}

// timed wraps a migration step with duration logging.
func (m *Manager) timed(name string, fn options.MigrationFunc) options.MigrationFunc {
	if fn == nil {
		return nil
	}

	return func(ctx context.Context, db bun.IDB) error {
		start := time.Now()
		err := fn(ctx, db)

		m.logger.Info("migration finished",
			zap.String("migration", name),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)

		return err
	}
}

// Close stops the health-check loop and closes the handle if one is open. It
// is safe to call repeatedly and without a prior Init. The migrated flag is
// deliberately left as is.
func (m *Manager) Close(ctx context.Context) error {
	m.stopHealthLoop()

	handle := m.getHandle()
	if handle == nil {
		return nil
	}

	err := handle.Close()
	m.setHandle(nil)
	m.connected.Store(false)

	return err
}

func (m *Manager) setHandle(handle engine.Handle) {
	m.handleMu.Lock()
	defer m.handleMu.Unlock()

	m.handle = handle
}

func (m *Manager) getHandle() engine.Handle {
	m.handleMu.Lock()
	defer m.handleMu.Unlock()

	return m.handle
}

// Connected reports the liveness flag as last observed by Init, Close, or the
// health-check loop.
func (m *Manager) Connected() bool {
	return m.connected.Load()
}

// Migrated reports whether a Migrate call has succeeded on this manager.
func (m *Manager) Migrated() bool {
	return m.migrated.Load()
}

// isTimeoutIndication decides whether an open failure looks like the connect
// timeout elapsing rather than an outright refusal.
func isTimeoutIndication(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}
