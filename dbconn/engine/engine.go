package engine

import (
	"context"

	"github.com/jakobkrein-pag/n8n/dbconn/options"
)

// Engine opens a live connection handle from built connection options.
type Engine interface {
	Open(ctx context.Context, opts *options.ConnectionOptions) (Handle, error)
}

// Handle is one live connection. The lifecycle manager is its only owner; it
// runs migrations, issues liveness queries, and closes it.
type Handle interface {
	// RunMigrations applies all pending units from the list, one transaction
	// per unit, tracked in the options' migrations table.
	RunMigrations(ctx context.Context, migrations []options.Migration) error

	// RawQuery executes a query and discards its rows. Callers in this module
	// only use it for trivial liveness probes.
	RawQuery(ctx context.Context, query string) error

	// IsOpen reports whether Close has not yet destroyed the handle.
	IsOpen() bool

	Close() error
}
