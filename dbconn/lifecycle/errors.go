package lifecycle

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotInitialized is returned by operations that need a live
	// connection before Init has succeeded.
	ErrNotInitialized = errors.New("lifecycle: connection not initialized")

	// ErrEngineRequired is returned by NewManager when no engine is given.
	ErrEngineRequired = errors.New("lifecycle: engine is required")

	// ErrBuilderRequired is returned by NewManager when no options builder
	// is given.
	ErrBuilderRequired = errors.New("lifecycle: options builder is required")
)

// ConnectionTimeoutError marks a postgres connection attempt that failed
// within (or because of) the configured connect timeout, so callers can
// distinguish slow networks from outright refusals.
type ConnectionTimeoutError struct {
	Timeout time.Duration
	Err     error
}

func (e *ConnectionTimeoutError) Error() string {
	return fmt.Sprintf("lifecycle: connection not established within %s: %v", e.Timeout, e.Err)
}

func (e *ConnectionTimeoutError) Unwrap() error {
	return e.Err
}
