package options

import "fmt"

// UnsupportedBackendError reports a backend selector outside the known set.
// It is returned before any per-backend translation runs.
type UnsupportedBackendError struct {
	Backend string
}

func (e *UnsupportedBackendError) Error() string {
	return fmt.Sprintf("unsupported database backend %q", e.Backend)
}
