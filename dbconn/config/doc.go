// Package config defines the operator-facing database configuration schema.
//
// A Config selects one backend and carries the backend-specific sub-config the
// embedding host populated for it. Validation only inspects the selected
// backend; the other sub-configs may stay zero.
package config
