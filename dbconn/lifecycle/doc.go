// Package lifecycle drives a database connection from configuration to a
// live, migrated handle and keeps watching it with a periodic health probe.
package lifecycle
