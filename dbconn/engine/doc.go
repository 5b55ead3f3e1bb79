// Package engine defines the persistence-engine contract the connection
// lifecycle consumes, and ships a production implementation backed by
// uptrace/bun with one SQL driver per supported backend.
package engine
