// Package options translates operator configuration into the immutable
// connection options handed to the persistence engine.
//
// A Builder is bound once to its inputs (config, working directory, entities,
// subscribers, migrations, token source) and produces a ConnectionOptions
// value per call. The produced value is never mutated afterwards; changing
// anything requires a fresh connection lifecycle.
package options
