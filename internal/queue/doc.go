// Package queue persists lesson processing state in SQLite.
//
// Each lesson file becomes one queue item that advances through the
// processing statuses as pipeline stages complete. The store keeps the
// database under the configured log directory and applies embedded schema
// migrations on open, so callers only ever construct it through Open.
package queue
