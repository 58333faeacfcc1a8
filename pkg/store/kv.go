// Package store implements the persistent store: a durable key-value layer
// that survives restarts of the runtime filesystem.
package store

import "context"

// KV is a string key-value store. Implementations must be safe for
// concurrent use.
type KV interface {
	// Get returns the value for `key`, and whether it was found.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set creates or replaces the value for `key`.
	Set(ctx context.Context, key, value string) error

	// Delete removes `key`. Deleting a missing key isn't an error.
	Delete(ctx context.Context, key string) error

	// Keys lists every key in the store, in no particular order.
	Keys(ctx context.Context) ([]string, error)
}
