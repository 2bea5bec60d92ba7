// Package store persists opaque session blobs in a namespaced key-value
// store. Backends: SQLite (default), Redis, and an in-memory map for tests.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when no blob exists under the key.
var ErrNotFound = errors.New("not found")

// Store is an opaque get/set/delete over serialized blobs. The engine never
// interprets the bytes here; validation happens in the quiz codec.
type Store interface {
	Save(ctx context.Context, key string, data []byte) error
	Load(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
