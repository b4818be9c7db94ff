// Package storage is the boundary to the key-value store that makes ledger
// state durable.
//
// The store is a durability mechanism only: the engine reads it once on load
// and writes back after every change. Keys are independent; callers must not
// assume that writes to several keys land together unless the store
// implements Batch.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when a key holds no value.
var ErrNotFound = errors.New("storage: key not found")

// KV is the minimal store contract.
type KV interface {
	// Get returns the raw value for key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
}

// Entry is a single key/value pair of a batch write.
type Entry struct {
	Key   string
	Value string
}

// Batch is implemented by stores able to write several keys atomically.
type Batch interface {
	SetMany(ctx context.Context, entries []Entry) error
}
