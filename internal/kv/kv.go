// Package kv implements the device's string-valued persistent storage.
// Callers choose their own keys; every driver treats them as opaque.
package kv

import (
	"context"
	"errors"
)

// ErrSealed is returned when a sealed value cannot be opened, either because
// it was tampered with or because it was written under a different secret.
var ErrSealed = errors.New("kv: sealed value cannot be opened")

// Storage is the async key/value surface the client core persists through.
// Get reports ok=false for a missing key rather than returning an error.
type Storage interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Driver names a storage backend.
type Driver string

const (
	DriverSQLite Driver = "sqlite"
	DriverMemory Driver = "memory"
	DriverS3     Driver = "s3"
)
