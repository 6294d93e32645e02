// Package storage defines the key-value store and ordered id lists the
// service indexes connected accounts, persons and payouts in.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New("storage: key not found")

// Drivers.
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

// Store holds string values by key.
type Store interface {
	// Get returns ErrNotFound if key is unset.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// Delete is a no-op for a missing key.
	Delete(ctx context.Context, key string) error
}

// List holds ordered sets of ids under a path, most recently added first.
// Adding an id that is already present moves it to the front.
type List interface {
	Add(ctx context.Context, path, id string) error
	Remove(ctx context.Context, path, id string) error
	Exists(ctx context.Context, path, id string) (bool, error)
	Count(ctx context.Context, path string) (int, error)
	// List returns at most limit ids starting at offset. An offset past the
	// end or a non-positive limit yields an empty slice.
	List(ctx context.Context, path string, offset, limit int) ([]string, error)
	ListAll(ctx context.Context, path string) ([]string, error)
}

// Backend is a Store and a List sharing one namespace.
type Backend interface {
	Store
	List
	Close() error
}

// Option configures a backend.
type Option func(*options)

type options struct {
	prefix string
}

// WithPrefix namespaces every key and path.
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
