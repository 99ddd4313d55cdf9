package repository

import (
	"context"
	"errors"
)

// ErrClosed is returned by adapters used after Close.
var ErrClosed = errors.New("repository: store is closed")

// KeyValueRepository defines the durable key/value persistence the image store
// mirrors its sequence into. It follows the getItem/setItem/removeItem contract
// of browser local storage: values are opaque strings.
type KeyValueRepository interface {
	// GetItem returns the value stored under key. found is false if no entry exists.
	GetItem(ctx context.Context, key string) (value string, found bool, err error)
	// SetItem stores value under key, overwriting any previous value.
	SetItem(ctx context.Context, key, value string) error
	// RemoveItem deletes the entry for key. Removing a missing key is not an error.
	RemoveItem(ctx context.Context, key string) error
	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
	// Close releases backend resources.
	Close() error
}
