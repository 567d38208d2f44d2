package sync

import (
	"context"
	"errors"
)

// ErrRevisionMismatch is returned by RecordStore.Put and Purge when the
// caller's revision token no longer matches the stored row. The coordinator
// retries the whole read-modify-write on it.
var ErrRevisionMismatch = errors.New("revision mismatch")

// RecordStore is the durable, versioned record backend. Get returns nil, nil
// when the record does not exist. Put performs a compare-and-swap: for an
// existing record the Revision field must match the stored one, for a new
// record it must be empty. The returned record carries the newly issued
// revision token.
type RecordStore interface {
	Get(ctx context.Context, id string) (*Record, error)
	Put(ctx context.Context, rec *Record) (*Record, error)
	Purge(ctx context.Context, id, revision string) error
	All(ctx context.Context) ([]Record, error)
	PendingFor(ctx context.Context, deviceID string) ([]Record, error)
}

// DeviceRegistry is the durable device identity backend. Get returns nil, nil
// when the device does not exist.
type DeviceRegistry interface {
	Get(ctx context.Context, id string) (*Device, error)
	List(ctx context.Context) ([]Device, error)
	Create(ctx context.Context, name string) (*Device, error)
	Rename(ctx context.Context, id, name string) error
	SetAuthorized(ctx context.Context, id string, authorized bool) error
	Delete(ctx context.Context, id string) error
}
