// Package store defines the remote data store boundary: a push-based
// subscription that delivers full-collection snapshots, and all-or-nothing
// create/update/delete writes. Adapters exist for MongoDB, MQTT, and an
// in-memory store used by tests and the simulator.
package store

import (
	"context"
	"errors"

	"github.com/rktransport/fleetops/internal/reconcile"
)

// Collection names managed by the dashboard.
const (
	CollectionVehicles = "vehicles"
	CollectionTrips    = "trips"
)

// ErrClosed is returned by writes against a store that has been shut down.
var ErrClosed = errors.New("store closed")

// Snapshot is one complete point-in-time payload of a collection, as pushed
// by the remote store. Records are unordered and may contain duplicates or
// stale entries; reconciliation is the consumer's job.
type Snapshot struct {
	Collection string
	Records    []reconcile.Record
}

// Subscription is a live snapshot feed for one collection. Snapshots are
// delivered in the order the store emits them. Close stops delivery and
// releases the underlying listener; it does not cancel in-flight writes.
type Subscription interface {
	Snapshots() <-chan Snapshot
	Close()
}

// RemoteStore is the write-and-subscribe contract the sync orchestrator
// consumes. Writes are asynchronous at the store, all-or-nothing per call,
// and may fail independently for network or permission reasons.
type RemoteStore interface {
	// Subscribe opens a snapshot feed for the collection. The first snapshot
	// reflects current contents; subsequent ones follow every change.
	Subscribe(ctx context.Context, collection string) (Subscription, error)

	// Create writes a new record and returns the store-assigned key.
	Create(ctx context.Context, collection string, record reconcile.Record) (string, error)

	// Update merges fields into the record with the given storage key.
	Update(ctx context.Context, collection, key string, fields reconcile.Record) error

	// Delete removes the record with the given storage key.
	Delete(ctx context.Context, collection, key string) error
}
