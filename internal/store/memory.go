package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/rktransport/fleetops/internal/reconcile"
)

// MemoryStore is an in-process RemoteStore with the same push semantics as
// the networked adapters: every successful write fans a fresh full-collection
// snapshot out to all subscribers. Used by tests and by the simulator's
// local mode.
type MemoryStore struct {
	mu     sync.Mutex
	data   map[string]map[string]reconcile.Record
	order  map[string][]string
	subs   map[string][]*memorySubscription
	closed bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:  make(map[string]map[string]reconcile.Record),
		order: make(map[string][]string),
		subs:  make(map[string][]*memorySubscription),
	}
}

type memorySubscription struct {
	store      *MemoryStore
	collection string
	ch         chan Snapshot
	once       sync.Once
}

func (s *memorySubscription) Snapshots() <-chan Snapshot { return s.ch }

func (s *memorySubscription) Close() {
	s.once.Do(func() {
		s.store.mu.Lock()
		subs := s.store.subs[s.collection]
		for i, sub := range subs {
			if sub == s {
				s.store.subs[s.collection] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		s.store.mu.Unlock()
		close(s.ch)
	})
}

// Subscribe opens a snapshot feed. The current contents are delivered
// immediately as the first snapshot.
func (m *MemoryStore) Subscribe(ctx context.Context, collection string) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	sub := &memorySubscription{store: m, collection: collection, ch: make(chan Snapshot, 16)}
	m.subs[collection] = append(m.subs[collection], sub)
	sub.ch <- m.snapshotLocked(collection)
	return sub, nil
}

// Create inserts the record under a generated key and notifies subscribers.
func (m *MemoryStore) Create(ctx context.Context, collection string, record reconcile.Record) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", ErrClosed
	}
	key := uuid.NewString()
	if m.data[collection] == nil {
		m.data[collection] = make(map[string]reconcile.Record)
	}
	stored := copyRecord(record)
	stored["_key"] = key
	m.data[collection][key] = stored
	m.order[collection] = append(m.order[collection], key)
	m.publishLocked(collection)
	return key, nil
}

// Update merges fields into an existing record and notifies subscribers.
func (m *MemoryStore) Update(ctx context.Context, collection, key string, fields reconcile.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	existing, ok := m.data[collection][key]
	if !ok {
		return fmt.Errorf("record %s not found in %s", key, collection)
	}
	for k, v := range fields {
		existing[k] = v
	}
	m.publishLocked(collection)
	return nil
}

// Delete removes a record and notifies subscribers.
func (m *MemoryStore) Delete(ctx context.Context, collection, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if _, ok := m.data[collection][key]; !ok {
		return fmt.Errorf("record %s not found in %s", key, collection)
	}
	delete(m.data[collection], key)
	keys := m.order[collection]
	for i, k := range keys {
		if k == key {
			m.order[collection] = append(keys[:i], keys[i+1:]...)
			break
		}
	}
	m.publishLocked(collection)
	return nil
}

// Close shuts the store down and closes all subscriptions.
func (m *MemoryStore) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	for _, subs := range m.subs {
		for _, sub := range subs {
			sub.once.Do(func() { close(sub.ch) })
		}
	}
	m.subs = make(map[string][]*memorySubscription)
}

func (m *MemoryStore) snapshotLocked(collection string) Snapshot {
	records := make([]reconcile.Record, 0, len(m.order[collection]))
	for _, key := range m.order[collection] {
		records = append(records, copyRecord(m.data[collection][key]))
	}
	return Snapshot{Collection: collection, Records: records}
}

func (m *MemoryStore) publishLocked(collection string) {
	snap := m.snapshotLocked(collection)
	for _, sub := range m.subs[collection] {
		select {
		case sub.ch <- snap:
		default:
			// Slow subscriber: drop this snapshot, the next write delivers a
			// fresher one anyway.
		}
	}
}

func copyRecord(r reconcile.Record) reconcile.Record {
	out := make(reconcile.Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
