package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/rktransport/fleetops/internal/reconcile"
)

// MQTTStore implements RemoteStore over an MQTT broker fronting the realtime
// store. The backend publishes retained full-collection snapshots on
// <prefix>/<collection>/snapshot; writes are published as commands on
// <prefix>/<collection>/{create,update,delete} and become visible only through
// the next snapshot push, never applied locally.
type MQTTStore struct {
	client mqtt.Client
	prefix string
}

// writeCommand is the payload published for create/update/delete operations.
type writeCommand struct {
	Op     string           `json:"op"`
	Key    string           `json:"key,omitempty"`
	Record reconcile.Record `json:"record,omitempty"`
}

// NewMQTTStore connects to the broker and returns the store. prefix roots all
// topics, e.g. "fleetops".
func NewMQTTStore(brokerURL, clientID, prefix string) (*MQTTStore, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetOrderMatters(true)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	return &MQTTStore{client: client, prefix: prefix}, nil
}

type mqttSubscription struct {
	store  *MQTTStore
	topic  string
	ch     chan Snapshot
	mu     sync.Mutex
	closed bool
	once   sync.Once
}

func (s *mqttSubscription) Snapshots() <-chan Snapshot { return s.ch }

func (s *mqttSubscription) Close() {
	s.once.Do(func() {
		s.store.client.Unsubscribe(s.topic)
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
	})
}

// deliver hands a snapshot to the consumer unless the subscription is closed.
// Unsubscribe does not flush in-flight handler calls, so the closed check has
// to be under the lock.
func (s *mqttSubscription) deliver(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- snap:
	default:
		// Feed is full of stale snapshots; the newest one supersedes them.
	}
}

// Subscribe listens on the collection's snapshot topic. The broker retains
// the latest snapshot, so the current contents arrive immediately.
func (m *MQTTStore) Subscribe(ctx context.Context, collection string) (Subscription, error) {
	topic := fmt.Sprintf("%s/%s/snapshot", m.prefix, collection)
	sub := &mqttSubscription{store: m, topic: topic, ch: make(chan Snapshot, 16)}

	handler := func(_ mqtt.Client, msg mqtt.Message) {
		var records []reconcile.Record
		if err := json.Unmarshal(msg.Payload(), &records); err != nil {
			log.WithError(err).WithField("topic", topic).Warn("dropping undecodable snapshot payload")
			return
		}
		sub.deliver(Snapshot{Collection: collection, Records: records})
	}

	if token := m.client.Subscribe(topic, 1, handler); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt subscribe %s: %w", topic, token.Error())
	}

	go func() {
		<-ctx.Done()
		sub.Close()
	}()
	return sub, nil
}

// Create publishes a create command. The storage key is assigned here and
// travels with the record, since the broker round-trip carries no reply.
func (m *MQTTStore) Create(ctx context.Context, collection string, record reconcile.Record) (string, error) {
	key := uuid.NewString()
	stored := copyRecord(record)
	stored["_key"] = key
	if err := m.publish(collection, writeCommand{Op: "create", Key: key, Record: stored}); err != nil {
		return "", err
	}
	return key, nil
}

// Update publishes an update command for the given storage key.
func (m *MQTTStore) Update(ctx context.Context, collection, key string, fields reconcile.Record) error {
	return m.publish(collection, writeCommand{Op: "update", Key: key, Record: fields})
}

// Delete publishes a delete command for the given storage key.
func (m *MQTTStore) Delete(ctx context.Context, collection, key string) error {
	return m.publish(collection, writeCommand{Op: "delete", Key: key})
}

// Close disconnects from the broker.
func (m *MQTTStore) Close() {
	m.client.Disconnect(250)
}

func (m *MQTTStore) publish(collection string, cmd writeCommand) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal %s command: %w", cmd.Op, err)
	}
	topic := fmt.Sprintf("%s/%s/%s", m.prefix, collection, cmd.Op)
	token := m.client.Publish(topic, 1, false, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt publish %s: %w", topic, token.Error())
	}
	return nil
}
