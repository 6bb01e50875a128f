// Package sync owns the subscription lifecycle against the remote store and
// the validated CRUD path into it. Every pushed snapshot is reconciled before
// anyone sees it; the reconciled collection is owned exclusively by the
// orchestrator and consumers only ever receive copies.
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/rktransport/fleetops/internal/costing"
	"github.com/rktransport/fleetops/internal/models"
	"github.com/rktransport/fleetops/internal/reconcile"
	"github.com/rktransport/fleetops/internal/stats"
	"github.com/rktransport/fleetops/internal/store"
)

// State is the subscription state of a managed collection.
type State string

const (
	StateIdle       State = "idle"
	StateSubscribed State = "subscribed"
	StateError      State = "error"
)

// ErrTripNotSynced is returned when a costing-relevant trip update arrives
// before the trip is visible in the reconciled view. Repricing needs the
// stored lines; writing without them would wipe the trip's materials.
var ErrTripNotSynced = errors.New("trip not yet in reconciled view")

// collectionView is the orchestrator's reconciled view of one collection.
type collectionView struct {
	state    State
	lastErr  error
	vehicles []models.Vehicle
	trips    []models.Trip
	skipped  int
	dropped  int
	cancel   context.CancelFunc
}

// Orchestrator wires the remote store, the reconciler, the costing engine and
// the aggregator together. It never retries failed writes; retry policy
// belongs to the caller.
type Orchestrator struct {
	store    store.RemoteStore
	engine   *costing.Engine
	validate *validator.Validate

	mu         sync.RWMutex
	views      map[string]*collectionView
	fleetStats models.FleetStats
	tripStats  models.TripStats
}

// New creates an orchestrator over the given store and costing engine.
func New(st store.RemoteStore, engine *costing.Engine) *Orchestrator {
	return &Orchestrator{
		store:    st,
		engine:   engine,
		validate: validator.New(),
		views: map[string]*collectionView{
			store.CollectionVehicles: {state: StateIdle},
			store.CollectionTrips:    {state: StateIdle},
		},
	}
}

// Start opens the orchestrator's own feeds for the vehicle and trip
// collections, keeping the reconciled views and derived stats current until
// ctx is cancelled.
func (o *Orchestrator) Start(ctx context.Context) error {
	for _, collection := range []string{store.CollectionVehicles, store.CollectionTrips} {
		closeFn, err := o.subscribe(ctx, collection, nil, true)
		if err != nil {
			return fmt.Errorf("start feed for %s: %w", collection, err)
		}
		o.mu.Lock()
		o.views[collection].cancel = func() { closeFn() }
		o.mu.Unlock()
	}
	return nil
}

// Stop closes the orchestrator's internal feeds. External subscriptions
// opened with Subscribe are unaffected.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, view := range o.views {
		if view.cancel != nil {
			view.cancel()
			view.cancel = nil
		}
	}
}

// Subscribe opens an independent snapshot feed for the collection. Each
// incoming payload runs through its own reconciliation pass before onUpdate
// is invoked with the reconciled records. The shared view, stats and
// CollectionState are driven only by the feeds Start opens; closing an
// external feed never disturbs them. The returned function closes the feed
// and stops further delivery; in-flight writes are unaffected.
func (o *Orchestrator) Subscribe(ctx context.Context, collection string, onUpdate func([]reconcile.Record)) (func(), error) {
	return o.subscribe(ctx, collection, onUpdate, false)
}

func (o *Orchestrator) subscribe(ctx context.Context, collection string, onUpdate func([]reconcile.Record), owned bool) (func(), error) {
	policy, err := policyFor(collection)
	if err != nil {
		return nil, err
	}
	sub, err := o.store.Subscribe(ctx, collection)
	if err != nil {
		return nil, err
	}

	if owned {
		o.setState(collection, StateSubscribed, nil)
	}
	done := make(chan struct{})

	go func() {
		if owned {
			defer o.setState(collection, StateIdle, nil)
		}
		for {
			select {
			case <-done:
				return
			case snap, ok := <-sub.Snapshots():
				if !ok {
					return
				}
				res := reconcile.Reconcile(snap.Records, policy)
				if res.Skipped > 0 || res.DroppedDuplicates > 0 {
					log.WithFields(log.Fields{
						"collection": collection,
						"skipped":    res.Skipped,
						"duplicates": res.DroppedDuplicates,
					}).Debug("reconciliation pass dropped records")
				}
				if owned {
					o.absorb(collection, res)
				}
				if onUpdate != nil {
					onUpdate(res.Records)
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			sub.Close()
		})
	}, nil
}

// absorb installs a reconciled pass into the orchestrator's view and
// recomputes the derived stats from scratch.
func (o *Orchestrator) absorb(collection string, res reconcile.Result) {
	o.mu.Lock()
	defer o.mu.Unlock()

	view := o.views[collection]
	view.skipped = res.Skipped
	view.dropped = res.DroppedDuplicates

	switch collection {
	case store.CollectionVehicles:
		vehicles, err := decodeRecords[models.Vehicle](res.Records)
		if err != nil {
			view.state = StateError
			view.lastErr = err
			log.WithError(err).Warn("vehicle snapshot decode failed")
			return
		}
		view.vehicles = vehicles
		o.fleetStats = stats.Fleet(vehicles)
	case store.CollectionTrips:
		trips, err := decodeRecords[models.Trip](res.Records)
		if err != nil {
			view.state = StateError
			view.lastErr = err
			log.WithError(err).Warn("trip snapshot decode failed")
			return
		}
		view.trips = trips
		o.tripStats = stats.Trips(trips)
	}
	// A successful push clears a transient error.
	view.state = StateSubscribed
	view.lastErr = nil
}

// CreateVehicle validates and writes a new vehicle. The caller sees it only
// through the next snapshot push; nothing is inserted speculatively.
func (o *Orchestrator) CreateVehicle(ctx context.Context, v models.Vehicle) (string, error) {
	if err := o.validate.Struct(v); err != nil {
		return "", validationError(err)
	}
	if v.Status == "" {
		v.Status = models.VehicleAvailable
	}
	if !models.IsValidVehicleStatus(v.Status) {
		return "", &models.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", v.Status)}
	}
	rec, err := toRecord(v)
	if err != nil {
		return "", err
	}
	stampNew(rec)
	key, err := o.store.Create(ctx, store.CollectionVehicles, rec)
	if err != nil {
		return "", &models.RemoteWriteError{Op: "create", Collection: store.CollectionVehicles, Err: err}
	}
	log.WithFields(log.Fields{"plate_number": v.PlateNumber, "key": key}).Info("created vehicle")
	return key, nil
}

// CreateTrip validates the trip, assigns its identifiers, computes the cost
// breakdown and writes it to the remote store.
func (o *Orchestrator) CreateTrip(ctx context.Context, t models.Trip) (string, error) {
	if err := o.validate.Struct(t); err != nil {
		return "", validationError(err)
	}
	if len(t.BillableLines()) == 0 {
		return "", &models.ValidationError{
			Field:  "material_lines",
			Reason: "at least one line with material, quantity and rate is required",
		}
	}
	if t.TripID == "" {
		t.TripID = uuid.NewString()
	}
	if t.OrderID == "" {
		t.OrderID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = models.TripPlanned
	}
	t = o.engine.PriceTrip(t)

	rec, err := toRecord(t)
	if err != nil {
		return "", err
	}
	stampNew(rec)
	key, err := o.store.Create(ctx, store.CollectionTrips, rec)
	if err != nil {
		return "", &models.RemoteWriteError{Op: "create", Collection: store.CollectionTrips, Err: err}
	}
	log.WithFields(log.Fields{"trip_id": t.TripID, "key": key}).Info("created trip")
	return key, nil
}

// UpdateVehicle merges partial fields into a stored vehicle, stamping a fresh
// updated_at.
func (o *Orchestrator) UpdateVehicle(ctx context.Context, key string, fields reconcile.Record) error {
	return o.update(ctx, store.CollectionVehicles, key, fields)
}

// UpdateTrip merges partial fields into a stored trip. When the update
// touches costing inputs the breakdown is recomputed against the merged trip,
// so the persisted breakdown can never drift from its inputs. Such updates
// return ErrTripNotSynced until the trip appears in the reconciled view.
func (o *Orchestrator) UpdateTrip(ctx context.Context, key string, fields reconcile.Record) error {
	_, touchesLines := fields["material_lines"]
	_, touchesSurcharges := fields["surcharges"]
	if touchesLines || touchesSurcharges {
		merged, err := o.mergedTrip(key, fields)
		if err != nil {
			return err
		}
		priced := o.engine.PriceTrip(merged)
		lines, err := toAny(priced.MaterialLines)
		if err != nil {
			return err
		}
		breakdown, err := toAny(priced.CostBreakdown)
		if err != nil {
			return err
		}
		fields = copyFields(fields)
		fields["material_lines"] = lines
		fields["cost_breakdown"] = breakdown
	}
	return o.update(ctx, store.CollectionTrips, key, fields)
}

// DeleteVehicle removes a vehicle from the remote store.
func (o *Orchestrator) DeleteVehicle(ctx context.Context, key string) error {
	return o.deleteRecord(ctx, store.CollectionVehicles, key)
}

// DeleteTrip removes a trip from the remote store.
func (o *Orchestrator) DeleteTrip(ctx context.Context, key string) error {
	return o.deleteRecord(ctx, store.CollectionTrips, key)
}

func (o *Orchestrator) update(ctx context.Context, collection, key string, fields reconcile.Record) error {
	if key == "" {
		return &models.ValidationError{Field: "key", Reason: "storage key is required"}
	}
	fields = copyFields(fields)
	fields["updated_at"] = time.Now().UnixMilli()
	if err := o.store.Update(ctx, collection, key, fields); err != nil {
		return &models.RemoteWriteError{Op: "update", Collection: collection, Err: err}
	}
	return nil
}

func (o *Orchestrator) deleteRecord(ctx context.Context, collection, key string) error {
	if key == "" {
		return &models.ValidationError{Field: "key", Reason: "storage key is required"}
	}
	if err := o.store.Delete(ctx, collection, key); err != nil {
		return &models.RemoteWriteError{Op: "delete", Collection: collection, Err: err}
	}
	return nil
}

// mergedTrip overlays partial fields on the orchestrator's reconciled copy of
// the trip. The stored record is the merge base; a trip that has not reached
// the view yet cannot be merged, so the update is refused rather than priced
// against an empty base.
func (o *Orchestrator) mergedTrip(key string, fields reconcile.Record) (models.Trip, error) {
	var base reconcile.Record
	o.mu.RLock()
	for _, t := range o.views[store.CollectionTrips].trips {
		if t.StorageKey == key {
			rec, err := toRecord(t)
			if err != nil {
				o.mu.RUnlock()
				return models.Trip{}, err
			}
			base = rec
			break
		}
	}
	o.mu.RUnlock()
	if base == nil {
		return models.Trip{}, fmt.Errorf("merge trip %q: %w", key, ErrTripNotSynced)
	}
	for k, v := range fields {
		base[k] = v
	}
	trips, err := decodeRecords[models.Trip]([]reconcile.Record{base})
	if err != nil {
		return models.Trip{}, err
	}
	return trips[0], nil
}

// Vehicles returns a copy of the latest reconciled vehicle collection.
func (o *Orchestrator) Vehicles() []models.Vehicle {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]models.Vehicle, len(o.views[store.CollectionVehicles].vehicles))
	copy(out, o.views[store.CollectionVehicles].vehicles)
	return out
}

// Trips returns a copy of the latest reconciled trip collection.
func (o *Orchestrator) Trips() []models.Trip {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]models.Trip, len(o.views[store.CollectionTrips].trips))
	copy(out, o.views[store.CollectionTrips].trips)
	return out
}

// FleetStats returns the latest aggregator output for vehicles.
func (o *Orchestrator) FleetStats() models.FleetStats {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.fleetStats
}

// TripStats returns the latest aggregator output for trips.
func (o *Orchestrator) TripStats() models.TripStats {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.tripStats
}

// CollectionState reports the subscription state and last error for a
// managed collection, plus the diagnostic counts from its latest pass.
func (o *Orchestrator) CollectionState(collection string) (State, error, int, int) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	view, ok := o.views[collection]
	if !ok {
		return StateIdle, nil, 0, 0
	}
	return view.state, view.lastErr, view.skipped, view.dropped
}

func (o *Orchestrator) setState(collection string, state State, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	view, ok := o.views[collection]
	if !ok {
		view = &collectionView{}
		o.views[collection] = view
	}
	view.state = state
	view.lastErr = err
}

func policyFor(collection string) (reconcile.Policy, error) {
	switch collection {
	case store.CollectionVehicles:
		return reconcile.VehiclePolicy(), nil
	case store.CollectionTrips:
		return reconcile.TripPolicy(), nil
	default:
		return reconcile.Policy{}, fmt.Errorf("unmanaged collection %q", collection)
	}
}

func stampNew(rec reconcile.Record) {
	now := time.Now().UnixMilli()
	rec["created_at"] = now
	rec["updated_at"] = now
}

func copyFields(fields reconcile.Record) reconcile.Record {
	out := make(reconcile.Record, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// toRecord converts a typed entity into the loose record shape the store
// speaks, via its JSON form.
func toRecord(entity any) (reconcile.Record, error) {
	data, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	var rec reconcile.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}

func toAny(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// decodeRecords converts reconciled records into typed entities. Loose
// numeric and timestamp fields coerce rather than fail, so a single odd field
// cannot take down a snapshot.
func decodeRecords[T any](records []reconcile.Record) ([]T, error) {
	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	out := make([]T, 0, len(records))
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return out, nil
}

// validationError converts a validator failure into the error shape callers
// are promised.
func validationError(err error) error {
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		first := verrs[0]
		return &models.ValidationError{
			Field:  first.Namespace(),
			Reason: fmt.Sprintf("failed %q constraint", first.Tag()),
		}
	}
	return &models.ValidationError{Field: "entity", Reason: err.Error()}
}
