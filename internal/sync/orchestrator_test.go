package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rktransport/fleetops/internal/costing"
	"github.com/rktransport/fleetops/internal/models"
	"github.com/rktransport/fleetops/internal/reconcile"
	"github.com/rktransport/fleetops/internal/store"
)

// failingStore rejects every operation with a fixed error and counts the
// writes that reached it.
type failingStore struct {
	err    error
	writes int
}

func (f *failingStore) Subscribe(ctx context.Context, collection string) (store.Subscription, error) {
	return nil, f.err
}

func (f *failingStore) Create(ctx context.Context, collection string, record reconcile.Record) (string, error) {
	f.writes++
	return "", f.err
}

func (f *failingStore) Update(ctx context.Context, collection, key string, fields reconcile.Record) error {
	f.writes++
	return f.err
}

func (f *failingStore) Delete(ctx context.Context, collection, key string) error {
	f.writes++
	return f.err
}

func newTestOrchestrator(st store.RemoteStore) *Orchestrator {
	return New(st, costing.NewEngine(costing.DefaultTaxRate))
}

func validTrip() models.Trip {
	return models.Trip{
		VehicleRef: "MH12AB1234",
		DriverName: "Ravi",
		Customer:   models.Customer{Name: "Acme Constructions", Phone: "9822000000"},
		MaterialLines: []models.MaterialLine{
			{Material: "Sand", Quantity: 10, Unit: models.UnitTons, Rate: 150},
		},
		Surcharges: models.Surcharges{TransportCharges: 500, OtherCharges: 100},
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never met")
}

func TestCreateTrip_ValidationGate(t *testing.T) {
	st := &failingStore{err: errors.New("should never be reached")}
	o := newTestOrchestrator(st)

	trip := validTrip()
	trip.Customer.Phone = ""

	_, err := o.CreateTrip(context.Background(), trip)
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Field, "Phone")
	assert.Zero(t, st.writes, "validation failure must not issue a remote write")
}

func TestCreateTrip_RequiresBillableLine(t *testing.T) {
	st := &failingStore{err: errors.New("unreachable")}
	o := newTestOrchestrator(st)

	trip := validTrip()
	trip.MaterialLines = []models.MaterialLine{
		{Material: "Sand", Quantity: 0, Rate: 150}, // not fully specified
	}

	_, err := o.CreateTrip(context.Background(), trip)
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "material_lines", verr.Field)
	assert.Zero(t, st.writes)
}

func TestCreateVehicle_Validation(t *testing.T) {
	st := &failingStore{err: errors.New("unreachable")}
	o := newTestOrchestrator(st)

	_, err := o.CreateVehicle(context.Background(), models.Vehicle{Type: models.VehicleTypeOwned})
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Zero(t, st.writes)

	_, err = o.CreateVehicle(context.Background(), models.Vehicle{
		PlateNumber: "KA01XY0001",
		Type:        models.VehicleTypeOwned,
		Status:      "flying",
	})
	require.ErrorAs(t, err, &verr)
	assert.Zero(t, st.writes)
}

func TestCreateVehicle_RemoteFailureSurfaced(t *testing.T) {
	st := &failingStore{err: errors.New("permission denied")}
	o := newTestOrchestrator(st)

	_, err := o.CreateVehicle(context.Background(), models.Vehicle{
		PlateNumber: "KA01XY0001",
		Type:        models.VehicleTypeHired,
	})
	var rerr *models.RemoteWriteError
	require.ErrorAs(t, err, &rerr)
	assert.Contains(t, rerr.Error(), "permission denied")
	assert.Equal(t, 1, st.writes)
}

func TestCreateTrip_ComputesCostBreakdown(t *testing.T) {
	mem := store.NewMemoryStore()
	defer mem.Close()
	o := newTestOrchestrator(mem)
	require.NoError(t, o.Start(context.Background()))
	defer o.Stop()

	key, err := o.CreateTrip(context.Background(), validTrip())
	require.NoError(t, err)
	require.NotEmpty(t, key)

	waitFor(t, func() bool { return len(o.Trips()) == 1 })
	trip := o.Trips()[0]
	assert.NotEmpty(t, trip.TripID)
	assert.NotEmpty(t, trip.OrderID)
	assert.Equal(t, models.TripPlanned, trip.Status)
	assert.Equal(t, 1500.0, trip.MaterialLines[0].Amount)
	assert.Equal(t, 1500.0, trip.CostBreakdown.MaterialsTotal)
	assert.Equal(t, 2100.0, trip.CostBreakdown.Subtotal)
	assert.Equal(t, 378.0, trip.CostBreakdown.Tax)
	assert.Equal(t, 2478.0, trip.CostBreakdown.Total)
}

func TestOrchestrator_StatsFollowSnapshots(t *testing.T) {
	mem := store.NewMemoryStore()
	defer mem.Close()
	o := newTestOrchestrator(mem)
	require.NoError(t, o.Start(context.Background()))
	defer o.Stop()

	_, err := o.CreateVehicle(context.Background(), models.Vehicle{
		PlateNumber: "V1", Type: models.VehicleTypeOwned, Status: models.VehicleActive,
	})
	require.NoError(t, err)
	key, err := o.CreateVehicle(context.Background(), models.Vehicle{
		PlateNumber: "V2", Type: models.VehicleTypeOwned,
	})
	require.NoError(t, err)

	waitFor(t, func() bool { return o.FleetStats().Total == 2 })
	s := o.FleetStats()
	assert.Equal(t, 1, s.Active)
	assert.Equal(t, 1, s.Available)

	require.NoError(t, o.UpdateVehicle(context.Background(), key, reconcile.Record{"status": "maintenance"}))
	waitFor(t, func() bool { return o.FleetStats().Maintenance == 1 })

	require.NoError(t, o.DeleteVehicle(context.Background(), key))
	waitFor(t, func() bool { return o.FleetStats().Total == 1 })
}

func TestSubscribe_OnUpdateGetsReconciledRecords(t *testing.T) {
	mem := store.NewMemoryStore()
	defer mem.Close()
	o := newTestOrchestrator(mem)

	updates := make(chan []reconcile.Record, 8)
	closeFn, err := o.Subscribe(context.Background(), store.CollectionVehicles, func(records []reconcile.Record) {
		updates <- records
	})
	require.NoError(t, err)
	defer closeFn()

	// Initial empty snapshot.
	select {
	case records := <-updates:
		assert.Empty(t, records)
	case <-time.After(time.Second):
		t.Fatal("no initial update")
	}

	_, err = mem.Create(context.Background(), store.CollectionVehicles, reconcile.Record{
		"plate_number": "V1", "updated_at": int64(100),
	})
	require.NoError(t, err)

	select {
	case records := <-updates:
		require.Len(t, records, 1)
		assert.Equal(t, "V1", records[0]["plate_number"])
	case <-time.After(time.Second):
		t.Fatal("no update after create")
	}
}

func TestSubscribe_CloseStopsDelivery(t *testing.T) {
	mem := store.NewMemoryStore()
	defer mem.Close()
	o := newTestOrchestrator(mem)

	var count int
	done := make(chan struct{}, 8)
	closeFn, err := o.Subscribe(context.Background(), store.CollectionVehicles, func([]reconcile.Record) {
		count++
		done <- struct{}{}
	})
	require.NoError(t, err)
	<-done // initial snapshot

	closeFn()
	closeFn() // idempotent

	_, err = mem.Create(context.Background(), store.CollectionVehicles, reconcile.Record{"plate_number": "V9"})
	require.NoError(t, err)

	select {
	case <-done:
		t.Fatal("update delivered after close")
	case <-time.After(100 * time.Millisecond):
	}
	assert.Equal(t, 1, count)

	state, _, _, _ := o.CollectionState(store.CollectionVehicles)
	assert.Equal(t, StateIdle, state)
}

func TestSubscribe_UnmanagedCollection(t *testing.T) {
	o := newTestOrchestrator(store.NewMemoryStore())
	_, err := o.Subscribe(context.Background(), "maintenance", nil)
	assert.Error(t, err)
}

func TestUpdateTrip_RecomputesBreakdown(t *testing.T) {
	mem := store.NewMemoryStore()
	defer mem.Close()
	o := newTestOrchestrator(mem)
	require.NoError(t, o.Start(context.Background()))
	defer o.Stop()

	key, err := o.CreateTrip(context.Background(), validTrip())
	require.NoError(t, err)
	waitFor(t, func() bool { return len(o.Trips()) == 1 })

	err = o.UpdateTrip(context.Background(), key, reconcile.Record{
		"surcharges": map[string]any{"transport_charges": 1000, "other_charges": 0},
	})
	require.NoError(t, err)

	// materials 1500 + transport 1000 = 2500, tax 450
	waitFor(t, func() bool { return o.Trips()[0].CostBreakdown.Subtotal == 2500.0 })
	trip := o.Trips()[0]
	assert.Equal(t, 450.0, trip.CostBreakdown.Tax)
	assert.Equal(t, 2950.0, trip.CostBreakdown.Total)
}

func TestUpdateTrip_CostingUpdateBeforeViewRefused(t *testing.T) {
	mem := store.NewMemoryStore()
	defer mem.Close()
	// No Start: the trip exists in the store but not in the reconciled view.
	o := newTestOrchestrator(mem)

	key, err := o.CreateTrip(context.Background(), validTrip())
	require.NoError(t, err)

	err = o.UpdateTrip(context.Background(), key, reconcile.Record{
		"surcharges": map[string]any{"transport_charges": 1000},
	})
	require.ErrorIs(t, err, ErrTripNotSynced)

	// The stored lines must be untouched by the refused update.
	sub, err := mem.Subscribe(context.Background(), store.CollectionTrips)
	require.NoError(t, err)
	defer sub.Close()
	select {
	case snap := <-sub.Snapshots():
		require.Len(t, snap.Records, 1)
		lines, ok := snap.Records[0]["material_lines"].([]any)
		require.True(t, ok)
		assert.Len(t, lines, 1)
	case <-time.After(time.Second):
		t.Fatal("no snapshot from store")
	}

	// Updates that leave costing inputs alone do not need the view.
	require.NoError(t, o.UpdateTrip(context.Background(), key, reconcile.Record{"status": "in-progress"}))
}

func TestExternalSubscribe_DoesNotDriveCollectionState(t *testing.T) {
	mem := store.NewMemoryStore()
	defer mem.Close()
	o := newTestOrchestrator(mem)
	require.NoError(t, o.Start(context.Background()))
	defer o.Stop()

	closeFn, err := o.Subscribe(context.Background(), store.CollectionVehicles, func([]reconcile.Record) {})
	require.NoError(t, err)
	closeFn()

	state, _, _, _ := o.CollectionState(store.CollectionVehicles)
	assert.Equal(t, StateSubscribed, state, "closing an external feed must not idle the managed state")

	// The orchestrator's own feed keeps the view current.
	_, err = o.CreateVehicle(context.Background(), models.Vehicle{
		PlateNumber: "V1", Type: models.VehicleTypeOwned,
	})
	require.NoError(t, err)
	waitFor(t, func() bool { return o.FleetStats().Total == 1 })
}

func TestUpdate_RequiresKey(t *testing.T) {
	o := newTestOrchestrator(store.NewMemoryStore())
	var verr *models.ValidationError
	assert.ErrorAs(t, o.UpdateVehicle(context.Background(), "", nil), &verr)
	assert.ErrorAs(t, o.DeleteTrip(context.Background(), ""), &verr)
}

func TestDuplicateRecordsReconciledInView(t *testing.T) {
	mem := store.NewMemoryStore()
	defer mem.Close()
	o := newTestOrchestrator(mem)
	require.NoError(t, o.Start(context.Background()))
	defer o.Stop()

	// Two store records sharing one plate: the reconciled view keeps the
	// newer write only.
	_, err := mem.Create(context.Background(), store.CollectionVehicles, reconcile.Record{
		"plate_number": "MH12AB1234", "route": "old", "updated_at": int64(100),
	})
	require.NoError(t, err)
	_, err = mem.Create(context.Background(), store.CollectionVehicles, reconcile.Record{
		"plate_number": "MH12AB1234", "route": "new", "updated_at": int64(200),
	})
	require.NoError(t, err)

	waitFor(t, func() bool {
		vehicles := o.Vehicles()
		return len(vehicles) == 1 && vehicles[0].Route == "new"
	})
	_, _, _, dropped := o.CollectionState(store.CollectionVehicles)
	assert.Equal(t, 1, dropped)
}
