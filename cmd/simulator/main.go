package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/rktransport/fleetops/internal/config"
	"github.com/rktransport/fleetops/internal/costing"
	"github.com/rktransport/fleetops/internal/models"
	"github.com/rktransport/fleetops/internal/reconcile"
	"github.com/rktransport/fleetops/internal/store"
	"github.com/rktransport/fleetops/internal/sync"
)

var routes = []struct {
	From string
	To   string
	Km   float64
}{
	{"Pune", "Mumbai", 150},
	{"Nashik", "Pune", 210},
	{"Mumbai", "Surat", 280},
	{"Pune", "Kolhapur", 230},
	{"Aurangabad", "Nagpur", 470},
	{"Satara", "Pune", 110},
	{"Mumbai", "Ahmedabad", 530},
	{"Solapur", "Hyderabad", 300},
}

var materials = []struct {
	Name string
	Unit models.MaterialUnit
	Rate float64
}{
	{"Sand", models.UnitBrass, 4500},
	{"Cement", models.UnitBags, 380},
	{"Steel", models.UnitTons, 52000},
	{"Bricks", models.UnitPieces, 9},
	{"Aggregate", models.UnitBrass, 3800},
	{"Murum", models.UnitBrass, 2200},
}

var drivers = []struct {
	Name    string
	Contact string
}{
	{"Ramesh Pawar", "9822011001"},
	{"Suresh Jadhav", "9822011002"},
	{"Vikram Shinde", "9822011003"},
	{"Anil Kale", "9822011004"},
	{"Santosh More", "9822011005"},
}

var customers = []models.Customer{
	{Name: "Shree Constructions", Phone: "9850022001", Address: "Baner, Pune"},
	{Name: "Patil Builders", Phone: "9850022002", Address: "Andheri, Mumbai"},
	{Name: "Deccan Infra", Phone: "9850022003", Address: "Shivajinagar, Pune"},
	{Name: "Om Sai Developers", Phone: "9850022004", Address: "Nashik Road, Nashik"},
}

func randomPlate(i int) string {
	series := []string{"MH12", "MH14", "MH04", "MH15"}
	return fmt.Sprintf("%s%c%c%04d",
		series[rand.Intn(len(series))],
		'A'+rune(rand.Intn(26)),
		'A'+rune(rand.Intn(26)),
		1000+i)
}

func randomVehicle(i int) models.Vehicle {
	vtype := models.VehicleTypeOwned
	if rand.Intn(3) == 0 {
		vtype = models.VehicleTypeHired
	}
	driver := drivers[rand.Intn(len(drivers))]
	return models.Vehicle{
		PlateNumber:   randomPlate(i),
		Type:          vtype,
		Status:        models.VehicleAvailable,
		Capacity:      fmt.Sprintf("%d Tons", 10+rand.Intn(15)),
		DriverName:    driver.Name,
		DriverContact: driver.Contact,
	}
}

func randomTrip(vehicle models.Vehicle) models.Trip {
	route := routes[rand.Intn(len(routes))]
	lineCount := 1 + rand.Intn(3)
	lines := make([]models.MaterialLine, 0, lineCount)
	for i := 0; i < lineCount; i++ {
		m := materials[rand.Intn(len(materials))]
		lines = append(lines, models.MaterialLine{
			Material: m.Name,
			Quantity: models.FlexFloat(float64(1 + rand.Intn(20))),
			Unit:     m.Unit,
			Rate:     models.FlexFloat(m.Rate),
		})
	}
	return models.Trip{
		VehicleRef:    vehicle.PlateNumber,
		DriverName:    vehicle.DriverName,
		DriverContact: vehicle.DriverContact,
		FromLocation:  route.From,
		ToLocation:    route.To,
		Distance:      models.FlexFloat(route.Km),
		Customer:      customers[rand.Intn(len(customers))],
		MaterialLines: lines,
		Surcharges: models.Surcharges{
			TransportCharges: models.FlexFloat(float64(500 + rand.Intn(2000))),
		},
	}
}

type simulation struct {
	orchestrator *sync.Orchestrator
	vehicles     []models.Vehicle
}

// advanceTrips walks every known trip one status forward and frees the
// vehicle when a trip completes.
func (s *simulation) advanceTrips(ctx context.Context) {
	for _, trip := range s.orchestrator.Trips() {
		var next models.TripStatus
		switch trip.Status {
		case models.TripPlanned:
			next = models.TripInProgress
		case models.TripInProgress:
			next = models.TripCompleted
		default:
			continue
		}
		if rand.Intn(2) == 0 {
			continue
		}
		fields := reconcile.Record{"status": string(next)}
		if err := s.orchestrator.UpdateTrip(ctx, trip.StorageKey, fields); err != nil {
			log.WithError(err).WithField("trip_id", trip.TripID).Warn("Failed to advance trip")
			continue
		}
		log.WithFields(log.Fields{
			"trip_id": trip.TripID,
			"status":  next,
		}).Info("Advanced trip")
		if next == models.TripCompleted {
			s.setVehicleStatus(ctx, trip.VehicleRef, models.VehicleAvailable)
		}
	}
}

func (s *simulation) setVehicleStatus(ctx context.Context, plate string, status models.VehicleStatus) {
	for _, v := range s.orchestrator.Vehicles() {
		if v.PlateNumber != plate {
			continue
		}
		fields := reconcile.Record{"status": string(status)}
		if err := s.orchestrator.UpdateVehicle(ctx, v.StorageKey, fields); err != nil {
			log.WithError(err).WithField("plate_number", plate).Warn("Failed to update vehicle status")
		}
		return
	}
}

// dispatchTrip books a new trip on a random available vehicle.
func (s *simulation) dispatchTrip(ctx context.Context) {
	available := make([]models.Vehicle, 0)
	for _, v := range s.orchestrator.Vehicles() {
		if v.Status == models.VehicleAvailable {
			available = append(available, v)
		}
	}
	if len(available) == 0 {
		return
	}
	vehicle := available[rand.Intn(len(available))]
	trip := randomTrip(vehicle)
	key, err := s.orchestrator.CreateTrip(ctx, trip)
	if err != nil {
		log.WithError(err).Error("Failed to create trip")
		return
	}
	log.WithFields(log.Fields{
		"key":     key,
		"vehicle": vehicle.PlateNumber,
		"from":    trip.FromLocation,
		"to":      trip.ToLocation,
	}).Info("Dispatched trip")
	s.setVehicleStatus(ctx, vehicle.PlateNumber, models.VehicleActive)
}

func (s *simulation) tick(ctx context.Context) {
	s.advanceTrips(ctx)
	s.dispatchTrip(ctx)
}

func buildStore(cfg config.Config) (store.RemoteStore, func(), error) {
	switch cfg.StoreBackend {
	case "mongo":
		client, err := store.ConnectMongo(cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		cleanup := func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(ctx)
		}
		return store.NewMongoStore(client.Database(cfg.MongoDB)), cleanup, nil
	case "mqtt":
		st, err := store.NewMQTTStore(cfg.MQTTBroker, "fleetops-simulator", cfg.MQTTPrefix)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func main() {
	cfg := config.Load()

	fleetSize := 5
	if val := os.Getenv("FLEET_SIZE"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			fleetSize = n
		}
	}

	interval := 5 * time.Second
	if v := os.Getenv("SIM_TICK_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			interval = time.Duration(n) * time.Second
		}
	}

	remote, cleanup, err := buildStore(cfg)
	if err != nil {
		log.WithError(err).Fatal("store setup failed")
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orchestrator := sync.New(remote, costing.NewEngine(cfg.TaxRate))
	if err := orchestrator.Start(ctx); err != nil {
		log.WithError(err).Fatal("failed to start sync orchestrator")
	}
	defer orchestrator.Stop()

	log.WithFields(log.Fields{
		"fleet_size": fleetSize,
		"backend":    cfg.StoreBackend,
		"interval":   interval,
	}).Info("Starting fleet simulation")

	sim := &simulation{orchestrator: orchestrator}
	created := 0
	for i := 0; i < fleetSize; i++ {
		vehicle := randomVehicle(i)
		key, err := orchestrator.CreateVehicle(ctx, vehicle)
		if err != nil {
			log.WithError(err).Error("Failed to create vehicle")
			continue
		}
		log.WithFields(log.Fields{
			"key":          key,
			"plate_number": vehicle.PlateNumber,
			"type":         vehicle.Type,
		}).Info("Created vehicle")
		sim.vehicles = append(sim.vehicles, vehicle)
		created++
	}

	log.WithField("created_vehicles", created).Info("Vehicle creation completed")
	if created == 0 {
		log.Error("No vehicles created. Ensure the remote store is reachable. Exiting.")
		return
	}

	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("Simulation stopped")
			return
		case <-tick.C:
			sim.tick(ctx)
		}
	}
}
