package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/rktransport/fleetops/internal/auth"
	"github.com/rktransport/fleetops/internal/config"
	"github.com/rktransport/fleetops/internal/costing"
	"github.com/rktransport/fleetops/internal/handlers"
	"github.com/rktransport/fleetops/internal/middleware"
	"github.com/rktransport/fleetops/internal/store"
	"github.com/rktransport/fleetops/internal/sync"
)

// readOrWrite applies writer-role checks to mutating methods and plain auth
// to reads, so a single handler can serve both on one route.
func readOrWrite(service *auth.Service, h http.HandlerFunc) http.HandlerFunc {
	read := middleware.RequireAuth(service, h)
	write := middleware.RequireWriter(service, h)
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodDelete:
			write(w, r)
		default:
			read(w, r)
		}
	}
}

func buildStore(cfg config.Config) (store.RemoteStore, store.UserCollection, func(), error) {
	switch cfg.StoreBackend {
	case "mongo":
		client, err := store.ConnectMongo(cfg.MongoURI)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		db := client.Database(cfg.MongoDB)
		users := &store.MongoUserCollection{Collection: db.Collection("users")}
		cleanup := func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(ctx); err != nil {
				log.WithError(err).Warn("mongo disconnect failed")
			}
		}
		return store.NewMongoStore(db), users, cleanup, nil
	case "mqtt":
		st, err := store.NewMQTTStore(cfg.MQTTBroker, "fleetops-server", cfg.MQTTPrefix)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
		}
		return st, nil, st.Close, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func main() {
	cfg := config.Load()

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)

	remote, users, cleanup, err := buildStore(cfg)
	if err != nil {
		log.WithError(err).Fatal("store setup failed")
	}
	defer cleanup()
	log.WithField("backend", cfg.StoreBackend).Info("Connected to remote store")

	engine := costing.NewEngine(cfg.TaxRate)
	orchestrator := sync.New(remote, engine)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := orchestrator.Start(ctx); err != nil {
		log.WithError(err).Fatal("failed to start sync orchestrator")
	}
	defer orchestrator.Stop()

	authService := auth.NewService(cfg.JWTSecret, 24*time.Hour)

	vehicleHandler := handlers.NewVehicleHandler(orchestrator)
	tripHandler := handlers.NewTripHandler(orchestrator)
	statsHandler := handlers.NewStatsHandler(orchestrator)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/vehicles", readOrWrite(authService, vehicleHandler.Collection))
	mux.HandleFunc("/api/vehicles/", readOrWrite(authService, vehicleHandler.Item))
	mux.HandleFunc("/api/trips", readOrWrite(authService, tripHandler.Collection))
	mux.HandleFunc("/api/trips/", readOrWrite(authService, tripHandler.Item))
	mux.HandleFunc("/api/stats", middleware.RequireAuth(authService, statsHandler.Stats))

	// Account routes need user persistence, which only the Mongo backend
	// carries.
	if users != nil {
		authHandler := handlers.NewAuthHandler(authService, users)
		mux.HandleFunc("/api/login", authHandler.Login)
		mux.HandleFunc("/api/register", middleware.RequireAdmin(authService, authHandler.Register))
		mux.HandleFunc("/api/me", middleware.RequireAuth(authService, authHandler.Profile))
	} else {
		log.Warn("user persistence unavailable on this backend; account routes disabled")
	}

	server := &http.Server{Addr: ":" + cfg.Port, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("server shutdown failed")
		}
	}()

	log.WithField("port", cfg.Port).Info("HTTP server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("server error")
	}
	log.Info("Server stopped")
}
