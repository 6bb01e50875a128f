package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rktransport/fleetops/internal/models"
	"github.com/rktransport/fleetops/internal/reconcile"
	"github.com/rktransport/fleetops/internal/sync"
)

// VehicleHandler handles vehicle collection requests.
type VehicleHandler struct {
	orchestrator *sync.Orchestrator
}

// NewVehicleHandler creates a vehicle handler.
func NewVehicleHandler(orchestrator *sync.Orchestrator) *VehicleHandler {
	return &VehicleHandler{orchestrator: orchestrator}
}

// Collection serves GET (list reconciled vehicles) and POST (create) on
// /api/vehicles.
func (h *VehicleHandler) Collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		respondJSON(w, http.StatusOK, h.orchestrator.Vehicles())
	case http.MethodPost:
		var vehicle models.Vehicle
		if err := json.NewDecoder(r.Body).Decode(&vehicle); err != nil {
			respondJSON(w, http.StatusBadRequest, writeResult{Error: "invalid JSON"})
			return
		}
		key, err := h.orchestrator.CreateVehicle(r.Context(), vehicle)
		if err != nil {
			respondWriteErr(w, err)
			return
		}
		respondJSON(w, http.StatusCreated, writeResult{Success: true, ID: key})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// Item serves PUT (partial update) and DELETE on /api/vehicles/{key}.
func (h *VehicleHandler) Item(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/api/vehicles/")
	switch r.Method {
	case http.MethodPut:
		var fields reconcile.Record
		if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
			respondJSON(w, http.StatusBadRequest, writeResult{Error: "invalid JSON"})
			return
		}
		if err := h.orchestrator.UpdateVehicle(r.Context(), key, fields); err != nil {
			respondWriteErr(w, err)
			return
		}
		respondJSON(w, http.StatusOK, writeResult{Success: true})
	case http.MethodDelete:
		if err := h.orchestrator.DeleteVehicle(r.Context(), key); err != nil {
			respondWriteErr(w, err)
			return
		}
		respondJSON(w, http.StatusOK, writeResult{Success: true})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
