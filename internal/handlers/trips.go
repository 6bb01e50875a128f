package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rktransport/fleetops/internal/models"
	"github.com/rktransport/fleetops/internal/reconcile"
	"github.com/rktransport/fleetops/internal/sync"
)

// TripHandler handles trip collection requests.
type TripHandler struct {
	orchestrator *sync.Orchestrator
}

// NewTripHandler creates a trip handler.
func NewTripHandler(orchestrator *sync.Orchestrator) *TripHandler {
	return &TripHandler{orchestrator: orchestrator}
}

// Collection serves GET (list reconciled trips) and POST (create) on
// /api/trips.
func (h *TripHandler) Collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		respondJSON(w, http.StatusOK, h.orchestrator.Trips())
	case http.MethodPost:
		var trip models.Trip
		if err := json.NewDecoder(r.Body).Decode(&trip); err != nil {
			respondJSON(w, http.StatusBadRequest, writeResult{Error: "invalid JSON"})
			return
		}
		key, err := h.orchestrator.CreateTrip(r.Context(), trip)
		if err != nil {
			respondWriteErr(w, err)
			return
		}
		respondJSON(w, http.StatusCreated, writeResult{Success: true, ID: key})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// Item serves PUT (partial update) and DELETE on /api/trips/{key}.
func (h *TripHandler) Item(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/api/trips/")
	switch r.Method {
	case http.MethodPut:
		var fields reconcile.Record
		if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
			respondJSON(w, http.StatusBadRequest, writeResult{Error: "invalid JSON"})
			return
		}
		if err := h.orchestrator.UpdateTrip(r.Context(), key, fields); err != nil {
			respondWriteErr(w, err)
			return
		}
		respondJSON(w, http.StatusOK, writeResult{Success: true})
	case http.MethodDelete:
		if err := h.orchestrator.DeleteTrip(r.Context(), key); err != nil {
			respondWriteErr(w, err)
			return
		}
		respondJSON(w, http.StatusOK, writeResult{Success: true})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
