package handlers

import (
	"net/http"

	"github.com/rktransport/fleetops/internal/store"
	"github.com/rktransport/fleetops/internal/sync"
)

// StatsHandler serves the latest aggregator output.
type StatsHandler struct {
	orchestrator *sync.Orchestrator
}

// NewStatsHandler creates a stats handler.
func NewStatsHandler(orchestrator *sync.Orchestrator) *StatsHandler {
	return &StatsHandler{orchestrator: orchestrator}
}

type statsResponse struct {
	Fleet any            `json:"fleet"`
	Trips any            `json:"trips"`
	Sync  map[string]any `json:"sync"`
}

// Stats serves GET /api/stats with fleet and trip aggregates plus
// per-collection sync diagnostics.
func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	syncInfo := make(map[string]any, 2)
	for _, collection := range []string{store.CollectionVehicles, store.CollectionTrips} {
		state, lastErr, skipped, dropped := h.orchestrator.CollectionState(collection)
		info := map[string]any{
			"state":              string(state),
			"skipped_records":    skipped,
			"dropped_duplicates": dropped,
		}
		if lastErr != nil {
			info["last_error"] = lastErr.Error()
		}
		syncInfo[collection] = info
	}

	respondJSON(w, http.StatusOK, statsResponse{
		Fleet: h.orchestrator.FleetStats(),
		Trips: h.orchestrator.TripStats(),
		Sync:  syncInfo,
	})
}
