// Package handlers exposes the dashboard HTTP surface: login, vehicle and
// trip CRUD, and stats. CRUD responses carry the {success, id | error} shape
// the presentation layer consumes; remote-store error messages are surfaced
// verbatim.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/rktransport/fleetops/internal/models"
	"github.com/rktransport/fleetops/internal/sync"
)

// writeResult is the response body for create/update/delete operations.
type writeResult struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
	Error   string `json:"error,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Error("failed to encode response")
	}
}

func respondWriteErr(w http.ResponseWriter, err error) {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		respondJSON(w, http.StatusBadRequest, writeResult{Error: verr.Error()})
		return
	}
	var rerr *models.RemoteWriteError
	if errors.As(err, &rerr) {
		respondJSON(w, http.StatusBadGateway, writeResult{Error: rerr.Error()})
		return
	}
	if errors.Is(err, sync.ErrTripNotSynced) {
		respondJSON(w, http.StatusConflict, writeResult{Error: err.Error()})
		return
	}
	respondJSON(w, http.StatusInternalServerError, writeResult{Error: err.Error()})
}
