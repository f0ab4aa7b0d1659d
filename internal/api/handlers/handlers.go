// Package handlers contains the HTTP endpoints of the wellness API.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sparshcare/wellness-platform/pkg/logging"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func decodeBody(w http.ResponseWriter, r *http.Request, logger *logging.Logger, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		logger.Debug("rejecting undecodable request body", "error", err, "path", r.URL.Path)
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// Health reports liveness.
func Health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
