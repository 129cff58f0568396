package handlers

import (
	"encoding/json"
	"net/http"
)

// HealthResponse is the liveness body.
type HealthResponse struct {
	Status string `json:"status"`
}

// HealthHandler reports liveness. It is unauthenticated and not rate limited.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(HealthResponse{Status: "ok"})
}
