package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ripta/hotscrape/internal/server"
)

// HealthHandlers provides health check endpoint handlers.
type HealthHandlers struct {
	lifecycle *server.Lifecycle
}

// NewHealthHandlers creates handlers for health endpoints.
func NewHealthHandlers(lc *server.Lifecycle) *HealthHandlers {
	return &HealthHandlers{lifecycle: lc}
}

// Register adds health routes to the mux.
func (h *HealthHandlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// HealthResponse is the JSON response for health endpoints.
type HealthResponse struct {
	// Status is "ok" or "not_ready"
	Status string `json:"status"`
	// Reason explains why the server is not ready (omitted when ok)
	Reason string `json:"reason,omitempty"`
	// Uptime is how long the server has been running (only for /readyz)
	Uptime string `json:"uptime,omitempty"`
}

func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	switch h.lifecycle.State() {
	case server.StateReady:
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Uptime: h.lifecycle.Uptime().String()})
	case server.StateShuttingDown:
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "not_ready", Reason: "server is shutting down"})
	default:
		writeJSON(w, http.StatusInternalServerError, HealthResponse{Status: "error", Reason: "unknown server state"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": message, "code": code})
}
