package handlers

import (
	"context"
	"net/http"
	"os"
	"runtime"

	"go.uber.org/zap"

	"github.com/ekaya-inc/querybridge/pkg/config"
)

// PingResponse contains service status and version information.
type PingResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Service     string `json:"service"`
	GoVersion   string `json:"go_version"`
	Hostname    string `json:"hostname"`
	Environment string `json:"environment"`
	Backend     string `json:"backend"`
}

// ReadyResponse reports whether the query backend answered the probe.
type ReadyResponse struct {
	Status  string `json:"status"`
	Backend string `json:"backend"`
}

// Prober reports whether the query backend is usable.
type Prober interface {
	Probe(ctx context.Context) bool
}

// HealthHandler handles health check, ping and readiness endpoints.
type HealthHandler struct {
	cfg    *config.Config
	prober Prober
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. A nil prober reports not ready.
func NewHealthHandler(cfg *config.Config, prober Prober, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, prober: prober, logger: logger}
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.Health)
	mux.HandleFunc("/ping", h.Ping)
	mux.HandleFunc("/ready", h.Ready)
}

// Health handles GET /health requests. It does not touch the backend.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ping handles GET /ping requests.
// Returns detailed service information including version and environment.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		http.Error(w, "failed to get hostname", http.StatusInternalServerError)
		return
	}

	response := PingResponse{
		Status:      "ok",
		Version:     h.cfg.Version,
		Service:     "querybridge",
		GoVersion:   runtime.Version(),
		Hostname:    hostname,
		Environment: h.cfg.Env,
		Backend:     h.cfg.Backend.Type,
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}

// Ready handles GET /ready requests by running the backend probe.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	status, code := "ready", http.StatusOK
	if h.prober == nil || !h.prober.Probe(r.Context()) {
		status, code = "unavailable", http.StatusServiceUnavailable
	}

	response := ReadyResponse{Status: status, Backend: h.cfg.Backend.Type}
	if err := WriteJSON(w, code, response); err != nil {
		h.logger.Error("Failed to encode ready response", zap.Error(err))
	}
}
