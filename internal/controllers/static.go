package controllers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthController checks the stores this instance depends on. The analysis
// backend has its own route since the widget still works while it is down.
type HealthController struct {
	checks  map[string]HealthChecker
	timeout time.Duration
	logger  *slog.Logger
}

func NewHealthController(checks map[string]HealthChecker, timeout time.Duration, logger *slog.Logger) *HealthController {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthController{checks: checks, timeout: timeout, logger: logger}
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// GetHealth returns 200 when every check passes and 503 otherwise.
func (c *HealthController) GetHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), c.timeout)
	defer cancel()

	resp := healthResponse{Status: "ok"}
	status := http.StatusOK
	for name, check := range c.checks {
		if resp.Checks == nil {
			resp.Checks = make(map[string]string, len(c.checks))
		}
		if err := check.Health(ctx); err != nil {
			c.logger.Warn("dependency unhealthy", "check", name, "error", err)
			resp.Checks[name] = err.Error()
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	writeJSON(w, status, resp)
}

// BackendController probes the menu analysis backend.
type BackendController struct {
	backend HealthChecker
	timeout time.Duration
	logger  *slog.Logger
}

func NewBackendController(backend HealthChecker, timeout time.Duration, logger *slog.Logger) *BackendController {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &BackendController{backend: backend, timeout: timeout, logger: logger}
}

// GetHealth returns 200 when the analysis backend answers its health check
// and 503 otherwise.
func (c *BackendController) GetHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), c.timeout)
	defer cancel()

	if err := c.backend.Health(ctx); err != nil {
		c.logger.Warn("menu analysis backend unhealthy", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
