// health.go — обработчики health endpoints для Kubernetes probes.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/bigkaa/coursehub-uploads/internal/config"
)

const (
	statusOK       = "ok"
	statusDegraded = "degraded"
	statusFail     = "fail"

	// checkTimeout — предел одной проверки готовности.
	checkTimeout = 3 * time.Second
)

// Pinger — зависимость, доступность которой проверяет readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DependencyReporter — результаты фоновых проверок зависимостей.
type DependencyReporter interface {
	Health() map[string]bool
}

// Check — проверка готовности.
// Critical: сбой переводит сервис в fail (503), иначе в degraded.
type Check struct {
	Name     string
	Pinger   Pinger
	Critical bool
}

// HealthHandler реализует /health/live и /health/ready.
type HealthHandler struct {
	version string
	checks  []Check
	deps    DependencyReporter
}

// NewHealthHandler создаёт обработчик health endpoints.
// deps может быть nil.
func NewHealthHandler(checks []Check, deps DependencyReporter) *HealthHandler {
	return &HealthHandler{
		version: config.Version,
		checks:  checks,
		deps:    deps,
	}
}

// HealthLive обрабатывает GET /health/live. Зависимости не проверяет.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    statusOK,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "upload-coordinator",
	})
}

// HealthReady обрабатывает GET /health/ready.
// Локальное хранилище критично: без него загрузки невозможны.
// Удалённое хранилище не критично: есть локальный запасной путь.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	overall := statusOK
	httpStatus := http.StatusOK
	checks := make(map[string]any, len(h.checks))

	for _, c := range h.checks {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := c.Pinger.Ping(ctx)
		cancel()

		if err == nil {
			checks[c.Name] = map[string]any{"status": statusOK}
			continue
		}
		checks[c.Name] = map[string]any{"status": statusFail, "message": err.Error()}
		if c.Critical {
			overall = statusFail
			httpStatus = http.StatusServiceUnavailable
		} else if overall != statusFail {
			overall = statusDegraded
		}
	}

	resp := map[string]any{
		"status":    overall,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "upload-coordinator",
		"checks":    checks,
	}
	if h.deps != nil {
		if deps := h.deps.Health(); len(deps) > 0 {
			resp["dependencies"] = deps
		}
	}
	writeJSON(w, httpStatus, resp)
}

// writeJSON записывает JSON-ответ.
func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}
