// Package rest holds the HTTP surfaces the process exposes.
package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sermonarc/sermonarc/internal/telemetry"
)

// OpsHandler serves the operational endpoints of a run: Prometheus metrics
// and a liveness probe.
type OpsHandler struct {
	telemetry *telemetry.Telemetry
}

func NewOpsHandler(t *telemetry.Telemetry) *OpsHandler {
	return &OpsHandler{telemetry: t}
}

func (h *OpsHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(telemetry.RequestID)
	r.Use(telemetry.HTTPLogging)
	r.Use(telemetry.NewHTTPMiddleware(h.telemetry).Middleware)

	r.Handle("/metrics", h.telemetry.Handler())
	r.Get("/healthz", h.handleHealth)

	return r
}

func (h *OpsHandler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
