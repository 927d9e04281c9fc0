package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/worshipwaves/WDweb-sub002/pkg/runtime"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	rt *runtime.Runtime
}

// NewHealthHandler creates a new health handler. rt may be nil, in which
// case readiness reports unhealthy.
func NewHealthHandler(rt *runtime.Runtime) *HealthHandler {
	return &HealthHandler{rt: rt}
}

// Liveness handles GET /health - simple liveness probe.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	data := map[string]string{"service": "assetd"}
	if h.rt != nil {
		data["session"] = h.rt.Session()
	}
	writeJSON(w, http.StatusOK, healthy(data))
}

// ReadinessData is the payload of a healthy readiness probe.
type ReadinessData struct {
	Store   string `json:"store"`
	Latency string `json:"latency"`
	Items   int    `json:"items"`
	Cached  int    `json:"cached"`
}

// Readiness handles GET /health/ready.
//
// Returns 200 OK when the byte store answers its health check, 503 Service
// Unavailable otherwise.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.rt == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthy("runtime not initialized"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	start := time.Now()
	if err := h.rt.Store().HealthCheck(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthy("store unhealthy: "+err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, healthy(ReadinessData{
		Store:   h.rt.Config().Store.Type,
		Latency: time.Since(start).String(),
		Items:   h.rt.Catalog().Len(),
		Cached:  h.rt.Cache().Len(),
	}))
}
