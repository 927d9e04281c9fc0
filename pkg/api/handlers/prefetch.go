package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/worshipwaves/WDweb-sub002/internal/logger"
	"github.com/worshipwaves/WDweb-sub002/pkg/cache"
	"github.com/worshipwaves/WDweb-sub002/pkg/runtime"
)

// StatusResponse is the scheduler progress snapshot.
type StatusResponse struct {
	Total     int    `json:"total"`
	Loaded    int    `json:"loaded"`
	Remaining int    `json:"remaining"`
	State     string `json:"state"`
}

// KeyStatus is the cache state of one asset key.
type KeyStatus struct {
	Key   string `json:"key"`
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}

// ItemResponse describes one catalog item.
type ItemResponse struct {
	ID     string      `json:"id"`
	Tag    int         `json:"tag"`
	Loaded bool        `json:"loaded"`
	Keys   []KeyStatus `json:"keys"`
}

// PrefetchHandler exposes the prefetch scheduler.
type PrefetchHandler struct {
	rt *runtime.Runtime
}

// NewPrefetchHandler creates a new prefetch handler.
func NewPrefetchHandler(rt *runtime.Runtime) *PrefetchHandler {
	return &PrefetchHandler{rt: rt}
}

// Status handles GET /api/v1/status.
func (h *PrefetchHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.status())
}

// Item handles GET /api/v1/items/{id}.
func (h *PrefetchHandler) Item(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	item, ok := h.rt.Catalog().Item(id)
	if !ok {
		writeProblem(w, http.StatusNotFound, "Catalog item not found")
		return
	}
	job, _ := h.rt.Catalog().Job(id)

	resp := ItemResponse{
		ID:     item.ID,
		Tag:    item.Tag,
		Loaded: h.rt.Scheduler().IsLoaded(id),
		Keys:   make([]KeyStatus, 0, len(job.Keys)),
	}
	for _, key := range job.Keys {
		ks := KeyStatus{Key: key.String(), State: "absent"}
		if handle, ok := h.rt.Cache().Lookup(key); ok {
			ks.State = handle.State().String()
			if err := handle.Err(); err != nil {
				ks.Error = err.Error()
			}
		}
		resp.Keys = append(resp.Keys, ks)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Load handles POST /api/v1/items/{id}/load.
//
// Loads the item's bundle ahead of the scheduler and waits for it. Returns
// the scheduler status on success, 502 when a key fails to fetch or decode
// and 504 when the request deadline passes first.
func (h *PrefetchHandler) Load(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.rt.Catalog().Item(id); !ok {
		writeProblem(w, http.StatusNotFound, "Catalog item not found")
		return
	}

	ctx := h.rt.Context(r.Context())
	err := h.rt.Scheduler().LoadImmediate(ctx, id)

	var fetchErr *cache.FetchError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, h.status())
	case errors.As(err, &fetchErr):
		writeProblem(w, http.StatusBadGateway, fetchErr.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeProblem(w, http.StatusGatewayTimeout, "Load did not finish before the request deadline")
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to write.
		logger.DebugCtx(ctx, "Immediate load abandoned by client", logger.ItemID(id))
	default:
		writeProblem(w, http.StatusInternalServerError, err.Error())
	}
}

// Pause handles POST /api/v1/scheduler/pause.
func (h *PrefetchHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.rt.Scheduler().Pause()
	writeJSON(w, http.StatusOK, h.status())
}

// Resume handles POST /api/v1/scheduler/resume.
func (h *PrefetchHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.rt.Scheduler().Resume()
	writeJSON(w, http.StatusOK, h.status())
}

func (h *PrefetchHandler) status() StatusResponse {
	s := h.rt.Scheduler().Status()
	return StatusResponse{
		Total:     s.Total,
		Loaded:    s.Loaded,
		Remaining: s.Remaining,
		State:     h.rt.Scheduler().State().String(),
	}
}
