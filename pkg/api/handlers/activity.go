package handlers

import (
	"net/http"
	"time"

	"github.com/worshipwaves/WDweb-sub002/pkg/activity"
)

// ActivityRequest reports one user interaction.
type ActivityRequest struct {
	Kind string `json:"kind"`
}

// ActivityHandler feeds interactions reported over HTTP into the activity
// monitor's event stream.
type ActivityHandler struct {
	events *activity.Broadcaster
}

// NewActivityHandler creates a new activity handler.
func NewActivityHandler(events *activity.Broadcaster) *ActivityHandler {
	return &ActivityHandler{events: events}
}

// Report handles POST /api/v1/activity.
//
// Returns 202 Accepted once the event is published; 400 for an unknown kind.
func (h *ActivityHandler) Report(w http.ResponseWriter, r *http.Request) {
	var req ActivityRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	kind, err := activity.ParseKind(req.Kind)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, err.Error())
		return
	}

	h.events.Publish(activity.Event{Kind: kind, At: time.Now()})
	w.WriteHeader(http.StatusAccepted)
}
