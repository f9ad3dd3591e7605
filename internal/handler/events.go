package handler

import (
	"log/slog"
	"net/http"

	"github.com/trustful/badge-registry/internal/service"
)

// EventsHandler serves the per-instance audit trail.
type EventsHandler struct {
	events *service.EventService
	logger *slog.Logger
}

func NewEventsHandler(events *service.EventService, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{events: events, logger: logger}
}

// HandleList returns an instance's events in emission order.
//
// GET /api/instances/{addr}/events
func (h *EventsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "addr")
	if !ok {
		return
	}

	events, err := h.events.List(r.Context(), addr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}
