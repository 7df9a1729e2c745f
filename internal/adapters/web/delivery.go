package web

import (
	"net/http"

	"pos-backend/internal/core"
	"pos-backend/internal/pubsub"
)

// deliveryStatus records a subscriber acknowledgement for a published event.
// Out-of-process consumers call this back over HTTP.
func (h *Handler) deliveryStatus(w http.ResponseWriter, r *http.Request) {
	var req pubsub.AckRequest
	if !decodeJSON(w, r, "delivery_status", &req) {
		return
	}
	if req.EventID == "" || req.ServiceName == "" {
		writeError(w, r, "delivery_status", core.ErrValidation.Withf("eventId and serviceName are required"))
		return
	}
	switch req.Status {
	case pubsub.StatusDelivered, pubsub.StatusFailed:
	default:
		writeError(w, r, "delivery_status", core.ErrValidation.Withf("unknown status %q", req.Status))
		return
	}
	ds, err := h.delivery.MarkService(r.Context(), req.EventID, req.ServiceName, req.Status, req.Message)
	if err != nil {
		writeError(w, r, "delivery_status", err)
		return
	}
	writeJSON(w, "delivery_status", ds)
}
