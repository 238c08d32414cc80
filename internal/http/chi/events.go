package chi

import (
	"encoding/json"
	"net/http"

	"github.com/btwitsvirendra/airavat-webhooks/dispatch"
	"github.com/btwitsvirendra/airavat-webhooks/event"
	"github.com/rs/zerolog"
)

// triggerRequest is an event published by business code
type triggerRequest struct {
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
	// OwnerID limits the fan out to one tenant; empty reaches every tenant
	OwnerID string `json:"owner_id"`
}

func getEventTypes() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, event.Grouped())
	})
}

// postEvent handles POST /v1/events and answers 202 once deliveries are persisted
func postEvent(d dispatch.UseCase, logger zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req triggerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "invalid JSON body")
			return
		}

		t, err := event.ParseType(req.EventType)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		if len(req.Data) == 0 || string(req.Data) == "null" {
			badRequest(w, "data is required")
			return
		}

		res, err := d.Trigger(r.Context(), t, req.Data, dispatch.Scope{OwnerID: req.OwnerID})
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusAccepted, res)
	})
}
