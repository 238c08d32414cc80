package chi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/btwitsvirendra/airavat-webhooks/dispatch"
	"github.com/btwitsvirendra/airavat-webhooks/event"
	"github.com/btwitsvirendra/airavat-webhooks/subscription"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

/* HTTP layer DTOs for the subscription API
 * Separate from domain entities to avoid leaking internal structure
 */

type subscriptionRequest struct {
	URL         string   `json:"url"`
	EventTypes  []string `json:"event_types"`
	Description string   `json:"description"`
}

// patchRequest leaves absent fields unchanged
type patchRequest struct {
	URL         *string  `json:"url"`
	EventTypes  []string `json:"event_types"`
	Description *string  `json:"description"`
	Active      *bool    `json:"active"`
}

type subscriptionResponse struct {
	ID              string     `json:"id"`
	URL             string     `json:"url"`
	Description     string     `json:"description"`
	EventTypes      []string   `json:"event_types"`
	Active          bool       `json:"active"`
	Secret          string     `json:"secret,omitempty"`
	SuccessCount    int64      `json:"success_count"`
	FailureCount    int64      `json:"failure_count"`
	LastTriggeredAt *time.Time `json:"last_triggered_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func toSubscriptionResponse(s subscription.Subscription) subscriptionResponse {
	return subscriptionResponse{
		ID:              s.ID,
		URL:             s.URL,
		Description:     s.Description,
		EventTypes:      event.Names(s.EventTypes),
		Active:          s.Active,
		Secret:          s.Secret,
		SuccessCount:    s.SuccessCount,
		FailureCount:    s.FailureCount,
		LastTriggeredAt: s.LastTriggeredAt,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

// parseEventTypes reports unknown names as a validation failure
func parseEventTypes(names []string) ([]event.Type, error) {
	types, err := event.ParseTypes(names)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", subscription.ErrInvalid, err)
	}
	return types, nil
}

// postSubscription handles POST /v1/webhooks; the secret is only returned here and on rotation
func postSubscription(svc subscription.UseCase, logger zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req subscriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "invalid JSON body")
			return
		}

		types, err := parseEventTypes(req.EventTypes)
		if err != nil {
			writeError(w, logger, err)
			return
		}

		sub, err := svc.Create(r.Context(), ownerFrom(r.Context()), req.URL, types, req.Description)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, toSubscriptionResponse(sub))
	})
}

func getSubscriptions(svc subscription.UseCase, logger zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subs, err := svc.List(r.Context(), ownerFrom(r.Context()))
		if err != nil {
			writeError(w, logger, err)
			return
		}

		result := make([]subscriptionResponse, 0, len(subs))
		for _, s := range subs {
			result = append(result, toSubscriptionResponse(s))
		}
		writeJSON(w, http.StatusOK, result)
	})
}

func getSubscription(svc subscription.UseCase, logger zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub, err := svc.Get(r.Context(), chi.URLParam(r, "id"), ownerFrom(r.Context()))
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toSubscriptionResponse(sub))
	})
}

func patchSubscription(svc subscription.UseCase, logger zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req patchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "invalid JSON body")
			return
		}

		patch := subscription.Patch{
			URL:         req.URL,
			Description: req.Description,
			Active:      req.Active,
		}
		if req.EventTypes != nil {
			types, err := parseEventTypes(req.EventTypes)
			if err != nil {
				writeError(w, logger, err)
				return
			}
			// an explicit empty list must fail validation, not mean "unchanged"
			patch.EventTypes = append([]event.Type{}, types...)
		}

		sub, err := svc.Update(r.Context(), chi.URLParam(r, "id"), ownerFrom(r.Context()), patch)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toSubscriptionResponse(sub))
	})
}

func deleteSubscription(svc subscription.UseCase, logger zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Delete(r.Context(), chi.URLParam(r, "id"), ownerFrom(r.Context())); err != nil {
			writeError(w, logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func rotateSecret(svc subscription.UseCase, logger zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub, err := svc.RotateSecret(r.Context(), chi.URLParam(r, "id"), ownerFrom(r.Context()))
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toSubscriptionResponse(sub))
	})
}

// postTest handles POST /v1/webhooks/{id}/test
func postTest(d dispatch.UseCase, logger zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, err := d.SendTest(r.Context(), chi.URLParam(r, "id"), ownerFrom(r.Context()))
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusAccepted, res)
	})
}
