package chi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/btwitsvirendra/airavat-webhooks/subscription"
	"github.com/btwitsvirendra/airavat-webhooks/webhook"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

type deliveryResponse struct {
	ID             string          `json:"id"`
	SubscriptionID string          `json:"subscription_id"`
	EventID        string          `json:"event_id"`
	EventType      string          `json:"event_type"`
	Payload        json.RawMessage `json:"payload"`
	Status         webhook.Status  `json:"status"`
	Attempts       int             `json:"attempts"`
	NextRetryAt    *time.Time      `json:"next_retry_at"`
	ResponseStatus int             `json:"response_status,omitempty"`
	ResponseBody   string          `json:"response_body,omitempty"`
	LastError      string          `json:"last_error,omitempty"`
	DurationMs     int64           `json:"duration_ms"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	DeliveredAt    *time.Time      `json:"delivered_at"`
}

type deliveryPageResponse struct {
	Deliveries []deliveryResponse `json:"deliveries"`
	Total      int                `json:"total"`
	Limit      int                `json:"limit"`
	Offset     int                `json:"offset"`
}

func toDeliveryResponse(d webhook.Delivery) deliveryResponse {
	return deliveryResponse{
		ID:             d.ID,
		SubscriptionID: d.SubscriptionID,
		EventID:        d.EventID,
		EventType:      d.EventType,
		Payload:        json.RawMessage(d.Payload),
		Status:         d.Status,
		Attempts:       d.Attempts,
		NextRetryAt:    d.NextRetryAt,
		ResponseStatus: d.ResponseStatus,
		ResponseBody:   d.ResponseBody,
		LastError:      d.LastError,
		DurationMs:     d.Duration.Milliseconds(),
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
		DeliveredAt:    d.DeliveredAt,
	}
}

// getDeliveries handles GET /v1/webhooks/{id}/deliveries?limit&offset
func getDeliveries(subs subscription.UseCase, ledger webhook.UseCase, logger zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := subs.Get(r.Context(), id, ownerFrom(r.Context())); err != nil {
			writeError(w, logger, err)
			return
		}

		page, ok := parsePage(r)
		if !ok {
			badRequest(w, "limit and offset must be integers")
			return
		}

		res, err := ledger.List(r.Context(), id, page)
		if err != nil {
			writeError(w, logger, err)
			return
		}

		out := deliveryPageResponse{
			Deliveries: make([]deliveryResponse, 0, len(res.Deliveries)),
			Total:      res.Total,
			Limit:      res.Limit,
			Offset:     res.Offset,
		}
		for _, d := range res.Deliveries {
			out.Deliveries = append(out.Deliveries, toDeliveryResponse(d))
		}
		writeJSON(w, http.StatusOK, out)
	})
}

// getDelivery handles GET /v1/deliveries/{id}; deliveries of other owners are not found
func getDelivery(subs subscription.UseCase, ledger webhook.UseCase, logger zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d, err := ledger.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, logger, err)
			return
		}
		if _, err := subs.Get(r.Context(), d.SubscriptionID, ownerFrom(r.Context())); err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toDeliveryResponse(d))
	})
}

func parsePage(r *http.Request) (webhook.Page, bool) {
	var page webhook.Page
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return page, false
		}
		page.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return page, false
		}
		page.Offset = n
	}
	return page, true
}
