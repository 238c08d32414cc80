package chi

import (
	"context"
	"net/http"
	"time"

	"github.com/btwitsvirendra/airavat-webhooks/dispatch"
	"github.com/btwitsvirendra/airavat-webhooks/metrics"
	"github.com/btwitsvirendra/airavat-webhooks/subscription"
	"github.com/btwitsvirendra/airavat-webhooks/webhook"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"
	"github.com/rs/zerolog"
)

// OwnerHeader carries the tenant id; caller authentication happens in front of this service
const OwnerHeader = "X-Owner-ID"

// Services are the use cases the API exposes
type Services struct {
	Subscriptions subscription.UseCase
	Dispatcher    dispatch.UseCase
	Deliveries    webhook.UseCase
	Collector     metrics.Collector
	Metrics       http.Handler // Prometheus exposition, optional
}

// Handlers sets up the management API routes
func Handlers(ctx context.Context, s Services, logger zerolog.Logger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Method(http.MethodGet, "/event-types", getEventTypes())
		r.Method(http.MethodPost, "/events", postEvent(s.Dispatcher, logger))
		if s.Collector != nil {
			r.Method(http.MethodGet, "/metrics/summary", getMetricsSummary(s.Collector, logger))
		}

		r.Group(func(r chi.Router) {
			r.Use(requireOwner)

			r.Method(http.MethodPost, "/webhooks", postSubscription(s.Subscriptions, logger))
			r.Method(http.MethodGet, "/webhooks", getSubscriptions(s.Subscriptions, logger))
			r.Method(http.MethodGet, "/webhooks/{id}", getSubscription(s.Subscriptions, logger))
			r.Method(http.MethodPatch, "/webhooks/{id}", patchSubscription(s.Subscriptions, logger))
			r.Method(http.MethodDelete, "/webhooks/{id}", deleteSubscription(s.Subscriptions, logger))
			r.Method(http.MethodPost, "/webhooks/{id}/rotate-secret", rotateSecret(s.Subscriptions, logger))
			r.Method(http.MethodPost, "/webhooks/{id}/test", postTest(s.Dispatcher, logger))
			r.Method(http.MethodGet, "/webhooks/{id}/deliveries", getDeliveries(s.Subscriptions, s.Deliveries, logger))
			r.Method(http.MethodGet, "/deliveries/{id}", getDelivery(s.Subscriptions, s.Deliveries, logger))
		})
	})

	return r
}

type ownerKey struct{}

// requireOwner rejects requests without a tenant id
func requireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := r.Header.Get(OwnerHeader)
		if owner == "" {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: OwnerHeader + " header is required"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerKey{}, owner)))
	})
}

func ownerFrom(ctx context.Context) string {
	owner, _ := ctx.Value(ownerKey{}).(string)
	return owner
}
