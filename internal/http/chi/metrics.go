package chi

import (
	"net/http"

	"github.com/btwitsvirendra/airavat-webhooks/metrics"
	"github.com/rs/zerolog"
)

// getMetricsSummary handles GET /v1/metrics/summary
func getMetricsSummary(collector metrics.Collector, logger zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m, err := collector.Collect(r.Context())
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, m)
	})
}
