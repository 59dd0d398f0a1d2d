package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jacobkus/intelligent-hr-assistant/internal/metrics"
)

type metricsResponse struct {
	Endpoints map[string]metrics.Snapshot `json:"endpoints"`
	RequestID string                      `json:"requestId"`
	Timestamp string                      `json:"timestamp"`
}

// Metrics implements GET /api/v1/metrics (§4.11): every recorded
// endpoint's derived statistics, plus a request id and timestamp.
func Metrics(reg *metrics.Registry, requestIDFn func(context.Context) string, nowFn func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshots := make(map[string]metrics.Snapshot)
		for _, endpoint := range reg.Endpoints() {
			snapshots[endpoint] = reg.Snapshot(endpoint)
		}

		setCacheHeaders(w)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(metricsResponse{
			Endpoints: snapshots,
			RequestID: requestIDFn(r.Context()),
			Timestamp: nowFn().UTC().Format(time.RFC3339),
		})
	}
}
