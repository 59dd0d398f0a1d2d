package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// StorePinger is the store probe for the health check: a trivial read
// plus its observed latency.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// ExtensionChecker reports whether the vector extension required for
// similarity search is present.
type ExtensionChecker interface {
	HasVectorExtension(ctx context.Context) (bool, error)
}

// EmbedderPinger is the embedder probe. Health calls Ping on every request
// and does not cache the result; the Vertex AI adapter's Ping issues a live
// embedding call each time.
type EmbedderPinger interface {
	Ping(ctx context.Context) error
}

type probeResult struct {
	Name      string  `json:"name"`
	OK        bool    `json:"ok"`
	LatencyMs float64 `json:"latencyMs,omitempty"`
}

type healthResponse struct {
	Status    string        `json:"status"`
	Checks    []probeResult `json:"checks"`
	RequestID string        `json:"requestId"`
	Timestamp string        `json:"timestamp"`
}

// healthCheckTimeout bounds the whole probe set so a stuck collaborator
// cannot stall the health endpoint indefinitely.
const healthCheckTimeout = 3 * time.Second

// Health implements GET /api/v1/health (§4.12): a store ping, a vector
// extension presence check, and an embedder probe. store is required;
// extensions and embedder may be nil, in which case that probe is
// skipped and never downgrades the status. No provider name or version
// string is ever included in the response, by policy.
func Health(store StorePinger, extensions ExtensionChecker, embedder EmbedderPinger, requestIDFn func(context.Context) string, nowFn func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		checks := make([]probeResult, 0, 3)

		storeOK := true
		start := nowFn()
		if err := store.Ping(ctx); err != nil {
			storeOK = false
		}
		checks = append(checks, probeResult{Name: "store", OK: storeOK, LatencyMs: float64(nowFn().Sub(start).Milliseconds())})

		degraded := false
		if extensions != nil {
			ok, err := extensions.HasVectorExtension(ctx)
			present := err == nil && ok
			if !present {
				degraded = true
			}
			checks = append(checks, probeResult{Name: "vector_extension", OK: present})
		}
		if embedder != nil {
			ok := embedder.Ping(ctx) == nil
			if !ok {
				degraded = true
			}
			checks = append(checks, probeResult{Name: "embedder", OK: ok})
		}

		status := "ok"
		httpStatus := http.StatusOK
		switch {
		case !storeOK:
			status = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
		case degraded:
			status = "degraded"
		}

		resp := healthResponse{
			Status:    status,
			Checks:    checks,
			RequestID: requestIDFn(r.Context()),
			Timestamp: nowFn().UTC().Format(time.RFC3339),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(httpStatus)
		json.NewEncoder(w).Encode(resp)
	}
}
