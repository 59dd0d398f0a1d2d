package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jacobkus/intelligent-hr-assistant/internal/apperror"
	"github.com/jacobkus/intelligent-hr-assistant/internal/chat"
	"github.com/jacobkus/intelligent-hr-assistant/internal/handler"
	"github.com/jacobkus/intelligent-hr-assistant/internal/metrics"
	"github.com/jacobkus/intelligent-hr-assistant/internal/middleware"
	"github.com/jacobkus/intelligent-hr-assistant/internal/retrieval"
)

// chatLimits and retrieveLimits are the per-endpoint sliding-window
// policies (§4.7): chat is the expensive path (embedding + completion) and
// gets the tighter budget.
var (
	chatLimits     = middleware.Limits{MaxRequests: 20, Window: time.Minute}
	retrieveLimits = middleware.Limits{MaxRequests: 60, Window: time.Minute}
)

// Dependencies holds every injected collaborator the router wires into
// handlers and middleware.
type Dependencies struct {
	Store          handler.StorePinger
	Extensions     handler.ExtensionChecker
	Embedder       handler.EmbedderPinger
	RetrievalSvc   *retrieval.Service
	Orchestrator   *chat.Orchestrator
	MetricsReg     *metrics.Registry
	PromReg        *prometheus.Registry
	PromMetrics    *middleware.Metrics
	AllowedOrigins []string
	APISecretToken string
	RateLimiter    *middleware.RateLimiter
}

// New builds the chi router implementing the full HTTP surface (§4.10):
// chat and retrieve sit behind auth, a body-size check, and their own
// rate limiter, applied in that order so an oversized body is rejected
// before it can consume a slot from the caller's window. The JSON metrics
// endpoint sits behind auth and the body-size check but not the rate
// limiter; health is exempt from all three.
func New(deps *Dependencies) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(deps.AllowedOrigins))
	if deps.PromMetrics != nil {
		r.Use(middleware.Monitoring(deps.PromMetrics))
	}

	if deps.PromReg != nil {
		r.Handle("/metrics", middleware.MetricsHandler(deps.PromReg))
	}

	r.Get("/api/v1/health", handler.Health(deps.Store, deps.Extensions, deps.Embedder,
		middleware.RequestIDFromContext, time.Now))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(deps.APISecretToken))
		r.Use(middleware.CheckSize)

		r.Get("/api/v1/metrics", handler.Metrics(deps.MetricsReg, middleware.RequestIDFromContext, time.Now))

		r.With(
			middleware.RecordEndpointMetrics(deps.MetricsReg, "chat"),
			middleware.RateLimit(deps.RateLimiter, "chat", chatLimits, deps.MetricsReg),
		).Post("/api/v1/chat", handler.Chat(deps.Orchestrator, middleware.RequestIDFromContext))

		r.With(
			middleware.RecordEndpointMetrics(deps.MetricsReg, "retrieve"),
			middleware.RateLimit(deps.RateLimiter, "retrieve", retrieveLimits, deps.MetricsReg),
		).Post("/api/v1/retrieve", handler.Retrieve(deps.RetrievalSvc, middleware.RequestIDFromContext))
	})

	// CORS middleware answers OPTIONS globally before routing, so no
	// explicit preflight routes are registered here.

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apperror.WriteJSON(w, middleware.RequestIDFromContext(r.Context()), apperror.BadRequest("route not found"))
	})

	return r
}
