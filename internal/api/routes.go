package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"

	"edgegate/internal/models"
	"edgegate/internal/ratelimit"
)

// RouteOption configures optional route behavior.
type RouteOption func(*mux.Router)

// WithOTelMiddleware adds OpenTelemetry HTTP instrumentation middleware.
// Health and metrics probes are excluded from tracing.
func WithOTelMiddleware(serviceName string) RouteOption {
	return func(r *mux.Router) {
		r.Use(otelmux.Middleware(serviceName,
			otelmux.WithFilter(func(r *http.Request) bool {
				return r.URL.Path != "/health" && r.URL.Path != "/metrics"
			}),
		))
	}
}

// SetupRoutes builds the HTTP router. The admission chain is composed here,
// and stage order is deliberate: the exemption set is consulted inside every
// guard stage (cheapest escape hatch), Burst runs before Tier so retry
// storms are shed before the tier-quota read, and Endpoint runs after Tier
// because its quota applies in addition to the global one. guard may be nil
// when rate limiting is disabled.
func SetupRoutes(handlers *Handlers, cfg *models.Config, guard *ratelimit.Guard, upstream http.Handler, opts ...RouteOption) *mux.Router {
	router := mux.NewRouter()

	for _, opt := range opts {
		opt(router)
	}

	router.Use(loggingMiddleware)
	router.Use(recoveryMiddleware)

	router.HandleFunc("/health", handlers.HealthCheck).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(principalMiddleware(handlers.resolver))
	if guard != nil {
		api.Use(guard.Burst())
	}

	// Session lifecycle. Authenticated: session start happens after the
	// upstream collaborator has resolved a principal.
	sessions := api.PathPrefix("/sessions").Subrouter()
	if guard != nil {
		sessions.Use(guard.Tier())
		sessions.Use(guard.Endpoint("sessions"))
	}
	sessions.HandleFunc("", handlers.CreateSession).Methods("POST")
	sessions.HandleFunc("/{session_id}", handlers.GetSession).Methods("GET")
	sessions.HandleFunc("/{session_id}/extend", handlers.ExtendSession).Methods("POST")
	sessions.HandleFunc("/{session_id}", handlers.DeleteSession).Methods("DELETE")

	// Endpoints with configured per-endpoint quotas get their own counter
	// on top of the tier limit before being proxied upstream. Matching is
	// segment-exact: "/search" and "/search/..." fall under the "search"
	// quota, "/searchextra" does not.
	for name := range cfg.RateLimit.Endpoints {
		if name == "sessions" {
			continue
		}
		handler := upstream
		if guard != nil {
			handler = guard.Tier()(guard.Endpoint(name)(upstream))
		}
		api.Path("/" + name).Handler(handler)
		api.PathPrefix("/" + name + "/").Handler(handler)
	}

	// Public upstream paths accept unauthenticated traffic; the client
	// address substitutes for the principal under the free quota.
	public := api.PathPrefix("/public").Subrouter()
	if guard != nil {
		public.Use(guard.Anonymous())
	}
	if handlers.respCache != nil {
		public.Use(responseCacheMiddleware(handlers.respCache))
	}
	public.PathPrefix("").Handler(upstream)

	// Everything else requires a principal and the tier quota.
	protected := api.PathPrefix("").Subrouter()
	if guard != nil {
		protected.Use(guard.Tier())
	}
	protected.PathPrefix("").Handler(upstream)

	// Administrative surface: operator tooling only, exposed on the
	// internal listener and never rate limited.
	admin := router.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/ratelimit/{principal}/usage", handlers.AdminUsage).Methods("GET")
	admin.HandleFunc("/ratelimit/{principal}/reset", handlers.AdminReset).Methods("POST")
	admin.HandleFunc("/users/{user_id}/sessions", handlers.AdminListSessions).Methods("GET")
	admin.HandleFunc("/sessions", handlers.AdminScanSessions).Methods("GET")

	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed,
			models.NewErrorResponse(models.ErrorCodeBadRequest, "Method not allowed"))
	})

	return router
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
