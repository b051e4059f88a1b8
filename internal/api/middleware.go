package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"edgegate/internal/models"
	"edgegate/internal/ratelimit"
)

// PrincipalResolver maps a request to its resolved principal. Identity
// resolution is an external collaborator's job; this hook is how its result
// enters the admission chain.
type PrincipalResolver func(*http.Request) (models.Principal, bool)

// HeaderPrincipalResolver trusts the X-Principal-ID and X-Principal-Tier
// headers set by the authentication proxy fronting this service. An unknown
// or missing tier resolves to free.
func HeaderPrincipalResolver(r *http.Request) (models.Principal, bool) {
	id := r.Header.Get("X-Principal-ID")
	if id == "" {
		return models.Principal{}, false
	}

	tier, err := models.ParseTier(r.Header.Get("X-Principal-Tier"))
	if err != nil {
		tier = models.TierFree
	}
	return models.Principal{ID: id, Tier: tier}, true
}

// principalMiddleware runs the resolver and attaches the principal to the
// request context. Unresolved requests continue without one; the guard
// stages decide whether that is acceptable per route.
func principalMiddleware(resolver PrincipalResolver) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if principal, ok := resolver(r); ok {
				r = r.WithContext(ratelimit.ContextWithPrincipal(r.Context(), principal))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slog.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr)
		next.ServeHTTP(w, r)
	})
}

// recoveryMiddleware handles panics
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				slog.Error("Panic recovered", "error", err, "path", r.URL.Path)
				writeJSON(w, http.StatusInternalServerError,
					models.NewErrorResponse(models.ErrorCodeInternalError, "Internal server error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
