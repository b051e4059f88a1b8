// Package api wires the admission middleware chain, the session and
// administrative surfaces, and the upstream proxy into an HTTP router.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"edgegate/internal/cache"
	"edgegate/internal/kv"
	"edgegate/internal/models"
	"edgegate/internal/ratelimit"
	"edgegate/internal/session"
	"edgegate/internal/version"
)

// Handlers holds the dependencies for all HTTP handlers.
type Handlers struct {
	sessions  *session.Store
	limiter   *ratelimit.Limiter
	store     kv.Store
	rlConfig  models.RateLimitConfig
	resolver  PrincipalResolver
	respCache *cache.Cache
}

// HandlerOption configures optional handler behavior.
type HandlerOption func(*Handlers)

// WithPrincipalResolver overrides how a request is mapped to a principal.
// The default reads the X-Principal-ID and X-Principal-Tier headers set by
// the authentication proxy in front of this service.
func WithPrincipalResolver(resolver PrincipalResolver) HandlerOption {
	return func(h *Handlers) {
		h.resolver = resolver
	}
}

// WithResponseCache enables caching of public GET responses through the
// shared cache. Off by default; public traffic passes straight through.
func WithResponseCache(c *cache.Cache) HandlerOption {
	return func(h *Handlers) {
		h.respCache = c
	}
}

// NewHandlers creates the handler set.
func NewHandlers(sessions *session.Store, limiter *ratelimit.Limiter, store kv.Store, rlConfig models.RateLimitConfig, opts ...HandlerOption) *Handlers {
	h := &Handlers{
		sessions: sessions,
		limiter:  limiter,
		store:    store,
		rlConfig: rlConfig,
		resolver: HeaderPrincipalResolver,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// createSessionRequest is the body accepted by CreateSession. The user id
// may be omitted when a principal is resolved; it then defaults to the
// principal's id.
type createSessionRequest struct {
	UserID   string            `json:"user_id"`
	Metadata map[string]string `json:"metadata"`
}

// CreateSession starts a new session with a generated id. Creation is
// idempotent per id, but ids are generated here, so each call yields a fresh
// session.
func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "Invalid JSON body")
		return
	}

	if req.UserID == "" {
		if principal, ok := ratelimit.PrincipalFrom(r.Context()); ok {
			req.UserID = principal.ID
		}
	}
	if req.UserID == "" {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "user_id is required")
		return
	}

	record, err := h.sessions.Create(r.Context(), uuid.New().String(), req.UserID, req.Metadata)
	if err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, err.Error())
		return
	}

	h.writeJSONResponse(w, http.StatusCreated, sessionResponse(record))
}

// GetSession returns the session record, or 404 once it has expired.
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]

	record := h.sessions.Get(r.Context(), sessionID)
	if record == nil {
		h.writeErrorResponse(w, http.StatusNotFound, models.ErrorCodeNotFound, "Session not found")
		return
	}
	h.writeJSONResponse(w, http.StatusOK, sessionResponse(record))
}

// ExtendSession refreshes the session's TTL. An absent session stays
// absent; extension never resurrects.
func (h *Handlers) ExtendSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]

	record := h.sessions.Extend(r.Context(), sessionID)
	if record == nil {
		h.writeErrorResponse(w, http.StatusNotFound, models.ErrorCodeNotFound, "Session not found")
		return
	}
	h.writeJSONResponse(w, http.StatusOK, sessionResponse(record))
}

// DeleteSession ends a session. Deleting an absent session succeeds.
func (h *Handlers) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]

	h.sessions.Delete(r.Context(), sessionID)
	w.WriteHeader(http.StatusNoContent)
}

// tierFromQuery reads the optional ?tier= parameter, defaulting to free.
func tierFromQuery(r *http.Request) (models.Tier, error) {
	raw := r.URL.Query().Get("tier")
	if raw == "" {
		return models.TierFree, nil
	}
	return models.ParseTier(raw)
}

// AdminUsage reports a principal's current window consumption without
// consuming anything.
func (h *Handlers) AdminUsage(w http.ResponseWriter, r *http.Request) {
	principalID := mux.Vars(r)["principal"]

	tier, err := tierFromQuery(r)
	if err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, err.Error())
		return
	}

	policy := h.rlConfig.Tiers[tier]
	d := h.limiter.Usage(r.Context(), ratelimit.CounterPrefix+"tier:"+principalID,
		ratelimit.Policy{Limit: policy.Limit, Window: policy.Window})

	h.writeJSONResponse(w, http.StatusOK, &models.UsageResponse{
		Success:   true,
		Principal: principalID,
		Tier:      tier,
		Used:      d.Used,
		Limit:     d.Limit,
		Remaining: d.Remaining,
		ResetAt:   d.ResetAt,
	})
}

// AdminReset deletes a principal's current window counter. The next request
// starts a fresh count.
func (h *Handlers) AdminReset(w http.ResponseWriter, r *http.Request) {
	principalID := mux.Vars(r)["principal"]

	tier, err := tierFromQuery(r)
	if err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, err.Error())
		return
	}

	policy := h.rlConfig.Tiers[tier]
	h.limiter.Reset(r.Context(), ratelimit.CounterPrefix+"tier:"+principalID,
		ratelimit.Policy{Limit: policy.Limit, Window: policy.Window})

	slog.Info("rate limit counter reset", "principal", principalID, "tier", tier)
	h.writeJSONResponse(w, http.StatusOK, map[string]any{"success": true, "principal": principalID})
}

// AdminListSessions enumerates a user's live sessions via the secondary
// index. Operator tooling only.
func (h *Handlers) AdminListSessions(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	ids := h.sessions.ListByUser(r.Context(), userID)
	h.writeJSONResponse(w, http.StatusOK, &models.SessionListResponse{
		Success:  true,
		UserID:   userID,
		Sessions: ids,
	})
}

// AdminScanSessions enumerates session ids by bounded prefix scan, across
// all users. Expensive on every backend; operator tooling only.
func (h *Handlers) AdminScanSessions(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	ids := h.sessions.ScanSessions(r.Context(), limit)
	h.writeJSONResponse(w, http.StatusOK, map[string]any{
		"success":  true,
		"sessions": ids,
	})
}

// HealthCheck reports service and KV backend health.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := models.NewHealthCheckResponse(models.StatusHealthy)
	response.Version = version.GetInfo().Version

	if err := h.store.Ping(r.Context()); err != nil {
		// The service still admits traffic when the store is down (reads
		// fail open), so this is degraded rather than unhealthy.
		response.Status = models.StatusDegraded
		response.AddComponent("kv", models.StatusUnhealthy, err.Error())
	} else {
		response.AddComponent("kv", models.StatusHealthy, "")
	}

	status := http.StatusOK
	if response.Status == models.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	h.writeJSONResponse(w, status, response)
}

func sessionResponse(record *session.Session) *models.SessionResponse {
	return &models.SessionResponse{
		Success: true,
		ID:      record.ID,
		UserID:  record.UserID,
		Created: record.CreatedAt,
		Meta:    record.Metadata,
	}
}

// writeJSONResponse writes a JSON response
func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeErrorResponse writes an error response
func (h *Handlers) writeErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) {
	h.writeJSONResponse(w, statusCode, models.NewErrorResponse(errorCode, message))
}
