// Package models - API response envelopes and error handling.
// Every client-facing body uses the same envelope: {"success": true, ...} on
// the happy path and {"success": false, "error": {...}} on rejection. Storage
// failures never reach this layer; the only errors a client sees are policy
// rejections (quota, burst, missing auth) and upstream pass-through bodies.
package models

import "time"

// Error code constants. Upper-case with underscores, machine-readable, stable.
const (
	ErrorCodeRateLimitExceeded         = "RATE_LIMIT_EXCEEDED"          // 429: tier quota exhausted
	ErrorCodeEndpointRateLimitExceeded = "ENDPOINT_RATE_LIMIT_EXCEEDED" // 429: per-endpoint quota exhausted
	ErrorCodeBurstLimitExceeded        = "BURST_LIMIT_EXCEEDED"         // 429: sub-second storm shed
	ErrorCodeUnauthorized              = "UNAUTHORIZED"                 // 401: no resolved principal
	ErrorCodeNotFound                  = "NOT_FOUND"                    // 404: resource doesn't exist
	ErrorCodeBadRequest                = "BAD_REQUEST"                  // 400: invalid request format
	ErrorCodeInternalError             = "INTERNAL_ERROR"               // 500: server-side error
	ErrorCodeServiceUnavailable        = "SERVICE_UNAVAILABLE"          // 503: upstream unreachable
)

// APIError carries a machine-readable code, a human-readable message, and
// optional structured details (e.g. limit and reset_at on quota rejections).
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorResponse is the rejection envelope returned by every middleware stage
// and handler. Success is always false here; it exists so clients can branch
// on a single field.
type ErrorResponse struct {
	Success bool     `json:"success"`
	Error   APIError `json:"error"`
}

// NewErrorResponse builds a rejection envelope without details.
func NewErrorResponse(code, message string) *ErrorResponse {
	return &ErrorResponse{
		Error: APIError{Code: code, Message: message},
	}
}

// NewRateLimitError builds a quota rejection carrying retry metadata so
// clients can self-throttle without parsing headers.
func NewRateLimitError(code, message string, limit int, resetAt time.Time) *ErrorResponse {
	return &ErrorResponse{
		Error: APIError{
			Code:    code,
			Message: message,
			Details: map[string]any{
				"limit":    limit,
				"reset_at": resetAt.UTC().Format(time.RFC3339),
			},
		},
	}
}

// SessionResponse is returned by the session endpoints.
type SessionResponse struct {
	Success bool              `json:"success"`
	ID      string            `json:"id"`
	UserID  string            `json:"user_id"`
	Created time.Time         `json:"created_at"`
	Meta    map[string]string `json:"metadata,omitempty"`
}

// UsageResponse reports a principal's current window consumption. Served by
// the administrative surface only.
type UsageResponse struct {
	Success   bool      `json:"success"`
	Principal string    `json:"principal"`
	Tier      Tier      `json:"tier"`
	Used      int       `json:"used"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// SessionListResponse enumerates a user's live sessions (admin surface).
type SessionListResponse struct {
	Success  bool     `json:"success"`
	UserID   string   `json:"user_id"`
	Sessions []string `json:"sessions"`
}

// HealthCheckResponse reports overall service health plus per-component
// status for operator dashboards.
type HealthCheckResponse struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

type ComponentHealth struct {
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Health status constants.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusDegraded  = "degraded"
)

func NewHealthCheckResponse(status string) *HealthCheckResponse {
	return &HealthCheckResponse{
		Status:     status,
		Timestamp:  time.Now(),
		Components: make(map[string]ComponentHealth),
	}
}

func (h *HealthCheckResponse) AddComponent(name, status, message string) {
	h.Components[name] = ComponentHealth{
		Status:    status,
		Message:   message,
		Timestamp: time.Now(),
	}
}
