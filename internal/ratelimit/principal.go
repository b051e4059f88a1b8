package ratelimit

import (
	"context"
	"net"
	"net/http"
	"strings"

	"edgegate/internal/models"
)

type contextKey struct{}

var principalKey contextKey

// ContextWithPrincipal attaches the resolved principal to a request context.
// Resolution itself happens upstream of this layer.
func ContextWithPrincipal(ctx context.Context, p models.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom extracts the resolved principal, if any.
func PrincipalFrom(ctx context.Context) (models.Principal, bool) {
	p, ok := ctx.Value(principalKey).(models.Principal)
	return p, ok
}

// ClientIP extracts the client address from the request, checking proxy
// headers before falling back to the connection's remote address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
