package ratelimit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"edgegate/internal/models"
)

// Guard produces the admission middleware stages. Stages are independently
// composable but order-sensitive: the router applies Burst before Tier (shed
// storms before spending the tier-quota read) and Endpoint after Tier (an
// extra quota on top of the global one, never instead of it). Every stage
// consults the exemption set first, so exempt traffic is never rejected by
// any limiter regardless of volume.
type Guard struct {
	limiter *Limiter
	cfg     models.RateLimitConfig
	exempt  map[string]struct{}
}

// NewGuard creates a Guard from the static rate limit configuration. The
// exemption set is immutable after this point.
func NewGuard(limiter *Limiter, cfg models.RateLimitConfig) *Guard {
	exempt := make(map[string]struct{}, len(cfg.Exempt))
	for _, entry := range cfg.Exempt {
		exempt[entry] = struct{}{}
	}
	return &Guard{limiter: limiter, cfg: cfg, exempt: exempt}
}

// isExempt reports whether either the principal id or the source address is
// on the static bypass list.
func (g *Guard) isExempt(principalID, addr string) bool {
	if principalID != "" {
		if _, ok := g.exempt[principalID]; ok {
			return true
		}
	}
	_, ok := g.exempt[addr]
	return ok
}

// tierPolicy looks up the quota for a tier. Config validation guarantees
// every known tier has a policy; an unknown tier at request time gets the
// free quota and a warning rather than an outage.
func (g *Guard) tierPolicy(tier models.Tier) Policy {
	if p, ok := g.cfg.Tiers[tier]; ok {
		return Policy{Limit: p.Limit, Window: p.Window}
	}
	slog.Warn("no policy for tier, falling back to free quota", "tier", tier)
	p := g.cfg.Tiers[models.TierFree]
	return Policy{Limit: p.Limit, Window: p.Window}
}

// Tier enforces the principal's tier quota. The exemption set is consulted
// before anything else, so an exempt source address passes even without a
// resolved principal. Non-exempt requests without a principal are rejected
// with an authentication error, not a rate-limit one, so clients can tell
// "log in" from "slow down". Rate limit headers are set on every outcome.
func (g *Guard) Tier() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFrom(r.Context())
			if g.isExempt(principal.ID, ClientIP(r)) {
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				writeJSON(w, http.StatusUnauthorized,
					models.NewErrorResponse(models.ErrorCodeUnauthorized, "Authentication required"))
				return
			}

			d := g.limiter.Allow(r.Context(), CounterPrefix+"tier:"+principal.ID, g.tierPolicy(principal.Tier))
			setRateHeaders(w, d)

			if !d.Allowed {
				denyRequest(w, r, models.ErrorCodeRateLimitExceeded, "Rate limit exceeded", d)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Anonymous enforces a quota on endpoints that accept unauthenticated
// traffic. Authenticated requests use their tier; otherwise the client
// address substitutes for the principal under the free quota.
func (g *Guard) Anonymous() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFrom(r.Context())
			if !ok {
				principal = models.AnonymousPrincipal(ClientIP(r))
			}
			if g.isExempt(principal.ID, ClientIP(r)) {
				next.ServeHTTP(w, r)
				return
			}

			d := g.limiter.Allow(r.Context(), CounterPrefix+"tier:"+principal.ID, g.tierPolicy(principal.Tier))
			setRateHeaders(w, d)

			if !d.Allowed {
				denyRequest(w, r, models.ErrorCodeRateLimitExceeded, "Rate limit exceeded", d)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Endpoint enforces an additional, independent counter for a named sensitive
// endpoint, with its own per-tier limits. Applied on top of the global tier
// limit. Unconfigured endpoints pass through untouched.
func (g *Guard) Endpoint(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ep, ok := g.cfg.Endpoints[name]
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			principal, resolved := PrincipalFrom(r.Context())
			if !resolved {
				principal = models.AnonymousPrincipal(ClientIP(r))
			}
			if g.isExempt(principal.ID, ClientIP(r)) {
				next.ServeHTTP(w, r)
				return
			}

			limit, ok := ep.Limits[principal.Tier]
			if !ok {
				limit = ep.Limits[models.TierFree]
			}
			if limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			scope := CounterPrefix + "endpoint:" + name + ":" + principal.ID
			d := g.limiter.Allow(r.Context(), scope, Policy{Limit: limit, Window: ep.Window})

			if !d.Allowed {
				setRateHeaders(w, d)
				denyRequest(w, r, models.ErrorCodeEndpointRateLimitExceeded,
					fmt.Sprintf("Rate limit exceeded for endpoint %s", name), d)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Burst sheds sub-second request storms regardless of tier. It runs before
// the tier stage so a retry storm is dropped before consuming the more
// expensive tier-quota read.
func (g *Guard) Burst() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !g.cfg.Burst.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			id := ClientIP(r)
			if principal, ok := PrincipalFrom(r.Context()); ok {
				id = principal.ID
			}
			if g.isExempt(id, ClientIP(r)) {
				next.ServeHTTP(w, r)
				return
			}

			d := g.limiter.Allow(r.Context(), BurstPrefix+id,
				Policy{Limit: g.cfg.Burst.Limit, Window: g.cfg.Burst.Window})

			if !d.Allowed {
				setRateHeaders(w, d)
				denyRequest(w, r, models.ErrorCodeBurstLimitExceeded, "Too many requests at once", d)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// setRateHeaders reports quota state so clients can self-throttle. Reset is
// an ISO-8601 timestamp of the next window start.
func setRateHeaders(w http.ResponseWriter, d Decision) {
	w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", d.Limit))
	w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", d.Remaining))
	w.Header().Set("X-RateLimit-Reset", d.ResetAt.UTC().Format(time.RFC3339))
}

func denyRequest(w http.ResponseWriter, r *http.Request, code, message string, d Decision) {
	retryAfter := int(time.Until(d.ResetAt).Seconds()) + 1
	if retryAfter < 1 {
		retryAfter = 1
	}
	w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
	writeJSON(w, http.StatusTooManyRequests, models.NewRateLimitError(code, message, d.Limit, d.ResetAt))

	slog.Warn("request rejected",
		"code", code,
		"path", r.URL.Path,
		"limit", d.Limit,
		"reset_at", d.ResetAt,
	)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
