package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"

	"edgegate/internal/models"
)

// NewUpstreamProxy builds the pass-through handler for admitted requests.
// The upstream API is an external collaborator: this layer adds admission
// control in front of it and otherwise forwards requests unchanged. An
// unreachable upstream is reported as a structured 503, never a raw proxy
// error.
func NewUpstreamProxy(cfg models.UpstreamConfig) (http.Handler, error) {
	target, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream url %q: %w", cfg.URL, err)
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		slog.Error("upstream request failed", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusServiceUnavailable,
			models.NewErrorResponse(models.ErrorCodeServiceUnavailable, "Upstream service unavailable"))
	}

	if cfg.Timeout > 0 {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.ResponseHeaderTimeout = cfg.Timeout
		proxy.Transport = transport
	}

	return proxy, nil
}
