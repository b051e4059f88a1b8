package api

import (
	"bytes"
	"net/http"

	"github.com/gorilla/mux"

	"edgegate/internal/cache"
)

// cachedResponse is the stored form of an upstream response.
type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// responseCacheMiddleware serves public GET responses from the shared cache,
// keyed by request URI. Only 200 responses are stored; everything else passes
// through uncached. A corrupt or missing entry is a miss, so the worst case
// is an extra upstream round trip.
func responseCacheMiddleware(c *cache.Cache) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			key := "resp:" + r.URL.RequestURI()

			var cached cachedResponse
			if c.Get(r.Context(), key, &cached) {
				if cached.ContentType != "" {
					w.Header().Set("Content-Type", cached.ContentType)
				}
				w.Header().Set("X-Cache", "hit")
				w.WriteHeader(cached.Status)
				w.Write(cached.Body)
				return
			}

			rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			w.Header().Set("X-Cache", "miss")
			next.ServeHTTP(rec, r)

			if rec.status == http.StatusOK {
				c.Set(r.Context(), key, cachedResponse{
					Status:      rec.status,
					ContentType: rec.Header().Get("Content-Type"),
					Body:        rec.buf.Bytes(),
				})
			}
		})
	}
}

// responseRecorder tees the response body so a successful pass-through can be
// stored after it has been sent to the client.
type responseRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	buf         bytes.Buffer
}

func (r *responseRecorder) WriteHeader(status int) {
	if r.wroteHeader {
		return
	}
	r.wroteHeader = true
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	r.buf.Write(b)
	return r.ResponseWriter.Write(b)
}
