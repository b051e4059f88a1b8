package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edgegate/internal/models"
)

func TestNewUpstreamProxy_ForwardsRequests(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/widgets", r.URL.Path)
		w.WriteHeader(http.StatusTeapot)
		io.WriteString(w, "from upstream")
	}))
	defer upstream.Close()

	proxy, err := NewUpstreamProxy(models.UpstreamConfig{
		URL:     upstream.URL,
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/widgets", nil)
	rec := httptest.NewRecorder()
	proxy.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "from upstream", rec.Body.String())
}

func TestNewUpstreamProxy_UnreachableUpstream(t *testing.T) {
	// A closed server gives a connection refused on a port nothing listens on.
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	upstream.Close()

	proxy, err := NewUpstreamProxy(models.UpstreamConfig{URL: upstream.URL})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/widgets", nil)
	rec := httptest.NewRecorder()
	proxy.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp models.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.Success)
	assert.Equal(t, models.ErrorCodeServiceUnavailable, resp.Error.Code)
}

func TestNewUpstreamProxy_InvalidURL(t *testing.T) {
	_, err := NewUpstreamProxy(models.UpstreamConfig{URL: "://not-a-url"})
	require.Error(t, err)
}
