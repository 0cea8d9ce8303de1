package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bitslow/metrics"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_UsesRouteTemplate(t *testing.T) {
	r := mux.NewRouter()
	r.Use(metrics.Middleware)
	r.HandleFunc("/api/coins/{id}/buy", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})

	for _, path := range []string{"/api/coins/1/buy", "/api/coins/2/buy"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusConflict, rec.Code)
	}

	expected := `
# HELP bitslow_http_requests_total Total number of HTTP requests handled.
# TYPE bitslow_http_requests_total counter
bitslow_http_requests_total{method="GET",route="/api/coins/{id}/buy",status="409"} 2
`
	require.NoError(t, testutil.GatherAndCompare(metrics.Registry, strings.NewReader(expected), "bitslow_http_requests_total"))
}

func TestHandler_ExposesLedgerCounters(t *testing.T) {
	metrics.RecordLedger("generate", "ok")
	metrics.RecordCacheLookup(true)
	metrics.RecordCacheInvalidation()

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, `bitslow_ledger_operations_total{operation="generate",outcome="ok"}`)
	require.Contains(t, body, `bitslow_cache_lookups_total{result="hit"}`)
	require.Contains(t, body, "bitslow_cache_invalidations_total")
}
