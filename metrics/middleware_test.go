package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func testRouter(pattern string, handler http.HandlerFunc) chi.Router {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get(pattern, handler)
	return r
}

func TestMiddlewareRecordsByRoutePattern(t *testing.T) {
	router := testRouter("/homologos/{cum}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	counter := HTTPRequestTotals.WithLabelValues(http.MethodGet, "/homologos/{cum}", "200")
	before := testutil.ToFloat64(counter)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/homologos/19900001-1", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	// Per-CUM requests share the route pattern series
	if got := testutil.ToFloat64(counter); got != before+1 {
		t.Errorf("pattern series count = %v, want %v", got, before+1)
	}
}

func TestMiddlewareImplicitStatus(t *testing.T) {
	// A handler that never calls WriteHeader still counts as a 200
	router := testRouter("/model", func(w http.ResponseWriter, r *http.Request) {})

	counter := HTTPRequestTotals.WithLabelValues(http.MethodGet, "/model", "200")
	before := testutil.ToFloat64(counter)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/model", nil))

	if got := testutil.ToFloat64(counter); got != before+1 {
		t.Errorf("count = %v, want %v", got, before+1)
	}
}

func TestMiddlewareSkipsScrapePath(t *testing.T) {
	router := testRouter("/metrics", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	counter := HTTPRequestTotals.WithLabelValues(http.MethodGet, "/metrics", "200")
	before := testutil.ToFloat64(counter)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if got := testutil.ToFloat64(counter); got != before {
		t.Errorf("scrape requests were recorded: count = %v, want %v", got, before)
	}
}
