package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Route("/collections", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("[]"))
		})
		r.Get("/{name}/documents/{id}", func(w http.ResponseWriter, r *http.Request) {
			if chi.URLParam(r, "id") == "missing" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_, _ = w.Write([]byte("{}"))
		})
		r.Delete("/{name}", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	})
	r.Post("/query/simple", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	return r
}

func serve(r http.Handler, method, path string) {
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(method, path, http.NoBody))
}

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	r := newRouter()
	route := "/collections/{name}/documents/{id}"
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", route, "200"))

	serve(r, "GET", "/collections/abc123_orders/documents/1")
	serve(r, "GET", "/collections/abc123_films/documents/2")

	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", route, "200")); got != before+2 {
		t.Errorf("expected both documents under one route label, got %f -> %f", before, got)
	}
	if testutil.CollectAndCount(httpRequestDuration) == 0 {
		t.Error("expected http_request_duration_seconds to have observations")
	}
}

func TestMiddleware_StatusCodes(t *testing.T) {
	r := newRouter()

	tests := []struct {
		method string
		path   string
		route  string
		status string
	}{
		{"GET", "/collections/", "/collections", "200"},
		{"GET", "/collections/orders/documents/missing", "/collections/{name}/documents/{id}", "404"},
		{"DELETE", "/collections/orders", "/collections/{name}", "204"},
		{"POST", "/query/simple", "/query/simple", "502"},
	}
	for _, tc := range tests {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(tc.method, tc.route, tc.status))
			serve(r, tc.method, tc.path)
			after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(tc.method, tc.route, tc.status))
			if after != before+1 {
				t.Errorf("expected %s %s to be counted with status %s", tc.method, tc.route, tc.status)
			}
		})
	}
}

func TestMiddleware_SkipsProbes(t *testing.T) {
	r := newRouter()
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/health", "200"))

	serve(r, "GET", "/health")

	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/health", "200")); got != before {
		t.Errorf("expected probe requests to be skipped, got %f -> %f", before, got)
	}
	if got := testutil.ToFloat64(httpRequestsInFlight); got != 0 {
		t.Errorf("expected no requests in flight, got %f", got)
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "unknown"},
		{"/", "/"},
		{"/collections/", "/collections"},
		{"/collections/{name}/schema", "/collections/{name}/schema"},
	}
	for _, tc := range tests {
		if got := normalizePath(tc.input); got != tc.expected {
			t.Errorf("normalizePath(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}

func TestRegisterHTTPMetrics_Idempotent(t *testing.T) {
	RegisterHTTPMetrics()
	RegisterHTTPMetrics()
}
