package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
)

func newProtectedRouter(key string) *mux.Router {
	r := mux.NewRouter()
	r.Use(apiKeyMiddleware(key))
	r.HandleFunc("/thing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet, http.MethodPost)
	return r
}

func TestAPIKeyMiddlewareAllowsReads(t *testing.T) {
	r := newProtectedRouter("secret")

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/thing", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("GET without key = %d, want 200", rec.Code)
	}
}

func TestAPIKeyMiddlewareGuardsWrites(t *testing.T) {
	r := newProtectedRouter("secret")

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/thing", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("POST without key = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/thing", nil)
	req.Header.Set("X-API-Key", "wrong")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("POST with wrong key = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/thing", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("POST with key = %d, want 200", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	r := mux.NewRouter()
	r.Use(corsMiddleware)
	r.HandleFunc("/thing", handleOptions).Methods(http.MethodOptions)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/thing", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("OPTIONS = %d, want 200", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS headers on preflight")
	}
}
