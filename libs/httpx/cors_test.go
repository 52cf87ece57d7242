package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func corsHandler(policy CORSPolicy) http.Handler {
	return WithCORS(policy)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestWithCORSAllowsKnownOrigin(t *testing.T) {
	h := corsHandler(CORSPolicy{
		AllowedOrigins: []string{"https://booking.example.com"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		MaxAge:         10 * time.Minute,
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/services", nil)
	req.Header.Set("Origin", "https://booking.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://booking.example.com" {
		t.Fatalf("Allow-Origin = %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestWithCORSIgnoresUnknownOrigin(t *testing.T) {
	h := corsHandler(CORSPolicy{AllowedOrigins: []string{"https://booking.example.com"}})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/services", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("Allow-Origin = %q, want unset", got)
	}
}

func TestWithCORSShortCircuitsPreflight(t *testing.T) {
	h := corsHandler(CORSPolicy{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodPut},
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/appointments/status", nil)
	req.Header.Set("Origin", "https://booking.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "PUT" {
		t.Fatalf("Allow-Methods = %q", got)
	}
}

func TestWithCORSWildcardWithCredentialsEchoesOrigin(t *testing.T) {
	h := corsHandler(CORSPolicy{
		AllowedOrigins:   []string{"*"},
		AllowCredentials: true,
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/services", nil)
	req.Header.Set("Origin", "https://booking.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://booking.example.com" {
		t.Fatalf("Allow-Origin = %q, want the request origin", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Fatalf("Allow-Credentials = %q", got)
	}
}
