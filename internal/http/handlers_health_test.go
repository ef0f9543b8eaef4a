package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/target/lms-session/internal/data"
	domainauth "github.com/target/lms-session/internal/domain/auth"
)

func TestHealthHandlerGET_ReportsSessionCache(t *testing.T) {
	cache := data.NewSessionCache(data.SessionCacheOptions{TTL: 90 * time.Second, MaxEntries: 8})
	cache.Put("cookie-a", domainauth.SessionView{Authenticated: true})
	cache.Put("cookie-b", domainauth.SessionView{Authenticated: true})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	healthHandler(cache)(rec, req)

	resp := rec.Result()
	t.Cleanup(func() { _ = resp.Body.Close() })

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected content-type application/json, got %q", ct)
	}

	var body healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != "ok" {
		t.Fatalf("expected status ok, got %q", body.Status)
	}
	if body.SessionCache == nil {
		t.Fatal("expected session_cache block")
	}
	if body.SessionCache.Entries != 2 {
		t.Fatalf("expected 2 cache entries, got %d", body.SessionCache.Entries)
	}
	if body.SessionCache.TTLSeconds != 90 {
		t.Fatalf("expected ttl_seconds 90, got %v", body.SessionCache.TTLSeconds)
	}
}

func TestHealthHandlerGET_NoCache(t *testing.T) {
	rec := httptest.NewRecorder()
	healthHandler(nil)(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if body := rec.Body.String(); body != "{\"status\":\"ok\"}\n" {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestHealthHandlerHEAD(t *testing.T) {
	cache := data.NewSessionCache(data.SessionCacheOptions{TTL: time.Minute})
	req := httptest.NewRequest(http.MethodHead, "/healthz", nil)
	rec := httptest.NewRecorder()

	healthHandler(cache)(rec, req)

	resp := rec.Result()
	t.Cleanup(func() { _ = resp.Body.Close() })

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected content-type application/json, got %q", ct)
	}
	if bodyLen := rec.Body.Len(); bodyLen != 0 {
		t.Fatalf("expected empty body for HEAD request, got %d bytes", bodyLen)
	}
}
