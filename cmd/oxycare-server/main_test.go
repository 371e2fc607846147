package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/oxycare/oxycare/internal/config"
	"github.com/oxycare/oxycare/internal/platform/auth"
	"github.com/oxycare/oxycare/internal/platform/cache"
)

func testConfig() *config.Config {
	return &config.Config{
		Env:            "test",
		JWTSecret:      "test-secret-of-at-least-thirty-two-chars",
		JWTTTL:         time.Hour,
		CORSOrigins:    []string{"http://localhost:3000"},
		RateLimitRPS:   100,
		RateLimitBurst: 100,
		RequestTimeout: 5 * time.Second,
		BodyLimit:      1 << 10,
	}
}

func serve(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	e := newRouter(testConfig(), nil, cache.Nop{}, zerolog.Nop())
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealthIsPublic(t *testing.T) {
	for _, path := range []string{"/health", "/api/health"} {
		rec := serve(t, http.MethodGet, path, "", "")
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), version) {
			t.Errorf("GET %s body %q lacks version", path, rec.Body.String())
		}
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	paths := []string{
		"/api/patients", "/api/equipments", "/api/interventions", "/api/medical-records",
		"/api/insurances", "/api/services", "/api/rentals", "/api/invoices", "/api/dashboard/stats",
		"/api/auth/me",
	}
	for _, path := range paths {
		rec := serve(t, http.MethodGet, path, "", "")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("GET %s without token = %d, want 401", path, rec.Code)
		}
	}

	rec := serve(t, http.MethodGet, "/api/patients", "", "not-a-jwt")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("invalid token = %d, want 401", rec.Code)
	}
}

func TestLoginIsPublic(t *testing.T) {
	rec := serve(t, http.MethodPost, "/api/auth/login", `{"email": 1}`, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed login = %d, want 400", rec.Code)
	}
}

func TestOversizedBodyIsRejected(t *testing.T) {
	body := `{"email":"` + strings.Repeat("a", 2<<10) + `@oxycare.com","password":"x"}`
	rec := serve(t, http.MethodPost, "/api/auth/login", body, "")
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized login = %d, want 413", rec.Code)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing on rejected request")
	}
}

func TestAuthenticatedRequestReachesHandler(t *testing.T) {
	cfg := testConfig()
	token, _, err := auth.NewTokens([]byte(cfg.JWTSecret), cfg.JWTTTL).Issue(uuid.New(), auth.RoleUser)
	if err != nil {
		t.Fatal(err)
	}
	rec := serve(t, http.MethodGet, "/api/dashboard/revenue?period=custom", "", token)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("custom revenue without bounds = %d, want 400: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "start_date") {
		t.Errorf("expected field error for start_date, got %s", rec.Body.String())
	}

	rec = serve(t, http.MethodGet, "/api/users", "", token)
	if rec.Code != http.StatusForbidden {
		t.Errorf("non-admin listing users = %d, want 403", rec.Code)
	}
}

func TestNewLogger_Level(t *testing.T) {
	cfg := testConfig()
	cfg.LogLevel = "debug"
	if got := newLogger(cfg).GetLevel(); got != zerolog.DebugLevel {
		t.Errorf("level = %v, want debug", got)
	}
	cfg.LogLevel = "nonsense"
	if got := newLogger(cfg).GetLevel(); got != zerolog.InfoLevel {
		t.Errorf("level = %v, want info", got)
	}
}
