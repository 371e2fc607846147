package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/oxycare/oxycare/internal/platform/auth"
	"github.com/oxycare/oxycare/internal/platform/httpx"
)

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func newCtx(method, path string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestRequestID_GeneratesNew(t *testing.T) {
	c, rec := newCtx(http.MethodGet, "/")
	h := RequestID()(func(c echo.Context) error {
		if rid, _ := c.Get("request_id").(string); rid == "" {
			t.Error("expected request_id to be generated")
		}
		return c.String(http.StatusOK, "ok")
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("expected X-Request-ID response header")
	}
}

func TestRequestID_PreservesExisting(t *testing.T) {
	c, rec := newCtx(http.MethodGet, "/")
	c.Request().Header.Set(RequestIDHeader, "my-custom-id")
	if err := RequestID()(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := rec.Header().Get(RequestIDHeader); got != "my-custom-id" {
		t.Errorf("expected my-custom-id, got %s", got)
	}
}

func TestLogger_RendersErrorAndLogsStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	c, rec := newCtx(http.MethodGet, "/api/patients/x")
	c.Set("request_id", "req-1")

	err := Logger(logger)(func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	})(c)
	if err != nil {
		t.Fatalf("expected error to be handled, got %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if !strings.Contains(buf.String(), `"status":404`) || !strings.Contains(buf.String(), `"request_id":"req-1"`) {
		t.Errorf("unexpected log line: %s", buf.String())
	}
}

func TestRecovery_CatchesPanic(t *testing.T) {
	var buf bytes.Buffer
	c, rec := newCtx(http.MethodGet, "/panic")
	c.Set("request_id", "req-7")
	c.SetRequest(c.Request().WithContext(auth.WithCaller(c.Request().Context(), "user-42", "technicien")))

	err := Recovery(zerolog.New(&buf))(func(c echo.Context) error {
		panic("test panic")
	})(c)
	if err != nil {
		t.Fatalf("expected the panic to be answered, got %v", err)
	}
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	var body httpx.ErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.Error != panicMessage {
		t.Errorf("unexpected body %q (%v)", rec.Body.String(), err)
	}
	logged := buf.String()
	for _, want := range []string{`"panic":"test panic"`, `"request_id":"req-7"`, `"user_id":"user-42"`} {
		if !strings.Contains(logged, want) {
			t.Errorf("log line missing %s: %s", want, logged)
		}
	}
}

func TestRecovery_PassesThrough(t *testing.T) {
	c, _ := newCtx(http.MethodGet, "/ok")
	if err := Recovery(zerolog.Nop())(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSecurityHeaders_SetsHeaders(t *testing.T) {
	c, rec := newCtx(http.MethodGet, "/api/patients")
	if err := SecurityHeaders(SecurityOptions{})(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := map[string]string{
		"X-Content-Type-Options":       "nosniff",
		"X-Frame-Options":              "DENY",
		"Cross-Origin-Resource-Policy": "same-origin",
		"Referrer-Policy":              "no-referrer",
		"Cache-Control":                "no-store",
	}
	for header, want := range expected {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("header %s: got %q, want %q", header, got, want)
		}
	}
	if got := rec.Header().Get("Strict-Transport-Security"); got != "" {
		t.Errorf("HSTS should be off by default, got %q", got)
	}
}

func TestSecurityHeaders_HSTS(t *testing.T) {
	c, rec := newCtx(http.MethodGet, "/api/patients")
	if err := SecurityHeaders(SecurityOptions{HSTS: true})(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := rec.Header().Get("Strict-Transport-Security"); !strings.HasPrefix(got, "max-age=31536000") {
		t.Errorf("Strict-Transport-Security = %q", got)
	}
}

func bodyLimitServer(limit int64) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = httpx.ErrorHandler(zerolog.Nop())
	e.Use(BodyLimit(limit))
	e.POST("/api/patients", func(c echo.Context) error {
		var payload map[string]interface{}
		if err := httpx.Bind(c, &payload); err != nil {
			return err
		}
		return c.JSON(http.StatusCreated, payload)
	})
	return e
}

func TestBodyLimit_DeclaredLength(t *testing.T) {
	e := bodyLimitServer(32)
	req := httptest.NewRequest(http.MethodPost, "/api/patients", strings.NewReader(`{"nom":"`+strings.Repeat("x", 64)+`"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
	var body httpx.ErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || !strings.Contains(body.Error, "32 bytes") {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestBodyLimit_UndeclaredLength(t *testing.T) {
	e := bodyLimitServer(32)
	req := httptest.NewRequest(http.MethodPost, "/api/patients", strings.NewReader(`{"nom":"`+strings.Repeat("x", 64)+`"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.ContentLength = -1
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", rec.Code)
	}
}

func TestBodyLimit_AllowsSmallBodies(t *testing.T) {
	e := bodyLimitServer(0)
	req := httptest.NewRequest(http.MethodPost, "/api/patients", strings.NewReader(`{"nom":"Martin"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRequestTimeout_CompletesWithinDeadline(t *testing.T) {
	c, _ := newCtx(http.MethodGet, "/api/patients")
	if err := RequestTimeout(5 * time.Second)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRequestTimeout_ReturnsGatewayTimeout(t *testing.T) {
	c, _ := newCtx(http.MethodGet, "/api/dashboard/stats")
	err := RequestTimeout(20 * time.Millisecond)(func(c echo.Context) error {
		<-c.Request().Context().Done()
		return c.Request().Context().Err()
	})(c)

	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T (%v)", err, err)
	}
	if httpErr.Code != http.StatusGatewayTimeout {
		t.Errorf("expected 504, got %d", httpErr.Code)
	}
}

func TestRateLimit_ExceedsLimit(t *testing.T) {
	h := RateLimit(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 2})(okHandler)

	for i := 0; i < 2; i++ {
		c, rec := newCtx(http.MethodGet, "/")
		if err := h(c); err != nil {
			t.Fatalf("request %d: expected no error, got %v", i+1, err)
		}
		if rec.Header().Get("X-RateLimit-Limit") != "1" {
			t.Errorf("request %d: expected X-RateLimit-Limit 1", i+1)
		}
	}

	c, rec := newCtx(http.MethodGet, "/")
	err := h(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", httpErr.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestRateLimit_SeparateClients(t *testing.T) {
	h := RateLimit(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1})(okHandler)
	for _, ip := range []string{"10.0.0.1", "10.0.0.2"} {
		c, _ := newCtx(http.MethodGet, "/")
		c.Request().RemoteAddr = ip + ":1234"
		if err := h(c); err != nil {
			t.Errorf("client %s: expected first request to pass, got %v", ip, err)
		}
	}
}

func TestAudit_LogsMutationsOnly(t *testing.T) {
	var buf bytes.Buffer
	mw := Audit(zerolog.New(&buf))

	c, _ := newCtx(http.MethodGet, "/api/patients")
	if err := mw(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no audit line for GET, got %s", buf.String())
	}

	c, _ = newCtx(http.MethodPost, "/api/invoices/123/pay")
	c.SetRequest(c.Request().WithContext(auth.WithCaller(context.Background(), "user-9", auth.RoleUser)))
	_ = mw(func(c echo.Context) error { return errors.New("boom") })(c)

	line := buf.String()
	for _, want := range []string{`"resource":"invoices"`, `"action":"create"`, `"user_id":"user-9"`, `"failed":true`} {
		if !strings.Contains(line, want) {
			t.Errorf("expected %s in audit line: %s", want, line)
		}
	}
}
