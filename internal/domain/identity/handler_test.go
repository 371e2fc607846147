package identity

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxycare/oxycare/internal/platform/auth"
	"github.com/oxycare/oxycare/internal/platform/httpx"
)

func newTestServer(t *testing.T) (*echo.Echo, *auth.Tokens) {
	t.Helper()
	svc, _, tokens := newTestService()
	e := echo.New()
	e.HTTPErrorHandler = httpx.ErrorHandler(zerolog.Nop())
	api := e.Group("/api")
	api.Use(auth.JWTMiddleware(auth.JWTConfig{Verifier: tokens, Skipper: auth.AuthSkipper}))
	NewHandler(svc).RegisterRoutes(api)
	return e, tokens
}

func do(e *echo.Echo, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRegisterLoginMeFlow(t *testing.T) {
	e, _ := newTestServer(t)

	rec := do(e, http.MethodPost, "/api/auth/register",
		`{"email":"jean@oxycare.com","password":"motdepasse","nom":"Moreau","prenom":"Jean"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "password")

	rec = do(e, http.MethodPost, "/api/auth/login", `{"email":"jean@oxycare.com","password":"motdepasse"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var session struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	require.NotEmpty(t, session.Token)

	rec = do(e, http.MethodGet, "/api/auth/me", "", session.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"email":"jean@oxycare.com"`)
}

func TestLogin_WrongPasswordIs401(t *testing.T) {
	e, _ := newTestServer(t)
	do(e, http.MethodPost, "/api/auth/register",
		`{"email":"jean@oxycare.com","password":"motdepasse","nom":"Moreau","prenom":"Jean"}`, "")

	rec := do(e, http.MethodPost, "/api/auth/login", `{"email":"jean@oxycare.com","password":"nope"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMe_WithoutTokenIs401(t *testing.T) {
	e, _ := newTestServer(t)
	rec := do(e, http.MethodGet, "/api/auth/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUsersRoutes_AdminOnly(t *testing.T) {
	e, tokens := newTestServer(t)
	userToken, _, err := tokens.Issue(uuid.New(), auth.RoleUser)
	require.NoError(t, err)
	adminToken, _, err := tokens.Issue(uuid.New(), auth.RoleAdmin)
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, do(e, http.MethodGet, "/api/users", "", userToken).Code)
	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/api/users", "", adminToken).Code)

	rec := do(e, http.MethodPost, "/api/users",
		`{"email":"tech@oxycare.com","password":"x","nom":"T","prenom":"T","role":"technicien"}`, adminToken)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}
