package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/oxycare/oxycare/internal/platform/auth"
)

// Audit logs every mutating /api request with the caller that issued it.
func Audit(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !isMutation(req.Method) || !strings.HasPrefix(req.URL.Path, "/api/") {
				return next(c)
			}

			err := next(c)

			rid, _ := c.Get("request_id").(string)
			ctx := c.Request().Context()
			logger.Info().
				Str("audit", "mutation").
				Str("request_id", rid).
				Str("user_id", auth.UserIDFromContext(ctx)).
				Str("role", auth.RoleFromContext(ctx)).
				Str("resource", resourceOf(req.URL.Path)).
				Str("action", actionOf(req.Method)).
				Str("route", c.Path()).
				Bool("failed", err != nil).
				Msg("audit")

			return err
		}
	}
}

func isMutation(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// resourceOf returns the first path segment after /api/.
func resourceOf(path string) string {
	rest := strings.TrimPrefix(path, "/api/")
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		return rest[:i]
	}
	return rest
}

func actionOf(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodDelete:
		return "delete"
	default:
		return "update"
	}
}
