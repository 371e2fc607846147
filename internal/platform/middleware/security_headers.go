package middleware

import (
	"github.com/labstack/echo/v4"
)

// SecurityOptions tunes SecurityHeaders per deployment. HSTS is only worth
// sending once the API sits behind TLS.
type SecurityOptions struct {
	HSTS bool
}

// SecurityHeaders locks down every response: nothing may be framed, sniffed
// or cached, and JSON is never rendered as a document. File downloads such as
// the invoice export keep their own Content-Type.
func SecurityHeaders(opts SecurityOptions) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'; sandbox")
			h.Set("Cross-Origin-Resource-Policy", "same-origin")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
			if opts.HSTS {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			return next(c)
		}
	}
}
