package middleware

import (
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/oxycare/oxycare/internal/platform/apperr"
)

// DefaultBodyLimit caps request bodies when no limit is configured. The
// largest legitimate payloads are interventions carrying two signatures.
const DefaultBodyLimit int64 = 2 << 20

// BodyLimit rejects request bodies larger than limit bytes with a 413. A
// declared Content-Length is checked up front; bodies without one are cut
// off while the handler reads them.
func BodyLimit(limit int64) echo.MiddlewareFunc {
	if limit <= 0 {
		limit = DefaultBodyLimit
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Body == nil || req.Body == http.NoBody {
				return next(c)
			}
			if req.ContentLength > limit {
				return tooLarge(limit)
			}
			req.Body = &limitedBody{ReadCloser: req.Body, remaining: limit, limit: limit}
			return next(c)
		}
	}
}

func tooLarge(limit int64) error {
	return apperr.TooLarge(fmt.Sprintf("request body exceeds %d bytes", limit))
}

type limitedBody struct {
	io.ReadCloser
	remaining int64
	limit     int64
	exceeded  bool
}

func (b *limitedBody) Read(p []byte) (int, error) {
	if b.exceeded {
		return 0, tooLarge(b.limit)
	}
	// One byte past the limit is enough to detect overflow.
	if int64(len(p)) > b.remaining+1 {
		p = p[:b.remaining+1]
	}
	n, err := b.ReadCloser.Read(p)
	b.remaining -= int64(n)
	if b.remaining < 0 {
		b.exceeded = true
		return 0, tooLarge(b.limit)
	}
	return n, err
}
