// Package httpx holds the echo glue shared by every domain handler: strict
// body decoding, path-parameter parsing and the error-to-response mapping.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/oxycare/oxycare/internal/platform/apperr"
	"github.com/oxycare/oxycare/pkg/civil"
)

// ErrorBody is the JSON payload of every failed request.
type ErrorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// ErrorHandler maps *apperr.Error and *echo.HTTPError values to responses.
// Internal errors are logged with their cause and reported generically.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := render(err)
		if status >= http.StatusInternalServerError || apperr.KindOf(err) == apperr.KindInternal {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).
				Str("request_id", rid).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, body)
	}
}

func render(err error) (int, ErrorBody) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok {
			msg = s
		}
		return he.Code, ErrorBody{Error: msg}
	}

	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		status := apperr.HTTPStatus(appErr.Kind)
		if appErr.Kind == apperr.KindInternal {
			return status, ErrorBody{Error: "internal error: the operation was not applied"}
		}
		return status, ErrorBody{Error: appErr.Message, Fields: appErr.Fields}
	}

	return http.StatusBadRequest, ErrorBody{Error: "internal error: the operation was not applied"}
}

// Bind decodes the JSON request body into dst, rejecting unknown keys.
func Bind(c echo.Context, dst interface{}) error {
	err := decode(c, dst)
	if errors.Is(err, io.EOF) {
		return apperr.Validation("request body is required", nil)
	}
	return err
}

// BindOptional is Bind for endpoints whose body may be empty.
func BindOptional(c echo.Context, dst interface{}) error {
	err := decode(c, dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func decode(c echo.Context, dst interface{}) error {
	dec := json.NewDecoder(c.Request().Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return appErr
		}
		return apperr.Validation(fmt.Sprintf("invalid request body: %v", err), nil)
	}
	return nil
}

// ParamID parses the named path parameter as a UUID.
func ParamID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperr.Invalid(name, "must be a valid UUID")
	}
	return id, nil
}

// QueryID parses an optional UUID query parameter. Malformed values are
// ignored, like every other list filter.
func QueryID(c echo.Context, name string) *uuid.UUID {
	id, err := uuid.Parse(c.QueryParam(name))
	if err != nil {
		return nil
	}
	return &id
}

// QueryDate parses an optional YYYY-MM-DD query parameter, ignoring
// malformed values.
func QueryDate(c echo.Context, name string) *civil.Date {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil
	}
	d, err := civil.Parse(raw)
	if err != nil {
		return nil
	}
	return &d
}

// QueryBool parses an optional boolean query parameter ("true"/"false"/"1"/"0").
func QueryBool(c echo.Context, name string) *bool {
	switch c.QueryParam(name) {
	case "true", "1":
		v := true
		return &v
	case "false", "0":
		v := false
		return &v
	}
	return nil
}

// QueryString returns a pointer to a non-empty query parameter.
func QueryString(c echo.Context, name string) *string {
	if v := c.QueryParam(name); v != "" {
		return &v
	}
	return nil
}
