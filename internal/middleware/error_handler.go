package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	zlog "github.com/rs/zerolog/log"
)

// CustomErrorHandler renders errors that escape handlers as {"error": code}.
// Internal error text is logged, never returned.
func CustomErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := "server_error"

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		switch code {
		case http.StatusNotFound:
			message = "not_found"
		case http.StatusMethodNotAllowed:
			message = "method_not_allowed"
		case http.StatusUnauthorized:
			message = "unauthorized"
		case http.StatusForbidden:
			message = "forbidden"
		case http.StatusRequestEntityTooLarge:
			message = "payload_too_large"
		case http.StatusBadRequest:
			message = "bad_request"
		}
	}

	if code >= http.StatusInternalServerError {
		zlog.Error().Err(err).Str("method", c.Request().Method).Str("path", c.Request().URL.Path).Msg("request failed")
	}

	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(code)
	} else {
		writeErr = c.JSON(code, map[string]string{"error": message})
	}
	if writeErr != nil {
		zlog.Error().Err(writeErr).Msg("failed to write error response")
	}
}
