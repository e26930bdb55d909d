package apperr

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medivision/medivision/pkg/envelope"
)

// HTTPErrorHandler is installed as echo's error handler. Domain errors keep
// their message; anything unclassified is logged and rendered as a generic
// INTERNAL_ERROR.
func HTTPErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, code, message := translate(err)
		if status >= http.StatusInternalServerError {
			logger.Error().
				Err(err).
				Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Int("status", status).
				Msg("request failed")
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = envelope.Error(c, status, code, message)
		}
		if writeErr != nil {
			logger.Error().Err(writeErr).Msg("failed to write error response")
		}
	}
}

func translate(err error) (int, string, string) {
	var appErr *Error
	if errors.As(err, &appErr) {
		if appErr.Kind == KindInternal {
			return http.StatusInternalServerError, KindInternal.Code(), "internal server error"
		}
		msg := appErr.Message
		if msg == "" {
			msg = http.StatusText(appErr.Kind.HTTPStatus())
		}
		return appErr.Kind.HTTPStatus(), appErr.Kind.Code(), msg
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok && m != "" && he.Code < http.StatusInternalServerError {
			msg = m
		}
		return he.Code, codeForStatus(he.Code), msg
	}

	return http.StatusInternalServerError, KindInternal.Code(), "internal server error"
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnsupportedMediaType:
		return KindValidation.Code()
	case http.StatusUnauthorized:
		return KindUnauthorized.Code()
	case http.StatusForbidden:
		return KindForbidden.Code()
	case http.StatusNotFound:
		return KindNotFound.Code()
	case http.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case http.StatusRequestEntityTooLarge:
		return "PAYLOAD_TOO_LARGE"
	case http.StatusConflict:
		return KindConflict.Code()
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	case http.StatusServiceUnavailable:
		return "UNAVAILABLE"
	case http.StatusGatewayTimeout:
		return "TIMEOUT"
	}
	if status >= http.StatusInternalServerError {
		return KindInternal.Code()
	}
	return "REQUEST_ERROR"
}
