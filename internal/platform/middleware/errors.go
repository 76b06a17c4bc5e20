package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// ErrorHandler renders every error as {"message": ...}. Errors that are not
// echo.HTTPError become 500s; their text is only exposed when verbose is
// set.
func ErrorHandler(logger zerolog.Logger, verbose bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		body := map[string]interface{}{"message": http.StatusText(code)}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if m, ok := he.Message.(map[string]interface{}); ok {
				body = m
			} else {
				body = map[string]interface{}{"message": he.Message}
			}
			if he.Internal != nil && verbose {
				body["error"] = he.Internal.Error()
			}
		} else {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).Str("request_id", rid).Str("path", c.Request().URL.Path).Msg("unhandled error")
			if verbose {
				body["error"] = err.Error()
			}
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, body)
		}
		if err != nil {
			logger.Error().Err(err).Msg("write error response")
		}
	}
}
