package middleware

import (
	"github.com/labstack/echo/v4"
)

// SecurityHeaders sets conservative response headers for a JSON API that
// also serves PDF downloads.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			h.Set("Referrer-Policy", "no-referrer")
			// patient records and prescriptions must not be cached
			h.Set("Cache-Control", "no-store")
			return next(c)
		}
	}
}
