package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lepinkainen/ook/internal/catalog"
)

// statusFor maps catalog errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, catalog.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, catalog.ErrAlreadyOnLoan), errors.Is(err, catalog.ErrAmbiguousLoan):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// fail renders err as an error fragment. Server-side failures are logged
// and their details kept out of the response.
func fail(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "path", c.Request.URL.Path, "request_id", c.GetString("request_id"), "error", err)
		msg = http.StatusText(status)
	}
	c.HTML(status, "error", msg)
	c.Abort()
}
