package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"

	"fixitnow/internal/domain"
	"fixitnow/internal/redis"
	"fixitnow/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// respondError sends an error response with the appropriate HTTP status code.
// Server-side failures are logged and reported to New Relic; their details are not exposed.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)

	if code >= http.StatusInternalServerError {
		if txn := nrgin.Transaction(c); txn != nil {
			txn.NoticeError(err)
		}
		slog.ErrorContext(c.Request.Context(), "request failed",
			"method", c.Request.Method, "path", c.FullPath(), "status", code, "error", err)
	}

	resp := ErrorResponse{Error: err.Error()}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		resp.Fields = verr.Fields
	}
	if code == http.StatusInternalServerError {
		resp.Error = "internal server error"
	}
	c.JSON(code, resp)
}

// respondBadRequest sends a 400 for a body that could not be decoded.
func respondBadRequest(c *gin.Context) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps domain and service errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest

	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden

	// Conflicts with the booking's current state.
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrAlreadyClaimed):
		return http.StatusConflict

	case errors.Is(err, domain.ErrExpired):
		return http.StatusGone

	// Retryable contention.
	case errors.Is(err, service.ErrWriteContention),
		errors.Is(err, redis.ErrLockNotAcquired):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}
