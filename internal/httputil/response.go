// Package httputil maps relay errors to JSON responses for the ingress API.
package httputil

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/allisson/klaviyo-relay/internal/errors"
)

// ErrorResponse represents a structured error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type errorMapping struct {
	target     error
	statusCode int
	code       string
	message    string
}

// Checked in order. An empty message exposes the error text.
var errorMappings = []errorMapping{
	{apperrors.ErrInvalidInput, http.StatusUnprocessableEntity, "invalid_input", ""},
	{apperrors.ErrNotFound, http.StatusNotFound, "not_found", "The requested resource was not found"},
	{apperrors.ErrConflict, http.StatusConflict, "conflict", ""},
	{apperrors.ErrUnauthorized, http.StatusUnauthorized, "unauthorized", "A valid API key is required"},
	{apperrors.ErrUnavailable, http.StatusServiceUnavailable, "unavailable", "A dependency is unavailable"},
	{apperrors.ErrRejected, http.StatusBadGateway, "rejected", "The marketing API rejected the request"},
}

// HandleErrorGin maps err to an HTTP status and writes it as JSON. Unknown errors are not exposed.
func HandleErrorGin(c *gin.Context, err error, logger *slog.Logger) {
	if err == nil {
		return
	}

	statusCode := http.StatusInternalServerError
	response := ErrorResponse{Error: "internal_error", Message: "An internal error occurred"}

	for _, m := range errorMappings {
		if apperrors.Is(err, m.target) {
			statusCode = m.statusCode
			response = ErrorResponse{Error: m.code, Message: m.message}
			if m.message == "" {
				response.Message = err.Error()
			}
			break
		}
	}

	if logger != nil {
		level := slog.LevelError
		if statusCode < http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		logger.Log(c.Request.Context(), level, "request failed",
			slog.Int("status_code", statusCode),
			slog.String("error_code", response.Error),
			slog.Any("error", err),
		)
	}

	c.JSON(statusCode, response)
}

// HandleBadRequestGin writes a 400 Bad Request response for malformed JSON or parameters.
func HandleBadRequestGin(c *gin.Context, err error, logger *slog.Logger) {
	if logger != nil {
		logger.Warn("bad request", slog.Any("error", err))
	}

	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "bad_request",
		Message: err.Error(),
	})
}

// HandleValidationErrorGin writes a 422 Unprocessable Entity response for request schema violations.
func HandleValidationErrorGin(c *gin.Context, err error, logger *slog.Logger) {
	if logger != nil {
		logger.Warn("validation failed", slog.Any("error", err))
	}

	c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
		Error:   "validation_error",
		Message: err.Error(),
	})
}
