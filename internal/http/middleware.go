package http

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	apperrors "github.com/allisson/klaviyo-relay/internal/errors"
	"github.com/allisson/klaviyo-relay/internal/httputil"
)

// APIKeyHeader carries the shared ingress key.
const APIKeyHeader = "X-API-Key"

// CustomLoggerMiddleware logs one line per request with its request id.
// 5xx responses log at ERROR, 4xx at WARN.
func CustomLoggerMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		}

		logger.Log(c.Request.Context(), level, "http request",
			slog.String("request_id", requestid.Get(c)),
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(start)),
			slog.String("client_ip", c.ClientIP()),
		)
	}
}

// APIKeyMiddleware rejects requests whose X-API-Key header does not match key.
// An empty key rejects every request.
func APIKeyMiddleware(key string, logger *slog.Logger) gin.HandlerFunc {
	expected := []byte(key)

	return func(c *gin.Context) {
		provided := []byte(c.GetHeader(APIKeyHeader))
		if len(expected) == 0 || subtle.ConstantTimeCompare(provided, expected) != 1 {
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RateLimitMiddleware throttles requests with one token bucket shared by every caller.
// Rejected requests get 429 with a Retry-After header.
func RateLimitMiddleware(rps float64, burst int, logger *slog.Logger) gin.HandlerFunc {
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	return func(c *gin.Context) {
		if limiter.Allow() {
			c.Next()
			return
		}

		reservation := limiter.Reserve()
		retryAfter := int(reservation.Delay().Seconds()) + 1
		reservation.Cancel()

		logger.Debug("rate limit exceeded", slog.Int("retry_after", retryAfter))

		c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
		c.JSON(http.StatusTooManyRequests, httputil.ErrorResponse{
			Error:   "rate_limit_exceeded",
			Message: "Too many requests. Please retry after the specified delay.",
		})
		c.Abort()
	}
}
