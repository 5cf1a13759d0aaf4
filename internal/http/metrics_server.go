package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/allisson/klaviyo-relay/internal/metrics"
)

// MetricsServer is the operator port of a relay process: the Prometheus scrape endpoint
// plus liveness and queue readiness probes. The worker has no ingress, so its probes live here.
type MetricsServer struct {
	server     *http.Server
	logger     *slog.Logger
	queueDepth metrics.QueueDepthFunc
}

// NewMetricsServer wires /metrics when provider is set and /ready when depth is set.
func NewMetricsServer(
	host string,
	port int,
	logger *slog.Logger,
	provider *metrics.Provider,
	depth metrics.QueueDepthFunc,
) *MetricsServer {
	s := &MetricsServer{logger: logger, queueDepth: depth}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(CustomLoggerMiddleware(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	if depth != nil {
		router.GET("/ready", s.queueReadinessHandler)
	}
	if provider != nil {
		router.GET("/metrics", gin.WrapH(provider.Handler()))
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", host, port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
	return s
}

// queueReadinessHandler is ready while the job store answers and reports its depth.
func (s *MetricsServer) queueReadinessHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	depth, err := s.queueDepth(ctx)
	if err != nil {
		s.logger.Warn("queue readiness check failed", slog.Any("error", err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "queues": depth})
}

// GetHandler returns the router, for tests.
func (s *MetricsServer) GetHandler() http.Handler {
	return s.server.Handler
}

// Start serves until Shutdown is called. ctx is accepted for symmetry with Server.Start.
func (s *MetricsServer) Start(ctx context.Context) error {
	s.logger.Info("starting metrics server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics server stopped: %w", err)
	}
	return nil
}

// Shutdown drains in-flight scrapes and probes.
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down metrics server")
	return s.server.Shutdown(ctx)
}
