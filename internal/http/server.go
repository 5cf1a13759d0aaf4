// Package http provides the ingress HTTP server, its middleware and the health endpoints.
package http

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/allisson/klaviyo-relay/internal/config"
	commerceHTTP "github.com/allisson/klaviyo-relay/internal/commerce/http"
	dispatchHTTP "github.com/allisson/klaviyo-relay/internal/dispatch/http"
	"github.com/allisson/klaviyo-relay/internal/metrics"
)

// Server represents the ingress HTTP server.
type Server struct {
	db     *sql.DB
	server *http.Server
	router *gin.Engine
	logger *slog.Logger
}

// NewServer creates a new HTTP server. The router is installed by SetupRouter.
func NewServer(
	db *sql.DB,
	host string,
	port int,
	logger *slog.Logger,
) *Server {
	return &Server{
		db:     db,
		logger: logger,
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", host, port),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// SetupRouter registers the middleware chain and every route.
func (s *Server) SetupRouter(
	cfg *config.Config,
	relayHandler *commerceHTTP.RelayHandler,
	queueHandler *dispatchHTTP.QueueHandler,
	metricsProvider *metrics.Provider,
) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(s.logger))

	if corsMiddleware := createCORSMiddleware(cfg.CORSEnabled, cfg.CORSAllowOrigins, s.logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}

	if metricsProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(metricsProvider.MeterProvider(), cfg.MetricsNamespace))
	}

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	v1 := router.Group("/v1")
	v1.Use(APIKeyMiddleware(cfg.IngressAPIKey, s.logger))
	if cfg.IngressRateLimitPerSec > 0 {
		v1.Use(RateLimitMiddleware(cfg.IngressRateLimitPerSec, cfg.IngressRateLimitBurst, s.logger))
	}

	events := v1.Group("/events")
	{
		events.POST("/track", relayHandler.TrackHandler)
		events.POST("/track-once", relayHandler.TrackOnceHandler)
		events.POST("/product-view", relayHandler.ProductViewHandler)
		events.POST("/order-placed", relayHandler.OrderPlacedHandler)
	}

	catalog := v1.Group("/catalog")
	{
		catalog.POST("/sync", relayHandler.CatalogSyncHandler)
		catalog.POST("/sync-single", relayHandler.CatalogSyncSingleHandler)
		catalog.DELETE("/items/:id", relayHandler.DeleteCatalogItemHandler)
	}

	v1.POST("/profiles/delete", relayHandler.DeleteProfileHandler)

	lists := v1.Group("/lists/:id")
	{
		lists.POST("/profiles", relayHandler.AddToListHandler)
		lists.DELETE("/profiles", relayHandler.RemoveFromListHandler)
	}

	queue := v1.Group("/queue")
	{
		queue.GET("/stats", queueHandler.StatsHandler)
		queue.GET("/failed", queueHandler.ListFailedHandler)
		queue.POST("/jobs/:id/requeue", queueHandler.RequeueHandler)
	}

	s.router = router
}

// GetHandler returns the http.Handler for testing purposes.
func (s *Server) GetHandler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start(ctx context.Context) error {
	if s.router == nil {
		return fmt.Errorf("router not configured")
	}
	s.server.Handler = s.router

	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readinessHandler reports ready only while the job store answers a ping.
func (s *Server) readinessHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if s.db == nil || s.db.PingContext(ctx) != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":     "not_ready",
			"components": gin.H{"database": "error"},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "ready",
		"components": gin.H{"database": "ok"},
	})
}
