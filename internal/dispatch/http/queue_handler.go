// Package http provides the queue inspection and follow-up endpoints.
package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/allisson/klaviyo-relay/internal/dispatch/http/dto"
	dispatchUseCase "github.com/allisson/klaviyo-relay/internal/dispatch/usecase"
	"github.com/allisson/klaviyo-relay/internal/httputil"
)

// QueueHandler exposes queue depth, failed jobs and manual requeue.
type QueueHandler struct {
	dispatchUseCase dispatchUseCase.UseCase
	logger          *slog.Logger
}

// NewQueueHandler creates a new queue handler.
func NewQueueHandler(dispatchUseCase dispatchUseCase.UseCase, logger *slog.Logger) *QueueHandler {
	return &QueueHandler{
		dispatchUseCase: dispatchUseCase,
		logger:          logger,
	}
}

// StatsHandler returns the depth of every queue per status.
// GET /v1/queue/stats
func (h *QueueHandler) StatsHandler(c *gin.Context) {
	stats, err := h.dispatchUseCase.Stats(c.Request.Context())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.QueueStatsResponse{Queues: stats})
}

// ListFailedHandler lists permanently failed jobs of a queue.
// GET /v1/queue/failed?queue=klaviyo-events&limit=50
func (h *QueueHandler) ListFailedHandler(c *gin.Context) {
	queue := c.Query("queue")
	if queue == "" {
		httputil.HandleBadRequestGin(c, fmt.Errorf("queue parameter is required"), h.logger)
		return
	}

	limit, err := httputil.ParseLimit(c)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	jobs, err := h.dispatchUseCase.ListFailed(c.Request.Context(), queue, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapJobsToListResponse(jobs))
}

// RequeueHandler returns a failed job to its queue with a fresh attempt budget.
// POST /v1/queue/jobs/:id/requeue
func (h *QueueHandler) RequeueHandler(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleBadRequestGin(c, fmt.Errorf("invalid job id: %w", err), h.logger)
		return
	}

	job, err := h.dispatchUseCase.Requeue(c.Request.Context(), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapJobToResponse(job))
}
