// Package http provides the ingress handlers that accept commerce facts from the storefront.
// Every handler validates the request, queues the work and answers 202 Accepted; the outcome
// at the marketing API is only visible in the worker logs.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/allisson/klaviyo-relay/internal/commerce/http/dto"
	commerceUseCase "github.com/allisson/klaviyo-relay/internal/commerce/usecase"
	dispatchDomain "github.com/allisson/klaviyo-relay/internal/dispatch/domain"
	"github.com/allisson/klaviyo-relay/internal/httputil"
	customValidation "github.com/allisson/klaviyo-relay/internal/validation"
)

type validatable interface {
	Validate() error
}

// RelayHandler handles the event, catalog, profile and list ingress endpoints.
type RelayHandler struct {
	relayUseCase commerceUseCase.RelayUseCase
	logger       *slog.Logger
}

// NewRelayHandler creates a new relay handler.
func NewRelayHandler(relayUseCase commerceUseCase.RelayUseCase, logger *slog.Logger) *RelayHandler {
	return &RelayHandler{
		relayUseCase: relayUseCase,
		logger:       logger,
	}
}

// bind decodes and validates the JSON body into req. It writes the error response and
// returns false when the request cannot be used.
func (h *RelayHandler) bind(c *gin.Context, req validatable) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return false
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return false
	}
	return true
}

func (h *RelayHandler) accepted(c *gin.Context, message string, jobs ...*dispatchDomain.Job) {
	c.JSON(http.StatusAccepted, dto.MapJobsToAcceptedResponse(message, jobs...))
}

// TrackHandler queues a custom event.
// POST /v1/events/track
func (h *RelayHandler) TrackHandler(c *gin.Context) {
	var req dto.TrackEventRequest
	if !h.bind(c, &req) {
		return
	}

	event, err := req.ToDomain()
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	job, err := h.relayUseCase.TrackEvent(c.Request.Context(), event)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	h.accepted(c, "Event queued for processing", job)
}

// TrackOnceHandler queues an event deduplicated remotely by its unique_id.
// POST /v1/events/track-once
func (h *RelayHandler) TrackOnceHandler(c *gin.Context) {
	var req dto.TrackEventRequest
	if !h.bind(c, &req) {
		return
	}

	event, err := req.ToDomain()
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	job, err := h.relayUseCase.TrackEventOnce(c.Request.Context(), event)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	h.accepted(c, "Event queued for processing", job)
}

// ProductViewHandler queues a "Viewed Product" event.
// POST /v1/events/product-view
func (h *RelayHandler) ProductViewHandler(c *gin.Context) {
	var req dto.ProductViewRequest
	if !h.bind(c, &req) {
		return
	}

	product, customer, err := req.ToDomain()
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	job, err := h.relayUseCase.ProductViewed(c.Request.Context(), product, customer)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	h.accepted(c, "Product view event queued", job)
}

// OrderPlacedHandler queues the buyer's identify and the "Placed Order" event.
// POST /v1/events/order-placed
func (h *RelayHandler) OrderPlacedHandler(c *gin.Context) {
	var req dto.OrderRequest
	if !h.bind(c, &req) {
		return
	}

	order, customer, err := req.ToDomain()
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	jobs, err := h.relayUseCase.OrderPlaced(c.Request.Context(), order, customer)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	h.accepted(c, "Order placed event queued", jobs...)
}

// CatalogSyncHandler queues a bulk catalog upsert as a single job.
// POST /v1/catalog/sync
func (h *RelayHandler) CatalogSyncHandler(c *gin.Context) {
	var req dto.CatalogSyncRequest
	if !h.bind(c, &req) {
		return
	}

	products, err := req.ToDomain()
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	job, err := h.relayUseCase.SyncCatalog(c.Request.Context(), products)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	h.accepted(c, "Catalog sync queued", job)
}

// CatalogSyncSingleHandler queues one product upsert.
// POST /v1/catalog/sync-single
func (h *RelayHandler) CatalogSyncSingleHandler(c *gin.Context) {
	var req dto.ProductRequest
	if !h.bind(c, &req) {
		return
	}

	product, err := req.ToDomain()
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	job, err := h.relayUseCase.SyncProduct(c.Request.Context(), product)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	h.accepted(c, "Product sync queued", job)
}

// DeleteCatalogItemHandler queues the removal of a product from the catalog.
// DELETE /v1/catalog/items/:id
func (h *RelayHandler) DeleteCatalogItemHandler(c *gin.Context) {
	job, err := h.relayUseCase.DeleteCatalogItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	h.accepted(c, "Catalog item deletion queued", job)
}

// DeleteProfileHandler queues a privacy deletion of a profile.
// POST /v1/profiles/delete
func (h *RelayHandler) DeleteProfileHandler(c *gin.Context) {
	var req dto.EmailRequest
	if !h.bind(c, &req) {
		return
	}

	job, err := h.relayUseCase.DeleteProfile(c.Request.Context(), req.Email)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	h.accepted(c, "Profile deletion queued", job)
}

// AddToListHandler queues a list subscription.
// POST /v1/lists/:id/profiles
func (h *RelayHandler) AddToListHandler(c *gin.Context) {
	var req dto.EmailRequest
	if !h.bind(c, &req) {
		return
	}

	job, err := h.relayUseCase.AddToList(c.Request.Context(), c.Param("id"), req.Email)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	h.accepted(c, "List subscription queued", job)
}

// RemoveFromListHandler queues a list removal.
// DELETE /v1/lists/:id/profiles
func (h *RelayHandler) RemoveFromListHandler(c *gin.Context) {
	var req dto.EmailRequest
	if !h.bind(c, &req) {
		return
	}

	job, err := h.relayUseCase.RemoveFromList(c.Request.Context(), c.Param("id"), req.Email)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	h.accepted(c, "List removal queued", job)
}
