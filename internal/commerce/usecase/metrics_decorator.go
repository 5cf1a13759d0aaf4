package usecase

import (
	"context"
	"time"

	"github.com/allisson/klaviyo-relay/internal/commerce/domain"
	"github.com/allisson/klaviyo-relay/internal/metrics"
)

const metricsDomain = "klaviyo"

// marketingClientWithMetrics decorates MarketingClient with metrics instrumentation.
type marketingClientWithMetrics struct {
	next    MarketingClient
	metrics metrics.BusinessMetrics
}

// NewMarketingClientWithMetrics wraps a MarketingClient with metrics recording.
func NewMarketingClientWithMetrics(client MarketingClient, m metrics.BusinessMetrics) MarketingClient {
	return &marketingClientWithMetrics{
		next:    client,
		metrics: m,
	}
}

func (c *marketingClientWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	c.metrics.RecordOperation(ctx, metricsDomain, operation, status)
	c.metrics.RecordDuration(ctx, metricsDomain, operation, time.Since(start), status)
}

// Identify records metrics for profile upserts.
func (c *marketingClientWithMetrics) Identify(ctx context.Context, customer domain.Customer) error {
	start := time.Now()
	err := c.next.Identify(ctx, customer)
	c.record(ctx, "identify", start, err)
	return err
}

// Track records metrics for event submissions.
func (c *marketingClientWithMetrics) Track(ctx context.Context, event domain.Event) error {
	start := time.Now()
	err := c.next.Track(ctx, event)
	c.record(ctx, "track", start, err)
	return err
}

// TrackOnce records metrics for deduplicated event submissions.
func (c *marketingClientWithMetrics) TrackOnce(ctx context.Context, event domain.Event) error {
	start := time.Now()
	err := c.next.TrackOnce(ctx, event)
	c.record(ctx, "track_once", start, err)
	return err
}

// UpsertCatalogItem records metrics for catalog upserts.
func (c *marketingClientWithMetrics) UpsertCatalogItem(ctx context.Context, product domain.Product) error {
	start := time.Now()
	err := c.next.UpsertCatalogItem(ctx, product)
	c.record(ctx, "catalog_upsert", start, err)
	return err
}

// DeleteCatalogItem records metrics for catalog deletions.
func (c *marketingClientWithMetrics) DeleteCatalogItem(ctx context.Context, productID string) (bool, error) {
	start := time.Now()
	found, err := c.next.DeleteCatalogItem(ctx, productID)
	c.record(ctx, "catalog_delete", start, err)
	return found, err
}

// BulkUpsertCatalog records one metric for the batch. A batch with any failed item counts as an error.
func (c *marketingClientWithMetrics) BulkUpsertCatalog(
	ctx context.Context,
	products []domain.Product,
) domain.BulkResult {
	start := time.Now()
	result := c.next.BulkUpsertCatalog(ctx, products)

	status := "success"
	if result.Failed > 0 {
		status = "error"
	}
	c.metrics.RecordOperation(ctx, metricsDomain, "catalog_bulk_upsert", status)
	c.metrics.RecordDuration(ctx, metricsDomain, "catalog_bulk_upsert", time.Since(start), status)

	return result
}

// DeleteProfile records metrics for profile deletions.
func (c *marketingClientWithMetrics) DeleteProfile(ctx context.Context, email string) (bool, error) {
	start := time.Now()
	found, err := c.next.DeleteProfile(ctx, email)
	c.record(ctx, "profile_delete", start, err)
	return found, err
}

// AddToList records metrics for list subscriptions.
func (c *marketingClientWithMetrics) AddToList(ctx context.Context, listID, email string) (bool, error) {
	start := time.Now()
	found, err := c.next.AddToList(ctx, listID, email)
	c.record(ctx, "list_add", start, err)
	return found, err
}

// RemoveFromList records metrics for list unsubscriptions.
func (c *marketingClientWithMetrics) RemoveFromList(ctx context.Context, listID, email string) (bool, error) {
	start := time.Now()
	found, err := c.next.RemoveFromList(ctx, listID, email)
	c.record(ctx, "list_remove", start, err)
	return found, err
}
