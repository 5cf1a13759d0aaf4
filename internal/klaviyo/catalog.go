package klaviyo

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/allisson/klaviyo-relay/internal/commerce/domain"
)

// catalogCreateOutcome is the first state of the catalog upsert protocol.
type catalogCreateOutcome int

const (
	catalogItemCreated catalogCreateOutcome = iota
	catalogItemExists
)

// createCatalogItem posts a new catalog item. A 409 is reported as catalogItemExists, not an error.
func (c *Client) createCatalogItem(ctx context.Context, product domain.Product) (catalogCreateOutcome, error) {
	err := c.do(ctx, request{
		operation: "create_catalog_item",
		method:    http.MethodPost,
		path:      "/catalog-items/",
		body:      product.CatalogItem(),
	}, nil)
	if err == nil {
		return catalogItemCreated, nil
	}
	if IsConflict(err) {
		return catalogItemExists, nil
	}
	return catalogItemCreated, err
}

// UpsertCatalogItem creates the catalog item for product, updating it by composite id when it already exists.
func (c *Client) UpsertCatalogItem(ctx context.Context, product domain.Product) error {
	outcome, err := c.createCatalogItem(ctx, product)
	if err != nil {
		return err
	}

	if outcome == catalogItemExists {
		c.logger.Debug("klaviyo catalog item exists, updating",
			slog.String("catalog_item_id", product.CatalogItemID()),
		)
		return c.UpdateCatalogItem(ctx, product)
	}

	c.logger.Info("klaviyo catalog item created", slog.String("product_id", product.ID))
	return nil
}

// UpdateCatalogItem patches the catalog item addressed by the product's composite id.
func (c *Client) UpdateCatalogItem(ctx context.Context, product domain.Product) error {
	err := c.do(ctx, request{
		operation: "update_catalog_item",
		method:    http.MethodPatch,
		path:      resourcePath("catalog-items", product.CatalogItemID()),
		body:      product.CatalogItemUpdate(),
	}, nil)
	if err != nil {
		return err
	}

	c.logger.Info("klaviyo catalog item updated", slog.String("product_id", product.ID))
	return nil
}

// DeleteCatalogItem removes the catalog item of a source product id.
// It returns false, without error, when the remote has no such item.
func (c *Client) DeleteCatalogItem(ctx context.Context, productID string) (bool, error) {
	err := c.do(ctx, request{
		operation: "delete_catalog_item",
		method:    http.MethodDelete,
		path:      resourcePath("catalog-items", domain.CatalogItemID(productID)),
	}, nil)
	if IsNotFound(err) {
		c.logger.Warn("klaviyo catalog item not found", slog.String("product_id", productID))
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// BulkUpsertCatalog upserts products one at a time. A failed item is recorded and never
// stops the remaining items.
func (c *Client) BulkUpsertCatalog(ctx context.Context, products []domain.Product) domain.BulkResult {
	result := domain.NewBulkResult()

	for _, product := range products {
		if err := c.UpsertCatalogItem(ctx, product); err != nil {
			result.RecordFailure(product.ID, err)
			continue
		}
		result.RecordSuccess()
	}

	c.logger.Info("klaviyo bulk catalog sync finished",
		slog.Int("success", result.Success),
		slog.Int("failed", result.Failed),
	)
	return result
}
