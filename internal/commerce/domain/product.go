package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// CatalogIntegrationType is the scope segment of a catalog item id.
	CatalogIntegrationType = "$custom"

	// CatalogType is the list segment of a catalog item id.
	CatalogType = "$default"

	// ViewedProductMetric is the metric name tracked for a product view.
	ViewedProductMetric = "Viewed Product"

	catalogItemType = "catalog-item"
)

// CatalogItemID synthesizes the composite catalog item id for a source product id.
func CatalogItemID(productID string) string {
	return fmt.Sprintf("%s:::%s:::%s", CatalogIntegrationType, CatalogType, productID)
}

// Product is a sellable item mirrored into the remote catalog.
type Product struct {
	ID               string          `json:"id"`
	Title            string          `json:"title"`
	Price            decimal.Decimal `json:"price"`
	Currency         string          `json:"currency"`
	URL              string          `json:"url,omitempty"`
	ImageURL         string          `json:"image_url,omitempty"`
	Description      string          `json:"description,omitempty"`
	Categories       []string        `json:"categories,omitempty"`
	SKU              string          `json:"sku,omitempty"`
	CustomAttributes map[string]any  `json:"custom_attributes,omitempty"`
}

// NewProduct returns a normalized copy of p.
func NewProduct(p Product) (Product, error) {
	p.ID = strings.TrimSpace(p.ID)
	if p.ID == "" {
		return Product{}, ErrProductIDRequired
	}
	if p.Price.IsNegative() {
		return Product{}, fmt.Errorf("%w: price must not be negative", ErrInvalidAmount)
	}

	p.Title = strings.TrimSpace(p.Title)
	p.Currency = strings.ToUpper(strings.TrimSpace(p.Currency))
	if p.Currency == "" {
		p.Currency = DefaultCurrency
	}
	p.URL = strings.TrimSpace(p.URL)
	p.ImageURL = strings.TrimSpace(p.ImageURL)
	p.SKU = strings.TrimSpace(p.SKU)
	p.Categories = cloneStrings(p.Categories)
	p.CustomAttributes = cloneMap(p.CustomAttributes)

	return p, nil
}

// ProductFromMap builds a Product from a raw property bag.
func ProductFromMap(data map[string]any) (Product, error) {
	price, err := decimalValue(data["price"])
	if err != nil {
		return Product{}, fmt.Errorf("%w: price: %v", ErrInvalidAmount, err)
	}

	return NewProduct(Product{
		ID:               stringValue(data["product_id"]),
		Title:            stringValue(data["product_name"]),
		Price:            price,
		Currency:         stringValue(data["currency"]),
		URL:              stringValue(data["product_url"]),
		ImageURL:         stringValue(data["image_url"]),
		Description:      stringValue(data["description"]),
		Categories:       stringSlice(data["categories"]),
		SKU:              stringValue(data["sku"]),
		CustomAttributes: mapValue(data["custom_attributes"]),
	})
}

// EventProperties returns the flattened subset sent with product events.
func (p Product) EventProperties() map[string]any {
	props := map[string]any{
		"product_id":   p.ID,
		"product_name": p.Title,
		"price":        float(p.Price),
		"currency":     p.Currency,
	}
	if p.URL != "" {
		props["product_url"] = p.URL
	}
	if p.ImageURL != "" {
		props["image_url"] = p.ImageURL
	}
	if len(p.Categories) > 0 {
		props["categories"] = cloneStrings(p.Categories)
	}
	if p.SKU != "" {
		props["sku"] = p.SKU
	}
	return props
}

// ViewedProductEvent returns the event tracked when customer views p.
func (p Product) ViewedProductEvent(customer *Customer) (Event, error) {
	return NewEvent(ViewedProductMetric, p.EventProperties(), customer)
}

// CatalogItemID returns the composite id of p's catalog item.
func (p Product) CatalogItemID() string {
	return CatalogItemID(p.ID)
}

func (p Product) catalogAttributes() map[string]any {
	metadata := map[string]any{"currency": p.Currency}
	if len(p.Categories) > 0 {
		metadata["categories"] = cloneStrings(p.Categories)
	}
	if p.SKU != "" {
		metadata["sku"] = p.SKU
	}
	for k, v := range p.CustomAttributes {
		metadata[k] = v
	}

	attrs := map[string]any{
		"title":           p.Title,
		"price":           float(p.Price),
		"published":       true,
		"custom_metadata": metadata,
	}
	if p.URL != "" {
		attrs["url"] = p.URL
	}
	if p.ImageURL != "" {
		attrs["image_full_url"] = p.ImageURL
	}
	if p.Description != "" {
		attrs["description"] = p.Description
	}
	return attrs
}

// CatalogItem returns the create request body for p.
func (p Product) CatalogItem() Document {
	attrs := p.catalogAttributes()
	attrs["external_id"] = p.ID
	attrs["integration_type"] = CatalogIntegrationType
	attrs["catalog_type"] = CatalogType

	return Document{Data: Resource{Type: catalogItemType, Attributes: attrs}}
}

// CatalogItemUpdate returns the update request body for p, addressed by the composite id.
// Create-only attributes are left out.
func (p Product) CatalogItemUpdate() Document {
	return Document{Data: Resource{
		Type:       catalogItemType,
		ID:         p.CatalogItemID(),
		Attributes: p.catalogAttributes(),
	}}
}

// IdentifyingFields returns the fields that identify the product in logs.
func (p Product) IdentifyingFields() map[string]any {
	return map[string]any{"product_id": p.ID}
}
