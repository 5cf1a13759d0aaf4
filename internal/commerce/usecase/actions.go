package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/allisson/klaviyo-relay/internal/commerce/domain"
)

// IdentifyCustomerUseCase upserts a customer profile.
type IdentifyCustomerUseCase struct {
	client MarketingClient
}

// NewIdentifyCustomerUseCase creates a new IdentifyCustomerUseCase.
func NewIdentifyCustomerUseCase(client MarketingClient) *IdentifyCustomerUseCase {
	return &IdentifyCustomerUseCase{client: client}
}

// Execute upserts the profile of customer.
func (uc *IdentifyCustomerUseCase) Execute(ctx context.Context, customer domain.Customer) error {
	customer, err := domain.NewCustomer(customer)
	if err != nil {
		return err
	}
	return uc.client.Identify(ctx, customer)
}

// ExecuteFromMap validates a raw property bag into a Customer and upserts its profile.
func (uc *IdentifyCustomerUseCase) ExecuteFromMap(ctx context.Context, data map[string]any) error {
	customer, err := domain.CustomerFromMap(data)
	if err != nil {
		return err
	}
	return uc.client.Identify(ctx, customer)
}

// TrackEventUseCase submits events.
type TrackEventUseCase struct {
	client MarketingClient
}

// NewTrackEventUseCase creates a new TrackEventUseCase.
func NewTrackEventUseCase(client MarketingClient) *TrackEventUseCase {
	return &TrackEventUseCase{client: client}
}

// Execute submits event, forwarding its unique id when present.
func (uc *TrackEventUseCase) Execute(ctx context.Context, event domain.Event) error {
	return uc.client.Track(ctx, event)
}

// ExecuteOnce submits an event that must carry a unique id.
func (uc *TrackEventUseCase) ExecuteOnce(ctx context.Context, event domain.Event) error {
	if err := event.RequireUniqueID(); err != nil {
		return err
	}
	return uc.client.TrackOnce(ctx, event)
}

// SyncCatalogUseCase mirrors products into the remote catalog.
type SyncCatalogUseCase struct {
	client MarketingClient
	logger *slog.Logger
}

// NewSyncCatalogUseCase creates a new SyncCatalogUseCase.
func NewSyncCatalogUseCase(client MarketingClient, logger *slog.Logger) *SyncCatalogUseCase {
	return &SyncCatalogUseCase{client: client, logger: logger}
}

// SyncSingle creates or updates the catalog item of product.
func (uc *SyncCatalogUseCase) SyncSingle(ctx context.Context, product domain.Product) error {
	return uc.client.UpsertCatalogItem(ctx, product)
}

// SyncBulk upserts products one at a time and returns the client summary unchanged.
func (uc *SyncCatalogUseCase) SyncBulk(ctx context.Context, products []domain.Product) domain.BulkResult {
	result := uc.client.BulkUpsertCatalog(ctx, products)

	uc.logger.Info("catalog sync finished",
		slog.Int("total", result.Total()),
		slog.Int("success", result.Success),
		slog.Int("failed", result.Failed),
	)
	return result
}

// SyncFromMap validates raw product bags and bulk upserts them. Nothing is sent when any bag is invalid.
func (uc *SyncCatalogUseCase) SyncFromMap(ctx context.Context, items []map[string]any) (domain.BulkResult, error) {
	if len(items) == 0 {
		return domain.NewBulkResult(), domain.ErrEmptyCatalog
	}

	products := make([]domain.Product, 0, len(items))
	for i, item := range items {
		product, err := domain.ProductFromMap(item)
		if err != nil {
			return domain.NewBulkResult(), fmt.Errorf("product %d: %w", i, err)
		}
		products = append(products, product)
	}

	return uc.SyncBulk(ctx, products), nil
}

// Delete removes the catalog item of productID. An item the remote does not know yields false.
func (uc *SyncCatalogUseCase) Delete(ctx context.Context, productID string) (bool, error) {
	if productID == "" {
		return false, domain.ErrProductIDRequired
	}
	return uc.client.DeleteCatalogItem(ctx, productID)
}

// ProfileUseCase mutates existing profiles. An unknown email yields false and no error.
type ProfileUseCase struct {
	client MarketingClient
}

// NewProfileUseCase creates a new ProfileUseCase.
func NewProfileUseCase(client MarketingClient) *ProfileUseCase {
	return &ProfileUseCase{client: client}
}

// DeleteProfile requests the deletion of the profile identified by email.
func (uc *ProfileUseCase) DeleteProfile(ctx context.Context, email string) (bool, error) {
	return uc.client.DeleteProfile(ctx, email)
}

// AddToList subscribes the profile identified by email to listID.
func (uc *ProfileUseCase) AddToList(ctx context.Context, listID, email string) (bool, error) {
	return uc.client.AddToList(ctx, listID, email)
}

// RemoveFromList unsubscribes the profile identified by email from listID.
func (uc *ProfileUseCase) RemoveFromList(ctx context.Context, listID, email string) (bool, error) {
	return uc.client.RemoveFromList(ctx, listID, email)
}
