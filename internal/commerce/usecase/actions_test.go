package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/allisson/klaviyo-relay/internal/commerce/domain"
	apperrors "github.com/allisson/klaviyo-relay/internal/errors"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIdentifyCustomerUseCase(t *testing.T) {
	ctx := context.Background()

	t.Run("Execute_NormalizesEmail", func(t *testing.T) {
		client := &MockMarketingClient{}
		uc := NewIdentifyCustomerUseCase(client)

		client.On("Identify", ctx, domain.Customer{Email: "a@b.com"}).Return(nil).Once()

		require.NoError(t, uc.Execute(ctx, domain.Customer{Email: " A@B.com "}))
		client.AssertExpectations(t)
	})

	t.Run("ExecuteFromMap", func(t *testing.T) {
		client := &MockMarketingClient{}
		uc := NewIdentifyCustomerUseCase(client)

		client.On("Identify", ctx, mock.MatchedBy(func(c domain.Customer) bool {
			return c.Email == "a@b.com" && c.FirstName == "Ada"
		})).Return(nil).Once()

		err := uc.ExecuteFromMap(ctx, map[string]any{"email": "a@b.com", "first_name": "Ada"})
		require.NoError(t, err)
		client.AssertExpectations(t)
	})

	t.Run("ExecuteFromMap_MissingEmail", func(t *testing.T) {
		client := &MockMarketingClient{}
		uc := NewIdentifyCustomerUseCase(client)

		err := uc.ExecuteFromMap(ctx, map[string]any{"first_name": "Ada"})
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		client.AssertNotCalled(t, "Identify", mock.Anything, mock.Anything)
	})

	t.Run("ClientError", func(t *testing.T) {
		client := &MockMarketingClient{}
		uc := NewIdentifyCustomerUseCase(client)

		client.On("Identify", ctx, mock.Anything).Return(apperrors.ErrUnavailable).Once()

		err := uc.Execute(ctx, domain.Customer{Email: "a@b.com"})
		assert.ErrorIs(t, err, apperrors.ErrUnavailable)
	})
}

func TestTrackEventUseCase(t *testing.T) {
	ctx := context.Background()
	event, err := domain.NewEvent("Started Checkout", map[string]any{"cart": 3}, nil)
	require.NoError(t, err)

	t.Run("Execute", func(t *testing.T) {
		client := &MockMarketingClient{}
		uc := NewTrackEventUseCase(client)

		client.On("Track", ctx, event).Return(nil).Once()

		require.NoError(t, uc.Execute(ctx, event))
		client.AssertExpectations(t)
	})

	t.Run("ExecuteOnce", func(t *testing.T) {
		client := &MockMarketingClient{}
		uc := NewTrackEventUseCase(client)
		once := event.WithUniqueID("checkout-1")

		client.On("TrackOnce", ctx, once).Return(nil).Once()

		require.NoError(t, uc.ExecuteOnce(ctx, once))
		client.AssertExpectations(t)
	})

	t.Run("ExecuteOnce_MissingUniqueID", func(t *testing.T) {
		client := &MockMarketingClient{}
		uc := NewTrackEventUseCase(client)

		err := uc.ExecuteOnce(ctx, event)
		assert.ErrorIs(t, err, domain.ErrUniqueIDRequired)
		client.AssertNotCalled(t, "TrackOnce", mock.Anything, mock.Anything)
	})
}

func TestSyncCatalogUseCase(t *testing.T) {
	ctx := context.Background()
	product, err := domain.NewProduct(domain.Product{ID: "p-1", Title: "Mug", Price: decimal.NewFromInt(12)})
	require.NoError(t, err)

	t.Run("SyncSingle", func(t *testing.T) {
		client := &MockMarketingClient{}
		uc := NewSyncCatalogUseCase(client, discardLogger())

		client.On("UpsertCatalogItem", ctx, product).Return(nil).Once()

		require.NoError(t, uc.SyncSingle(ctx, product))
		client.AssertExpectations(t)
	})

	t.Run("SyncBulk_ReturnsSummaryUnchanged", func(t *testing.T) {
		client := &MockMarketingClient{}
		uc := NewSyncCatalogUseCase(client, discardLogger())

		summary := domain.BulkResult{
			Success: 1,
			Failed:  1,
			Errors:  []domain.BulkItemError{{ProductID: "p-2", Error: "rejected"}},
		}
		products := []domain.Product{product}
		client.On("BulkUpsertCatalog", ctx, products).Return(summary).Once()

		assert.Equal(t, summary, uc.SyncBulk(ctx, products))
		client.AssertExpectations(t)
	})

	t.Run("SyncFromMap", func(t *testing.T) {
		client := &MockMarketingClient{}
		uc := NewSyncCatalogUseCase(client, discardLogger())

		client.On("BulkUpsertCatalog", ctx, mock.MatchedBy(func(products []domain.Product) bool {
			return len(products) == 2 && products[0].ID == "p-1" && products[1].ID == "p-2"
		})).Return(domain.BulkResult{Success: 2, Errors: []domain.BulkItemError{}}).Once()

		result, err := uc.SyncFromMap(ctx, []map[string]any{
			{"product_id": "p-1", "product_name": "Mug", "price": 12.5},
			{"product_id": "p-2", "product_name": "Cup", "price": "3.00"},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, result.Success)
		client.AssertExpectations(t)
	})

	t.Run("SyncFromMap_InvalidItemSendsNothing", func(t *testing.T) {
		client := &MockMarketingClient{}
		uc := NewSyncCatalogUseCase(client, discardLogger())

		_, err := uc.SyncFromMap(ctx, []map[string]any{
			{"product_id": "p-1", "price": 1},
			{"product_name": "no id", "price": 1},
		})
		assert.ErrorIs(t, err, domain.ErrProductIDRequired)
		client.AssertNotCalled(t, "BulkUpsertCatalog", mock.Anything, mock.Anything)
	})

	t.Run("SyncFromMap_Empty", func(t *testing.T) {
		uc := NewSyncCatalogUseCase(&MockMarketingClient{}, discardLogger())

		_, err := uc.SyncFromMap(ctx, nil)
		assert.ErrorIs(t, err, domain.ErrEmptyCatalog)
	})

	t.Run("Delete", func(t *testing.T) {
		client := &MockMarketingClient{}
		uc := NewSyncCatalogUseCase(client, discardLogger())

		client.On("DeleteCatalogItem", ctx, "p-1").Return(true, nil).Once()
		client.On("DeleteCatalogItem", ctx, "p-2").Return(false, nil).Once()

		deleted, err := uc.Delete(ctx, "p-1")
		require.NoError(t, err)
		assert.True(t, deleted)

		deleted, err = uc.Delete(ctx, "p-2")
		require.NoError(t, err)
		assert.False(t, deleted)

		_, err = uc.Delete(ctx, "")
		assert.ErrorIs(t, err, domain.ErrProductIDRequired)
		client.AssertExpectations(t)
	})
}

func TestProfileUseCase(t *testing.T) {
	ctx := context.Background()

	t.Run("DeleteProfile_NotFoundIsNotAnError", func(t *testing.T) {
		client := &MockMarketingClient{}
		uc := NewProfileUseCase(client)

		client.On("DeleteProfile", ctx, "ghost@b.com").Return(false, nil).Once()

		found, err := uc.DeleteProfile(ctx, "ghost@b.com")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("AddToList", func(t *testing.T) {
		client := &MockMarketingClient{}
		uc := NewProfileUseCase(client)

		client.On("AddToList", ctx, "L1", "a@b.com").Return(true, nil).Once()

		found, err := uc.AddToList(ctx, "L1", "a@b.com")
		require.NoError(t, err)
		assert.True(t, found)
	})

	t.Run("RemoveFromList_Error", func(t *testing.T) {
		client := &MockMarketingClient{}
		uc := NewProfileUseCase(client)

		client.On("RemoveFromList", ctx, "L1", "a@b.com").Return(false, errors.New("boom")).Once()

		_, err := uc.RemoveFromList(ctx, "L1", "a@b.com")
		assert.EqualError(t, err, "boom")
	})
}
