// Package mocks provides mock implementations of the commerce use cases for handler tests.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/allisson/klaviyo-relay/internal/commerce/domain"
	dispatchDomain "github.com/allisson/klaviyo-relay/internal/dispatch/domain"
)

// MockRelayUseCase is a mock implementation of RelayUseCase.
type MockRelayUseCase struct {
	mock.Mock
}

func (m *MockRelayUseCase) job(args mock.Arguments) (*dispatchDomain.Job, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dispatchDomain.Job), args.Error(1)
}

// TrackEvent mocks the TrackEvent method.
func (m *MockRelayUseCase) TrackEvent(ctx context.Context, event domain.Event) (*dispatchDomain.Job, error) {
	return m.job(m.Called(ctx, event))
}

// TrackEventOnce mocks the TrackEventOnce method.
func (m *MockRelayUseCase) TrackEventOnce(ctx context.Context, event domain.Event) (*dispatchDomain.Job, error) {
	return m.job(m.Called(ctx, event))
}

// ProductViewed mocks the ProductViewed method.
func (m *MockRelayUseCase) ProductViewed(
	ctx context.Context,
	product domain.Product,
	customer *domain.Customer,
) (*dispatchDomain.Job, error) {
	return m.job(m.Called(ctx, product, customer))
}

// OrderPlaced mocks the OrderPlaced method.
func (m *MockRelayUseCase) OrderPlaced(
	ctx context.Context,
	order domain.Order,
	customer domain.Customer,
) ([]*dispatchDomain.Job, error) {
	args := m.Called(ctx, order, customer)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*dispatchDomain.Job), args.Error(1)
}

// SyncCatalog mocks the SyncCatalog method.
func (m *MockRelayUseCase) SyncCatalog(ctx context.Context, products []domain.Product) (*dispatchDomain.Job, error) {
	return m.job(m.Called(ctx, products))
}

// SyncProduct mocks the SyncProduct method.
func (m *MockRelayUseCase) SyncProduct(ctx context.Context, product domain.Product) (*dispatchDomain.Job, error) {
	return m.job(m.Called(ctx, product))
}

// DeleteCatalogItem mocks the DeleteCatalogItem method.
func (m *MockRelayUseCase) DeleteCatalogItem(ctx context.Context, productID string) (*dispatchDomain.Job, error) {
	return m.job(m.Called(ctx, productID))
}

// DeleteProfile mocks the DeleteProfile method.
func (m *MockRelayUseCase) DeleteProfile(ctx context.Context, email string) (*dispatchDomain.Job, error) {
	return m.job(m.Called(ctx, email))
}

// AddToList mocks the AddToList method.
func (m *MockRelayUseCase) AddToList(ctx context.Context, listID, email string) (*dispatchDomain.Job, error) {
	return m.job(m.Called(ctx, listID, email))
}

// RemoveFromList mocks the RemoveFromList method.
func (m *MockRelayUseCase) RemoveFromList(ctx context.Context, listID, email string) (*dispatchDomain.Job, error) {
	return m.job(m.Called(ctx, listID, email))
}
