package usecase

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/allisson/klaviyo-relay/internal/commerce/domain"
	dispatchDomain "github.com/allisson/klaviyo-relay/internal/dispatch/domain"
	"github.com/allisson/klaviyo-relay/internal/metrics"
)

// MockMarketingClient is a mock implementation of MarketingClient
type MockMarketingClient struct {
	mock.Mock
}

func (m *MockMarketingClient) Identify(ctx context.Context, customer domain.Customer) error {
	args := m.Called(ctx, customer)
	return args.Error(0)
}

func (m *MockMarketingClient) Track(ctx context.Context, event domain.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockMarketingClient) TrackOnce(ctx context.Context, event domain.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockMarketingClient) UpsertCatalogItem(ctx context.Context, product domain.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *MockMarketingClient) DeleteCatalogItem(ctx context.Context, productID string) (bool, error) {
	args := m.Called(ctx, productID)
	return args.Bool(0), args.Error(1)
}

func (m *MockMarketingClient) BulkUpsertCatalog(ctx context.Context, products []domain.Product) domain.BulkResult {
	args := m.Called(ctx, products)
	return args.Get(0).(domain.BulkResult)
}

func (m *MockMarketingClient) DeleteProfile(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockMarketingClient) AddToList(ctx context.Context, listID, email string) (bool, error) {
	args := m.Called(ctx, listID, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockMarketingClient) RemoveFromList(ctx context.Context, listID, email string) (bool, error) {
	args := m.Called(ctx, listID, email)
	return args.Bool(0), args.Error(1)
}

// MockJobEnqueuer is a mock implementation of JobEnqueuer
type MockJobEnqueuer struct {
	mock.Mock
}

func (m *MockJobEnqueuer) Enqueue(
	ctx context.Context,
	kind dispatchDomain.JobKind,
	payload any,
) (*dispatchDomain.Job, error) {
	args := m.Called(ctx, kind, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dispatchDomain.Job), args.Error(1)
}

// mockBusinessMetrics is a mock implementation of metrics.BusinessMetrics for testing.
type mockBusinessMetrics struct {
	mock.Mock
}

func (m *mockBusinessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {
	m.Called(ctx, domain, operation, status)
}

func (m *mockBusinessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
	m.Called(ctx, domain, operation, duration, status)
}

var (
	_ MarketingClient         = (*MockMarketingClient)(nil)
	_ JobEnqueuer             = (*MockJobEnqueuer)(nil)
	_ metrics.BusinessMetrics = (*mockBusinessMetrics)(nil)
)
