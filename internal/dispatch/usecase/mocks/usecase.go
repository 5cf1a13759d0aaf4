// Package mocks provides mock implementations of the dispatch use case for handler tests.
package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/allisson/klaviyo-relay/internal/dispatch/domain"
	dispatchUseCase "github.com/allisson/klaviyo-relay/internal/dispatch/usecase"
)

// MockUseCase is a mock implementation of the dispatch UseCase.
type MockUseCase struct {
	mock.Mock
}

// Enqueue mocks the Enqueue method.
func (m *MockUseCase) Enqueue(ctx context.Context, kind domain.JobKind, payload any) (*domain.Job, error) {
	args := m.Called(ctx, kind, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Job), args.Error(1)
}

// Start mocks the Start method.
func (m *MockUseCase) Start(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// ProcessQueue mocks the ProcessQueue method.
func (m *MockUseCase) ProcessQueue(ctx context.Context, queue string) (int, error) {
	args := m.Called(ctx, queue)
	return args.Int(0), args.Error(1)
}

// Stats mocks the Stats method.
func (m *MockUseCase) Stats(ctx context.Context) ([]dispatchUseCase.QueueStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]dispatchUseCase.QueueStats), args.Error(1)
}

// ListFailed mocks the ListFailed method.
func (m *MockUseCase) ListFailed(ctx context.Context, queue string, limit int) ([]*domain.Job, error) {
	args := m.Called(ctx, queue, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Job), args.Error(1)
}

// Requeue mocks the Requeue method.
func (m *MockUseCase) Requeue(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Job), args.Error(1)
}
