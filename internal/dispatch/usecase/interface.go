// Package usecase implements the dispatch queue: durable enqueueing, claiming with leases,
// bounded retries with delayed redelivery and the worker pool that drives them.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/klaviyo-relay/internal/dispatch/domain"
)

// JobRepository defines job persistence operations.
type JobRepository interface {
	Create(ctx context.Context, job *domain.Job) error
	ListClaimable(ctx context.Context, queue string, now time.Time, limit int) ([]*domain.Job, error)
	Update(ctx context.Context, job *domain.Job) error
	// Release stores the outcome of an attempt if the job still holds lease, else ErrLeaseLost.
	Release(ctx context.Context, job *domain.Job, lease time.Time) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	CountByStatus(ctx context.Context, queue string) (map[domain.JobStatus]int64, error)
	ListByStatus(ctx context.Context, queue string, status domain.JobStatus, limit int) ([]*domain.Job, error)
}

// QueueStats is the depth of one queue per status.
type QueueStats struct {
	Queue  string                     `json:"queue"`
	Counts map[domain.JobStatus]int64 `json:"counts"`
}

// UseCase defines the dispatch queue operations.
type UseCase interface {
	// Enqueue stores a unit of work for kind. The payload is stored as JSON.
	Enqueue(ctx context.Context, kind domain.JobKind, payload any) (*domain.Job, error)
	// Start runs the worker pool until ctx is cancelled.
	Start(ctx context.Context) error
	// ProcessQueue claims one batch of due jobs from queue and executes them.
	ProcessQueue(ctx context.Context, queue string) (int, error)
	Stats(ctx context.Context) ([]QueueStats, error)
	ListFailed(ctx context.Context, queue string, limit int) ([]*domain.Job, error)
	// Requeue returns a permanently failed job to its queue with a fresh attempt budget.
	Requeue(ctx context.Context, id uuid.UUID) (*domain.Job, error)
}
