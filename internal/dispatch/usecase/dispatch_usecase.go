package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/allisson/klaviyo-relay/internal/database"
	"github.com/allisson/klaviyo-relay/internal/dispatch/domain"
	apperrors "github.com/allisson/klaviyo-relay/internal/errors"
	"github.com/allisson/klaviyo-relay/internal/metrics"
)

// Config holds dispatch queue configuration
type Config struct {
	EventsQueue  string
	CatalogQueue string
	Workers      int
	PollInterval time.Duration
	BatchSize    int
	Lease        time.Duration
}

// DispatchUseCase implements the dispatch queue
type DispatchUseCase struct {
	config    Config
	txManager database.TxManager
	repo      JobRepository
	handlers  map[domain.JobKind]domain.Handler
	policies  domain.PolicySet
	metrics   metrics.BusinessMetrics
	logger    *slog.Logger
	now       func() time.Time
}

// NewDispatchUseCase creates a new DispatchUseCase. handlers may be nil for enqueue-only use.
func NewDispatchUseCase(
	config Config,
	txManager database.TxManager,
	repo JobRepository,
	handlers map[domain.JobKind]domain.Handler,
	policies domain.PolicySet,
	businessMetrics metrics.BusinessMetrics,
	logger *slog.Logger,
) *DispatchUseCase {
	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.BatchSize < 1 {
		config.BatchSize = 1
	}
	if config.PollInterval <= 0 {
		config.PollInterval = time.Second
	}
	if config.Lease <= 0 {
		config.Lease = 5 * time.Minute
	}
	if businessMetrics == nil {
		businessMetrics = metrics.NewNoOpBusinessMetrics()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &DispatchUseCase{
		config:    config,
		txManager: txManager,
		repo:      repo,
		handlers:  handlers,
		policies:  policies,
		metrics:   businessMetrics,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Queues returns the queue names the worker pool serves.
func (uc *DispatchUseCase) Queues() []string {
	return []string{uc.config.EventsQueue, uc.config.CatalogQueue}
}

func (uc *DispatchUseCase) queueFor(kind domain.JobKind) string {
	if kind.IsCatalog() {
		return uc.config.CatalogQueue
	}
	return uc.config.EventsQueue
}

// Enqueue stores a unit of work on the queue of its kind
func (uc *DispatchUseCase) Enqueue(ctx context.Context, kind domain.JobKind, payload any) (*domain.Job, error) {
	policy, ok := uc.policies[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownJobKind, kind)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, fmt.Sprintf("encode %s payload: %v", kind, err))
	}

	var subject map[string]any
	if identifiable, ok := payload.(domain.Identifiable); ok {
		subject = identifiable.IdentifyingFields()
	}

	job := domain.NewJob(kind, uc.queueFor(kind), raw, subject, policy.MaxAttempts, uc.now())
	if err := uc.repo.Create(ctx, job); err != nil {
		return nil, err
	}

	uc.logger.Info("job enqueued",
		slog.String("job_id", job.ID.String()),
		slog.String("kind", string(job.Kind)),
		slog.String("queue", job.Queue),
	)
	return job, nil
}

// Start runs config.Workers workers per queue until ctx is cancelled
func (uc *DispatchUseCase) Start(ctx context.Context) error {
	uc.logger.Info("starting dispatch workers",
		slog.Any("queues", uc.Queues()),
		slog.Int("workers_per_queue", uc.config.Workers),
		slog.Duration("poll_interval", uc.config.PollInterval),
		slog.Int("batch_size", uc.config.BatchSize),
	)

	g, ctx := errgroup.WithContext(ctx)
	for _, queue := range uc.Queues() {
		for i := 0; i < uc.config.Workers; i++ {
			g.Go(func() error {
				return uc.work(ctx, queue)
			})
		}
	}

	err := g.Wait()
	uc.logger.Info("stopping dispatch workers")
	return err
}

// work polls queue until ctx is cancelled. A full batch is followed by an immediate poll.
func (uc *DispatchUseCase) work(ctx context.Context, queue string) error {
	ticker := time.NewTicker(uc.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for {
				processed, err := uc.ProcessQueue(ctx, queue)
				if err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					uc.logger.Error("failed to process queue",
						slog.String("queue", queue),
						slog.Any("error", err),
					)
				}
				if err != nil || processed < uc.config.BatchSize {
					break
				}
			}
		}
	}
}

// ProcessQueue claims and executes up to BatchSize due jobs from queue. Each job is claimed
// in its own transaction right before its attempt, so its lease only has to cover that attempt.
func (uc *DispatchUseCase) ProcessQueue(ctx context.Context, queue string) (int, error) {
	processed := 0
	for processed < uc.config.BatchSize {
		job, err := uc.claim(ctx, queue)
		if err != nil {
			return processed, err
		}
		if job == nil {
			break
		}
		processed++

		if job.Status == domain.JobStatusFailed {
			uc.logPermanentFailure(job, domain.ErrLeaseExpired)
			uc.metrics.RecordOperation(ctx, "dispatch", string(job.Kind), "failed")
			continue
		}

		if err := uc.execute(ctx, job); err != nil {
			return processed, err
		}
	}
	return processed, nil
}

// claim marks the oldest due job of queue as running under a lease. A job reclaimed after
// its final attempt outlived the lease is failed instead and returned without a lease.
// Returns nil when nothing is due.
func (uc *DispatchUseCase) claim(ctx context.Context, queue string) (*domain.Job, error) {
	var claimed *domain.Job

	err := uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		now := uc.now()
		jobs, err := uc.repo.ListClaimable(ctx, queue, now, 1)
		if err != nil || len(jobs) == 0 {
			return err
		}
		job := jobs[0]

		if err := job.MarkRunning(now, uc.config.Lease); err != nil {
			if !errors.Is(err, domain.ErrRetryBudgetExhausted) {
				return err
			}
			if err := job.MarkFailed(now, domain.ErrLeaseExpired.Error()); err != nil {
				return err
			}
		}
		if err := uc.repo.Update(ctx, job); err != nil {
			return err
		}
		claimed = job
		return nil
	})
	if err != nil {
		return nil, err
	}

	return claimed, nil
}

// execute runs one attempt of job and records its outcome. The returned error concerns
// persistence only; handler failures are absorbed into the job state. An outcome is
// discarded when the job was reclaimed by another worker in the meantime.
func (uc *DispatchUseCase) execute(ctx context.Context, job *domain.Job) error {
	if job.LockedUntil == nil {
		return fmt.Errorf("%w: job %s has no lease", domain.ErrInvalidTransition, job.ID)
	}
	lease := *job.LockedUntil

	policy := uc.policies.For(job.Kind)
	start := time.Now()

	err := uc.runHandler(ctx, job, policy)

	// The outcome must be stored even when the worker is shutting down.
	persistCtx := context.WithoutCancel(ctx)
	now := uc.now()

	var status string
	switch {
	case err == nil:
		status = "succeeded"
		if markErr := job.MarkSucceeded(now); markErr != nil {
			return markErr
		}
	case apperrors.IsPermanent(err) || !job.CanRetry():
		status = "failed"
		if markErr := job.MarkFailed(now, err.Error()); markErr != nil {
			return markErr
		}
	default:
		status = "retrying"
		if markErr := job.MarkRetrying(now, policy.Delay(job.Attempts), err.Error()); markErr != nil {
			return markErr
		}
	}

	if releaseErr := uc.repo.Release(persistCtx, job, lease); releaseErr != nil {
		if errors.Is(releaseErr, domain.ErrLeaseLost) {
			uc.logger.Warn("job lease lost, attempt outcome discarded",
				slog.String("job_id", job.ID.String()),
				slog.String("kind", string(job.Kind)),
				slog.String("outcome", status),
			)
			return nil
		}
		return releaseErr
	}

	switch job.Status {
	case domain.JobStatusFailed:
		uc.logPermanentFailure(job, err)
	case domain.JobStatusRetrying:
		uc.logger.Warn("job attempt failed, retry scheduled",
			slog.String("job_id", job.ID.String()),
			slog.String("kind", string(job.Kind)),
			slog.Int("attempt", job.Attempts),
			slog.Int("max_attempts", job.MaxAttempts),
			slog.Time("available_at", job.AvailableAt),
			slog.Any("error", err),
		)
	}

	uc.metrics.RecordOperation(persistCtx, "dispatch", string(job.Kind), status)
	uc.metrics.RecordDuration(persistCtx, "dispatch", string(job.Kind), time.Since(start), status)
	return nil
}

func (uc *DispatchUseCase) runHandler(ctx context.Context, job *domain.Job, policy domain.RetryPolicy) error {
	handler, ok := uc.handlers[job.Kind]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownJobKind, job.Kind)
	}

	if policy.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, policy.Timeout)
		defer cancel()
	}

	return handler(ctx, job.Payload)
}

func (uc *DispatchUseCase) logPermanentFailure(job *domain.Job, err error) {
	uc.logger.Error("job permanently failed",
		slog.String("event", "permanent_failure"),
		slog.String("job_id", job.ID.String()),
		slog.String("kind", string(job.Kind)),
		slog.String("queue", job.Queue),
		slog.Int("attempts", job.Attempts),
		slog.Any("subject", job.Subject),
		slog.Any("error", err),
	)
}

// Stats returns the depth of every served queue per status
func (uc *DispatchUseCase) Stats(ctx context.Context) ([]QueueStats, error) {
	stats := make([]QueueStats, 0, 2)
	for _, queue := range uc.Queues() {
		counts, err := uc.repo.CountByStatus(ctx, queue)
		if err != nil {
			return nil, err
		}
		if counts == nil {
			counts = make(map[domain.JobStatus]int64, len(domain.Statuses))
		}
		for _, status := range domain.Statuses {
			if _, ok := counts[status]; !ok {
				counts[status] = 0
			}
		}
		stats = append(stats, QueueStats{Queue: queue, Counts: counts})
	}
	return stats, nil
}

// ListFailed returns the most recent permanently failed jobs of queue
func (uc *DispatchUseCase) ListFailed(ctx context.Context, queue string, limit int) ([]*domain.Job, error) {
	return uc.repo.ListByStatus(ctx, queue, domain.JobStatusFailed, limit)
}

// Requeue returns a failed job to its queue
func (uc *DispatchUseCase) Requeue(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	var job *domain.Job

	err := uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		var err error
		if job, err = uc.repo.Get(ctx, id); err != nil {
			return err
		}
		if err := job.Requeue(uc.now()); err != nil {
			return err
		}
		return uc.repo.Update(ctx, job)
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Info("job requeued",
		slog.String("job_id", job.ID.String()),
		slog.String("kind", string(job.Kind)),
	)
	return job, nil
}
