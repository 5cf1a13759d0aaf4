package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/klaviyo-relay/internal/database"
	"github.com/allisson/klaviyo-relay/internal/dispatch/domain"
)

// MySQLJobRepository handles job persistence for MySQL. Ids are stored as BINARY(16).
type MySQLJobRepository struct {
	db *sql.DB
}

// NewMySQLJobRepository creates a new MySQLJobRepository
func NewMySQLJobRepository(db *sql.DB) *MySQLJobRepository {
	return &MySQLJobRepository{db: db}
}

// Create inserts a new job
func (r *MySQLJobRepository) Create(ctx context.Context, job *domain.Job) error {
	querier := database.GetTx(ctx, r.db)

	idBytes, err := job.ID.MarshalBinary()
	if err != nil {
		return err
	}

	subject, err := marshalSubject(job.Subject)
	if err != nil {
		return err
	}

	query := `INSERT INTO dispatch_jobs (` + jobColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(ctx, query, idBytes, job.Kind, job.Queue, []byte(job.Payload), subject,
		job.Status, job.Attempts, job.MaxAttempts, job.LastError, job.AvailableAt, job.LockedUntil,
		job.FinishedAt, job.CreatedAt, job.UpdatedAt)

	return err
}

// ListClaimable locks up to limit jobs of queue that are due at now, skipping rows locked
// by other workers. Running jobs whose lease expired are included. Must run inside a transaction.
func (r *MySQLJobRepository) ListClaimable(
	ctx context.Context,
	queue string,
	now time.Time,
	limit int,
) ([]*domain.Job, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + jobColumns + `
			  FROM dispatch_jobs
			  WHERE queue = ?
			    AND ((status IN (?, ?) AND available_at <= ?)
			      OR (status = ? AND locked_until < ?))
			  ORDER BY available_at ASC
			  LIMIT ?
			  FOR UPDATE SKIP LOCKED`

	rows, err := querier.QueryContext(ctx, query, queue, domain.JobStatusQueued, domain.JobStatusRetrying,
		now, domain.JobStatusRunning, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	return collectJobs(rows)
}

// Update persists the mutable state of a job
func (r *MySQLJobRepository) Update(ctx context.Context, job *domain.Job) error {
	querier := database.GetTx(ctx, r.db)

	idBytes, err := job.ID.MarshalBinary()
	if err != nil {
		return err
	}

	query := `UPDATE dispatch_jobs
			  SET status = ?, attempts = ?, last_error = ?, available_at = ?, locked_until = ?,
			      finished_at = ?, updated_at = ?
			  WHERE id = ?`

	result, err := querier.ExecContext(ctx, query, job.Status, job.Attempts, job.LastError, job.AvailableAt,
		job.LockedUntil, job.FinishedAt, job.UpdatedAt, idBytes)
	if err != nil {
		return err
	}

	return requireAffected(result)
}

// Release persists the outcome of an attempt made under lease. The write is dropped with
// domain.ErrLeaseLost when another worker has since reclaimed the job.
func (r *MySQLJobRepository) Release(ctx context.Context, job *domain.Job, lease time.Time) error {
	querier := database.GetTx(ctx, r.db)

	idBytes, err := job.ID.MarshalBinary()
	if err != nil {
		return err
	}

	query := `UPDATE dispatch_jobs
			  SET status = ?, attempts = ?, last_error = ?, available_at = ?, locked_until = ?,
			      finished_at = ?, updated_at = ?
			  WHERE id = ? AND status = ? AND locked_until = ?`

	result, err := querier.ExecContext(ctx, query, job.Status, job.Attempts, job.LastError, job.AvailableAt,
		job.LockedUntil, job.FinishedAt, job.UpdatedAt, idBytes, domain.JobStatusRunning, lease)
	if err != nil {
		return err
	}

	return requireLease(result)
}

// Get retrieves a job by id
func (r *MySQLJobRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	querier := database.GetTx(ctx, r.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + jobColumns + ` FROM dispatch_jobs WHERE id = ?`

	job, err := scanJob(querier.QueryRowContext(ctx, query, idBytes))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrJobNotFound
	}
	return job, err
}

// CountByStatus returns the number of jobs of queue per status
func (r *MySQLJobRepository) CountByStatus(ctx context.Context, queue string) (map[domain.JobStatus]int64, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT status, COUNT(*) FROM dispatch_jobs WHERE queue = ? GROUP BY status`

	rows, err := querier.QueryContext(ctx, query, queue)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	return collectCounts(rows)
}

// ListByStatus retrieves the most recently updated jobs of queue in status
func (r *MySQLJobRepository) ListByStatus(
	ctx context.Context,
	queue string,
	status domain.JobStatus,
	limit int,
) ([]*domain.Job, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + jobColumns + `
			  FROM dispatch_jobs
			  WHERE queue = ? AND status = ?
			  ORDER BY updated_at DESC
			  LIMIT ?`

	rows, err := querier.QueryContext(ctx, query, queue, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	return collectJobs(rows)
}
