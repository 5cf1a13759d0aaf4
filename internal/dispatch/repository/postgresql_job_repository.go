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

// PostgreSQLJobRepository handles job persistence for PostgreSQL
type PostgreSQLJobRepository struct {
	db *sql.DB
}

// NewPostgreSQLJobRepository creates a new PostgreSQLJobRepository
func NewPostgreSQLJobRepository(db *sql.DB) *PostgreSQLJobRepository {
	return &PostgreSQLJobRepository{db: db}
}

// Create inserts a new job
func (r *PostgreSQLJobRepository) Create(ctx context.Context, job *domain.Job) error {
	querier := database.GetTx(ctx, r.db)

	subject, err := marshalSubject(job.Subject)
	if err != nil {
		return err
	}

	query := `INSERT INTO dispatch_jobs (` + jobColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err = querier.ExecContext(ctx, query, job.ID, job.Kind, job.Queue, []byte(job.Payload), subject,
		job.Status, job.Attempts, job.MaxAttempts, job.LastError, job.AvailableAt, job.LockedUntil,
		job.FinishedAt, job.CreatedAt, job.UpdatedAt)

	return err
}

// ListClaimable locks up to limit jobs of queue that are due at now, skipping rows locked
// by other workers. Running jobs whose lease expired are included. Must run inside a transaction.
func (r *PostgreSQLJobRepository) ListClaimable(
	ctx context.Context,
	queue string,
	now time.Time,
	limit int,
) ([]*domain.Job, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + jobColumns + `
			  FROM dispatch_jobs
			  WHERE queue = $1
			    AND ((status IN ($2, $3) AND available_at <= $4)
			      OR (status = $5 AND locked_until < $4))
			  ORDER BY available_at ASC
			  LIMIT $6
			  FOR UPDATE SKIP LOCKED`

	rows, err := querier.QueryContext(ctx, query, queue, domain.JobStatusQueued, domain.JobStatusRetrying,
		now, domain.JobStatusRunning, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	return collectJobs(rows)
}

// Update persists the mutable state of a job
func (r *PostgreSQLJobRepository) Update(ctx context.Context, job *domain.Job) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE dispatch_jobs
			  SET status = $1, attempts = $2, last_error = $3, available_at = $4, locked_until = $5,
			      finished_at = $6, updated_at = $7
			  WHERE id = $8`

	result, err := querier.ExecContext(ctx, query, job.Status, job.Attempts, job.LastError, job.AvailableAt,
		job.LockedUntil, job.FinishedAt, job.UpdatedAt, job.ID)
	if err != nil {
		return err
	}

	return requireAffected(result)
}

// Release persists the outcome of an attempt made under lease. The write is dropped with
// domain.ErrLeaseLost when another worker has since reclaimed the job.
func (r *PostgreSQLJobRepository) Release(ctx context.Context, job *domain.Job, lease time.Time) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE dispatch_jobs
			  SET status = $1, attempts = $2, last_error = $3, available_at = $4, locked_until = $5,
			      finished_at = $6, updated_at = $7
			  WHERE id = $8 AND status = $9 AND locked_until = $10`

	result, err := querier.ExecContext(ctx, query, job.Status, job.Attempts, job.LastError, job.AvailableAt,
		job.LockedUntil, job.FinishedAt, job.UpdatedAt, job.ID, domain.JobStatusRunning, lease)
	if err != nil {
		return err
	}

	return requireLease(result)
}

// Get retrieves a job by id
func (r *PostgreSQLJobRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + jobColumns + ` FROM dispatch_jobs WHERE id = $1`

	job, err := scanJob(querier.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrJobNotFound
	}
	return job, err
}

// CountByStatus returns the number of jobs of queue per status
func (r *PostgreSQLJobRepository) CountByStatus(ctx context.Context, queue string) (map[domain.JobStatus]int64, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT status, COUNT(*) FROM dispatch_jobs WHERE queue = $1 GROUP BY status`

	rows, err := querier.QueryContext(ctx, query, queue)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	return collectCounts(rows)
}

// ListByStatus retrieves the most recently updated jobs of queue in status
func (r *PostgreSQLJobRepository) ListByStatus(
	ctx context.Context,
	queue string,
	status domain.JobStatus,
	limit int,
) ([]*domain.Job, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + jobColumns + `
			  FROM dispatch_jobs
			  WHERE queue = $1 AND status = $2
			  ORDER BY updated_at DESC
			  LIMIT $3`

	rows, err := querier.QueryContext(ctx, query, queue, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	return collectJobs(rows)
}

func collectJobs(rows *sql.Rows) ([]*domain.Job, error) {
	var jobs []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return jobs, nil
}

func collectCounts(rows *sql.Rows) (map[domain.JobStatus]int64, error) {
	counts := make(map[domain.JobStatus]int64)
	for rows.Next() {
		var (
			status domain.JobStatus
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return counts, nil
}

func requireLease(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrLeaseLost
	}
	return nil
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}
