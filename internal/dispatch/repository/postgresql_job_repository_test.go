package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/klaviyo-relay/internal/dispatch/domain"
)

var jobColumnNames = []string{
	"id", "kind", "queue", "payload", "subject", "status", "attempts", "max_attempts", "last_error",
	"available_at", "locked_until", "finished_at", "created_at", "updated_at",
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db, mock
}

func jobRow(job *domain.Job, id driver.Value) []driver.Value {
	return []driver.Value{
		id, string(job.Kind), job.Queue, []byte(job.Payload), []byte(`{"email":"a@b.com"}`),
		string(job.Status), job.Attempts, job.MaxAttempts, nil, job.AvailableAt, nil, nil,
		job.CreatedAt, job.UpdatedAt,
	}
}

func testJob(now time.Time) *domain.Job {
	return domain.NewJob(
		domain.KindIdentify,
		"klaviyo-events",
		[]byte(`{"email":"a@b.com"}`),
		map[string]any{"email": "a@b.com"},
		3,
		now,
	)
}

func TestPostgreSQLJobRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgreSQLJobRepository(db)
	now := time.Now().UTC()
	job := testJob(now)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO dispatch_jobs")).
		WithArgs(job.ID, "identify", "klaviyo-events", []byte(`{"email":"a@b.com"}`), []byte(`{"email":"a@b.com"}`),
			"queued", 0, 3, nil, now, nil, nil, now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), job))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLJobRepository_ListClaimable(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgreSQLJobRepository(db)
	now := time.Now().UTC()
	job := testJob(now)

	rows := sqlmock.NewRows(jobColumnNames).AddRow(jobRow(job, job.ID.String())...)
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE SKIP LOCKED")).
		WithArgs("klaviyo-events", "queued", "retrying", now, "running", 10).
		WillReturnRows(rows)

	jobs, err := repo.ListClaimable(context.Background(), "klaviyo-events", now, 10)

	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, job.ID, jobs[0].ID)
	assert.Equal(t, domain.KindIdentify, jobs[0].Kind)
	assert.Equal(t, domain.JobStatusQueued, jobs[0].Status)
	assert.JSONEq(t, `{"email":"a@b.com"}`, string(jobs[0].Payload))
	assert.Equal(t, map[string]any{"email": "a@b.com"}, jobs[0].Subject)
	assert.Nil(t, jobs[0].LastError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLJobRepository_Update(t *testing.T) {
	now := time.Now().UTC()

	t.Run("Success", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLJobRepository(db)
		job := testJob(now)
		require.NoError(t, job.MarkRunning(now, time.Minute))

		mock.ExpectExec(regexp.QuoteMeta("UPDATE dispatch_jobs")).
			WithArgs("running", 1, nil, now, sqlmock.AnyArg(), nil, now, job.ID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Update(context.Background(), job))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLJobRepository(db)

		mock.ExpectExec(regexp.QuoteMeta("UPDATE dispatch_jobs")).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Update(context.Background(), testJob(now))
		assert.ErrorIs(t, err, domain.ErrJobNotFound)
	})
}

func TestPostgreSQLJobRepository_Release(t *testing.T) {
	now := time.Now().UTC()

	t.Run("LeaseHeld", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLJobRepository(db)
		job := testJob(now)
		require.NoError(t, job.MarkRunning(now, time.Minute))
		lease := *job.LockedUntil
		require.NoError(t, job.MarkSucceeded(now))

		mock.ExpectExec(regexp.QuoteMeta("WHERE id = $8 AND status = $9 AND locked_until = $10")).
			WithArgs("succeeded", 1, nil, now, nil, now, now, job.ID, "running", lease).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Release(context.Background(), job, lease))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("LeaseLost", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLJobRepository(db)
		job := testJob(now)
		require.NoError(t, job.MarkRunning(now, time.Minute))
		lease := *job.LockedUntil
		require.NoError(t, job.MarkSucceeded(now))

		mock.ExpectExec(regexp.QuoteMeta("UPDATE dispatch_jobs")).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Release(context.Background(), job, lease)
		assert.ErrorIs(t, err, domain.ErrLeaseLost)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgreSQLJobRepository_Get(t *testing.T) {
	now := time.Now().UTC()

	t.Run("Found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLJobRepository(db)
		job := testJob(now)

		mock.ExpectQuery(regexp.QuoteMeta("FROM dispatch_jobs WHERE id = $1")).
			WithArgs(job.ID).
			WillReturnRows(sqlmock.NewRows(jobColumnNames).AddRow(jobRow(job, job.ID.String())...))

		found, err := repo.Get(context.Background(), job.ID)
		require.NoError(t, err)
		assert.Equal(t, job.ID, found.ID)
	})

	t.Run("NotFound", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLJobRepository(db)

		mock.ExpectQuery(regexp.QuoteMeta("FROM dispatch_jobs WHERE id = $1")).
			WillReturnRows(sqlmock.NewRows(jobColumnNames))

		_, err := repo.Get(context.Background(), uuid.Must(uuid.NewV7()))
		assert.ErrorIs(t, err, domain.ErrJobNotFound)
	})
}

func TestPostgreSQLJobRepository_CountByStatus(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgreSQLJobRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT status, COUNT(*) FROM dispatch_jobs")).
		WithArgs("klaviyo-events").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("queued", 4).
			AddRow("failed", 1))

	counts, err := repo.CountByStatus(context.Background(), "klaviyo-events")

	require.NoError(t, err)
	assert.Equal(t, map[domain.JobStatus]int64{
		domain.JobStatusQueued: 4,
		domain.JobStatusFailed: 1,
	}, counts)
}

func TestPostgreSQLJobRepository_ListByStatus(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgreSQLJobRepository(db)
	now := time.Now().UTC()
	job := testJob(now)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE queue = $1 AND status = $2")).
		WithArgs("klaviyo-events", "failed", 20).
		WillReturnRows(sqlmock.NewRows(jobColumnNames).AddRow(jobRow(job, job.ID.String())...))

	jobs, err := repo.ListByStatus(context.Background(), "klaviyo-events", domain.JobStatusFailed, 20)

	require.NoError(t, err)
	assert.Len(t, jobs, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}
