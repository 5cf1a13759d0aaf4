package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/klaviyo-relay/internal/dispatch/domain"
)

func TestMySQLJobRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMySQLJobRepository(db)
	now := time.Now().UTC()
	job := testJob(now)
	idBytes, err := job.ID.MarshalBinary()
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO dispatch_jobs")).
		WithArgs(idBytes, "identify", "klaviyo-events", sqlmock.AnyArg(), sqlmock.AnyArg(),
			"queued", 0, 3, nil, now, nil, nil, now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), job))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLJobRepository_ListClaimable(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMySQLJobRepository(db)
	now := time.Now().UTC()
	job := testJob(now)
	idBytes, err := job.ID.MarshalBinary()
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE SKIP LOCKED")).
		WithArgs("klaviyo-events", "queued", "retrying", now, "running", now, 5).
		WillReturnRows(sqlmock.NewRows(jobColumnNames).AddRow(jobRow(job, idBytes)...))

	jobs, err := repo.ListClaimable(context.Background(), "klaviyo-events", now, 5)

	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, job.ID, jobs[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLJobRepository_Update(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMySQLJobRepository(db)
	now := time.Now().UTC()
	job := testJob(now)
	idBytes, err := job.ID.MarshalBinary()
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE dispatch_jobs")).
		WithArgs("queued", 0, nil, now, nil, nil, now, idBytes).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Update(context.Background(), job))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLJobRepository_Release(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMySQLJobRepository(db)
	now := time.Now().UTC()
	job := testJob(now)
	idBytes, err := job.ID.MarshalBinary()
	require.NoError(t, err)
	require.NoError(t, job.MarkRunning(now, time.Minute))
	lease := *job.LockedUntil
	require.NoError(t, job.MarkFailed(now, "rejected"))

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = ? AND status = ? AND locked_until = ?")).
		WithArgs("failed", 1, "rejected", now, nil, now, now, idBytes, "running", lease).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.Release(context.Background(), job, lease)
	assert.ErrorIs(t, err, domain.ErrLeaseLost)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLJobRepository_Get_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMySQLJobRepository(db)
	job := testJob(time.Now().UTC())

	mock.ExpectQuery(regexp.QuoteMeta("FROM dispatch_jobs WHERE id = ?")).
		WillReturnRows(sqlmock.NewRows(jobColumnNames))

	_, err := repo.Get(context.Background(), job.ID)
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestMySQLJobRepository_CountByStatus(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMySQLJobRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY status")).
		WithArgs("klaviyo-catalog").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).AddRow("retrying", 2))

	counts, err := repo.CountByStatus(context.Background(), "klaviyo-catalog")

	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[domain.JobStatusRetrying])
}
