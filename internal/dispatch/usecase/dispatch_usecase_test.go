package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/allisson/klaviyo-relay/internal/dispatch/domain"
	apperrors "github.com/allisson/klaviyo-relay/internal/errors"
)

// MockTxManager is a mock implementation of database.TxManager
type MockTxManager struct {
	mock.Mock
}

func (m *MockTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx, fn)
	if args.Get(0) != nil {
		return args.Error(0)
	}
	return fn(ctx)
}

// passthroughTx runs the function without a transaction
type passthroughTx struct{}

func (passthroughTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// memoryJobRepository is an in-memory JobRepository honoring claim semantics
type memoryJobRepository struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]domain.Job
}

func newMemoryJobRepository() *memoryJobRepository {
	return &memoryJobRepository{jobs: make(map[uuid.UUID]domain.Job)}
}

func (r *memoryJobRepository) Create(ctx context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = *job
	return nil
}

func (r *memoryJobRepository) ListClaimable(
	ctx context.Context,
	queue string,
	now time.Time,
	limit int,
) ([]*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var due []*domain.Job
	for _, job := range r.jobs {
		if job.Queue != queue {
			continue
		}
		waiting := (job.Status == domain.JobStatusQueued || job.Status == domain.JobStatusRetrying) &&
			!job.AvailableAt.After(now)
		expired := job.Status == domain.JobStatusRunning && job.LockedUntil != nil && job.LockedUntil.Before(now)
		if waiting || expired {
			j := job
			due = append(due, &j)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].AvailableAt.Before(due[j].AvailableAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r *memoryJobRepository) Update(ctx context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; !ok {
		return domain.ErrJobNotFound
	}
	r.jobs[job.ID] = *job
	return nil
}

func (r *memoryJobRepository) Release(ctx context.Context, job *domain.Job, lease time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.jobs[job.ID]
	if !ok || stored.Status != domain.JobStatusRunning || stored.LockedUntil == nil ||
		!stored.LockedUntil.Equal(lease) {
		return domain.ErrLeaseLost
	}
	r.jobs[job.ID] = *job
	return nil
}

func (r *memoryJobRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return &job, nil
}

func (r *memoryJobRepository) CountByStatus(ctx context.Context, queue string) (map[domain.JobStatus]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[domain.JobStatus]int64)
	for _, job := range r.jobs {
		if job.Queue == queue {
			counts[job.Status]++
		}
	}
	return counts, nil
}

func (r *memoryJobRepository) ListByStatus(
	ctx context.Context,
	queue string,
	status domain.JobStatus,
	limit int,
) ([]*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var jobs []*domain.Job
	for _, job := range r.jobs {
		if job.Queue == queue && job.Status == status && len(jobs) < limit {
			j := job
			jobs = append(jobs, &j)
		}
	}
	return jobs, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type identifyPayload struct {
	Email string `json:"email"`
}

func (p identifyPayload) IdentifyingFields() map[string]any {
	return map[string]any{"email": p.Email}
}

var testConfig = Config{
	EventsQueue:  "klaviyo-events",
	CatalogQueue: "klaviyo-catalog",
	Workers:      2,
	PollInterval: 5 * time.Millisecond,
	BatchSize:    10,
	Lease:        5 * time.Minute,
}

var testPolicies = domain.NewPolicySet(
	3,
	[]time.Duration{60 * time.Second, 300 * time.Second, 900 * time.Second},
	30*time.Second,
	120*time.Second,
)

func newTestUseCase(
	repo JobRepository,
	handlers map[domain.JobKind]domain.Handler,
	logs *bytes.Buffer,
) (*DispatchUseCase, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	logger := slog.New(slog.NewJSONHandler(logs, nil))

	uc := NewDispatchUseCase(testConfig, passthroughTx{}, repo, handlers, testPolicies, nil, logger)
	uc.now = clock.Now
	return uc, clock
}

func TestDispatchUseCase_Enqueue(t *testing.T) {
	t.Run("RoutesByKind", func(t *testing.T) {
		repo := newMemoryJobRepository()
		uc, _ := newTestUseCase(repo, nil, &bytes.Buffer{})

		job, err := uc.Enqueue(context.Background(), domain.KindIdentify, identifyPayload{Email: "a@b.com"})
		require.NoError(t, err)
		assert.Equal(t, "klaviyo-events", job.Queue)
		assert.Equal(t, 3, job.MaxAttempts)
		assert.Equal(t, map[string]any{"email": "a@b.com"}, job.Subject)
		assert.JSONEq(t, `{"email":"a@b.com"}`, string(job.Payload))

		job, err = uc.Enqueue(context.Background(), domain.KindSyncCatalog, map[string]any{"products": []any{}})
		require.NoError(t, err)
		assert.Equal(t, "klaviyo-catalog", job.Queue)
		assert.Nil(t, job.Subject)
	})

	t.Run("UnknownKind", func(t *testing.T) {
		uc, _ := newTestUseCase(newMemoryJobRepository(), nil, &bytes.Buffer{})

		_, err := uc.Enqueue(context.Background(), domain.JobKind("nope"), nil)
		assert.ErrorIs(t, err, domain.ErrUnknownJobKind)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})

	t.Run("UnencodablePayload", func(t *testing.T) {
		uc, _ := newTestUseCase(newMemoryJobRepository(), nil, &bytes.Buffer{})

		_, err := uc.Enqueue(context.Background(), domain.KindTrack, func() {})
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})
}

func TestDispatchUseCase_ProcessQueue(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		repo := newMemoryJobRepository()
		var received json.RawMessage
		handlers := map[domain.JobKind]domain.Handler{
			domain.KindIdentify: func(ctx context.Context, payload json.RawMessage) error {
				received = payload
				return nil
			},
		}
		uc, _ := newTestUseCase(repo, handlers, &bytes.Buffer{})

		job, err := uc.Enqueue(ctx, domain.KindIdentify, identifyPayload{Email: "a@b.com"})
		require.NoError(t, err)

		processed, err := uc.ProcessQueue(ctx, "klaviyo-events")
		require.NoError(t, err)
		assert.Equal(t, 1, processed)
		assert.JSONEq(t, `{"email":"a@b.com"}`, string(received))

		stored, err := repo.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusSucceeded, stored.Status)
		assert.Equal(t, 1, stored.Attempts)
	})

	t.Run("TransientFailure_SchedulesBackoff", func(t *testing.T) {
		repo := newMemoryJobRepository()
		handlers := map[domain.JobKind]domain.Handler{
			domain.KindTrack: func(ctx context.Context, payload json.RawMessage) error {
				return apperrors.Wrap(apperrors.ErrUnavailable, "503")
			},
		}
		uc, clock := newTestUseCase(repo, handlers, &bytes.Buffer{})

		job, err := uc.Enqueue(ctx, domain.KindTrack, map[string]any{"name": "x"})
		require.NoError(t, err)

		_, err = uc.ProcessQueue(ctx, "klaviyo-events")
		require.NoError(t, err)

		stored, err := repo.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusRetrying, stored.Status)
		assert.Equal(t, clock.Now().Add(60*time.Second), stored.AvailableAt)

		processed, err := uc.ProcessQueue(ctx, "klaviyo-events")
		require.NoError(t, err)
		assert.Equal(t, 0, processed, "not due before its backoff")

		clock.Advance(60 * time.Second)
		processed, err = uc.ProcessQueue(ctx, "klaviyo-events")
		require.NoError(t, err)
		assert.Equal(t, 1, processed)

		stored, err = repo.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, stored.Attempts)
		assert.Equal(t, clock.Now().Add(300*time.Second), stored.AvailableAt)
	})

	t.Run("IdentifyRedeliversImmediately", func(t *testing.T) {
		repo := newMemoryJobRepository()
		calls := 0
		handlers := map[domain.JobKind]domain.Handler{
			domain.KindIdentify: func(ctx context.Context, payload json.RawMessage) error {
				calls++
				if calls == 1 {
					return errors.New("connection reset")
				}
				return nil
			},
		}
		uc, _ := newTestUseCase(repo, handlers, &bytes.Buffer{})

		job, err := uc.Enqueue(ctx, domain.KindIdentify, identifyPayload{Email: "a@b.com"})
		require.NoError(t, err)

		_, err = uc.ProcessQueue(ctx, "klaviyo-events")
		require.NoError(t, err)
		_, err = uc.ProcessQueue(ctx, "klaviyo-events")
		require.NoError(t, err)

		stored, err := repo.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusSucceeded, stored.Status)
		assert.Equal(t, 2, calls)
	})

	t.Run("PermanentError_FailsAfterOneAttempt", func(t *testing.T) {
		repo := newMemoryJobRepository()
		calls := 0
		handlers := map[domain.JobKind]domain.Handler{
			domain.KindTrack: func(ctx context.Context, payload json.RawMessage) error {
				calls++
				return apperrors.Wrap(apperrors.ErrRejected, "422")
			},
		}
		logs := &bytes.Buffer{}
		uc, _ := newTestUseCase(repo, handlers, logs)

		job, err := uc.Enqueue(ctx, domain.KindTrack, map[string]any{"name": "x"})
		require.NoError(t, err)

		_, err = uc.ProcessQueue(ctx, "klaviyo-events")
		require.NoError(t, err)

		stored, err := repo.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusFailed, stored.Status)
		assert.Equal(t, 1, calls)
		assert.Equal(t, 1, strings.Count(logs.String(), `"event":"permanent_failure"`))
	})

	t.Run("UnknownKind_FailsPermanently", func(t *testing.T) {
		repo := newMemoryJobRepository()
		uc, _ := newTestUseCase(repo, map[domain.JobKind]domain.Handler{}, &bytes.Buffer{})

		job, err := uc.Enqueue(ctx, domain.KindDeleteProfile, map[string]any{"email": "a@b.com"})
		require.NoError(t, err)

		_, err = uc.ProcessQueue(ctx, "klaviyo-events")
		require.NoError(t, err)

		stored, err := repo.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusFailed, stored.Status)
	})

	t.Run("ClaimError", func(t *testing.T) {
		txManager := &MockTxManager{}
		txManager.On("WithTx", mock.Anything, mock.Anything).Return(errors.New("db down")).Once()

		uc := NewDispatchUseCase(testConfig, txManager, newMemoryJobRepository(), nil, testPolicies, nil, nil)

		processed, err := uc.ProcessQueue(ctx, "klaviyo-events")
		assert.EqualError(t, err, "db down")
		assert.Equal(t, 0, processed)
		txManager.AssertExpectations(t)
	})
}

func TestDispatchUseCase_ExhaustedJobFailsExactlyOnce(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryJobRepository()
	calls := 0
	handlers := map[domain.JobKind]domain.Handler{
		domain.KindTrack: func(ctx context.Context, payload json.RawMessage) error {
			calls++
			return apperrors.Wrap(apperrors.ErrUnavailable, "503 service unavailable")
		},
	}
	logs := &bytes.Buffer{}
	uc, clock := newTestUseCase(repo, handlers, logs)

	job, err := uc.Enqueue(ctx, domain.KindTrack, identifyPayload{Email: "a@b.com"})
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		_, err := uc.ProcessQueue(ctx, "klaviyo-events")
		require.NoError(t, err)
		clock.Advance(time.Hour)
	}

	stored, err := repo.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, stored.Status)
	assert.Equal(t, 3, stored.Attempts)
	assert.Equal(t, 3, calls)
	require.NotNil(t, stored.LastError)
	assert.Contains(t, *stored.LastError, "503")
	assert.Equal(t, 1, strings.Count(logs.String(), `"event":"permanent_failure"`))
	assert.Contains(t, logs.String(), `"subject":{"email":"a@b.com"}`)
}

func TestDispatchUseCase_ReclaimedJobOutcomeIsDiscarded(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryJobRepository()
	logs := &bytes.Buffer{}

	var (
		mu    sync.Mutex
		calls = map[string]int{}
		other *DispatchUseCase
		clock *fakeClock
	)
	handlers := map[domain.JobKind]domain.Handler{
		domain.KindSyncProduct: func(ctx context.Context, payload json.RawMessage) error {
			var p struct {
				ID string `json:"id"`
			}
			require.NoError(t, json.Unmarshal(payload, &p))

			mu.Lock()
			calls[p.ID]++
			first := p.ID == "A" && calls[p.ID] == 1
			mu.Unlock()

			if first {
				// The attempt outlives its lease and a second worker reclaims the job.
				clock.Advance(6 * time.Minute)
				processed, err := other.ProcessQueue(ctx, "klaviyo-catalog")
				require.NoError(t, err)
				assert.Equal(t, 2, processed)
				return apperrors.Wrap(apperrors.ErrRejected, "stale attempt")
			}
			return nil
		},
	}

	var uc *DispatchUseCase
	uc, clock = newTestUseCase(repo, handlers, logs)
	other = NewDispatchUseCase(testConfig, passthroughTx{}, repo, handlers, testPolicies, nil,
		slog.New(slog.NewJSONHandler(logs, nil)))
	other.now = clock.Now

	jobA, err := uc.Enqueue(ctx, domain.KindSyncProduct, map[string]any{"id": "A"})
	require.NoError(t, err)
	clock.Advance(time.Second)
	jobB, err := uc.Enqueue(ctx, domain.KindSyncProduct, map[string]any{"id": "B"})
	require.NoError(t, err)

	processed, err := uc.ProcessQueue(ctx, "klaviyo-catalog")
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	assert.Equal(t, map[string]int{"A": 2, "B": 1}, calls)

	storedA, err := repo.Get(ctx, jobA.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusSucceeded, storedA.Status)
	assert.Equal(t, 2, storedA.Attempts)

	storedB, err := repo.Get(ctx, jobB.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusSucceeded, storedB.Status)
	assert.Equal(t, 1, storedB.Attempts)

	assert.Equal(t, 0, strings.Count(logs.String(), `"event":"permanent_failure"`))
	assert.Contains(t, logs.String(), "job lease lost")
}

func TestDispatchUseCase_ExpiredFinalAttemptIsNotRunAgain(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryJobRepository()
	calls := 0
	handlers := map[domain.JobKind]domain.Handler{
		domain.KindTrack: func(ctx context.Context, payload json.RawMessage) error {
			calls++
			return nil
		},
	}
	logs := &bytes.Buffer{}
	uc, clock := newTestUseCase(repo, handlers, logs)

	job, err := uc.Enqueue(ctx, domain.KindTrack, identifyPayload{Email: "a@b.com"})
	require.NoError(t, err)

	// A worker crashed during the last allowed attempt.
	stored, err := repo.Get(ctx, job.ID)
	require.NoError(t, err)
	stored.Attempts = 2
	require.NoError(t, stored.MarkRunning(clock.Now(), time.Minute))
	require.NoError(t, repo.Update(ctx, stored))

	clock.Advance(2 * time.Minute)
	processed, err := uc.ProcessQueue(ctx, "klaviyo-events")
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	assert.Equal(t, 0, calls)

	stored, err = repo.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, stored.Status)
	assert.Equal(t, 3, stored.Attempts)
	require.NotNil(t, stored.LastError)
	assert.Contains(t, *stored.LastError, "lease expired")
	assert.Equal(t, 1, strings.Count(logs.String(), `"event":"permanent_failure"`))

	processed, err = uc.ProcessQueue(ctx, "klaviyo-events")
	require.NoError(t, err)
	assert.Equal(t, 0, processed)
}

func TestDispatchUseCase_HandlerTimeout(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryJobRepository()
	handlers := map[domain.JobKind]domain.Handler{
		domain.KindTrack: func(ctx context.Context, payload json.RawMessage) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}
	policies := domain.PolicySet{domain.KindTrack: {MaxAttempts: 2, Timeout: 10 * time.Millisecond}}
	cfg := testConfig
	cfg.BatchSize = 1
	uc := NewDispatchUseCase(cfg, passthroughTx{}, repo, handlers, policies, nil, nil)

	job, err := uc.Enqueue(ctx, domain.KindTrack, map[string]any{})
	require.NoError(t, err)

	_, err = uc.ProcessQueue(ctx, "klaviyo-events")
	require.NoError(t, err)

	stored, err := repo.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusRetrying, stored.Status)
}

func TestDispatchUseCase_Stats(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryJobRepository()
	uc, _ := newTestUseCase(repo, nil, &bytes.Buffer{})

	_, err := uc.Enqueue(ctx, domain.KindTrack, map[string]any{})
	require.NoError(t, err)
	_, err = uc.Enqueue(ctx, domain.KindSyncProduct, map[string]any{})
	require.NoError(t, err)

	stats, err := uc.Stats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, "klaviyo-events", stats[0].Queue)
	assert.Equal(t, int64(1), stats[0].Counts[domain.JobStatusQueued])
	assert.Equal(t, int64(0), stats[0].Counts[domain.JobStatusFailed])
	assert.Len(t, stats[0].Counts, len(domain.Statuses))
	assert.Equal(t, "klaviyo-catalog", stats[1].Queue)
	assert.Equal(t, int64(1), stats[1].Counts[domain.JobStatusQueued])
}

func TestDispatchUseCase_Requeue(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryJobRepository()
	handlers := map[domain.JobKind]domain.Handler{
		domain.KindTrack: func(ctx context.Context, payload json.RawMessage) error {
			return apperrors.ErrRejected
		},
	}
	uc, _ := newTestUseCase(repo, handlers, &bytes.Buffer{})

	job, err := uc.Enqueue(ctx, domain.KindTrack, map[string]any{})
	require.NoError(t, err)

	_, err = uc.Requeue(ctx, job.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = uc.ProcessQueue(ctx, "klaviyo-events")
	require.NoError(t, err)

	failed, err := uc.ListFailed(ctx, "klaviyo-events", 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)

	requeued, err := uc.Requeue(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusQueued, requeued.Status)
	assert.Equal(t, 0, requeued.Attempts)

	_, err = uc.Requeue(ctx, uuid.Must(uuid.NewV7()))
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestDispatchUseCase_Start(t *testing.T) {
	defer goleak.VerifyNone(t)

	repo := newMemoryJobRepository()
	done := make(chan struct{}, 2)
	handlers := map[domain.JobKind]domain.Handler{
		domain.KindTrack: func(ctx context.Context, payload json.RawMessage) error {
			done <- struct{}{}
			return nil
		},
		domain.KindSyncProduct: func(ctx context.Context, payload json.RawMessage) error {
			done <- struct{}{}
			return nil
		},
	}
	uc := NewDispatchUseCase(testConfig, passthroughTx{}, repo, handlers, testPolicies, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())

	_, err := uc.Enqueue(ctx, domain.KindTrack, map[string]any{})
	require.NoError(t, err)
	_, err = uc.Enqueue(ctx, domain.KindSyncProduct, map[string]any{})
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		errCh <- uc.Start(ctx)
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("job was not processed")
		}
	}

	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("workers did not stop")
	}
}
