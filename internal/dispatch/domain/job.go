// Package domain defines the unit of work executed by the dispatch queue and its lifecycle.
package domain

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JobKind names the action a job executes.
type JobKind string

const (
	KindIdentify          JobKind = "identify"
	KindTrack             JobKind = "track"
	KindTrackOnce         JobKind = "track_once"
	KindSyncProduct       JobKind = "sync_product"
	KindSyncCatalog       JobKind = "sync_catalog"
	KindDeleteCatalogItem JobKind = "delete_catalog_item"
	KindDeleteProfile     JobKind = "delete_profile"
	KindAddToList         JobKind = "add_to_list"
	KindRemoveFromList    JobKind = "remove_from_list"
)

// Kinds lists every job kind.
var Kinds = []JobKind{
	KindIdentify,
	KindTrack,
	KindTrackOnce,
	KindSyncProduct,
	KindSyncCatalog,
	KindDeleteCatalogItem,
	KindDeleteProfile,
	KindAddToList,
	KindRemoveFromList,
}

// IsCatalog reports whether the kind belongs on the catalog queue.
func (k JobKind) IsCatalog() bool {
	switch k {
	case KindSyncProduct, KindSyncCatalog, KindDeleteCatalogItem:
		return true
	default:
		return false
	}
}

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusRetrying  JobStatus = "retrying"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// Statuses lists every job status.
var Statuses = []JobStatus{
	JobStatusQueued,
	JobStatusRunning,
	JobStatusRetrying,
	JobStatusSucceeded,
	JobStatusFailed,
}

// Handler executes the action behind a job kind with the job's payload.
type Handler func(ctx context.Context, payload json.RawMessage) error

// Identifiable is implemented by payloads that can name the fact they carry.
type Identifiable interface {
	IdentifyingFields() map[string]any
}

// Job is one independently retried unit of work.
//
// Transitions: queued -> running -> {succeeded | retrying | failed}, retrying -> running
// once AvailableAt has passed, and failed -> queued only through a manual Requeue.
type Job struct {
	ID          uuid.UUID
	Kind        JobKind
	Queue       string
	Payload     json.RawMessage
	Subject     map[string]any
	Status      JobStatus
	Attempts    int
	MaxAttempts int
	LastError   *string
	AvailableAt time.Time
	LockedUntil *time.Time
	FinishedAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewJob creates a queued job that is immediately available.
func NewJob(kind JobKind, queue string, payload json.RawMessage, subject map[string]any, maxAttempts int, now time.Time) *Job {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Job{
		ID:          uuid.Must(uuid.NewV7()),
		Kind:        kind,
		Queue:       queue,
		Payload:     payload,
		Subject:     subject,
		Status:      JobStatusQueued,
		MaxAttempts: maxAttempts,
		AvailableAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// IsTerminal reports whether no automatic action will touch the job again.
func (j *Job) IsTerminal() bool {
	return j.Status == JobStatusSucceeded || j.Status == JobStatusFailed
}

// CanRetry reports whether the attempt budget allows another run.
func (j *Job) CanRetry() bool {
	return j.Attempts < j.MaxAttempts
}

// MarkRunning claims the job for one attempt until now+lease.
// A running job whose lease expired may be claimed again, unless that attempt was its
// last one: then ErrRetryBudgetExhausted is returned and the job is left untouched.
func (j *Job) MarkRunning(now time.Time, lease time.Duration) error {
	switch j.Status {
	case JobStatusQueued, JobStatusRetrying:
	case JobStatusRunning:
		if j.LockedUntil != nil && j.LockedUntil.After(now) {
			return transitionError(j.Status, JobStatusRunning)
		}
	default:
		return transitionError(j.Status, JobStatusRunning)
	}
	if !j.CanRetry() {
		return ErrRetryBudgetExhausted
	}

	// Stored lease timestamps have microsecond precision and are compared on release.
	lockedUntil := now.Add(lease).Truncate(time.Microsecond)
	j.Status = JobStatusRunning
	j.Attempts++
	j.LockedUntil = &lockedUntil
	j.UpdatedAt = now
	return nil
}

// MarkSucceeded completes the job.
func (j *Job) MarkSucceeded(now time.Time) error {
	if j.Status != JobStatusRunning {
		return transitionError(j.Status, JobStatusSucceeded)
	}
	j.Status = JobStatusSucceeded
	j.LockedUntil = nil
	j.LastError = nil
	j.FinishedAt = &now
	j.UpdatedAt = now
	return nil
}

// MarkRetrying schedules another attempt after delay.
func (j *Job) MarkRetrying(now time.Time, delay time.Duration, cause string) error {
	if j.Status != JobStatusRunning {
		return transitionError(j.Status, JobStatusRetrying)
	}
	if !j.CanRetry() {
		return ErrRetryBudgetExhausted
	}
	j.Status = JobStatusRetrying
	j.LockedUntil = nil
	j.LastError = &cause
	j.AvailableAt = now.Add(delay)
	j.UpdatedAt = now
	return nil
}

// MarkFailed moves the job to the terminal failed state.
func (j *Job) MarkFailed(now time.Time, cause string) error {
	if j.Status != JobStatusRunning {
		return transitionError(j.Status, JobStatusFailed)
	}
	j.Status = JobStatusFailed
	j.LockedUntil = nil
	j.LastError = &cause
	j.FinishedAt = &now
	j.UpdatedAt = now
	return nil
}

// Requeue returns a failed job to the queue with a fresh attempt budget.
func (j *Job) Requeue(now time.Time) error {
	if j.Status != JobStatusFailed {
		return transitionError(j.Status, JobStatusQueued)
	}
	j.Status = JobStatusQueued
	j.Attempts = 0
	j.FinishedAt = nil
	j.AvailableAt = now
	j.UpdatedAt = now
	return nil
}
