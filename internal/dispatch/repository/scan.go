// Package repository provides SQL persistence for dispatch jobs.
package repository

import (
	"encoding/json"

	"github.com/allisson/klaviyo-relay/internal/dispatch/domain"
)

const jobColumns = `id, kind, queue, payload, subject, status, attempts, max_attempts, last_error,
			  available_at, locked_until, finished_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var (
		job     domain.Job
		payload []byte
		subject []byte
	)

	err := row.Scan(&job.ID, &job.Kind, &job.Queue, &payload, &subject, &job.Status, &job.Attempts,
		&job.MaxAttempts, &job.LastError, &job.AvailableAt, &job.LockedUntil, &job.FinishedAt,
		&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, err
	}

	job.Payload = json.RawMessage(payload)
	if len(subject) > 0 {
		if err := json.Unmarshal(subject, &job.Subject); err != nil {
			return nil, err
		}
	}
	return &job, nil
}

func marshalSubject(subject map[string]any) ([]byte, error) {
	if subject == nil {
		subject = map[string]any{}
	}
	return json.Marshal(subject)
}
