// Package dto provides the response bodies of the queue inspection endpoints.
package dto

import (
	"time"

	"github.com/allisson/klaviyo-relay/internal/dispatch/domain"
	dispatchUseCase "github.com/allisson/klaviyo-relay/internal/dispatch/usecase"
)

// JobResponse represents a job in API responses. The payload is left out.
type JobResponse struct {
	ID          string         `json:"id"`
	Kind        string         `json:"kind"`
	Queue       string         `json:"queue"`
	Subject     map[string]any `json:"subject,omitempty"`
	Status      string         `json:"status"`
	Attempts    int            `json:"attempts"`
	MaxAttempts int            `json:"max_attempts"`
	LastError   *string        `json:"last_error,omitempty"`
	AvailableAt time.Time      `json:"available_at"`
	FinishedAt  *time.Time     `json:"finished_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// MapJobToResponse converts a job to its API response.
func MapJobToResponse(job *domain.Job) JobResponse {
	return JobResponse{
		ID:          job.ID.String(),
		Kind:        string(job.Kind),
		Queue:       job.Queue,
		Subject:     job.Subject,
		Status:      string(job.Status),
		Attempts:    job.Attempts,
		MaxAttempts: job.MaxAttempts,
		LastError:   job.LastError,
		AvailableAt: job.AvailableAt,
		FinishedAt:  job.FinishedAt,
		CreatedAt:   job.CreatedAt,
		UpdatedAt:   job.UpdatedAt,
	}
}

// ListJobsResponse wraps a list of jobs.
type ListJobsResponse struct {
	Data []JobResponse `json:"data"`
}

// MapJobsToListResponse converts jobs to a list response. An empty list encodes as [].
func MapJobsToListResponse(jobs []*domain.Job) ListJobsResponse {
	data := make([]JobResponse, 0, len(jobs))
	for _, job := range jobs {
		data = append(data, MapJobToResponse(job))
	}
	return ListJobsResponse{Data: data}
}

// QueueStatsResponse is the depth of every served queue.
type QueueStatsResponse struct {
	Queues []dispatchUseCase.QueueStats `json:"queues"`
}
