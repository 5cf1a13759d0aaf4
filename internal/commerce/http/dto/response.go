package dto

import (
	dispatchDomain "github.com/allisson/klaviyo-relay/internal/dispatch/domain"
)

// StatusQueued is the acceptance status of every ingress call.
const StatusQueued = "queued"

// AcceptedResponse acknowledges that work was queued. Remote outcomes are not reported.
type AcceptedResponse struct {
	Status  string   `json:"status"`
	Message string   `json:"message"`
	JobIDs  []string `json:"job_ids"`
}

// MapJobsToAcceptedResponse builds the acceptance body for the queued jobs.
func MapJobsToAcceptedResponse(message string, jobs ...*dispatchDomain.Job) AcceptedResponse {
	ids := make([]string, 0, len(jobs))
	for _, job := range jobs {
		if job != nil {
			ids = append(ids, job.ID.String())
		}
	}
	return AcceptedResponse{Status: StatusQueued, Message: message, JobIDs: ids}
}
