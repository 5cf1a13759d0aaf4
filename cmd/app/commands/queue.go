package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	dispatchDomain "github.com/allisson/klaviyo-relay/internal/dispatch/domain"
	dispatchUseCase "github.com/allisson/klaviyo-relay/internal/dispatch/usecase"
)

// RunQueueStats prints the depth of every dispatch queue per job status.
func RunQueueStats(
	ctx context.Context,
	dispatcher dispatchUseCase.UseCase,
	logger *slog.Logger,
	out io.Writer,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	stats, err := dispatcher.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read queue stats: %w", err)
	}

	logger.Debug("queue stats read", slog.Int("queues", len(stats)))

	if format == "json" {
		return writeJSON(out, map[string]any{"queues": stats})
	}

	for _, s := range stats {
		if _, err := fmt.Fprintf(out, "%s\n", s.Queue); err != nil {
			return err
		}
		for _, status := range dispatchDomain.Statuses {
			if _, err := fmt.Fprintf(out, "  %-10s %d\n", status, s.Counts[status]); err != nil {
				return err
			}
		}
	}
	return nil
}

// RunListFailedJobs prints the permanently failed jobs of queue, oldest first.
func RunListFailedJobs(
	ctx context.Context,
	dispatcher dispatchUseCase.UseCase,
	logger *slog.Logger,
	out io.Writer,
	queue string,
	limit int,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}
	if queue == "" {
		return fmt.Errorf("queue is required")
	}
	if limit <= 0 {
		return fmt.Errorf("limit must be a positive number, got: %d", limit)
	}

	jobs, err := dispatcher.ListFailed(ctx, queue, limit)
	if err != nil {
		return fmt.Errorf("failed to list failed jobs: %w", err)
	}

	sort.SliceStable(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})

	logger.Debug("failed jobs listed", slog.String("queue", queue), slog.Int("count", len(jobs)))

	if format == "json" {
		rows := make([]map[string]any, 0, len(jobs))
		for _, job := range jobs {
			rows = append(rows, failedJobRow(job))
		}
		return writeJSON(out, rows)
	}

	if len(jobs) == 0 {
		_, err := fmt.Fprintf(out, "No failed jobs in %s\n", queue)
		return err
	}
	for _, job := range jobs {
		if _, err := fmt.Fprintf(out, "%s  %-20s attempts=%d  %s\n",
			job.ID, job.Kind, job.Attempts, lastError(job)); err != nil {
			return err
		}
	}
	return nil
}

// RunRequeueJob returns a permanently failed job to its queue with a fresh attempt budget.
func RunRequeueJob(
	ctx context.Context,
	dispatcher dispatchUseCase.UseCase,
	logger *slog.Logger,
	out io.Writer,
	jobID string,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	id, err := uuid.Parse(jobID)
	if err != nil {
		return fmt.Errorf("invalid job id %q: %w", jobID, err)
	}

	job, err := dispatcher.Requeue(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to requeue job: %w", err)
	}

	logger.Info("job requeued",
		slog.String("job_id", job.ID.String()),
		slog.String("kind", string(job.Kind)),
		slog.String("queue", job.Queue),
	)

	if format == "json" {
		return writeJSON(out, map[string]any{
			"id":     job.ID.String(),
			"kind":   job.Kind,
			"queue":  job.Queue,
			"status": job.Status,
		})
	}

	_, err = fmt.Fprintf(out, "Job %s requeued on %s\n", job.ID, job.Queue)
	return err
}

func failedJobRow(job *dispatchDomain.Job) map[string]any {
	return map[string]any{
		"id":         job.ID.String(),
		"kind":       job.Kind,
		"queue":      job.Queue,
		"attempts":   job.Attempts,
		"last_error": lastError(job),
		"subject":    job.Subject,
		"created_at": job.CreatedAt,
	}
}

func lastError(job *dispatchDomain.Job) string {
	if job.LastError == nil {
		return ""
	}
	return *job.LastError
}
