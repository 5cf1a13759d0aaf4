package domain

import (
	"fmt"

	"github.com/allisson/klaviyo-relay/internal/errors"
)

// Dispatch error definitions.
var (
	// ErrJobNotFound indicates the requested job does not exist.
	ErrJobNotFound = errors.Wrap(errors.ErrNotFound, "job not found")

	// ErrInvalidTransition indicates a status change the job lifecycle does not allow.
	ErrInvalidTransition = errors.Wrap(errors.ErrConflict, "invalid job status transition")

	// ErrRetryBudgetExhausted indicates a retry was requested after the last allowed attempt.
	ErrRetryBudgetExhausted = errors.Wrap(errors.ErrConflict, "job retry budget exhausted")

	// ErrLeaseLost indicates the job was reclaimed by another worker after its lease expired.
	ErrLeaseLost = errors.Wrap(errors.ErrConflict, "job lease lost")

	// ErrLeaseExpired is recorded on a job whose final attempt outlived its lease.
	ErrLeaseExpired = errors.Wrap(errors.ErrUnavailable, "job lease expired during final attempt")

	// ErrUnknownJobKind indicates no handler is registered for a job kind.
	ErrUnknownJobKind = errors.Wrap(errors.ErrInvalidInput, "unknown job kind")
)

func transitionError(from, to JobStatus) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
