// Package errors defines the sentinel errors shared by every layer of the relay.
//
// Use cases wrap these sentinels; HTTP handlers map them to status codes and
// the dispatch workers use IsPermanent to decide between retry and failure.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the job, profile or catalog item does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict means the record is not in a state that allows the operation.
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput means the caller sent data that fails validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized means the ingress key was missing or wrong.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrUnavailable means a downstream call failed transiently and may be retried.
	ErrUnavailable = errors.New("unavailable")

	// ErrRejected means Klaviyo refused the request. Repeating it cannot succeed.
	ErrRejected = errors.New("rejected")
)

// New returns a plain error carrying message.
func New(message string) error {
	return errors.New(message)
}

// Wrap prefixes err with message, keeping err in the chain. A nil err stays nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is mirrors errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As mirrors errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// IsPermanent reports whether err can never succeed by repeating the same request.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrRejected)
}
