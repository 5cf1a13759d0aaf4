package klaviyo

import (
	"fmt"
	"net/http"
	"strings"

	apperrors "github.com/allisson/klaviyo-relay/internal/errors"
)

// Klaviyo error definitions.
var (
	// ErrRemoteUnavailable indicates a 5xx response or a transport fault that outlived the retry budget.
	ErrRemoteUnavailable = apperrors.Wrap(apperrors.ErrUnavailable, "klaviyo api unavailable")

	// ErrRemoteRejected indicates a 4xx response. Repeating the request cannot succeed.
	ErrRemoteRejected = apperrors.Wrap(apperrors.ErrRejected, "klaviyo api rejected request")
)

const maxErrorBody = 2048

// APIError is a non-2xx response from the Klaviyo API.
type APIError struct {
	Operation  string
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func newAPIError(operation, method, path string, statusCode int, body []byte) *APIError {
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody] + "..."
	}
	return &APIError{
		Operation:  operation,
		Method:     method,
		Path:       path,
		StatusCode: statusCode,
		Body:       text,
	}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("klaviyo %s: %s %s returned %d: %s", e.Operation, e.Method, e.Path, e.StatusCode, e.Body)
}

// Unwrap exposes the classification of the response.
func (e *APIError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Retryable() {
		errs = append(errs, ErrRemoteUnavailable)
	} else {
		errs = append(errs, ErrRemoteRejected)
	}
	switch e.StatusCode {
	case http.StatusConflict:
		errs = append(errs, apperrors.ErrConflict)
	case http.StatusNotFound:
		errs = append(errs, apperrors.ErrNotFound)
	}
	return errs
}

// Retryable reports whether the transport may repeat the request.
func (e *APIError) Retryable() bool {
	return e.StatusCode >= http.StatusInternalServerError
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return apperrors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsConflict reports whether err is a 409 response.
func IsConflict(err error) bool {
	var apiErr *APIError
	return apperrors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict
}
