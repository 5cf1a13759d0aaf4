// Package domain defines the commerce facts relayed to the marketing API and their wire shapes.
package domain

import (
	"github.com/allisson/klaviyo-relay/internal/errors"
)

// Commerce fact error definitions.
var (
	// ErrEmailRequired indicates a customer was built without an email address.
	ErrEmailRequired = errors.Wrap(errors.ErrInvalidInput, "customer email is required")

	// ErrEventNameRequired indicates an event was built without a metric name.
	ErrEventNameRequired = errors.Wrap(errors.ErrInvalidInput, "event name is required")

	// ErrUniqueIDRequired indicates a track-once event is missing its unique id.
	ErrUniqueIDRequired = errors.Wrap(errors.ErrInvalidInput, "event unique id is required for track once")

	// ErrProductIDRequired indicates a product was built without an identifier.
	ErrProductIDRequired = errors.Wrap(errors.ErrInvalidInput, "product id is required")

	// ErrOrderIDRequired indicates an order was built without an identifier.
	ErrOrderIDRequired = errors.Wrap(errors.ErrInvalidInput, "order id is required")

	// ErrInvalidAmount indicates a monetary field could not be parsed.
	ErrInvalidAmount = errors.Wrap(errors.ErrInvalidInput, "invalid monetary amount")

	// ErrListIDRequired indicates a list membership change without a list id.
	ErrListIDRequired = errors.Wrap(errors.ErrInvalidInput, "list id is required")

	// ErrEmptyCatalog indicates a catalog sync without products.
	ErrEmptyCatalog = errors.Wrap(errors.ErrInvalidInput, "at least one product is required")
)
