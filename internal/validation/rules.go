// Package validation holds the field rules shared by the ingress request schemas.
package validation

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"

	validation "github.com/jellydator/validation"
	"github.com/shopspring/decimal"

	apperrors "github.com/allisson/klaviyo-relay/internal/errors"
)

var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	currencyRegex = regexp.MustCompile(`^[A-Za-z]{3}$`)
)

// WrapValidationError wraps validation errors as ErrInvalidInput.
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// Email validates email format.
var Email = validation.NewStringRuleWithError(
	func(s string) bool {
		return emailRegex.MatchString(strings.TrimSpace(s))
	},
	validation.NewError("validation_email_format", "must be a valid email address"),
)

// NotBlank validates that a string is not empty after trimming whitespace.
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)

// CurrencyCode validates a three letter ISO 4217 code.
var CurrencyCode = validation.NewStringRuleWithError(
	func(s string) bool {
		return currencyRegex.MatchString(s)
	},
	validation.NewError("validation_currency_code", "must be a three letter currency code"),
)

// URL validates an absolute http or https URL. Empty strings are left to Required.
var URL = validation.NewStringRuleWithError(
	func(s string) bool {
		u, err := url.ParseRequestURI(strings.TrimSpace(s))
		if err != nil {
			return false
		}
		return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
	},
	validation.NewError("validation_url", "must be a valid URL"),
)

// Amount validates a non-negative monetary amount given as a JSON number or a numeric string.
// Nil and empty values are left to Required.
var Amount = validation.By(func(value any) error {
	var raw string
	switch v := value.(type) {
	case nil:
		return nil
	case *json.Number:
		if v == nil {
			return nil
		}
		raw = v.String()
	case json.Number:
		raw = v.String()
	case string:
		raw = strings.TrimSpace(v)
	case float64:
		if v < 0 {
			return errNegativeAmount
		}
		return nil
	default:
		return validation.NewError("validation_amount_type", "must be a number")
	}

	if raw == "" {
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return validation.NewError("validation_amount", "must be a valid amount")
	}
	if d.IsNegative() {
		return errNegativeAmount
	}
	return nil
})

var errNegativeAmount = validation.NewError("validation_amount_negative", "must not be negative")
