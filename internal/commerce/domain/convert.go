package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// stringValue renders scalar values from a decoded JSON bag as strings.
// Numeric identifiers such as 123 become "123".
func stringValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return fmt.Sprint(val)
	}
}

// decimalValue parses a monetary value from a decoded JSON bag.
func decimalValue(v any) (decimal.Decimal, error) {
	switch val := v.(type) {
	case decimal.Decimal:
		return val, nil
	case float64:
		return decimal.NewFromFloat(val), nil
	case int:
		return decimal.NewFromInt(int64(val)), nil
	case int64:
		return decimal.NewFromInt(val), nil
	case json.Number:
		return decimal.NewFromString(val.String())
	case string:
		return decimal.NewFromString(strings.TrimSpace(val))
	default:
		return decimal.Zero, fmt.Errorf("unsupported amount type %T", v)
	}
}

// optionalDecimal parses key from data when present.
func optionalDecimal(data map[string]any, key string) (decimal.NullDecimal, error) {
	raw, ok := data[key]
	if !ok || raw == nil {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimalValue(raw)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("%w: %s: %v", ErrInvalidAmount, key, err)
	}
	return decimal.NewNullDecimal(d), nil
}

// intValue reads an integer count from a decoded JSON bag.
func intValue(v any) int {
	switch val := v.(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		return int(val)
	case json.Number:
		n, _ := val.Int64()
		return int(n)
	case string:
		n, _ := strconv.Atoi(strings.TrimSpace(val))
		return n
	default:
		return 0
	}
}

// mapValue returns v as a property bag when it is one.
func mapValue(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// stringSlice reads a list of strings from a decoded JSON bag.
func stringSlice(v any) []string {
	switch val := v.(type) {
	case []string:
		return cloneStrings(val)
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s := stringValue(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// float rounds a decimal to a JSON number for the wire.
func float(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}
