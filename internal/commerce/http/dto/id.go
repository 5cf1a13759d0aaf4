package dto

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

var errInvalidID = errors.New("must be a string or an integer")

// ID is an identifier sent by the storefront either as a JSON string or as a JSON integer.
// Both forms decode to the same trimmed string, so 123 and "123" name the same record.
type ID string

// UnmarshalJSON accepts a string, an integer or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	switch {
	case bytes.Equal(data, []byte("null")):
		*id = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errInvalidID
	}
	if strings.ContainsAny(n.String(), ".eE") {
		return errInvalidID
	}
	*id = ID(n.String())
	return nil
}

// String returns the identifier as sent, trimmed.
func (id ID) String() string {
	return string(id)
}
