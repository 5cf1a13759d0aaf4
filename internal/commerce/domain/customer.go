package domain

import (
	"strings"
)

// Customer identifies a shopper. Email is the merge key for every profile operation.
type Customer struct {
	Email        string         `json:"email"`
	FirstName    string         `json:"first_name,omitempty"`
	LastName     string         `json:"last_name,omitempty"`
	PhoneNumber  string         `json:"phone_number,omitempty"`
	Title        string         `json:"title,omitempty"`
	Organization string         `json:"organization,omitempty"`
	Properties   map[string]any `json:"properties,omitempty"`
}

// NewCustomer returns a normalized copy of c. The email is trimmed and lowercased.
func NewCustomer(c Customer) (Customer, error) {
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	if c.Email == "" {
		return Customer{}, ErrEmailRequired
	}

	c.FirstName = strings.TrimSpace(c.FirstName)
	c.LastName = strings.TrimSpace(c.LastName)
	c.PhoneNumber = strings.TrimSpace(c.PhoneNumber)
	c.Title = strings.TrimSpace(c.Title)
	c.Organization = strings.TrimSpace(c.Organization)
	c.Properties = cloneMap(c.Properties)

	return c, nil
}

// CustomerFromMap builds a Customer from a raw property bag.
func CustomerFromMap(data map[string]any) (Customer, error) {
	return NewCustomer(Customer{
		Email:        stringValue(data["email"]),
		FirstName:    stringValue(data["first_name"]),
		LastName:     stringValue(data["last_name"]),
		PhoneNumber:  stringValue(data["phone_number"]),
		Title:        stringValue(data["title"]),
		Organization: stringValue(data["organization"]),
		Properties:   mapValue(data["properties"]),
	})
}

// ProfileAttributes returns the profile attributes sent to the marketing API.
// Empty optional fields are omitted.
func (c Customer) ProfileAttributes() map[string]any {
	attrs := map[string]any{"email": c.Email}

	optional := map[string]string{
		"first_name":   c.FirstName,
		"last_name":    c.LastName,
		"phone_number": c.PhoneNumber,
		"title":        c.Title,
		"organization": c.Organization,
	}
	for key, value := range optional {
		if value != "" {
			attrs[key] = value
		}
	}

	if len(c.Properties) > 0 {
		attrs["properties"] = cloneMap(c.Properties)
	}

	return attrs
}

// ProfileDocument returns the request body for a profile upsert.
func (c Customer) ProfileDocument() Document {
	return Document{Data: Resource{Type: "profile", Attributes: c.ProfileAttributes()}}
}

// profileRelationship returns the inline profile reference used by events.
func (c Customer) profileRelationship() map[string]any {
	return related(Resource{Type: "profile", Attributes: c.ProfileAttributes()})
}

// IdentifyingFields returns the fields that identify the customer in logs.
func (c Customer) IdentifyingFields() map[string]any {
	return map[string]any{"email": c.Email}
}
