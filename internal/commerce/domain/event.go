package domain

import (
	"strings"
	"time"
)

// Event is a behavioral metric occurrence, optionally tied to a Customer.
type Event struct {
	Name       string         `json:"name"`
	Properties map[string]any `json:"properties,omitempty"`
	Customer   *Customer      `json:"customer,omitempty"`
	Time       *time.Time     `json:"time,omitempty"`
	UniqueID   string         `json:"unique_id,omitempty"`
}

// NewEvent builds an Event stamped with the current time.
func NewEvent(name string, properties map[string]any, customer *Customer) (Event, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Event{}, ErrEventNameRequired
	}

	event := Event{Name: name, Properties: cloneMap(properties)}

	if customer != nil {
		c, err := NewCustomer(*customer)
		if err != nil {
			return Event{}, err
		}
		event.Customer = &c
	}

	now := time.Now().UTC()
	event.Time = &now

	return event, nil
}

// WithUniqueID returns a copy of e carrying the remote dedup key.
func (e Event) WithUniqueID(uniqueID string) Event {
	e.UniqueID = strings.TrimSpace(uniqueID)
	return e
}

// WithTime returns a copy of e occurring at t.
func (e Event) WithTime(t time.Time) Event {
	t = t.UTC()
	e.Time = &t
	return e
}

// RequireUniqueID reports ErrUniqueIDRequired when e has no dedup key.
func (e Event) RequireUniqueID() error {
	if strings.TrimSpace(e.UniqueID) == "" {
		return ErrUniqueIDRequired
	}
	return nil
}

// Payload returns the event request body. An event without a time occurs at now.
func (e Event) Payload(now time.Time) Document {
	occurred := now
	if e.Time != nil {
		occurred = *e.Time
	}

	properties := cloneMap(e.Properties)
	if properties == nil {
		properties = map[string]any{}
	}

	attrs := map[string]any{
		"properties": properties,
		"time":       occurred.UTC().Format(time.RFC3339),
		"metric": related(Resource{
			Type:       "metric",
			Attributes: map[string]any{"name": e.Name},
		}),
	}
	if e.Customer != nil {
		attrs["profile"] = e.Customer.profileRelationship()
	}
	if e.UniqueID != "" {
		attrs["unique_id"] = e.UniqueID
	}

	return Document{Data: Resource{Type: "event", Attributes: attrs}}
}

// IdentifyingFields returns the fields that locate this event in logs.
func (e Event) IdentifyingFields() map[string]any {
	fields := map[string]any{"event_name": e.Name}
	if e.Customer != nil {
		fields["email"] = e.Customer.Email
	}
	if e.UniqueID != "" {
		fields["unique_id"] = e.UniqueID
	}
	return fields
}
