package events

import (
	"time"

	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/google/uuid"
)

// Event represents a single raw usage event as supplied by the event source.
type Event struct {
	// ID is the transaction id of the event and doubles as the dedup key
	// at the store level; the pricing core itself never dedups.
	ID string `json:"id" ch:"id"`

	// TenantID scopes the event to a tenant
	TenantID string `json:"tenant_id" ch:"tenant_id"`

	// ExternalCustomerID is the identifier of the customer in the caller's system
	ExternalCustomerID string `json:"external_customer_id" ch:"external_customer_id"`

	// EventName is the metric code the event reports against and is the
	// primary matching field for aggregation
	EventName string `json:"event_name" ch:"event_name"`

	// Timestamp is the UTC occurrence time of the event
	Timestamp time.Time `json:"timestamp" ch:"timestamp,timezone('UTC')"`

	// Properties is the open property bag carried by the event
	Properties map[string]interface{} `json:"properties" ch:"properties"`
}

// NewEvent creates a new event with defaults
func NewEvent(
	eventID, tenantID, externalCustomerID, eventName string,
	timestamp time.Time,
	properties map[string]interface{},
) *Event {
	if eventID == "" {
		eventID = uuid.New().String()
	}

	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	} else {
		timestamp = timestamp.UTC()
	}

	return &Event{
		ID:                 eventID,
		TenantID:           tenantID,
		ExternalCustomerID: externalCustomerID,
		EventName:          eventName,
		Timestamp:          timestamp,
		Properties:         properties,
	}
}

// Validate validates the event
func (e *Event) Validate() error {
	if e.EventName == "" {
		return ierr.NewError("event_name is required").
			WithHint("Event name is required").
			Mark(ierr.ErrValidation)
	}
	if e.ExternalCustomerID == "" {
		return ierr.NewError("external_customer_id is required").
			WithHint("External customer ID is required").
			Mark(ierr.ErrValidation)
	}
	return nil
}
