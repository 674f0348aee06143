package meter

import (
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/types"
)

// Meter is a billable metric: a named, aggregatable measurement that charges
// are priced against.
type Meter struct {
	// ID is the unique identifier for the meter
	ID string `db:"id" json:"id"`

	// Code is the stable lookup key charges reference
	Code string `db:"code" json:"code"`

	// EventName is the event this meter tracks. Multiple meters can track the
	// same event with different filters and aggregation.
	EventName string `db:"event_name" json:"event_name"`

	// Name is the display name of the meter
	Name string `db:"name" json:"name"`

	// Aggregation defines how matching events collapse into a quantity
	Aggregation Aggregation `db:"aggregation" json:"aggregation"`

	// Filters restrict which events the meter sees, applied to the property
	// bag before aggregation
	Filters []Filter `db:"filters" json:"filters"`

	types.BaseModel
}

type Filter struct {
	// Key is the property bag key the filter matches on
	Key string `json:"key"`

	// Values are the accepted values for the key
	Values []string `json:"values"`
}

type Aggregation struct {
	// Type is the aggregation applied to matching events
	Type types.AggregationType `json:"type"`

	// Field is the property bag key the aggregation reads, for types that
	// aggregate over a value rather than a count
	Field string `json:"field,omitempty"`

	// Expression is the per-event arithmetic expression for CUSTOM aggregation
	Expression string `json:"expression,omitempty"`
}

// NewMeter creates a meter with defaults
func NewMeter(code, name, tenantID string) *Meter {
	return &Meter{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_METER),
		Code:      code,
		Name:      name,
		Filters:   []Filter{},
		BaseModel: types.GetDefaultBaseModel(tenantID),
	}
}

// FiltersAsMap converts the meter's filters to the property filter shape the
// aggregation engine consumes
func (m *Meter) FiltersAsMap() map[string][]string {
	if len(m.Filters) == 0 {
		return nil
	}
	out := make(map[string][]string, len(m.Filters))
	for _, f := range m.Filters {
		out[f.Key] = f.Values
	}
	return out
}

// Validate validates the meter configuration
func (m *Meter) Validate() error {
	if m.Code == "" {
		return ierr.NewError("code is required").
			WithHint("Meter code is required").
			Mark(ierr.ErrValidation)
	}
	if m.EventName == "" {
		return ierr.NewError("event_name is required").
			WithHint("Meter event name is required").
			Mark(ierr.ErrValidation)
	}
	if !m.Aggregation.Type.Validate() {
		return ierr.NewErrorf("invalid aggregation type: %s", m.Aggregation.Type).
			WithHint("Unknown aggregation type").
			Mark(ierr.ErrValidation)
	}
	if m.Aggregation.Type.RequiresField() && m.Aggregation.Field == "" {
		return ierr.NewErrorf("field is required for aggregation type: %s", m.Aggregation.Type).
			WithHint("Aggregation field is required").
			Mark(ierr.ErrValidation)
	}
	if m.Aggregation.Type == types.AggregationCustom && m.Aggregation.Expression == "" {
		return ierr.NewError("expression is required for CUSTOM aggregation").
			WithHint("Custom aggregation expression is required").
			Mark(ierr.ErrValidation)
	}
	for _, filter := range m.Filters {
		if filter.Key == "" {
			return ierr.NewError("filter key cannot be empty").
				WithHint("Meter filter key cannot be empty").
				Mark(ierr.ErrValidation)
		}
		if len(filter.Values) == 0 {
			return ierr.NewErrorf("filter values cannot be empty for key: %s", filter.Key).
				WithHint("Meter filter values cannot be empty").
				Mark(ierr.ErrValidation)
		}
	}
	return nil
}
