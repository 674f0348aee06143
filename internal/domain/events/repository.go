package events

import (
	"context"
	"time"

	"github.com/billforge/billforge/internal/types"
	"github.com/shopspring/decimal"
)

// Repository is the usage aggregation backend contract. The row-oriented and
// columnar implementations must produce identical results for identical
// inputs; the columnar backend exists purely for throughput.
type Repository interface {
	InsertEvent(ctx context.Context, event *Event) error
	BulkInsertEvents(ctx context.Context, events []*Event) error

	// GetUsage computes a single (quantity, events_count) reduction for the
	// given window. All aggregation types are supported; WEIGHTED_SUM and
	// CUSTOM materialize rows internally and share the Go-side folds in this
	// package so both backends agree bit for bit.
	GetUsage(ctx context.Context, params *UsageParams) (*UsageResult, error)

	// GetRawEvents returns matching events with their property bags, ordered
	// by ascending timestamp. Used for CUSTOM aggregation and DYNAMIC pricing.
	GetRawEvents(ctx context.Context, params *UsageParams) ([]*Event, error)
}

// UsageParams identifies the event population to aggregate over
type UsageParams struct {
	ExternalCustomerID string                `json:"external_customer_id"`
	EventName          string                `json:"event_name"`
	PropertyName       string                `json:"property_name"`
	AggregationType    types.AggregationType `json:"aggregation_type"`
	StartTime          time.Time             `json:"start_time"`
	EndTime            time.Time             `json:"end_time"`

	// Filters restrict events by property bag equality; a key matches when
	// the event's value equals any of the listed values. Absent or empty
	// filters select all events unconditionally.
	Filters map[string][]string `json:"filters,omitempty"`

	// Expression is the arithmetic expression evaluated per event for
	// CUSTOM aggregation
	Expression string `json:"expression,omitempty"`
}

// UsageResult is the atomic output of aggregation
type UsageResult struct {
	Quantity    decimal.Decimal `json:"quantity"`
	EventsCount uint64          `json:"events_count"`
}

// ZeroUsage returns an empty usage result
func ZeroUsage() *UsageResult {
	return &UsageResult{Quantity: decimal.Zero}
}

// TimedValue is one (timestamp, value) observation used by the
// weighted-sum fold
type TimedValue struct {
	Timestamp time.Time
	Value     decimal.Decimal
}
