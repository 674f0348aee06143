package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/billforge/billforge/internal/domain/events"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/types"
	"github.com/shopspring/decimal"
)

// InMemoryEventStore implements events.Repository for tests. It mirrors the
// observable semantics of both database backends, which makes it usable as a
// conformance reference. GetUsage calls are counted so tests can assert that
// short-circuit paths never reach the store.
type InMemoryEventStore struct {
	mu     sync.RWMutex
	events []*events.Event

	usageCalls int
}

func NewInMemoryEventStore() *InMemoryEventStore {
	return &InMemoryEventStore{}
}

// GetUsageCallCount returns how many times GetUsage has been invoked
func (s *InMemoryEventStore) GetUsageCallCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.usageCalls
}

func (s *InMemoryEventStore) InsertEvent(ctx context.Context, event *events.Event) error {
	if err := event.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// The event id is a dedup key
	for _, existing := range s.events {
		if existing.ID == event.ID {
			return nil
		}
	}
	s.events = append(s.events, event)
	return nil
}

func (s *InMemoryEventStore) BulkInsertEvents(ctx context.Context, evs []*events.Event) error {
	for _, event := range evs {
		if err := s.InsertEvent(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

func (s *InMemoryEventStore) GetUsage(ctx context.Context, params *events.UsageParams) (*events.UsageResult, error) {
	s.mu.Lock()
	s.usageCalls++
	s.mu.Unlock()

	if !params.AggregationType.Validate() {
		return nil, ierr.NewErrorf("unknown aggregation type: %s", params.AggregationType).
			WithHint("Unknown aggregation type").
			Mark(ierr.ErrValidation)
	}

	matched := s.matchEvents(params)
	count := uint64(len(matched))

	switch params.AggregationType {
	case types.AggregationCount:
		return &events.UsageResult{
			Quantity:    decimal.NewFromUint64(count),
			EventsCount: count,
		}, nil

	case types.AggregationSum:
		total := decimal.Zero
		for _, event := range matched {
			if v, ok := numericValue(event, params.PropertyName); ok {
				total = total.Add(v)
			}
		}
		return &events.UsageResult{Quantity: total, EventsCount: count}, nil

	case types.AggregationMax:
		max := decimal.Zero
		for _, event := range matched {
			if v, ok := numericValue(event, params.PropertyName); ok && v.GreaterThan(max) {
				max = v
			}
		}
		return &events.UsageResult{Quantity: max, EventsCount: count}, nil

	case types.AggregationUniqueCount:
		seen := map[string]struct{}{}
		for _, event := range matched {
			if raw, ok := event.Properties[params.PropertyName]; ok {
				seen[fmt.Sprint(raw)] = struct{}{}
			}
		}
		return &events.UsageResult{
			Quantity:    decimal.NewFromInt(int64(len(seen))),
			EventsCount: count,
		}, nil

	case types.AggregationLatest:
		if count == 0 {
			return events.ZeroUsage(), nil
		}
		latest := matched[len(matched)-1]
		quantity, _ := numericValue(latest, params.PropertyName)
		return &events.UsageResult{Quantity: quantity, EventsCount: count}, nil

	case types.AggregationWeightedSum:
		values := make([]events.TimedValue, 0, len(matched))
		for _, event := range matched {
			v, _ := numericValue(event, params.PropertyName)
			values = append(values, events.TimedValue{Timestamp: event.Timestamp, Value: v})
		}
		return &events.UsageResult{
			Quantity:    events.WeightedSum(values, params.StartTime, params.EndTime),
			EventsCount: count,
		}, nil

	case types.AggregationCustom:
		expression, err := events.CompileExpression(params.Expression)
		if err != nil {
			return nil, err
		}
		return &events.UsageResult{
			Quantity:    expression.EvaluateSum(matched),
			EventsCount: count,
		}, nil
	}

	return events.ZeroUsage(), nil
}

func (s *InMemoryEventStore) GetRawEvents(ctx context.Context, params *events.UsageParams) ([]*events.Event, error) {
	return s.matchEvents(params), nil
}

// matchEvents applies the shared predicate and returns events sorted by
// ascending timestamp
func (s *InMemoryEventStore) matchEvents(params *events.UsageParams) []*events.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*events.Event
	for _, event := range s.events {
		if event.EventName != params.EventName {
			continue
		}
		if params.ExternalCustomerID != "" && event.ExternalCustomerID != params.ExternalCustomerID {
			continue
		}
		if !params.StartTime.IsZero() && event.Timestamp.Before(params.StartTime) {
			continue
		}
		if !params.EndTime.IsZero() && !event.Timestamp.Before(params.EndTime) {
			continue
		}
		if !matchesFilters(event, params.Filters) {
			continue
		}
		matched = append(matched, event)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.Before(matched[j].Timestamp)
	})
	return matched
}

func matchesFilters(event *events.Event, filters map[string][]string) bool {
	for key, values := range filters {
		if len(values) == 0 {
			continue
		}
		raw, ok := event.Properties[key]
		if !ok {
			return false
		}
		actual := fmt.Sprint(raw)
		found := false
		for _, value := range values {
			if actual == value {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func numericValue(event *events.Event, field string) (decimal.Decimal, bool) {
	raw, ok := event.Properties[field]
	if !ok {
		return decimal.Zero, false
	}
	switch v := raw.(type) {
	case float64:
		return decimal.NewFromFloat(v), true
	case float32:
		return decimal.NewFromFloat32(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	default:
		return decimal.Zero, false
	}
}
