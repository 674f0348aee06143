package service

import (
	"context"
	"time"

	"github.com/billforge/billforge/internal/domain/events"
	"github.com/billforge/billforge/internal/domain/meter"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/logger"
	"github.com/billforge/billforge/internal/types"
)

// UsageService is the aggregation dispatch layer over the event store. An
// unknown aggregation type is a configuration bug and surfaces as a
// validation error; absent usage resolves to a zero result.
type UsageService interface {
	GetUsage(ctx context.Context, params *events.UsageParams) (*events.UsageResult, error)

	// GetUsageByMeter resolves a meter's aggregation config into usage params,
	// merging the meter's own filters with the caller's. Caller filters win on
	// key conflicts.
	GetUsageByMeter(ctx context.Context, m *meter.Meter, externalCustomerID string, startTime, endTime time.Time, filters map[string][]string) (*events.UsageResult, error)

	GetRawEvents(ctx context.Context, params *events.UsageParams) ([]*events.Event, error)
}

type usageService struct {
	eventRepo events.Repository
	logger    *logger.Logger
}

func NewUsageService(eventRepo events.Repository, log *logger.Logger) UsageService {
	return &usageService{eventRepo: eventRepo, logger: log}
}

func (s *usageService) GetUsage(ctx context.Context, params *events.UsageParams) (*events.UsageResult, error) {
	if !params.AggregationType.Validate() {
		return nil, ierr.NewErrorf("unknown aggregation type: %s", params.AggregationType).
			WithHint("Unknown aggregation type").
			WithReportableDetails(map[string]any{
				"aggregation_type": params.AggregationType,
				"event_name":       params.EventName,
			}).
			Mark(ierr.ErrValidation)
	}

	// A degenerate window has no duration to weight over; short-circuit to
	// zero without touching the store
	if params.AggregationType == types.AggregationWeightedSum && !params.EndTime.After(params.StartTime) {
		return events.ZeroUsage(), nil
	}

	return s.eventRepo.GetUsage(ctx, params)
}

func (s *usageService) GetUsageByMeter(ctx context.Context, m *meter.Meter, externalCustomerID string, startTime, endTime time.Time, filters map[string][]string) (*events.UsageResult, error) {
	merged := m.FiltersAsMap()
	if len(filters) > 0 {
		if merged == nil {
			merged = make(map[string][]string, len(filters))
		}
		for key, values := range filters {
			merged[key] = values
		}
	}

	return s.GetUsage(ctx, &events.UsageParams{
		ExternalCustomerID: externalCustomerID,
		EventName:          m.EventName,
		PropertyName:       m.Aggregation.Field,
		AggregationType:    m.Aggregation.Type,
		StartTime:          startTime,
		EndTime:            endTime,
		Filters:            merged,
		Expression:         m.Aggregation.Expression,
	})
}

func (s *usageService) GetRawEvents(ctx context.Context, params *events.UsageParams) ([]*events.Event, error) {
	return s.eventRepo.GetRawEvents(ctx, params)
}
