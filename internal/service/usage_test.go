package service

import (
	"context"
	"testing"
	"time"

	"github.com/billforge/billforge/internal/domain/events"
	"github.com/billforge/billforge/internal/domain/meter"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/logger"
	"github.com/billforge/billforge/internal/testutil"
	"github.com/billforge/billforge/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type UsageServiceSuite struct {
	suite.Suite
	ctx     context.Context
	store   *testutil.InMemoryEventStore
	service UsageService

	windowStart time.Time
	windowEnd   time.Time
}

func TestUsageServiceSuite(t *testing.T) {
	suite.Run(t, new(UsageServiceSuite))
}

func (s *UsageServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = testutil.NewInMemoryEventStore()
	s.service = NewUsageService(s.store, logger.NewNopLogger())
	s.windowStart = time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	s.windowEnd = time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)
}

func (s *UsageServiceSuite) seedEvent(id string, offset time.Duration, props map[string]interface{}) {
	event := &events.Event{
		ID:                 id,
		TenantID:           "tenant-1",
		ExternalCustomerID: "cust-1",
		EventName:          "api_call",
		Timestamp:          s.windowStart.Add(offset),
		Properties:         props,
	}
	s.Require().NoError(s.store.InsertEvent(s.ctx, event))
}

func (s *UsageServiceSuite) params(aggregationType types.AggregationType, field string) *events.UsageParams {
	return &events.UsageParams{
		ExternalCustomerID: "cust-1",
		EventName:          "api_call",
		PropertyName:       field,
		AggregationType:    aggregationType,
		StartTime:          s.windowStart,
		EndTime:            s.windowEnd,
	}
}

func (s *UsageServiceSuite) TestUnknownAggregationType() {
	_, err := s.service.GetUsage(s.ctx, s.params(types.AggregationType("MEDIAN"), ""))
	s.Error(err)
	s.True(ierr.IsValidation(err))

	// The store was never consulted
	s.Equal(0, s.store.GetUsageCallCount())
}

func (s *UsageServiceSuite) TestCount() {
	s.seedEvent("e1", time.Minute, nil)
	s.seedEvent("e2", time.Hour, nil)
	// outside the window
	s.seedEvent("e3", -time.Hour, nil)

	result, err := s.service.GetUsage(s.ctx, s.params(types.AggregationCount, ""))
	s.NoError(err)
	s.True(decimal.NewFromInt(2).Equal(result.Quantity))
	s.Equal(uint64(2), result.EventsCount)
}

func (s *UsageServiceSuite) TestSumSkipsNonNumeric() {
	s.seedEvent("e1", time.Minute, map[string]interface{}{"bytes": "100"})
	s.seedEvent("e2", time.Hour, map[string]interface{}{"bytes": "50.5"})
	s.seedEvent("e3", 2*time.Hour, map[string]interface{}{"bytes": "oops"})
	s.seedEvent("e4", 3*time.Hour, nil)

	result, err := s.service.GetUsage(s.ctx, s.params(types.AggregationSum, "bytes"))
	s.NoError(err)
	// non-numeric and missing values are excluded from the sum but counted
	s.True(decimal.NewFromFloat(150.5).Equal(result.Quantity), "got %s", result.Quantity)
	s.Equal(uint64(4), result.EventsCount)
}

func (s *UsageServiceSuite) TestMax() {
	s.seedEvent("e1", time.Minute, map[string]interface{}{"size": "10"})
	s.seedEvent("e2", time.Hour, map[string]interface{}{"size": "90"})
	s.seedEvent("e3", 2*time.Hour, map[string]interface{}{"size": "45"})

	result, err := s.service.GetUsage(s.ctx, s.params(types.AggregationMax, "size"))
	s.NoError(err)
	s.True(decimal.NewFromInt(90).Equal(result.Quantity))
	s.Equal(uint64(3), result.EventsCount)
}

func (s *UsageServiceSuite) TestUniqueCount() {
	s.seedEvent("e1", time.Minute, map[string]interface{}{"region": "us"})
	s.seedEvent("e2", time.Hour, map[string]interface{}{"region": "eu"})
	s.seedEvent("e3", 2*time.Hour, map[string]interface{}{"region": "us"})

	result, err := s.service.GetUsage(s.ctx, s.params(types.AggregationUniqueCount, "region"))
	s.NoError(err)
	s.True(decimal.NewFromInt(2).Equal(result.Quantity))
	s.Equal(uint64(3), result.EventsCount)
}

func (s *UsageServiceSuite) TestLatest() {
	s.seedEvent("e1", time.Minute, map[string]interface{}{"gauge": "10"})
	s.seedEvent("e2", 2*time.Hour, map[string]interface{}{"gauge": "30"})
	s.seedEvent("e3", time.Hour, map[string]interface{}{"gauge": "20"})

	result, err := s.service.GetUsage(s.ctx, s.params(types.AggregationLatest, "gauge"))
	s.NoError(err)
	s.True(decimal.NewFromInt(30).Equal(result.Quantity))

	// no events at all
	empty, err := s.service.GetUsage(s.ctx, &events.UsageParams{
		ExternalCustomerID: "nobody",
		EventName:          "api_call",
		PropertyName:       "gauge",
		AggregationType:    types.AggregationLatest,
		StartTime:          s.windowStart,
		EndTime:            s.windowEnd,
	})
	s.NoError(err)
	s.True(empty.Quantity.IsZero())
	s.Equal(uint64(0), empty.EventsCount)
}

func (s *UsageServiceSuite) TestWeightedSumZeroWindowSkipsStore() {
	s.seedEvent("e1", time.Minute, map[string]interface{}{"conns": "5"})

	params := s.params(types.AggregationWeightedSum, "conns")
	params.EndTime = params.StartTime

	result, err := s.service.GetUsage(s.ctx, params)
	s.NoError(err)
	s.True(result.Quantity.IsZero())
	s.Equal(uint64(0), result.EventsCount)
	s.Equal(0, s.store.GetUsageCallCount(), "degenerate window must not reach the store")
}

func (s *UsageServiceSuite) TestWeightedSum() {
	s.seedEvent("e1", 0, map[string]interface{}{"conns": "10"})
	s.seedEvent("e2", 15*24*time.Hour, map[string]interface{}{"conns": "20"})

	result, err := s.service.GetUsage(s.ctx, s.params(types.AggregationWeightedSum, "conns"))
	s.NoError(err)
	s.Equal(uint64(2), result.EventsCount)
	s.Equal(1, s.store.GetUsageCallCount())
	s.True(decimal.NewFromInt(15).Equal(result.Quantity), "got %s", result.Quantity)
}

func (s *UsageServiceSuite) TestCustomExpression() {
	s.seedEvent("e1", time.Minute, map[string]interface{}{"tokens": 100.0})
	s.seedEvent("e2", time.Hour, map[string]interface{}{"tokens": 60.0})

	params := s.params(types.AggregationCustom, "")
	params.Expression = "tokens * 0.5"

	result, err := s.service.GetUsage(s.ctx, params)
	s.NoError(err)
	s.True(decimal.NewFromInt(80).Equal(result.Quantity), "got %s", result.Quantity)
	s.Equal(uint64(2), result.EventsCount)
}

func (s *UsageServiceSuite) TestCustomExpressionCompileError() {
	params := s.params(types.AggregationCustom, "")
	params.Expression = "tokens +"

	_, err := s.service.GetUsage(s.ctx, params)
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *UsageServiceSuite) TestFilters() {
	s.seedEvent("e1", time.Minute, map[string]interface{}{"region": "us"})
	s.seedEvent("e2", time.Hour, map[string]interface{}{"region": "eu"})
	s.seedEvent("e3", 2*time.Hour, map[string]interface{}{"region": "ap"})

	params := s.params(types.AggregationCount, "")
	params.Filters = map[string][]string{"region": {"us", "eu"}}

	result, err := s.service.GetUsage(s.ctx, params)
	s.NoError(err)
	s.Equal(uint64(2), result.EventsCount)

	// empty filter set selects everything
	params.Filters = map[string][]string{}
	result, err = s.service.GetUsage(s.ctx, params)
	s.NoError(err)
	s.Equal(uint64(3), result.EventsCount)
}

func (s *UsageServiceSuite) TestGetUsageByMeterMergesFilters() {
	s.seedEvent("e1", time.Minute, map[string]interface{}{"region": "us", "tier": "paid"})
	s.seedEvent("e2", time.Hour, map[string]interface{}{"region": "us", "tier": "free"})
	s.seedEvent("e3", 2*time.Hour, map[string]interface{}{"region": "eu", "tier": "paid"})

	m := &meter.Meter{
		Code:      "api-calls",
		EventName: "api_call",
		Aggregation: meter.Aggregation{
			Type: types.AggregationCount,
		},
		Filters: []meter.Filter{
			{Key: "region", Values: []string{"us"}},
		},
	}

	result, err := s.service.GetUsageByMeter(s.ctx, m, "cust-1", s.windowStart, s.windowEnd,
		map[string][]string{"tier": {"paid"}})
	s.NoError(err)
	s.Equal(uint64(1), result.EventsCount)

	// caller filters override the meter's on key conflicts
	result, err = s.service.GetUsageByMeter(s.ctx, m, "cust-1", s.windowStart, s.windowEnd,
		map[string][]string{"region": {"eu"}})
	s.NoError(err)
	s.Equal(uint64(1), result.EventsCount)
}

func TestZeroUsage(t *testing.T) {
	result := events.ZeroUsage()
	require.NotNil(t, result)
	assert.True(t, result.Quantity.IsZero())
	assert.Equal(t, uint64(0), result.EventsCount)
}
