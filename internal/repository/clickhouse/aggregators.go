package clickhouse

import (
	"fmt"
	"strings"

	"github.com/billforge/billforge/internal/domain/events"
	"github.com/billforge/billforge/internal/types"
)

// Aggregator builds the columnar reduction query for one aggregation type.
// WEIGHTED_SUM and CUSTOM have no aggregator; they materialize rows and use
// the shared folds in the events package.
type Aggregator interface {
	GetQuery(params *events.UsageParams) (string, []interface{})
	GetType() types.AggregationType
}

// GetAggregator returns the aggregator for the given type, or nil when the
// type has no single-query reduction
func GetAggregator(aggregationType types.AggregationType) Aggregator {
	switch aggregationType {
	case types.AggregationCount:
		return &CountAggregator{}
	case types.AggregationSum:
		return &SumAggregator{}
	case types.AggregationMax:
		return &MaxAggregator{}
	case types.AggregationUniqueCount:
		return &UniqueCountAggregator{}
	case types.AggregationLatest:
		return &LatestAggregator{}
	default:
		return nil
	}
}

// numericProperty extracts the named property as Float64, treating missing or
// non-numeric values as zero
func numericProperty(field string) string {
	return fmt.Sprintf("toFloat64OrZero(JSONExtractString(properties, '%s'))", escapeKey(field))
}

func stringProperty(field string) string {
	return fmt.Sprintf("JSONExtractString(properties, '%s')", escapeKey(field))
}

func escapeKey(key string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(key)
}

// buildWhere assembles the shared predicate with the half-open window
// [start, end). Events at the exact period end belong to the next period.
func buildWhere(params *events.UsageParams) (string, []interface{}) {
	conditions := []string{"event_name = ?"}
	args := []interface{}{params.EventName}

	if params.ExternalCustomerID != "" {
		conditions = append(conditions, "external_customer_id = ?")
		args = append(args, params.ExternalCustomerID)
	}
	if !params.StartTime.IsZero() {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, params.StartTime)
	}
	if !params.EndTime.IsZero() {
		conditions = append(conditions, "timestamp < ?")
		args = append(args, params.EndTime)
	}

	for key, values := range params.Filters {
		if len(values) == 0 {
			continue
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
		conditions = append(conditions, fmt.Sprintf("%s IN (%s)", stringProperty(key), placeholders))
		for _, value := range values {
			args = append(args, value)
		}
	}

	return strings.Join(conditions, " AND "), args
}

type CountAggregator struct{}

func (a *CountAggregator) GetType() types.AggregationType { return types.AggregationCount }

func (a *CountAggregator) GetQuery(params *events.UsageParams) (string, []interface{}) {
	where, args := buildWhere(params)
	return fmt.Sprintf(
		"SELECT toFloat64(count()) AS quantity, count() AS events_count FROM events WHERE %s",
		where,
	), args
}

type SumAggregator struct{}

func (a *SumAggregator) GetType() types.AggregationType { return types.AggregationSum }

func (a *SumAggregator) GetQuery(params *events.UsageParams) (string, []interface{}) {
	where, args := buildWhere(params)
	return fmt.Sprintf(
		"SELECT sum(%s) AS quantity, count() AS events_count FROM events WHERE %s",
		numericProperty(params.PropertyName), where,
	), args
}

type MaxAggregator struct{}

func (a *MaxAggregator) GetType() types.AggregationType { return types.AggregationMax }

func (a *MaxAggregator) GetQuery(params *events.UsageParams) (string, []interface{}) {
	where, args := buildWhere(params)
	return fmt.Sprintf(
		"SELECT max(%s) AS quantity, count() AS events_count FROM events WHERE %s",
		numericProperty(params.PropertyName), where,
	), args
}

type UniqueCountAggregator struct{}

func (a *UniqueCountAggregator) GetType() types.AggregationType { return types.AggregationUniqueCount }

func (a *UniqueCountAggregator) GetQuery(params *events.UsageParams) (string, []interface{}) {
	where, args := buildWhere(params)
	// JSONExtractString maps an absent property to '', which uniqExact would
	// count as a distinct value. The JSONHas condition skips those events,
	// like NULL-skipping COUNT(DISTINCT) on the row backend.
	return fmt.Sprintf(
		"SELECT toFloat64(uniqExactIf(%s, JSONHas(properties, '%s'))) AS quantity, count() AS events_count FROM events WHERE %s",
		stringProperty(params.PropertyName), escapeKey(params.PropertyName), where,
	), args
}

type LatestAggregator struct{}

func (a *LatestAggregator) GetType() types.AggregationType { return types.AggregationLatest }

func (a *LatestAggregator) GetQuery(params *events.UsageParams) (string, []interface{}) {
	where, args := buildWhere(params)
	return fmt.Sprintf(
		"SELECT argMax(%s, timestamp) AS quantity, count() AS events_count FROM events WHERE %s",
		numericProperty(params.PropertyName), where,
	), args
}
