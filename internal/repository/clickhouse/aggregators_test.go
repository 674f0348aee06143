package clickhouse

import (
	"testing"

	"github.com/billforge/billforge/internal/domain/events"
	"github.com/billforge/billforge/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetAggregator(t *testing.T) {
	supported := []types.AggregationType{
		types.AggregationCount,
		types.AggregationSum,
		types.AggregationMax,
		types.AggregationUniqueCount,
		types.AggregationLatest,
	}
	for _, at := range supported {
		agg := GetAggregator(at)
		require.NotNil(t, agg, "expected aggregator for %s", at)
		assert.Equal(t, at, agg.GetType())
	}

	// materialized via the shared folds, no single-query reduction
	assert.Nil(t, GetAggregator(types.AggregationWeightedSum))
	assert.Nil(t, GetAggregator(types.AggregationCustom))
}

// Events without the property must not contribute an empty-string value to
// the distinct count, matching NULL-skipping COUNT(DISTINCT) on the row
// backend.
func TestUniqueCountSkipsEventsMissingProperty(t *testing.T) {
	agg := &UniqueCountAggregator{}
	query, args := agg.GetQuery(&events.UsageParams{
		EventName:    "api_call",
		PropertyName: "region",
	})

	assert.Contains(t, query,
		"uniqExactIf(JSONExtractString(properties, 'region'), JSONHas(properties, 'region'))")
	require.Len(t, args, 1)
}

func TestSumAggregatorTreatsNonNumericAsZero(t *testing.T) {
	agg := &SumAggregator{}
	query, _ := agg.GetQuery(&events.UsageParams{
		EventName:    "api_call",
		PropertyName: "bytes",
	})

	assert.Contains(t, query, "toFloat64OrZero(JSONExtractString(properties, 'bytes'))")
}
