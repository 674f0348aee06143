package types

type AggregationType string

const (
	AggregationCount       AggregationType = "COUNT"
	AggregationSum         AggregationType = "SUM"
	AggregationMax         AggregationType = "MAX"
	AggregationUniqueCount AggregationType = "UNIQUE_COUNT"
	AggregationLatest      AggregationType = "LATEST"
	AggregationWeightedSum AggregationType = "WEIGHTED_SUM"
	AggregationCustom      AggregationType = "CUSTOM"
)

// Validate checks if the aggregation type is valid
func (t AggregationType) Validate() bool {
	switch t {
	case AggregationCount, AggregationSum, AggregationMax,
		AggregationUniqueCount, AggregationLatest,
		AggregationWeightedSum, AggregationCustom:
		return true
	default:
		return false
	}
}

// RequiresField returns true if the aggregation type requires a property field
func (t AggregationType) RequiresField() bool {
	switch t {
	case AggregationCount, AggregationCustom:
		return false
	default:
		return true
	}
}

// RequiresRawEvents returns true if the aggregation cannot be pushed down to the
// store as a single reduction and needs per-event rows materialized instead.
func (t AggregationType) RequiresRawEvents() bool {
	switch t {
	case AggregationWeightedSum, AggregationCustom:
		return true
	default:
		return false
	}
}
