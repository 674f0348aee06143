package events

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// WeightedSum computes the time-weighted average of the observed values over
// the window: each value is held from its own timestamp until the next
// observation (or the window end), and the integral is divided by the window
// duration. Both aggregation backends delegate to this fold so their results
// are identical by construction.
func WeightedSum(values []TimedValue, windowStart, windowEnd time.Time) decimal.Decimal {
	windowSeconds := windowEnd.Sub(windowStart).Seconds()
	if windowSeconds <= 0 || len(values) == 0 {
		return decimal.Zero
	}

	sorted := make([]TimedValue, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	integral := decimal.Zero
	for i, v := range sorted {
		heldFrom := v.Timestamp
		if heldFrom.Before(windowStart) {
			heldFrom = windowStart
		}

		heldUntil := windowEnd
		if i+1 < len(sorted) {
			heldUntil = sorted[i+1].Timestamp
		}
		if heldUntil.After(windowEnd) {
			heldUntil = windowEnd
		}

		seconds := heldUntil.Sub(heldFrom).Seconds()
		if seconds <= 0 {
			continue
		}

		integral = integral.Add(v.Value.Mul(decimal.NewFromFloat(seconds)))
	}

	return integral.Div(decimal.NewFromFloat(windowSeconds))
}
