package charge

import (
	"sort"

	"github.com/shopspring/decimal"
)

// TierRange is one tier in the modern range shape. Bounds are inclusive; a
// nil ToValue marks the open-ended last tier. PerUnitAmount prices unit
// quantities, Rate prices monetary bases as a percentage.
type TierRange struct {
	FromValue     decimal.Decimal
	ToValue       *decimal.Decimal
	PerUnitAmount decimal.Decimal
	Rate          decimal.Decimal
	FlatAmount    decimal.Decimal
}

// Capacity returns the number of units the tier can absorb, counting both
// inclusive bounds, or nil for an open-ended tier
func (r TierRange) Capacity() *decimal.Decimal {
	if r.ToValue == nil {
		return nil
	}
	c := r.ToValue.Sub(r.FromValue).Add(decimal.NewFromInt(1))
	return &c
}

// Contains reports whether units falls within the tier's inclusive bounds
func (r TierRange) Contains(units decimal.Decimal) bool {
	if units.LessThan(r.FromValue) {
		return false
	}
	return r.ToValue == nil || units.LessThanOrEqual(*r.ToValue)
}

// LegacyTier is one tier in the legacy shape. UpTo is the inclusive upper
// limit of the tier, nil for the open-ended last tier.
type LegacyTier struct {
	UpTo       *decimal.Decimal
	UnitPrice  decimal.Decimal
	FlatAmount decimal.Decimal
}

func sortRanges(ranges []TierRange) []TierRange {
	sorted := make([]TierRange, len(ranges))
	copy(sorted, ranges)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].FromValue.LessThan(sorted[j].FromValue)
	})
	return sorted
}

func sortLegacyTiers(tiers []LegacyTier) []LegacyTier {
	sorted := make([]LegacyTier, len(tiers))
	copy(sorted, tiers)
	sort.SliceStable(sorted, func(i, j int) bool {
		// nil up_to is the open-ended last tier
		if sorted[i].UpTo == nil {
			return false
		}
		if sorted[j].UpTo == nil {
			return true
		}
		return sorted[i].UpTo.LessThan(*sorted[j].UpTo)
	})
	return sorted
}
