package charge

import (
	"github.com/billforge/billforge/internal/types"
	"github.com/shopspring/decimal"
)

// CalculationInput carries everything a calculator may need. Units and
// Properties are always set; TotalAmount and EventCount feed the percentage
// family, Events feeds DYNAMIC pricing.
type CalculationInput struct {
	Units      decimal.Decimal
	Properties Properties

	// TotalAmount is the monetary base for percentage models. When nil the
	// calculators fall back to Units.
	TotalAmount *decimal.Decimal

	// EventCount is the number of events behind Units, used for per-event
	// fixed fees
	EventCount uint64

	// Events holds raw property bags for DYNAMIC pricing
	Events []map[string]interface{}
}

func (in CalculationInput) monetaryBase() decimal.Decimal {
	if in.TotalAmount != nil {
		return *in.TotalAmount
	}
	return in.Units
}

// Calculator converts a usage quantity (or monetary base) into an amount for
// one pricing model. Calculators are pure: no I/O and no errors. Malformed
// configuration resolves to zero so invoicing degrades instead of failing.
type Calculator interface {
	Calculate(input CalculationInput) decimal.Decimal
	BillingModel() types.BillingModel
}

// GetCalculator returns the calculator for the given billing model, or nil
// for an unrecognized model. Callers must treat nil as "skip this charge".
func GetCalculator(model types.BillingModel) Calculator {
	switch model {
	case types.BILLING_MODEL_STANDARD:
		return &StandardCalculator{}
	case types.BILLING_MODEL_GRADUATED:
		return &GraduatedCalculator{}
	case types.BILLING_MODEL_VOLUME:
		return &VolumeCalculator{}
	case types.BILLING_MODEL_PACKAGE:
		return &PackageCalculator{}
	case types.BILLING_MODEL_PERCENTAGE:
		return &PercentageCalculator{}
	case types.BILLING_MODEL_GRADUATED_PERCENTAGE:
		return &GraduatedPercentageCalculator{}
	case types.BILLING_MODEL_CUSTOM:
		return &CustomCalculator{}
	case types.BILLING_MODEL_DYNAMIC:
		return &DynamicCalculator{}
	default:
		return nil
	}
}

var (
	one        = decimal.NewFromInt(1)
	oneHundred = decimal.NewFromInt(100)
)

// StandardCalculator prices every unit at a flat rate with optional min/max
// clamps on the result
type StandardCalculator struct{}

func (c *StandardCalculator) BillingModel() types.BillingModel {
	return types.BILLING_MODEL_STANDARD
}

func (c *StandardCalculator) Calculate(input CalculationInput) decimal.Decimal {
	unitPrice, ok := input.Properties.GetDecimalOk("amount")
	if !ok {
		unitPrice = input.Properties.GetDecimal("unit_price")
	}

	amount := input.Units.Mul(unitPrice)

	if min, ok := input.Properties.GetDecimalOk("min_price"); ok && amount.LessThan(min) {
		return min
	}
	if max, ok := input.Properties.GetDecimalOk("max_price"); ok && amount.GreaterThan(max) {
		return max
	}
	return amount
}

// GraduatedCalculator walks tiers progressively, pricing each consumed range
// at its own rate
type GraduatedCalculator struct{}

func (c *GraduatedCalculator) BillingModel() types.BillingModel {
	return types.BILLING_MODEL_GRADUATED
}

func (c *GraduatedCalculator) Calculate(input CalculationInput) decimal.Decimal {
	if ranges := input.Properties.GetTierRanges("graduated_ranges"); len(ranges) > 0 {
		return graduatedRangeWalk(ranges, input.Units, false)
	}
	if tiers := input.Properties.GetLegacyTiers(); len(tiers) > 0 {
		return graduatedLegacyWalk(tiers, input.Units)
	}
	return decimal.Zero
}

// graduatedRangeWalk consumes units tier by tier. Capacity counts both
// inclusive bounds (0..100 holds 101 units); a non-positive capacity skips
// the tier without ending the walk. The flat amount applies once per tier
// that received at least one unit. When asRate is set the per-tier price is a
// percentage of the consumed amount instead of a per-unit price.
func graduatedRangeWalk(ranges []TierRange, units decimal.Decimal, asRate bool) decimal.Decimal {
	amount := decimal.Zero
	remaining := units

	for _, r := range sortRanges(ranges) {
		usage := remaining
		if capacity := r.Capacity(); capacity != nil {
			if capacity.LessThanOrEqual(decimal.Zero) {
				continue
			}
			if capacity.LessThan(remaining) {
				usage = *capacity
			}
		}
		if usage.LessThanOrEqual(decimal.Zero) {
			continue
		}

		if asRate {
			amount = amount.Add(usage.Mul(r.Rate).Div(oneHundred))
		} else {
			amount = amount.Add(usage.Mul(r.PerUnitAmount))
		}
		if usage.GreaterThanOrEqual(one) {
			amount = amount.Add(r.FlatAmount)
		}

		remaining = remaining.Sub(usage)
	}

	return amount
}

// graduatedLegacyWalk consumes units across legacy tiers. The legacy shape
// assumes tiers fully partition usage: a non-positive remainder means the
// walk is done, so this path breaks where the range walk continues.
func graduatedLegacyWalk(tiers []LegacyTier, units decimal.Decimal) decimal.Decimal {
	amount := decimal.Zero
	remaining := units
	prevLimit := decimal.Zero

	for _, t := range sortLegacyTiers(tiers) {
		usage := remaining
		if t.UpTo != nil {
			span := t.UpTo.Sub(prevLimit)
			if span.LessThan(usage) {
				usage = span
			}
		}
		if usage.LessThanOrEqual(decimal.Zero) {
			break
		}

		amount = amount.Add(usage.Mul(t.UnitPrice)).Add(t.FlatAmount)
		remaining = remaining.Sub(usage)
		if t.UpTo != nil {
			prevLimit = *t.UpTo
		}
	}

	return amount
}

// VolumeCalculator prices all units at the rate of the single tier the total
// quantity falls into
type VolumeCalculator struct{}

func (c *VolumeCalculator) BillingModel() types.BillingModel {
	return types.BILLING_MODEL_VOLUME
}

func (c *VolumeCalculator) Calculate(input CalculationInput) decimal.Decimal {
	if ranges := input.Properties.GetTierRanges("volume_ranges"); len(ranges) > 0 {
		sorted := sortRanges(ranges)

		// Quantities beyond every tier fall back to the last one
		selected := sorted[len(sorted)-1]
		for _, r := range sorted {
			if r.Contains(input.Units) {
				selected = r
				break
			}
		}
		return input.Units.Mul(selected.PerUnitAmount).Add(selected.FlatAmount)
	}

	if tiers := input.Properties.GetLegacyTiers(); len(tiers) > 0 {
		sorted := sortLegacyTiers(tiers)

		selected := sorted[len(sorted)-1]
		for _, t := range sorted {
			if t.UpTo == nil || input.Units.LessThanOrEqual(*t.UpTo) {
				selected = t
				break
			}
		}
		return input.Units.Mul(selected.UnitPrice).Add(selected.FlatAmount)
	}

	return decimal.Zero
}

// PackageCalculator prices usage in fixed-size blocks, rounding up
type PackageCalculator struct{}

func (c *PackageCalculator) BillingModel() types.BillingModel {
	return types.BILLING_MODEL_PACKAGE
}

func (c *PackageCalculator) Calculate(input CalculationInput) decimal.Decimal {
	price, ok := input.Properties.GetDecimalOk("amount")
	if !ok {
		price = input.Properties.GetDecimal("unit_price")
	}

	size := input.Properties.GetDecimal("package_size")
	if size.LessThanOrEqual(decimal.Zero) {
		size = one
	}

	billable := input.Units.Sub(input.Properties.GetDecimal("free_units"))
	if billable.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}

	packages := billable.Div(size).Ceil()
	return packages.Mul(price)
}

// PercentageCalculator takes a percentage of the monetary base plus a fixed
// fee per billable event
type PercentageCalculator struct{}

func (c *PercentageCalculator) BillingModel() types.BillingModel {
	return types.BILLING_MODEL_PERCENTAGE
}

func (c *PercentageCalculator) Calculate(input CalculationInput) decimal.Decimal {
	rate, ok := input.Properties.GetDecimalOk("rate")
	if !ok {
		rate = input.Properties.GetDecimal("percentage")
	}

	fee := input.monetaryBase().Mul(rate).Div(oneHundred)

	if fixed, ok := input.Properties.GetDecimalOk("fixed_amount"); ok {
		freeEvents := input.Properties.GetDecimal("free_units_per_events")
		billableEvents := decimal.NewFromInt(int64(input.EventCount)).Sub(freeEvents)
		if billableEvents.IsPositive() {
			fee = fee.Add(billableEvents.Mul(fixed))
		}
	}

	if min, ok := input.Properties.GetDecimalOk("per_transaction_min_amount"); ok && fee.LessThan(min) {
		return min
	}
	if max, ok := input.Properties.GetDecimalOk("per_transaction_max_amount"); ok && fee.GreaterThan(max) {
		return max
	}
	return fee
}

// GraduatedPercentageCalculator applies the graduated tier walk to a monetary
// base with percentage rates per tier
type GraduatedPercentageCalculator struct{}

func (c *GraduatedPercentageCalculator) BillingModel() types.BillingModel {
	return types.BILLING_MODEL_GRADUATED_PERCENTAGE
}

func (c *GraduatedPercentageCalculator) Calculate(input CalculationInput) decimal.Decimal {
	ranges := input.Properties.GetTierRanges("graduated_percentage_ranges")
	if len(ranges) == 0 {
		return decimal.Zero
	}
	return graduatedRangeWalk(ranges, input.monetaryBase(), true)
}

// CustomCalculator uses an operator-supplied amount, falling back to a unit
// price when none is configured
type CustomCalculator struct{}

func (c *CustomCalculator) BillingModel() types.BillingModel {
	return types.BILLING_MODEL_CUSTOM
}

func (c *CustomCalculator) Calculate(input CalculationInput) decimal.Decimal {
	if amount, ok := input.Properties.GetDecimalOk("custom_amount"); ok {
		return amount
	}
	return input.Properties.GetDecimal("unit_price").Mul(input.Units)
}

// DynamicCalculator prices each event by fields carried on the event itself
type DynamicCalculator struct{}

func (c *DynamicCalculator) BillingModel() types.BillingModel {
	return types.BILLING_MODEL_DYNAMIC
}

func (c *DynamicCalculator) Calculate(input CalculationInput) decimal.Decimal {
	priceField := input.Properties.GetString("price_field", "unit_price")
	quantityField := input.Properties.GetString("quantity_field", "quantity")

	amount := decimal.Zero
	for _, bag := range input.Events {
		price, _ := decimalFromAny(bag[priceField])
		quantity, _ := decimalFromAny(bag[quantityField])
		amount = amount.Add(price.Mul(quantity))
	}
	return amount
}
