package charge

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Properties is the loosely-typed configuration bag attached to a charge.
// Values arrive from external configuration as strings, numbers or lists;
// every accessor degrades to a zero value on missing or malformed input so
// bad configuration never blocks invoicing.
type Properties map[string]interface{}

// GetDecimal returns the decimal value for key, or zero when the key is
// missing or not numeric
func (p Properties) GetDecimal(key string) decimal.Decimal {
	v, _ := p.GetDecimalOk(key)
	return v
}

// GetDecimalOk returns the decimal value for key and whether the key held a
// usable numeric value
func (p Properties) GetDecimalOk(key string) (decimal.Decimal, bool) {
	raw, ok := p[key]
	if !ok || raw == nil {
		return decimal.Zero, false
	}
	return decimalFromAny(raw)
}

// GetString returns the string value for key, or fallback when missing
func (p Properties) GetString(key, fallback string) string {
	raw, ok := p[key]
	if !ok {
		return fallback
	}
	s, ok := raw.(string)
	if !ok || s == "" {
		return fallback
	}
	return s
}

// GetTierRanges parses the modern range-shaped tier list stored under key
// (graduated_ranges, volume_ranges, graduated_percentage_ranges). Malformed
// entries are dropped rather than failing the whole list.
func (p Properties) GetTierRanges(key string) []TierRange {
	raw, ok := p[key]
	if !ok {
		return nil
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil
	}

	ranges := make([]TierRange, 0, len(list))
	for _, item := range list {
		entry, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		r := TierRange{
			FlatAmount: decimalAt(entry, "flat_amount"),
		}
		from, ok := decimalFromAny(entry["from_value"])
		if !ok {
			continue
		}
		r.FromValue = from
		if to, ok := decimalFromAny(entry["to_value"]); ok {
			r.ToValue = &to
		}
		r.PerUnitAmount = decimalAt(entry, "per_unit_amount")
		r.Rate = decimalAt(entry, "rate")
		ranges = append(ranges, r)
	}
	return ranges
}

// GetLegacyTiers parses the legacy tiers shape stored under "tiers"
func (p Properties) GetLegacyTiers() []LegacyTier {
	raw, ok := p["tiers"]
	if !ok {
		return nil
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil
	}

	tiers := make([]LegacyTier, 0, len(list))
	for _, item := range list {
		entry, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		t := LegacyTier{
			UnitPrice:  decimalAt(entry, "unit_price"),
			FlatAmount: decimalAt(entry, "flat_amount"),
		}
		if upTo, ok := decimalFromAny(entry["up_to"]); ok {
			t.UpTo = &upTo
		}
		tiers = append(tiers, t)
	}
	return tiers
}

func decimalAt(entry map[string]interface{}, key string) decimal.Decimal {
	v, _ := decimalFromAny(entry[key])
	return v
}

func decimalFromAny(raw interface{}) (decimal.Decimal, bool) {
	switch v := raw.(type) {
	case nil:
		return decimal.Zero, false
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	case float64:
		return decimal.NewFromFloat(v), true
	case float32:
		return decimal.NewFromFloat32(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case uint64:
		return decimal.NewFromUint64(v), true
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	case decimal.Decimal:
		return v, true
	default:
		return decimal.Zero, false
	}
}

// Scan implements sql.Scanner so properties round-trip through jsonb columns
func (p *Properties) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("invalid type for jsonb properties")
	}
	return json.Unmarshal(bytes, p)
}

// Value implements driver.Valuer
func (p Properties) Value() (driver.Value, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}
