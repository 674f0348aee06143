package charge

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPropertiesGetDecimal(t *testing.T) {
	props := Properties{
		"string":    "12.5",
		"float":     2.5,
		"int":       7,
		"malformed": "not-a-number",
		"nil":       nil,
		"list":      []interface{}{"1"},
	}

	assert.True(t, dec("12.5").Equal(props.GetDecimal("string")))
	assert.True(t, dec("2.5").Equal(props.GetDecimal("float")))
	assert.True(t, dec("7").Equal(props.GetDecimal("int")))

	// Missing and malformed values degrade to zero
	assert.True(t, props.GetDecimal("missing").IsZero())
	assert.True(t, props.GetDecimal("malformed").IsZero())
	assert.True(t, props.GetDecimal("nil").IsZero())
	assert.True(t, props.GetDecimal("list").IsZero())

	_, ok := props.GetDecimalOk("missing")
	assert.False(t, ok)
	_, ok = props.GetDecimalOk("malformed")
	assert.False(t, ok)
	v, ok := props.GetDecimalOk("string")
	assert.True(t, ok)
	assert.True(t, dec("12.5").Equal(v))
}

func TestPropertiesGetString(t *testing.T) {
	props := Properties{
		"set":   "value",
		"empty": "",
		"num":   42,
	}

	assert.Equal(t, "value", props.GetString("set", "fallback"))
	assert.Equal(t, "fallback", props.GetString("empty", "fallback"))
	assert.Equal(t, "fallback", props.GetString("num", "fallback"))
	assert.Equal(t, "fallback", props.GetString("missing", "fallback"))
}

func TestPropertiesGetTierRanges(t *testing.T) {
	props := Properties{
		"graduated_ranges": []interface{}{
			map[string]interface{}{"from_value": "0", "to_value": "100", "per_unit_amount": "1", "flat_amount": "5"},
			map[string]interface{}{"from_value": "101", "rate": "2.5"},
			// malformed entries are dropped, not fatal
			map[string]interface{}{"to_value": "200"},
			"not a map",
			map[string]interface{}{"from_value": "bogus"},
		},
	}

	ranges := props.GetTierRanges("graduated_ranges")
	require.Len(t, ranges, 2)

	assert.True(t, ranges[0].FromValue.IsZero())
	require.NotNil(t, ranges[0].ToValue)
	assert.True(t, dec("100").Equal(*ranges[0].ToValue))
	assert.True(t, dec("1").Equal(ranges[0].PerUnitAmount))
	assert.True(t, dec("5").Equal(ranges[0].FlatAmount))

	assert.True(t, dec("101").Equal(ranges[1].FromValue))
	assert.Nil(t, ranges[1].ToValue)
	assert.True(t, dec("2.5").Equal(ranges[1].Rate))

	assert.Nil(t, props.GetTierRanges("missing"))
	assert.Nil(t, Properties{"graduated_ranges": "scalar"}.GetTierRanges("graduated_ranges"))
}

func TestPropertiesGetLegacyTiers(t *testing.T) {
	props := Properties{
		"tiers": []interface{}{
			map[string]interface{}{"up_to": "100", "unit_price": "1", "flat_amount": "2"},
			map[string]interface{}{"unit_price": "0.5"},
		},
	}

	tiers := props.GetLegacyTiers()
	require.Len(t, tiers, 2)

	require.NotNil(t, tiers[0].UpTo)
	assert.True(t, dec("100").Equal(*tiers[0].UpTo))
	assert.True(t, dec("1").Equal(tiers[0].UnitPrice))
	assert.True(t, dec("2").Equal(tiers[0].FlatAmount))
	assert.Nil(t, tiers[1].UpTo)

	assert.Nil(t, Properties{}.GetLegacyTiers())
}

func TestTierRangeCapacity(t *testing.T) {
	to := dec("100")
	closed := TierRange{FromValue: decimal.Zero, ToValue: &to}
	capacity := closed.Capacity()
	require.NotNil(t, capacity)
	// both bounds are inclusive
	assert.True(t, dec("101").Equal(*capacity))

	open := TierRange{FromValue: dec("100")}
	assert.Nil(t, open.Capacity())

	inverted := TierRange{FromValue: dec("10"), ToValue: &to}
	capacity = inverted.Capacity()
	require.NotNil(t, capacity)
	assert.True(t, dec("91").Equal(*capacity))
}

func TestTierRangeContains(t *testing.T) {
	to := dec("100")
	tier := TierRange{FromValue: dec("10"), ToValue: &to}

	assert.False(t, tier.Contains(dec("9")))
	assert.True(t, tier.Contains(dec("10")))
	assert.True(t, tier.Contains(dec("100")))
	assert.False(t, tier.Contains(dec("101")))

	open := TierRange{FromValue: dec("10")}
	assert.True(t, open.Contains(dec("1000000")))
}

func TestChargeClampAmount(t *testing.T) {
	min := dec("10")
	max := dec("100")
	c := &Charge{MinAmount: &min, MaxAmount: &max}

	assert.True(t, dec("10").Equal(c.ClampAmount(dec("5"))))
	assert.True(t, dec("100").Equal(c.ClampAmount(dec("500"))))
	assert.True(t, dec("50").Equal(c.ClampAmount(dec("50"))))

	unclamped := &Charge{}
	assert.True(t, dec("500").Equal(unclamped.ClampAmount(dec("500"))))
}
