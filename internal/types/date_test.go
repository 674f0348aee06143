package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAddClampedDate(t *testing.T) {
	tests := []struct {
		name     string
		start    time.Time
		years    int
		months   int
		days     int
		expected time.Time
	}{
		{
			name:     "jan 31 plus one month clamps to feb 28",
			start:    date(2025, time.January, 31),
			months:   1,
			expected: date(2025, time.February, 28),
		},
		{
			name:     "jan 31 plus one month in leap year clamps to feb 29",
			start:    date(2024, time.January, 31),
			months:   1,
			expected: date(2024, time.February, 29),
		},
		{
			name:     "mar 31 plus one month clamps to apr 30",
			start:    date(2025, time.March, 31),
			months:   1,
			expected: date(2025, time.April, 30),
		},
		{
			name:     "mid month unaffected",
			start:    date(2025, time.January, 15),
			months:   1,
			expected: date(2025, time.February, 15),
		},
		{
			name:     "november plus two months rolls the year",
			start:    date(2025, time.November, 30),
			months:   2,
			expected: date(2026, time.January, 30),
		},
		{
			name:     "negative month walks backwards",
			start:    date(2025, time.March, 31),
			months:   -1,
			expected: date(2025, time.February, 28),
		},
		{
			name:     "plain day addition",
			start:    date(2025, time.January, 1),
			days:     45,
			expected: date(2025, time.February, 15),
		},
		{
			name:     "feb 29 plus one year clamps to feb 28",
			start:    date(2024, time.February, 29),
			years:    1,
			expected: date(2025, time.February, 28),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := AddClampedDate(tc.start, tc.years, tc.months, tc.days)
			assert.True(t, tc.expected.Equal(got), "expected %s, got %s", tc.expected, got)
		})
	}
}

func TestAddBillingPeriod(t *testing.T) {
	start := date(2025, time.January, 31)

	tests := []struct {
		name     string
		period   BillingPeriod
		count    int
		expected time.Time
	}{
		{name: "daily", period: BILLING_PERIOD_DAILY, count: 10, expected: date(2025, time.February, 10)},
		{name: "weekly", period: BILLING_PERIOD_WEEKLY, count: 2, expected: date(2025, time.February, 14)},
		{name: "monthly clamps", period: BILLING_PERIOD_MONTHLY, count: 1, expected: date(2025, time.February, 28)},
		{name: "quarterly", period: BILLING_PERIOD_QUARTERLY, count: 1, expected: date(2025, time.April, 30)},
		{name: "annual", period: BILLING_PERIOD_ANNUAL, count: 1, expected: date(2026, time.January, 31)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := AddBillingPeriod(start, tc.period, tc.count)
			require.NoError(t, err)
			assert.True(t, tc.expected.Equal(got), "expected %s, got %s", tc.expected, got)
		})
	}

	_, err := AddBillingPeriod(start, BILLING_PERIOD_MONTHLY, 0)
	assert.Error(t, err)
	_, err = AddBillingPeriod(start, BillingPeriod("FORTNIGHTLY"), 1)
	assert.Error(t, err)
}

func TestStartOfBillingPeriod(t *testing.T) {
	// Wednesday
	ref := time.Date(2025, time.June, 18, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		period   BillingPeriod
		expected time.Time
	}{
		{name: "daily", period: BILLING_PERIOD_DAILY, expected: date(2025, time.June, 18)},
		{name: "weekly starts monday", period: BILLING_PERIOD_WEEKLY, expected: date(2025, time.June, 16)},
		{name: "monthly", period: BILLING_PERIOD_MONTHLY, expected: date(2025, time.June, 1)},
		{name: "quarterly", period: BILLING_PERIOD_QUARTERLY, expected: date(2025, time.April, 1)},
		{name: "annual", period: BILLING_PERIOD_ANNUAL, expected: date(2025, time.January, 1)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := StartOfBillingPeriod(ref, tc.period)
			require.NoError(t, err)
			assert.True(t, tc.expected.Equal(got), "expected %s, got %s", tc.expected, got)
		})
	}

	// A Monday truncates to itself
	monday := date(2025, time.June, 16)
	got, err := StartOfBillingPeriod(monday, BILLING_PERIOD_WEEKLY)
	require.NoError(t, err)
	assert.True(t, monday.Equal(got))

	// A Sunday truncates back six days
	sunday := date(2025, time.June, 22)
	got, err = StartOfBillingPeriod(sunday, BILLING_PERIOD_WEEKLY)
	require.NoError(t, err)
	assert.True(t, monday.Equal(got))
}

func TestDaysBetween(t *testing.T) {
	assert.Equal(t, 28, DaysBetween(date(2025, time.February, 1), date(2025, time.March, 1)))
	assert.Equal(t, 0, DaysBetween(date(2025, time.June, 1), date(2025, time.June, 1)))
	assert.Equal(t, -5, DaysBetween(date(2025, time.June, 6), date(2025, time.June, 1)))

	// Clock time below the date boundary does not count as a day
	start := time.Date(2025, time.June, 1, 23, 0, 0, 0, time.UTC)
	end := time.Date(2025, time.June, 2, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, 1, DaysBetween(start, end))
}
