package service

import (
	"testing"
	"time"

	"github.com/billforge/billforge/internal/domain/subscription"
	"github.com/billforge/billforge/internal/logger"
	"github.com/billforge/billforge/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newTestSubscription(billingTime types.BillingTime, startedAt time.Time) *subscription.Subscription {
	sub := subscription.NewSubscription("cust-1", "plan-1", "tenant-1")
	sub.BillingTime = billingTime
	sub.BillingPeriod = types.BILLING_PERIOD_MONTHLY
	sub.StartedAt = &startedAt
	return sub
}

func TestCalculateBillingPeriod_Anniversary(t *testing.T) {
	svc := NewBillingDatesService(logger.NewNopLogger())

	t.Run("month end clamping", func(t *testing.T) {
		sub := newTestSubscription(types.BillingTimeAnniversary, date(2025, time.January, 31))

		start, end, err := svc.CalculateBillingPeriod(sub, date(2025, time.February, 15))
		require.NoError(t, err)
		assert.True(t, date(2025, time.January, 31).Equal(start), "start %s", start)
		assert.True(t, date(2025, time.February, 28).Equal(end), "end %s", end)
	})

	t.Run("clamped day anchors subsequent periods", func(t *testing.T) {
		sub := newTestSubscription(types.BillingTimeAnniversary, date(2025, time.January, 31))

		// The walk proceeds Jan 31 -> Feb 28 -> Mar 28, not back to the 31st
		start, end, err := svc.CalculateBillingPeriod(sub, date(2025, time.March, 10))
		require.NoError(t, err)
		assert.True(t, date(2025, time.February, 28).Equal(start), "start %s", start)
		assert.True(t, date(2025, time.March, 28).Equal(end), "end %s", end)
	})

	t.Run("reference before anchor walks backwards", func(t *testing.T) {
		sub := newTestSubscription(types.BillingTimeAnniversary, date(2025, time.June, 15))

		start, end, err := svc.CalculateBillingPeriod(sub, date(2025, time.May, 20))
		require.NoError(t, err)
		assert.True(t, date(2025, time.May, 15).Equal(start), "start %s", start)
		assert.True(t, date(2025, time.June, 15).Equal(end), "end %s", end)
	})

	t.Run("reference at period start belongs to that period", func(t *testing.T) {
		sub := newTestSubscription(types.BillingTimeAnniversary, date(2025, time.June, 15))

		start, end, err := svc.CalculateBillingPeriod(sub, date(2025, time.June, 15))
		require.NoError(t, err)
		assert.True(t, date(2025, time.June, 15).Equal(start))
		assert.True(t, date(2025, time.July, 15).Equal(end))
	})

	t.Run("multi month period count", func(t *testing.T) {
		sub := newTestSubscription(types.BillingTimeAnniversary, date(2025, time.January, 15))
		sub.BillingPeriodCount = 3

		start, end, err := svc.CalculateBillingPeriod(sub, date(2025, time.May, 1))
		require.NoError(t, err)
		assert.True(t, date(2025, time.April, 15).Equal(start), "start %s", start)
		assert.True(t, date(2025, time.July, 15).Equal(end), "end %s", end)
	})
}

func TestCalculateBillingPeriod_Calendar(t *testing.T) {
	svc := NewBillingDatesService(logger.NewNopLogger())
	sub := newTestSubscription(types.BillingTimeCalendar, date(2025, time.January, 31))

	start, end, err := svc.CalculateBillingPeriod(sub, date(2025, time.February, 15))
	require.NoError(t, err)
	assert.True(t, date(2025, time.February, 1).Equal(start))
	assert.True(t, date(2025, time.March, 1).Equal(end))

	// Recomputing with any reference inside [start, end) is idempotent
	for _, ref := range []time.Time{start, start.Add(12 * time.Hour), end.Add(-time.Second)} {
		s, e, err := svc.CalculateBillingPeriod(sub, ref)
		require.NoError(t, err)
		assert.True(t, start.Equal(s), "ref %s gave start %s", ref, s)
		assert.True(t, end.Equal(e), "ref %s gave end %s", ref, e)
	}
}

func TestCalculateChargesPeriod(t *testing.T) {
	svc := NewBillingDatesService(logger.NewNopLogger())
	periodStart := date(2025, time.June, 1)
	periodEnd := date(2025, time.July, 1)

	t.Run("fully active subscription keeps the period", func(t *testing.T) {
		sub := newTestSubscription(types.BillingTimeCalendar, date(2025, time.January, 1))
		start, end := svc.CalculateChargesPeriod(sub, periodStart, periodEnd)
		assert.True(t, periodStart.Equal(start))
		assert.True(t, periodEnd.Equal(end))
	})

	t.Run("mid period start narrows the window", func(t *testing.T) {
		sub := newTestSubscription(types.BillingTimeCalendar, date(2025, time.June, 10))
		start, end := svc.CalculateChargesPeriod(sub, periodStart, periodEnd)
		assert.True(t, date(2025, time.June, 10).Equal(start))
		assert.True(t, periodEnd.Equal(end))
	})

	t.Run("mid period end narrows the window", func(t *testing.T) {
		sub := newTestSubscription(types.BillingTimeCalendar, date(2025, time.January, 1))
		ending := date(2025, time.June, 20)
		sub.EndingAt = &ending
		start, end := svc.CalculateChargesPeriod(sub, periodStart, periodEnd)
		assert.True(t, periodStart.Equal(start))
		assert.True(t, ending.Equal(end))
	})
}

func TestTrial(t *testing.T) {
	svc := NewBillingDatesService(logger.NewNopLogger())

	t.Run("no trial configured", func(t *testing.T) {
		sub := newTestSubscription(types.BillingTimeCalendar, date(2025, time.June, 1))
		assert.Nil(t, svc.TrialEndDate(sub))
		assert.False(t, svc.IsInTrial(sub, date(2025, time.June, 2)))
	})

	t.Run("trial days from anchor", func(t *testing.T) {
		sub := newTestSubscription(types.BillingTimeCalendar, date(2025, time.June, 1))
		sub.TrialPeriodDays = 14

		end := svc.TrialEndDate(sub)
		require.NotNil(t, end)
		assert.True(t, date(2025, time.June, 15).Equal(*end))
		assert.True(t, svc.IsInTrial(sub, date(2025, time.June, 10)))
		assert.False(t, svc.IsInTrial(sub, date(2025, time.June, 15)))
	})

	t.Run("subscription_at wins over started_at for trials", func(t *testing.T) {
		sub := newTestSubscription(types.BillingTimeCalendar, date(2025, time.June, 1))
		subscribedAt := date(2025, time.May, 25)
		sub.SubscriptionAt = &subscribedAt
		sub.TrialPeriodDays = 10

		end := svc.TrialEndDate(sub)
		require.NotNil(t, end)
		assert.True(t, date(2025, time.June, 4).Equal(*end))
	})

	t.Run("recorded trial end short circuits", func(t *testing.T) {
		sub := newTestSubscription(types.BillingTimeCalendar, date(2025, time.June, 1))
		sub.TrialPeriodDays = 30
		ended := date(2025, time.June, 5)
		sub.TrialEndedAt = &ended

		assert.False(t, svc.IsInTrial(sub, date(2025, time.June, 10)))
		end := svc.TrialEndDate(sub)
		require.NotNil(t, end)
		assert.True(t, ended.Equal(*end))
	})
}

func TestNextBillingDate(t *testing.T) {
	svc := NewBillingDatesService(logger.NewNopLogger())

	t.Run("trial end takes precedence", func(t *testing.T) {
		sub := newTestSubscription(types.BillingTimeCalendar, date(2025, time.June, 1))
		sub.TrialPeriodDays = 20

		next, err := svc.NextBillingDate(sub, date(2025, time.June, 10))
		require.NoError(t, err)
		assert.True(t, date(2025, time.June, 21).Equal(next))
	})

	t.Run("period end otherwise", func(t *testing.T) {
		sub := newTestSubscription(types.BillingTimeCalendar, date(2025, time.June, 1))

		next, err := svc.NextBillingDate(sub, date(2025, time.June, 10))
		require.NoError(t, err)
		assert.True(t, date(2025, time.July, 1).Equal(next))
	})
}

func TestProrateAmount(t *testing.T) {
	svc := NewBillingDatesService(logger.NewNopLogger())
	periodStart := date(2025, time.June, 1)
	periodEnd := date(2025, time.July, 1)
	amount := decimal.NewFromInt(30)

	t.Run("full period is identity", func(t *testing.T) {
		got := svc.ProrateAmount(amount, "usd", periodStart, periodEnd, periodStart, periodEnd)
		assert.True(t, amount.Equal(got), "got %s", got)
	})

	t.Run("half period", func(t *testing.T) {
		got := svc.ProrateAmount(amount, "usd", periodStart, periodEnd, periodStart, date(2025, time.June, 16))
		assert.True(t, decimal.NewFromInt(15).Equal(got), "got %s", got)
	})

	t.Run("rounds half up at currency precision", func(t *testing.T) {
		got := svc.ProrateAmount(decimal.NewFromInt(10), "usd", periodStart, periodEnd, periodStart, date(2025, time.June, 2))
		// 10 * 1/30 = 0.3333...
		assert.True(t, decimal.NewFromFloat(0.33).Equal(got), "got %s", got)
	})

	t.Run("zero decimal currency", func(t *testing.T) {
		got := svc.ProrateAmount(decimal.NewFromInt(100), "jpy", periodStart, periodEnd, periodStart, date(2025, time.June, 16))
		assert.True(t, decimal.NewFromInt(50).Equal(got), "got %s", got)
	})

	t.Run("degenerate spans yield zero", func(t *testing.T) {
		assert.True(t, svc.ProrateAmount(amount, "usd", periodStart, periodEnd, periodStart, periodStart).IsZero())
		assert.True(t, svc.ProrateAmount(amount, "usd", periodStart, periodEnd, periodEnd, periodStart).IsZero())
		assert.True(t, svc.ProrateAmount(amount, "usd", periodStart, periodStart, periodStart, periodEnd).IsZero())
	})
}
