package service

import (
	"time"

	"github.com/billforge/billforge/internal/domain/subscription"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/logger"
	"github.com/billforge/billforge/internal/types"
	"github.com/shopspring/decimal"
)

// BillingDatesService derives billing period boundaries, trial windows and
// prorated amounts from a subscription. The service is stateless; every
// method is a pure function of its inputs.
type BillingDatesService interface {
	// CalculateBillingPeriod returns the [start, end) billing period that
	// contains referenceTime
	CalculateBillingPeriod(sub *subscription.Subscription, referenceTime time.Time) (time.Time, time.Time, error)

	// CalculateChargesPeriod intersects a billing period with the
	// subscription's lifetime, narrowing the usage window when the
	// subscription starts or ends mid-period
	CalculateChargesPeriod(sub *subscription.Subscription, periodStart, periodEnd time.Time) (time.Time, time.Time)

	// TrialEndDate returns when the trial ends, nil when no trial was granted
	TrialEndDate(sub *subscription.Subscription) *time.Time

	// IsInTrial reports whether the subscription is in trial at the given time
	IsInTrial(sub *subscription.Subscription, at time.Time) bool

	// NextBillingDate returns the next date an invoice is due. A running
	// trial takes precedence over the period end.
	NextBillingDate(sub *subscription.Subscription, at time.Time) (time.Time, error)

	// ProrateAmount scales amount by the day-count ratio of the prorated span
	// to the full period, rounding half up at the currency's precision. Spans
	// or periods of zero or negative days yield zero.
	ProrateAmount(amount decimal.Decimal, currency string, periodStart, periodEnd, prorateStart, prorateEnd time.Time) decimal.Decimal
}

type billingDatesService struct {
	logger *logger.Logger
}

func NewBillingDatesService(log *logger.Logger) BillingDatesService {
	return &billingDatesService{logger: log}
}

func (s *billingDatesService) CalculateBillingPeriod(sub *subscription.Subscription, referenceTime time.Time) (time.Time, time.Time, error) {
	referenceTime = referenceTime.UTC()

	switch sub.BillingTime {
	case types.BillingTimeCalendar:
		return s.calendarPeriod(sub, referenceTime)
	case types.BillingTimeAnniversary:
		return s.anniversaryPeriod(sub, referenceTime)
	default:
		return time.Time{}, time.Time{}, ierr.NewErrorf("invalid billing time: %s", sub.BillingTime).
			WithHint("Billing time must be CALENDAR or ANNIVERSARY").
			Mark(ierr.ErrValidation)
	}
}

func (s *billingDatesService) calendarPeriod(sub *subscription.Subscription, referenceTime time.Time) (time.Time, time.Time, error) {
	start, err := types.StartOfBillingPeriod(referenceTime, sub.BillingPeriod)
	if err != nil {
		return time.Time{}, time.Time{}, ierr.WithError(err).
			WithHint("Failed to derive calendar period start").
			Mark(ierr.ErrValidation)
	}
	end, err := types.AddBillingPeriod(start, sub.BillingPeriod, sub.PeriodCount())
	if err != nil {
		return time.Time{}, time.Time{}, ierr.WithError(err).
			WithHint("Failed to derive calendar period end").
			Mark(ierr.ErrValidation)
	}
	return start, end, nil
}

// anniversaryPeriod walks whole periods from the anchor until referenceTime
// falls in [start, end). Each step feeds its clamped result forward, so a
// Jan 31 anchor walks Jan 31 -> Feb 28 -> Mar 28 rather than re-deriving the
// 31st every month.
func (s *billingDatesService) anniversaryPeriod(sub *subscription.Subscription, referenceTime time.Time) (time.Time, time.Time, error) {
	start := sub.BillingAnchor()
	count := sub.PeriodCount()

	for referenceTime.Before(start) {
		prev, err := types.SubtractBillingPeriod(start, sub.BillingPeriod, count)
		if err != nil {
			return time.Time{}, time.Time{}, ierr.WithError(err).
				WithHint("Failed to rewind anniversary anchor").
				Mark(ierr.ErrValidation)
		}
		start = prev
	}

	for {
		end, err := types.AddBillingPeriod(start, sub.BillingPeriod, count)
		if err != nil {
			return time.Time{}, time.Time{}, ierr.WithError(err).
				WithHint("Failed to advance anniversary period").
				Mark(ierr.ErrValidation)
		}
		if referenceTime.Before(end) {
			return start, end, nil
		}
		start = end
	}
}

func (s *billingDatesService) CalculateChargesPeriod(sub *subscription.Subscription, periodStart, periodEnd time.Time) (time.Time, time.Time) {
	chargesStart := periodStart
	chargesEnd := periodEnd

	if sub.StartedAt != nil && sub.StartedAt.After(chargesStart) {
		chargesStart = sub.StartedAt.UTC()
	}
	if sub.EndingAt != nil && sub.EndingAt.Before(chargesEnd) {
		chargesEnd = sub.EndingAt.UTC()
	}
	return chargesStart, chargesEnd
}

func (s *billingDatesService) TrialEndDate(sub *subscription.Subscription) *time.Time {
	if sub.TrialEndedAt != nil {
		t := sub.TrialEndedAt.UTC()
		return &t
	}
	if sub.TrialPeriodDays <= 0 {
		return nil
	}
	end := sub.TrialAnchor().AddDate(0, 0, sub.TrialPeriodDays)
	return &end
}

func (s *billingDatesService) IsInTrial(sub *subscription.Subscription, at time.Time) bool {
	// An already-recorded trial end means the trial is over regardless of the
	// configured trial length
	if sub.TrialEndedAt != nil {
		return false
	}
	end := s.TrialEndDate(sub)
	if end == nil {
		return false
	}
	return at.Before(*end)
}

func (s *billingDatesService) NextBillingDate(sub *subscription.Subscription, at time.Time) (time.Time, error) {
	if s.IsInTrial(sub, at) {
		return *s.TrialEndDate(sub), nil
	}
	_, end, err := s.CalculateBillingPeriod(sub, at)
	if err != nil {
		return time.Time{}, err
	}
	return end, nil
}

func (s *billingDatesService) ProrateAmount(amount decimal.Decimal, currency string, periodStart, periodEnd, prorateStart, prorateEnd time.Time) decimal.Decimal {
	periodDays := types.DaysBetween(periodStart, periodEnd)
	prorateDays := types.DaysBetween(prorateStart, prorateEnd)

	if periodDays <= 0 || prorateDays <= 0 {
		return decimal.Zero
	}
	if prorateDays >= periodDays {
		return amount
	}

	// Rounding happens only at this final step so intermediate precision is
	// never lost
	return amount.
		Mul(decimal.NewFromInt(int64(prorateDays))).
		DivRound(decimal.NewFromInt(int64(periodDays)), types.GetCurrencyPrecision(currency))
}
