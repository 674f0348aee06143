package types

import (
	"fmt"
	"time"
)

// AddBillingPeriod advances the given start time by `count` billing period
// units using explicit calendar arithmetic, so months keep their variable
// length and month-end dates clamp to the shorter month's last day.
// For example:
// - MONTHLY with count 2 adds two calendar months.
// - WEEKLY with count 3 adds 21 days.
// - Jan 31 + 1 MONTHLY lands on Feb 28 (or 29 in a leap year).
func AddBillingPeriod(start time.Time, period BillingPeriod, count int) (time.Time, error) {
	if count <= 0 {
		return start, fmt.Errorf("billing period count must be a positive integer, got %d", count)
	}

	switch period {
	case BILLING_PERIOD_DAILY:
		return AddClampedDate(start, 0, 0, count), nil
	case BILLING_PERIOD_WEEKLY:
		return AddClampedDate(start, 0, 0, 7*count), nil
	case BILLING_PERIOD_MONTHLY:
		return AddClampedDate(start, 0, count, 0), nil
	case BILLING_PERIOD_QUARTERLY:
		return AddClampedDate(start, 0, 3*count, 0), nil
	case BILLING_PERIOD_ANNUAL:
		return AddClampedDate(start, count, 0, 0), nil
	default:
		return start, fmt.Errorf("invalid billing period type: %s", period)
	}
}

// SubtractBillingPeriod walks one interval backwards. The clamped forward
// arithmetic is not symmetric, so this is only used to rewind an anchor past
// a reference date and never to derive a period end.
func SubtractBillingPeriod(start time.Time, period BillingPeriod, count int) (time.Time, error) {
	if count <= 0 {
		return start, fmt.Errorf("billing period count must be a positive integer, got %d", count)
	}

	switch period {
	case BILLING_PERIOD_DAILY:
		return start.AddDate(0, 0, -count), nil
	case BILLING_PERIOD_WEEKLY:
		return start.AddDate(0, 0, -7*count), nil
	case BILLING_PERIOD_MONTHLY:
		return AddClampedDate(start, 0, -count, 0), nil
	case BILLING_PERIOD_QUARTERLY:
		return AddClampedDate(start, 0, -3*count, 0), nil
	case BILLING_PERIOD_ANNUAL:
		return AddClampedDate(start, -count, 0, 0), nil
	default:
		return start, fmt.Errorf("invalid billing period type: %s", period)
	}
}

// StartOfBillingPeriod truncates t to the start of the calendar unit that
// contains it. Weeks start on Monday; quarters on Jan/Apr/Jul/Oct 1.
func StartOfBillingPeriod(t time.Time, period BillingPeriod) (time.Time, error) {
	y, m, d := t.Date()

	switch period {
	case BILLING_PERIOD_DAILY:
		return time.Date(y, m, d, 0, 0, 0, 0, t.Location()), nil
	case BILLING_PERIOD_WEEKLY:
		weekday := int(t.Weekday())
		// time.Weekday has Sunday = 0, billing weeks start Monday
		offset := (weekday + 6) % 7
		return time.Date(y, m, d-offset, 0, 0, 0, 0, t.Location()), nil
	case BILLING_PERIOD_MONTHLY:
		return time.Date(y, m, 1, 0, 0, 0, 0, t.Location()), nil
	case BILLING_PERIOD_QUARTERLY:
		quarterStart := time.Month(((int(m)-1)/3)*3 + 1)
		return time.Date(y, quarterStart, 1, 0, 0, 0, 0, t.Location()), nil
	case BILLING_PERIOD_ANNUAL:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, t.Location()), nil
	default:
		return t, fmt.Errorf("invalid billing period type: %s", period)
	}
}

// AddClampedDate adds the given years, months and days to t, clamping the day
// of month to the last valid day instead of letting it roll over the way
// time.AddDate does (Jan 31 + 1 month stays Feb 28/29 rather than Mar 2/3).
func AddClampedDate(t time.Time, years, months, days int) time.Time {
	y, m, d := t.Date()
	h, min, sec := t.Clock()

	newY := y + years
	newM := time.Month(int(m) + months)

	// Normalize month overflow in either direction, e.g. November + 2 months
	// lands on January of the next year.
	for newM > 12 {
		newM -= 12
		newY++
	}
	for newM < 1 {
		newM += 12
		newY--
	}

	// Find the last valid day of the target month
	firstOfNextMonth := time.Date(newY, newM+1, 1, 0, 0, 0, 0, t.Location())
	lastDay := firstOfNextMonth.AddDate(0, 0, -1).Day()

	newD := d
	if newD > lastDay {
		newD = lastDay
	}

	result := time.Date(newY, newM, newD, h, min, sec, t.Nanosecond(), t.Location())
	if days != 0 {
		result = result.AddDate(0, 0, days)
	}
	return result
}

// DaysBetween counts whole calendar days between two instants, using date
// boundaries rather than fractional durations. The result is negative when
// end precedes start.
func DaysBetween(start, end time.Time) int {
	startDay := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	endDay := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	return int(endDay.Sub(startDay).Hours() / 24)
}
