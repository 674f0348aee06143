package subscription

import (
	"time"

	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/types"
)

// Subscription binds a customer to a plan with a billing cadence. The dates
// service derives all period boundaries from the anchor fields here.
type Subscription struct {
	// ID is the unique identifier for the subscription
	ID string `db:"id" json:"id"`

	// CustomerID is the identifier of the customer in our system
	CustomerID string `db:"customer_id" json:"customer_id"`

	// PlanID is the plan whose charges apply to this subscription
	PlanID string `db:"plan_id" json:"plan_id"`

	// Currency 3 digit ISO currency code in lowercase ex usd, eur, gbp
	Currency string `db:"currency" json:"currency"`

	// BillingTime is calendar or anniversary
	BillingTime types.BillingTime `db:"billing_time" json:"billing_time"`

	// BillingPeriod is the billing period for the subscription ex MONTHLY, ANNUAL
	BillingPeriod types.BillingPeriod `db:"billing_period" json:"billing_period"`

	// BillingPeriodCount is the total number of billing periods per cycle ex 3
	// for a quarterly plan using MONTHLY periods
	BillingPeriodCount int `db:"billing_period_count" json:"billing_period_count"`

	// StartedAt is when the subscription became active
	StartedAt *time.Time `db:"started_at" json:"started_at,omitempty"`

	// EndingAt is when the subscription terminates, nil while open-ended
	EndingAt *time.Time `db:"ending_at" json:"ending_at,omitempty"`

	// SubscriptionAt is the anniversary anchor. Falls back to StartedAt and
	// then CreatedAt when unset.
	SubscriptionAt *time.Time `db:"subscription_at" json:"subscription_at,omitempty"`

	// TrialEndedAt marks the end of the trial when one was granted
	TrialEndedAt *time.Time `db:"trial_ended_at" json:"trial_ended_at,omitempty"`

	// TrialPeriodDays is the trial length granted at creation, 0 for none
	TrialPeriodDays int `db:"trial_period_days" json:"trial_period_days"`

	// PayInAdvance bills recurring fees at the start of each period instead
	// of the end
	PayInAdvance bool `db:"pay_in_advance" json:"pay_in_advance"`

	types.BaseModel
}

// NewSubscription creates a subscription with defaults
func NewSubscription(customerID, planID, tenantID string) *Subscription {
	return &Subscription{
		ID:                 types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		CustomerID:         customerID,
		PlanID:             planID,
		BillingTime:        types.BillingTimeCalendar,
		BillingPeriod:      types.BILLING_PERIOD_MONTHLY,
		BillingPeriodCount: 1,
		BaseModel:          types.GetDefaultBaseModel(tenantID),
	}
}

// BillingAnchor is the reference instant for anniversary billing periods:
// activation date first, then the explicit subscription date, then creation.
func (s *Subscription) BillingAnchor() time.Time {
	if s.StartedAt != nil {
		return s.StartedAt.UTC()
	}
	if s.SubscriptionAt != nil {
		return s.SubscriptionAt.UTC()
	}
	return s.CreatedAt.UTC()
}

// TrialAnchor is the reference instant trials count from. Unlike the billing
// anchor, the explicit subscription date wins over the activation date.
func (s *Subscription) TrialAnchor() time.Time {
	if s.SubscriptionAt != nil {
		return s.SubscriptionAt.UTC()
	}
	if s.StartedAt != nil {
		return s.StartedAt.UTC()
	}
	return s.CreatedAt.UTC()
}

// PeriodCount returns the billing period multiplier, never less than 1
func (s *Subscription) PeriodCount() int {
	if s.BillingPeriodCount < 1 {
		return 1
	}
	return s.BillingPeriodCount
}

func (s *Subscription) Validate() error {
	if s.CustomerID == "" {
		return ierr.NewError("customer_id is required").
			WithHint("Subscription must belong to a customer").
			Mark(ierr.ErrValidation)
	}
	if s.PlanID == "" {
		return ierr.NewError("plan_id is required").
			WithHint("Subscription must reference a plan").
			Mark(ierr.ErrValidation)
	}
	if !s.BillingPeriod.Validate() {
		return ierr.NewErrorf("invalid billing period: %s", s.BillingPeriod).
			WithHint("Unknown billing period").
			Mark(ierr.ErrValidation)
	}
	if !s.BillingTime.Validate() {
		return ierr.NewErrorf("invalid billing time: %s", s.BillingTime).
			WithHint("Billing time must be CALENDAR or ANNIVERSARY").
			Mark(ierr.ErrValidation)
	}
	if s.BillingPeriodCount < 1 {
		return ierr.NewError("billing_period_count must be at least 1").
			WithReportableDetails(map[string]any{
				"billing_period_count": s.BillingPeriodCount,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
