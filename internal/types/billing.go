package types

// BillingModel is the pricing model for a charge ex STANDARD, GRADUATED, VOLUME
type BillingModel string

// BillingPeriod is the billing interval for a subscription ex MONTHLY, ANNUAL
type BillingPeriod string

// BillingTime controls how billing periods are anchored for a subscription
type BillingTime string

const (
	// Per-unit price with optional min/max clamps
	BILLING_MODEL_STANDARD BillingModel = "STANDARD"

	// Progressive tiers, each consumed range priced at its own rate
	// ex 1-100 emails for $1 each, 101+ for $0.50 each
	BILLING_MODEL_GRADUATED BillingModel = "GRADUATED"

	// All units priced at the rate of the single tier the total falls into
	BILLING_MODEL_VOLUME BillingModel = "VOLUME"

	// Blocks of units ex 1000 emails for $100
	BILLING_MODEL_PACKAGE BillingModel = "PACKAGE"

	// Percentage of a monetary base plus an optional per-event fixed fee
	BILLING_MODEL_PERCENTAGE BillingModel = "PERCENTAGE"

	// Progressive tiers over a monetary base with percentage rates
	BILLING_MODEL_GRADUATED_PERCENTAGE BillingModel = "GRADUATED_PERCENTAGE"

	// Operator-supplied amount, falling back to unit price times units
	BILLING_MODEL_CUSTOM BillingModel = "CUSTOM"

	// Price carried on the events themselves
	BILLING_MODEL_DYNAMIC BillingModel = "DYNAMIC"

	BILLING_PERIOD_DAILY     BillingPeriod = "DAILY"
	BILLING_PERIOD_WEEKLY    BillingPeriod = "WEEKLY"
	BILLING_PERIOD_MONTHLY   BillingPeriod = "MONTHLY"
	BILLING_PERIOD_QUARTERLY BillingPeriod = "QUARTERLY"
	BILLING_PERIOD_ANNUAL    BillingPeriod = "ANNUAL"

	// BillingTimeCalendar aligns periods to calendar unit boundaries
	// (weeks start Monday, months on the 1st, years on Jan 1)
	BillingTimeCalendar BillingTime = "CALENDAR"

	// BillingTimeAnniversary anchors periods to the subscription's start date
	BillingTimeAnniversary BillingTime = "ANNIVERSARY"

	// MAX_BILLING_AMOUNT is the maximum allowed billing amount (as a safeguard)
	MAX_BILLING_AMOUNT = 1000000000000 // 1 trillion
)

// Validate checks if the billing period is a known interval
func (p BillingPeriod) Validate() bool {
	switch p {
	case BILLING_PERIOD_DAILY, BILLING_PERIOD_WEEKLY, BILLING_PERIOD_MONTHLY,
		BILLING_PERIOD_QUARTERLY, BILLING_PERIOD_ANNUAL:
		return true
	default:
		return false
	}
}

// Validate checks if the billing time is known
func (t BillingTime) Validate() bool {
	return t == BillingTimeCalendar || t == BillingTimeAnniversary
}
