package charge

import (
	"github.com/billforge/billforge/internal/types"
	"github.com/shopspring/decimal"
)

// Charge links a billable metric to a pricing model and its configuration.
// Charges are read-only input to the pricing core.
type Charge struct {
	// ID is the unique identifier for the charge
	ID string `db:"id" json:"id"`

	// PlanID is the plan the charge belongs to
	PlanID string `db:"plan_id" json:"plan_id"`

	// MeterCode references the billable metric; empty for flat fees
	MeterCode string `db:"meter_code" json:"meter_code"`

	// BillingModel selects the calculator ex STANDARD, GRADUATED, VOLUME
	BillingModel types.BillingModel `db:"billing_model" json:"billing_model"`

	// Currency 3 digit ISO currency code in lowercase ex usd, eur, gbp
	Currency string `db:"currency" json:"currency"`

	// Properties is the per-model configuration bag ex amount, tier lists
	Properties Properties `db:"properties,jsonb" json:"properties"`

	// InvoiceDisplayName overrides the meter name on invoice line items
	InvoiceDisplayName string `db:"invoice_display_name" json:"invoice_display_name"`

	// MinAmount and MaxAmount clamp the computed amount at invoicing time
	MinAmount *decimal.Decimal `db:"min_amount" json:"min_amount,omitempty"`
	MaxAmount *decimal.Decimal `db:"max_amount" json:"max_amount,omitempty"`

	// Filters narrow the metric's event population for this charge only,
	// merged over the meter's own filters
	Filters map[string][]string `db:"filters,jsonb" json:"filters,omitempty"`

	types.BaseModel
}

// NewCharge creates a charge with defaults
func NewCharge(planID string, model types.BillingModel, tenantID string) *Charge {
	return &Charge{
		ID:           types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CHARGE),
		PlanID:       planID,
		BillingModel: model,
		Properties:   Properties{},
		BaseModel:    types.GetDefaultBaseModel(tenantID),
	}
}

// ClampAmount applies the charge's min/max bounds to a computed amount
func (c *Charge) ClampAmount(amount decimal.Decimal) decimal.Decimal {
	if c.MinAmount != nil && amount.LessThan(*c.MinAmount) {
		return *c.MinAmount
	}
	if c.MaxAmount != nil && amount.GreaterThan(*c.MaxAmount) {
		return *c.MaxAmount
	}
	return amount
}
