package invoice

import (
	"context"
	"time"

	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/types"
	"github.com/shopspring/decimal"
)

// InvoiceStatus is the lifecycle state of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusFinalized InvoiceStatus = "finalized"
	InvoiceStatusVoided    InvoiceStatus = "voided"
)

// Invoice is the priced result of one subscription billing period
type Invoice struct {
	// ID is the unique identifier for the invoice
	ID string `db:"id" json:"id"`

	// SubscriptionID is the subscription the invoice bills
	SubscriptionID string `db:"subscription_id" json:"subscription_id"`

	// CustomerID is the identifier of the customer in our system
	CustomerID string `db:"customer_id" json:"customer_id"`

	// Currency 3 digit ISO currency code in lowercase ex usd, eur, gbp
	Currency string `db:"currency" json:"currency"`

	// PeriodStart and PeriodEnd bound the usage window the invoice covers
	PeriodStart time.Time `db:"period_start" json:"period_start"`
	PeriodEnd   time.Time `db:"period_end" json:"period_end"`

	// InvoiceStatus is the lifecycle state ex draft, finalized
	InvoiceStatus InvoiceStatus `db:"invoice_status" json:"invoice_status"`

	// Total is the sum of all line item amounts, rounded to the currency's
	// precision
	Total decimal.Decimal `db:"total" json:"total"`

	// LineItems are the priced charges on the invoice
	LineItems []*LineItem `json:"line_items"`

	types.BaseModel
}

// LineItem is one priced charge on an invoice
type LineItem struct {
	// ID is the unique identifier for the line item
	ID string `db:"id" json:"id"`

	// InvoiceID is the parent invoice
	InvoiceID string `db:"invoice_id" json:"invoice_id"`

	// ChargeID is the charge that produced this line
	ChargeID string `db:"charge_id" json:"charge_id"`

	// MeterCode is the billable metric behind the line, empty for flat fees
	MeterCode string `db:"meter_code" json:"meter_code"`

	// DisplayName is the human-readable label, the charge's display name or
	// the meter name
	DisplayName string `db:"display_name" json:"display_name"`

	// Quantity is the aggregated usage quantity the line bills
	Quantity decimal.Decimal `db:"quantity" json:"quantity"`

	// UnitPrice is the per-unit price behind Amount: the configured price for
	// flat-rate models, the effective rate for tiered and percentage models
	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`

	// Amount is the priced amount for the line
	Amount decimal.Decimal `db:"amount" json:"amount"`

	// Currency 3 digit ISO currency code in lowercase ex usd, eur, gbp
	Currency string `db:"currency" json:"currency"`

	types.BaseModel
}

// NewInvoice creates a draft invoice for a subscription period
func NewInvoice(subscriptionID, customerID, currency, tenantID string, periodStart, periodEnd time.Time) *Invoice {
	return &Invoice{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE),
		SubscriptionID: subscriptionID,
		CustomerID:     customerID,
		Currency:       currency,
		PeriodStart:    periodStart.UTC(),
		PeriodEnd:      periodEnd.UTC(),
		InvoiceStatus:  InvoiceStatusDraft,
		Total:          decimal.Zero,
		BaseModel:      types.GetDefaultBaseModel(tenantID),
	}
}

// AddLineItem appends a line item and keeps the running total consistent.
// The total is left unrounded until Finalize.
func (i *Invoice) AddLineItem(item *LineItem) {
	item.InvoiceID = i.ID
	item.Currency = i.Currency
	i.LineItems = append(i.LineItems, item)
	i.Total = i.Total.Add(item.Amount)
}

// Finalize rounds the total to the invoice currency's precision and moves the
// invoice out of draft
func (i *Invoice) Finalize() error {
	if i.InvoiceStatus != InvoiceStatusDraft {
		return ierr.NewErrorf("invoice %s is not a draft", i.ID).
			WithHint("Only draft invoices can be finalized").
			WithReportableDetails(map[string]any{
				"invoice_id": i.ID,
				"status":     i.InvoiceStatus,
			}).
			Mark(ierr.ErrInvalidOperation)
	}
	i.Total = i.Total.Round(types.GetCurrencyPrecision(i.Currency))
	i.InvoiceStatus = InvoiceStatusFinalized
	return nil
}

type Repository interface {
	CreateInvoice(ctx context.Context, inv *Invoice) error
	GetInvoice(ctx context.Context, id string) (*Invoice, error)
	ListInvoicesBySubscription(ctx context.Context, subscriptionID string) ([]*Invoice, error)
}
