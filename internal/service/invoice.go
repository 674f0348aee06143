package service

import (
	"context"
	"time"

	"github.com/billforge/billforge/internal/config"
	"github.com/billforge/billforge/internal/domain/charge"
	"github.com/billforge/billforge/internal/domain/events"
	"github.com/billforge/billforge/internal/domain/invoice"
	"github.com/billforge/billforge/internal/domain/meter"
	"github.com/billforge/billforge/internal/domain/subscription"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/logger"
	"github.com/billforge/billforge/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/pool"
)

// InvoiceService prices one billing period of a subscription into an invoice.
// Charges are aggregated concurrently; a store failure on any charge fails the
// whole invoice, while unpriceable charges are skipped silently.
type InvoiceService interface {
	// GenerateInvoice prices the billing period containing referenceTime and
	// persists the finalized invoice
	GenerateInvoice(ctx context.Context, sub *subscription.Subscription, referenceTime time.Time) (*invoice.Invoice, error)

	// PreviewInvoice prices the billing period without persisting anything
	PreviewInvoice(ctx context.Context, sub *subscription.Subscription, referenceTime time.Time) (*invoice.Invoice, error)
}

type InvoiceServiceParams struct {
	Config       *config.Configuration
	Logger       *logger.Logger
	MeterRepo    meter.Repository
	ChargeRepo   charge.Repository
	InvoiceRepo  invoice.Repository
	UsageService UsageService
	DatesService BillingDatesService
}

type invoiceService struct {
	InvoiceServiceParams
}

func NewInvoiceService(params InvoiceServiceParams) InvoiceService {
	return &invoiceService{InvoiceServiceParams: params}
}

func (s *invoiceService) GenerateInvoice(ctx context.Context, sub *subscription.Subscription, referenceTime time.Time) (*invoice.Invoice, error) {
	inv, err := s.buildInvoice(ctx, sub, referenceTime)
	if err != nil {
		return nil, err
	}
	if err := inv.Finalize(); err != nil {
		return nil, err
	}
	if err := s.InvoiceRepo.CreateInvoice(ctx, inv); err != nil {
		return nil, err
	}

	s.Logger.Infow("generated invoice",
		"invoice_id", inv.ID,
		"subscription_id", sub.ID,
		"total", inv.Total,
		"line_items", len(inv.LineItems),
	)
	return inv, nil
}

func (s *invoiceService) PreviewInvoice(ctx context.Context, sub *subscription.Subscription, referenceTime time.Time) (*invoice.Invoice, error) {
	inv, err := s.buildInvoice(ctx, sub, referenceTime)
	if err != nil {
		return nil, err
	}
	inv.Total = inv.Total.Round(types.GetCurrencyPrecision(inv.Currency))
	return inv, nil
}

func (s *invoiceService) buildInvoice(ctx context.Context, sub *subscription.Subscription, referenceTime time.Time) (*invoice.Invoice, error) {
	periodStart, periodEnd, err := s.DatesService.CalculateBillingPeriod(sub, referenceTime)
	if err != nil {
		return nil, err
	}
	chargesStart, chargesEnd := s.DatesService.CalculateChargesPeriod(sub, periodStart, periodEnd)

	charges, err := s.ChargeRepo.ListChargesByPlan(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}

	// Price charges in parallel; results keep the listing order so invoices
	// are deterministic
	results := make([]*invoice.LineItem, len(charges))
	p := pool.New().WithContext(ctx).WithMaxGoroutines(s.maxParallelCharges())
	for i, c := range charges {
		i, c := i, c
		p.Go(func(ctx context.Context) error {
			item, err := s.priceCharge(ctx, sub, c, chargesStart, chargesEnd)
			if err != nil {
				return err
			}
			results[i] = item
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}

	inv := invoice.NewInvoice(sub.ID, sub.CustomerID, sub.Currency, sub.TenantID, periodStart, periodEnd)
	for _, item := range results {
		if item == nil {
			continue
		}
		inv.AddLineItem(item)
	}
	return inv, nil
}

// priceCharge turns one charge into a line item, or nil when the charge must
// be skipped. Zero amount with non-zero quantity still produces a line item
// to preserve usage visibility.
func (s *invoiceService) priceCharge(ctx context.Context, sub *subscription.Subscription, c *charge.Charge, chargesStart, chargesEnd time.Time) (*invoice.LineItem, error) {
	calculator := charge.GetCalculator(c.BillingModel)
	if calculator == nil {
		s.Logger.Warnw("skipping charge with unknown billing model",
			"charge_id", c.ID,
			"billing_model", c.BillingModel,
		)
		return nil, nil
	}

	input := charge.CalculationInput{Properties: c.Properties}
	displayName := c.InvoiceDisplayName

	if c.MeterCode == "" {
		// Flat fee, implicit quantity of one
		input.Units = decimal.NewFromInt(1)
	} else {
		m, err := s.MeterRepo.GetMeterByCode(ctx, c.MeterCode)
		if ierr.IsNotFound(err) {
			s.Logger.Warnw("skipping charge with missing meter",
				"charge_id", c.ID,
				"meter_code", c.MeterCode,
			)
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if displayName == "" {
			displayName = m.Name
		}

		usage, err := s.UsageService.GetUsageByMeter(ctx, m, sub.CustomerID, chargesStart, chargesEnd, c.Filters)
		if err != nil {
			return nil, err
		}
		input.Units = usage.Quantity
		input.TotalAmount = &usage.Quantity
		input.EventCount = usage.EventsCount

		if c.BillingModel == types.BILLING_MODEL_DYNAMIC {
			raw, err := s.UsageService.GetRawEvents(ctx, &events.UsageParams{
				ExternalCustomerID: sub.CustomerID,
				EventName:          m.EventName,
				StartTime:          chargesStart,
				EndTime:            chargesEnd,
				Filters:            mergeFilters(m.FiltersAsMap(), c.Filters),
			})
			if err != nil {
				return nil, err
			}
			input.Events = lo.Map(raw, func(event *events.Event, _ int) map[string]interface{} {
				return event.Properties
			})
		}
	}

	amount := c.ClampAmount(calculator.Calculate(input))
	amount = amount.Round(types.GetCurrencyPrecision(c.Currency))

	if amount.IsZero() && input.Units.IsZero() {
		return nil, nil
	}

	item := &invoice.LineItem{
		ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_LINE_ITEM),
		ChargeID:    c.ID,
		MeterCode:   c.MeterCode,
		DisplayName: displayName,
		Quantity:    input.Units,
		UnitPrice:   lineUnitPrice(c, amount, input.Units),
		Amount:      amount,
		BaseModel:   types.GetDefaultBaseModel(sub.TenantID),
	}
	return item, nil
}

// lineUnitPrice resolves the per-unit price a line item reports. Flat-rate
// models carry a configured price; tiered and percentage models report the
// effective rate of the priced amount over the billed quantity.
func lineUnitPrice(c *charge.Charge, amount, quantity decimal.Decimal) decimal.Decimal {
	switch c.BillingModel {
	case types.BILLING_MODEL_STANDARD, types.BILLING_MODEL_PACKAGE:
		if price, ok := c.Properties.GetDecimalOk("amount"); ok {
			return price
		}
		return c.Properties.GetDecimal("unit_price")
	case types.BILLING_MODEL_CUSTOM:
		if price, ok := c.Properties.GetDecimalOk("unit_price"); ok {
			return price
		}
	}
	if quantity.IsZero() {
		return decimal.Zero
	}
	return amount.Div(quantity)
}

func (s *invoiceService) maxParallelCharges() int {
	if s.Config != nil && s.Config.Billing.MaxParallelCharges > 0 {
		return s.Config.Billing.MaxParallelCharges
	}
	return 4
}

func mergeFilters(base, override map[string][]string) map[string][]string {
	if len(base) == 0 {
		return override
	}
	merged := make(map[string][]string, len(base)+len(override))
	for key, values := range base {
		merged[key] = values
	}
	for key, values := range override {
		merged[key] = values
	}
	return merged
}
