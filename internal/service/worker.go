package service

import (
	"context"
	"time"

	"github.com/billforge/billforge/internal/domain/invoice"
	"github.com/billforge/billforge/internal/domain/subscription"
	"github.com/billforge/billforge/internal/logger"
)

// BillingWorker periodically invoices active subscriptions for their most
// recently completed billing period. A failure on one subscription is logged
// and does not stop the cycle.
type BillingWorker struct {
	logger         *logger.Logger
	subRepo        subscription.Repository
	invoiceRepo    invoice.Repository
	invoiceService InvoiceService
	datesService   BillingDatesService
	interval       time.Duration
}

func NewBillingWorker(
	log *logger.Logger,
	subRepo subscription.Repository,
	invoiceRepo invoice.Repository,
	invoiceService InvoiceService,
	datesService BillingDatesService,
	interval time.Duration,
) *BillingWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	return &BillingWorker{
		logger:         log,
		subRepo:        subRepo,
		invoiceRepo:    invoiceRepo,
		invoiceService: invoiceService,
		datesService:   datesService,
		interval:       interval,
	}
}

// Run blocks until the context is cancelled, executing one billing cycle per
// interval
func (w *BillingWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RunCycle(ctx, time.Now().UTC())
		}
	}
}

// RunCycle invoices every active subscription whose previous billing period
// has completed and has not been invoiced yet
func (w *BillingWorker) RunCycle(ctx context.Context, at time.Time) {
	subs, err := w.subRepo.ListActiveSubscriptions(ctx)
	if err != nil {
		w.logger.Errorw("failed to list subscriptions", "error", err)
		return
	}

	for _, sub := range subs {
		if err := w.invoiceSubscription(ctx, sub, at); err != nil {
			w.logger.Errorw("failed to invoice subscription",
				"subscription_id", sub.ID,
				"error", err,
			)
		}
	}
}

func (w *BillingWorker) invoiceSubscription(ctx context.Context, sub *subscription.Subscription, at time.Time) error {
	currentStart, _, err := w.datesService.CalculateBillingPeriod(sub, at)
	if err != nil {
		return err
	}

	// Nothing has completed while the subscription is still in its first
	// period
	if !currentStart.After(sub.BillingAnchor()) {
		return nil
	}

	reference := currentStart.Add(-time.Nanosecond)
	prevStart, _, err := w.datesService.CalculateBillingPeriod(sub, reference)
	if err != nil {
		return err
	}

	existing, err := w.invoiceRepo.ListInvoicesBySubscription(ctx, sub.ID)
	if err != nil {
		return err
	}
	for _, inv := range existing {
		if inv.PeriodStart.Equal(prevStart) {
			return nil
		}
	}

	_, err = w.invoiceService.GenerateInvoice(ctx, sub, reference)
	return err
}
