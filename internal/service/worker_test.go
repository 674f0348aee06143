package service

import (
	"context"
	"testing"
	"time"

	"github.com/billforge/billforge/internal/config"
	"github.com/billforge/billforge/internal/domain/charge"
	"github.com/billforge/billforge/internal/logger"
	"github.com/billforge/billforge/internal/testutil"
	"github.com/billforge/billforge/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBillingWorkerRunCycle(t *testing.T) {
	ctx := context.Background()
	log := logger.NewNopLogger()

	eventStore := testutil.NewInMemoryEventStore()
	meterStore := testutil.NewInMemoryMeterStore()
	chargeStore := testutil.NewInMemoryChargeStore()
	invoiceStore := testutil.NewInMemoryInvoiceStore()
	subStore := testutil.NewInMemorySubscriptionStore()

	datesService := NewBillingDatesService(log)
	invoiceService := NewInvoiceService(InvoiceServiceParams{
		Config:       config.GetDefaultConfig(),
		Logger:       log,
		MeterRepo:    meterStore,
		ChargeRepo:   chargeStore,
		InvoiceRepo:  invoiceStore,
		UsageService: NewUsageService(eventStore, log),
		DatesService: datesService,
	})
	worker := NewBillingWorker(log, subStore, invoiceStore, invoiceService, datesService, time.Hour)

	// flat monthly fee
	c := charge.NewCharge("plan-1", types.BILLING_MODEL_STANDARD, "tenant-1")
	c.Currency = "usd"
	c.Properties = charge.Properties{"amount": "10"}
	require.NoError(t, chargeStore.CreateCharge(ctx, c))

	sub := newTestSubscription(types.BillingTimeCalendar, date(2025, time.May, 1))
	sub.Currency = "usd"
	require.NoError(t, subStore.CreateSubscription(ctx, sub))

	// mid-June: the May period has completed and gets invoiced
	at := date(2025, time.June, 15)
	worker.RunCycle(ctx, at)

	invoices, err := invoiceStore.ListInvoicesBySubscription(ctx, sub.ID)
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.True(t, date(2025, time.May, 1).Equal(invoices[0].PeriodStart))
	assert.True(t, date(2025, time.June, 1).Equal(invoices[0].PeriodEnd))

	// a second cycle at the same time is idempotent
	worker.RunCycle(ctx, at)
	invoices, err = invoiceStore.ListInvoicesBySubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.Len(t, invoices, 1)
}

func TestBillingWorkerFirstPeriodNotInvoiced(t *testing.T) {
	ctx := context.Background()
	log := logger.NewNopLogger()

	invoiceStore := testutil.NewInMemoryInvoiceStore()
	subStore := testutil.NewInMemorySubscriptionStore()
	datesService := NewBillingDatesService(log)
	invoiceService := NewInvoiceService(InvoiceServiceParams{
		Config:       config.GetDefaultConfig(),
		Logger:       log,
		MeterRepo:    testutil.NewInMemoryMeterStore(),
		ChargeRepo:   testutil.NewInMemoryChargeStore(),
		InvoiceRepo:  invoiceStore,
		UsageService: NewUsageService(testutil.NewInMemoryEventStore(), log),
		DatesService: datesService,
	})
	worker := NewBillingWorker(log, subStore, invoiceStore, invoiceService, datesService, time.Hour)

	sub := newTestSubscription(types.BillingTimeAnniversary, date(2025, time.June, 10))
	sub.Currency = "usd"
	require.NoError(t, subStore.CreateSubscription(ctx, sub))

	// still inside the first period, nothing to invoice yet
	worker.RunCycle(ctx, date(2025, time.June, 20))

	invoices, err := invoiceStore.ListInvoicesBySubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.Empty(t, invoices)
}
