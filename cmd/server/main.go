package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	chstore "github.com/billforge/billforge/internal/clickhouse"
	"github.com/billforge/billforge/internal/config"
	"github.com/billforge/billforge/internal/domain/events"
	"github.com/billforge/billforge/internal/logger"
	pgstore "github.com/billforge/billforge/internal/postgres"
	chrepo "github.com/billforge/billforge/internal/repository/clickhouse"
	pgrepo "github.com/billforge/billforge/internal/repository/postgres"
	"github.com/billforge/billforge/internal/service"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		logger.L.Fatalw("failed to load configuration", "error", err)
	}

	log, err := logger.NewLogger(cfg.Logging.Level)
	if err != nil {
		logger.L.Fatalw("failed to initialize logger", "error", err)
	}

	db, err := pgstore.NewDB(cfg, log)
	if err != nil {
		log.Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	// The columnar backend is opt-in; usage aggregation falls back to
	// postgres when clickhouse is disabled
	var eventRepo events.Repository
	if cfg.ClickHouse.Enabled {
		store, err := chstore.NewClickHouseStore(cfg, log)
		if err != nil {
			log.Fatalw("failed to connect to clickhouse", "error", err)
		}
		defer store.Close()
		eventRepo = chrepo.NewEventRepository(store, log)
	} else {
		eventRepo = pgrepo.NewEventRepository(db, log)
	}

	meterRepo := pgrepo.NewMeterRepository(db, log)
	chargeRepo := pgrepo.NewChargeRepository(db, log)
	invoiceRepo := pgrepo.NewInvoiceRepository(db, log)
	subscriptionRepo := pgrepo.NewSubscriptionRepository(db, log)

	usageService := service.NewUsageService(eventRepo, log)
	datesService := service.NewBillingDatesService(log)
	invoiceService := service.NewInvoiceService(service.InvoiceServiceParams{
		Config:       cfg,
		Logger:       log,
		MeterRepo:    meterRepo,
		ChargeRepo:   chargeRepo,
		InvoiceRepo:  invoiceRepo,
		UsageService: usageService,
		DatesService: datesService,
	})

	worker := service.NewBillingWorker(
		log, subscriptionRepo, invoiceRepo, invoiceService, datesService,
		cfg.Billing.WorkerInterval,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Infow("billforge pricing core ready",
		"clickhouse_enabled", cfg.ClickHouse.Enabled,
		"max_parallel_charges", cfg.Billing.MaxParallelCharges,
		"worker_interval", cfg.Billing.WorkerInterval,
	)

	worker.Run(ctx)
	log.Info("shutting down")
}
