package postgres

import (
	"context"
	"database/sql"

	"github.com/billforge/billforge/internal/domain/invoice"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/logger"
	"github.com/billforge/billforge/internal/postgres"
)

type InvoiceRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewInvoiceRepository(db *postgres.DB, log *logger.Logger) invoice.Repository {
	return &InvoiceRepository{db: db, logger: log}
}

// CreateInvoice persists the invoice and its line items in one transaction
func (r *InvoiceRepository) CreateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to begin transaction").
			Mark(ierr.ErrDatabase)
	}
	defer tx.Rollback()

	invoiceQuery := `
		INSERT INTO invoices (
			id, tenant_id, subscription_id, customer_id, currency,
			period_start, period_end, invoice_status, total, status,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	if _, err := tx.ExecContext(ctx, invoiceQuery,
		inv.ID, inv.TenantID, inv.SubscriptionID, inv.CustomerID, inv.Currency,
		inv.PeriodStart, inv.PeriodEnd, inv.InvoiceStatus, inv.Total, inv.Status,
		inv.CreatedAt, inv.UpdatedAt,
	); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create invoice").
			WithReportableDetails(map[string]any{"subscription_id": inv.SubscriptionID}).
			Mark(ierr.ErrDatabase)
	}

	lineQuery := `
		INSERT INTO invoice_line_items (
			id, tenant_id, invoice_id, charge_id, meter_code, display_name,
			quantity, unit_price, amount, currency, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	for _, item := range inv.LineItems {
		if _, err := tx.ExecContext(ctx, lineQuery,
			item.ID, item.TenantID, item.InvoiceID, item.ChargeID, item.MeterCode,
			item.DisplayName, item.Quantity, item.UnitPrice, item.Amount, item.Currency,
			item.Status, item.CreatedAt, item.UpdatedAt,
		); err != nil {
			return ierr.WithError(err).
				WithHint("Failed to create invoice line item").
				Mark(ierr.ErrDatabase)
		}
	}

	if err := tx.Commit(); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to commit invoice").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *InvoiceRepository) GetInvoice(ctx context.Context, id string) (*invoice.Invoice, error) {
	query := `
		SELECT id, tenant_id, subscription_id, customer_id, currency,
			period_start, period_end, invoice_status, total, status,
			created_at, updated_at
		FROM invoices WHERE id = $1`

	var inv invoice.Invoice
	err := r.db.GetContext(ctx, &inv, query, id)
	if err == sql.ErrNoRows {
		return nil, ierr.NewErrorf("invoice %s not found", id).
			Mark(ierr.ErrNotFound)
	}
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to fetch invoice").
			Mark(ierr.ErrDatabase)
	}

	if err := r.loadLineItems(ctx, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *InvoiceRepository) ListInvoicesBySubscription(ctx context.Context, subscriptionID string) ([]*invoice.Invoice, error) {
	query := `
		SELECT id, tenant_id, subscription_id, customer_id, currency,
			period_start, period_end, invoice_status, total, status,
			created_at, updated_at
		FROM invoices WHERE subscription_id = $1 ORDER BY period_start ASC`

	var invoices []*invoice.Invoice
	if err := r.db.SelectContext(ctx, &invoices, query, subscriptionID); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list invoices").
			WithReportableDetails(map[string]any{"subscription_id": subscriptionID}).
			Mark(ierr.ErrDatabase)
	}

	for _, inv := range invoices {
		if err := r.loadLineItems(ctx, inv); err != nil {
			return nil, err
		}
	}
	return invoices, nil
}

func (r *InvoiceRepository) loadLineItems(ctx context.Context, inv *invoice.Invoice) error {
	query := `
		SELECT id, tenant_id, invoice_id, charge_id, meter_code, display_name,
			quantity, unit_price, amount, currency, status, created_at, updated_at
		FROM invoice_line_items WHERE invoice_id = $1 ORDER BY id ASC`

	if err := r.db.SelectContext(ctx, &inv.LineItems, query, inv.ID); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to fetch invoice line items").
			Mark(ierr.ErrDatabase)
	}
	return nil
}
