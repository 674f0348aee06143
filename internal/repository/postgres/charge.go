package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/billforge/billforge/internal/domain/charge"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/logger"
	"github.com/billforge/billforge/internal/postgres"
	"github.com/billforge/billforge/internal/types"
	"github.com/shopspring/decimal"
)

type ChargeRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewChargeRepository(db *postgres.DB, log *logger.Logger) charge.Repository {
	return &ChargeRepository{db: db, logger: log}
}

type chargeRow struct {
	ID                 string           `db:"id"`
	TenantID           string           `db:"tenant_id"`
	PlanID             string           `db:"plan_id"`
	MeterCode          string           `db:"meter_code"`
	BillingModel       string           `db:"billing_model"`
	Currency           string           `db:"currency"`
	Properties         []byte           `db:"properties"`
	InvoiceDisplayName string           `db:"invoice_display_name"`
	MinAmount          *decimal.Decimal `db:"min_amount"`
	MaxAmount          *decimal.Decimal `db:"max_amount"`
	Filters            []byte           `db:"filters"`
	Status             string           `db:"status"`
}

func (r *ChargeRepository) CreateCharge(ctx context.Context, c *charge.Charge) error {
	properties, err := json.Marshal(c.Properties)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to serialize charge properties").
			Mark(ierr.ErrValidation)
	}
	filters, err := json.Marshal(c.Filters)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to serialize charge filters").
			Mark(ierr.ErrValidation)
	}

	query := `
		INSERT INTO charges (
			id, tenant_id, plan_id, meter_code, billing_model, currency,
			properties, invoice_display_name, min_amount, max_amount, filters, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err = r.db.ExecContext(ctx, query,
		c.ID, c.TenantID, c.PlanID, c.MeterCode, c.BillingModel, c.Currency,
		properties, c.InvoiceDisplayName, c.MinAmount, c.MaxAmount, filters, c.Status,
	)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create charge").
			WithReportableDetails(map[string]any{"plan_id": c.PlanID}).
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *ChargeRepository) GetCharge(ctx context.Context, id string) (*charge.Charge, error) {
	query := chargeSelect + ` WHERE id = $1 AND status != $2`

	var row chargeRow
	err := r.db.GetContext(ctx, &row, query, id, types.StatusDeleted)
	if err == sql.ErrNoRows {
		return nil, ierr.NewErrorf("charge %s not found", id).
			Mark(ierr.ErrNotFound)
	}
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to fetch charge").
			Mark(ierr.ErrDatabase)
	}
	return rowToCharge(row)
}

func (r *ChargeRepository) ListChargesByPlan(ctx context.Context, planID string) ([]*charge.Charge, error) {
	query := chargeSelect + ` WHERE plan_id = $1 AND status = $2 ORDER BY id ASC`

	var rows []chargeRow
	if err := r.db.SelectContext(ctx, &rows, query, planID, types.StatusPublished); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list charges").
			WithReportableDetails(map[string]any{"plan_id": planID}).
			Mark(ierr.ErrDatabase)
	}

	charges := make([]*charge.Charge, 0, len(rows))
	for _, row := range rows {
		c, err := rowToCharge(row)
		if err != nil {
			return nil, err
		}
		charges = append(charges, c)
	}
	return charges, nil
}

func (r *ChargeRepository) DeleteCharge(ctx context.Context, id string) error {
	query := `UPDATE charges SET status = $1 WHERE id = $2 AND status != $1`
	result, err := r.db.ExecContext(ctx, query, types.StatusDeleted, id)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to delete charge").
			Mark(ierr.ErrDatabase)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ierr.NewErrorf("charge %s not found", id).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

const chargeSelect = `
	SELECT id, tenant_id, plan_id, meter_code, billing_model, currency,
		properties, invoice_display_name, min_amount, max_amount, filters, status
	FROM charges`

func rowToCharge(row chargeRow) (*charge.Charge, error) {
	c := &charge.Charge{
		ID:                 row.ID,
		PlanID:             row.PlanID,
		MeterCode:          row.MeterCode,
		BillingModel:       types.BillingModel(row.BillingModel),
		Currency:           row.Currency,
		InvoiceDisplayName: row.InvoiceDisplayName,
		MinAmount:          row.MinAmount,
		MaxAmount:          row.MaxAmount,
	}
	c.TenantID = row.TenantID
	c.Status = types.Status(row.Status)

	if len(row.Properties) > 0 {
		if err := json.Unmarshal(row.Properties, &c.Properties); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to decode charge properties").
				Mark(ierr.ErrDatabase)
		}
	}
	if len(row.Filters) > 0 {
		if err := json.Unmarshal(row.Filters, &c.Filters); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to decode charge filters").
				Mark(ierr.ErrDatabase)
		}
	}
	return c, nil
}
