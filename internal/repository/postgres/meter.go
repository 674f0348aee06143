package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/billforge/billforge/internal/domain/meter"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/logger"
	"github.com/billforge/billforge/internal/postgres"
	"github.com/billforge/billforge/internal/types"
)

type MeterRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewMeterRepository(db *postgres.DB, log *logger.Logger) meter.Repository {
	return &MeterRepository{db: db, logger: log}
}

type meterRow struct {
	ID          string `db:"id"`
	TenantID    string `db:"tenant_id"`
	Code        string `db:"code"`
	EventName   string `db:"event_name"`
	Name        string `db:"name"`
	Aggregation []byte `db:"aggregation"`
	Filters     []byte `db:"filters"`
	Status      string `db:"status"`
}

func (r *MeterRepository) CreateMeter(ctx context.Context, m *meter.Meter) error {
	if err := m.Validate(); err != nil {
		return err
	}

	aggregation, err := json.Marshal(m.Aggregation)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to serialize meter aggregation").
			Mark(ierr.ErrValidation)
	}
	filters, err := json.Marshal(m.Filters)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to serialize meter filters").
			Mark(ierr.ErrValidation)
	}

	query := `
		INSERT INTO meters (id, tenant_id, code, event_name, name, aggregation, filters, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = r.db.ExecContext(ctx, query,
		m.ID, m.TenantID, m.Code, m.EventName, m.Name, aggregation, filters, m.Status,
	)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create meter").
			WithReportableDetails(map[string]any{"code": m.Code}).
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *MeterRepository) GetMeter(ctx context.Context, id string) (*meter.Meter, error) {
	return r.getMeterBy(ctx, "id = $1", id)
}

func (r *MeterRepository) GetMeterByCode(ctx context.Context, code string) (*meter.Meter, error) {
	return r.getMeterBy(ctx, "code = $1", code)
}

func (r *MeterRepository) getMeterBy(ctx context.Context, predicate string, arg interface{}) (*meter.Meter, error) {
	query := `
		SELECT id, tenant_id, code, event_name, name, aggregation, filters, status
		FROM meters WHERE ` + predicate + ` AND status != $2`

	var row meterRow
	err := r.db.GetContext(ctx, &row, query, arg, types.StatusDeleted)
	if err == sql.ErrNoRows {
		return nil, ierr.NewErrorf("meter %v not found", arg).
			Mark(ierr.ErrNotFound)
	}
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to fetch meter").
			Mark(ierr.ErrDatabase)
	}
	return rowToMeter(row)
}

func (r *MeterRepository) ListMeters(ctx context.Context) ([]*meter.Meter, error) {
	query := `
		SELECT id, tenant_id, code, event_name, name, aggregation, filters, status
		FROM meters WHERE status != $1 ORDER BY code ASC`

	var rows []meterRow
	if err := r.db.SelectContext(ctx, &rows, query, types.StatusDeleted); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list meters").
			Mark(ierr.ErrDatabase)
	}

	meters := make([]*meter.Meter, 0, len(rows))
	for _, row := range rows {
		m, err := rowToMeter(row)
		if err != nil {
			return nil, err
		}
		meters = append(meters, m)
	}
	return meters, nil
}

func (r *MeterRepository) DisableMeter(ctx context.Context, id string) error {
	query := `UPDATE meters SET status = $1 WHERE id = $2 AND status != $1`
	result, err := r.db.ExecContext(ctx, query, types.StatusArchived, id)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to disable meter").
			Mark(ierr.ErrDatabase)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ierr.NewErrorf("meter %s not found", id).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func rowToMeter(row meterRow) (*meter.Meter, error) {
	m := &meter.Meter{
		ID:        row.ID,
		Code:      row.Code,
		EventName: row.EventName,
		Name:      row.Name,
	}
	m.TenantID = row.TenantID
	m.Status = types.Status(row.Status)

	if err := json.Unmarshal(row.Aggregation, &m.Aggregation); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to decode meter aggregation").
			Mark(ierr.ErrDatabase)
	}
	if len(row.Filters) > 0 {
		if err := json.Unmarshal(row.Filters, &m.Filters); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to decode meter filters").
				Mark(ierr.ErrDatabase)
		}
	}
	return m, nil
}
