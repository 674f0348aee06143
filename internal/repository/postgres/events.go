package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/billforge/billforge/internal/domain/events"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/logger"
	"github.com/billforge/billforge/internal/postgres"
	"github.com/billforge/billforge/internal/types"
	"github.com/shopspring/decimal"
)

// EventRepository is the row-oriented usage backend. Simple reductions run as
// SQL aggregates over the jsonb property bag; WEIGHTED_SUM and CUSTOM fetch
// rows and delegate to the shared folds in the events package.
type EventRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewEventRepository(db *postgres.DB, log *logger.Logger) events.Repository {
	return &EventRepository{db: db, logger: log}
}

func (r *EventRepository) InsertEvent(ctx context.Context, event *events.Event) error {
	if err := event.Validate(); err != nil {
		return err
	}

	properties, err := json.Marshal(event.Properties)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to serialize event properties").
			Mark(ierr.ErrValidation)
	}

	query := `
		INSERT INTO events (id, tenant_id, external_customer_id, event_name, timestamp, properties)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`

	_, err = r.db.ExecContext(ctx, query,
		event.ID,
		event.TenantID,
		event.ExternalCustomerID,
		event.EventName,
		event.Timestamp,
		properties,
	)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to insert event").
			WithReportableDetails(map[string]any{
				"event_id":   event.ID,
				"event_name": event.EventName,
			}).
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *EventRepository) BulkInsertEvents(ctx context.Context, evs []*events.Event) error {
	if len(evs) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to begin transaction").
			Mark(ierr.ErrDatabase)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO events (id, tenant_id, external_customer_id, event_name, timestamp, properties)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`

	for _, event := range evs {
		if err := event.Validate(); err != nil {
			return err
		}
		properties, err := json.Marshal(event.Properties)
		if err != nil {
			return ierr.WithError(err).
				WithHint("Failed to serialize event properties").
				Mark(ierr.ErrValidation)
		}
		if _, err := tx.ExecContext(ctx, query,
			event.ID,
			event.TenantID,
			event.ExternalCustomerID,
			event.EventName,
			event.Timestamp,
			properties,
		); err != nil {
			return ierr.WithError(err).
				WithHint("Failed to insert event batch").
				Mark(ierr.ErrDatabase)
		}
	}

	if err := tx.Commit(); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to commit event batch").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

// numericPattern matches property values that cast cleanly to numeric.
// Kept in sync with the columnar backend's toFloat64OrZero tolerance.
const numericPattern = `^-?[0-9]+(\.[0-9]+)?([eE][+-]?[0-9]+)?$`

// guardedNumeric casts the property bound at placeholder idx to numeric,
// yielding NULL for non-numeric text. A bare ::numeric cast would abort the
// whole statement on the first malformed value; the guard excludes such rows
// from the aggregate while COUNT(*) still counts them.
func guardedNumeric(idx int) string {
	return fmt.Sprintf(
		"CASE WHEN properties->>$%d ~ '%s' THEN (properties->>$%d)::numeric END",
		idx, numericPattern, idx,
	)
}

func (r *EventRepository) GetUsage(ctx context.Context, params *events.UsageParams) (*events.UsageResult, error) {
	if !params.AggregationType.Validate() {
		return nil, ierr.NewErrorf("unknown aggregation type: %s", params.AggregationType).
			WithHint("Unknown aggregation type").
			Mark(ierr.ErrValidation)
	}

	switch params.AggregationType {
	case types.AggregationWeightedSum:
		return r.getWeightedSum(ctx, params)
	case types.AggregationCustom:
		return r.getCustomSum(ctx, params)
	}

	where, args := r.buildWhere(params)

	var valueExpr string
	numeric := guardedNumeric(len(args) + 1)
	switch params.AggregationType {
	case types.AggregationCount:
		valueExpr = "COUNT(*)"
	case types.AggregationSum:
		valueExpr = fmt.Sprintf("COALESCE(SUM(%s), 0)", numeric)
		args = append(args, params.PropertyName)
	case types.AggregationMax:
		valueExpr = fmt.Sprintf("COALESCE(MAX(%s), 0)", numeric)
		args = append(args, params.PropertyName)
	case types.AggregationUniqueCount:
		valueExpr = fmt.Sprintf("COUNT(DISTINCT properties->>$%d)", len(args)+1)
		args = append(args, params.PropertyName)
	case types.AggregationLatest:
		return r.getLatest(ctx, params)
	}

	query := fmt.Sprintf(
		"SELECT %s AS quantity, COUNT(*) AS events_count FROM events WHERE %s",
		valueExpr, where,
	)

	var row struct {
		Quantity    decimal.Decimal `db:"quantity"`
		EventsCount uint64          `db:"events_count"`
	}
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to compute usage").
			WithReportableDetails(map[string]any{
				"event_name":       params.EventName,
				"aggregation_type": params.AggregationType,
			}).
			Mark(ierr.ErrDatabase)
	}

	return &events.UsageResult{Quantity: row.Quantity, EventsCount: row.EventsCount}, nil
}

// getLatest returns the value of the most recent matching event. An empty
// window yields zero, not an error.
func (r *EventRepository) getLatest(ctx context.Context, params *events.UsageParams) (*events.UsageResult, error) {
	where, args := r.buildWhere(params)

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM events WHERE %s", where)
	var count uint64
	if err := r.db.GetContext(ctx, &count, countQuery, args...); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to count events").
			Mark(ierr.ErrDatabase)
	}
	if count == 0 {
		return events.ZeroUsage(), nil
	}

	args = append(args, params.PropertyName)
	query := fmt.Sprintf(
		"SELECT COALESCE(%s, 0) FROM events WHERE %s ORDER BY timestamp DESC LIMIT 1",
		guardedNumeric(len(args)), where,
	)

	var quantity decimal.Decimal
	if err := r.db.GetContext(ctx, &quantity, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return events.ZeroUsage(), nil
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to fetch latest event value").
			Mark(ierr.ErrDatabase)
	}

	return &events.UsageResult{Quantity: quantity, EventsCount: count}, nil
}

func (r *EventRepository) getWeightedSum(ctx context.Context, params *events.UsageParams) (*events.UsageResult, error) {
	where, args := r.buildWhere(params)
	args = append(args, params.PropertyName)

	query := fmt.Sprintf(
		"SELECT timestamp, COALESCE(%s, 0) AS value FROM events WHERE %s ORDER BY timestamp ASC",
		guardedNumeric(len(args)), where,
	)

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to fetch weighted sum timeline").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	var values []events.TimedValue
	for rows.Next() {
		var tv events.TimedValue
		if err := rows.Scan(&tv.Timestamp, &tv.Value); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to scan timeline row").
				Mark(ierr.ErrDatabase)
		}
		values = append(values, tv)
	}
	if err := rows.Err(); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to read timeline rows").
			Mark(ierr.ErrDatabase)
	}

	return &events.UsageResult{
		Quantity:    events.WeightedSum(values, params.StartTime, params.EndTime),
		EventsCount: uint64(len(values)),
	}, nil
}

func (r *EventRepository) getCustomSum(ctx context.Context, params *events.UsageParams) (*events.UsageResult, error) {
	expression, err := events.CompileExpression(params.Expression)
	if err != nil {
		return nil, err
	}

	evs, err := r.GetRawEvents(ctx, params)
	if err != nil {
		return nil, err
	}

	return &events.UsageResult{
		Quantity:    expression.EvaluateSum(evs),
		EventsCount: uint64(len(evs)),
	}, nil
}

func (r *EventRepository) GetRawEvents(ctx context.Context, params *events.UsageParams) ([]*events.Event, error) {
	where, args := r.buildWhere(params)

	query := fmt.Sprintf(
		"SELECT id, tenant_id, external_customer_id, event_name, timestamp, properties FROM events WHERE %s ORDER BY timestamp ASC",
		where,
	)

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to fetch raw events").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	var result []*events.Event
	for rows.Next() {
		var (
			event      events.Event
			properties []byte
		)
		if err := rows.Scan(
			&event.ID,
			&event.TenantID,
			&event.ExternalCustomerID,
			&event.EventName,
			&event.Timestamp,
			&properties,
		); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to scan event row").
				Mark(ierr.ErrDatabase)
		}
		if len(properties) > 0 {
			if err := json.Unmarshal(properties, &event.Properties); err != nil {
				return nil, ierr.WithError(err).
					WithHint("Failed to decode event properties").
					Mark(ierr.ErrDatabase)
			}
		}
		result = append(result, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to read event rows").
			Mark(ierr.ErrDatabase)
	}

	return result, nil
}

// buildWhere assembles the shared predicate: event name, customer, the
// half-open window [start, end), and property filters. Events at the exact
// period end belong to the next period.
func (r *EventRepository) buildWhere(params *events.UsageParams) (string, []interface{}) {
	conditions := []string{"event_name = $1"}
	args := []interface{}{params.EventName}

	if params.ExternalCustomerID != "" {
		args = append(args, params.ExternalCustomerID)
		conditions = append(conditions, fmt.Sprintf("external_customer_id = $%d", len(args)))
	}
	if !params.StartTime.IsZero() {
		args = append(args, params.StartTime)
		conditions = append(conditions, fmt.Sprintf("timestamp >= $%d", len(args)))
	}
	if !params.EndTime.IsZero() {
		args = append(args, params.EndTime)
		conditions = append(conditions, fmt.Sprintf("timestamp < $%d", len(args)))
	}

	for key, values := range params.Filters {
		if len(values) == 0 {
			continue
		}
		placeholders := make([]string, len(values))
		args = append(args, key)
		keyIdx := len(args)
		for i, value := range values {
			args = append(args, value)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf(
			"properties->>$%d IN (%s)", keyIdx, strings.Join(placeholders, ", "),
		))
	}

	return strings.Join(conditions, " AND "), args
}
