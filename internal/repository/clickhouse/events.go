package clickhouse

import (
	"context"
	"encoding/json"

	"github.com/billforge/billforge/internal/clickhouse"
	"github.com/billforge/billforge/internal/domain/events"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/logger"
	"github.com/billforge/billforge/internal/types"
	"github.com/shopspring/decimal"
)

// EventRepository is the columnar usage backend. It exists for throughput at
// high event volume and must agree with the row-oriented backend on every
// aggregation.
type EventRepository struct {
	store  *clickhouse.ClickHouseStore
	logger *logger.Logger
}

func NewEventRepository(store *clickhouse.ClickHouseStore, log *logger.Logger) events.Repository {
	return &EventRepository{store: store, logger: log}
}

func (r *EventRepository) InsertEvent(ctx context.Context, event *events.Event) error {
	return r.BulkInsertEvents(ctx, []*events.Event{event})
}

func (r *EventRepository) BulkInsertEvents(ctx context.Context, evs []*events.Event) error {
	if len(evs) == 0 {
		return nil
	}

	batch, err := r.store.GetConn().PrepareBatch(ctx, `
		INSERT INTO events (id, tenant_id, external_customer_id, event_name, timestamp, properties)`)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to prepare event batch").
			Mark(ierr.ErrDatabase)
	}

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
		if err := batch.Append(
			event.ID,
			event.TenantID,
			event.ExternalCustomerID,
			event.EventName,
			event.Timestamp,
			string(properties),
		); err != nil {
			return ierr.WithError(err).
				WithHint("Failed to append event to batch").
				Mark(ierr.ErrDatabase)
		}
	}

	if err := batch.Send(); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to send event batch").
			Mark(ierr.ErrDatabase)
	}
	return nil
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

	aggregator := GetAggregator(params.AggregationType)
	if aggregator == nil {
		return nil, ierr.NewErrorf("unsupported aggregation type %s", params.AggregationType).
			Mark(ierr.ErrValidation)
	}

	query, args := aggregator.GetQuery(params)
	r.logger.Debugw("executing usage query",
		"aggregation_type", params.AggregationType,
		"event_name", params.EventName,
	)

	var (
		quantity    float64
		eventsCount uint64
	)
	row := r.store.GetConn().QueryRow(ctx, query, args...)
	if err := row.Scan(&quantity, &eventsCount); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to compute usage").
			WithReportableDetails(map[string]any{
				"event_name":       params.EventName,
				"aggregation_type": params.AggregationType,
			}).
			Mark(ierr.ErrDatabase)
	}

	return &events.UsageResult{
		Quantity:    decimal.NewFromFloat(quantity),
		EventsCount: eventsCount,
	}, nil
}

func (r *EventRepository) getWeightedSum(ctx context.Context, params *events.UsageParams) (*events.UsageResult, error) {
	where, args := buildWhere(params)

	query := "SELECT timestamp, " + numericProperty(params.PropertyName) +
		" AS value FROM events WHERE " + where + " ORDER BY timestamp ASC"

	rows, err := r.store.GetConn().Query(ctx, query, args...)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to fetch weighted sum timeline").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	var values []events.TimedValue
	for rows.Next() {
		var tv events.TimedValue
		var value float64
		if err := rows.Scan(&tv.Timestamp, &value); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to scan timeline row").
				Mark(ierr.ErrDatabase)
		}
		tv.Value = decimal.NewFromFloat(value)
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
	where, args := buildWhere(params)

	query := "SELECT id, tenant_id, external_customer_id, event_name, timestamp, properties FROM events WHERE " +
		where + " ORDER BY timestamp ASC"

	rows, err := r.store.GetConn().Query(ctx, query, args...)
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
			properties string
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
		if properties != "" {
			if err := json.Unmarshal([]byte(properties), &event.Properties); err != nil {
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
