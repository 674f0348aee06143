package postgres

import (
	"context"
	"database/sql"

	"github.com/billforge/billforge/internal/domain/subscription"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/logger"
	"github.com/billforge/billforge/internal/postgres"
	"github.com/billforge/billforge/internal/types"
)

type SubscriptionRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewSubscriptionRepository(db *postgres.DB, log *logger.Logger) subscription.Repository {
	return &SubscriptionRepository{db: db, logger: log}
}

const subscriptionColumns = `
	id, tenant_id, customer_id, plan_id, currency, billing_time,
	billing_period, billing_period_count, started_at, ending_at,
	subscription_at, trial_ended_at, trial_period_days, pay_in_advance,
	status, created_at, updated_at`

func (r *SubscriptionRepository) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	if err := sub.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO subscriptions (` + subscriptionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err := r.db.ExecContext(ctx, query,
		sub.ID, sub.TenantID, sub.CustomerID, sub.PlanID, sub.Currency,
		sub.BillingTime, sub.BillingPeriod, sub.BillingPeriodCount,
		sub.StartedAt, sub.EndingAt, sub.SubscriptionAt, sub.TrialEndedAt,
		sub.TrialPeriodDays, sub.PayInAdvance, sub.Status,
		sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create subscription").
			WithReportableDetails(map[string]any{"customer_id": sub.CustomerID}).
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *SubscriptionRepository) GetSubscription(ctx context.Context, id string) (*subscription.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1 AND status != $2`

	var sub subscription.Subscription
	err := r.db.GetContext(ctx, &sub, query, id, types.StatusDeleted)
	if err == sql.ErrNoRows {
		return nil, ierr.NewErrorf("subscription %s not found", id).
			Mark(ierr.ErrNotFound)
	}
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to fetch subscription").
			Mark(ierr.ErrDatabase)
	}
	return &sub, nil
}

func (r *SubscriptionRepository) ListActiveSubscriptions(ctx context.Context) ([]*subscription.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE status = $1 ORDER BY created_at ASC`

	var subs []*subscription.Subscription
	if err := r.db.SelectContext(ctx, &subs, query, types.StatusPublished); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list subscriptions").
			Mark(ierr.ErrDatabase)
	}
	return subs, nil
}

func (r *SubscriptionRepository) UpdateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	query := `
		UPDATE subscriptions SET
			currency = $1, billing_time = $2, billing_period = $3,
			billing_period_count = $4, started_at = $5, ending_at = $6,
			subscription_at = $7, trial_ended_at = $8, trial_period_days = $9,
			pay_in_advance = $10, status = $11, updated_at = now()
		WHERE id = $12`

	result, err := r.db.ExecContext(ctx, query,
		sub.Currency, sub.BillingTime, sub.BillingPeriod,
		sub.BillingPeriodCount, sub.StartedAt, sub.EndingAt,
		sub.SubscriptionAt, sub.TrialEndedAt, sub.TrialPeriodDays,
		sub.PayInAdvance, sub.Status, sub.ID,
	)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update subscription").
			Mark(ierr.ErrDatabase)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ierr.NewErrorf("subscription %s not found", sub.ID).
			Mark(ierr.ErrNotFound)
	}
	return nil
}
