package db

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"dealbase/internal/types"
)

// SubscriptionRepository provides data access for the subscriptions table,
// the local source of truth for entitlement decisions. Rows are written
// exclusively through Upsert and CancelByStripeID so the table always
// reflects the most recently synced provider state.
type SubscriptionRepository struct {
	db     DBTX
	logger *slog.Logger
}

// NewSubscriptionRepository creates a new SubscriptionRepository backed by
// the given database connection (pool or transaction).
func NewSubscriptionRepository(db DBTX, logger *slog.Logger) *SubscriptionRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubscriptionRepository{db: db, logger: logger}
}

// subscriptionColumns defines the standard set of columns selected for
// subscription queries.
const subscriptionColumns = `s.id, s.user_id, s.customer_id, s.stripe_subscription_id,
	s.price_id, s.status, s.cancel_at_period_end, s.current_period_start,
	s.current_period_end, s.trial_start, s.trial_end, s.canceled_at,
	s.created_at, s.updated_at`

// scanSubscription scans a single subscription row into a
// types.Subscription struct. Period and trial bounds may be NULL.
func scanSubscription(row pgx.Row) (*types.Subscription, error) {
	var s types.Subscription
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.CustomerID,
		&s.StripeSubscriptionID,
		&s.PriceID,
		&s.Status,
		&s.CancelAtPeriodEnd,
		&s.CurrentPeriodStart,
		&s.CurrentPeriodEnd,
		&s.TrialStart,
		&s.TrialEnd,
		&s.CanceledAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetActiveByUserID returns the user's current entitled subscription, i.e.
// the newest one in an entitled status (active, trialing, or past_due).
// Returns ErrCodeNotFoundSubscription if the user has none.
func (r *SubscriptionRepository) GetActiveByUserID(ctx context.Context, userID string) (*types.Subscription, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+subscriptionColumns+`
		 FROM subscriptions s
		 WHERE s.user_id = $1 AND s.status = ANY($2)
		 ORDER BY s.created_at DESC
		 LIMIT 1`,
		userID,
		entitledStatusList(),
	)

	s, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundSubscription, "no active subscription", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve subscription", err)
	}
	return s, nil
}

// GetByStripeID retrieves a subscription by its Stripe subscription
// identifier.
func (r *SubscriptionRepository) GetByStripeID(ctx context.Context, stripeSubscriptionID string) (*types.Subscription, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+subscriptionColumns+`
		 FROM subscriptions s
		 WHERE s.stripe_subscription_id = $1`,
		stripeSubscriptionID,
	)

	s, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundSubscription, "subscription not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve subscription", err)
	}
	return s, nil
}

// Upsert writes the synced provider state for a subscription. Conflict
// target is stripe_subscription_id; on conflict the full mutable state is
// replaced wholesale with the incoming values. Last write wins: callers
// feed this from freshly fetched provider objects, so the newest sync is
// authoritative. Returns the stored row.
func (r *SubscriptionRepository) Upsert(ctx context.Context, s *types.Subscription) (*types.Subscription, error) {
	row := r.db.QueryRow(ctx,
		`INSERT INTO subscriptions (
		     id, user_id, customer_id, stripe_subscription_id, price_id, status,
		     cancel_at_period_end, current_period_start, current_period_end,
		     trial_start, trial_end, canceled_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
		 ON CONFLICT (stripe_subscription_id) DO UPDATE SET
		     price_id = EXCLUDED.price_id,
		     status = EXCLUDED.status,
		     cancel_at_period_end = EXCLUDED.cancel_at_period_end,
		     current_period_start = EXCLUDED.current_period_start,
		     current_period_end = EXCLUDED.current_period_end,
		     trial_start = EXCLUDED.trial_start,
		     trial_end = EXCLUDED.trial_end,
		     canceled_at = EXCLUDED.canceled_at,
		     updated_at = NOW()
		 RETURNING id, user_id, customer_id, stripe_subscription_id, price_id, status,
		     cancel_at_period_end, current_period_start, current_period_end,
		     trial_start, trial_end, canceled_at, created_at, updated_at`,
		s.ID,
		s.UserID,
		s.CustomerID,
		s.StripeSubscriptionID,
		s.PriceID,
		s.Status,
		s.CancelAtPeriodEnd,
		s.CurrentPeriodStart,
		s.CurrentPeriodEnd,
		s.TrialStart,
		s.TrialEnd,
		s.CanceledAt,
	)

	stored, err := scanSubscription(row)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to upsert subscription", err)
	}
	return stored, nil
}

// CancelByStripeID marks a subscription canceled locally. Used when the
// provider reports the subscription deleted but a full object re-fetch is
// not available (customer.subscription.deleted carries the final state).
// Returns ErrCodeNotFoundSubscription if no such subscription exists.
func (r *SubscriptionRepository) CancelByStripeID(ctx context.Context, stripeSubscriptionID string) (*types.Subscription, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE subscriptions s
		 SET status = $2,
		     canceled_at = COALESCE(s.canceled_at, NOW()),
		     updated_at = NOW()
		 WHERE s.stripe_subscription_id = $1
		 RETURNING `+subscriptionColumns,
		stripeSubscriptionID,
		types.SubStatusCanceled,
	)

	s, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundSubscription, "subscription not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to cancel subscription", err)
	}

	r.logger.Info("subscription marked canceled",
		slog.String("stripe_subscription_id", stripeSubscriptionID),
	)
	return s, nil
}

// entitledStatusList converts the entitled status set into a []string for
// use with = ANY($n).
func entitledStatusList() []string {
	out := make([]string, 0, len(types.EntitledStatuses))
	for _, s := range types.EntitledStatuses {
		out = append(out, string(s))
	}
	return out
}
