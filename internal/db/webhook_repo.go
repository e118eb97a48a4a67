package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"dealbase/internal/types"
)

// WebhookEventRepository provides data access for the webhook_events table,
// the deduplication ledger and audit trail for provider webhook deliveries.
//
// The unique constraint on stripe_event_id is the dedup mechanism: Record
// is an INSERT whose conflict maps to ErrCodeConflictDuplicateEvent, which
// the processor treats as "another delivery already claimed this event".
type WebhookEventRepository struct {
	db DBTX
}

// NewWebhookEventRepository creates a new WebhookEventRepository backed by
// the given database connection (pool or transaction).
func NewWebhookEventRepository(db DBTX) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

// webhookEventColumns defines the standard set of columns selected for
// webhook event queries.
const webhookEventColumns = `e.id, e.stripe_event_id, e.event_type, e.processed,
	e.error, e.received_at, e.processed_at`

// scanWebhookEvent scans a single webhook event row. The error and
// processed_at columns may be NULL.
func scanWebhookEvent(row pgx.Row) (*types.WebhookEvent, error) {
	var e types.WebhookEvent
	var procErr *string
	err := row.Scan(
		&e.ID,
		&e.StripeEventID,
		&e.EventType,
		&e.Processed,
		&procErr,
		&e.ReceivedAt,
		&e.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}
	if procErr != nil {
		e.Error = *procErr
	}
	return &e, nil
}

// HasBeenProcessed reports whether the given provider event has already
// been processed successfully. An intent row with processed = false does
// not count: a crashed or failed attempt must not block redelivery here
// (the insert conflict in Record handles that race).
func (r *WebhookEventRepository) HasBeenProcessed(ctx context.Context, stripeEventID string) (bool, error) {
	var processed bool
	err := r.db.QueryRow(ctx,
		`SELECT processed FROM webhook_events WHERE stripe_event_id = $1`,
		stripeEventID,
	).Scan(&processed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to check webhook event", err)
	}
	return processed, nil
}

// Record inserts the processing-intent row for a delivery. A unique
// violation on stripe_event_id maps to ErrCodeConflictDuplicateEvent so
// the processor can short-circuit concurrent or redelivered events.
func (r *WebhookEventRepository) Record(ctx context.Context, e *types.WebhookEvent) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO webhook_events (id, stripe_event_id, event_type, processed, received_at)
		 VALUES ($1, $2, $3, FALSE, NOW())`,
		e.ID,
		e.StripeEventID,
		e.EventType,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.NewAppError(types.ErrCodeConflictDuplicateEvent, "webhook event already recorded", err)
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to record webhook event", err)
	}
	return nil
}

// MarkProcessed finalizes the outcome of a processing attempt. On success
// procErr is empty and the error column is cleared; on failure the message
// is persisted for the audit trail and the row stays eligible for a manual
// replay.
func (r *WebhookEventRepository) MarkProcessed(ctx context.Context, stripeEventID string, processed bool, procErr string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE webhook_events
		 SET processed = $2,
		     error = NULLIF($3, ''),
		     processed_at = NOW()
		 WHERE stripe_event_id = $1`,
		stripeEventID,
		processed,
		procErr,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to finalize webhook event", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeInternalDB, "webhook event row missing during finalize", nil)
	}
	return nil
}

// List returns up to limit events received strictly before the given
// cursor, newest first. Used by the admin audit export to page through
// the ledger.
func (r *WebhookEventRepository) List(ctx context.Context, before time.Time, limit int) ([]*types.WebhookEvent, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+webhookEventColumns+`
		 FROM webhook_events e
		 WHERE e.received_at < $1
		 ORDER BY e.received_at DESC
		 LIMIT $2`,
		before,
		limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list webhook events", err)
	}
	defer rows.Close()

	var events []*types.WebhookEvent
	for rows.Next() {
		e, err := scanWebhookEvent(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan webhook event", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate webhook events", err)
	}
	return events, nil
}
