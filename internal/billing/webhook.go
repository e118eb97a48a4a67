package billing

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"dealbase/internal/external"
	"dealbase/internal/types"
)

// Webhook processing outcomes recorded against metrics.
const (
	OutcomeProcessed = "processed"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
	OutcomeRejected  = "rejected"
)

// EventStore is the persistence surface for the webhook dedup ledger.
// Implemented by db.WebhookEventRepository.
type EventStore interface {
	HasBeenProcessed(ctx context.Context, stripeEventID string) (bool, error)
	Record(ctx context.Context, e *types.WebhookEvent) error
	MarkProcessed(ctx context.Context, stripeEventID string, processed bool, procErr string) error
}

// SubscriptionSyncer is the slice of the billing service the processor
// needs: the sync choke point and the local-only cancel.
type SubscriptionSyncer interface {
	SyncSubscription(ctx context.Context, sub *types.ProviderSubscription) (*types.Subscription, error)
	CancelLocal(ctx context.Context, stripeSubscriptionID string) (*types.Subscription, error)
}

// OutcomeRecorder publishes per-event processing outcomes. Implemented by
// CloudWatchMetrics; may be nil to disable.
type OutcomeRecorder interface {
	RecordWebhookOutcome(ctx context.Context, eventType string, outcome string)
}

// EventPublisher fans out successfully processed subscription changes to
// downstream consumers. May be nil to disable.
type EventPublisher interface {
	Publish(ctx context.Context, msg types.BillingEventMessage) error
}

// Processor implements the webhook ingestion pipeline:
//
//	verify signature -> dedup -> record intent -> dispatch -> finalize
//
// The signature check happens before any store write; an unverified payload
// leaves no trace. The intent row is inserted before dispatch so concurrent
// deliveries of the same event collide on the unique constraint, and the
// loser short-circuits as success.
type Processor struct {
	verifier  external.WebhookVerifier
	events    EventStore
	syncer    SubscriptionSyncer
	provider  ProviderSource
	secret    string
	metrics   OutcomeRecorder
	publisher EventPublisher
	logger    *slog.Logger
}

// NewProcessor creates the webhook processor. metrics and publisher are
// optional; nil disables them.
func NewProcessor(
	verifier external.WebhookVerifier,
	events EventStore,
	syncer SubscriptionSyncer,
	provider ProviderSource,
	secret string,
	metrics OutcomeRecorder,
	publisher EventPublisher,
	logger *slog.Logger,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		verifier:  verifier,
		events:    events,
		syncer:    syncer,
		provider:  provider,
		secret:    secret,
		metrics:   metrics,
		publisher: publisher,
		logger:    logger,
	}
}

// providerEvent is the webhook envelope as delivered by the provider.
type providerEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// checkoutSessionObject is the slice of a checkout session payload the
// processor cares about.
type checkoutSessionObject struct {
	ID           string `json:"id"`
	Mode         string `json:"mode"`
	Subscription string `json:"subscription"`
}

// Process runs one webhook delivery through the pipeline. A nil return
// means the delivery is settled and the provider should not redeliver; an
// error return maps to a non-2xx response so the provider retries.
func (p *Processor) Process(ctx context.Context, payload []byte, sigHeader string) error {
	if err := p.verifier.Verify(payload, sigHeader, p.secret); err != nil {
		p.recordOutcome(ctx, "unknown", OutcomeRejected)
		return types.NewAppError(types.ErrCodeWebhookSignatureInvalid, "webhook signature verification failed", err)
	}

	var event providerEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		p.recordOutcome(ctx, "unknown", OutcomeRejected)
		return types.NewAppError(types.ErrCodeWebhookPayloadInvalid, "webhook payload is not valid JSON", err)
	}
	if event.ID == "" || event.Type == "" {
		p.recordOutcome(ctx, event.Type, OutcomeRejected)
		return types.NewAppError(types.ErrCodeWebhookPayloadInvalid, "webhook payload missing event id or type", nil)
	}

	logger := p.logger.With(
		slog.String("event_id", event.ID),
		slog.String("event_type", event.Type),
	)

	processed, err := p.events.HasBeenProcessed(ctx, event.ID)
	if err != nil {
		return err
	}
	if processed {
		logger.InfoContext(ctx, "duplicate webhook event ignored")
		p.recordOutcome(ctx, event.Type, OutcomeDuplicate)
		return nil
	}

	// Record intent before dispatching. Losing the insert race means a
	// concurrent or earlier delivery owns this event; settle as success so
	// the provider stops redelivering.
	err = p.events.Record(ctx, &types.WebhookEvent{
		ID:            uuid.NewString(),
		StripeEventID: event.ID,
		EventType:     event.Type,
	})
	if err != nil {
		if types.HasCode(err, types.ErrCodeConflictDuplicateEvent) {
			logger.InfoContext(ctx, "webhook event already claimed by another delivery")
			p.recordOutcome(ctx, event.Type, OutcomeDuplicate)
			return nil
		}
		return err
	}

	dispatchErr := p.dispatch(ctx, &event, logger)

	errMsg := ""
	if dispatchErr != nil {
		errMsg = dispatchErr.Error()
	}
	if markErr := p.events.MarkProcessed(ctx, event.ID, dispatchErr == nil, errMsg); markErr != nil {
		logger.ErrorContext(ctx, "failed to finalize webhook event", slog.Any("error", markErr))
		if dispatchErr == nil {
			dispatchErr = markErr
		}
	}

	if dispatchErr != nil {
		logger.ErrorContext(ctx, "webhook event processing failed", slog.Any("error", dispatchErr))
		p.recordOutcome(ctx, event.Type, OutcomeFailed)
		return dispatchErr
	}

	p.recordOutcome(ctx, event.Type, OutcomeProcessed)
	return nil
}

// dispatch routes a verified, deduplicated event to its handler. Unhandled
// event types settle as processed; the provider sends whatever types the
// dashboard has enabled and unknown ones are not an error.
func (p *Processor) dispatch(ctx context.Context, event *providerEvent, logger *slog.Logger) error {
	switch event.Type {
	case external.EventCheckoutCompleted:
		return p.handleCheckoutCompleted(ctx, event, logger)

	case external.EventSubscriptionCreated, external.EventSubscriptionUpdated:
		return p.handleSubscriptionChange(ctx, event)

	case external.EventSubscriptionDeleted:
		return p.handleSubscriptionDeleted(ctx, event, logger)

	default:
		logger.InfoContext(ctx, "unhandled webhook event type")
		return nil
	}
}

// handleCheckoutCompleted re-fetches the subscription created by a
// completed checkout and syncs it. The session payload only references the
// subscription by ID; the re-fetch gets the authoritative current state.
func (p *Processor) handleCheckoutCompleted(ctx context.Context, event *providerEvent, logger *slog.Logger) error {
	var session checkoutSessionObject
	if err := json.Unmarshal(event.Data.Object, &session); err != nil {
		return types.NewAppError(types.ErrCodeWebhookPayloadInvalid, "failed to parse checkout session object", err)
	}

	if session.Mode != "subscription" || session.Subscription == "" {
		// Payment-mode sessions carry no subscription to sync.
		logger.InfoContext(ctx, "checkout session completed without subscription",
			slog.String("session_id", session.ID),
			slog.String("mode", session.Mode),
		)
		return nil
	}

	provider, err := p.provider.Billing()
	if err != nil {
		return err
	}

	sub, err := provider.GetSubscription(ctx, session.Subscription)
	if err != nil {
		return err
	}

	synced, err := p.syncer.SyncSubscription(ctx, sub)
	if err != nil {
		return err
	}

	p.publishChange(ctx, event, synced)
	return nil
}

// handleSubscriptionChange syncs the subscription object carried in the
// event payload.
func (p *Processor) handleSubscriptionChange(ctx context.Context, event *providerEvent) error {
	var sub types.ProviderSubscription
	if err := json.Unmarshal(event.Data.Object, &sub); err != nil {
		return types.NewAppError(types.ErrCodeWebhookPayloadInvalid, "failed to parse subscription object", err)
	}
	if sub.ID == "" {
		return types.NewAppError(types.ErrCodeWebhookPayloadInvalid, "subscription object missing id", nil)
	}

	synced, err := p.syncer.SyncSubscription(ctx, &sub)
	if err != nil {
		return err
	}

	p.publishChange(ctx, event, synced)
	return nil
}

// handleSubscriptionDeleted marks the subscription canceled locally. The
// provider has already destroyed the object, so there is nothing to
// re-fetch. A subscription this system never saw settles as a no-op.
func (p *Processor) handleSubscriptionDeleted(ctx context.Context, event *providerEvent, logger *slog.Logger) error {
	var sub types.ProviderSubscription
	if err := json.Unmarshal(event.Data.Object, &sub); err != nil {
		return types.NewAppError(types.ErrCodeWebhookPayloadInvalid, "failed to parse subscription object", err)
	}
	if sub.ID == "" {
		return types.NewAppError(types.ErrCodeWebhookPayloadInvalid, "subscription object missing id", nil)
	}

	canceled, err := p.syncer.CancelLocal(ctx, sub.ID)
	if err != nil {
		if types.HasCode(err, types.ErrCodeNotFoundSubscription) {
			logger.WarnContext(ctx, "deletion event for unknown subscription",
				slog.String("stripe_subscription_id", sub.ID),
			)
			return nil
		}
		return err
	}

	p.publishChange(ctx, event, canceled)
	return nil
}

// publishChange fans the settled subscription state out to the billing
// events queue. Publish failures are logged, never surfaced: the local
// store is already consistent and a redelivery would not help.
func (p *Processor) publishChange(ctx context.Context, event *providerEvent, sub *types.Subscription) {
	if p.publisher == nil {
		return
	}

	occurredAt := time.Unix(event.Created, 0).UTC()
	if event.Created == 0 {
		occurredAt = time.Now().UTC()
	}

	msg := types.BillingEventMessage{
		TraceID:    types.GetRequestID(ctx),
		UserID:     sub.UserID,
		EventType:  event.Type,
		Status:     sub.Status,
		PriceID:    sub.PriceID,
		OccurredAt: occurredAt,
	}
	if err := p.publisher.Publish(ctx, msg); err != nil {
		p.logger.WarnContext(ctx, "failed to publish billing event",
			slog.String("event_id", event.ID),
			slog.Any("error", err),
		)
	}
}

func (p *Processor) recordOutcome(ctx context.Context, eventType string, outcome string) {
	if p.metrics == nil {
		return
	}
	p.metrics.RecordWebhookOutcome(ctx, eventType, outcome)
}
