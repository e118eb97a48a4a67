package types

import "time"

// BillingEventMessage is the payload published to the notification queue
// after a successful subscription state change. The notification system
// consumes it to send billing emails; delivery is entirely outside the
// billing engine.
type BillingEventMessage struct {
	TraceID    string             `json:"trace_id"`
	UserID     string             `json:"user_id"`
	EventType  string             `json:"event_type"`
	Status     SubscriptionStatus `json:"status"`
	PriceID    string             `json:"price_id,omitempty"`
	OccurredAt time.Time          `json:"occurred_at"`
}
