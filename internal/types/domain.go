// Package types defines the domain model shared across the billing engine:
// local mirrors of the payment provider's objects, the webhook audit record,
// the provider's wire shapes, and the application error taxonomy.
package types

import "time"

// SubscriptionStatus is the provider-defined lifecycle state of a
// subscription. The provider is authoritative for transitions; this system
// only mirrors whatever it reports.
type SubscriptionStatus string

const (
	SubStatusIncomplete        SubscriptionStatus = "incomplete"
	SubStatusIncompleteExpired SubscriptionStatus = "incomplete_expired"
	SubStatusTrialing          SubscriptionStatus = "trialing"
	SubStatusActive            SubscriptionStatus = "active"
	SubStatusPastDue           SubscriptionStatus = "past_due"
	SubStatusCanceled          SubscriptionStatus = "canceled"
	SubStatusUnpaid            SubscriptionStatus = "unpaid"
	SubStatusPaused            SubscriptionStatus = "paused"
)

// EntitledStatuses is the set of statuses treated as "feature access granted"
// by the rest of the application. past_due is included: the provider is still
// retrying payment and access is not revoked until it gives up.
var EntitledStatuses = []SubscriptionStatus{
	SubStatusActive,
	SubStatusTrialing,
	SubStatusPastDue,
}

// Entitled reports whether the status grants feature access.
func (s SubscriptionStatus) Entitled() bool {
	for _, e := range EntitledStatuses {
		if s == e {
			return true
		}
	}
	return false
}

// PlanTier identifies a paid plan. Tiers map 1:1 to configured provider
// price IDs; PlanFree has no price and never reaches the provider.
type PlanTier string

const (
	PlanFree     PlanTier = "free"
	PlanStarter  PlanTier = "starter"
	PlanPro      PlanTier = "pro"
	PlanBusiness PlanTier = "business"
)

// Customer is the local mirror of the provider's billing-account object for
// one application user. The provider customer ID is immutable once set, and
// the user_id unique constraint makes provisioning idempotent.
type Customer struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	StripeCustomerID string    `json:"stripe_customer_id"`
	Email            string    `json:"email"`
	Name             string    `json:"name,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Subscription is the local mirror of the provider's recurring-billing
// object. Rows are created and updated only by the sync operation; the rest
// of the application reads them to gate features.
type Subscription struct {
	ID                   string             `json:"id"`
	UserID               string             `json:"user_id"`
	CustomerID           string             `json:"customer_id"`
	StripeSubscriptionID string             `json:"stripe_subscription_id"`
	PriceID              string             `json:"price_id"`
	Status               SubscriptionStatus `json:"status"`
	CancelAtPeriodEnd    bool               `json:"cancel_at_period_end"`
	CurrentPeriodStart   *time.Time         `json:"current_period_start,omitempty"`
	CurrentPeriodEnd     *time.Time         `json:"current_period_end,omitempty"`
	TrialStart           *time.Time         `json:"trial_start,omitempty"`
	TrialEnd             *time.Time         `json:"trial_end,omitempty"`
	CanceledAt           *time.Time         `json:"canceled_at,omitempty"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

// WebhookEvent records one externally-observed provider event. Rows are
// inserted with Processed=false before any handler runs and are never
// deleted; the table doubles as the deduplication index (unique
// stripe_event_id) and the audit trail.
type WebhookEvent struct {
	ID            string     `json:"id"`
	StripeEventID string     `json:"stripe_event_id"`
	EventType     string     `json:"event_type"`
	Processed     bool       `json:"processed"`
	Error         string     `json:"error,omitempty"`
	ReceivedAt    time.Time  `json:"received_at"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
}

// ---------------------------------------------------------------------------
// Provider wire shapes
// ---------------------------------------------------------------------------

// ProviderCustomer is the minimal customer object returned by the provider.
type ProviderCustomer struct {
	ID       string            `json:"id"`
	Email    string            `json:"email"`
	Name     string            `json:"name"`
	Metadata map[string]string `json:"metadata"`
}

// ProviderSubscription mirrors the wire shape of the provider's subscription
// object as it appears both in API responses and in webhook event payloads.
// Timestamps are epoch seconds; zero means the provider did not set the field.
type ProviderSubscription struct {
	ID                 string                    `json:"id"`
	Customer           string                    `json:"customer"`
	Status             string                    `json:"status"`
	CancelAtPeriodEnd  bool                      `json:"cancel_at_period_end"`
	CurrentPeriodStart int64                     `json:"current_period_start"`
	CurrentPeriodEnd   int64                     `json:"current_period_end"`
	TrialStart         int64                     `json:"trial_start"`
	TrialEnd           int64                     `json:"trial_end"`
	CanceledAt         int64                     `json:"canceled_at"`
	Items              ProviderSubscriptionItems `json:"items"`
}

type ProviderSubscriptionItems struct {
	Data []ProviderSubscriptionItem `json:"data"`
}

type ProviderSubscriptionItem struct {
	Price ProviderPrice `json:"price"`
}

type ProviderPrice struct {
	ID string `json:"id"`
}

// PriceID returns the price of the first subscription item, or "" when the
// provider sent no items.
func (s *ProviderSubscription) PriceID() string {
	if len(s.Items.Data) == 0 {
		return ""
	}
	return s.Items.Data[0].Price.ID
}

// CheckoutSession is the opaque handle returned by checkout-session
// creation. URL points at the provider's hosted payment page.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CheckoutParams are the provider-facing inputs for a subscription-mode
// checkout session. UserID is attached as session and subscription metadata
// so the eventual webhook can be correlated even before a local Subscription
// row exists.
type CheckoutParams struct {
	CustomerID string
	UserID     string
	PriceID    string
	SuccessURL string
	CancelURL  string
	TrialDays  int
}
