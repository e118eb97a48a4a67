package external

import (
	"context"

	"dealbase/internal/types"
)

// Provider event types dispatched by the webhook processor.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionCreated = "customer.subscription.created"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// BillingProvider is the payment provider abstraction consumed by the
// billing service. The production implementation is StripeClient; tests
// use mocks. All operations take context for cancellation and tracing.
type BillingProvider interface {
	// CreateCustomer creates a provider-side customer carrying the
	// application user ID in its metadata for webhook correlation.
	CreateCustomer(ctx context.Context, email string, name string, userID string) (*types.ProviderCustomer, error)

	// CreateCheckoutSession opens a subscription-mode checkout session
	// and returns its redirect URL.
	CreateCheckoutSession(ctx context.Context, params types.CheckoutParams) (*types.CheckoutSession, error)

	// CancelSubscription cancels a subscription, either at period end or
	// immediately, and returns the provider's post-cancel object so the
	// caller can sync the authoritative state locally.
	CancelSubscription(ctx context.Context, subscriptionID string, atPeriodEnd bool) (*types.ProviderSubscription, error)

	// GetSubscription fetches the current provider-side subscription state.
	GetSubscription(ctx context.Context, subscriptionID string) (*types.ProviderSubscription, error)
}

// WebhookVerifier checks a raw webhook payload against its signature
// header before any other processing happens.
type WebhookVerifier interface {
	Verify(payload []byte, header string, secret string) error
}
