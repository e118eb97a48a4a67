package billing

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"dealbase/internal/external"
	"dealbase/internal/types"
)

// CustomerStore is the persistence surface the service needs for customers.
// Implemented by db.CustomerRepository.
type CustomerStore interface {
	GetByUserID(ctx context.Context, userID string) (*types.Customer, error)
	GetByStripeID(ctx context.Context, stripeCustomerID string) (*types.Customer, error)
	Upsert(ctx context.Context, c *types.Customer) (*types.Customer, error)
}

// SubscriptionStore is the persistence surface the service needs for
// subscriptions. Implemented by db.SubscriptionRepository.
type SubscriptionStore interface {
	GetActiveByUserID(ctx context.Context, userID string) (*types.Subscription, error)
	GetByStripeID(ctx context.Context, stripeSubscriptionID string) (*types.Subscription, error)
	Upsert(ctx context.Context, s *types.Subscription) (*types.Subscription, error)
	CancelByStripeID(ctx context.Context, stripeSubscriptionID string) (*types.Subscription, error)
}

// ProviderSource hands out the billing provider client, or an
// ErrCodeBillingNotConfigured error in degraded mode. Implemented by
// external.Factory.
type ProviderSource interface {
	Billing() (external.BillingProvider, error)
}

// CheckoutRequest carries the caller-validated inputs for opening a
// checkout session.
type CheckoutRequest struct {
	UserID     string
	PriceID    string
	SuccessURL string
	CancelURL  string
	TrialDays  int
}

// Service implements the payment operations: idempotent customer
// provisioning, checkout session creation, cancellation, and the
// subscription sync choke point that all provider state flows through.
type Service struct {
	customers CustomerStore
	subs      SubscriptionStore
	provider  ProviderSource
	logger    *slog.Logger
}

// NewService creates the billing service.
func NewService(customers CustomerStore, subs SubscriptionStore, provider ProviderSource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{customers: customers, subs: subs, provider: provider, logger: logger}
}

// CreateCustomer provisions the billing customer for an application user.
// Idempotent: an existing local record is returned as-is with zero provider
// traffic, so the operation is safe to call on every login or page load.
// The local lookup runs before the provider gate, which means reads keep
// working even in unconfigured billing mode.
func (s *Service) CreateCustomer(ctx context.Context, userID string, email string, name string) (*types.Customer, error) {
	existing, err := s.customers.GetByUserID(ctx, userID)
	if err == nil {
		return existing, nil
	}
	if !types.HasCode(err, types.ErrCodeNotFoundCustomer) {
		return nil, err
	}

	provider, err := s.provider.Billing()
	if err != nil {
		return nil, err
	}

	pc, err := provider.CreateCustomer(ctx, email, name, userID)
	if err != nil {
		return nil, err
	}

	customer, err := s.customers.Upsert(ctx, &types.Customer{
		ID:               uuid.NewString(),
		UserID:           userID,
		StripeCustomerID: pc.ID,
		Email:            email,
		Name:             name,
	})
	if err != nil {
		// The provider-side customer now exists without a local mirror.
		// The next CreateCustomer call will create a duplicate provider
		// customer; log loudly so the orphan can be cleaned up.
		s.logger.ErrorContext(ctx, "provider customer created but local upsert failed",
			slog.String("user_id", userID),
			slog.String("stripe_customer_id", pc.ID),
			slog.Any("error", err),
		)
		return nil, err
	}

	s.logger.InfoContext(ctx, "billing customer provisioned",
		slog.String("user_id", userID),
		slog.String("stripe_customer_id", customer.StripeCustomerID),
	)
	return customer, nil
}

// CreateCheckoutSession opens a provider checkout session for an existing
// billing customer. The customer must have been provisioned first;
// otherwise ErrCodeNotFoundCustomer is returned and no provider call is
// made.
func (s *Service) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*types.CheckoutSession, error) {
	customer, err := s.customers.GetByUserID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	provider, err := s.provider.Billing()
	if err != nil {
		return nil, err
	}

	session, err := provider.CreateCheckoutSession(ctx, types.CheckoutParams{
		CustomerID: customer.StripeCustomerID,
		UserID:     req.UserID,
		PriceID:    req.PriceID,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
		TrialDays:  req.TrialDays,
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "checkout session created",
		slog.String("user_id", req.UserID),
		slog.String("session_id", session.ID),
		slog.String("price_id", req.PriceID),
	)
	return session, nil
}

// CancelSubscription cancels the user's current subscription at the
// provider and syncs the returned object locally. The local lookup runs
// before the provider gate: a user with nothing to cancel gets a not-found
// error without any provider traffic, and without tripping the 503 in
// unconfigured mode.
func (s *Service) CancelSubscription(ctx context.Context, userID string, atPeriodEnd bool) (*types.Subscription, error) {
	sub, err := s.subs.GetActiveByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	provider, err := s.provider.Billing()
	if err != nil {
		return nil, err
	}

	canceled, err := provider.CancelSubscription(ctx, sub.StripeSubscriptionID, atPeriodEnd)
	if err != nil {
		return nil, err
	}

	synced, err := s.SyncSubscription(ctx, canceled)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "subscription canceled",
		slog.String("user_id", userID),
		slog.String("stripe_subscription_id", sub.StripeSubscriptionID),
		slog.Bool("at_period_end", atPeriodEnd),
	)
	return synced, nil
}

// SyncSubscription is the single choke point through which provider
// subscription state reaches the local store. It maps the provider object
// to the local shape, resolves the owning user via the customer mirror,
// and upserts keyed on the provider subscription ID.
//
// An unknown customer ID surfaces as ErrCodeNotFoundCustomer: it means the
// webhook arrived for a customer this system never provisioned, which is
// worth failing loudly over rather than inserting an unowned row.
func (s *Service) SyncSubscription(ctx context.Context, sub *types.ProviderSubscription) (*types.Subscription, error) {
	customer, err := s.customers.GetByStripeID(ctx, sub.Customer)
	if err != nil {
		return nil, err
	}

	local := &types.Subscription{
		ID:                   uuid.NewString(),
		UserID:               customer.UserID,
		CustomerID:           customer.ID,
		StripeSubscriptionID: sub.ID,
		PriceID:              sub.PriceID(),
		Status:               types.SubscriptionStatus(sub.Status),
		CancelAtPeriodEnd:    sub.CancelAtPeriodEnd,
		CurrentPeriodStart:   unixTime(sub.CurrentPeriodStart),
		CurrentPeriodEnd:     unixTime(sub.CurrentPeriodEnd),
		TrialStart:           unixTime(sub.TrialStart),
		TrialEnd:             unixTime(sub.TrialEnd),
		CanceledAt:           unixTime(sub.CanceledAt),
	}

	stored, err := s.subs.Upsert(ctx, local)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "subscription synced",
		slog.String("user_id", stored.UserID),
		slog.String("stripe_subscription_id", stored.StripeSubscriptionID),
		slog.String("status", string(stored.Status)),
	)
	return stored, nil
}

// CancelLocal marks a subscription canceled in the store without touching
// the provider. Used for customer.subscription.deleted, where the provider
// has already destroyed the object.
func (s *Service) CancelLocal(ctx context.Context, stripeSubscriptionID string) (*types.Subscription, error) {
	return s.subs.CancelByStripeID(ctx, stripeSubscriptionID)
}

// ActiveSubscription returns the user's current entitled subscription.
func (s *Service) ActiveSubscription(ctx context.Context, userID string) (*types.Subscription, error) {
	return s.subs.GetActiveByUserID(ctx, userID)
}

// unixTime converts provider epoch seconds to *time.Time in UTC. Zero
// (field absent on the wire) maps to nil.
func unixTime(sec int64) *time.Time {
	if sec == 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
