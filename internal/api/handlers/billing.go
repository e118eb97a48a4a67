// Package handlers contains the HTTP handler implementations for the
// billing API: the authenticated billing endpoints, the public webhook
// ingestion endpoint, and the admin audit export.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"dealbase/internal/billing"
	"dealbase/internal/config"
	"dealbase/internal/core"
	"dealbase/internal/types"
)

// PaymentService abstracts the billing service for the handler layer.
// Implemented by billing.Service; mocked in tests.
type PaymentService interface {
	CreateCustomer(ctx context.Context, userID string, email string, name string) (*types.Customer, error)
	CreateCheckoutSession(ctx context.Context, req billing.CheckoutRequest) (*types.CheckoutSession, error)
	CancelSubscription(ctx context.Context, userID string, atPeriodEnd bool) (*types.Subscription, error)
	ActiveSubscription(ctx context.Context, userID string) (*types.Subscription, error)
}

// --- Request/Response models ---

// CreateCustomerRequest is the body for POST /v1/billing/customer. Email
// and name describe the acting user; the user identity itself comes from
// the authenticated context, never the body.
type CreateCustomerRequest struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name" validate:"omitempty,max=200"`
}

// CreateCheckoutRequest is the body for POST /v1/billing/checkout-session.
//
// SuccessURL and CancelURL are deliberately not accepted from the client.
// They are built server-side from the configured dashboard URL to prevent
// open redirects.
type CreateCheckoutRequest struct {
	Plan      types.PlanTier `json:"plan" validate:"required,oneof=starter pro business"`
	TrialDays int            `json:"trial_days" validate:"omitempty,min=1,max=90"`
}

// CheckoutResponse is the response for POST /v1/billing/checkout-session.
type CheckoutResponse struct {
	CheckoutURL string `json:"checkout_url"`
	SessionID   string `json:"session_id"`
}

// CancelRequest is the body for POST /v1/billing/cancel. AtPeriodEnd
// defaults to true: immediate cancellation forfeits paid time and must be
// asked for explicitly.
type CancelRequest struct {
	AtPeriodEnd *bool `json:"at_period_end"`
}

// --- Billing handler ---

// BillingHandler serves the authenticated, user-initiated billing actions.
type BillingHandler struct {
	service      PaymentService
	catalog      *billing.PlanCatalog
	validator    *core.Validator
	dashboardURL string
	logger       *slog.Logger
}

// NewBillingHandler creates a BillingHandler.
func NewBillingHandler(
	svc PaymentService,
	catalog *billing.PlanCatalog,
	cfg *config.Config,
	v *core.Validator,
	l *slog.Logger,
) *BillingHandler {
	if l == nil {
		l = slog.Default()
	}

	dashboardURL := ""
	if cfg != nil {
		dashboardURL = cfg.Server.DashboardURL
	}

	return &BillingHandler{
		service:      svc,
		catalog:      catalog,
		validator:    v,
		dashboardURL: dashboardURL,
		logger:       l,
	}
}

// Mount registers the billing endpoints. All of them require the auth
// middleware applied by the parent router.
func (h *BillingHandler) Mount(r chi.Router) {
	r.Post("/billing/customer", h.CreateCustomer)
	r.Post("/billing/checkout-session", h.CreateCheckoutSession)
	r.Post("/billing/cancel", h.CancelSubscription)
	r.Get("/billing/subscription", h.GetSubscription)
}

// CreateCustomer provisions the billing customer for the acting user.
// Idempotent; safe to call repeatedly.
func (h *BillingHandler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}

	var req CreateCustomerRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	customer, err := h.service.CreateCustomer(r.Context(), actor.UserID, req.Email, req.Name)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: customer})
}

// CreateCheckoutSession opens a provider-hosted checkout session for one
// of the configured paid plans.
func (h *BillingHandler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}

	var req CreateCheckoutRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	priceID, ok := h.catalog.PriceFor(req.Plan)
	if !ok {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidPlan,
			"plan is not available on this deployment",
			nil,
		))
		return
	}

	session, err := h.service.CreateCheckoutSession(r.Context(), billing.CheckoutRequest{
		UserID:     actor.UserID,
		PriceID:    priceID,
		SuccessURL: h.dashboardURL + "/billing?checkout=success",
		CancelURL:  h.dashboardURL + "/billing?checkout=canceled",
		TrialDays:  req.TrialDays,
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: CheckoutResponse{
		CheckoutURL: session.URL,
		SessionID:   session.ID,
	}})
}

// CancelSubscription cancels the acting user's subscription, at period end
// unless immediate cancellation is requested.
func (h *BillingHandler) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}

	var req CancelRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	atPeriodEnd := true
	if req.AtPeriodEnd != nil {
		atPeriodEnd = *req.AtPeriodEnd
	}

	sub, err := h.service.CancelSubscription(r.Context(), actor.UserID, atPeriodEnd)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: sub})
}

// GetSubscription returns the acting user's current entitled subscription
// from the local store, annotated with its plan tier.
func (h *BillingHandler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}

	sub, err := h.service.ActiveSubscription(r.Context(), actor.UserID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: map[string]any{
		"subscription": sub,
		"plan":         h.catalog.PlanFor(sub.PriceID),
	}})
}
