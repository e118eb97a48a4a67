// Stripe webhook ingestion.
//
// This endpoint is NOT behind auth middleware; it is called directly by the
// provider. Security comes from verifying the Stripe-Signature header
// inside the processor, before anything else happens.
package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"dealbase/internal/core"
	"dealbase/internal/types"
)

// maxWebhookBodySize caps webhook payloads at 64 KB. Provider payloads are
// small; the limit protects against abuse on an unauthenticated endpoint.
const maxWebhookBodySize = 64 * 1024

// WebhookProcessor runs one delivery through the processing pipeline.
// Implemented by billing.Processor.
type WebhookProcessor interface {
	Process(ctx context.Context, payload []byte, sigHeader string) error
}

// StripeWebhookHandler receives asynchronous provider events.
type StripeWebhookHandler struct {
	processor WebhookProcessor
	logger    *slog.Logger
}

// NewStripeWebhookHandler creates the webhook handler.
func NewStripeWebhookHandler(processor WebhookProcessor, logger *slog.Logger) *StripeWebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StripeWebhookHandler{processor: processor, logger: logger}
}

// Mount registers the webhook endpoint on a public (unauthenticated) router.
func (h *StripeWebhookHandler) Mount(r chi.Router) {
	r.Post("/webhooks/stripe", h.Handle)
}

// Handle reads the raw payload and signature header and hands them to the
// processor. A nil processor result returns 200 so the provider stops
// redelivering; any error maps to its status (a failed handler returns
// 5xx, triggering provider-side retry with backoff).
func (h *StripeWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.WarnContext(r.Context(), "failed to read webhook body", "error", err)
		core.Error(w, r, types.NewAppError(
			types.ErrCodeWebhookPayloadInvalid,
			"failed to read webhook payload",
			err,
		))
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")

	if err := h.processor.Process(r.Context(), payload, sigHeader); err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, map[string]string{"received": "true"})
}
