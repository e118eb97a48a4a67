package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/klauspost/compress/gzip"

	"dealbase/internal/core"
	"dealbase/internal/types"
)

// exportPageSize is the number of webhook events fetched per page while
// streaming the audit export.
const exportPageSize = 500

// EventLister pages through the webhook event ledger, newest first.
// Implemented by db.WebhookEventRepository.
type EventLister interface {
	List(ctx context.Context, before time.Time, limit int) ([]*types.WebhookEvent, error)
}

// AdminHandler serves operator endpoints. These sit outside user auth and
// are guarded by a static admin API key compared in constant time. An
// empty configured key disables the endpoints entirely.
type AdminHandler struct {
	events   EventLister
	adminKey string
	logger   *slog.Logger
}

// NewAdminHandler creates the admin handler.
func NewAdminHandler(events EventLister, adminKey string, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{events: events, adminKey: adminKey, logger: logger}
}

// Mount registers the admin endpoints on a public router; the key check
// replaces user auth.
func (h *AdminHandler) Mount(r chi.Router) {
	r.With(h.requireAdminKey).Get("/admin/webhook-events/export", h.ExportWebhookEvents)
}

// requireAdminKey rejects requests whose X-Admin-Key header does not match
// the configured key. The comparison is constant time, and a deployment
// without a configured key rejects everything.
func (h *AdminHandler) requireAdminKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		provided := r.Header.Get("X-Admin-Key")
		if h.adminKey == "" || provided == "" ||
			subtle.ConstantTimeCompare([]byte(provided), []byte(h.adminKey)) != 1 {
			core.Error(w, r, types.NewAppError(
				types.ErrCodeAuthTokenInvalid,
				"invalid admin key",
				nil,
			))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ExportWebhookEvents streams the full webhook event ledger as
// gzip-compressed NDJSON, one event per line, newest first. The export
// pages through the store so memory stays flat regardless of ledger size.
func (h *AdminHandler) ExportWebhookEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Content-Encoding", "gzip")
	w.Header().Set("Content-Disposition", `attachment; filename="webhook-events.ndjson.gz"`)
	w.WriteHeader(http.StatusOK)

	gz := gzip.NewWriter(w)
	defer gz.Close()

	enc := json.NewEncoder(gz)
	cursor := time.Now().UTC().Add(time.Minute)
	total := 0

	for {
		events, err := h.events.List(ctx, cursor, exportPageSize)
		if err != nil {
			// Headers are already sent; all we can do is truncate the
			// stream and log. The client sees a short gzip stream.
			h.logger.ErrorContext(ctx, "webhook event export aborted",
				slog.Int("exported", total),
				slog.Any("error", err),
			)
			return
		}
		if len(events) == 0 {
			break
		}

		for _, e := range events {
			if err := enc.Encode(e); err != nil {
				h.logger.WarnContext(ctx, "webhook event export write failed",
					slog.Int("exported", total),
					slog.Any("error", err),
				)
				return
			}
			total++
		}

		cursor = events[len(events)-1].ReceivedAt
		if len(events) < exportPageSize {
			break
		}
	}

	h.logger.InfoContext(ctx, "webhook event export complete", slog.Int("exported", total))
}
