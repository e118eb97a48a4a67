package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealbase/internal/types"
)

// pagedLister serves canned webhook events through the same
// cursor-pagination contract as the repository.
type pagedLister struct {
	events []*types.WebhookEvent
	calls  int
	err    error
}

func (l *pagedLister) List(_ context.Context, before time.Time, limit int) ([]*types.WebhookEvent, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}

	var page []*types.WebhookEvent
	for _, e := range l.events {
		if e.ReceivedAt.Before(before) {
			page = append(page, e)
		}
		if len(page) == limit {
			break
		}
	}
	return page, nil
}

func adminEvents(n int) []*types.WebhookEvent {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	events := make([]*types.WebhookEvent, n)
	for i := range events {
		events[i] = &types.WebhookEvent{
			ID:            "whe_" + string(rune('a'+i%26)),
			StripeEventID: "evt_" + string(rune('a'+i%26)),
			EventType:     "customer.subscription.updated",
			Processed:     true,
			ReceivedAt:    base.Add(-time.Duration(i) * time.Minute),
		}
	}
	return events
}

func adminRouter(h *AdminHandler) http.Handler {
	r := chi.NewRouter()
	h.Mount(r)
	return r
}

func TestAdminHandler_RequireAdminKey_MissingKey(t *testing.T) {
	h := NewAdminHandler(&pagedLister{}, "admin-secret", testLogger())

	req := httptest.NewRequest(http.MethodGet, "/admin/webhook-events/export", nil)
	rec := httptest.NewRecorder()
	adminRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminHandler_RequireAdminKey_WrongKey(t *testing.T) {
	h := NewAdminHandler(&pagedLister{}, "admin-secret", testLogger())

	req := httptest.NewRequest(http.MethodGet, "/admin/webhook-events/export", nil)
	req.Header.Set("X-Admin-Key", "guess")
	rec := httptest.NewRecorder()
	adminRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminHandler_RequireAdminKey_UnconfiguredRejectsAll(t *testing.T) {
	h := NewAdminHandler(&pagedLister{}, "", testLogger())

	req := httptest.NewRequest(http.MethodGet, "/admin/webhook-events/export", nil)
	req.Header.Set("X-Admin-Key", "")
	rec := httptest.NewRecorder()
	adminRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminHandler_ExportWebhookEvents_GzipNDJSON(t *testing.T) {
	lister := &pagedLister{events: adminEvents(3)}
	h := NewAdminHandler(lister, "admin-secret", testLogger())

	req := httptest.NewRequest(http.MethodGet, "/admin/webhook-events/export", nil)
	req.Header.Set("X-Admin-Key", "admin-secret")
	rec := httptest.NewRecorder()
	adminRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))

	gz, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	defer gz.Close()

	var decoded []types.WebhookEvent
	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		var e types.WebhookEvent
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		decoded = append(decoded, e)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, decoded, 3)
	assert.Equal(t, "evt_a", decoded[0].StripeEventID)
	assert.True(t, decoded[0].Processed)
}

func TestAdminHandler_ExportWebhookEvents_EmptyLedger(t *testing.T) {
	lister := &pagedLister{}
	h := NewAdminHandler(lister, "admin-secret", testLogger())

	req := httptest.NewRequest(http.MethodGet, "/admin/webhook-events/export", nil)
	req.Header.Set("X-Admin-Key", "admin-secret")
	rec := httptest.NewRecorder()
	adminRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	gz, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	defer gz.Close()

	scanner := bufio.NewScanner(gz)
	assert.False(t, scanner.Scan())
	assert.Equal(t, 1, lister.calls)
}
