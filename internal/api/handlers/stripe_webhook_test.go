package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealbase/internal/types"
)

// recordingProcessor captures what the handler hands to the pipeline.
type recordingProcessor struct {
	payload   []byte
	sigHeader string
	err       error
}

func (p *recordingProcessor) Process(_ context.Context, payload []byte, sigHeader string) error {
	p.payload = payload
	p.sigHeader = sigHeader
	return p.err
}

func TestStripeWebhookHandler_Success(t *testing.T) {
	processor := &recordingProcessor{}
	h := NewStripeWebhookHandler(processor, testLogger())

	body := `{"id":"evt_1","type":"customer.subscription.updated"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/stripe", strings.NewReader(body))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")

	rec := httptest.NewRecorder()
	h.Handle(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":"true"}`, rec.Body.String())
	assert.Equal(t, body, string(processor.payload))
	assert.Equal(t, "t=1,v1=abc", processor.sigHeader)
}

func TestStripeWebhookHandler_InvalidSignatureIs400(t *testing.T) {
	processor := &recordingProcessor{
		err: types.NewAppError(types.ErrCodeWebhookSignatureInvalid, "webhook signature verification failed", nil),
	}
	h := NewStripeWebhookHandler(processor, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/stripe", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.Handle(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "webhook_signature_invalid")
}

func TestStripeWebhookHandler_ProcessingFailureIsNon2xx(t *testing.T) {
	processor := &recordingProcessor{
		err: types.NewAppError(types.ErrCodeInternalDB, "database unavailable", nil),
	}
	h := NewStripeWebhookHandler(processor, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/stripe", strings.NewReader(`{"id":"evt_1"}`))
	rec := httptest.NewRecorder()
	h.Handle(rec, req)

	// The provider redelivers on any non-2xx.
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestStripeWebhookHandler_OversizedBodyRejected(t *testing.T) {
	processor := &recordingProcessor{}
	h := NewStripeWebhookHandler(processor, testLogger())

	big := bytes.Repeat([]byte("a"), maxWebhookBodySize+1)
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/stripe", bytes.NewReader(big))
	rec := httptest.NewRecorder()
	h.Handle(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "webhook_payload_invalid")
	assert.Nil(t, processor.payload)
}
