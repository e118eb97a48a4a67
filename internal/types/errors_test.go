package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCode_HTTPStatus(t *testing.T) {
	cases := map[ErrorCode]int{
		ErrCodeValidationMissingField:  http.StatusBadRequest,
		ErrCodeValidationInvalidPlan:   http.StatusBadRequest,
		ErrCodeWebhookSignatureInvalid: http.StatusBadRequest,
		ErrCodeWebhookPayloadInvalid:   http.StatusBadRequest,
		ErrCodeAuthTokenMissing:        http.StatusUnauthorized,
		ErrCodeAuthTokenInvalid:        http.StatusUnauthorized,
		ErrCodePaymentDeclined:         http.StatusPaymentRequired,
		ErrCodeNotFoundCustomer:        http.StatusNotFound,
		ErrCodeNotFoundSubscription:    http.StatusNotFound,
		ErrCodeConflictDuplicateEvent:  http.StatusConflict,
		ErrCodeInternalDB:              http.StatusInternalServerError,
		ErrCodeInternalUnexpected:      http.StatusInternalServerError,
		ErrCodeUpstreamStripe:          http.StatusBadGateway,
		ErrCodeUpstreamUnavailable:     http.StatusBadGateway,
		ErrCodeUpstreamRateLimited:     http.StatusBadGateway,
		ErrCodeBillingNotConfigured:    http.StatusServiceUnavailable,
	}

	for code, want := range cases {
		assert.Equal(t, want, code.HTTPStatus(), "code %s", code)
	}
}

func TestErrorCode_HTTPStatus_UnknownDefaultsTo500(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, ErrorCode("something_new").HTTPStatus())
}

func TestAppError_ErrorAndUnwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := NewAppError(ErrCodeInternalDB, "failed to query", inner)

	assert.Equal(t, "internal_database_error: failed to query", err.Error())
	assert.Equal(t, inner, errors.Unwrap(err))
	assert.Equal(t, http.StatusInternalServerError, err.HTTPStatus())
}

func TestHasCode(t *testing.T) {
	err := NewAppError(ErrCodeNotFoundCustomer, "customer not found", nil)

	assert.True(t, HasCode(err, ErrCodeNotFoundCustomer))
	assert.False(t, HasCode(err, ErrCodeNotFoundSubscription))
	assert.False(t, HasCode(errors.New("plain"), ErrCodeNotFoundCustomer))
	assert.False(t, HasCode(nil, ErrCodeNotFoundCustomer))
}

func TestHasCode_WrappedError(t *testing.T) {
	appErr := NewAppError(ErrCodeConflictDuplicateEvent, "already recorded", nil)
	wrapped := fmt.Errorf("recording event: %w", appErr)

	assert.True(t, HasCode(wrapped, ErrCodeConflictDuplicateEvent))
}

func TestNewAppErrorWithDetails(t *testing.T) {
	err := NewAppErrorWithDetails(ErrCodePaymentDeclined, "payment declined", nil, map[string]any{
		"decline_code": "insufficient_funds",
	})

	require.NotNil(t, err.Details)
	assert.Equal(t, "insufficient_funds", err.Details["decline_code"])
	assert.Equal(t, http.StatusPaymentRequired, err.HTTPStatus())
}
