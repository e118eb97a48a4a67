package core

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealbase/internal/types"
)

func TestJSON_WritesEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	JSON(rec, req, http.StatusCreated, APIResponse{Data: map[string]string{"id": "cust_1"}})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data":{"id":"cust_1"}}`, rec.Body.String())
}

func TestError_AppErrorMapsStatusAndBody(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(types.WithRequestID(req.Context(), "req-1"))

	Error(rec, req, types.NewAppError(types.ErrCodeNotFoundSubscription, "subscription not found", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":{"code":"not_found_subscription","message":"subscription not found","request_id":"req-1"}}`, rec.Body.String())
}

func TestError_AppErrorIncludesDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	Error(rec, req, types.NewAppErrorWithDetails(
		types.ErrCodePaymentDeclined,
		"payment declined",
		nil,
		map[string]any{"decline_code": "insufficient_funds"},
	))

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Contains(t, rec.Body.String(), "insufficient_funds")
}

func TestError_GenericErrorIsOpaque500(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	Error(rec, req, assert.AnError)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "an unexpected error occurred")
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
}

func TestDecodeJSON_Valid(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"ada@example.com"}`))

	var dst struct {
		Email string `json:"email"`
	}
	require.NoError(t, DecodeJSON(rec, req, &dst))
	assert.Equal(t, "ada@example.com", dst.Email)
}

func TestDecodeJSON_EmptyBody(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))

	var dst struct{}
	err := DecodeJSON(rec, req, &dst)
	require.Error(t, err)
	assert.True(t, types.HasCode(err, errCodeValidationInvalidJSON))
	assert.Contains(t, err.Error(), "must not be empty")
}

func TestDecodeJSON_MalformedJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":`))

	var dst struct{}
	err := DecodeJSON(rec, req, &dst)
	require.Error(t, err)
	assert.True(t, types.HasCode(err, errCodeValidationInvalidJSON))
}

func TestDecodeJSON_UnknownFieldRejected(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"emial":"typo@example.com"}`))

	var dst struct {
		Email string `json:"email"`
	}
	err := DecodeJSON(rec, req, &dst)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown field")
}

func TestDecodeJSON_WrongTypeCarriesFieldDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"trial_days":"fourteen"}`))

	var dst struct {
		TrialDays int `json:"trial_days"`
	}
	err := DecodeJSON(rec, req, &dst)
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "trial_days", appErr.Details["field"])
}

func TestDecodeJSON_TrailingContentRejected(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.c"}{"email":"d@e.f"}`))

	var dst struct {
		Email string `json:"email"`
	}
	err := DecodeJSON(rec, req, &dst)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "single JSON object")
}
