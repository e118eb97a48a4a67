package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealbase/internal/types"
)

type sampleRequest struct {
	Email string `validate:"required,email"`
	Plan  string `validate:"required,oneof=starter pro business"`
	Days  int    `validate:"omitempty,min=1,max=90"`
}

func TestValidator_ValidStruct(t *testing.T) {
	v := NewValidator(testLogger())
	assert.NoError(t, v.ValidateStruct(sampleRequest{Email: "ada@example.com", Plan: "pro"}))
}

func TestValidator_MissingRequiredField(t *testing.T) {
	v := NewValidator(testLogger())

	err := v.ValidateStruct(sampleRequest{Plan: "pro"})
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeValidationMissingField, appErr.Code)
	assert.Equal(t, "this field is required", appErr.Details["email"])
}

func TestValidator_OneOfViolation(t *testing.T) {
	v := NewValidator(testLogger())

	err := v.ValidateStruct(sampleRequest{Email: "ada@example.com", Plan: "enterprise"})
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Details["plan"], "starter pro business")
}

func TestValidator_RangeViolation(t *testing.T) {
	v := NewValidator(testLogger())

	err := v.ValidateStruct(sampleRequest{Email: "ada@example.com", Plan: "pro", Days: 365})
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "must be at most 90", appErr.Details["days"])
}

func TestValidator_NonStructIsInternalError(t *testing.T) {
	v := NewValidator(testLogger())

	err := v.ValidateStruct("not a struct")
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.ErrCodeInternalUnexpected))
}
