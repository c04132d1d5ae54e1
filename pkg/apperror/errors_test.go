package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	err := New(CodeValidation, "something is wrong")
	assert.Equal(t, "[VALIDATION_ERROR] something is wrong", err.Error())

	err = NewWithField(CodeMissingInput, "input is missing", "CHI01")
	assert.Equal(t, "[MISSING_INPUT] input is missing (field: CHI01)", err.Error())
}

func TestNewf(t *testing.T) {
	err := Newf(CodeInvalidStep, "invalid value %v for parameter step", 450)
	assert.Equal(t, CodeInvalidStep, err.Code)
	assert.Equal(t, "invalid value 450 for parameter step", err.Message)
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrapf(cause, CodeEngineStep, "physics engine failed on [%v, %v]", 0, 300)

	assert.Equal(t, CodeEngineStep, err.Code)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Message, "[0, 300]")
}

func TestIs_MatchesThroughWrapping(t *testing.T) {
	inner := New(CodeOutOfRange, "outside range")
	wrapped := fmt.Errorf("while advancing: %w", inner)

	assert.True(t, Is(wrapped, CodeOutOfRange))
	assert.False(t, Is(wrapped, CodeInvalidTime))
	assert.False(t, Is(errors.New("plain"), CodeOutOfRange))
}

func TestCode(t *testing.T) {
	assert.Equal(t, CodeInvalidValue, Code(New(CodeInvalidValue, "bad")))
	assert.Equal(t, CodeInternal, Code(errors.New("plain")))
}

func TestHTTPStatus_Mapping(t *testing.T) {
	tests := []struct {
		code   ErrorCode
		status int
	}{
		{CodeValidation, http.StatusBadRequest},
		{CodeMissingInput, http.StatusBadRequest},
		{CodeUnknownInput, http.StatusBadRequest},
		{CodeInvalidTime, http.StatusBadRequest},
		{CodeInvalidStep, http.StatusBadRequest},
		{CodeInvalidValue, http.StatusBadRequest},
		{CodeUnknownPoint, http.StatusBadRequest},
		{CodeInvalidWindow, http.StatusBadRequest},
		{CodeOutOfRange, http.StatusBadRequest},
		{CodeNotInitialized, http.StatusBadRequest},
		{CodeNotFound, http.StatusNotFound},
		{CodeRateLimited, http.StatusTooManyRequests},
		{CodeUnavailable, http.StatusServiceUnavailable},
		{CodeEngineStep, http.StatusInternalServerError},
		{CodeEngineReset, http.StatusInternalServerError},
		{CodeWarmupFailed, http.StatusInternalServerError},
		{CodeInternal, http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(string(tc.code), func(t *testing.T) {
			assert.Equal(t, tc.status, New(tc.code, "msg").HTTPStatus())
		})
	}
}

func TestHTTPStatus_Helper(t *testing.T) {
	assert.Equal(t, http.StatusOK, HTTPStatus(nil))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(New(CodeValidation, "bad")))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("plain")))

	wrapped := fmt.Errorf("context: %w", New(CodeRateLimited, "slow down"))
	assert.Equal(t, http.StatusTooManyRequests, HTTPStatus(wrapped))
}

func TestIsValidation(t *testing.T) {
	assert.True(t, IsValidation(New(CodeMissingInput, "m")))
	assert.True(t, IsValidation(New(CodeInvalidWindow, "w")))
	assert.False(t, IsValidation(New(CodeEngineStep, "e")))
	assert.False(t, IsValidation(New(CodeNotInitialized, "n")))
}

func TestSeverity(t *testing.T) {
	assert.Equal(t, "warning", SeverityWarning.String())
	assert.Equal(t, "error", SeverityError.String())
	assert.Equal(t, "critical", SeverityCritical.String())

	err := NewCritical(CodeInternal, "disk is gone")
	assert.True(t, IsCritical(err))
	assert.False(t, IsCritical(New(CodeInternal, "fine")))

	demoted := err.WithSeverity(SeverityWarning)
	assert.False(t, IsCritical(demoted))
}

func TestWithDetailsAndField(t *testing.T) {
	err := New(CodeInvalidValue, "bad value").
		WithField("U_CT1").
		WithDetails("value", "abc")

	assert.Equal(t, "U_CT1", err.Field)
	assert.Equal(t, "abc", err.Details["value"])
}

func TestPredefinedErrors(t *testing.T) {
	require.NotNil(t, ErrNotInitialized)
	assert.Equal(t, CodeNotInitialized, ErrNotInitialized.Code)
	assert.Equal(t, http.StatusBadRequest, ErrNotInitialized.HTTPStatus())

	assert.Equal(t, http.StatusTooManyRequests, ErrRateLimited.HTTPStatus())
}
