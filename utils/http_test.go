package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteJSON(rec, http.StatusOK, map[string]string{"key": "value"}))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"key":"value"}`, rec.Body.String())
}

func TestWriteJSON_NilBody(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteJSON(rec, http.StatusOK, nil))
	assert.Empty(t, rec.Body.String())
}

func TestWriteBadRequest(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteBadRequest(rec, "bad input", map[string]interface{}{"field": "text"}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "bad_request", resp.Error)
	assert.Equal(t, "bad input", resp.Message)
}

func TestWriteTooManyRequests_SetsRetryAfter(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteTooManyRequests(rec, "", 90*time.Second, nil))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "90", rec.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limit_exceeded", decodeError(t, rec).Error)
}

func TestWriteTooManyRequests_RoundsUpFractionalSeconds(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteTooManyRequests(rec, "", 1500*time.Millisecond, nil))
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
}

func TestWriteTooManyRequests_NoRetryAfterWhenZero(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteTooManyRequests(rec, "", 0, nil))
	assert.Empty(t, rec.Header().Get("Retry-After"))
}

func TestWritePaymentRequired(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WritePaymentRequired(rec, "", nil))

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, "quota_exceeded", decodeError(t, rec).Error)
}

func TestWriteUnauthorized_DefaultMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteUnauthorized(rec, ""))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Authentication required", decodeError(t, rec).Message)
}
