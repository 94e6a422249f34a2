package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brightline-ai/enhance-gateway/internal/clock"
	"github.com/brightline-ai/enhance-gateway/services/breaker"
	"github.com/brightline-ai/enhance-gateway/services/orchestrator"
	"github.com/brightline-ai/enhance-gateway/services/providers"
	"github.com/brightline-ai/enhance-gateway/services/retry"
	"github.com/brightline-ai/enhance-gateway/services/stats"
	"github.com/brightline-ai/enhance-gateway/services/usage"
)

func newTestStatusHandler(t *testing.T, tracker *stats.Tracker) *StatusHandler {
	t.Helper()
	clk := clock.NewFake(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	registry := providers.NewRegistry(nil)
	orch := orchestrator.NewService(registry, tracker, orchestrator.Config{}, clk, zap.NewNop())
	recorder := usage.NewRecorder(newMemUsageStore(), breaker.Config{}, retry.Policy{
		MaxAttempts: 1,
		Sleep:       func(time.Duration) {},
	}, clk, zap.NewNop())
	return NewStatusHandler(orch, tracker, recorder, zap.NewNop())
}

func getStatus(t *testing.T, h *StatusHandler) StatusResponse {
	t.Helper()
	rec := httptest.NewRecorder()
	h.HandleStatus(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data StatusResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Data
}

func TestHandleStatus_ProviderWithoutBreakerReportsClosedCircuit(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	tracker := stats.NewTracker(clk)
	tracker.RecordSuccess("openai", 50*time.Millisecond)
	h := newTestStatusHandler(t, tracker)

	resp := getStatus(t, h)

	st, ok := resp.Providers["openai"]
	require.True(t, ok)
	assert.Equal(t, breaker.StateClosed.String(), st.Circuit,
		"circuit strings come from the breaker state, never a handler literal")
	assert.Equal(t, int64(1), st.TotalRequests)
}

func TestHandleStatus_ReportsUsageCircuit(t *testing.T) {
	h := newTestStatusHandler(t, stats.NewTracker(nil))

	resp := getStatus(t, h)

	assert.Equal(t, breaker.StateClosed.String(), resp.UsageCircuit)
	assert.NotEmpty(t, resp.Timestamp)
}
