package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brightline-ai/enhance-gateway/internal/clock"
	"github.com/brightline-ai/enhance-gateway/middleware"
	"github.com/brightline-ai/enhance-gateway/models"
	"github.com/brightline-ai/enhance-gateway/repositories"
	"github.com/brightline-ai/enhance-gateway/services/breaker"
	"github.com/brightline-ai/enhance-gateway/services/orchestrator"
	"github.com/brightline-ai/enhance-gateway/services/providers"
	"github.com/brightline-ai/enhance-gateway/services/retry"
	"github.com/brightline-ai/enhance-gateway/services/stats"
	"github.com/brightline-ai/enhance-gateway/services/usage"
)

type stubProvider struct {
	name   string
	output string
	err    error
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Enhance(_ context.Context, _ string, _ providers.Profile) (string, error) {
	return s.output, s.err
}

type memUsageStore struct {
	mu      sync.Mutex
	records map[string]models.UsageRecord
	ledger  map[string]bool
}

func newMemUsageStore() *memUsageStore {
	return &memUsageStore{
		records: make(map[string]models.UsageRecord),
		ledger:  make(map[string]bool),
	}
}

func (s *memUsageStore) GetUsage(_ context.Context, userID string) (*models.UsageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[userID]
	if !ok {
		return nil, repositories.ErrUsageNotFound
	}
	out := rec
	return &out, nil
}

func (s *memUsageStore) UpsertUsage(_ context.Context, rec *models.UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.UserID] = *rec
	return nil
}

func (s *memUsageStore) IsApplied(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger[key], nil
}

func (s *memUsageStore) ApplyUsage(_ context.Context, rec *models.UsageRecord, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ledger[key] {
		return false, nil
	}
	s.ledger[key] = true
	s.records[rec.UserID] = *rec
	return true, nil
}

func (s *memUsageStore) PruneLedger(_ context.Context, _ time.Duration) (int64, error) {
	return 0, nil
}

func newTestEnhanceHandler(t *testing.T, provider providers.Client, store repositories.UsageStore) *EnhanceHandler {
	t.Helper()

	registry := providers.NewRegistry([]string{provider.Name()})
	require.NoError(t, registry.Register(provider, func() string { return "configured-key" }))

	clk := clock.NewFake(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	tracker := stats.NewTracker(clk)
	orch := orchestrator.NewService(registry, tracker, orchestrator.Config{
		AttemptTimeout: 100 * time.Millisecond,
	}, clk, zap.NewNop())

	recorder := usage.NewRecorder(store, breaker.Config{}, retry.Policy{
		MaxAttempts: 1,
		Sleep:       func(time.Duration) {},
	}, clk, zap.NewNop())

	return NewEnhanceHandler(orch, recorder, usage.PeriodMonthly, zap.NewNop())
}

func postEnhance(h *EnhanceHandler, body string, claims *middleware.Claims, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/enhance", bytes.NewBufferString(body))
	if claims != nil {
		req = req.WithContext(middleware.WithClaims(req.Context(), claims))
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.HandleEnhance(rec, req)
	return rec
}

func TestHandleEnhance_AnonymousSuccess(t *testing.T) {
	h := newTestEnhanceHandler(t, &stubProvider{name: "openai", output: "Polished text."}, newMemUsageStore())

	rec := postEnhance(h, `{"text":"polish this"}`, nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp EnhanceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Polished text.", resp.Output)
	assert.Equal(t, "openai", resp.Provider)
	assert.False(t, resp.Degraded)
	assert.Nil(t, resp.Usage, "anonymous requests are not accounted")
}

func TestHandleEnhance_AuthenticatedRecordsUsage(t *testing.T) {
	store := newMemUsageStore()
	h := newTestEnhanceHandler(t, &stubProvider{name: "openai", output: "Polished text."}, store)

	rec := postEnhance(h, `{"text":"polish this"}`, &middleware.Claims{Sub: "user-1"}, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp EnhanceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Usage)
	assert.Equal(t, int64(1), resp.Usage.PeriodCount)
	assert.Equal(t, "free", resp.Usage.Tier)
}

func TestHandleEnhance_IdempotencyKeyDeduplicates(t *testing.T) {
	store := newMemUsageStore()
	h := newTestEnhanceHandler(t, &stubProvider{name: "openai", output: "Polished text."}, store)
	claims := &middleware.Claims{Sub: "user-1"}
	header := map[string]string{"X-Idempotency-Key": "retry-123"}

	first := postEnhance(h, `{"text":"polish this"}`, claims, header)
	second := postEnhance(h, `{"text":"polish this"}`, claims, header)

	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, http.StatusOK, second.Code)

	var resp EnhanceResponse
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &resp))
	require.NotNil(t, resp.Usage)
	assert.Equal(t, int64(1), resp.Usage.TotalCount, "retried key must not double count")
}

func TestHandleEnhance_ProviderFailureReturnsDegraded(t *testing.T) {
	h := newTestEnhanceHandler(t, &stubProvider{name: "openai", err: errors.New("boom")}, newMemUsageStore())

	rec := postEnhance(h, `{"text":"some raw text"}`, nil, nil)

	require.Equal(t, http.StatusOK, rec.Code, "degraded output is still a success")
	var resp EnhanceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Degraded)
	assert.Equal(t, "local", resp.Provider)
	assert.NotEmpty(t, resp.Output)
}

func TestHandleEnhance_AllowanceExhausted(t *testing.T) {
	store := newMemUsageStore()
	store.records["user-1"] = models.UsageRecord{
		UserID:       "user-1",
		Tier:         models.TierFree,
		TotalCount:   25,
		PeriodCount:  25,
		PeriodAnchor: "2026-03",
	}
	h := newTestEnhanceHandler(t, &stubProvider{name: "openai", output: "Polished text."}, store)

	rec := postEnhance(h, `{"text":"polish this"}`, &middleware.Claims{Sub: "user-1"}, nil)

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
}

func TestHandleEnhance_InvalidBody(t *testing.T) {
	h := newTestEnhanceHandler(t, &stubProvider{name: "openai", output: "ok"}, newMemUsageStore())

	assert.Equal(t, http.StatusBadRequest, postEnhance(h, `{not json`, nil, nil).Code)
	assert.Equal(t, http.StatusBadRequest, postEnhance(h, `{}`, nil, nil).Code)
	assert.Equal(t, http.StatusBadRequest, postEnhance(h, `{"text":"hi","profile":"sarcastic"}`, nil, nil).Code)
}
