package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightline-ai/enhance-gateway/services/providers"
)

func TestNewAdapterDefaults(t *testing.T) {
	a := NewAdapter(providers.Config{APIKey: "test-key"})

	assert.Equal(t, "openai", a.Name())
	assert.Equal(t, defaultBaseURL, a.config.BaseURL)
	assert.NotEmpty(t, a.config.Model)
}

func TestAdapter_EnhanceSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "hello world", req.Messages[1].Content)

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":    "chatcmpl-1",
			"model": req.Model,
			"choices": []map[string]interface{}{
				{"index": 0, "message": map[string]string{"role": "assistant", "content": "Hello, world."}, "finish_reason": "stop"},
			},
		})
	}))
	defer srv.Close()

	a := NewAdapter(providers.Config{APIKey: "test-key", BaseURL: srv.URL})

	out, err := a.Enhance(context.Background(), "hello world", providers.ProfileProfessional)
	require.NoError(t, err)
	assert.Equal(t, "Hello, world.", out)
}

func TestAdapter_EnhanceAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit_error"}}`))
	}))
	defer srv.Close()

	a := NewAdapter(providers.Config{APIKey: "test-key", BaseURL: srv.URL})

	_, err := a.Enhance(context.Background(), "hello", providers.ProfileCasual)
	require.Error(t, err)

	var provErr *providers.ProviderError
	require.True(t, errors.As(err, &provErr))
	assert.Equal(t, http.StatusTooManyRequests, provErr.StatusCode)
	assert.Equal(t, "rate_limit_error", provErr.Code)
}

func TestAdapter_EnhanceEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"chatcmpl-2","choices":[]}`))
	}))
	defer srv.Close()

	a := NewAdapter(providers.Config{APIKey: "test-key", BaseURL: srv.URL})

	_, err := a.Enhance(context.Background(), "hello", providers.ProfileConcise)
	require.Error(t, err)

	var provErr *providers.ProviderError
	require.True(t, errors.As(err, &provErr))
	assert.Equal(t, "EMPTY_RESPONSE", provErr.Code)
}

func TestAdapter_EnhanceRespectsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	a := NewAdapter(providers.Config{APIKey: "test-key", BaseURL: srv.URL})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Enhance(ctx, "hello", providers.ProfileFriendly)
	assert.Error(t, err)
}
