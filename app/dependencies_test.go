package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brightline-ai/enhance-gateway/config"
)

func writeLimitsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "limits.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestInitLimiter_MalformedLimitsFileAbortsStartup(t *testing.T) {
	deps := &Dependencies{Logger: zap.NewNop()}
	cfg := &config.Config{
		RateLimit: config.RateLimitConfig{
			LimitsFile: writeLimitsFile(t, "authenticated: [not a window"),
		},
	}

	err := deps.initLimiter(cfg)
	require.Error(t, err)
	assert.Nil(t, deps.Limiter)
}

func TestInitLimiter_InvalidWindowAbortsStartup(t *testing.T) {
	deps := &Dependencies{Logger: zap.NewNop()}
	cfg := &config.Config{
		RateLimit: config.RateLimitConfig{
			LimitsFile: writeLimitsFile(t, `
authenticated:
  - name: minute
    span_seconds: 60
    limit: 0
`),
		},
	}

	err := deps.initLimiter(cfg)
	require.Error(t, err)
	assert.Nil(t, deps.Limiter)
}

func TestInitLimiter_MissingFileAbortsStartup(t *testing.T) {
	deps := &Dependencies{Logger: zap.NewNop()}
	cfg := &config.Config{
		RateLimit: config.RateLimitConfig{
			LimitsFile: filepath.Join(t.TempDir(), "does-not-exist.yaml"),
		},
	}

	require.Error(t, deps.initLimiter(cfg))
}

func TestInitLimiter_ValidFileStartsWithFileLimits(t *testing.T) {
	deps := &Dependencies{Logger: zap.NewNop()}
	cfg := &config.Config{
		RateLimit: config.RateLimitConfig{
			LimitsFile: writeLimitsFile(t, `
authenticated:
  - name: minute
    span_seconds: 60
    limit: 12
cooldowns_seconds: [30, 60]
violation_reset_seconds: 600
`),
		},
	}

	require.NoError(t, deps.initLimiter(cfg))
	require.NotNil(t, deps.Limiter)
}

func TestInitLimiter_NoFileUsesDefaults(t *testing.T) {
	deps := &Dependencies{Logger: zap.NewNop()}
	require.NoError(t, deps.initLimiter(&config.Config{}))
	require.NotNil(t, deps.Limiter)
}
