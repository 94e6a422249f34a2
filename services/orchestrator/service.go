// Package orchestrator implements the provider dispatch loop: try configured
// providers in fixed priority order, bound every attempt with its own
// deadline, report outcomes to the per-provider circuit breakers and stats,
// and fall back to a deterministic local producer when everything fails.
package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/brightline-ai/enhance-gateway/internal/clock"
	"github.com/brightline-ai/enhance-gateway/services/breaker"
	"github.com/brightline-ai/enhance-gateway/services/providers"
	"github.com/brightline-ai/enhance-gateway/services/stats"
)

// FallbackProvider is the provider name reported on degraded results.
const FallbackProvider = "local"

// Result is the outcome of an enhancement request. Enhance never fails: a
// degraded Result carries locally produced output when every provider is
// unavailable, circuit-open, or failing.
type Result struct {
	Output   string        `json:"output"`
	Provider string        `json:"provider"`
	Degraded bool          `json:"degraded"`
	Latency  time.Duration `json:"-"`
}

// Config holds orchestrator settings.
type Config struct {
	// AttemptTimeout bounds each provider attempt, independent of any
	// caller-level deadline. Zero means 15s.
	AttemptTimeout time.Duration

	// Breaker is applied to every provider's circuit breaker.
	Breaker breaker.Config
}

// Service runs the fallback chain. One instance is constructed at startup and
// owns the per-provider breaker map; breakers live for the process lifetime.
type Service struct {
	registry *providers.Registry
	tracker  *stats.Tracker
	cfg      Config
	clk      clock.Clock
	logger   *zap.Logger

	mu       sync.Mutex
	breakers map[string]*breaker.Breaker
}

// NewService creates a new orchestrator service.
func NewService(registry *providers.Registry, tracker *stats.Tracker, cfg Config, clk clock.Clock, logger *zap.Logger) *Service {
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 15 * time.Second
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Service{
		registry: registry,
		tracker:  tracker,
		cfg:      cfg,
		clk:      clk,
		logger:   logger,
		breakers: make(map[string]*breaker.Breaker),
	}
}

// Enhance tries each available provider in priority order and returns the
// first non-blank success. On total exhaustion it returns the deterministic
// local fallback tagged degraded; this path never fails.
func (s *Service) Enhance(ctx context.Context, input, targetProfile string) *Result {
	profile := providers.ParseProfile(targetProfile)
	start := s.clk.Now()

	for _, name := range s.registry.Available() {
		if ctx.Err() != nil {
			// Caller is gone; produce the fallback rather than dispatching
			// attempts nobody will read.
			break
		}

		br := s.breakerFor(name)
		if !br.Allow() {
			s.logger.Debug("skipping provider, circuit open",
				zap.String("provider", name))
			continue
		}

		client, err := s.registry.Client(name)
		if err != nil {
			continue
		}

		output, err := s.attempt(ctx, name, client, input, profile)
		if err != nil {
			s.logger.Warn("provider attempt failed",
				zap.String("provider", name),
				zap.Error(err))
			continue
		}

		return &Result{
			Output:   output,
			Provider: name,
			Degraded: false,
			Latency:  s.clk.Now().Sub(start),
		}
	}

	s.logger.Warn("all providers exhausted, serving local fallback",
		zap.String("profile", string(profile)))

	return &Result{
		Output:   renderFallback(input, profile),
		Provider: FallbackProvider,
		Degraded: true,
		Latency:  s.clk.Now().Sub(start),
	}
}

// attempt runs one bounded provider call and reports the outcome to the
// provider's breaker and stats. The deadline is enforced here, not delegated
// to the client, so a misbehaving adapter cannot stall the fallback chain.
func (s *Service) attempt(ctx context.Context, name string, client providers.Client, input string, profile providers.Profile) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.AttemptTimeout)
	defer cancel()

	type outcome struct {
		output string
		err    error
	}
	done := make(chan outcome, 1)
	started := s.clk.Now()

	go func() {
		output, err := client.Enhance(attemptCtx, input, profile)
		done <- outcome{output: output, err: err}
	}()

	br := s.breakerFor(name)

	select {
	case out := <-done:
		if out.err != nil {
			br.RecordFailure()
			s.tracker.RecordFailure(name)
			return "", out.err
		}
		if strings.TrimSpace(out.output) == "" {
			// Blank output is a failure; a provider that returns nothing
			// useful must not win the chain.
			br.RecordFailure()
			s.tracker.RecordFailure(name)
			return "", providers.NewProviderError(name, "BLANK_OUTPUT", "provider returned empty output", 0, nil)
		}
		br.RecordSuccess()
		s.tracker.RecordSuccess(name, s.clk.Now().Sub(started))
		return out.output, nil

	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			// The caller went away, not the provider. Drain the in-flight
			// call and let its real outcome drive the breaker and stats; a
			// cancellation error records nothing.
			go func() {
				out := <-done
				switch {
				case errors.Is(out.err, context.Canceled):
				case out.err != nil:
					br.RecordFailure()
					s.tracker.RecordFailure(name)
				case strings.TrimSpace(out.output) == "":
					br.RecordFailure()
					s.tracker.RecordFailure(name)
				default:
					br.RecordSuccess()
					s.tracker.RecordSuccess(name, s.clk.Now().Sub(started))
				}
			}()
			return "", providers.NewProviderError(name, "CALLER_CANCELLED", "caller cancelled the request", 0, ctx.Err())
		}
		br.RecordFailure()
		s.tracker.RecordFailure(name)
		// The in-flight call may still complete; drain it so the goroutine
		// exits, but its late result is never returned.
		go func() { <-done }()
		return "", providers.NewProviderError(name, "ATTEMPT_TIMEOUT", "attempt deadline exceeded", 0, attemptCtx.Err())
	}
}

// breakerFor returns the provider's breaker, creating it on first use.
// Breakers are never destroyed while the process runs.
func (s *Service) breakerFor(name string) *breaker.Breaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	br, ok := s.breakers[name]
	if !ok {
		br = breaker.New(s.cfg.Breaker, s.clk)
		s.breakers[name] = br
	}
	return br
}

// BreakerStates returns each provider's breaker snapshot for diagnostics.
func (s *Service) BreakerStates() map[string]breaker.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]breaker.Snapshot, len(s.breakers))
	for name, br := range s.breakers {
		out[name] = br.Snapshot()
	}
	return out
}
