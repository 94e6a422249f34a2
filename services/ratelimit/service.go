package ratelimit

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/brightline-ai/enhance-gateway/internal/clock"
)

// Identity names a caller for limiting purposes: an authenticated subject or
// an anonymous client keyed by IP.
type Identity struct {
	Key           string
	Authenticated bool
}

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed bool
	// Window names the constraint that rejected the request ("cooldown" for
	// an active cooldown). Empty when allowed.
	Window     string
	RetryAfter time.Duration
	// Remaining is the tightest remaining allowance across all windows after
	// this request. Zero when rejected.
	Remaining int64
}

// Config holds the window sets and the cooldown escalation ladder.
type Config struct {
	Authenticated []Window
	Anonymous     []Window
	Cooldowns     []time.Duration
	// ViolationReset clears a caller's escalation level after this long
	// without a new violation.
	ViolationReset time.Duration
}

// DefaultConfig returns the stock limits.
func DefaultConfig() Config {
	return Config{
		Authenticated:  DefaultAuthenticatedWindows(),
		Anonymous:      DefaultAnonymousWindows(),
		Cooldowns:      DefaultCooldowns(),
		ViolationReset: time.Hour,
	}
}

type violationState struct {
	count int
	until time.Time
	last  time.Time
}

// admitStripes bounds the lock table used to serialize check-then-record
// per identity.
const admitStripes = 64

// Limiter admits or rejects requests against sliding windows, escalating the
// cooldown for identities that keep violating. Window counters live in the
// WindowStore; escalation state is per-instance.
type Limiter struct {
	store  WindowStore
	cfg    Config
	clk    clock.Clock
	logger *zap.Logger

	mu         sync.Mutex
	violations map[string]*violationState

	stripes [admitStripes]sync.Mutex
}

// NewLimiter creates a Limiter. Zero-value config fields fall back to the
// defaults.
func NewLimiter(store WindowStore, cfg Config, clk clock.Clock, logger *zap.Logger) *Limiter {
	def := DefaultConfig()
	if len(cfg.Authenticated) == 0 {
		cfg.Authenticated = def.Authenticated
	}
	if len(cfg.Anonymous) == 0 {
		cfg.Anonymous = def.Anonymous
	}
	if len(cfg.Cooldowns) == 0 {
		cfg.Cooldowns = def.Cooldowns
	}
	if cfg.ViolationReset <= 0 {
		cfg.ViolationReset = def.ViolationReset
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Limiter{
		store:      store,
		cfg:        cfg,
		clk:        clk,
		logger:     logger,
		violations: make(map[string]*violationState),
	}
}

// Admit checks every window for the identity before recording anywhere, so a
// rejected request never consumes allowance. Store errors fail open.
//
// The check-then-record sequence is serialized per identity within this
// process; two concurrent requests from the same caller cannot both observe
// spare capacity and both record past a limit. With a shared store, separate
// instances can still race on the last slot of a window (see WindowStore).
func (l *Limiter) Admit(ctx context.Context, id Identity) Decision {
	now := l.clk.Now()

	if d, cooling := l.cooldownRemaining(id.Key, now); cooling {
		return Decision{Allowed: false, Window: "cooldown", RetryAfter: d}
	}

	gate := l.stripeFor(id.Key)
	gate.Lock()
	defer gate.Unlock()

	windows := l.cfg.Anonymous
	if id.Authenticated {
		windows = l.cfg.Authenticated
	}

	remaining := int64(-1)
	for _, w := range windows {
		count, err := l.store.Count(ctx, windowKey(id.Key, w.Name), now.Add(-w.Span))
		if err != nil {
			l.logger.Warn("window store unreachable, admitting request",
				zap.String("identity", id.Key),
				zap.String("window", w.Name),
				zap.Error(err))
			return Decision{Allowed: true}
		}
		if count >= w.Limit {
			cooldown := l.escalate(id.Key, now)
			l.logger.Info("rate limit exceeded",
				zap.String("identity", id.Key),
				zap.String("window", w.Name),
				zap.Int64("count", count),
				zap.Duration("cooldown", cooldown))
			return Decision{Allowed: false, Window: w.Name, RetryAfter: cooldown}
		}
		if left := w.Limit - count - 1; remaining < 0 || left < remaining {
			remaining = left
		}
	}

	for _, w := range windows {
		if err := l.store.Record(ctx, windowKey(id.Key, w.Name), now, w.Span); err != nil {
			l.logger.Warn("recording window event failed",
				zap.String("identity", id.Key),
				zap.String("window", w.Name),
				zap.Error(err))
		}
	}
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: true, Remaining: remaining}
}

func (l *Limiter) cooldownRemaining(key string, now time.Time) (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.violations[key]
	if !ok || !now.Before(v.until) {
		return 0, false
	}
	return v.until.Sub(now), true
}

// escalate bumps the identity's violation level and returns the cooldown to
// serve. Levels past the ladder stay at the last rung; a quiet spell resets
// the ladder.
func (l *Limiter) escalate(key string, now time.Time) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.violations[key]
	if !ok || now.Sub(v.last) > l.cfg.ViolationReset {
		v = &violationState{}
		l.violations[key] = v
	}
	idx := v.count
	if idx >= len(l.cfg.Cooldowns) {
		idx = len(l.cfg.Cooldowns) - 1
	}
	cooldown := l.cfg.Cooldowns[idx]
	v.count++
	v.last = now
	v.until = now.Add(cooldown)
	return cooldown
}

func (l *Limiter) stripeFor(key string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &l.stripes[h.Sum32()%admitStripes]
}

func windowKey(identity, window string) string {
	return identity + ":" + window
}
