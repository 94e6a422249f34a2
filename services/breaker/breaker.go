// Package breaker implements the circuit-breaker state machine that guards a
// single downstream dependency. Each provider gets its own Breaker instance;
// the usage recorder holds an independent one for the persistence store.
//
// State transitions:
//
//	Closed   -> Open     when consecutive failures >= FailureThreshold
//	Open     -> HalfOpen after RecoveryTimeout elapses since the last failure
//	HalfOpen -> Closed   when consecutive successes >= SuccessThreshold
//	HalfOpen -> Open     on any failure
//
// The breaker never calls the dependency itself; callers report outcomes via
// RecordSuccess/RecordFailure and gate attempts on Allow.
package breaker

import (
	"sync"
	"time"

	"github.com/brightline-ai/enhance-gateway/internal/clock"
)

// State represents the breaker's current state.
type State int

const (
	// StateClosed allows attempts; normal operation.
	StateClosed State = iota
	// StateOpen rejects attempts until the recovery timeout elapses.
	StateOpen
	// StateHalfOpen allows probe attempts while testing recovery.
	StateHalfOpen
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config holds breaker thresholds. Zero values fall back to defaults.
type Config struct {
	FailureThreshold int
	SuccessThreshold int
	RecoveryTimeout  time.Duration
}

// DefaultConfig returns the deployment defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 3,
		RecoveryTimeout:  60 * time.Second,
	}
}

// Snapshot is a read-only view of breaker state for diagnostics.
type Snapshot struct {
	State           State     `json:"state"`
	FailureCount    int       `json:"failure_count"`
	SuccessCount    int       `json:"success_count"`
	LastFailureTime time.Time `json:"last_failure_time,omitempty"`
	LastSuccessTime time.Time `json:"last_success_time,omitempty"`
}

// Breaker guards a single downstream dependency. Safe for concurrent use;
// all state transitions serialize on the internal mutex.
type Breaker struct {
	mu              sync.Mutex
	cfg             Config
	clk             clock.Clock
	state           State
	failureCount    int
	successCount    int
	lastFailureTime time.Time
	lastSuccessTime time.Time
}

// New creates a Breaker in the Closed state. Zero/negative config fields are
// replaced with defaults.
func New(cfg Config, clk clock.Clock) *Breaker {
	def := DefaultConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = def.SuccessThreshold
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = def.RecoveryTimeout
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Breaker{
		cfg:   cfg,
		clk:   clk,
		state: StateClosed,
	}
}

// Allow reports whether an attempt may be dispatched. An Open breaker whose
// recovery timeout has elapsed transitions to HalfOpen here, so callers see
// the probe window without an extra tick.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.resolveState() != StateOpen
}

// State returns the current state, resolving Open -> HalfOpen when due.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.resolveState()
}

// resolveState must be called with b.mu held.
func (b *Breaker) resolveState() State {
	if b.state == StateOpen && b.clk.Now().Sub(b.lastFailureTime) >= b.cfg.RecoveryTimeout {
		b.state = StateHalfOpen
		b.successCount = 0
	}
	return b.state
}

// RecordSuccess reports a successful attempt.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastSuccessTime = b.clk.Now()
	switch b.resolveState() {
	case StateHalfOpen:
		b.successCount++
		if b.successCount >= b.cfg.SuccessThreshold {
			b.state = StateClosed
			b.failureCount = 0
			b.successCount = 0
		}
	case StateClosed:
		b.failureCount = 0
	}
}

// RecordFailure reports a failed attempt. A single failure during the
// HalfOpen probe window reopens the circuit immediately.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.clk.Now()
	switch b.resolveState() {
	case StateClosed:
		b.failureCount++
		if b.failureCount >= b.cfg.FailureThreshold {
			b.state = StateOpen
			b.lastFailureTime = now
		}
	case StateHalfOpen:
		b.state = StateOpen
		b.lastFailureTime = now
		b.successCount = 0
	case StateOpen:
		b.lastFailureTime = now
	}
}

// Snapshot returns a copy of the breaker's current state for diagnostics.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		State:           b.resolveState(),
		FailureCount:    b.failureCount,
		SuccessCount:    b.successCount,
		LastFailureTime: b.lastFailureTime,
		LastSuccessTime: b.lastSuccessTime,
	}
}
