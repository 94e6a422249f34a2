// Package stats accumulates per-provider performance counters. Pure
// bookkeeping: nothing here drives control flow, and the tracker never
// returns an error. Counters are in-memory and reset on process restart.
package stats

import (
	"sync"
	"time"

	"github.com/brightline-ai/enhance-gateway/internal/clock"
)

// Snapshot is a read-only view of one provider's counters.
type Snapshot struct {
	TotalRequests      int64         `json:"total_requests"`
	SuccessfulRequests int64         `json:"successful_requests"`
	FailedRequests     int64         `json:"failed_requests"`
	AverageLatency     time.Duration `json:"average_latency"`
	LastRequestTime    time.Time     `json:"last_request_time,omitempty"`
}

type providerStats struct {
	total      int64
	successes  int64
	failures   int64
	avgLatency time.Duration
	lastSeen   time.Time
}

// Tracker records attempt outcomes per provider name. Safe for concurrent use.
type Tracker struct {
	mu        sync.RWMutex
	clk       clock.Clock
	providers map[string]*providerStats
}

// NewTracker creates an empty Tracker.
func NewTracker(clk clock.Clock) *Tracker {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Tracker{
		clk:       clk,
		providers: make(map[string]*providerStats),
	}
}

// RecordSuccess records a successful attempt and folds its latency into the
// incremental running mean: avg' = avg + (latency-avg)/n, where n counts
// successful attempts. Only successes contribute latency samples; failures
// and timeouts would skew the mean toward the timeout ceiling.
func (t *Tracker) RecordSuccess(provider string, latency time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.get(provider)
	s.total++
	s.successes++
	s.avgLatency += (latency - s.avgLatency) / time.Duration(s.successes)
	s.lastSeen = t.clk.Now()
}

// RecordFailure records a failed attempt.
func (t *Tracker) RecordFailure(provider string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.get(provider)
	s.total++
	s.failures++
	s.lastSeen = t.clk.Now()
}

// get must be called with t.mu held for writing.
func (t *Tracker) get(provider string) *providerStats {
	s, ok := t.providers[provider]
	if !ok {
		s = &providerStats{}
		t.providers[provider] = s
	}
	return s
}

// Snapshot returns the counters for one provider. An unknown provider yields
// a zero-value snapshot, never an error.
func (t *Tracker) Snapshot(provider string) Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.providers[provider]
	if !ok {
		return Snapshot{}
	}
	return snapshotOf(s)
}

// AllSnapshots returns counters for every provider seen so far.
func (t *Tracker) AllSnapshots() map[string]Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]Snapshot, len(t.providers))
	for name, s := range t.providers {
		out[name] = snapshotOf(s)
	}
	return out
}

func snapshotOf(s *providerStats) Snapshot {
	return Snapshot{
		TotalRequests:      s.total,
		SuccessfulRequests: s.successes,
		FailedRequests:     s.failures,
		AverageLatency:     s.avgLatency,
		LastRequestTime:    s.lastSeen,
	}
}
