// Package ratelimit implements multi-window sliding rate limiting with
// escalating cooldowns for repeat violators. Window counters live behind the
// WindowStore interface so a single instance can use process memory while a
// fleet shares counters through Redis.
package ratelimit

import (
	"context"
	"time"
)

// WindowStore persists per-key event timestamps for sliding-window counting.
// Implementations must be safe for concurrent use. Errors from a store are
// treated as a degraded store, not a rejected request: the limiter fails open.
//
// Count and Record are separate operations; the Limiter serializes the pair
// per identity within a process, but the store does not make them atomic
// across processes. Two instances sharing a store can each admit the last
// slot of a window, so the limit is exact per instance and approximate
// fleet-wide.
type WindowStore interface {
	// Count returns the number of events recorded for key at or after since.
	Count(ctx context.Context, key string, since time.Time) (int64, error)

	// Record appends one event at the given instant. Entries older than
	// retain may be discarded.
	Record(ctx context.Context, key string, at time.Time, retain time.Duration) error
}

// Window is one sliding window constraint, e.g. 10 requests per minute.
type Window struct {
	Name  string
	Span  time.Duration
	Limit int64
}

// DefaultAuthenticatedWindows returns the windows applied to authenticated
// callers.
func DefaultAuthenticatedWindows() []Window {
	return []Window{
		{Name: "minute", Span: time.Minute, Limit: 10},
		{Name: "hour", Span: time.Hour, Limit: 100},
		{Name: "month", Span: 30 * 24 * time.Hour, Limit: 2000},
	}
}

// DefaultAnonymousWindows returns the tighter windows applied to callers
// identified only by IP address.
func DefaultAnonymousWindows() []Window {
	return []Window{
		{Name: "minute", Span: time.Minute, Limit: 3},
		{Name: "hour", Span: time.Hour, Limit: 10},
	}
}

// DefaultCooldowns is the escalation ladder: the first violation costs the
// first entry, the second the next, and further violations stay at the last.
func DefaultCooldowns() []time.Duration {
	return []time.Duration{
		60 * time.Second,
		300 * time.Second,
		1800 * time.Second,
		3600 * time.Second,
	}
}
