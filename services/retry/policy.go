// Package retry holds the bounded exponential-backoff policy shared by the
// callers that retry transient failures (currently the usage recorder's
// persistence path). Keeping one policy type keeps backoff semantics
// consistent and testable without real sleeping.
package retry

import (
	"context"
	"time"
)

// Policy describes a bounded retry schedule.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// BaseDelay is the delay before the second attempt.
	BaseDelay time.Duration
	// Multiplier scales the delay after each failed attempt.
	Multiplier float64
	// Sleep is injectable for tests; nil means time.Sleep.
	Sleep func(time.Duration)
}

// DefaultPolicy returns the deployment default: 3 attempts, 100ms base,
// doubling per attempt (100ms, 200ms).
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		Multiplier:  2,
	}
}

// Delay returns the pause before the given 1-based attempt number. Attempt 1
// has no delay.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	d := p.BaseDelay
	for i := 2; i < attempt; i++ {
		d = time.Duration(float64(d) * p.Multiplier)
	}
	return d
}

// Do runs fn up to MaxAttempts times, sleeping between attempts, until fn
// returns nil or the context is done. The last error is returned.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if d := p.Delay(attempt); d > 0 {
			sleep(d)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err != nil {
				return err
			}
			return ctxErr
		}
		if err = fn(); err == nil {
			return nil
		}
	}
	return err
}
