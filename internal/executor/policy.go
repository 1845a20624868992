// Package executor provides the bounded parallel execution primitive used
// by the orchestrator. It runs a batch of independent work items under a
// concurrency cap with per-attempt timeouts, retry with exponential
// backoff, and a minimum spacing between attempt starts.
package executor

import "time"

// Policy configures a batch run. It is an explicit value consumed by the
// Executor constructor rather than per-call decoration.
type Policy struct {
	// Concurrency is the maximum number of items in flight at once.
	Concurrency int
	// AttemptTimeout bounds a single attempt. An attempt that does not
	// produce an outcome within this window counts as a failed attempt.
	// Zero disables the per-attempt timeout.
	AttemptTimeout time.Duration
	// MaxAttempts is the number of attempts per item before the item is
	// recorded as failed.
	MaxAttempts int
	// Backoff is the delay before the second attempt of an item. It
	// doubles for each subsequent attempt of that item.
	Backoff time.Duration
	// MaxBackoff caps the growth of the backoff delay. Zero means no cap.
	MaxBackoff time.Duration
	// Throttle is the minimum spacing between successive attempt starts
	// across the whole batch, independent of the concurrency cap. It
	// protects a shared downstream resource from burst starts.
	Throttle time.Duration
}

// DefaultPolicy returns the executor defaults used when a caller does not
// configure its own policy.
func DefaultPolicy() Policy {
	return Policy{
		Concurrency:    4,
		AttemptTimeout: 2 * time.Minute,
		MaxAttempts:    3,
		Backoff:        500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		Throttle:       0,
	}
}

// normalized clamps the policy to usable values.
func (p Policy) normalized() Policy {
	if p.Concurrency < 1 {
		p.Concurrency = 1
	}
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.Backoff < 0 {
		p.Backoff = 0
	}
	if p.Throttle < 0 {
		p.Throttle = 0
	}
	return p
}

// backoffFor returns the delay before the next attempt, given how many
// attempts have already completed: backoff * 2^(completed-1).
func (p Policy) backoffFor(completed int) time.Duration {
	d := p.Backoff
	for i := 1; i < completed; i++ {
		d *= 2
		if p.MaxBackoff > 0 && d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}
