package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// ErrAttemptTimeout marks an attempt that exceeded the policy's
// AttemptTimeout. Inside the executor it is a retryable failure; callers
// see it only when an item exhausts all attempts on timeouts.
var ErrAttemptTimeout = errors.New("attempt timeout exceeded")

// WorkFunc executes one item of a batch. The index identifies the item;
// the context carries the per-attempt deadline and the caller's outer
// deadline. Implementations should honor ctx, but a WorkFunc that ignores
// it is abandoned (not killed) when its attempt times out.
type WorkFunc func(ctx context.Context, index int) (interface{}, error)

// ItemResult is the terminal outcome of one batch item.
type ItemResult struct {
	// Index is the item's position in the input; results preserve input
	// order regardless of completion order.
	Index int
	// Value is the item's result. Nil when Err is set.
	Value interface{}
	// Err is the item's failure marker after exhausting retries. Nil on
	// success.
	Err error
	// Attempts is how many attempts the item consumed.
	Attempts int
}

// Failed reports whether the item ended in failure.
func (r ItemResult) Failed() bool {
	return r.Err != nil
}

// BatchResult aggregates the outcome of one Run.
type BatchResult struct {
	// Items holds one terminal outcome per input item, in input order.
	Items []ItemResult
	// Total is the number of items in the batch.
	Total int
	// Succeeded is the number of items that produced a value.
	Succeeded int
	// Failed is the number of items that exhausted their attempts.
	Failed int
	// Retries is the total number of re-attempts across all items.
	Retries int
	// Timeouts is the total number of attempt timeouts across all items.
	Timeouts int
	// Elapsed is the wall-clock duration of the batch.
	Elapsed time.Duration
}

// Executor runs batches of independent work items under one Policy.
// An Executor is safe for concurrent use; the throttle gate is shared
// across concurrent batches so downstream spacing holds fleet-wide.
type Executor struct {
	policy Policy

	// startMu and nextStart implement the throttle gate.
	startMu   sync.Mutex
	nextStart time.Time
}

// New creates an Executor with the given policy. Out-of-range policy
// values are clamped.
func New(policy Policy) *Executor {
	return &Executor{policy: policy.normalized()}
}

// Policy returns the normalized policy in effect.
func (e *Executor) Policy() Policy {
	return e.policy
}

// unit tracks one item across its retry attempts.
type unit struct {
	index    int
	attempts int
	timeouts int
	lastErr  error
	// finalized flips once when the unit reaches a terminal outcome.
	finalized atomic.Bool
}

// batch is the shared state of one Run.
type batch struct {
	results []ItemResult
	// pending counts units without a terminal outcome.
	pending sync.WaitGroup
	// timeouts and retries are aggregated as units finalize.
	timeouts atomic.Int64
	retries  atomic.Int64
}

// finalize records a terminal outcome for the unit exactly once.
func (b *batch) finalize(u *unit, value interface{}, err error) {
	if !u.finalized.CompareAndSwap(false, true) {
		return
	}
	b.results[u.index] = ItemResult{
		Index:    u.index,
		Value:    value,
		Err:      err,
		Attempts: u.attempts,
	}
	b.timeouts.Add(int64(u.timeouts))
	if u.attempts > 1 {
		b.retries.Add(int64(u.attempts - 1))
	}
	b.pending.Done()
}

// Run executes n items through work. At most Policy.Concurrency items are
// in flight at any instant; attempt starts are spaced by Policy.Throttle.
// A failed attempt (error or timeout) is re-enqueued after exponential
// backoff until the item succeeds or exhausts Policy.MaxAttempts, at
// which point a failure marker lands at the item's index. Individual item
// failures never abort the batch.
//
// Run returns an error only for programmer misuse or when ctx ends before
// the batch does; in the latter case every unfinished item carries the
// context error and the partial batch is still returned.
func (e *Executor) Run(ctx context.Context, n int, work WorkFunc) (*BatchResult, error) {
	if work == nil {
		return nil, fmt.Errorf("parallel run: work function is nil")
	}
	if n < 0 {
		return nil, fmt.Errorf("parallel run: negative item count %d", n)
	}

	start := time.Now()
	b := &batch{results: make([]ItemResult, n)}
	if n == 0 {
		return e.collect(b, start), nil
	}

	units := make([]*unit, n)
	// The queue is buffered for the whole batch: retry timers can always
	// re-enqueue without blocking, even after workers have exited.
	queue := make(chan *unit, n)
	for i := 0; i < n; i++ {
		units[i] = &unit{index: i}
		queue <- units[i]
	}
	b.pending.Add(n)

	// batchDone closes when every unit has a terminal outcome.
	batchDone := make(chan struct{})
	go func() {
		b.pending.Wait()
		close(batchDone)
	}()

	var workers sync.WaitGroup
	for w := 0; w < e.policy.Concurrency; w++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			e.runSlot(ctx, b, queue, batchDone, work)
		}()
	}

	select {
	case <-batchDone:
		return e.collect(b, start), nil
	case <-ctx.Done():
		// Abandon in-flight attempts and mark everything unfinished with
		// the context error. Workers exit promptly because attempts are
		// select-based.
		workers.Wait()
		for _, u := range units {
			b.finalize(u, nil, fmt.Errorf("parallel batch interrupted: %w", ctx.Err()))
		}
		<-batchDone
		return e.collect(b, start), ctx.Err()
	}
}

// collect builds the aggregate result.
func (e *Executor) collect(b *batch, start time.Time) *BatchResult {
	res := &BatchResult{
		Items:    b.results,
		Total:    len(b.results),
		Retries:  int(b.retries.Load()),
		Timeouts: int(b.timeouts.Load()),
		Elapsed:  time.Since(start),
	}
	for _, item := range b.results {
		if item.Failed() {
			res.Failed++
		} else {
			res.Succeeded++
		}
	}
	return res
}

// runSlot is one concurrency slot. It pulls pending units, runs a single
// attempt to completion, and frees the slot between attempts so retries
// of one item never starve its siblings.
func (e *Executor) runSlot(ctx context.Context, b *batch, queue chan *unit, batchDone <-chan struct{}, work WorkFunc) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-batchDone:
			return
		case u := <-queue:
			if err := e.waitTurn(ctx); err != nil {
				return
			}

			u.attempts++
			value, err := e.attempt(ctx, u.index, work)
			if err == nil {
				b.finalize(u, value, nil)
				continue
			}

			u.lastErr = err
			if errors.Is(err, ErrAttemptTimeout) {
				u.timeouts++
			}
			if ctx.Err() != nil {
				// Outer cancellation; Run marks the leftovers.
				return
			}
			if u.attempts >= e.policy.MaxAttempts {
				b.finalize(u, nil, fmt.Errorf("item %d failed after %d attempts: %w", u.index, u.attempts, err))
				continue
			}

			delay := e.policy.backoffFor(u.attempts)
			if delay <= 0 {
				queue <- u
				continue
			}
			time.AfterFunc(delay, func() { queue <- u })
		}
	}
}

// waitTurn enforces the minimum spacing between attempt starts.
func (e *Executor) waitTurn(ctx context.Context) error {
	if e.policy.Throttle <= 0 {
		return ctx.Err()
	}

	e.startMu.Lock()
	now := time.Now()
	if e.nextStart.Before(now) {
		e.nextStart = now
	}
	wait := e.nextStart.Sub(now)
	e.nextStart = e.nextStart.Add(e.policy.Throttle)
	e.startMu.Unlock()

	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// attempt runs one attempt of one item under the per-attempt timeout.
// The work function runs in its own goroutine so a stuck attempt is
// abandoned rather than wedging the slot.
func (e *Executor) attempt(ctx context.Context, index int, work WorkFunc) (interface{}, error) {
	attemptCtx := ctx
	if e.policy.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, e.policy.AttemptTimeout)
		defer cancel()
	}

	type outcome struct {
		value interface{}
		err   error
	}
	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("work panicked: %v", r)}
			}
		}()
		v, err := work(attemptCtx, index)
		ch <- outcome{value: v, err: err}
	}()

	select {
	case out := <-ch:
		return out.value, out.err
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrAttemptTimeout
	}
}
