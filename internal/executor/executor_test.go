package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPolicy_Normalized(t *testing.T) {
	p := Policy{Concurrency: 0, MaxAttempts: -2, Backoff: -time.Second, Throttle: -time.Second}.normalized()
	if p.Concurrency != 1 {
		t.Errorf("Concurrency = %d, want 1", p.Concurrency)
	}
	if p.MaxAttempts != 1 {
		t.Errorf("MaxAttempts = %d, want 1", p.MaxAttempts)
	}
	if p.Backoff != 0 {
		t.Errorf("Backoff = %v, want 0", p.Backoff)
	}
	if p.Throttle != 0 {
		t.Errorf("Throttle = %v, want 0", p.Throttle)
	}
}

func TestPolicy_BackoffFor(t *testing.T) {
	p := Policy{Backoff: 100 * time.Millisecond, MaxBackoff: 500 * time.Millisecond}

	tests := []struct {
		completed int
		want      time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 500 * time.Millisecond}, // capped
		{10, 500 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := p.backoffFor(tt.completed); got != tt.want {
			t.Errorf("backoffFor(%d) = %v, want %v", tt.completed, got, tt.want)
		}
	}
}

func TestExecutor_NilWork(t *testing.T) {
	e := New(DefaultPolicy())
	if _, err := e.Run(context.Background(), 3, nil); err == nil {
		t.Error("Run with nil work should return an error")
	}
}

func TestExecutor_NegativeCount(t *testing.T) {
	e := New(DefaultPolicy())
	work := func(ctx context.Context, i int) (interface{}, error) { return i, nil }
	if _, err := e.Run(context.Background(), -1, work); err == nil {
		t.Error("Run with negative count should return an error")
	}
}

func TestExecutor_EmptyBatch(t *testing.T) {
	e := New(DefaultPolicy())
	work := func(ctx context.Context, i int) (interface{}, error) { return i, nil }

	res, err := e.Run(context.Background(), 0, work)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Total != 0 || len(res.Items) != 0 {
		t.Errorf("empty batch: Total = %d, Items = %d", res.Total, len(res.Items))
	}
}

func TestExecutor_PreservesOrder(t *testing.T) {
	e := New(Policy{Concurrency: 8, MaxAttempts: 1, AttemptTimeout: time.Second})

	// Later items finish first; results must still land at their index.
	work := func(ctx context.Context, i int) (interface{}, error) {
		time.Sleep(time.Duration(20-i) * time.Millisecond)
		return fmt.Sprintf("item-%d", i), nil
	}

	res, err := e.Run(context.Background(), 10, work)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Succeeded != 10 {
		t.Fatalf("Succeeded = %d, want 10", res.Succeeded)
	}
	for i, item := range res.Items {
		want := fmt.Sprintf("item-%d", i)
		if item.Value != want {
			t.Errorf("Items[%d].Value = %v, want %q", i, item.Value, want)
		}
	}
}

func TestExecutor_RetryWithBoundedConcurrency(t *testing.T) {
	// Five items under C=2 where items 1 and 3 fail once then succeed.
	var inflight, peak atomic.Int64
	var mu sync.Mutex
	failures := map[int]int{1: 1, 3: 1}

	work := func(ctx context.Context, i int) (interface{}, error) {
		cur := inflight.Add(1)
		defer inflight.Add(-1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		remaining := failures[i]
		if remaining > 0 {
			failures[i]--
		}
		mu.Unlock()
		if remaining > 0 {
			return nil, errors.New("transient failure")
		}
		return i * 10, nil
	}

	e := New(Policy{Concurrency: 2, MaxAttempts: 2, Backoff: time.Millisecond, AttemptTimeout: time.Second})
	res, err := e.Run(context.Background(), 5, work)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(res.Items) != 5 {
		t.Fatalf("len(Items) = %d, want 5", len(res.Items))
	}
	if res.Succeeded != 5 || res.Failed != 0 {
		t.Errorf("Succeeded/Failed = %d/%d, want 5/0", res.Succeeded, res.Failed)
	}
	for i, item := range res.Items {
		if item.Value != i*10 {
			t.Errorf("Items[%d].Value = %v, want %d", i, item.Value, i*10)
		}
		wantAttempts := 1
		if i == 1 || i == 3 {
			wantAttempts = 2
		}
		if item.Attempts != wantAttempts {
			t.Errorf("Items[%d].Attempts = %d, want %d", i, item.Attempts, wantAttempts)
		}
	}
	if res.Retries != 2 {
		t.Errorf("Retries = %d, want 2", res.Retries)
	}
	if got := peak.Load(); got > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", got)
	}
}

func TestExecutor_PartialFailureIsolation(t *testing.T) {
	work := func(ctx context.Context, i int) (interface{}, error) {
		if i == 1 {
			return nil, errors.New("permanent failure")
		}
		return i, nil
	}

	e := New(Policy{Concurrency: 3, MaxAttempts: 2, Backoff: time.Millisecond, AttemptTimeout: time.Second})
	res, err := e.Run(context.Background(), 3, work)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !res.Items[1].Failed() {
		t.Error("Items[1] should carry a failure marker")
	}
	if res.Items[1].Attempts != 2 {
		t.Errorf("Items[1].Attempts = %d, want 2", res.Items[1].Attempts)
	}
	if res.Items[0].Failed() || res.Items[2].Failed() {
		t.Error("sibling items should be unaffected by item 1's failure")
	}
	if res.Succeeded != 2 || res.Failed != 1 {
		t.Errorf("Succeeded/Failed = %d/%d, want 2/1", res.Succeeded, res.Failed)
	}
}

func TestExecutor_AttemptTimeout(t *testing.T) {
	var attempts atomic.Int64
	work := func(ctx context.Context, i int) (interface{}, error) {
		attempts.Add(1)
		select {
		case <-time.After(time.Second):
			return i, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	e := New(Policy{Concurrency: 1, MaxAttempts: 2, Backoff: time.Millisecond, AttemptTimeout: 20 * time.Millisecond})
	res, err := e.Run(context.Background(), 1, work)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	item := res.Items[0]
	if !item.Failed() {
		t.Fatal("item should fail after exhausting timed-out attempts")
	}
	if !errors.Is(item.Err, ErrAttemptTimeout) {
		t.Errorf("item error = %v, want ErrAttemptTimeout", item.Err)
	}
	if item.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", item.Attempts)
	}
	if res.Timeouts != 2 {
		t.Errorf("Timeouts = %d, want 2", res.Timeouts)
	}
	if got := attempts.Load(); got != 2 {
		t.Errorf("work invoked %d times, want 2", got)
	}
}

func TestExecutor_ThrottleSpacing(t *testing.T) {
	var mu sync.Mutex
	var starts []time.Time

	work := func(ctx context.Context, i int) (interface{}, error) {
		mu.Lock()
		starts = append(starts, time.Now())
		mu.Unlock()
		return i, nil
	}

	throttle := 30 * time.Millisecond
	e := New(Policy{Concurrency: 4, MaxAttempts: 1, Throttle: throttle, AttemptTimeout: time.Second})
	if _, err := e.Run(context.Background(), 4, work); err != nil {
		t.Fatalf("Run: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(starts) != 4 {
		t.Fatalf("recorded %d starts, want 4", len(starts))
	}
	// Starts are not ordered by item index; sort by time.
	for i := 0; i < len(starts); i++ {
		for j := i + 1; j < len(starts); j++ {
			if starts[j].Before(starts[i]) {
				starts[i], starts[j] = starts[j], starts[i]
			}
		}
	}
	// Allow scheduling jitter but require meaningful spacing.
	minGap := throttle - 10*time.Millisecond
	for i := 1; i < len(starts); i++ {
		if gap := starts[i].Sub(starts[i-1]); gap < minGap {
			t.Errorf("start gap %d = %v, want >= %v", i, gap, minGap)
		}
	}
}

func TestExecutor_OuterCancellation(t *testing.T) {
	started := make(chan struct{})
	var once sync.Once

	work := func(ctx context.Context, i int) (interface{}, error) {
		once.Do(func() { close(started) })
		select {
		case <-time.After(5 * time.Second):
			return i, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := New(Policy{Concurrency: 2, MaxAttempts: 3, Backoff: time.Millisecond, AttemptTimeout: time.Minute})

	done := make(chan struct{})
	var res *BatchResult
	var runErr error
	go func() {
		res, runErr = e.Run(ctx, 4, work)
		close(done)
	}()

	<-started
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return promptly after cancellation")
	}

	if !errors.Is(runErr, context.Canceled) {
		t.Errorf("Run error = %v, want context.Canceled", runErr)
	}
	if res == nil {
		t.Fatal("Run should return the partial batch on cancellation")
	}
	for i, item := range res.Items {
		if !item.Failed() {
			t.Errorf("Items[%d] should carry a failure marker after cancellation", i)
		}
	}
}

func TestExecutor_WorkPanicIsItemFailure(t *testing.T) {
	work := func(ctx context.Context, i int) (interface{}, error) {
		if i == 0 {
			panic("boom")
		}
		return i, nil
	}

	e := New(Policy{Concurrency: 2, MaxAttempts: 1, AttemptTimeout: time.Second})
	res, err := e.Run(context.Background(), 2, work)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Items[0].Failed() {
		t.Error("panicking item should fail")
	}
	if res.Items[1].Failed() {
		t.Error("sibling of panicking item should succeed")
	}
}
