package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestLimiter(capacity int64, fill float64, window time.Duration, maxPerWindow int64) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	rl := NewRateLimiter(capacity, fill, window, maxPerWindow)
	rl.now = clock.Now
	rl.bucket.last = clock.now
	rl.window.start = clock.now
	return rl, clock
}

func TestRateLimiterRefills(t *testing.T) {
	rl, clock := newTestLimiter(5, 5, time.Second, 0)
	for i := 0; i < 5; i++ {
		if !rl.Allow() {
			t.Fatalf("expected allow %d", i)
		}
	}
	if rl.Allow() {
		t.Fatalf("expected deny after capacity")
	}
	clock.Advance(200 * time.Millisecond)
	if !rl.Allow() {
		t.Fatalf("expected allow after refill")
	}
	if rl.Allow() {
		t.Fatalf("only one token should have been refilled")
	}
}

func TestRateLimiterWindowCap(t *testing.T) {
	rl, clock := newTestLimiter(100, 100, time.Minute, 3)
	for i := 0; i < 3; i++ {
		if !rl.Allow() {
			t.Fatalf("expected allow %d", i)
		}
	}
	if rl.Allow() {
		t.Fatalf("window cap should deny the fourth request")
	}
	if d := rl.ReserveAfter(1); d != time.Minute {
		t.Fatalf("ReserveAfter = %s, want the rest of the window", d)
	}
	clock.Advance(time.Minute)
	if !rl.Allow() {
		t.Fatalf("new window should admit")
	}
}

func TestReserveAfter(t *testing.T) {
	rl, _ := newTestLimiter(1, 10, time.Second, 0)
	if d := rl.ReserveAfter(1); d != 0 {
		t.Fatalf("token available, expected 0 got %s", d)
	}
	rl.Allow()
	if d := rl.ReserveAfter(1); d != 100*time.Millisecond {
		t.Fatalf("expected 100ms wait, got %s", d)
	}
	if !rl.AllowN(0) {
		t.Fatalf("zero tokens always allowed")
	}
}

func TestRetryEventuallySucceeds(t *testing.T) {
	calls := 0
	v, err := Retry(context.Background(), Backoff{Attempts: 4, Initial: time.Millisecond}, func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("not yet")
		}
		return 42, nil
	})
	if err != nil || v != 42 {
		t.Fatalf("got %d, %v", v, err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetryReturnsLastError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	_, err := Retry(context.Background(), Backoff{Attempts: 2, Initial: time.Millisecond}, func(context.Context) (string, error) {
		calls++
		return "", boom
	})
	if !errors.Is(err, boom) || calls != 2 {
		t.Fatalf("expected boom after 2 calls, got %v after %d", err, calls)
	}
}

func TestRetryStopsOnPermanent(t *testing.T) {
	denied := errors.New("denied")
	calls := 0
	_, err := Retry(context.Background(), Backoff{Attempts: 5, Initial: time.Millisecond}, func(context.Context) (int, error) {
		calls++
		return 0, Permanent(denied)
	})
	if err != denied || calls != 1 {
		t.Fatalf("expected bare denied after one call, got %v after %d", err, calls)
	}
	if Permanent(nil) != nil {
		t.Fatalf("Permanent(nil) must be nil")
	}
}

func TestRetryHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Retry(ctx, Backoff{Attempts: 3, Initial: time.Second}, func(context.Context) (int, error) {
		return 0, errors.New("fail")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time          { return f.now }
func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

func TestCircuitBreakerOpensAndRecovers(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	cb := NewCircuitBreaker(2*time.Second, 4, 4, 0.5, 500*time.Millisecond, 2)
	cb.window.nowFn = clock.Now

	for i := 0; i < 4; i++ {
		if !cb.Allow() {
			t.Fatalf("should allow while closed (%d)", i)
		}
		cb.RecordResult(false)
	}
	if cb.Allow() || cb.State() != "open" {
		t.Fatalf("expected open breaker, got %s", cb.State())
	}

	clock.Advance(600 * time.Millisecond)
	if !cb.Allow() {
		t.Fatalf("first half-open probe should pass")
	}
	cb.RecordResult(true)
	if !cb.Allow() {
		t.Fatalf("second probe should pass")
	}
	if cb.Allow() {
		t.Fatalf("probes exhausted, expected deny")
	}
	cb.RecordResult(true)
	if cb.State() != "closed" || !cb.Allow() {
		t.Fatalf("expected closed after successful probes, got %s", cb.State())
	}
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	cb := NewCircuitBreaker(time.Second, 2, 1, 1, 100*time.Millisecond, 1)
	cb.window.nowFn = clock.Now
	cb.RecordResult(false)
	if cb.State() != "open" {
		t.Fatalf("expected open, got %s", cb.State())
	}
	clock.Advance(200 * time.Millisecond)
	if !cb.Allow() {
		t.Fatalf("probe should pass")
	}
	cb.RecordResult(false)
	if cb.State() != "open" || cb.Allow() {
		t.Fatalf("failed probe should reopen")
	}
}

func TestWindowForgetsOldBuckets(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	cb := NewCircuitBreaker(time.Second, 4, 3, 0.5, time.Second, 1)
	cb.window.nowFn = clock.Now
	cb.RecordResult(false)
	cb.RecordResult(false)
	clock.Advance(2 * time.Second)
	cb.RecordResult(false)
	if total, failures := cb.window.stats(); total != 1 || failures != 1 {
		t.Fatalf("stats = %d/%d, want 1/1", failures, total)
	}
	if cb.State() != "closed" {
		t.Fatalf("stale failures must not open the breaker")
	}
}

func TestDoIgnoresSelectedErrors(t *testing.T) {
	cb := NewCircuitBreaker(time.Second, 1, 1, 0.5, time.Minute, 1)
	appErr := errors.New("unknown operation")
	_, err := Do(cb, func() (int, error) { return 0, appErr }, func(err error) bool { return errors.Is(err, appErr) })
	if !errors.Is(err, appErr) || cb.State() != "closed" {
		t.Fatalf("ignored error tripped breaker: %v %s", err, cb.State())
	}
	_, _ = Do(cb, func() (int, error) { return 0, errors.New("timeout") }, nil)
	if _, err := Do(cb, func() (int, error) { return 1, nil }, nil); !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen, got %v", err)
	}
}
