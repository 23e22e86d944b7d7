package resilience

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/swarmguard/cti-refine/core/otelinit"
)

// RateLimiter admits requests while both a token bucket and a fixed-window
// counter have room. Tokens refill lazily on each check.
type RateLimiter struct {
	mu  sync.Mutex
	now func() time.Time

	bucket tokenBucket
	window windowCap

	drops metric.Int64Counter
}

type tokenBucket struct {
	capacity float64
	rate     float64 // tokens per second
	tokens   float64
	last     time.Time
}

func (b *tokenBucket) refill(now time.Time) {
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens = min(b.capacity, b.tokens+elapsed*b.rate)
		b.last = now
	}
}

// wait returns how long until n tokens are available.
func (b *tokenBucket) wait(n float64) time.Duration {
	if b.tokens >= n {
		return 0
	}
	if b.rate <= 0 {
		return -1
	}
	return time.Duration((n - b.tokens) / b.rate * float64(time.Second))
}

// windowCap limits admissions per window; max 0 disables it.
type windowCap struct {
	length time.Duration
	max    int64
	start  time.Time
	count  int64
}

func (w *windowCap) roll(now time.Time) {
	if w.length > 0 && now.Sub(w.start) >= w.length {
		w.start = now
		w.count = 0
	}
}

func (w *windowCap) full(n int64) bool { return w.max > 0 && w.count+n > w.max }

// NewRateLimiter builds a limiter holding capacity tokens refilled at
// fillRate per second, additionally capped at maxPerWindow admissions per
// windowDur.
func NewRateLimiter(capacity int64, fillRate float64, windowDur time.Duration, maxPerWindow int64) *RateLimiter {
	drops, _ := otel.Meter(otelinit.InstrumentationName).Int64Counter("cti_refine_ratelimiter_drops_total")
	now := time.Now()
	return &RateLimiter{
		now:    time.Now,
		bucket: tokenBucket{capacity: float64(capacity), rate: fillRate, tokens: float64(capacity), last: now},
		window: windowCap{length: windowDur, max: maxPerWindow, start: now},
		drops:  drops,
	}
}

func (r *RateLimiter) Allow() bool { return r.AllowN(1) }

// AllowN consumes n tokens if both limits have room.
func (r *RateLimiter) AllowN(n int64) bool {
	if n <= 0 {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	r.bucket.refill(now)
	r.window.roll(now)

	switch {
	case r.window.full(n):
		r.drops.Add(context.Background(), 1, metric.WithAttributes(attribute.String("limit", "window")))
		return false
	case r.bucket.tokens < float64(n):
		r.drops.Add(context.Background(), 1, metric.WithAttributes(attribute.String("limit", "tokens")))
		return false
	}
	r.bucket.tokens -= float64(n)
	r.window.count += n
	return true
}

// ReserveAfter estimates how long a caller should wait before n tokens
// would be admitted. It does not consume anything.
func (r *RateLimiter) ReserveAfter(n int64) time.Duration {
	if n <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	r.bucket.refill(now)
	r.window.roll(now)

	var d time.Duration
	if r.window.full(n) {
		d = r.window.length - now.Sub(r.window.start)
	}
	w := r.bucket.wait(float64(n))
	if w < 0 {
		w = r.window.length
	}
	return max(d, w)
}
