package resilience

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/swarmguard/cti-refine/core/otelinit"
)

// Backoff configures Retry. Each wait is drawn uniformly from [0, cur] where
// cur starts at Initial and doubles up to Max.
type Backoff struct {
	Attempts int
	Initial  time.Duration
	Max      time.Duration
}

const defaultMaxBackoff = 60 * time.Second

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent wraps err so Retry gives up immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

var (
	retryOnce     sync.Once
	retryAttempts metric.Int64Counter
	retryOutcomes metric.Int64Counter
)

func retryInstruments() {
	retryOnce.Do(func() {
		meter := otel.Meter(otelinit.InstrumentationName)
		retryAttempts, _ = meter.Int64Counter("cti_refine_retry_attempts_total")
		retryOutcomes, _ = meter.Int64Counter("cti_refine_retry_outcomes_total")
	})
}

// Retry calls fn until it succeeds, returns a Permanent error, the attempts
// are used up or ctx is done. The last error from fn is returned unwrapped.
func Retry[T any](ctx context.Context, b Backoff, fn func(context.Context) (T, error)) (T, error) {
	retryInstruments()
	var zero T
	if b.Attempts <= 0 {
		b.Attempts = 1
	}
	if b.Max <= 0 {
		b.Max = defaultMaxBackoff
	}
	cur := min(max(b.Initial, 0), b.Max)
	outcome := func(result string) {
		retryOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		retryAttempts.Add(ctx, 1)
		v, err := fn(ctx)
		if err == nil {
			outcome("success")
			return v, nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			outcome("permanent")
			return zero, perm.err
		}
		lastErr = err
		if attempt >= b.Attempts {
			break
		}

		wait := time.Duration(rand.Int63n(int64(cur) + 1))
		slog.Debug("retrying", "attempt", attempt, "wait", wait, "error", err)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			outcome("cancelled")
			return zero, ctx.Err()
		case <-timer.C:
		}
		cur = min(cur*2, b.Max)
	}
	outcome("exhausted")
	return zero, lastErr
}
