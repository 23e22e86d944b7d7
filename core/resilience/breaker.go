package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/swarmguard/cti-refine/core/otelinit"
)

// ErrOpen is returned by Do while the breaker rejects calls.
var ErrOpen = errors.New("circuit breaker open")

// CircuitBreaker opens when the failure rate over a rolling window reaches
// a threshold, then lets a few probes through after a cool-down.
type CircuitBreaker struct {
	mu sync.Mutex

	minSamples    int
	failureRate   float64
	halfOpenAfter time.Duration
	maxProbes     int

	state    breakerState
	openedAt time.Time
	probes   int
	window   *slidingWindow

	opened metric.Int64Counter
	closed metric.Int64Counter
}

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// NewCircuitBreaker tracks outcomes over windowSize split into buckets.
func NewCircuitBreaker(windowSize time.Duration, buckets, minSamples int, failureRate float64, halfOpenAfter time.Duration, maxProbes int) *CircuitBreaker {
	if buckets <= 0 {
		buckets = 1
	}
	if maxProbes <= 0 {
		maxProbes = 1
	}
	failureRate = min(max(failureRate, 0), 1)
	meter := otel.Meter(otelinit.InstrumentationName)
	opened, _ := meter.Int64Counter("cti_refine_circuit_open_total")
	closed, _ := meter.Int64Counter("cti_refine_circuit_closed_total")
	return &CircuitBreaker{
		minSamples:    minSamples,
		failureRate:   failureRate,
		halfOpenAfter: halfOpenAfter,
		maxProbes:     maxProbes,
		window:        newSlidingWindow(windowSize, buckets),
		opened:        opened,
		closed:        closed,
	}
}

// Allow reports whether a call may proceed. In half-open state each call
// consumes one probe.
func (c *CircuitBreaker) Allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case stateOpen:
		if c.window.nowFn().Sub(c.openedAt) < c.halfOpenAfter {
			return false
		}
		c.state = stateHalfOpen
		c.probes = 1
	case stateHalfOpen:
		if c.probes >= c.maxProbes {
			return false
		}
		c.probes++
	}
	return true
}

// RecordResult feeds one outcome back into the breaker.
func (c *CircuitBreaker) RecordResult(success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.window.add(success)
	switch c.state {
	case stateClosed:
		total, failures := c.window.stats()
		if total >= c.minSamples && float64(failures)/float64(total) >= c.failureRate {
			c.transition(stateOpen)
		}
	case stateHalfOpen:
		if !success {
			c.transition(stateOpen)
		} else if c.probes >= c.maxProbes {
			c.transition(stateClosed)
		}
	}
}

// State returns "closed", "open" or "half-open".
func (c *CircuitBreaker) State() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.String()
}

// Do runs fn if the breaker allows it and records whether it failed.
// Errors for which ignore returns true count as successes.
func Do[T any](c *CircuitBreaker, fn func() (T, error), ignore func(error) bool) (T, error) {
	var zero T
	if !c.Allow() {
		return zero, ErrOpen
	}
	v, err := fn()
	c.RecordResult(err == nil || (ignore != nil && ignore(err)))
	return v, err
}

func (c *CircuitBreaker) transition(to breakerState) {
	c.state = to
	switch to {
	case stateOpen:
		c.openedAt = c.window.nowFn()
		c.opened.Add(context.Background(), 1)
	case stateClosed:
		c.openedAt = time.Time{}
		c.window.reset()
		c.closed.Add(context.Background(), 1)
	}
}

// slidingWindow keeps success/failure counts in fixed time buckets. A bucket
// is cleared when its slot is reused by a later interval.
type slidingWindow struct {
	interval time.Duration
	data     []bucket
	nowFn    func() time.Time
}

type bucket struct {
	epoch         int64
	success, fail int
}

func newSlidingWindow(size time.Duration, buckets int) *slidingWindow {
	interval := size / time.Duration(buckets)
	if interval <= 0 {
		interval = time.Millisecond
	}
	return &slidingWindow{interval: interval, data: make([]bucket, buckets), nowFn: time.Now}
}

func (w *slidingWindow) epoch(now time.Time) int64 {
	return now.UnixNano() / w.interval.Nanoseconds()
}

func (w *slidingWindow) add(success bool) {
	e := w.epoch(w.nowFn())
	b := &w.data[e%int64(len(w.data))]
	if b.epoch != e {
		*b = bucket{epoch: e}
	}
	if success {
		b.success++
	} else {
		b.fail++
	}
}

func (w *slidingWindow) stats() (total, failures int) {
	oldest := w.epoch(w.nowFn()) - int64(len(w.data)) + 1
	for _, b := range w.data {
		if b.epoch < oldest {
			continue
		}
		total += b.success + b.fail
		failures += b.fail
	}
	return total, failures
}

func (w *slidingWindow) reset() {
	for i := range w.data {
		w.data[i] = bucket{}
	}
}
