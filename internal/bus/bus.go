// Package bus answers extraction requests received over NATS.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	nats "github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/swarmguard/cti-refine/core/natsctx"
	"github.com/swarmguard/cti-refine/core/otelinit"
	"github.com/swarmguard/cti-refine/core/resilience"
	"github.com/swarmguard/cti-refine/internal/extract"
)

// Request is the JSON payload of an extraction request.
type Request struct {
	Operation string `json:"operation"`
	Text      string `json:"text"`
	Defang    bool   `json:"defang,omitempty"`
}

// ErrRemote wraps an error reported by the worker in its reply.
var ErrRemote = errors.New("remote")

// Reply carries either the operation output or an error message.
type Reply struct {
	Operation string `json:"operation,omitempty"`
	Output    string `json:"output"`
	Error     string `json:"error,omitempty"`
}

// Connect dials NATS, retrying with backoff.
func Connect(ctx context.Context, url string, attempts int, delay time.Duration) (*nats.Conn, error) {
	backoff := resilience.Backoff{Attempts: attempts, Initial: delay, Max: 10 * time.Second}
	nc, err := resilience.Retry(ctx, backoff, func(context.Context) (*nats.Conn, error) {
		nc, err := nats.Connect(url, nats.Name("cti-refine"), nats.MaxReconnects(-1))
		if errors.Is(err, nats.ErrAuthorization) {
			return nil, resilience.Permanent(err)
		}
		return nc, err
	})
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	slog.Info("nats connected", "url", nc.ConnectedUrl())
	return nc, nil
}

type Worker struct {
	nc      *nats.Conn
	reg     *extract.Registry
	subject string
	queue   string
	sub     *nats.Subscription
	msgs    metric.Int64Counter
}

func NewWorker(nc *nats.Conn, reg *extract.Registry, subject, queue string) *Worker {
	if reg == nil {
		reg = extract.Default()
	}
	msgs, _ := otel.Meter(otelinit.InstrumentationName).Int64Counter("cti_refine_bus_messages_total")
	return &Worker{nc: nc, reg: reg, subject: subject, queue: queue, msgs: msgs}
}

// Start subscribes to the request subject.
func (w *Worker) Start() error {
	sub, err := natsctx.QueueSubscribe(w.nc, w.subject, w.queue, func(ctx context.Context, m *nats.Msg) {
		out := w.Handle(ctx, m.Data)
		if m.Reply == "" {
			return
		}
		if err := m.Respond(out); err != nil {
			slog.Warn("nats respond failed", "subject", m.Subject, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", w.subject, err)
	}
	w.sub = sub
	slog.Info("bus worker listening", "subject", w.subject, "queue", w.queue)
	return nil
}

// Stop drains the subscription so in-flight requests are answered.
func (w *Worker) Stop() error {
	if w.sub == nil {
		return nil
	}
	return w.sub.Drain()
}

// Handle decodes one request and returns the encoded reply.
func (w *Worker) Handle(ctx context.Context, data []byte) []byte {
	var req Request
	reply := Reply{}
	status := "ok"
	if err := json.Unmarshal(data, &req); err != nil {
		reply.Error = fmt.Sprintf("decode request: %v", err)
		status = "bad_request"
	} else if op, err := w.reg.Lookup(req.Operation); err != nil {
		reply.Error = err.Error()
		status = "unknown_operation"
	} else {
		reply.Operation = op.Name
		reply.Output = op.Run(req.Text, req.Defang)
	}
	w.msgs.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	out, _ := json.Marshal(reply)
	return out
}

// Call sends a request to a worker and decodes its reply. A reply carrying
// an error is returned as a Go error.
func Call(ctx context.Context, nc *nats.Conn, subject string, req Request) (Reply, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return Reply{}, err
	}
	msg, err := natsctx.Request(ctx, nc, subject, data)
	if err != nil {
		return Reply{}, fmt.Errorf("request %s: %w", subject, err)
	}
	var reply Reply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return Reply{}, fmt.Errorf("decode reply: %w", err)
	}
	if reply.Error != "" {
		return reply, fmt.Errorf("%w: %s", ErrRemote, reply.Error)
	}
	return reply, nil
}

// Client sends requests through a circuit breaker so a dead or overloaded
// worker pool fails fast. Errors reported by the worker do not count as
// breaker failures.
type Client struct {
	breaker *resilience.CircuitBreaker
	call    func(ctx context.Context, req Request) (Reply, error)
}

func NewClient(nc *nats.Conn, subject string) *Client {
	return &Client{
		breaker: resilience.NewCircuitBreaker(10*time.Second, 5, 3, 0.5, 2*time.Second, 1),
		call: func(ctx context.Context, req Request) (Reply, error) {
			return Call(ctx, nc, subject, req)
		},
	}
}

// Do runs one request and returns the worker's output.
func (c *Client) Do(ctx context.Context, req Request) (string, error) {
	reply, err := resilience.Do(c.breaker, func() (Reply, error) {
		return c.call(ctx, req)
	}, func(err error) bool { return errors.Is(err, ErrRemote) })
	if err != nil {
		return "", err
	}
	return reply.Output, nil
}
