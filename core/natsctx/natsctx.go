package natsctx

import (
	"context"

	nats "github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

var propagator = propagation.TraceContext{}

// Request injects traceparent into headers and waits for a single reply.
func Request(ctx context.Context, nc *nats.Conn, subject string, data []byte) (*nats.Msg, error) {
	return nc.RequestMsgWithContext(ctx, NewMsg(ctx, subject, data))
}

// NewMsg builds a message carrying the trace context of ctx.
func NewMsg(ctx context.Context, subject string, data []byte) *nats.Msg {
	hdr := nats.Header{}
	propagator.Inject(ctx, propagation.HeaderCarrier(hdr))
	return &nats.Msg{Subject: subject, Data: data, Header: hdr}
}

// Extract returns a context carrying the trace context found in the message headers.
func Extract(m *nats.Msg) context.Context {
	return propagator.Extract(context.Background(), propagation.HeaderCarrier(m.Header))
}

// QueueSubscribe wraps nc.QueueSubscribe and extracts trace context for each message, starting a child span.
// An empty queue falls back to a plain subscription.
func QueueSubscribe(nc *nats.Conn, subject, queue string, handler func(context.Context, *nats.Msg)) (*nats.Subscription, error) {
	cb := func(m *nats.Msg) {
		ctx := Extract(m)
		tr := otel.Tracer("cti-refine-nats")
		ctx, span := tr.Start(ctx, "nats.consume", trace.WithSpanKind(trace.SpanKindConsumer))
		span.SetAttributes(attribute.String("messaging.destination.name", m.Subject))
		defer span.End()
		handler(ctx, m)
	}
	if queue == "" {
		return nc.Subscribe(subject, cb)
	}
	return nc.QueueSubscribe(subject, queue, cb)
}
