package natsctx

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestNewMsgRoundTripsTraceContext(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	ctx := trace.ContextWithRemoteSpanContext(context.Background(), sc)

	msg := NewMsg(ctx, "cti.refine.extract", []byte("{}"))
	if propagation.HeaderCarrier(msg.Header).Get("traceparent") == "" {
		t.Fatalf("traceparent header not injected: %v", msg.Header)
	}
	got := trace.SpanContextFromContext(Extract(msg))
	if got.TraceID() != traceID {
		t.Fatalf("trace id lost: got %s", got.TraceID())
	}
}

func TestNewMsgWithoutSpan(t *testing.T) {
	msg := NewMsg(context.Background(), "subj", nil)
	if msg.Subject != "subj" {
		t.Fatalf("unexpected subject %q", msg.Subject)
	}
	if propagation.HeaderCarrier(msg.Header).Get("traceparent") != "" {
		t.Fatalf("no span should mean no traceparent")
	}
}
