package otelinit

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestInitMetricsDisabled(t *testing.T) {
	ctx := context.Background()
	shutdown, m := InitMetrics(ctx, "test-service", Options{})
	m.Indicators.Add(ctx, 1)
	m.Cells.Add(ctx, 2)
	m.DistinctValues.Add(ctx, 1)
	m.JobDuration.Record(ctx, 0.25)
	if err := shutdown(ctx); err != nil {
		t.Fatalf("noop shutdown returned %v", err)
	}
}

func TestInitTracerDisabled(t *testing.T) {
	ctx := context.Background()
	shutdown := InitTracer(ctx, "test-service", Options{Endpoint: "collector:4317"})
	ctx, end := WithSpan(ctx, "unit")
	end()
	Flush(ctx, shutdown)
}

func TestResourceAttributes(t *testing.T) {
	res, err := Resource("cti-refine", Options{
		Environment: "staging",
		Attributes:  map[string]string{"team": "cti", "region": "eu"},
	})
	if err != nil {
		t.Fatalf("resource: %v", err)
	}
	want := map[attribute.Key]string{
		"service.name":           "cti-refine",
		"deployment.environment": "staging",
		"team":                   "cti",
		"region":                 "eu",
	}
	for k, v := range want {
		got, ok := res.Set().Value(k)
		if !ok || got.AsString() != v {
			t.Errorf("%s = %q (%v), want %q", k, got.AsString(), ok, v)
		}
	}
}

func TestEndpointPrecedence(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "")
	if got := endpoint(Options{}, "OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"); got != defaultEndpoint {
		t.Fatalf("default endpoint %q", got)
	}
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "shared:4317")
	if got := endpoint(Options{}, "OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"); got != "shared:4317" {
		t.Fatalf("shared env endpoint %q", got)
	}
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "traces:4317")
	if got := endpoint(Options{}, "OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"); got != "traces:4317" {
		t.Fatalf("signal env endpoint %q", got)
	}
	if got := endpoint(Options{Endpoint: "cfg:4317"}, "OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"); got != "cfg:4317" {
		t.Fatalf("config endpoint %q", got)
	}
}
