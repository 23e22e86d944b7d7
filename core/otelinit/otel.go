package otelinit

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// InstrumentationName is the tracer and meter name shared by every component.
const InstrumentationName = "cti-refine"

const defaultEndpoint = "localhost:4317"

// Options comes from the otel section of the config. Exporters are only
// built when Enabled is set.
type Options struct {
	Enabled     bool
	Endpoint    string
	Environment string
	Attributes  map[string]string
}

func noopShutdown(context.Context) error { return nil }

// Resource describes this process: service name, deployment environment and
// any extra attributes, on top of the SDK defaults.
func Resource(service string, opts Options) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{semconv.ServiceName(service)}
	if opts.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(opts.Environment))
	}
	keys := make([]string, 0, len(opts.Attributes))
	for k := range opts.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, attribute.String(k, opts.Attributes[k]))
	}
	return resource.Merge(resource.Default(), resource.NewSchemaless(attrs...))
}

// endpoint picks the collector address: config first, then the per-signal
// env var, then OTEL_EXPORTER_OTLP_ENDPOINT.
func endpoint(opts Options, signalEnv string) string {
	for _, v := range []string{opts.Endpoint, os.Getenv(signalEnv), os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")} {
		if v != "" {
			return v
		}
	}
	return defaultEndpoint
}

func dialOption() grpc.DialOption {
	return grpc.WithTransportCredentials(insecure.NewCredentials())
}

// InitTracer installs a batching OTLP trace provider and returns its
// shutdown. Disabled or failed setups leave the no-op provider in place.
func InitTracer(ctx context.Context, service string, opts Options) func(context.Context) error {
	if !opts.Enabled {
		return noopShutdown
	}
	res, err := Resource(service, opts)
	if err != nil {
		slog.Warn("otel resource incomplete", "error", err)
	}
	addr := endpoint(opts, "OTEL_EXPORTER_OTLP_TRACES_ENDPOINT")
	exp, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(addr), otlptracegrpc.WithDialOption(dialOption()))
	if err != nil {
		slog.Warn("trace exporter init failed", "endpoint", addr, "error", err)
		return noopShutdown
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp), sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)
	slog.Info("tracing initialized", "endpoint", addr, "environment", opts.Environment)
	return tp.Shutdown
}

// WithSpan starts a span under the shared tracer and returns its end func.
func WithSpan(ctx context.Context, name string) (context.Context, func()) {
	ctx, span := otel.Tracer(InstrumentationName).Start(ctx, name)
	return ctx, func() { span.End() }
}

// Flush runs shutdown with a bounded timeout.
func Flush(ctx context.Context, shutdown func(context.Context) error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		slog.Warn("telemetry flush failed", "error", err)
	}
}
