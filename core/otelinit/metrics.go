package otelinit

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds the extraction instruments shared by the batch, API and bus layers.
type Metrics struct {
	Indicators     metric.Int64Counter
	Cells          metric.Int64Counter
	DistinctValues metric.Int64Counter
	JobDuration    metric.Float64Histogram
}

// InitMetrics installs a periodic OTLP metric reader and returns its
// shutdown together with the shared instruments.
func InitMetrics(ctx context.Context, service string, opts Options) (shutdown func(context.Context) error, m Metrics) {
	if !opts.Enabled {
		return noopShutdown, NewMetrics()
	}
	res, err := Resource(service, opts)
	if err != nil {
		slog.Warn("otel resource incomplete", "error", err)
	}
	addr := endpoint(opts, "OTEL_EXPORTER_OTLP_METRICS_ENDPOINT")
	ctxInit, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	exp, err := otlpmetricgrpc.New(ctxInit, otlpmetricgrpc.WithEndpoint(addr), otlpmetricgrpc.WithDialOption(dialOption()))
	if err != nil {
		slog.Warn("metrics exporter init failed", "endpoint", addr, "error", err)
		return noopShutdown, NewMetrics()
	}
	reader := sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(10*time.Second))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithResource(res))
	otel.SetMeterProvider(mp)
	slog.Info("metrics initialized", "endpoint", addr)
	return mp.Shutdown, NewMetrics()
}

// NewMetrics creates the common instruments from the global meter provider.
func NewMetrics() Metrics {
	meter := otel.Meter(InstrumentationName)
	indicators, _ := meter.Int64Counter("cti_refine_indicators_total")
	cells, _ := meter.Int64Counter("cti_refine_cells_total")
	distinct, _ := meter.Int64Counter("cti_refine_distinct_values_total")
	dur, _ := meter.Float64Histogram("cti_refine_job_duration_seconds")
	return Metrics{Indicators: indicators, Cells: cells, DistinctValues: distinct, JobDuration: dur}
}
