// Package telemetry wires OpenTelemetry traces and metrics plus the
// trace-aware slog handler used across the shopper binaries.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Exporter names accepted by Config.Exporter.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

const (
	defaultBatchTimeout   = time.Second
	defaultMetricInterval = time.Minute
)

// ShutdownFunc flushes and stops the installed providers.
type ShutdownFunc func(context.Context) error

// Config controls telemetry exporter behavior.
type Config struct {
	Exporter           string
	OTLPEndpoint       string
	OTLPInsecure       bool
	OTLPTimeoutSeconds int
	// SampleRatio is the fraction of root runs traced. Zero or anything
	// at or above one samples every run.
	SampleRatio float64
	// MetricInterval defaults to one minute.
	MetricInterval time.Duration
}

// exporters pairs the span and metric sinks for one backend.
type exporters struct {
	spans   sdktrace.SpanExporter
	metrics sdkmetric.Exporter
}

// Init initializes the OpenTelemetry SDK with stdout exporters.
func Init(serviceName, version string) (ShutdownFunc, error) {
	return InitWithConfig(serviceName, version, Config{Exporter: ExporterStdout})
}

// InitWithConfig installs global tracer and meter providers for the
// configured exporter. The "none" exporter leaves the no-op providers in place.
func InitWithConfig(serviceName, version string, cfg Config) (ShutdownFunc, error) {
	if strings.EqualFold(cfg.Exporter, ExporterNone) {
		return func(context.Context) error { return nil }, nil
	}

	exp, err := newExporters(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp.spans, sdktrace.WithBatchTimeout(defaultBatchTimeout)),
		sdktrace.WithSampler(sampler(cfg.SampleRatio)),
		sdktrace.WithResource(res),
	)
	interval := cfg.MetricInterval
	if interval <= 0 {
		interval = defaultMetricInterval
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp.metrics, sdkmetric.WithInterval(interval))),
		sdkmetric.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return func(ctx context.Context) error {
		if err := errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx)); err != nil {
			return fmt.Errorf("telemetry shutdown: %w", err)
		}
		return nil
	}, nil
}

// sampler keeps the caller's decision for child spans so a run is
// either traced end to end or not at all.
func sampler(ratio float64) sdktrace.Sampler {
	if ratio <= 0 || ratio >= 1 {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

func newExporters(ctx context.Context, cfg Config) (exporters, error) {
	switch strings.ToLower(cfg.Exporter) {
	case "", ExporterStdout:
		return stdoutExporters()
	case ExporterOTLP:
		if cfg.OTLPEndpoint == "" {
			return exporters{}, fmt.Errorf("otlp endpoint is required")
		}
		return otlpExporters(ctx, cfg)
	default:
		return exporters{}, fmt.Errorf("unknown telemetry exporter: %s", cfg.Exporter)
	}
}

func stdoutExporters() (exporters, error) {
	spans, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return exporters{}, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	metrics, err := stdoutmetric.New()
	if err != nil {
		return exporters{}, fmt.Errorf("failed to create metric exporter: %w", err)
	}
	return exporters{spans: spans, metrics: metrics}, nil
}

func otlpExporters(ctx context.Context, cfg Config) (exporters, error) {
	traceOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
	metricOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.OTLPInsecure {
		traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
		metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
	}
	if cfg.OTLPTimeoutSeconds > 0 {
		timeout := time.Duration(cfg.OTLPTimeoutSeconds) * time.Second
		traceOpts = append(traceOpts, otlptracegrpc.WithTimeout(timeout))
		metricOpts = append(metricOpts, otlpmetricgrpc.WithTimeout(timeout))
	}

	spans, err := otlptracegrpc.New(ctx, traceOpts...)
	if err != nil {
		return exporters{}, fmt.Errorf("failed to create otlp trace exporter: %w", err)
	}
	metrics, err := otlpmetricgrpc.New(ctx, metricOpts...)
	if err != nil {
		_ = spans.Shutdown(ctx)
		return exporters{}, fmt.Errorf("failed to create otlp metric exporter: %w", err)
	}
	return exporters{spans: spans, metrics: metrics}, nil
}
