package instrument

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Instrumentation exposes tracing and metrics providers for dependency injection.
type Instrumentation interface {
	Tracer(name string) trace.Tracer
	Meter(name string) metric.Meter
	Shutdown(ctx context.Context) error
}

// Config drives OpenTelemetry initialization.
type Config struct {
	// Enabled toggles OpenTelemetry initialization.
	Enabled bool
	// ServiceName is the service.name resource attribute.
	ServiceName string
	// ServiceVersion is the service.version resource attribute.
	ServiceVersion string
	// Environment is the deployment environment name.
	Environment string
	// OTLPEndpoint is the OTLP collector endpoint.
	OTLPEndpoint string
	// OTLPSecure controls TLS usage for OTLP exporters.
	OTLPSecure bool
	// TraceSampleRatio controls trace sampling probability.
	TraceSampleRatio float64
	// MetricsInterval configures the metrics export interval.
	MetricsInterval time.Duration
	// LogLevel is the minimum slog level: debug, info, warn or error.
	LogLevel string
	// MaskFields lists extra log field names to mask in output, on top of
	// DefaultMaskFields.
	MaskFields []string
}

type otelInstrumentation struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	loggerProvider *sdklog.LoggerProvider
}

// New builds an OpenTelemetry-backed implementation or returns a noop instance when disabled.
//
// The default slog logger is replaced in both cases: JSON to stdout with
// sensitive fields masked, plus the OTLP log bridge when enabled. When
// enabled the providers are also installed as the otel globals together with
// W3C trace context propagation.
func New(ctx context.Context, cfg *Config) (Instrumentation, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	if !cfg.Enabled {
		slog.SetDefault(slog.New(newHandler(os.Stdout, handlerOptions{
			serviceName: cfg.ServiceName,
			level:       parseLevel(cfg.LogLevel),
			maskFields:  cfg.MaskFields,
		})))
		return NewNoop(), nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, err
	}

	exp, err := newExporters(ctx, cfg)
	if err != nil {
		return nil, err
	}

	ratio := min(max(cfg.TraceSampleRatio, 0), 1)
	interval := cfg.MetricsInterval
	if interval <= 0 {
		interval = time.Minute
	}

	o := &otelInstrumentation{
		tracerProvider: sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
			sdktrace.WithBatcher(exp.trace),
		),
		meterProvider: sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp.metric, sdkmetric.WithInterval(interval))),
		),
		loggerProvider: sdklog.NewLoggerProvider(
			sdklog.WithResource(res),
			sdklog.WithProcessor(sdklog.NewBatchProcessor(exp.log)),
		),
	}

	otel.SetTracerProvider(o.tracerProvider)
	otel.SetMeterProvider(o.meterProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	slog.SetDefault(slog.New(newHandler(os.Stdout, handlerOptions{
		serviceName: cfg.ServiceName,
		level:       parseLevel(cfg.LogLevel),
		provider:    o.loggerProvider,
		maskFields:  cfg.MaskFields,
	})))

	return o, nil
}

type exporters struct {
	trace  *otlptrace.Exporter
	metric *otlpmetricgrpc.Exporter
	log    *otlploggrpc.Exporter
}

// newExporters dials the OTLP collector for all three signals. Exporters
// created before a failure are shut down.
func newExporters(ctx context.Context, cfg *Config) (*exporters, error) {
	traceOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
	metricOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint)}
	logOpts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if !cfg.OTLPSecure {
		traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
		metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
		logOpts = append(logOpts, otlploggrpc.WithInsecure())
	}

	var exp exporters
	var err error

	if exp.trace, err = otlptracegrpc.New(ctx, traceOpts...); err != nil {
		return nil, err
	}

	if exp.metric, err = otlpmetricgrpc.New(ctx, metricOpts...); err != nil {
		return nil, errors.Join(err, exp.trace.Shutdown(ctx))
	}

	if exp.log, err = otlploggrpc.New(ctx, logOpts...); err != nil {
		return nil, errors.Join(err, exp.trace.Shutdown(ctx), exp.metric.Shutdown(ctx))
	}

	return &exp, nil
}

// Tracer returns a tracer for the given name.
func (o *otelInstrumentation) Tracer(name string) trace.Tracer {
	return o.tracerProvider.Tracer(name)
}

// Meter returns a meter for the given name.
func (o *otelInstrumentation) Meter(name string) metric.Meter {
	return o.meterProvider.Meter(name)
}

// Shutdown flushes and stops tracing, metrics, and logs.
func (o *otelInstrumentation) Shutdown(ctx context.Context) error {
	return errors.Join(
		o.tracerProvider.Shutdown(ctx),
		o.meterProvider.Shutdown(ctx),
		o.loggerProvider.Shutdown(ctx),
	)
}

// NewNoop returns a no-op implementation suitable for unit tests.
func NewNoop() Instrumentation {
	return &noopInstrumentation{
		tracerProvider: tracenoop.NewTracerProvider(),
		meterProvider:  metricnoop.NewMeterProvider(),
	}
}

type noopInstrumentation struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Tracer returns a no-op tracer.
func (n *noopInstrumentation) Tracer(name string) trace.Tracer {
	return n.tracerProvider.Tracer(name)
}

// Meter returns a no-op meter.
func (n *noopInstrumentation) Meter(name string) metric.Meter {
	return n.meterProvider.Meter(name)
}

// Shutdown is a no-op for the noop instrumentation.
func (n *noopInstrumentation) Shutdown(context.Context) error {
	return nil
}
