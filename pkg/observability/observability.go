// Package observability wraps structured logging (log/slog) and
// OpenTelemetry tracing/metrics around the kernel pipeline. The kernel
// tracks every Submit call as one operation: one span, one RED metric
// triple (request count, error count, duration). Halt and
// ExportEvidence are not tracked.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Config configures the observability Provider.
type Config struct {
	KernelID     string
	Variant      string
	OTLPEndpoint string // e.g. "localhost:4317"
	Insecure     bool
	BatchTimeout time.Duration
	Enabled      bool
}

// DefaultConfig returns conservative defaults: tracing disabled unless
// explicitly turned on, since a kernel must remain fully usable with no
// collector present.
func DefaultConfig(kernelID, variant string) Config {
	return Config{
		KernelID:     kernelID,
		Variant:      variant,
		OTLPEndpoint: "localhost:4317",
		Insecure:     true,
		BatchTimeout: 5 * time.Second,
		Enabled:      false,
	}
}

// Provider bundles a logger, tracer, and the fixed RED metric
// instruments recorded for each tracked operation.
type Provider struct {
	cfg            Config
	logger         *slog.Logger
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter

	requestCounter metric.Int64Counter
	errorCounter   metric.Int64Counter
	durationHist   metric.Float64Histogram
}

// New builds a Provider. When cfg.Enabled is false, tracing/metrics are
// no-ops and only the logger is live — a kernel never fails to boot for
// lack of a collector.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	p := &Provider{
		cfg:    cfg,
		logger: slog.Default().With("kernel_id", cfg.KernelID, "variant", cfg.Variant),
	}

	if !cfg.Enabled {
		p.logger.InfoContext(ctx, "observability disabled")
		return p, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName("kernels"),
			attribute.String("kernel.id", cfg.KernelID),
			attribute.String("kernel.variant", cfg.Variant),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: build resource: %w", err)
	}

	if err := p.initTracing(ctx, res); err != nil {
		return nil, fmt.Errorf("observability: init tracing: %w", err)
	}
	p.initMetrics(res)

	if err := p.initREDMetrics(); err != nil {
		return nil, fmt.Errorf("observability: init RED metrics: %w", err)
	}

	p.logger.InfoContext(ctx, "observability initialized", "endpoint", cfg.OTLPEndpoint)
	return p, nil
}

func (p *Provider) initTracing(ctx context.Context, res *resource.Resource) error {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(p.cfg.OTLPEndpoint)}
	if p.cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("create trace exporter: %w", err)
	}

	p.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(p.cfg.BatchTimeout)),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(p.tracerProvider)
	p.tracer = p.tracerProvider.Tracer("kernels")
	return nil
}

// initMetrics builds a MeterProvider with no periodic exporter wired —
// this module carries no OTLP metrics exporter dependency (see design
// notes), so RED counters are recorded in-process and observable via
// Meter() for a host that attaches its own reader, but nothing is
// pushed off-box by default.
func (p *Provider) initMetrics(res *resource.Resource) {
	p.meterProvider = sdkmetric.NewMeterProvider(sdkmetric.WithResource(res))
	otel.SetMeterProvider(p.meterProvider)
	p.meter = p.meterProvider.Meter("kernels")
}

func (p *Provider) initREDMetrics() error {
	var err error
	p.requestCounter, err = p.meter.Int64Counter("kernel.requests.total",
		metric.WithDescription("Total submit() calls processed"), metric.WithUnit("{request}"))
	if err != nil {
		return err
	}
	p.errorCounter, err = p.meter.Int64Counter("kernel.errors.total",
		metric.WithDescription("Total submit() calls ending in DENY/FAILED/HALT"), metric.WithUnit("{error}"))
	if err != nil {
		return err
	}
	p.durationHist, err = p.meter.Float64Histogram("kernel.request.duration",
		metric.WithDescription("submit() duration in seconds"), metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0))
	return err
}

// Logger returns the kernel-scoped structured logger.
func (p *Provider) Logger() *slog.Logger { return p.logger }

// Shutdown drains and closes the tracer/meter providers, if any.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			p.logger.ErrorContext(ctx, "shutdown trace provider failed", "error", err)
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			p.logger.ErrorContext(ctx, "shutdown meter provider failed", "error", err)
		}
	}
	return nil
}

// TrackOperation starts a span and RED-tracks one pipeline operation
// (the kernel calls it once per Submit). The returned func must be called
// exactly once with the operation's outcome.
func (p *Provider) TrackOperation(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()

	if p.tracer == nil {
		return ctx, func(err error) {
			if err != nil {
				p.logger.ErrorContext(ctx, name+" failed", "error", err, "duration", time.Since(start))
			}
		}
	}

	ctx, span := p.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindInternal), trace.WithAttributes(attrs...))
	if p.requestCounter != nil {
		p.requestCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	}

	return ctx, func(err error) {
		duration := time.Since(start)
		if p.durationHist != nil {
			p.durationHist.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
		}
		if err != nil {
			span.RecordError(err)
			if p.errorCounter != nil {
				allAttrs := append(append([]attribute.KeyValue{}, attrs...), attribute.String("error.type", fmt.Sprintf("%T", err)))
				p.errorCounter.Add(ctx, 1, metric.WithAttributes(allAttrs...))
			}
		}
		span.End()
	}
}
