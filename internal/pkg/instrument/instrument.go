package instrument

import (
	"context"
	"errors"
	"time"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Instrumentation hands out tracers and meters to the relay's components.
type Instrumentation interface {
	Tracer(name string) trace.Tracer
	Meter(name string) metric.Meter
	Shutdown(ctx context.Context) error
}

// Config is read from the instrument.* keys.
type Config struct {
	Enabled          bool // export to OTLP; logging is set up either way
	ServiceName      string
	ServiceVersion   string
	Environment      string
	OTLPEndpoint     string
	OTLPSecure       bool
	TraceSampleRatio float64 // clamped to [0, 1]
	MetricsInterval  time.Duration
	MaskFields       []string
	LogLevel         string // debug, info, warn or error
	LogFile          string // optional JSON copy of error records
}

type provider struct {
	tracers  trace.TracerProvider
	meters   metric.MeterProvider
	closers  []func(context.Context) error
	closeErr error
}

func (p *provider) Tracer(name string) trace.Tracer { return p.tracers.Tracer(name) }
func (p *provider) Meter(name string) metric.Meter  { return p.meters.Meter(name) }

// Shutdown flushes exporters and closes the error log file. Later calls
// return the first result.
func (p *provider) Shutdown(ctx context.Context) error {
	for i := len(p.closers) - 1; i >= 0; i-- {
		p.closeErr = errors.Join(p.closeErr, p.closers[i](ctx))
	}
	p.closers = nil
	return p.closeErr
}

// NewNoop records nothing. Tests and components built without a config use it.
func NewNoop() Instrumentation {
	return &provider{tracers: tracenoop.NewTracerProvider(), meters: metricnoop.NewMeterProvider()}
}

// New installs the default slog logger and, when cfg.Enabled, OTLP gRPC
// exporters for traces, metrics and logs. A nil cfg yields NewNoop.
func New(ctx context.Context, cfg *Config) (Instrumentation, error) {
	if cfg == nil {
		return NewNoop(), nil
	}

	p := NewNoop().(*provider)

	logFile, err := openLogFile(cfg.LogFile)
	if err != nil {
		return nil, err
	}
	if logFile != nil {
		p.closers = append(p.closers, func(context.Context) error { return logFile.Close() })
	}

	if !cfg.Enabled {
		initLogging(cfg, nil, logFile)
		return p, nil
	}

	lp, err := p.export(ctx, cfg)
	if err != nil {
		return nil, errors.Join(err, p.Shutdown(ctx))
	}

	initLogging(cfg, lp, logFile)
	return p, nil
}

// export replaces the noop providers with OTLP-backed ones and returns the
// log provider for the slog bridge.
func (p *provider) export(ctx context.Context, cfg *Config) (*sdklog.LoggerProvider, error) {
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		attribute.String("env", cfg.Environment),
	))
	if err != nil {
		return nil, err
	}

	traceOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
	metricOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint)}
	logOpts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if !cfg.OTLPSecure {
		traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
		metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
		logOpts = append(logOpts, otlploggrpc.WithInsecure())
	}

	spans, err := otlptracegrpc.New(ctx, traceOpts...)
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(lo.Clamp(cfg.TraceSampleRatio, 0, 1)))),
		sdktrace.WithBatcher(spans),
	)
	p.tracers = tp
	p.closers = append(p.closers, tp.Shutdown)

	points, err := otlpmetricgrpc.New(ctx, metricOpts...)
	if err != nil {
		return nil, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(points, sdkmetric.WithInterval(cfg.MetricsInterval))),
	)
	p.meters = mp
	p.closers = append(p.closers, mp.Shutdown)

	records, err := otlploggrpc.New(ctx, logOpts...)
	if err != nil {
		return nil, err
	}
	lp := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(records)),
	)
	p.closers = append(p.closers, lp.Shutdown)

	return lp, nil
}
