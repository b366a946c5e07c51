package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/orsocook/orso-auth/internal/infra/config"
)

const (
	serviceVersion     = "1.0.0"
	defaultServiceName = "orso-auth"
)

// TracerProvider owns the SDK tracer provider so it can be flushed on shutdown.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	logger   *zap.Logger
}

// NewTracerProvider exports spans over OTLP/HTTP and installs the provider and W3C propagators globally.
// Spans started before this call go to the otel no-op provider.
func NewTracerProvider(ctx context.Context, cfg config.TelemetrySettings, env string, logger *zap.Logger) (*TracerProvider, error) {
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
		otlptracehttp.WithTimeout(10 * time.Second),
	}
	if env != "production" {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	tp, err := newTracerProvider(ctx, cfg, env, sdktrace.WithBatcher(exporter,
		sdktrace.WithBatchTimeout(5*time.Second),
		sdktrace.WithMaxExportBatchSize(512),
	), logger)
	if err != nil {
		return nil, err
	}

	otel.SetTracerProvider(tp.provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("OpenTelemetry tracer provider initialized",
		zap.String("otlp_endpoint", cfg.OTLPEndpoint),
		zap.String("service_name", serviceName(cfg)),
		zap.Float64("sampling_rate", cfg.SamplingRate),
	)
	return tp, nil
}

func newTracerProvider(ctx context.Context, cfg config.TelemetrySettings, env string, processor sdktrace.TracerProviderOption, logger *zap.Logger) (*TracerProvider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(serviceName(cfg)),
		semconv.ServiceVersion(serviceVersion),
		semconv.DeploymentEnvironment(env),
	))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		processor,
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SamplingRate)),
	)
	return &TracerProvider{provider: provider, logger: logger}, nil
}

// sampler follows the parent decision and samples root spans at rate, clamped to [0, 1].
func sampler(rate float64) sdktrace.Sampler {
	var root sdktrace.Sampler
	switch {
	case rate >= 1:
		root = sdktrace.AlwaysSample()
	case rate <= 0:
		root = sdktrace.NeverSample()
	default:
		root = sdktrace.TraceIDRatioBased(rate)
	}
	return sdktrace.ParentBased(root)
}

func serviceName(cfg config.TelemetrySettings) string {
	if cfg.ServiceName != "" {
		return cfg.ServiceName
	}
	return defaultServiceName
}

// Tracer returns a named tracer from the global provider.
func Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	return otel.Tracer(name, opts...)
}

// Provider exposes the SDK provider for instrumentation that takes one explicitly.
func (tp *TracerProvider) Provider() trace.TracerProvider {
	return tp.provider
}

// Shutdown flushes pending spans, giving up after ten seconds.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	tp.logger.Info("Shutting down OpenTelemetry tracer provider")

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := tp.provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown tracer provider: %w", err)
	}
	return nil
}
