// Package otel wires optional OpenTelemetry tracing for the simulation hosts.
package otel

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"campaignsim/internal/platform/config"
)

// InstrumentationName names the tracer used around simulation runs.
const InstrumentationName = "campaignsim"

// Config selects where spans go. An empty endpoint disables tracing.
type Config struct {
	Endpoint       string  `env:"CAMPAIGNSIM_OTEL_ENDPOINT"`
	Enabled        bool    `env:"CAMPAIGNSIM_OTEL_ENABLED" envDefault:"true"`
	SampleRatio    float64 `env:"CAMPAIGNSIM_OTEL_SAMPLE_RATIO" envDefault:"1"`
	ServiceVersion string  `env:"CAMPAIGNSIM_VERSION" envDefault:"dev"`
}

// Active reports whether Setup will register a provider.
func (c Config) Active() bool {
	return c.Enabled && c.Endpoint != ""
}

func (c Config) sampler() sdktrace.Sampler {
	if c.SampleRatio >= 1 {
		return sdktrace.AlwaysSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(c.SampleRatio))
}

// Setup reads Config from the environment and installs a global tracer
// provider exporting over OTLP/HTTP. When tracing is inactive it returns a
// no-op shutdown and leaves the global provider alone.
func Setup(ctx context.Context, serviceName string) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }

	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return noop, err
	}
	if !cfg.Active() {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.Endpoint))
	if err != nil {
		return noop, fmt.Errorf("otlp exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return noop, fmt.Errorf("otel resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(cfg.sampler()),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}

// Tracer returns the tracer from the global provider, which is a no-op
// until Setup registers one.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}
