package instrumentation

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const (
	// DefaultServiceName is used when Config.ServiceName is empty
	DefaultServiceName = "oauth2server"
	// DefaultServiceVersion is the default service version used when none is provided
	DefaultServiceVersion = "unknown"

	scopePrefix = "github.com/manorfm/oauth2server/"
)

// Config holds instrumentation configuration
type Config struct {
	ServiceName    string
	ServiceVersion string

	// Enabled controls whether spans are recorded. When false no-op providers are used.
	Enabled bool
}

// Instrumentation provides OpenTelemetry meters, tracers and the engine's metric instruments
type Instrumentation struct {
	config   Config
	resource *resource.Resource

	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider

	metrics *Metrics

	shutdownFuncs []func(context.Context) error
	shutdownOnce  sync.Once
}

// New creates a new instrumentation instance
func New(config Config) (*Instrumentation, error) {
	if config.ServiceName == "" {
		config.ServiceName = DefaultServiceName
	}
	if config.ServiceVersion == "" {
		config.ServiceVersion = DefaultServiceVersion
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	inst := &Instrumentation{
		config:        config,
		resource:      res,
		meterProvider: noop.NewMeterProvider(),
	}

	if config.Enabled {
		tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
		inst.tracerProvider = tp
		inst.shutdownFuncs = append(inst.shutdownFuncs, tp.Shutdown)
	} else {
		inst.tracerProvider = tracenoop.NewTracerProvider()
	}

	inst.metrics, err = newMetrics(inst.Meter("server"))
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	return inst, nil
}

// NewNop returns instrumentation backed by no-op providers
func NewNop() *Instrumentation {
	inst, err := New(Config{})
	if err != nil {
		// no-op providers cannot fail to build instruments
		panic(err)
	}
	return inst
}

// WithMeterProvider replaces the meter provider and rebuilds the instruments
func (i *Instrumentation) WithMeterProvider(mp metric.MeterProvider) error {
	i.meterProvider = mp
	m, err := newMetrics(i.Meter("server"))
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}
	i.metrics = m
	return nil
}

// Shutdown flushes and stops the providers
func (i *Instrumentation) Shutdown(ctx context.Context) error {
	var shutdownErr error
	i.shutdownOnce.Do(func() {
		for _, fn := range i.shutdownFuncs {
			if err := fn(ctx); err != nil && shutdownErr == nil {
				shutdownErr = err
			}
		}
	})
	return shutdownErr
}

// Meter returns a named meter for the given scope
func (i *Instrumentation) Meter(scope string) metric.Meter {
	return i.meterProvider.Meter(scopePrefix + scope)
}

// Tracer returns a named tracer for the given scope
func (i *Instrumentation) Tracer(scope string) trace.Tracer {
	return i.tracerProvider.Tracer(scopePrefix + scope)
}

// Metrics returns the metrics holder for recording metric values
func (i *Instrumentation) Metrics() *Metrics {
	return i.metrics
}

// Resource returns the service resource
func (i *Instrumentation) Resource() *resource.Resource {
	return i.resource
}
