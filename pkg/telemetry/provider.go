// ABOUTME: Telemetry constructor: validates an enabled config and returns the no-op implementation
// ABOUTME: TelemetryProvider declares OpenTelemetry SDK handles but has no methods and is never constructed

package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// TelemetryProvider holds OpenTelemetry SDK handles. It has no methods, so
// it does not implement Telemetry, and New never constructs one.
type TelemetryProvider struct {
	config         Config
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	meter          metric.Meter
	tracer         oteltrace.Tracer
	resource       *sdkresource.Resource
}

// New creates a new TelemetryProvider with the given configuration.
func New(cfg Config) (Telemetry, error) {
	if !cfg.Enabled {
		return NewNoop(), nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}

	// For now, return a no-op implementation until the OpenTelemetry API is properly configured
	// TODO: Implement full OpenTelemetry provider setup
	return NewNoop(), nil
}

// TODO: Implement full OpenTelemetry provider with proper API once interfaces are stable
