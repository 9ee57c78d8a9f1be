// Package engine's telemetry: resource monitoring and per-operation
// tracing for the facade.
package engine

import (
	"context"
	"runtime"
	"time"

	"github.com/quiver-db/quiver/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// EngineMetrics defines the interface for engine-level telemetry.
type EngineMetrics interface {
	RecordMemoryUsage(ctx context.Context, component string, bytes int64)
	RecordDiskUsage(ctx context.Context, component string, bytes int64)

	RecordEngineOperation(ctx context.Context, operation string, duration time.Duration, success bool)
	RecordOperationThroughput(ctx context.Context, operation string, bytesPerSecond float64)

	RecordComponentInitialization(ctx context.Context, component string, duration time.Duration, success bool)

	RecordError(ctx context.Context, errorType, component string, severity string)

	Close() error
}

// engineMetrics implements EngineMetrics using the telemetry interface.
type engineMetrics struct {
	tel telemetry.Telemetry
}

// NewEngineMetrics creates a new EngineMetrics instance.
func NewEngineMetrics(tel telemetry.Telemetry) EngineMetrics {
	return &engineMetrics{tel: tel}
}

// NewNoopEngineMetrics creates a no-op EngineMetrics for testing or when
// telemetry is disabled.
func NewNoopEngineMetrics() EngineMetrics {
	return &noopEngineMetrics{}
}

func (m *engineMetrics) RecordMemoryUsage(ctx context.Context, component string, bytes int64) {
	m.tel.RecordCounter(ctx, "quiver.engine.memory.usage.bytes", bytes,
		attribute.String(telemetry.AttrComponent, component),
		attribute.String("memory.type", "allocated"),
	)
}

func (m *engineMetrics) RecordDiskUsage(ctx context.Context, component string, bytes int64) {
	m.tel.RecordCounter(ctx, "quiver.engine.disk.usage.bytes", bytes,
		attribute.String(telemetry.AttrComponent, component),
		attribute.String("disk.type", "usage"),
	)
}

func (m *engineMetrics) RecordEngineOperation(ctx context.Context, operation string, duration time.Duration, success bool) {
	m.tel.RecordHistogram(ctx, "quiver.engine.operation.duration", duration.Seconds(),
		attribute.String(telemetry.AttrOperationName, operation),
		attribute.String(telemetry.AttrSuccess, boolToString(success)),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentEngine),
	)
	m.tel.RecordCounter(ctx, "quiver.engine.operation.count", 1,
		attribute.String(telemetry.AttrOperationName, operation),
		attribute.String(telemetry.AttrSuccess, boolToString(success)),
	)
}

func (m *engineMetrics) RecordOperationThroughput(ctx context.Context, operation string, bytesPerSecond float64) {
	m.tel.RecordHistogram(ctx, "quiver.engine.throughput.bytes_per_second", bytesPerSecond,
		attribute.String(telemetry.AttrOperationName, operation),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentEngine),
		attribute.String("metric.type", "throughput"),
	)
}

func (m *engineMetrics) RecordComponentInitialization(ctx context.Context, component string, duration time.Duration, success bool) {
	m.tel.RecordHistogram(ctx, "quiver.engine.component.initialization.duration", duration.Seconds(),
		attribute.String(telemetry.AttrComponent, component),
		attribute.String(telemetry.AttrSuccess, boolToString(success)),
		attribute.String("initialization.type", "startup"),
	)
}

func (m *engineMetrics) RecordError(ctx context.Context, errorType, component string, severity string) {
	m.tel.RecordCounter(ctx, "quiver.engine.errors.total", 1,
		attribute.String(telemetry.AttrErrorType, errorType),
		attribute.String(telemetry.AttrComponent, component),
		attribute.String("error.severity", severity),
	)
}

func (m *engineMetrics) Close() error { return nil }

// noopEngineMetrics provides a no-op implementation for testing or
// disabled telemetry.
type noopEngineMetrics struct{}

func (n *noopEngineMetrics) RecordMemoryUsage(ctx context.Context, component string, bytes int64) {}
func (n *noopEngineMetrics) RecordDiskUsage(ctx context.Context, component string, bytes int64)   {}
func (n *noopEngineMetrics) RecordEngineOperation(ctx context.Context, operation string, duration time.Duration, success bool) {
}
func (n *noopEngineMetrics) RecordOperationThroughput(ctx context.Context, operation string, bytesPerSecond float64) {
}
func (n *noopEngineMetrics) RecordComponentInitialization(ctx context.Context, component string, duration time.Duration, success bool) {
}
func (n *noopEngineMetrics) RecordError(ctx context.Context, errorType, component string, severity string) {
}
func (n *noopEngineMetrics) Close() error { return nil }

func boolToString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// GetMemoryStats retrieves current memory statistics using runtime.
func GetMemoryStats() (heapAlloc, heapSys, stackInuse int64) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return int64(m.HeapAlloc), int64(m.HeapSys), int64(m.StackInuse)
}
