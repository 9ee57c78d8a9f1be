package engine

import (
	"context"
	"testing"
	"time"

	"github.com/quiver-db/quiver/pkg/telemetry"
)

func TestEngineMetricsDoesNotPanic(t *testing.T) {
	m := NewEngineMetrics(telemetry.NewNoop())
	ctx := context.Background()

	m.RecordMemoryUsage(ctx, "memtable", 1024)
	m.RecordDiskUsage(ctx, "manifest", 2048)
	m.RecordEngineOperation(ctx, "put", time.Millisecond, true)
	m.RecordOperationThroughput(ctx, "scan", 1e6)
	m.RecordComponentInitialization(ctx, "bufferpool", time.Microsecond, true)
	m.RecordError(ctx, "usage", "engine", "warning")

	if err := m.Close(); err != nil {
		t.Errorf("Close returned error: %v", err)
	}
}

func TestNoopEngineMetricsDoesNotPanic(t *testing.T) {
	m := NewNoopEngineMetrics()
	ctx := context.Background()

	m.RecordMemoryUsage(ctx, "memtable", 1024)
	m.RecordDiskUsage(ctx, "manifest", 2048)
	m.RecordEngineOperation(ctx, "put", time.Millisecond, false)
	m.RecordOperationThroughput(ctx, "scan", 1e6)
	m.RecordComponentInitialization(ctx, "bufferpool", time.Microsecond, false)
	m.RecordError(ctx, "usage", "engine", "warning")

	if err := m.Close(); err != nil {
		t.Errorf("Close returned error: %v", err)
	}
}

func TestGetMemoryStats(t *testing.T) {
	heapAlloc, heapSys, stackInuse := GetMemoryStats()
	if heapAlloc < 0 || heapSys < 0 || stackInuse < 0 {
		t.Errorf("expected non-negative memory stats, got heapAlloc=%d heapSys=%d stackInuse=%d",
			heapAlloc, heapSys, stackInuse)
	}
}
