package compaction

import (
	"context"
	"fmt"
	"time"

	"github.com/quiver-db/quiver/pkg/common/log"
	"github.com/quiver-db/quiver/pkg/manifest"
)

// Engine drives compaction for one open database. There is no
// background ticker goroutine: every Put or Delete that overflows the
// memtable flushes and cascades synchronously before returning, so
// compaction only ever runs on the calling goroutine, right after a
// flush, never concurrently with it.
type Engine struct {
	strategy Strategy
	opts     OutputOptions
	log      log.Logger
	metrics  CompactionMetrics
}

// NewEngine builds a compaction Engine for the given policy and output
// shape/Bloom configuration.
func NewEngine(strategy Strategy, opts OutputOptions, logger log.Logger, metrics CompactionMetrics) *Engine {
	if logger == nil {
		logger = log.GetDefaultLogger()
	}
	if metrics == nil {
		metrics = NewNoopCompactionMetrics()
	}
	return &Engine{strategy: strategy, opts: opts, log: logger, metrics: metrics}
}

// RunCascade repeatedly asks the strategy for the highest-priority task
// and executes it until every level is within its policy's budget.
// Called synchronously right after a memtable flush lands a new run at
// level 0; a level compacted just now can push the level below it over
// budget too, so this keeps going until a pass finds nothing to do.
func (e *Engine) RunCascade(ctx context.Context, m *manifest.Manifest) error {
	for {
		task, ok := e.strategy.SelectCompaction(m)
		if !ok {
			return nil
		}

		inputSize := int64(0)
		for _, r := range task.Inputs {
			inputSize += r.ByteSize()
		}
		e.metrics.RecordCompactionStart(ctx, task.SourceLevel, e.strategyName(), len(task.Inputs), inputSize)
		start := time.Now()

		out, err := Execute(m, task, e.opts)
		if err != nil {
			e.metrics.RecordCompactionComplete(ctx, time.Since(start), inputSize, 0, 0, false)
			return fmt.Errorf("compaction: level %d: %w", task.SourceLevel, err)
		}

		e.metrics.RecordCompactionComplete(ctx, time.Since(start), inputSize, out.ByteSize(), 0, true)
		e.metrics.RecordLevelTransition(ctx, task.SourceLevel, task.OutputLevel, out.ByteSize())
		e.log.Debug("compacted level %d into level %d run %d (%d inputs, tombstones dropped: %v)",
			task.SourceLevel, task.OutputLevel, out.ID(), len(task.Inputs), task.DropTombstones)
	}
}

func (e *Engine) strategyName() string {
	switch e.strategy.(type) {
	case *tieredStrategy:
		return "tiered"
	case *leveledStrategy:
		return "leveled"
	case *hybridStrategy:
		return "dostoevsky"
	default:
		return "none"
	}
}
