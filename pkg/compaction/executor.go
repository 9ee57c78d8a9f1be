package compaction

import (
	"fmt"

	"github.com/quiver-db/quiver/pkg/manifest"
	"github.com/quiver-db/quiver/pkg/run"
)

// OutputOptions configures the shape and Bloom filter of a compaction
// task's output run; the engine facade fills this in from the open
// database's configuration.
type OutputOptions struct {
	Shape        run.Shape
	BloomEnabled bool
	BitsPerEntry uint64
}

// Execute runs task's merge and commits the result into m. Input runs
// are already open run.Run values, so no reader construction step is
// needed; the merge itself is NewMergeIterator, and output goes through
// run.WriteArray/run.WriteBTree, which already fsync before renaming
// into place. Commit follows a three-step protocol: write and fsync the
// output, add it to the manifest with AddRun, then remove the inputs
// with manifest.RemoveRuns, which also invalidates the buffer pool's
// pages for the removed runs.
func Execute(m *manifest.Manifest, task *Task, opts OutputOptions) (run.Run, error) {
	sources := make([]RankedSource, len(task.Inputs))
	for i, r := range task.Inputs {
		it, err := r.NewIterator(run.MinBound, run.MaxBound, run.SearchLinear)
		if err != nil {
			return nil, fmt.Errorf("compaction: open iterator on run %d: %w", r.ID(), err)
		}
		sources[i] = RankedSource{Rank: r.ID(), It: it}
	}
	merged := NewMergeIterator(sources, task.DropTombstones)

	outID := m.NewID()
	writeOpts := run.WriteArrayOptions{
		Dir:          m.Dir(),
		Level:        task.OutputLevel,
		ID:           outID,
		BloomEnabled: opts.BloomEnabled,
		BitsPerEntry: opts.BitsPerEntry,
	}

	var (
		writeErr error
		outRun   run.Run
	)
	switch opts.Shape {
	case run.ShapeBTree:
		_, writeErr = run.WriteBTree(merged, writeOpts)
	default:
		_, writeErr = run.WriteArray(merged, writeOpts)
	}
	if writeErr != nil {
		return nil, fmt.Errorf("compaction: write output run: %w", writeErr)
	}
	if err := merged.Err(); err != nil {
		return nil, fmt.Errorf("compaction: merge input runs: %w", err)
	}

	switch opts.Shape {
	case run.ShapeBTree:
		outRun, writeErr = run.OpenBTree(m.Dir(), task.OutputLevel, outID, m.Pool())
	default:
		outRun, writeErr = run.OpenArray(m.Dir(), task.OutputLevel, outID, m.Pool())
	}
	if writeErr != nil {
		return nil, fmt.Errorf("compaction: reopen output run: %w", writeErr)
	}

	m.AddRun(outRun)
	if err := m.RemoveRuns(task.SourceLevel, task.InputIDs()); err != nil {
		return outRun, fmt.Errorf("compaction: remove input runs: %w", err)
	}
	return outRun, nil
}
