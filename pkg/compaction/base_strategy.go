package compaction

import (
	"github.com/quiver-db/quiver/pkg/manifest"
	"github.com/quiver-db/quiver/pkg/run"
)

// baseStrategy holds the bookkeeping every policy shares: the tiering
// ratio T and, for the hybrid policy, the level at which it switches
// from tiered to leveled behavior. Loading run metadata from disk is
// manifest.Open's job; this type only keeps the shared decision logic
// each concrete strategy builds on.
type baseStrategy struct {
	ratioT          int
	hybridLastLevel int
}

// deepestLevel returns the highest populated level in m, or -1 if m is
// empty, ignoring the level named by excluding (whose runs are about to
// be removed by the task under construction).
func deepestLevel(m *manifest.Manifest, excluding int) int {
	deepest := -1
	for _, lvl := range m.Levels() {
		if lvl == excluding {
			continue
		}
		if lvl > deepest {
			deepest = lvl
		}
	}
	return deepest
}

// buildTask merges every run currently in srcLevel into outputLevel.
// DropTombstones is set only when outputLevel is currently empty and no
// level deeper than it holds any runs either: the merge's own output
// will then be the only, bottommost data left, so a tombstone merged
// there may be dropped instead of carried forward. If outputLevel (or
// anything below it) already holds a run untouched by this merge, that
// run might carry an older value for the same key, and a dropped
// tombstone would incorrectly let it resurface.
func buildTask(m *manifest.Manifest, srcLevel, outputLevel int) *Task {
	inputs := m.RunsInLevel(srcLevel)
	if len(inputs) == 0 {
		return nil
	}
	return &Task{
		SourceLevel:    srcLevel,
		Inputs:         append([]run.Run(nil), inputs...),
		OutputLevel:    outputLevel,
		DropTombstones: outputLevel > deepestLevel(m, srcLevel),
	}
}
