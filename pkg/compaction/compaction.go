// Package compaction implements the four merge policies (none, tiered,
// leveled, and hybrid/Dostoevsky) that keep the number and size of runs
// at each level bounded, plus the k-way merge primitive they all share.
//
// Every policy answers one question, "does any level need to shrink
// right now", and if so produces a Task naming the input runs and their
// destination level. An Engine turns a Task into an on-disk run via the
// shared merge, then commits it into the manifest.
package compaction

import "github.com/quiver-db/quiver/pkg/run"

// Task describes one merge: the input runs (all drawn from a single
// source level, oldest and newest alike) and the level the merged
// output belongs on.
type Task struct {
	SourceLevel int
	Inputs      []run.Run
	OutputLevel int
	// DropTombstones is true when OutputLevel is known to be the
	// deepest level that will exist once this task commits, so a
	// tombstone merged here can never shadow an older value below it.
	DropTombstones bool
}

// InputIDs returns the ids of the task's input runs, for use with
// manifest.RemoveRuns.
func (t *Task) InputIDs() map[uint64]bool {
	ids := make(map[uint64]bool, len(t.Inputs))
	for _, r := range t.Inputs {
		ids[r.ID()] = true
	}
	return ids
}
