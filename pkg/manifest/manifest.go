// Package manifest tracks which runs exist at which level. The manifest
// is not a separate persisted file: it is reconstructed on open by
// scanning the database directory and parsing filenames.
package manifest

import (
	"fmt"
	"os"
	"sort"

	"github.com/quiver-db/quiver/pkg/bufferpool"
	"github.com/quiver-db/quiver/pkg/run"
)

// Manifest is the in-memory index of every run on disk, organized by
// level, newest run (highest id) first within a level.
type Manifest struct {
	dir    string
	pool   *bufferpool.Pool
	levels map[int][]run.Run
	nextID uint64
}

// Open scans dir for run files and opens every run found. An empty or
// missing directory yields an empty manifest with nextID starting at 1.
func Open(dir string, pool *bufferpool.Pool) (*Manifest, error) {
	m := &Manifest{dir: dir, pool: pool, levels: make(map[int][]run.Run), nextID: 1}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, fmt.Errorf("manifest: read dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		level, id, shape, ok := run.ParseFilename(entry.Name())
		if !ok {
			continue
		}
		var r run.Run
		switch shape {
		case run.ShapeArray:
			r, err = run.OpenArray(dir, level, id, pool)
		case run.ShapeBTree:
			r, err = run.OpenBTree(dir, level, id, pool)
		}
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("manifest: open run %s: %w", entry.Name(), err)
		}
		m.levels[level] = append(m.levels[level], r)
		if id >= m.nextID {
			m.nextID = id + 1
		}
	}

	for level := range m.levels {
		sortNewestFirst(m.levels[level])
	}
	return m, nil
}

func sortNewestFirst(runs []run.Run) {
	sort.Slice(runs, func(i, j int) bool { return runs[i].ID() > runs[j].ID() })
}

// NewID returns a fresh, never-before-used run id and reserves it.
func (m *Manifest) NewID() uint64 {
	id := m.nextID
	m.nextID++
	return id
}

// Dir returns the database directory runs live in.
func (m *Manifest) Dir() string { return m.dir }

// Pool returns the buffer pool runs opened through this manifest share,
// or nil if the manifest was opened without one.
func (m *Manifest) Pool() *bufferpool.Pool { return m.pool }

// Levels returns the level indices that currently hold at least one
// run, in ascending order.
func (m *Manifest) Levels() []int {
	out := make([]int, 0, len(m.levels))
	for lvl, runs := range m.levels {
		if len(runs) > 0 {
			out = append(out, lvl)
		}
	}
	sort.Ints(out)
	return out
}

// RunsInLevel returns level's runs, newest (highest id) first. The
// returned slice must not be mutated by the caller.
func (m *Manifest) RunsInLevel(level int) []run.Run {
	return m.levels[level]
}

// LevelByteSize sums the on-disk size of every run in level.
func (m *Manifest) LevelByteSize(level int) int64 {
	var total int64
	for _, r := range m.levels[level] {
		total += r.ByteSize()
	}
	return total
}

// LevelEntryCount sums the live entry count of every run in level (an
// upper bound on distinct keys, since compaction may still collapse
// overlapping entries across runs).
func (m *Manifest) LevelEntryCount(level int) int64 {
	var total int64
	for _, r := range m.levels[level] {
		total += r.EntryCount()
	}
	return total
}

// AddRun registers a newly written run, becoming visible at the front
// of its level (it necessarily has the highest id in that level).
func (m *Manifest) AddRun(r run.Run) {
	m.levels[r.Level()] = append([]run.Run{r}, m.levels[r.Level()]...)
}

// RemoveRuns closes and deletes every run in level whose id is in ids,
// and drops them from the manifest. Compaction calls this only after
// its replacement output run(s) have already been added, so a crash
// between AddRun and RemoveRuns leaves stale-but-harmless input runs
// rather than a window with no runs at all.
func (m *Manifest) RemoveRuns(level int, ids map[uint64]bool) error {
	kept := m.levels[level][:0]
	var firstErr error
	for _, r := range m.levels[level] {
		if !ids[r.ID()] {
			kept = append(kept, r)
			continue
		}
		if err := r.Delete(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("manifest: delete run %d in level %d: %w", r.ID(), level, err)
		}
		if m.pool != nil {
			m.pool.Invalidate(r.ID())
		}
	}
	m.levels[level] = kept
	return firstErr
}

// Close closes every open run's file handles without deleting anything.
func (m *Manifest) Close() error {
	var firstErr error
	for _, runs := range m.levels {
		for _, r := range runs {
			if err := r.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
