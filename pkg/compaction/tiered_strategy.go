package compaction

import "github.com/quiver-db/quiver/pkg/manifest"

// noneStrategy never compacts; reads walk every run at every level.
type noneStrategy struct{}

// NewNone returns a Strategy that never selects a task.
func NewNone() Strategy { return noneStrategy{} }

func (noneStrategy) SelectCompaction(*manifest.Manifest) (*Task, bool) { return nil, false }

// tieredStrategy merges every run in a level into one new run at the
// next level as soon as the level holds ratioT or more runs. It never
// bounds a level to a single run, so read amplification at any one
// level can be as high as ratioT-1: it scans levels bottom-up looking
// for one that has accumulated too many runs, triggering on run count
// rather than total byte size.
type tieredStrategy struct{ baseStrategy }

// NewTiered returns a Strategy that merges a level's runs into the next
// level once it holds ratioT or more of them (ratioT must be >= 2).
func NewTiered(ratioT int) Strategy {
	return &tieredStrategy{baseStrategy{ratioT: ratioT}}
}

func (s *tieredStrategy) SelectCompaction(m *manifest.Manifest) (*Task, bool) {
	for _, lvl := range m.Levels() {
		if len(m.RunsInLevel(lvl)) >= s.ratioT {
			if task := buildTask(m, lvl, lvl+1); task != nil {
				return task, true
			}
		}
	}
	return nil, false
}

// leveledStrategy keeps at most one run per level. A level holding two
// or more runs (its own plus a freshly arrived one) merges them into a
// single run one level down. The trigger is a plain run-count check;
// there is no key-range overlap check, since every level's key space is
// a single run.
type leveledStrategy struct{ baseStrategy }

// NewLeveled returns a Strategy that keeps every level at no more than
// one run.
func NewLeveled() Strategy {
	return &leveledStrategy{}
}

func (s *leveledStrategy) SelectCompaction(m *manifest.Manifest) (*Task, bool) {
	for _, lvl := range m.Levels() {
		if len(m.RunsInLevel(lvl)) > 1 {
			if task := buildTask(m, lvl, lvl+1); task != nil {
				return task, true
			}
		}
	}
	return nil, false
}

// hybridStrategy is the Dostoevsky policy: tiered behavior above
// hybridLastLevel, leveled behavior at and below it. Shallow levels
// absorb flush bursts cheaply (tiered write amplification is lower);
// the bottom level, which holds the bulk of the data, stays leveled to
// keep point-lookup read amplification bounded there.
type hybridStrategy struct{ baseStrategy }

// NewHybrid returns the Dostoevsky Strategy: tiered merging for every
// level above lastLevel, leveled merging at lastLevel.
func NewHybrid(ratioT, lastLevel int) Strategy {
	return &hybridStrategy{baseStrategy{ratioT: ratioT, hybridLastLevel: lastLevel}}
}

func (s *hybridStrategy) SelectCompaction(m *manifest.Manifest) (*Task, bool) {
	for _, lvl := range m.Levels() {
		runs := len(m.RunsInLevel(lvl))
		leveled := lvl >= s.hybridLastLevel
		over := (leveled && runs > 1) || (!leveled && runs >= s.ratioT)
		if !over {
			continue
		}
		if task := buildTask(m, lvl, lvl+1); task != nil {
			return task, true
		}
	}
	return nil, false
}
