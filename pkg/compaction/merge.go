package compaction

import (
	"github.com/quiver-db/quiver/pkg/kv"
	"github.com/quiver-db/quiver/pkg/run"
)

// Source is the shape both run.Iterator and memtable.ScanIterator satisfy
// structurally, letting the merge treat on-disk runs and an in-memory
// flush or read source identically without this package importing
// memtable.
type Source interface {
	Next() bool
	Entry() kv.Entry
	Err() error
}

// RankedSource pairs a Source with a rank used to break ties when two
// sources carry the same key: the source with the higher rank is newer
// and wins. Compaction ranks sources by run id, since higher ids are
// always newer; the engine facade's Scan ranks runs by position instead,
// oldest first, and gives its memtable source a rank above every run.
// Exported so the facade's range reads can drive the same merge this
// package uses internally for compaction; point reads (Get) do not use it.
type RankedSource struct {
	Rank uint64
	It   Source
	cur  kv.Entry
	live bool
}

// NewMergeIterator streams sources in ascending, deduplicated key
// order: on a duplicate key across sources, only the entry from the
// highest-ranked source survives. If dropTombstones is set, a
// surviving tombstone is dropped from the stream instead of being
// written to the output run — callers set this only when the output
// level is the deepest level that will exist once the task commits, so
// no older value can be shadowed by dropping it.
//
// Grounded on the general LSM k-way merge algorithm described for the
// compaction engine; implemented as a linear scan over sources rather
// than a heap since the fan-in per merge (bounded by the tiering
// ratio) is always small.
func NewMergeIterator(sources []RankedSource, dropTombstones bool) run.Iterator {
	for i := range sources {
		sources[i].live = sources[i].It.Next()
		if sources[i].live {
			sources[i].cur = sources[i].It.Entry()
		}
	}

	next := func() (kv.Entry, bool, error) {
		for {
			winner := -1
			for i := range sources {
				if !sources[i].live {
					continue
				}
				switch {
				case winner == -1:
					winner = i
				case sources[i].cur.Key < sources[winner].cur.Key:
					winner = i
				case sources[i].cur.Key == sources[winner].cur.Key && sources[i].Rank > sources[winner].Rank:
					winner = i
				}
			}
			if winner == -1 {
				for i := range sources {
					if err := sources[i].It.Err(); err != nil {
						return kv.Entry{}, false, err
					}
				}
				return kv.Entry{}, false, nil
			}

			out := sources[winner].cur
			for i := range sources {
				if sources[i].live && sources[i].cur.Key == out.Key {
					sources[i].live = sources[i].It.Next()
					if sources[i].live {
						sources[i].cur = sources[i].It.Entry()
					}
				}
			}

			if dropTombstones && out.IsTombstone() {
				continue
			}
			return out, true, nil
		}
	}
	return run.NewFuncIterator(next)
}
