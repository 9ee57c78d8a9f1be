// Package memtable implements the engine's sole write target: an
// in-memory ordered map bounded by a capacity, drained into a new
// level-0 run on overflow.
package memtable

import (
	"time"

	"github.com/quiver-db/quiver/pkg/kv"
)

// EntryOverhead is the fixed per-entry byte cost used to convert a
// megabyte capacity budget into an entry count: 8 bytes each for key
// and value, matching the on-disk entry width.
const EntryOverhead = kv.EntrySize

// CapacityFromMB converts a megabyte budget into an entry count.
func CapacityFromMB(mb int) int {
	return (mb * 1024 * 1024) / EntryOverhead
}

// MemTable is the in-memory ordered map keyed by int64, values included
// tombstones (kv.Tombstone). It is not safe for concurrent use: the
// engine's single-threaded-with-respect-to-client-calls model is what
// makes that acceptable.
type MemTable struct {
	skipList     *SkipList
	capacity     int
	creationTime time.Time
}

// New creates an empty MemTable bounded at capacity entries.
func New(capacity int) *MemTable {
	return &MemTable{
		skipList:     NewSkipList(time.Now().UnixNano()),
		capacity:     capacity,
		creationTime: time.Now(),
	}
}

// Capacity returns the configured entry-count bound.
func (m *MemTable) Capacity() int { return m.capacity }

// Len returns the number of distinct keys currently held.
func (m *MemTable) Len() int { return m.skipList.Len() }

// WouldOverflow reports whether inserting one more distinct key would
// exceed capacity. The engine facade calls this before every Put or
// Delete that introduces a new key, flushing first when it would overflow, so that
// the memtable is never observed by another client call above capacity.
func (m *MemTable) WouldOverflow() bool {
	return m.skipList.Len() >= m.capacity
}

// Put inserts or overwrites key's value, including tombstones.
func (m *MemTable) Put(key, value int64) {
	m.skipList.Put(key, value)
}

// Get returns the value stored for key and whether it was found. A
// found tombstone is returned as (kv.Tombstone, true); callers
// distinguish deletion from absence by checking the value.
func (m *MemTable) Get(key int64) (int64, bool) {
	return m.skipList.Get(key)
}

// Scan returns an ascending iterator over entries with lo <= key <= hi,
// in the same Next/Entry/Err shape as pkg/run.Iterator so the engine
// facade's memtable-plus-runs merge can treat every source uniformly.
func (m *MemTable) Scan(lo, hi int64) *ScanIterator {
	it := m.skipList.NewIterator()
	it.Seek(lo)
	return &ScanIterator{it: it, hi: hi, started: false}
}

// DrainSorted returns every entry in ascending key order, for a flush
// to consume while building a new run. The memtable is left unchanged;
// the caller (engine facade) discards it after a successful flush.
func (m *MemTable) DrainSorted() []kv.Entry {
	out := make([]kv.Entry, 0, m.skipList.Len())
	it := m.skipList.NewIterator()
	for it.SeekToFirst(); it.Valid(); it.Next() {
		out = append(out, kv.Entry{Key: it.Key(), Value: it.Value()})
	}
	return out
}

// Age returns the age of the MemTable in seconds, since creation.
func (m *MemTable) Age() float64 {
	return time.Since(m.creationTime).Seconds()
}

// ScanIterator bounds a SkipList Iterator to an upper key limit,
// presenting the same Next/Entry/Err shape as pkg/run.Iterator.
type ScanIterator struct {
	it      *Iterator
	hi      int64
	started bool
	done    bool
}

// Next advances to the next entry, returning false once past hi or at
// end of the memtable.
func (s *ScanIterator) Next() bool {
	if s.done {
		return false
	}
	if s.started {
		s.it.Next()
	}
	s.started = true
	if !s.it.Valid() || s.it.Key() > s.hi {
		s.done = true
		return false
	}
	return true
}

// Entry returns the entry the iterator is currently positioned at.
func (s *ScanIterator) Entry() kv.Entry {
	return kv.Entry{Key: s.it.Key(), Value: s.it.Value()}
}

// Err always returns nil: a memtable scan cannot fail.
func (s *ScanIterator) Err() error { return nil }
