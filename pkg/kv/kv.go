// Package kv defines the fixed-width data model shared by every layer of
// the storage engine: the memtable, runs, the buffer pool, and compaction
// all operate on these same key/value/entry types.
package kv

import "math"

// Key is a fixed-width signed 64-bit key.
type Key = int64

// Value is a fixed-width signed 64-bit value. Tombstone is reserved and
// must never be stored as a real value.
type Value = int64

// Tombstone is the sentinel value marking a deleted key. It is the
// most-negative representable int64, so no legitimate value collides
// with it.
const Tombstone Value = math.MinInt64

// EntrySize is the on-disk width of one (key, value) record: two 8-byte
// little-endian integers.
const EntrySize = 16

// Entry is a single (key, value) record.
type Entry struct {
	Key   Key
	Value Value
}

// IsTombstone reports whether e marks a deletion.
func (e Entry) IsTombstone() bool {
	return e.Value == Tombstone
}
