// Package run implements immutable on-disk sorted runs (SSTables) in two
// shapes — flat sorted array, and bottom-up-built static B-tree — plus
// the page-granular search machinery shared between them.
package run

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/quiver-db/quiver/pkg/kv"
)

// Shape distinguishes the two run layouts.
type Shape int

const (
	ShapeArray Shape = iota
	ShapeBTree
)

func (s Shape) String() string {
	switch s {
	case ShapeArray:
		return "array"
	case ShapeBTree:
		return "btree"
	default:
		return "unknown"
	}
}

// ParseShape parses the on-disk shape token.
func ParseShape(s string) (Shape, error) {
	switch s {
	case "array":
		return ShapeArray, nil
	case "btree":
		return ShapeBTree, nil
	default:
		return 0, fmt.Errorf("run: unknown shape %q", s)
	}
}

// SearchMode selects the in-page search algorithm used against entry
// pages. Both modes return the position of the first key >= target.
type SearchMode int

const (
	SearchLinear SearchMode = iota
	SearchBinary
)

// ParseSearchMode parses the config-level search algorithm token.
func ParseSearchMode(s string) (SearchMode, error) {
	switch s {
	case "default", "linear", "":
		return SearchLinear, nil
	case "binary":
		return SearchBinary, nil
	default:
		return 0, fmt.Errorf("run: unknown search algorithm %q", s)
	}
}

var (
	// ErrCorrupt is returned when a run's on-disk layout is invalid: a
	// file size that isn't a multiple of the page size, a malformed
	// sidecar, or a page that fails to decode.
	ErrCorrupt = errors.New("run: corrupt on-disk structure")

	// ErrNotFound is returned by Get when the key is absent from the run.
	ErrNotFound = errors.New("run: key not found")
)

// Iterator yields entries from a run (or a merge of runs) in strictly
// ascending key order.
type Iterator interface {
	// Next advances to the next entry, returning false at end of stream
	// or on error (check Err to distinguish).
	Next() bool
	// Entry returns the entry the iterator is currently positioned at.
	// Valid only after a call to Next that returned true.
	Entry() kv.Entry
	// Err returns the first error encountered, if any.
	Err() error
}

// Run is the capability set the compaction engine and the engine facade
// consume; both run shapes implement it identically from a caller's
// perspective.
type Run interface {
	ID() uint64
	Level() int
	Shape() Shape
	MinKey() int64
	MaxKey() int64
	EntryCount() int64
	Pages() int64
	ByteSize() int64

	// Get returns the value stored for key, or ErrNotFound.
	Get(key int64, mode SearchMode) (int64, error)

	// NewIterator returns entries with lo <= key <= hi in ascending order.
	NewIterator(lo, hi int64, mode SearchMode) (Iterator, error)

	// MaybeContains consults the run's Bloom filter, if any. A false
	// return means the key is definitely absent.
	MaybeContains(key int64) bool

	// Close releases open file handles without deleting anything.
	Close() error

	// Delete unlinks the run's files. Callers must invalidate any
	// buffer-pool frames referencing this run's id separately, since the
	// buffer pool is not reachable from this package.
	Delete() error
}

// sliceIterator adapts an in-memory, already-sorted slice to Iterator.
type sliceIterator struct {
	entries []kv.Entry
	pos     int
}

// NewSliceIterator returns an Iterator over an in-memory sorted slice.
func NewSliceIterator(entries []kv.Entry) Iterator {
	return &sliceIterator{entries: entries, pos: -1}
}

func (it *sliceIterator) Next() bool {
	it.pos++
	return it.pos < len(it.entries)
}

func (it *sliceIterator) Entry() kv.Entry { return it.entries[it.pos] }
func (it *sliceIterator) Err() error      { return nil }

// funcIterator adapts a pull function to Iterator, letting other packages
// (memtable, compaction merges) feed runs without this package depending
// on them.
type funcIterator struct {
	next    func() (kv.Entry, bool, error)
	current kv.Entry
	err     error
}

// NewFuncIterator wraps a pull function as an Iterator. next returns the
// next entry, whether one was available, and any error; once it reports
// !ok or a non-nil error, the iterator is exhausted.
func NewFuncIterator(next func() (kv.Entry, bool, error)) Iterator {
	return &funcIterator{next: next}
}

func (it *funcIterator) Next() bool {
	if it.err != nil {
		return false
	}
	e, ok, err := it.next()
	if err != nil {
		it.err = err
		return false
	}
	if !ok {
		return false
	}
	it.current = e
	return true
}

func (it *funcIterator) Entry() kv.Entry { return it.current }
func (it *funcIterator) Err() error      { return it.err }

// Filename layout: L<level>-<id>-<shape>.<ext>, and a JSON sidecar
// L<level>-<id>-<shape>.meta.json. Array runs have one data file (.arr);
// B-tree runs have two (.leaf, .inner). Bloom filters, when enabled,
// persist as L<level>-<id>-<shape>.bloom.

func baseName(level int, id uint64, shape Shape) string {
	return fmt.Sprintf("L%d-%d-%s", level, id, shape)
}

// ArrayDataPath is the array run's single data file.
func ArrayDataPath(dir string, level int, id uint64) string {
	return filepath.Join(dir, baseName(level, id, ShapeArray)+".arr")
}

// BTreeLeafPath is the B-tree run's leaf data file.
func BTreeLeafPath(dir string, level int, id uint64) string {
	return filepath.Join(dir, baseName(level, id, ShapeBTree)+".leaf")
}

// BTreeInnerPath is the B-tree run's inner (delimiter) file.
func BTreeInnerPath(dir string, level int, id uint64) string {
	return filepath.Join(dir, baseName(level, id, ShapeBTree)+".inner")
}

// MetaPath is the JSON sidecar carrying min/max key, counts, and (for
// B-tree runs) per-level inner page counts.
func MetaPath(dir string, level int, id uint64, shape Shape) string {
	return filepath.Join(dir, baseName(level, id, shape)+".meta.json")
}

// BloomPath is the serialized Bloom filter sidecar.
func BloomPath(dir string, level int, id uint64, shape Shape) string {
	return filepath.Join(dir, baseName(level, id, shape)+".bloom")
}

// ParseFilename recognizes a run's primary data file name (.arr or
// .leaf) and reports its level, id, and shape. Other files belonging to
// a run (.inner, .meta.json, .bloom) are ignored by the manifest's
// directory scan, which only needs one hit per run to register it.
func ParseFilename(name string) (level int, id uint64, shape Shape, ok bool) {
	if !strings.HasPrefix(name, "L") {
		return 0, 0, 0, false
	}
	var ext string
	switch {
	case strings.HasSuffix(name, ".arr"):
		ext = ".arr"
		shape = ShapeArray
	case strings.HasSuffix(name, ".leaf"):
		ext = ".leaf"
		shape = ShapeBTree
	default:
		return 0, 0, 0, false
	}
	stem := strings.TrimSuffix(name, ext)
	parts := strings.SplitN(stem[1:], "-", 3)
	if len(parts) != 3 {
		return 0, 0, 0, false
	}
	lvl, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, 0, false
	}
	parsedID, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return 0, 0, 0, false
	}
	parsedShape, err := ParseShape(parts[2])
	if err != nil || parsedShape != shape {
		return 0, 0, 0, false
	}
	return lvl, parsedID, shape, true
}

// Meta is the JSON sidecar persisted alongside a run's data file(s).
type Meta struct {
	ID         uint64 `json:"id"`
	Level      int    `json:"level"`
	Shape      string `json:"shape"`
	MinKey     int64  `json:"min_key"`
	MaxKey     int64  `json:"max_key"`
	EntryCount int64  `json:"entry_count"`
	Pages      int64  `json:"pages"`
	Bloom      bool   `json:"bloom"`
	// BitsPerEntry is the density the Bloom filter was built with, when
	// Bloom is true. Open re-derives the filter's expected dimensions
	// from EntryCount and BitsPerEntry and refuses the run if the
	// persisted filter doesn't match, catching a corrupted or
	// hand-replaced .bloom file rather than silently miscomputing
	// against stale bits.
	BitsPerEntry uint64 `json:"bits_per_entry,omitempty"`

	// InnerPagesPerLevel records, bottom-up, how many inner pages each
	// B-tree delimiter level has. The root is always the single page of
	// the last (highest) level. Empty for array runs and for B-tree runs
	// small enough to need no inner file.
	InnerPagesPerLevel []int64 `json:"inner_pages_per_level,omitempty"`
}

// MinBound and MaxBound are used together as the unrestricted range for a
// full stream over a run.
const (
	MinBound = int64(math.MinInt64)
	MaxBound = int64(math.MaxInt64)
)
