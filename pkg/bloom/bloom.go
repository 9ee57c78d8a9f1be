// Package bloom implements the per-run Bloom filter: a fixed-size bitset
// built once, at flush or compaction time, and consulted before a run's
// pages are probed for a key.
package bloom

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/bits-and-blooms/bitset"

	"github.com/quiver-db/quiver/pkg/quiverhash"
)

// MaxHashFunctions caps k regardless of how the bits-per-entry / entry
// count math works out, so a pathological configuration can't make
// every insert and lookup pay for hundreds of hashes.
const MaxHashFunctions = 30

// Filter is an immutable, fixed-size Bloom filter over int64 keys.
type Filter struct {
	bits *bitset.BitSet
	m    uint64 // number of bits
	k    uint64 // number of hash functions
	n    uint64 // entry count the filter was sized for
}

// New builds an empty filter sized for n entries at bitsPerEntry density.
// n == 0 or bitsPerEntry == 0 yields a filter whose MaybeContains always
// reports true (see Disabled).
func New(n uint64, bitsPerEntry uint64) *Filter {
	if n == 0 || bitsPerEntry == 0 {
		return &Filter{}
	}
	m := n * bitsPerEntry
	k := optimalK(m, n)
	return &Filter{
		bits: bitset.New(uint(m)),
		m:    m,
		k:    k,
		n:    n,
	}
}

// optimalK computes k = ceil(m * ln2 / n), capped at MaxHashFunctions and
// floored at 1.
func optimalK(m, n uint64) uint64 {
	k := uint64(math.Ceil(float64(m) * math.Ln2 / float64(n)))
	if k < 1 {
		k = 1
	}
	if k > MaxHashFunctions {
		k = MaxHashFunctions
	}
	return k
}

// Disabled reports whether this filter was built with no entries or zero
// bit density; per the on-disk contract, such a filter must answer every
// MaybeContains query with true rather than false-negative.
func (f *Filter) Disabled() bool {
	return f.m == 0
}

// Insert sets the k bits corresponding to key.
func (f *Filter) Insert(key int64) {
	if f.Disabled() {
		return
	}
	for seed := uint64(0); seed < f.k; seed++ {
		bit := f.bitIndex(key, seed)
		f.bits.Set(uint(bit))
	}
}

// MaybeContains returns false only when key is definitely absent. A true
// result may be a false positive; a false result is never a false
// negative.
func (f *Filter) MaybeContains(key int64) bool {
	if f.Disabled() {
		return true
	}
	for seed := uint64(0); seed < f.k; seed++ {
		bit := f.bitIndex(key, seed)
		if !f.bits.Test(uint(bit)) {
			return false
		}
	}
	return true
}

func (f *Filter) bitIndex(key int64, seed uint64) uint64 {
	h := quiverhash.Seeded(key, seed)
	return h % f.m
}

// K returns the number of hash functions in use (0 if disabled).
func (f *Filter) K() uint64 { return f.k }

// M returns the bitset size in bits (0 if disabled).
func (f *Filter) M() uint64 { return f.m }

// N returns the entry count the filter was sized for.
func (f *Filter) N() uint64 { return f.n }

// header is the fixed-size prefix of the serialized filter: n, m, k as
// little-endian uint64s, followed by the raw bitset bytes.
const headerSize = 24

// Marshal serializes the filter to its sidecar file representation.
func (f *Filter) Marshal() []byte {
	var body []byte
	if !f.Disabled() {
		body, _ = f.bits.MarshalBinary()
	}
	buf := make([]byte, headerSize+len(body))
	binary.LittleEndian.PutUint64(buf[0:8], f.n)
	binary.LittleEndian.PutUint64(buf[8:16], f.m)
	binary.LittleEndian.PutUint64(buf[16:24], f.k)
	copy(buf[headerSize:], body)
	return buf
}

// Unmarshal parses a sidecar file's contents back into a Filter.
func Unmarshal(data []byte) (*Filter, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("bloom: corrupt filter header (%d bytes)", len(data))
	}
	f := &Filter{
		n: binary.LittleEndian.Uint64(data[0:8]),
		m: binary.LittleEndian.Uint64(data[8:16]),
		k: binary.LittleEndian.Uint64(data[16:24]),
	}
	if f.m == 0 {
		return f, nil
	}
	f.bits = &bitset.BitSet{}
	if err := f.bits.UnmarshalBinary(data[headerSize:]); err != nil {
		return nil, fmt.Errorf("bloom: unmarshal bitset: %w", err)
	}
	return f, nil
}

// SizeMatches reports whether this filter's dimensions match what would
// be built for n entries at bitsPerEntry density. Per the design's
// undefined-behavior rule for changing bits-per-entry after data is
// written, callers use this to detect a mismatch on open and either
// refuse the filter or ignore it, rather than miscompute against stale
// bits.
func (f *Filter) SizeMatches(n uint64, bitsPerEntry uint64) bool {
	want := New(n, bitsPerEntry)
	return f.m == want.m && f.k == want.k && f.n == want.n
}
