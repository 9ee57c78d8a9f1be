// Package quiverhash provides the single 64-bit hash primitive shared by
// the Bloom filter and the buffer pool's extendible hash directory. Both
// consumers need many independent-looking hashes of the same key; this
// package derives them all from one seeded hash function so that the
// hashing behavior lives in exactly one place.
package quiverhash

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Seeded returns a 64-bit hash of key, parameterized by seed. Distinct
// seeds are treated by callers as distinct, independent hash functions
// over the same key space (the Bloom filter's k functions, or the buffer
// pool directory's bucket-splitting bit sequence).
func Seeded(key int64, seed uint64) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(key))
	d := xxhash.NewWithSeed(seed)
	d.Write(buf[:])
	return d.Sum64()
}

// PageKey identifies a cached page: a run id, which of that run's files
// the page lives in (a B-tree run has separate leaf and inner files, so
// File distinguishes them; File is always 0 for an array run), and a
// zero-based page offset within that file.
type PageKey struct {
	RunID  uint64
	File   uint8
	Offset uint64
}

// File values for PageKey.File.
const (
	FileData  uint8 = 0 // array data, or B-tree leaf data
	FileInner uint8 = 1 // B-tree inner (delimiter) file
)

// SeededPageKey hashes a PageKey the same way Seeded hashes a bare key,
// so the buffer pool directory and the Bloom filter share one primitive
// as required by the on-disk design.
func SeededPageKey(k PageKey, seed uint64) uint64 {
	var buf [17]byte
	binary.LittleEndian.PutUint64(buf[0:8], k.RunID)
	buf[8] = k.File
	binary.LittleEndian.PutUint64(buf[9:17], k.Offset)
	d := xxhash.NewWithSeed(seed)
	d.Write(buf[:])
	return d.Sum64()
}
