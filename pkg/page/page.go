// Package page implements the fixed-size page codec shared by every
// on-disk structure and by the buffer pool. A page is always exactly
// Size bytes; it holds either an entry page (key, value pairs) or a
// delimiter page (bare keys), little-endian, zero-padded past the last
// live record.
package page

import (
	"encoding/binary"

	"github.com/quiver-db/quiver/pkg/kv"
)

// Size is the compile-time page size, shared by every on-disk structure
// and the buffer pool. It must not be changed after a database has data
// on disk: mixing page sizes within one database is undefined.
const Size = 4096

// EntriesPerPage is the number of (key, value) records an entry page
// holds: E = Size / 16.
const EntriesPerPage = Size / kv.EntrySize

// DelimitersPerPage is the number of bare keys a delimiter page holds:
// D = Size / 8.
const DelimitersPerPage = Size / 8

// EncodeEntries writes entries into a freshly zeroed page-sized buffer.
// len(entries) must be <= EntriesPerPage; any remainder is left zero.
func EncodeEntries(entries []kv.Entry) []byte {
	buf := make([]byte, Size)
	for i, e := range entries {
		off := i * kv.EntrySize
		binary.LittleEndian.PutUint64(buf[off:off+8], uint64(e.Key))
		binary.LittleEndian.PutUint64(buf[off+8:off+16], uint64(e.Value))
	}
	return buf
}

// DecodeEntries reads up to EntriesPerPage (key, value) pairs from a
// page-sized buffer. count bounds how many leading records are live;
// the rest of the page is padding and is ignored.
func DecodeEntries(buf []byte, count int) []kv.Entry {
	if count > EntriesPerPage {
		count = EntriesPerPage
	}
	out := make([]kv.Entry, count)
	for i := 0; i < count; i++ {
		off := i * kv.EntrySize
		out[i] = kv.Entry{
			Key:   int64(binary.LittleEndian.Uint64(buf[off : off+8])),
			Value: int64(binary.LittleEndian.Uint64(buf[off+8 : off+16])),
		}
	}
	return out
}

// EncodeDelimiters writes keys into a freshly zeroed page-sized buffer.
// len(keys) must be <= DelimitersPerPage.
func EncodeDelimiters(keys []int64) []byte {
	buf := make([]byte, Size)
	for i, k := range keys {
		off := i * 8
		binary.LittleEndian.PutUint64(buf[off:off+8], uint64(k))
	}
	return buf
}

// DecodeDelimiters reads up to DelimitersPerPage keys from a page-sized
// buffer, stopping after count entries.
func DecodeDelimiters(buf []byte, count int) []int64 {
	if count > DelimitersPerPage {
		count = DelimitersPerPage
	}
	out := make([]int64, count)
	for i := 0; i < count; i++ {
		off := i * 8
		out[i] = int64(binary.LittleEndian.Uint64(buf[off : off+8]))
	}
	return out
}

// ValidSize reports whether a run file's byte length is a legal page
// count: an exact multiple of Size. A mismatch means the file is
// corrupt.
func ValidSize(byteLen int64) bool {
	return byteLen%Size == 0
}
