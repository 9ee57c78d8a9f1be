package run

import "github.com/quiver-db/quiver/pkg/kv"

// lowerBound returns the index of the first entry with Key >= target, or
// len(entries) if none qualifies. Both search modes must agree on this
// contract; only their internal strategy differs.
func lowerBound(entries []kv.Entry, target int64, mode SearchMode) int {
	if mode == SearchBinary {
		return binaryLowerBound(entries, target)
	}
	return linearLowerBound(entries, target)
}

func linearLowerBound(entries []kv.Entry, target int64) int {
	for i, e := range entries {
		if e.Key >= target {
			return i
		}
	}
	return len(entries)
}

func binaryLowerBound(entries []kv.Entry, target int64) int {
	lo, hi := 0, len(entries)
	for lo < hi {
		mid := lo + (hi-lo)/2
		if entries[mid].Key < target {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// delimiterChildIndex returns the index of the rightmost delimiter that
// is <= target, clamped to 0. Delimiters are each child's first key in
// ascending order, so this is the child to descend into.
func delimiterChildIndex(delims []int64, target int64) int {
	lo, hi := 0, len(delims)
	for lo < hi {
		mid := lo + (hi-lo)/2
		if delims[mid] <= target {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo == 0 {
		return 0
	}
	return lo - 1
}
