package bufferpool

import (
	"testing"

	"github.com/quiver-db/quiver/pkg/page"
	"github.com/quiver-db/quiver/pkg/quiverhash"
)

func pageBytes(n byte) []byte {
	buf := make([]byte, page.Size)
	buf[0] = n
	return buf
}

func TestGetMissThenHit(t *testing.T) {
	p := New(Options{CapacityFrames: 64})
	key := quiverhash.PageKey{RunID: 1, Offset: 0}

	if _, ok := p.Get(key); ok {
		t.Fatalf("expected miss on empty pool")
	}
	p.Insert(key, pageBytes(7))
	data, ok := p.Get(key)
	if !ok || data[0] != 7 {
		t.Fatalf("expected hit with inserted data, got ok=%v data=%v", ok, data)
	}
}

func TestCapacityNeverExceeded(t *testing.T) {
	const capacity = 64
	p := New(Options{CapacityFrames: capacity, BucketCapacity: DefaultBucketCapacity})

	for i := 0; i < 1000; i++ {
		key := quiverhash.PageKey{RunID: 1, Offset: uint64(i)}
		p.Insert(key, pageBytes(byte(i)))
		if p.Len() > capacity {
			t.Fatalf("live frame count %d exceeds capacity %d after insert %d", p.Len(), capacity, i)
		}
	}
	if p.Len() > capacity {
		t.Fatalf("final live frame count %d exceeds capacity %d", p.Len(), capacity)
	}
}

func TestDisabledPoolAlwaysMisses(t *testing.T) {
	p := New(Options{CapacityFrames: 0})
	key := quiverhash.PageKey{RunID: 1, Offset: 5}
	p.Insert(key, pageBytes(1))
	if _, ok := p.Get(key); ok {
		t.Fatalf("disabled pool must never report a hit")
	}
}

func TestInvalidateDropsOnlyMatchingRun(t *testing.T) {
	p := New(Options{CapacityFrames: 64})
	keyA := quiverhash.PageKey{RunID: 1, Offset: 0}
	keyB := quiverhash.PageKey{RunID: 2, Offset: 0}
	p.Insert(keyA, pageBytes(1))
	p.Insert(keyB, pageBytes(2))

	p.Invalidate(1)

	if _, ok := p.Get(keyA); ok {
		t.Fatalf("expected run 1's page to be invalidated")
	}
	if _, ok := p.Get(keyB); !ok {
		t.Fatalf("expected run 2's page to survive invalidation of run 1")
	}
}

func TestSplitPreservesAllMappings(t *testing.T) {
	p := New(Options{CapacityFrames: 10000, BucketCapacity: 2, InitialDepth: 1})

	const n = 500
	for i := 0; i < n; i++ {
		key := quiverhash.PageKey{RunID: 3, Offset: uint64(i)}
		p.Insert(key, pageBytes(byte(i)))
	}
	for i := 0; i < n; i++ {
		key := quiverhash.PageKey{RunID: 3, Offset: uint64(i)}
		data, ok := p.Get(key)
		if !ok {
			t.Fatalf("mapping for offset %d lost after splits", i)
		}
		if data[0] != byte(i) {
			t.Fatalf("offset %d: wrong data after splits", i)
		}
	}
}

func TestClockNeverEvictsReferencedBucketWithoutClearing(t *testing.T) {
	p := New(Options{CapacityFrames: 8, BucketCapacity: 2, InitialDepth: 1})
	for i := 0; i < 8; i++ {
		p.Insert(quiverhash.PageKey{RunID: 1, Offset: uint64(i)}, pageBytes(byte(i)))
	}
	// Touch every bucket to set its reference bit, then force one eviction.
	for i := 0; i < 8; i++ {
		p.Get(quiverhash.PageKey{RunID: 1, Offset: uint64(i)})
	}
	p.Insert(quiverhash.PageKey{RunID: 1, Offset: 100}, pageBytes(9))
	if p.Len() > 8 {
		t.Fatalf("capacity exceeded: %d", p.Len())
	}
	// Exactly one original frame is gone, and the bucket it was taken
	// from no longer has its reference bit set.
	missing := 0
	for i := 0; i < 8; i++ {
		key := quiverhash.PageKey{RunID: 1, Offset: uint64(i)}
		b := p.dir[p.index(key)]
		if b.find(key) >= 0 {
			continue
		}
		missing++
		if b.ref {
			t.Fatalf("offset %d evicted from a bucket whose reference bit is still set", i)
		}
	}
	if missing != 1 {
		t.Fatalf("expected exactly one evicted frame, %d missing", missing)
	}
}
