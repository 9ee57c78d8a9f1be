// Package bufferpool implements the process-wide page cache shared by
// every run. Pages are keyed by (run id, page offset) and cached in an
// extendible hash directory; eviction combines a clock sweep over the
// directory with per-bucket LRU ordering.
package bufferpool

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/quiver-db/quiver/pkg/page"
	"github.com/quiver-db/quiver/pkg/quiverhash"
)

// DefaultBucketCapacity bounds how many frames a bucket holds before it
// splits. Small on purpose: the design calls for a linear scan within a
// bucket on every lookup.
const DefaultBucketCapacity = 4

// DefaultInitialDepth seeds the starting directory size (2^depth slots).
const DefaultInitialDepth = 2

type frame struct {
	key  quiverhash.PageKey
	data []byte
}

// bucket holds a bounded, recency-ordered list of frames plus the one clock
// reference bit shared by every directory slot pointing at it. order[0]
// is the least recently used frame; order[len-1] is the most recent.
type bucket struct {
	localDepth uint
	ref        bool
	order      []frame
}

func newBucket(localDepth uint) *bucket {
	return &bucket{localDepth: localDepth}
}

func (b *bucket) find(key quiverhash.PageKey) int {
	for i := range b.order {
		if b.order[i].key == key {
			return i
		}
	}
	return -1
}

func (b *bucket) touch(i int) {
	f := b.order[i]
	b.order = append(b.order[:i], b.order[i+1:]...)
	b.order = append(b.order, f)
}

func (b *bucket) full(capacity int) bool {
	return len(b.order) >= capacity
}

// Pool is the shared page cache. It is not safe for concurrent use: the
// engine's single-threaded-with-respect-to-client-calls model is what
// makes that acceptable.
type Pool struct {
	mu             sync.Mutex
	dir            []*bucket
	globalDepth    uint
	bucketCapacity int
	capacity       int
	live           int
	hand           uint
	seed           uint64
	enabled        bool
	byRun          map[uint64]int // live frame count per run, for cheap Invalidate short-circuit

	hits, misses, evictions atomic.Uint64
}

// Stats is a snapshot of cache-effectiveness counters, fed to the
// statistics collector.
type Stats struct {
	Hits, Misses, Evictions uint64
	Live, Capacity          int
}

// Stats returns a snapshot of the pool's hit/miss/eviction counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Hits:      p.hits.Load(),
		Misses:    p.misses.Load(),
		Evictions: p.evictions.Load(),
		Live:      p.Len(),
		Capacity:  p.capacity,
	}
}

// Options configures a new Pool.
type Options struct {
	// CapacityFrames bounds the number of live frames. Zero disables the
	// pool: Get always misses and Insert is a no-op.
	CapacityFrames int
	// InitialDepth seeds the starting global depth (2^depth directory
	// slots) before any splits occur.
	InitialDepth uint
	// BucketCapacity bounds frames per bucket before a split.
	BucketCapacity int
	// Seed parameterizes the shared hash primitive.
	Seed uint64
}

// FramesFromMB converts a megabyte budget into a frame count using the
// shared page size.
func FramesFromMB(mb int) int {
	return (mb * 1024 * 1024) / page.Size
}

// New creates a buffer pool. If opts.CapacityFrames <= 0, the returned
// pool is disabled: callers should still call Get/Insert/Invalidate, but
// every Get misses and no data is retained.
func New(opts Options) *Pool {
	if opts.BucketCapacity <= 0 {
		opts.BucketCapacity = DefaultBucketCapacity
	}
	depth := opts.InitialDepth
	p := &Pool{
		bucketCapacity: opts.BucketCapacity,
		capacity:       opts.CapacityFrames,
		globalDepth:    depth,
		seed:           opts.Seed,
		enabled:        opts.CapacityFrames > 0,
		byRun:          make(map[uint64]int),
	}
	size := 1 << depth
	p.dir = make([]*bucket, size)
	for i := range p.dir {
		p.dir[i] = newBucket(depth)
	}
	return p
}

// Enabled reports whether caching is active.
func (p *Pool) Enabled() bool { return p.enabled }

// Capacity returns the configured frame budget.
func (p *Pool) Capacity() int { return p.capacity }

// Len returns the number of live frames.
func (p *Pool) Len() int { return p.live }

func (p *Pool) index(key quiverhash.PageKey) uint64 {
	mask := uint64(1)<<p.globalDepth - 1
	return quiverhash.SeededPageKey(key, p.seed) & mask
}

// Get returns the cached page for key, if present, and marks it as the
// most recently used frame in its bucket, setting the bucket's clock
// reference bit.
func (p *Pool) Get(key quiverhash.PageKey) ([]byte, bool) {
	if !p.enabled {
		return nil, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := p.index(key)
	b := p.dir[idx]
	i := b.find(key)
	if i < 0 {
		p.misses.Add(1)
		return nil, false
	}
	data := b.order[i].data
	b.touch(i)
	b.ref = true
	p.hits.Add(1)
	return data, true
}

// Insert caches data under key, evicting the least-recently-used
// unreferenced frame first if the pool is at capacity. It overwrites any
// existing frame for key.
func (p *Pool) Insert(key quiverhash.PageKey, data []byte) {
	if !p.enabled {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := p.index(key)
	b := p.dir[idx]
	if i := b.find(key); i >= 0 {
		b.order[i].data = data
		b.touch(i)
		b.ref = true
		return
	}

	if p.live >= p.capacity {
		p.evictOne()
		idx = p.index(key)
		b = p.dir[idx]
	}

	b.order = append(b.order, frame{key: key, data: data})
	p.live++
	p.byRun[key.RunID]++
	if b.full(p.bucketCapacity) {
		p.split(idx)
	}
}

// evictOne runs one step of the clock sweep: it clears reference bits on
// buckets it passes with the bit set, and removes the head (LRU) frame
// of the first bucket it finds with the bit already clear.
func (p *Pool) evictOne() {
	if p.live == 0 {
		return
	}
	limit := 4*len(p.dir) + 16
	for i := 0; i < limit; i++ {
		b := p.dir[p.hand]
		if b.ref {
			b.ref = false
			p.advanceHand()
			continue
		}
		if len(b.order) > 0 {
			victim := b.order[0]
			b.order = b.order[1:]
			p.live--
			p.byRun[victim.key.RunID]--
			if p.byRun[victim.key.RunID] <= 0 {
				delete(p.byRun, victim.key.RunID)
			}
			p.evictions.Add(1)
			p.advanceHand()
			return
		}
		p.advanceHand()
	}
	panic(fmt.Sprintf("bufferpool: clock sweep found no evictable frame after %d steps (live=%d, cap=%d)", limit, p.live, p.capacity))
}

func (p *Pool) advanceHand() {
	p.hand = (p.hand + 1) % uint(len(p.dir))
}

// split doubles the directory (if the target bucket's local depth has
// caught up to the global depth) and then splits the bucket at idx into
// two, redistributing its frames by the next hash bit.
func (p *Pool) split(idx uint64) {
	for {
		b := p.dir[idx]
		if !b.full(p.bucketCapacity) {
			return
		}
		if b.localDepth == p.globalDepth {
			// Doubling preserves dir[idx]: the new mask keeps its low bits,
			// and idx is already within the pre-doubling directory length.
			p.doubleDirectory()
		}
		b = p.dir[idx]
		highBit := uint64(1) << b.localDepth
		newDepth := b.localDepth + 1
		b1 := newBucket(newDepth)
		b2 := newBucket(newDepth)
		for _, f := range b.order {
			h := quiverhash.SeededPageKey(f.key, p.seed)
			if h&highBit == 0 {
				b1.order = append(b1.order, f)
			} else {
				b2.order = append(b2.order, f)
			}
		}
		start := idx & (highBit - 1)
		for i := start; i < uint64(len(p.dir)); i += highBit {
			if i&highBit == 0 {
				p.dir[i] = b1
			} else {
				p.dir[i] = b2
			}
		}
		// If the child now at idx is still at (or over) capacity, split
		// it again; the other child is not re-checked here.
		if p.dir[idx].full(p.bucketCapacity) {
			continue
		}
		return
	}
}

// doubleDirectory grows the directory from 2^g to 2^(g+1) slots. Slot i
// in the new directory points at the same bucket as slot (i mod 2^g) did
// in the old directory, so every existing mapping is preserved.
func (p *Pool) doubleDirectory() {
	old := p.dir
	p.globalDepth++
	newSize := 1 << p.globalDepth
	newDir := make([]*bucket, newSize)
	mask := uint64(len(old) - 1)
	for i := 0; i < newSize; i++ {
		newDir[i] = old[uint64(i)&mask]
	}
	p.dir = newDir
}

// Invalidate drops every cached frame belonging to runID. Compaction
// calls this after unlinking a run's files so a later run reusing the
// same page offsets can never observe a stale hit.
func (p *Pool) Invalidate(runID uint64) {
	if !p.enabled {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.byRun[runID] == 0 {
		return
	}
	seen := make(map[*bucket]bool)
	for _, b := range p.dir {
		if seen[b] {
			continue
		}
		seen[b] = true
		kept := b.order[:0]
		for _, f := range b.order {
			if f.key.RunID == runID {
				p.live--
				continue
			}
			kept = append(kept, f)
		}
		b.order = kept
	}
	delete(p.byRun, runID)
}
