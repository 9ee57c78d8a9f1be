package memtable

import "math/rand"

const (
	// MaxHeight is the maximum height of the skip list.
	MaxHeight = 12

	// BranchingFactor determines the probability of increasing the height.
	BranchingFactor = 4
)

// entry is a single key/value pair held in the skip list. Values equal to
// kv.Tombstone mark a deletion; the memtable stores them like any other
// value and lets callers decide how to interpret them.
type entry struct {
	key   int64
	value int64
}

// node is a skip list node. next is sized to its height and allocated
// once per node so a node's levels live in one contiguous block. The
// engine's calls into the memtable are single-threaded with respect to
// each other, so next needs no atomic access.
type node struct {
	entry entry
	next  []*node
}

func newNode(key, value int64, height int) *node {
	return &node{
		entry: entry{key: key, value: value},
		next:  make([]*node, height),
	}
}

// SkipList is an ordered map from int64 key to int64 value with unique
// keys. It backs the memtable's ascending iteration and O(log n) point
// operations.
type SkipList struct {
	head      *node
	maxHeight int
	rnd       *rand.Rand
	count     int
}

// NewSkipList creates an empty skip list. seed parameterizes the height
// coin flips; callers that want reproducible test runs pass a fixed
// value, and the memtable passes a time-derived one in production.
func NewSkipList(seed int64) *SkipList {
	return &SkipList{
		head:      newNode(0, 0, MaxHeight),
		maxHeight: 1,
		rnd:       rand.New(rand.NewSource(seed)),
	}
}

func (s *SkipList) randomHeight() int {
	height := 1
	for height < MaxHeight && s.rnd.Intn(BranchingFactor) == 0 {
		height++
	}
	return height
}

// findPrev locates, at each level, the last node whose key is strictly
// less than key. It also returns an exact match at level 0, if any.
func (s *SkipList) findPrev(key int64, prev []*node) *node {
	current := s.head
	for level := s.maxHeight - 1; level >= 0; level-- {
		for next := current.next[level]; next != nil; next = current.next[level] {
			if next.entry.key >= key {
				break
			}
			current = next
		}
		if prev != nil {
			prev[level] = current
		}
	}
	return current
}

// Put inserts key/value, overwriting any existing entry for key. Returns
// true if a new node was created (the key was not previously present).
func (s *SkipList) Put(key, value int64) bool {
	var prev [MaxHeight]*node
	found := s.findPrev(key, prev[:s.maxHeight])

	if existing := found.next[0]; existing != nil && existing.entry.key == key {
		existing.entry.value = value
		return false
	}

	height := s.randomHeight()
	if height > s.maxHeight {
		for level := s.maxHeight; level < height; level++ {
			prev[level] = s.head
		}
		s.maxHeight = height
	}

	n := newNode(key, value, height)
	for level := 0; level < height; level++ {
		n.next[level] = prev[level].next[level]
		prev[level].next[level] = n
	}
	s.count++
	return true
}

// Get returns the value for key and whether it was found.
func (s *SkipList) Get(key int64) (int64, bool) {
	prev := s.findPrev(key, nil)
	next := prev.next[0]
	if next != nil && next.entry.key == key {
		return next.entry.value, true
	}
	return 0, false
}

// Len returns the number of distinct keys stored.
func (s *SkipList) Len() int {
	return s.count
}

// Iterator provides ascending sequential access to the skip list.
type Iterator struct {
	list    *SkipList
	current *node
}

// NewIterator creates an iterator positioned before the first entry.
func (s *SkipList) NewIterator() *Iterator {
	return &Iterator{list: s, current: s.head}
}

func (it *Iterator) Valid() bool {
	return it.current != nil && it.current != it.list.head
}

func (it *Iterator) Next() {
	if it.current == nil {
		return
	}
	it.current = it.current.next[0]
}

func (it *Iterator) SeekToFirst() {
	it.current = it.list.head.next[0]
}

// Seek positions the iterator at the first entry with key >= target.
func (it *Iterator) Seek(key int64) {
	prev := it.list.findPrev(key, nil)
	it.current = prev.next[0]
}

func (it *Iterator) Key() int64 {
	return it.current.entry.key
}

func (it *Iterator) Value() int64 {
	return it.current.entry.value
}
