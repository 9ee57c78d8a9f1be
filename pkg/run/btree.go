package run

import (
	"fmt"

	"github.com/quiver-db/quiver/pkg/bloom"
	"github.com/quiver-db/quiver/pkg/bufferpool"
	"github.com/quiver-db/quiver/pkg/kv"
	"github.com/quiver-db/quiver/pkg/page"
	"github.com/quiver-db/quiver/pkg/quiverhash"
)

// btreeRun is a bottom-up static B-tree: a leaf file identical in layout
// to an array run's data file, plus an inner file holding one or more
// levels of delimiter pages built once, at write time, from the first
// key of each page in the level below. The root is always the single
// page of the last (highest) level. A run small enough to fit in one
// leaf page has no inner file at all.
type btreeRun struct {
	id    uint64
	level int
	meta  *Meta
	leaf  *pageFile
	inner *pageFile // nil when meta.InnerPagesPerLevel is empty
	pool  *bufferpool.Pool
	f     *bloom.Filter
	dir   string
}

// WriteBTree consumes src (ascending, deduplicated) and writes a leaf
// file, an inner delimiter file (if more than one leaf page results),
// a meta sidecar, and — if enabled — a Bloom filter.
func WriteBTree(src Iterator, opts WriteArrayOptions) (m *Meta, err error) {
	leafPath := BTreeLeafPath(opts.Dir, opts.Level, opts.ID)
	fw, err := createFileWriter(leafPath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			fw.abort()
		}
	}()

	m = &Meta{ID: opts.ID, Level: opts.Level, Shape: ShapeBTree.String(), MinKey: MaxBound, MaxKey: MinBound}

	var firstKeys []int64
	pending := make([]kv.Entry, 0, page.EntriesPerPage)
	flushPage := func() error {
		firstKeys = append(firstKeys, pending[0].Key)
		buf := page.EncodeEntries(pending)
		if werr := fw.writePage(buf); werr != nil {
			return werr
		}
		pending = pending[:0]
		return nil
	}

	first := true
	for src.Next() {
		e := src.Entry()
		if first {
			m.MinKey = e.Key
			first = false
		}
		m.MaxKey = e.Key
		m.EntryCount++
		pending = append(pending, e)
		if len(pending) == page.EntriesPerPage {
			if err = flushPage(); err != nil {
				return nil, err
			}
		}
	}
	if err = src.Err(); err != nil {
		return nil, fmt.Errorf("run: reading source for btree write: %w", err)
	}
	if len(pending) > 0 {
		if err = flushPage(); err != nil {
			return nil, err
		}
	}
	if m.EntryCount == 0 {
		m.MinKey, m.MaxKey = 0, 0
	}
	m.Pages = fw.pages

	if err = fw.finish(); err != nil {
		return nil, err
	}

	if len(firstKeys) > 1 {
		levels := buildInnerLevels(firstKeys)
		innerPath := BTreeInnerPath(opts.Dir, opts.Level, opts.ID)
		ifw, ierr := createFileWriter(innerPath)
		if ierr != nil {
			err = ierr
			return nil, err
		}
		for _, lvl := range levels {
			for _, delims := range lvl {
				buf := page.EncodeDelimiters(delims)
				if werr := ifw.writePage(buf); werr != nil {
					ifw.abort()
					err = werr
					return nil, err
				}
			}
		}
		if ferr := ifw.finish(); ferr != nil {
			err = ferr
			return nil, err
		}
		for _, lvl := range levels {
			m.InnerPagesPerLevel = append(m.InnerPagesPerLevel, int64(len(lvl)))
		}
	}

	if opts.BloomEnabled && m.EntryCount > 0 {
		filter := bloom.New(uint64(m.EntryCount), opts.BitsPerEntry)
		lf, lerr := openPageFile(leafPath)
		if lerr != nil {
			err = lerr
			return nil, err
		}
		tmp := &btreeRun{meta: &Meta{EntryCount: m.EntryCount, Pages: m.Pages}, leaf: lf}
		it, ierr := tmp.NewIterator(MinBound, MaxBound, SearchLinear)
		if ierr != nil {
			lf.close()
			err = ierr
			return nil, err
		}
		for it.Next() {
			filter.Insert(it.Entry().Key)
		}
		if ferr := it.Err(); ferr != nil {
			lf.close()
			err = ferr
			return nil, err
		}
		lf.close()

		bloomPath := BloomPath(opts.Dir, opts.Level, opts.ID, ShapeBTree)
		if werr := writeBloomAtomic(bloomPath, filter); werr != nil {
			err = werr
			return nil, err
		}
		m.Bloom = true
		m.BitsPerEntry = opts.BitsPerEntry
	}

	if err = writeMeta(MetaPath(opts.Dir, opts.Level, opts.ID, ShapeBTree), m); err != nil {
		return nil, err
	}
	return m, nil
}

// buildInnerLevels chunks leafFirstKeys (the first key of each leaf
// page, in ascending order) into successive levels of at-most-D-key
// delimiter pages, stopping once a level fits in a single page — that
// page is the root. Each returned level is itself a list of pages
// (each page a slice of delimiters), in left-to-right order.
func buildInnerLevels(leafFirstKeys []int64) [][][]int64 {
	const d = page.DelimitersPerPage
	var levels [][][]int64
	current := leafFirstKeys
	for {
		numPages := (len(current) + d - 1) / d
		levelPages := make([][]int64, 0, numPages)
		nextKeys := make([]int64, 0, numPages)
		for p := 0; p < numPages; p++ {
			start := p * d
			end := start + d
			if end > len(current) {
				end = len(current)
			}
			chunk := current[start:end]
			levelPages = append(levelPages, chunk)
			nextKeys = append(nextKeys, chunk[0])
		}
		levels = append(levels, levelPages)
		if numPages == 1 {
			return levels
		}
		current = nextKeys
	}
}

// OpenBTree opens an existing B-tree run for reads.
func OpenBTree(dir string, level int, id uint64, pool *bufferpool.Pool) (Run, error) {
	m, err := readMeta(MetaPath(dir, level, id, ShapeBTree))
	if err != nil {
		return nil, err
	}
	leaf, err := openPageFile(BTreeLeafPath(dir, level, id))
	if err != nil {
		return nil, err
	}
	r := &btreeRun{id: id, level: level, meta: m, leaf: leaf, pool: pool, dir: dir}
	if len(m.InnerPagesPerLevel) > 0 {
		inner, ierr := openPageFile(BTreeInnerPath(dir, level, id))
		if ierr != nil {
			leaf.close()
			return nil, ierr
		}
		r.inner = inner
	}
	if m.Bloom {
		f, ferr := readBloom(BloomPath(dir, level, id, ShapeBTree))
		if ferr != nil {
			leaf.close()
			if r.inner != nil {
				r.inner.close()
			}
			return nil, ferr
		}
		if !f.SizeMatches(uint64(m.EntryCount), m.BitsPerEntry) {
			leaf.close()
			if r.inner != nil {
				r.inner.close()
			}
			return nil, fmt.Errorf("run: bloom filter for %s: %w", BloomPath(dir, level, id, ShapeBTree), ErrCorrupt)
		}
		r.f = f
	}
	return r, nil
}

func (r *btreeRun) ID() uint64        { return r.id }
func (r *btreeRun) Level() int        { return r.level }
func (r *btreeRun) Shape() Shape      { return ShapeBTree }
func (r *btreeRun) MinKey() int64     { return r.meta.MinKey }
func (r *btreeRun) MaxKey() int64     { return r.meta.MaxKey }
func (r *btreeRun) EntryCount() int64 { return r.meta.EntryCount }
func (r *btreeRun) Pages() int64      { return r.meta.Pages }

func (r *btreeRun) ByteSize() int64 {
	inner := int64(0)
	for _, n := range r.meta.InnerPagesPerLevel {
		inner += n
	}
	return (r.meta.Pages + inner) * page.Size
}

func (r *btreeRun) MaybeContains(key int64) bool {
	if r.f == nil {
		return true
	}
	return r.f.MaybeContains(key)
}

func (r *btreeRun) fetchLeafPage(i int64) ([]byte, error) {
	if r.pool != nil {
		pk := quiverhash.PageKey{RunID: r.id, File: quiverhash.FileData, Offset: uint64(i)}
		if buf, ok := r.pool.Get(pk); ok {
			return buf, nil
		}
		buf, err := r.leaf.readPage(i)
		if err != nil {
			return nil, err
		}
		r.pool.Insert(pk, buf)
		return buf, nil
	}
	return r.leaf.readPage(i)
}

func (r *btreeRun) fetchInnerPage(absOffset int64) ([]byte, error) {
	if r.pool != nil {
		pk := quiverhash.PageKey{RunID: r.id, File: quiverhash.FileInner, Offset: uint64(absOffset)}
		if buf, ok := r.pool.Get(pk); ok {
			return buf, nil
		}
		buf, err := r.inner.readPage(absOffset)
		if err != nil {
			return nil, err
		}
		r.pool.Insert(pk, buf)
		return buf, nil
	}
	return r.inner.readPage(absOffset)
}

func (r *btreeRun) leafEntries(i int64) ([]kv.Entry, error) {
	if r.meta.EntryCount == 0 {
		return nil, nil
	}
	buf, err := r.fetchLeafPage(i)
	if err != nil {
		return nil, err
	}
	count := page.EntriesPerPage
	if i == r.meta.Pages-1 {
		rem := int(r.meta.EntryCount % int64(page.EntriesPerPage))
		if rem != 0 {
			count = rem
		}
	}
	return page.DecodeEntries(buf, count), nil
}

// levelOffset returns the absolute inner-file page offset of the first
// page in level lvl (0-indexed: level 0 is the level built directly from
// leaf first-keys).
func (r *btreeRun) levelOffset(lvl int) int64 {
	var off int64
	for i := 0; i < lvl; i++ {
		off += r.meta.InnerPagesPerLevel[i]
	}
	return off
}

// descend finds the leaf page that could contain key by walking the
// inner levels top-down, root first.
func (r *btreeRun) descend(key int64) (int64, error) {
	numLevels := len(r.meta.InnerPagesPerLevel)
	if numLevels == 0 {
		return 0, nil
	}
	// childCount[lvl] is how many pages exist at level lvl (0-indexed,
	// where level -1 conceptually means the leaf pages).
	childCount := func(lvl int) int64 {
		if lvl < 0 {
			return r.meta.Pages
		}
		return r.meta.InnerPagesPerLevel[lvl]
	}

	pageIdx := int64(0) // page index within the root level (always 0: root is a single page)
	for lvl := numLevels - 1; lvl >= 0; lvl-- {
		absOffset := r.levelOffset(lvl) + pageIdx
		buf, err := r.fetchInnerPage(absOffset)
		if err != nil {
			return 0, err
		}
		below := childCount(lvl - 1)
		start := pageIdx * page.DelimitersPerPage
		count := page.DelimitersPerPage
		if start+int64(count) > below {
			count = int(below - start)
		}
		delims := page.DecodeDelimiters(buf, count)
		child := delimiterChildIndex(delims, key)
		pageIdx = pageIdx*page.DelimitersPerPage + int64(child)
	}
	return pageIdx, nil
}

func (r *btreeRun) Get(key int64, mode SearchMode) (int64, error) {
	if r.meta.EntryCount == 0 || key < r.meta.MinKey || key > r.meta.MaxKey {
		return 0, ErrNotFound
	}
	leafIdx, err := r.descend(key)
	if err != nil {
		return 0, err
	}
	entries, err := r.leafEntries(leafIdx)
	if err != nil {
		return 0, err
	}
	i := lowerBound(entries, key, mode)
	if i >= len(entries) || entries[i].Key != key {
		return 0, ErrNotFound
	}
	return entries[i].Value, nil
}

func (r *btreeRun) NewIterator(lo, hi int64, mode SearchMode) (Iterator, error) {
	it := &btreeScanIterator{r: r, lo: lo, hi: hi, mode: mode, curPage: -1}
	if r.meta.EntryCount == 0 || lo > r.meta.MaxKey || hi < r.meta.MinKey {
		it.done = true
		return it, nil
	}
	startPage, err := r.descend(lo)
	if err != nil {
		return nil, err
	}
	it.curPage = startPage - 1
	return it, nil
}

// btreeScanIterator walks leaf pages left to right starting from the
// page located by descent, identical in structure to arrayScanIterator.
type btreeScanIterator struct {
	r       *btreeRun
	lo, hi  int64
	mode    SearchMode
	curPage int64
	entries []kv.Entry
	idx     int
	current kv.Entry
	done    bool
	err     error
}

func (it *btreeScanIterator) Next() bool {
	if it.done || it.err != nil {
		return false
	}
	for {
		if it.entries != nil && it.idx < len(it.entries) {
			e := it.entries[it.idx]
			it.idx++
			if e.Key > it.hi {
				it.done = true
				return false
			}
			if e.Key < it.lo {
				continue
			}
			it.current = e
			return true
		}
		it.curPage++
		if it.curPage >= it.r.meta.Pages {
			it.done = true
			return false
		}
		entries, err := it.r.leafEntries(it.curPage)
		if err != nil {
			it.err = err
			return false
		}
		it.entries = entries
		it.idx = 0
		if len(entries) == 0 {
			it.done = true
			return false
		}
	}
}

func (it *btreeScanIterator) Entry() kv.Entry { return it.current }
func (it *btreeScanIterator) Err() error      { return it.err }

func (r *btreeRun) Close() error {
	err := r.leaf.close()
	if r.inner != nil {
		if ierr := r.inner.close(); ierr != nil && err == nil {
			err = ierr
		}
	}
	return err
}

func (r *btreeRun) Delete() error {
	r.leaf.close()
	if r.inner != nil {
		r.inner.close()
	}
	if err := removeIfExists(BTreeLeafPath(r.dir, r.level, r.id)); err != nil {
		return err
	}
	if err := removeIfExists(BTreeInnerPath(r.dir, r.level, r.id)); err != nil {
		return err
	}
	if err := removeIfExists(MetaPath(r.dir, r.level, r.id, ShapeBTree)); err != nil {
		return err
	}
	return removeIfExists(BloomPath(r.dir, r.level, r.id, ShapeBTree))
}
