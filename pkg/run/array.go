package run

import (
	"fmt"

	"github.com/quiver-db/quiver/pkg/bloom"
	"github.com/quiver-db/quiver/pkg/bufferpool"
	"github.com/quiver-db/quiver/pkg/kv"
	"github.com/quiver-db/quiver/pkg/page"
	"github.com/quiver-db/quiver/pkg/quiverhash"
)

// arrayRun is a flat sorted array of entry pages: page i holds entries
// i*E .. (i+1)*E-1, with the final page zero-padded past entry_count.
type arrayRun struct {
	id    uint64
	level int
	meta  *Meta
	data  *pageFile
	pool  *bufferpool.Pool
	f     *bloom.Filter
	dir   string
}

// WriteArrayOptions configures a flush or compaction output run.
type WriteArrayOptions struct {
	Dir          string
	Level        int
	ID           uint64
	BloomEnabled bool
	BitsPerEntry uint64
}

// WriteArray consumes src (already in strictly ascending, deduplicated
// key order) and writes a new array run, its meta sidecar, and — if
// enabled — its Bloom filter. All three files are written via temp file
// plus atomic rename; on any error, partial output is removed and the
// caller's manifest is left untouched.
func WriteArray(src Iterator, opts WriteArrayOptions) (m *Meta, err error) {
	dataPath := ArrayDataPath(opts.Dir, opts.Level, opts.ID)
	fw, err := createFileWriter(dataPath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			fw.abort()
			removeIfExists(dataPath)
			removeIfExists(BloomPath(opts.Dir, opts.Level, opts.ID, ShapeArray))
		}
	}()

	m = &Meta{ID: opts.ID, Level: opts.Level, Shape: ShapeArray.String(), MinKey: MaxBound, MaxKey: MinBound}

	pending := make([]kv.Entry, 0, page.EntriesPerPage)
	flushPage := func() error {
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
		return nil, fmt.Errorf("run: reading source for array write: %w", err)
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

	if opts.BloomEnabled && m.EntryCount > 0 {
		filter := bloom.New(uint64(m.EntryCount), opts.BitsPerEntry)
		pf, ferr := openPageFile(dataPath)
		if ferr != nil {
			err = ferr
			return nil, err
		}
		tmp := &arrayRun{meta: &Meta{EntryCount: m.EntryCount, Pages: m.Pages}, data: pf}
		it, ierr := tmp.NewIterator(MinBound, MaxBound, SearchLinear)
		if ierr != nil {
			pf.close()
			err = ierr
			return nil, err
		}
		for it.Next() {
			filter.Insert(it.Entry().Key)
		}
		if ferr := it.Err(); ferr != nil {
			pf.close()
			err = ferr
			return nil, err
		}
		pf.close()

		bloomPath := BloomPath(opts.Dir, opts.Level, opts.ID, ShapeArray)
		if werr := writeBloomAtomic(bloomPath, filter); werr != nil {
			err = werr
			return nil, err
		}
		m.Bloom = true
		m.BitsPerEntry = opts.BitsPerEntry
	}

	if err = writeMeta(MetaPath(opts.Dir, opts.Level, opts.ID, ShapeArray), m); err != nil {
		return nil, err
	}
	return m, nil
}

// OpenArray opens an existing array run for reads.
func OpenArray(dir string, level int, id uint64, pool *bufferpool.Pool) (Run, error) {
	m, err := readMeta(MetaPath(dir, level, id, ShapeArray))
	if err != nil {
		return nil, err
	}
	data, err := openPageFile(ArrayDataPath(dir, level, id))
	if err != nil {
		return nil, err
	}
	r := &arrayRun{id: id, level: level, meta: m, data: data, pool: pool, dir: dir}
	if m.Bloom {
		f, ferr := readBloom(BloomPath(dir, level, id, ShapeArray))
		if ferr != nil {
			data.close()
			return nil, ferr
		}
		if !f.SizeMatches(uint64(m.EntryCount), m.BitsPerEntry) {
			data.close()
			return nil, fmt.Errorf("run: bloom filter for %s: %w", BloomPath(dir, level, id, ShapeArray), ErrCorrupt)
		}
		r.f = f
	}
	return r, nil
}

func (r *arrayRun) ID() uint64        { return r.id }
func (r *arrayRun) Level() int        { return r.level }
func (r *arrayRun) Shape() Shape      { return ShapeArray }
func (r *arrayRun) MinKey() int64     { return r.meta.MinKey }
func (r *arrayRun) MaxKey() int64     { return r.meta.MaxKey }
func (r *arrayRun) EntryCount() int64 { return r.meta.EntryCount }
func (r *arrayRun) Pages() int64      { return r.meta.Pages }
func (r *arrayRun) ByteSize() int64   { return r.meta.Pages * page.Size }

func (r *arrayRun) MaybeContains(key int64) bool {
	if r.f == nil {
		return true
	}
	return r.f.MaybeContains(key)
}

// fetchPage loads page i, consulting and populating the buffer pool.
func (r *arrayRun) fetchPage(i int64) ([]byte, error) {
	if r.pool != nil {
		pk := quiverhash.PageKey{RunID: r.id, File: quiverhash.FileData, Offset: uint64(i)}
		if buf, ok := r.pool.Get(pk); ok {
			return buf, nil
		}
		buf, err := r.data.readPage(i)
		if err != nil {
			return nil, err
		}
		r.pool.Insert(pk, buf)
		return buf, nil
	}
	return r.data.readPage(i)
}

// entriesOnPage decodes the live entries on page i (the last page may
// hold fewer than EntriesPerPage).
func (r *arrayRun) entriesOnPage(i int64) ([]kv.Entry, error) {
	if r.meta.EntryCount == 0 {
		return nil, nil
	}
	buf, err := r.fetchPage(i)
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

// pageForKey returns the last page whose first key is <= target, i.e.
// the only page that could contain target (pages are internally sorted
// and disjoint, and page i's first key is entry i*EntriesPerPage).
func (r *arrayRun) pageForKey(key int64) (int64, error) {
	if r.meta.Pages == 0 {
		return 0, nil
	}
	lo, hi := int64(0), r.meta.Pages
	for lo < hi {
		mid := lo + (hi-lo)/2
		entries, err := r.entriesOnPage(mid)
		if err != nil {
			return 0, err
		}
		if len(entries) == 0 || entries[0].Key <= key {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo == 0 {
		return 0, nil
	}
	return lo - 1, nil
}

func (r *arrayRun) Get(key int64, mode SearchMode) (int64, error) {
	if r.meta.EntryCount == 0 || key < r.meta.MinKey || key > r.meta.MaxKey {
		return 0, ErrNotFound
	}
	pageIdx, err := r.pageForKey(key)
	if err != nil {
		return 0, err
	}
	entries, err := r.entriesOnPage(pageIdx)
	if err != nil {
		return 0, err
	}
	i := lowerBound(entries, key, mode)
	if i >= len(entries) || entries[i].Key != key {
		return 0, ErrNotFound
	}
	return entries[i].Value, nil
}

func (r *arrayRun) NewIterator(lo, hi int64, mode SearchMode) (Iterator, error) {
	it := &arrayScanIterator{r: r, lo: lo, hi: hi, mode: mode, curPage: -1}
	if r.meta.EntryCount == 0 || lo > r.meta.MaxKey || hi < r.meta.MinKey {
		it.done = true
		return it, nil
	}
	startPage, err := r.pageForKey(lo)
	if err != nil {
		return nil, err
	}
	it.curPage = startPage - 1
	return it, nil
}

// arrayScanIterator walks pages in order starting from the page that
// could hold lo, decoding one page at a time and filtering to [lo, hi].
type arrayScanIterator struct {
	r       *arrayRun
	lo, hi  int64
	mode    SearchMode
	curPage int64
	entries []kv.Entry
	idx     int
	current kv.Entry
	done    bool
	err     error
}

func (it *arrayScanIterator) Next() bool {
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
		entries, err := it.r.entriesOnPage(it.curPage)
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

func (it *arrayScanIterator) Entry() kv.Entry { return it.current }
func (it *arrayScanIterator) Err() error      { return it.err }

func (r *arrayRun) Close() error {
	return r.data.close()
}

func (r *arrayRun) Delete() error {
	r.data.close()
	if err := removeIfExists(ArrayDataPath(r.dir, r.level, r.id)); err != nil {
		return err
	}
	if err := removeIfExists(MetaPath(r.dir, r.level, r.id, ShapeArray)); err != nil {
		return err
	}
	return removeIfExists(BloomPath(r.dir, r.level, r.id, ShapeArray))
}
