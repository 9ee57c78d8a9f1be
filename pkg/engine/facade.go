// Package engine wires memtable, run, manifest, buffer pool, and
// compaction into the single client-facing DB: one struct delegating to
// sub-components, tracking per-operation stats, guarded by an atomic
// closed flag. There is no WAL, no transaction manager, and no
// background compaction goroutine — a Put or Delete that finds the
// memtable full flushes and cascades synchronously on the calling
// goroutine before returning.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quiver-db/quiver/pkg/bufferpool"
	"github.com/quiver-db/quiver/pkg/common/log"
	"github.com/quiver-db/quiver/pkg/compaction"
	"github.com/quiver-db/quiver/pkg/config"
	"github.com/quiver-db/quiver/pkg/kv"
	"github.com/quiver-db/quiver/pkg/manifest"
	"github.com/quiver-db/quiver/pkg/memtable"
	"github.com/quiver-db/quiver/pkg/run"
	"github.com/quiver-db/quiver/pkg/stats"
)

// bufferPoolSeed parameterizes the buffer pool's directory hash. Fixed
// rather than random since the pool's split behavior only needs to be
// independent of the Bloom filter's own hash sequence, not
// unpredictable across runs.
const bufferPoolSeed = 0x51ea5eed

// DB is the embedded key-value store's single entry point. All access is
// single-threaded: callers must not call DB's methods from more than one
// goroutine at a time, so its mutable state (memtable, manifest) is
// protected only against concurrent Close, not against concurrent
// Put/Get/Scan.
type DB struct {
	dir string
	cfg *config.Config

	mem  *memtable.MemTable
	pool *bufferpool.Pool
	man  *manifest.Manifest
	comp *compaction.Engine

	logger  log.Logger
	metrics EngineMetrics
	stats   stats.Collector

	mu     sync.Mutex
	closed atomic.Bool

	// lastPoolEvictions is the buffer pool's eviction count as of the
	// last Stats call, used to fold newly observed evictions into the
	// stats collector's OpBufferPoolEvict counter.
	lastPoolEvictions uint64
}

// Open creates or opens a database directory named name under root. A
// fresh directory gets a default configuration persisted to disk; an
// existing directory's configuration and runs are reconstructed as-is.
// ValidateName rejects an empty or whitespace-bearing name as a usage
// error before any filesystem access.
func Open(root, name string) (*DB, error) {
	if err := config.ValidateName(name); err != nil {
		return nil, err
	}
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("engine: create database directory %s: %w", dir, err)
	}

	cfgPath := config.DefaultConfigPath(dir)
	cfg, err := config.LoadFile(cfgPath)
	if errors.Is(err, os.ErrNotExist) {
		cfg = config.NewDefaultConfig()
		if err := cfg.SaveFile(cfgPath); err != nil {
			return nil, fmt.Errorf("engine: write default config: %w", err)
		}
	} else if err != nil {
		return nil, err
	}

	pool := bufferpool.New(bufferpool.Options{
		CapacityFrames: poolCapacity(cfg),
		InitialDepth:   cfg.BufferPoolInitialDepth(),
		Seed:           bufferPoolSeed,
	})

	man, err := manifest.Open(dir, pool)
	if err != nil {
		return nil, fmt.Errorf("engine: open manifest: %w", err)
	}

	logger := log.GetDefaultLogger()
	metrics := NewNoopEngineMetrics()
	compMetrics := compaction.NewNoopCompactionMetrics()

	strategy, err := newStrategy(cfg)
	if err != nil {
		man.Close()
		return nil, err
	}

	db := &DB{
		dir:     dir,
		cfg:     cfg,
		mem:     memtable.New(int(cfg.MemTableCapacity())),
		pool:    pool,
		man:     man,
		logger:  logger,
		metrics: metrics,
		stats:   stats.NewCollector(),
		comp: compaction.NewEngine(strategy, compaction.OutputOptions{
			Shape:        cfg.SSTShape(),
			BloomEnabled: cfg.BloomEnabled(),
			BitsPerEntry: cfg.BloomBitsPerEntry(),
		}, logger, compMetrics),
	}
	return db, nil
}

func poolCapacity(cfg *config.Config) int {
	if !cfg.BufferPoolEnabled() {
		return 0
	}
	return cfg.BufferPoolCapacity()
}

func newStrategy(cfg *config.Config) (compaction.Strategy, error) {
	switch cfg.CompactionPolicy() {
	case compaction.PolicyNone:
		return compaction.NewNone(), nil
	case compaction.PolicyTiered:
		return compaction.NewTiered(cfg.SizeRatioT()), nil
	case compaction.PolicyLeveled:
		return compaction.NewLeveled(), nil
	case compaction.PolicyHybrid:
		return compaction.NewHybrid(cfg.SizeRatioT(), cfg.HybridLastLevel()), nil
	default:
		return nil, fmt.Errorf("%w: unknown compaction policy %v", config.ErrInvalidConfig, cfg.CompactionPolicy())
	}
}

// Put inserts or overwrites key's value. Fails as a usage error if value
// equals the tombstone sentinel: clients must not store it directly. If
// the insert overflows the memtable's configured capacity,
// the memtable is flushed to a new level-0 run and any now-over-budget
// level is compacted, synchronously, before Put returns.
func (db *DB) Put(key, value int64) error {
	if db.closed.Load() {
		return ErrClosed
	}
	if value == kv.Tombstone {
		db.stats.TrackError("usage")
		return ErrTombstoneValue
	}
	start := time.Now()
	defer func() {
		db.stats.TrackOperationWithLatency(stats.OpPut, uint64(time.Since(start).Nanoseconds()))
	}()

	if _, exists := db.mem.Get(key); !exists && db.mem.WouldOverflow() {
		if err := db.flushAndCascade(); err != nil {
			db.stats.TrackError("flush")
			return err
		}
	}
	db.mem.Put(key, value)
	db.stats.TrackBytes(true, uint64(kv.EntrySize))
	return nil
}

// Delete removes key's value, equivalent to Put(key, VALUE_MIN).
func (db *DB) Delete(key int64) error {
	if db.closed.Load() {
		return ErrClosed
	}
	start := time.Now()
	defer func() {
		db.stats.TrackOperationWithLatency(stats.OpDelete, uint64(time.Since(start).Nanoseconds()))
	}()
	if _, exists := db.mem.Get(key); !exists && db.mem.WouldOverflow() {
		if err := db.flushAndCascade(); err != nil {
			db.stats.TrackError("flush")
			return err
		}
	}
	db.mem.Put(key, kv.Tombstone)
	return nil
}

// Get returns key's most recent value and true, or (0, false) if the key
// is absent or its most recent write was a tombstone. The memtable is
// consulted first; failing that, each on-disk run is consulted
// newest-first, per level from level 0 down, and the first hit or
// tombstone stops the search.
func (db *DB) Get(key int64) (int64, bool, error) {
	if db.closed.Load() {
		return 0, false, ErrClosed
	}
	start := time.Now()
	defer func() {
		db.stats.TrackOperationWithLatency(stats.OpGet, uint64(time.Since(start).Nanoseconds()))
	}()

	if v, ok := db.mem.Get(key); ok {
		if v == kv.Tombstone {
			return 0, false, nil
		}
		return v, true, nil
	}

	for _, level := range db.man.Levels() {
		for _, r := range db.man.RunsInLevel(level) {
			if key < r.MinKey() || key > r.MaxKey() {
				continue
			}
			if !r.MaybeContains(key) {
				continue
			}
			v, err := r.Get(key, db.cfg.SearchMode())
			if err != nil {
				if err == run.ErrNotFound {
					continue
				}
				return 0, false, fmt.Errorf("engine: get from run %d: %w", r.ID(), err)
			}
			if v == kv.Tombstone {
				return 0, false, nil
			}
			return v, true, nil
		}
	}
	return 0, false, nil
}

// Entry pairs a key and value; Scan returns a sequence of these in
// ascending key order.
type Entry = kv.Entry

// Scan returns entries with lo <= key <= hi in ascending order, with
// tombstones suppressed and duplicate keys across sources resolved
// newest-first. Built on the same k-way merge compaction uses
// internally, ranking the memtable above every on-disk run since it
// always holds the newest data.
func (db *DB) Scan(lo, hi int64) ([]Entry, error) {
	if db.closed.Load() {
		return nil, ErrClosed
	}
	start := time.Now()
	defer func() {
		db.stats.TrackOperationWithLatency(stats.OpScanRange, uint64(time.Since(start).Nanoseconds()))
	}()

	// Rank sources oldest-to-newest so the merge's "highest rank wins"
	// tie-break matches "newest write wins": deepest level's oldest run
	// gets rank 1, level 0's newest run gets the highest run rank, and
	// the memtable — always the newest data — gets the highest rank of
	// all.
	var sources []compaction.RankedSource
	rank := uint64(1)
	for _, level := range reverse(db.man.Levels()) {
		runs := db.man.RunsInLevel(level)
		for i := len(runs) - 1; i >= 0; i-- {
			r := runs[i]
			it, err := r.NewIterator(lo, hi, db.cfg.SearchMode())
			if err != nil {
				return nil, fmt.Errorf("engine: open iterator on run %d: %w", r.ID(), err)
			}
			sources = append(sources, compaction.RankedSource{Rank: rank, It: it})
			rank++
		}
	}
	sources = append(sources, compaction.RankedSource{Rank: rank, It: db.mem.Scan(lo, hi)})

	merged := compaction.NewMergeIterator(sources, true)
	var out []Entry
	for merged.Next() {
		out = append(out, merged.Entry())
	}
	if err := merged.Err(); err != nil {
		return nil, fmt.Errorf("engine: scan: %w", err)
	}
	return out, nil
}

func reverse(levels []int) []int {
	out := make([]int, len(levels))
	for i, l := range levels {
		out[len(levels)-1-i] = l
	}
	return out
}

// flushAndCascade drains the memtable into a new level-0 run, then runs
// compaction's cascade until every level is within its policy's budget:
// the memtable is serialized into a new level-0 run, its Bloom filter is
// built, and the memtable is emptied. After the flush, the engine
// inspects levels bottom-up and compacts any over-budget level into the
// next.
func (db *DB) flushAndCascade() error {
	entries := db.mem.DrainSorted()
	if len(entries) == 0 {
		return nil
	}
	start := time.Now()

	id := db.man.NewID()
	writeOpts := run.WriteArrayOptions{
		Dir:          db.man.Dir(),
		Level:        0,
		ID:           id,
		BloomEnabled: db.cfg.BloomEnabled(),
		BitsPerEntry: db.cfg.BloomBitsPerEntry(),
	}
	src := run.NewSliceIterator(entries)

	var (
		err error
		out run.Run
	)
	switch db.cfg.SSTShape() {
	case run.ShapeBTree:
		_, err = run.WriteBTree(src, writeOpts)
	default:
		_, err = run.WriteArray(src, writeOpts)
	}
	if err != nil {
		return fmt.Errorf("engine: flush: write level-0 run: %w", err)
	}

	switch db.cfg.SSTShape() {
	case run.ShapeBTree:
		out, err = run.OpenBTree(db.man.Dir(), 0, id, db.man.Pool())
	default:
		out, err = run.OpenArray(db.man.Dir(), 0, id, db.man.Pool())
	}
	if err != nil {
		return fmt.Errorf("engine: flush: reopen level-0 run: %w", err)
	}

	db.man.AddRun(out)
	db.mem = memtable.New(db.mem.Capacity())
	db.stats.TrackFlush()
	db.metrics.RecordEngineOperation(context.Background(), "flush", time.Since(start), true)

	if err := db.comp.RunCascade(context.Background(), db.man); err != nil {
		return fmt.Errorf("engine: flush: cascade: %w", err)
	}
	db.stats.TrackCompaction()
	return nil
}

// Flush forces the memtable to disk and runs the compaction cascade even
// if the memtable has not reached its configured capacity. Useful for
// tests and the CLI's explicit .flush command.
func (db *DB) Flush() error {
	if db.closed.Load() {
		return ErrClosed
	}
	return db.flushAndCascade()
}

// Compact runs the compaction cascade without first flushing the
// memtable. Useful for the CLI's .compact command.
func (db *DB) Compact() error {
	if db.closed.Load() {
		return ErrClosed
	}
	return db.comp.RunCascade(context.Background(), db.man)
}

// Stats returns a snapshot of the engine's operation counters, byte
// counters, and latencies, merged with the buffer pool's own
// hit/miss/eviction counters. Every eviction observed since the
// previous call is folded into the stats collector's OpBufferPoolEvict
// counter, since the pool itself has no reference back to a Collector.
func (db *DB) Stats() map[string]interface{} {
	poolStats := db.pool.Stats()
	if poolStats.Evictions > db.lastPoolEvictions {
		for i := uint64(0); i < poolStats.Evictions-db.lastPoolEvictions; i++ {
			db.stats.TrackOperation(stats.OpBufferPoolEvict)
		}
		db.lastPoolEvictions = poolStats.Evictions
	}

	out := db.stats.GetStats()
	out["buffer_pool_hits"] = poolStats.Hits
	out["buffer_pool_misses"] = poolStats.Misses
	out["buffer_pool_evictions"] = poolStats.Evictions
	out["buffer_pool_live"] = poolStats.Live
	out["buffer_pool_capacity"] = poolStats.Capacity
	return out
}

// Close flushes any buffered writes and releases every open run's file
// handles. Close is idempotent; a second call returns nil.
func (db *DB) Close() error {
	if !db.closed.CompareAndSwap(false, true) {
		return nil
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	var flushErr error
	if db.mem.Len() > 0 {
		flushErr = db.flushAndCascade()
	}
	if err := db.man.Close(); err != nil {
		if flushErr == nil {
			flushErr = err
		}
	}
	return flushErr
}
