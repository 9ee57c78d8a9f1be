package engine

import (
	"os"
	"testing"

	"github.com/quiver-db/quiver/pkg/kv"
)

func TestDB_BasicOperations(t *testing.T) {
	dir, err := os.MkdirTemp("", "engine-facade-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	db, err := Open(dir, "mydb")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if err := db.Put(1, 100); err != nil {
		t.Fatalf("Put: %v", err)
	}

	v, ok, err := db.Get(1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || v != 100 {
		t.Fatalf("Get(1) = (%d, %v), want (100, true)", v, ok)
	}

	if err := db.Delete(1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, err := db.Get(1); err != nil || ok {
		t.Fatalf("Get after delete = ok=%v err=%v, want ok=false err=nil", ok, err)
	}
}

func TestDB_PutTombstoneRejected(t *testing.T) {
	dir, err := os.MkdirTemp("", "engine-facade-tombstone-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	db, err := Open(dir, "mydb")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if err := db.Put(1, kv.Tombstone); err == nil {
		t.Fatal("expected error putting tombstone value")
	}
	if _, ok, err := db.Get(1); err != nil || ok {
		t.Fatalf("rejected Put should not mutate state, got ok=%v err=%v", ok, err)
	}
}

func TestDB_ScanAcrossFlush(t *testing.T) {
	dir, err := os.MkdirTemp("", "engine-facade-scan-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	db, err := Open(dir, "mydb")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	for i := int64(0); i < 10; i++ {
		if err := db.Put(i, i*10); err != nil {
			t.Fatalf("Put(%d): %v", i, err)
		}
	}
	if err := db.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	// Overwrite one key and delete another after the flush, so the scan
	// must resolve the memtable's newer entries over the flushed run's.
	if err := db.Put(3, 999); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	if err := db.Delete(5); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	entries, err := db.Scan(0, 9)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(entries) != 9 {
		t.Fatalf("expected 9 entries (10 - 1 deleted), got %d", len(entries))
	}
	for i, e := range entries {
		if i > 0 && entries[i-1].Key >= e.Key {
			t.Fatalf("scan not strictly ascending at index %d: %v", i, entries)
		}
		if e.Key == 5 {
			t.Fatalf("deleted key 5 present in scan: %v", entries)
		}
		if e.Key == 3 && e.Value != 999 {
			t.Fatalf("key 3 = %d, want overwritten value 999", e.Value)
		}
	}
}

func TestDB_ReopenPreservesData(t *testing.T) {
	dir, err := os.MkdirTemp("", "engine-facade-reopen-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	db, err := Open(dir, "mydb")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := db.Put(42, 4200); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db2, err := Open(dir, "mydb")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db2.Close()

	v, ok, err := db2.Get(42)
	if err != nil || !ok || v != 4200 {
		t.Fatalf("Get(42) after reopen = (%d, %v, %v), want (4200, true, nil)", v, ok, err)
	}
}

func TestDB_OpenRejectsBadName(t *testing.T) {
	dir, err := os.MkdirTemp("", "engine-facade-badname-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	if _, err := Open(dir, "bad name"); err == nil {
		t.Fatal("expected error opening database with whitespace in name")
	}
}

func TestDB_StatsIncludesBufferPoolCounters(t *testing.T) {
	dir, err := os.MkdirTemp("", "engine-facade-stats-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	db, err := Open(dir, "mydb")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if err := db.Put(1, 100); err != nil {
		t.Fatalf("Put: %v", err)
	}

	stats := db.Stats()
	for _, key := range []string{"buffer_pool_hits", "buffer_pool_misses", "buffer_pool_evictions", "buffer_pool_live", "buffer_pool_capacity"} {
		if _, ok := stats[key]; !ok {
			t.Errorf("expected Stats() to include %q", key)
		}
	}
}

func TestDB_ClosedRejectsOperations(t *testing.T) {
	dir, err := os.MkdirTemp("", "engine-facade-closed-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	db, err := Open(dir, "mydb")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got: %v", err)
	}
	if err := db.Put(1, 1); err != ErrClosed {
		t.Fatalf("Put on closed db = %v, want ErrClosed", err)
	}
	if _, _, err := db.Get(1); err != ErrClosed {
		t.Fatalf("Get on closed db = %v, want ErrClosed", err)
	}
}
